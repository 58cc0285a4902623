// Package config loads quizstore settings from an optional YAML file,
// QUIZSTORE_* environment variables and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up when no explicit path is given.
const FileName = "quizstore"

// Keys, shared by the file, the environment and flag overrides.
const (
	KeyDataDir        = "data_dir"
	KeyBackupDir      = "backup_dir"
	KeyBackupKeepDays = "backup_keep_days"
	KeyLockTimeout    = "lock_timeout"
	KeyFormat         = "format"
)

// Config holds the resolved settings for one invocation: defaults, then
// quizstore.yaml, then QUIZSTORE_ environment variables, then flags.
type Config struct {
	DataDir        string        `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`
	BackupDir      string        `mapstructure:"backup_dir" yaml:"backup_dir" validate:"required"`
	BackupKeepDays int           `mapstructure:"backup_keep_days" yaml:"backup_keep_days" validate:"min=1"`
	LockTimeout    time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout" validate:"gt=0"`
	Format         string        `mapstructure:"format" yaml:"format" validate:"oneof=auto toon pretty json"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

// YAML renders the resolved settings in the same shape quizstore.yaml uses,
// so the output can be saved as a starting config file.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config path. When set it must exist.
	File string
	// Dir is searched for quizstore.yaml and anchors relative paths.
	Dir string
	// Overrides take precedence over everything else. Only non-zero values
	// are applied.
	Overrides map[string]any
}

var validate = validator.New()

// Load resolves the configuration. Relative data and backup directories are
// made absolute against opts.Dir.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyDataDir, "data")
	v.SetDefault(KeyBackupDir, "backups")
	v.SetDefault(KeyBackupKeepDays, 30)
	v.SetDefault(KeyLockTimeout, 5*time.Second)
	v.SetDefault(KeyFormat, "auto")

	v.SetEnvPrefix("QUIZSTORE")
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		if opts.Dir != "" {
			v.AddConfigPath(opts.Dir)
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "quizstore"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for k, val := range opts.Overrides {
		if isZero(val) {
			continue
		}
		v.Set(k, val)
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.File = v.ConfigFileUsed()
	cfg.DataDir = resolve(opts.Dir, cfg.DataDir)
	cfg.BackupDir = resolve(opts.Dir, cfg.BackupDir)
	return &cfg, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case time.Duration:
		return x == 0
	}
	return false
}
