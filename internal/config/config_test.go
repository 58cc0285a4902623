package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad(t *testing.T) {
	t.Run("it applies defaults anchored at the working directory", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(Options{Dir: dir})
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
		assert.Equal(t, filepath.Join(dir, "backups"), cfg.BackupDir)
		assert.Equal(t, 30, cfg.BackupKeepDays)
		assert.Equal(t, 5*time.Second, cfg.LockTimeout)
		assert.Equal(t, "auto", cfg.Format)
	})

	t.Run("it reads quizstore.yaml from the directory", func(t *testing.T) {
		dir := t.TempDir()
		yaml := "data_dir: /srv/quiz\nbackup_keep_days: 7\nlock_timeout: 250ms\nformat: json\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "quizstore.yaml"), []byte(yaml), 0644))

		cfg, err := Load(Options{Dir: dir})
		require.NoError(t, err)
		assert.Equal(t, "/srv/quiz", cfg.DataDir)
		assert.Equal(t, 7, cfg.BackupKeepDays)
		assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
		assert.Equal(t, "json", cfg.Format)
	})

	t.Run("it lets the environment override the file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "quizstore.yaml"), []byte("backup_keep_days: 7\n"), 0644))
		t.Setenv("QUIZSTORE_BACKUP_KEEP_DAYS", "14")

		cfg, err := Load(Options{Dir: dir})
		require.NoError(t, err)
		assert.Equal(t, 14, cfg.BackupKeepDays)
	})

	t.Run("it lets non-empty overrides win", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("QUIZSTORE_DATA_DIR", "from-env")

		cfg, err := Load(Options{Dir: dir, Overrides: map[string]any{
			KeyDataDir:   "from-flag",
			KeyBackupDir: "",
		}})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "from-flag"), cfg.DataDir)
		assert.Equal(t, filepath.Join(dir, "backups"), cfg.BackupDir)
	})

	t.Run("it fails for a missing explicit file", func(t *testing.T) {
		_, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml")})
		assert.Error(t, err)
	})

	t.Run("it rejects an unknown format", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "quizstore.yaml"), []byte("format: xml\n"), 0644))

		_, err := Load(Options{Dir: dir})
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("it records the file it read", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "quizstore.yaml")
		require.NoError(t, os.WriteFile(path, []byte("format: toon\n"), 0644))

		cfg, err := Load(Options{Dir: dir})
		require.NoError(t, err)
		assert.Equal(t, path, cfg.File)
	})
}

func TestConfigYAML(t *testing.T) {
	t.Run("it round-trips through a config file", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(Options{Dir: dir, Overrides: map[string]any{KeyFormat: "pretty"}})
		require.NoError(t, err)

		out, err := cfg.YAML()
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, yaml.Unmarshal(out, &raw))
		assert.Equal(t, "pretty", raw[KeyFormat])
		assert.Equal(t, "5s", raw[KeyLockTimeout])
		assert.NotContains(t, raw, "file")

		path := filepath.Join(t.TempDir(), "saved.yaml")
		require.NoError(t, os.WriteFile(path, out, 0644))
		again, err := Load(Options{File: path})
		require.NoError(t, err)
		assert.Equal(t, cfg.DataDir, again.DataDir)
		assert.Equal(t, cfg.LockTimeout, again.LockTimeout)
		assert.Equal(t, "pretty", again.Format)
	})
}
