// Package cli implements the quizstore command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leeovery/quizstore/internal/backup"
	"github.com/leeovery/quizstore/internal/config"
	"github.com/leeovery/quizstore/internal/repository"
	"github.com/leeovery/quizstore/internal/storage"
)

// App is the CLI application.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	// Dir is the working directory; relative config paths resolve against it.
	Dir string
	// IsTTY overrides terminal detection on Stdout. Nil uses DetectTTY.
	IsTTY func() bool
	// Now overrides the clock used for new records and backups.
	Now func() time.Time
}

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	dataDir    string
	backupDir  string
	configFile string
	quiet      bool
	verbose    bool
	toon       bool
	pretty     bool
	json       bool
}

// env is the state resolved once per invocation and handed to commands.
type env struct {
	app    *App
	cfg    *config.Config
	logger *zap.Logger
	format OutputFormat
	out    Formatter
	quiet  bool
}

// exitError carries a non-zero exit code for commands that have already
// written their output, such as doctor finding issues.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Run parses args and dispatches the subcommand. args[0] is the program
// name. It returns the process exit code.
func (a *App) Run(args []string) int {
	var flags globalFlags
	e := &env{app: a}

	root := &cobra.Command{
		Use:           "quizstore",
		Short:         "Manage the kanji quiz problem and attempt files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(flags)
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory holding problems.csv and attempts.csv")
	pf.StringVar(&flags.backupDir, "backup-dir", "", "directory for backups")
	pf.StringVar(&flags.configFile, "config", "", "config file (default quizstore.yaml)")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress non-essential output")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug detail to stderr")
	pf.BoolVar(&flags.toon, "toon", false, "force TOON output")
	pf.BoolVar(&flags.pretty, "pretty", false, "force human-readable output")
	pf.BoolVar(&flags.json, "json", false, "force JSON output")

	root.AddCommand(
		newInitCmd(e),
		newAddCmd(e),
		newUpdateCmd(e),
		newDeleteCmd(e),
		newListCmd(e),
		newShowCmd(e),
		newMissCmd(e),
		newAttemptCmd(e),
		newAttemptsCmd(e),
		newRescoreCmd(e),
		newImportAttemptsCmd(e),
		newStatsCmd(e),
		newRebuildCmd(e),
		newDoctorCmd(e),
		newRepairCmd(e),
		newBackupCmd(e),
		newConfigCmd(e),
	)

	root.SetArgs(args[1:])
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	if err := root.ExecuteContext(context.Background()); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(a.Stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}

func (e *env) setup(flags globalFlags) error {
	cfg, err := config.Load(config.Options{
		File: flags.configFile,
		Dir:  e.app.Dir,
		Overrides: map[string]any{
			config.KeyDataDir:   flags.dataDir,
			config.KeyBackupDir: flags.backupDir,
		},
	})
	if err != nil {
		return err
	}

	format, err := ResolveFormat(flags.toon, flags.pretty, flags.json, cfg.Format, e.app.isTTY())
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.format = format
	e.out = NewFormatter(format)
	e.quiet = flags.quiet
	e.logger = newLogger(e.app.Stderr, flags.verbose, flags.quiet)
	e.logger.Debug("config resolved",
		zap.String("data_dir", cfg.DataDir),
		zap.String("backup_dir", cfg.BackupDir),
		zap.String("format", string(format)))
	return nil
}

// newLogger writes JSON warnings to w, or human-readable debug output when
// verbose. Quiet raises the level to errors only.
func newLogger(w io.Writer, verbose, quiet bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)
	level := zapcore.WarnLevel

	if verbose {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		level = zapcore.DebugLevel
	}
	if quiet {
		level = zapcore.ErrorLevel
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}

func (a *App) isTTY() bool {
	if a.IsTTY != nil {
		return a.IsTTY()
	}
	return DetectTTY()
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// openStore opens the configured data directory, which must already exist.
func (e *env) openStore() (*storage.FileStore, error) {
	s, err := storage.Open(e.cfg.DataDir,
		storage.WithLockTimeout(e.cfg.LockTimeout),
		storage.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("%w (run `quizstore init` to create it)", err)
	}
	return s, nil
}

func (e *env) repoOpts() []repository.Option {
	return []repository.Option{
		repository.WithLogger(e.logger),
		repository.WithClock(e.app.now),
	}
}

func (e *env) backups() *backup.Manager {
	return &backup.Manager{
		DataDir:   e.cfg.DataDir,
		BackupDir: e.cfg.BackupDir,
		KeepDays:  e.cfg.BackupKeepDays,
		Now:       e.app.now,
		Logger:    e.logger,
	}
}

// message writes msg through the formatter unless quiet.
func (e *env) message(msg string) error {
	if e.quiet {
		return nil
	}
	return e.out.FormatMessage(e.app.Stdout, msg)
}

// DetectTTY reports whether os.Stdout is a terminal. A stat failure counts
// as not a terminal.
func DetectTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
