package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leeovery/quizstore/internal/doctor"
	"github.com/leeovery/quizstore/internal/reconcile"
	"github.com/leeovery/quizstore/internal/repository"
	"github.com/leeovery/quizstore/internal/storage"
)

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show accuracy and miss-count statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			report, err := repository.NewStats(s, s.IndexPath(), e.repoOpts()...).Report(cmd.Context())
			if err != nil {
				return err
			}
			return e.out.FormatStats(e.app.Stdout, report)
		},
	}
}

func newRebuildCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Force a rebuild of the SQLite statistics index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			n, err := repository.NewStats(s, s.IndexPath(), e.repoOpts()...).Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			return e.message(fmt.Sprintf("Rebuilt index: %d problems", n))
		},
	}
}

// newDoctorCmd reports integrity problems without changing anything. It
// exits 1 when any error-level issue is found.
func newDoctorCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the data files for duplicates, orphans and bad values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			report, err := doctor.Scan(cmd.Context(), s.Path(storage.Items), s.Path(storage.Attempts),
				doctor.WithIndex(s.IndexPath()))
			if err != nil {
				return err
			}

			if e.format == FormatJSON {
				if err := (&JSONFormatter{}).writeJSON(e.app.Stdout, report); err != nil {
					return err
				}
			} else {
				doctor.FormatReport(e.app.Stdout, report.Diagnostics)
			}
			if code := doctor.ExitCode(report.Diagnostics); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
}

func newRepairCmd(e *env) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Merge duplicate problems and drop orphaned attempts",
		Long: `Repair the data files in place while holding the store lock:

  - rows sharing a problem id are merged into the first, summing miss counts
  - attempts whose problem no longer exists are dropped
  - duplicate attempt ids keep only their last row
  - a trailing blank row is removed

Both files are backed up first. Use --dry-run to see the changes without
writing anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			r := reconcile.ForStore(s, e.backups(), reconcile.WithLogger(e.logger))

			var sum reconcile.Summary
			if dryRun {
				sum, err = r.DryRun(cmd.Context())
			} else {
				sum, err = r.Run(cmd.Context())
			}
			if err != nil {
				return err
			}

			switch {
			case e.format == FormatJSON:
				return (&JSONFormatter{}).writeJSON(e.app.Stdout, sum)
			case e.quiet:
				return nil
			}
			reconcile.Present(e.app.Stdout, sum)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing")
	return cmd
}
