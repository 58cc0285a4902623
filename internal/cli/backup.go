package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leeovery/quizstore/internal/storage"
)

func newBackupCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list, prune and restore backups of the data files",
	}
	cmd.AddCommand(
		newBackupCreateCmd(e),
		newBackupListCmd(e),
		newBackupPruneCmd(e),
		newBackupRestoreCmd(e),
		newBackupInfoCmd(e),
	)
	return cmd
}

func newBackupCreateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Copy both data files into the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			unlock, err := s.LockExclusive(cmd.Context())
			if err != nil {
				return err
			}
			paths, err := e.backups().Snapshot(s.Path(storage.Items), s.Path(storage.Attempts))
			unlock()
			if err != nil {
				return err
			}

			if len(paths) == 0 {
				return e.message("Nothing to back up: both data files are empty")
			}
			for _, p := range paths {
				if err := e.message(fmt.Sprintf("Backed up %s", filepath.Base(p))); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newBackupListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := e.backups().List()
			if err != nil {
				return err
			}
			if e.quiet {
				for _, b := range entries {
					fmt.Fprintln(e.app.Stdout, b.Name)
				}
				return nil
			}
			return e.out.FormatBackups(e.app.Stdout, entries)
		},
	}
}

func newBackupPruneCmd(e *env) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete backups older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := e.backups()
			if days > 0 {
				m.KeepDays = days
			}
			n, err := m.Prune(e.app.now())
			if err != nil {
				return err
			}
			return e.message(fmt.Sprintf("Pruned %d backups older than %d days", n, m.KeepDays))
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention in days (default from config)")
	return cmd
}

func newBackupRestoreCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <name>",
		Short: "Overwrite a data file with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			unlock, err := s.LockExclusive(cmd.Context())
			if err != nil {
				return err
			}
			target, err := e.backups().Restore(args[0])
			unlock()
			if err != nil {
				return err
			}
			return e.message(fmt.Sprintf("Restored %s from %s", filepath.Base(target), filepath.Base(args[0])))
		},
	}
}

func newBackupInfoCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show backup directory usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := e.backups().Info()
			if err != nil {
				return err
			}
			return e.out.FormatBackupInfo(e.app.Stdout, info)
		},
	}
}
