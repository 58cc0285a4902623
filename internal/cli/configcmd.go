package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := e.cfg.YAML()
			if err != nil {
				return err
			}
			if e.cfg.File != "" && !e.quiet {
				fmt.Fprintf(e.app.Stdout, "# %s\n", e.cfg.File)
			}
			_, err = e.app.Stdout.Write(out)
			return err
		},
	}
}
