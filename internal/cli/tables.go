package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTablesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables [schema]",
		Short: "List tables in alphabetical order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, c, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			names, err := c.ListTables(cmd.Context(), args...)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
