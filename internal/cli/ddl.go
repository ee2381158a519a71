package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/schema"
)

func newDDLCommand(opts *options) *cobra.Command {
	var (
		target   string
		drop     bool
		truncate bool
	)
	cmd := &cobra.Command{
		Use:   "ddl <table>...",
		Short: "Print CREATE TABLE statements for tables",
		Long: `ddl describes tables and renders them back as DDL. --dialect renders the
statements for another product, e.g. to port a SQLite schema to PostgreSQL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, c, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			d := db.Dialect()
			if target != "" {
				if d, err = dialects.NewDialect(target, dialects.Config{}); err != nil {
					return errors.Wrap(err, "--dialect")
				}
			}

			for _, name := range args {
				t, err := c.Describe(cmd.Context(), name)
				if err != nil {
					return err
				}
				for _, stmt := range statements(d, t, drop, truncate) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", stmt)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "dialect", "", "render for this dialect instead of the connection's")
	cmd.Flags().BoolVar(&drop, "drop", false, "emit DROP TABLE before CREATE TABLE")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "emit only the TRUNCATE statements")
	return cmd
}

func statements(d dialects.Dialect, t *schema.Table, drop, truncate bool) []string {
	if truncate {
		return d.TruncateTableSQL(t)
	}
	var out []string
	if drop {
		out = append(out, d.DropTableSQL(t)...)
	}
	return append(out, d.CreateTableSQL(t)...)
}
