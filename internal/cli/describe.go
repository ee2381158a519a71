package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coregx/quarry/internal/schema"
)

// Output formats of describe.
var describeFormats = []string{"text", "yaml"}

func newDescribeCommand(opts *options) *cobra.Command {
	var (
		format string
		cached bool
	)
	cmd := &cobra.Command{
		Use:   "describe <table>...",
		Short: "Show columns, constraints and indexes of tables",
		Long: `Describe reads tables from the catalog. Names may be qualified as schema.table.
With --cached the metadata cache is read first and filled on a miss.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if !slices.Contains(describeFormats, format) {
				return errors.Errorf("invalid format %q: must be one of %v", format, describeFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, c, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			var d describer = c
			if cached {
				if d, err = opts.cached(c); err != nil {
					return err
				}
			}

			tables := make([]*schema.Table, 0, len(args))
			for _, name := range args {
				t, err := d.Describe(cmd.Context(), name)
				if err != nil {
					return err
				}
				tables = append(tables, t)
			}

			if format == "yaml" {
				return writeYAML(cmd.OutOrStdout(), tables)
			}
			for i, t := range tables {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				if err := writeText(cmd.OutOrStdout(), t); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text|yaml)")
	cmd.Flags().BoolVar(&cached, "cached", false, "use the metadata cache")
	return cmd
}

func writeYAML(w io.Writer, tables []*schema.Table) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, t := range tables {
		if err := enc.Encode(t.Definition()); err != nil {
			return errors.Wrapf(err, "encode %s", t.Name())
		}
	}
	return enc.Close()
}

func writeText(w io.Writer, t *schema.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TABLE %s\n", t.Name())
	fmt.Fprintln(tw, "COLUMN\tTYPE\tNULL\tDEFAULT\tEXTRA")
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, columnType(col), nullText(col.Null), defaultText(col.Default), extraText(col))
	}

	if names := t.Constraints(); len(names) > 0 {
		fmt.Fprintln(tw, "\nCONSTRAINT\tKIND\tCOLUMNS\tREFERENCES\t")
		for _, name := range names {
			c, _ := t.Constraint(name)
			ref := ""
			if c.References != nil {
				ref = fmt.Sprintf("%s(%s) ON UPDATE %s ON DELETE %s",
					c.References.Table, strings.Join(c.References.Columns, ", "), c.Update, c.Delete)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", name, c.Type, strings.Join(c.Columns, ", "), ref)
		}
	}

	if names := t.Indexes(); len(names) > 0 {
		fmt.Fprintln(tw, "\nINDEX\tKIND\tCOLUMNS\t\t")
		for _, name := range names {
			idx, _ := t.Index(name)
			fmt.Fprintf(tw, "%s\t%s\t%s\t\t\n", name, idx.Type, strings.Join(idx.Columns, ", "))
		}
	}
	return tw.Flush()
}

func columnType(c schema.Column) string {
	switch {
	case c.Length > 0 && c.Precision > 0:
		return fmt.Sprintf("%s(%d,%d)", c.Type, c.Length, c.Precision)
	case c.Length > 0:
		return fmt.Sprintf("%s(%d)", c.Type, c.Length)
	}
	return c.Type
}

func nullText(n schema.Nullability) string {
	switch n {
	case schema.NotNull:
		return "NO"
	case schema.Nullable:
		return "YES"
	}
	return ""
}

func defaultText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func extraText(c schema.Column) string {
	var extra []string
	if c.Unsigned {
		extra = append(extra, "unsigned")
	}
	if c.Fixed {
		extra = append(extra, "fixed")
	}
	if c.AutoIncrement {
		extra = append(extra, "auto_increment")
	}
	if c.Comment != "" {
		extra = append(extra, "comment="+c.Comment)
	}
	return strings.Join(extra, " ")
}
