// Package cli implements the quarry command: listing, describing and
// rendering DDL for the tables of a configured connection.
package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coregx/quarry/internal/cache"
	"github.com/coregx/quarry/internal/config"
	"github.com/coregx/quarry/internal/core"
	"github.com/coregx/quarry/internal/logger"
	"github.com/coregx/quarry/internal/reflector"
	"github.com/coregx/quarry/internal/schema"
)

// DefaultConfigFile is read from the working directory when --config is not given.
const DefaultConfigFile = "quarry.yaml"

// options resolves flags, QUARRY_* environment variables and the config file.
type options struct {
	v *viper.Viper
}

// NewRootCommand creates the quarry command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{v: viper.New()}
	opts.v.SetEnvPrefix("QUARRY")
	opts.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	opts.v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Inspect database schemas",
		Long: `quarry reads table metadata from MySQL, PostgreSQL, SQLite and SQL Server
and prints it as text, YAML or the CREATE TABLE statements of any supported dialect.

Connections come from quarry.yaml, the --driver/--dsn flags or the
QUARRY_DRIVER/QUARRY_DSN environment variables.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default is ./"+DefaultConfigFile+" when present)")
	flags.StringP("connection", "c", config.DefaultConnection, "connection name in the config file")
	flags.String("driver", "", "database driver, overrides the config file")
	flags.String("dsn", "", "data source name, overrides the config file")
	flags.String("schema", "", "schema to read instead of the dialect default")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("cache-dir", "", "metadata cache directory (default is the user cache dir)")
	_ = opts.v.BindPFlags(flags)

	cmd.AddCommand(newTablesCommand(opts))
	cmd.AddCommand(newDescribeCommand(opts))
	cmd.AddCommand(newDDLCommand(opts))
	cmd.AddCommand(newCacheCommand(opts))
	return cmd
}

// connection merges the config file entry with flag and environment overrides.
func (o *options) connection() (config.Connection, error) {
	override := config.Connection{
		Driver: o.v.GetString("driver"),
		DSN:    o.v.GetString("dsn"),
		Schema: o.v.GetString("schema"),
	}

	path := o.v.GetString("config")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	var conn config.Connection
	cfg, err := config.Load(path)
	switch {
	case err == nil:
		conn, err = cfg.Lookup(o.v.GetString("connection"))
		if err != nil && (override.Driver == "" || override.DSN == "") {
			return config.Connection{}, err
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return config.Connection{}, err
	}

	conn = conn.Merge(override)
	if err := conn.Validate(); err != nil {
		return config.Connection{}, errors.Wrap(err, "no usable connection, set --driver and --dsn or write "+DefaultConfigFile)
	}
	return conn, nil
}

func (o *options) logger(cmd *cobra.Command) logger.Logger {
	return logger.New(cmd.ErrOrStderr(), o.v.GetString("log-level"))
}

// open connects and returns a collection over the selected connection.
func (o *options) open(cmd *cobra.Command) (*core.DB, *reflector.Collection, error) {
	conn, err := o.connection()
	if err != nil {
		return nil, nil, err
	}
	log := o.logger(cmd)

	dbOpts := []core.Option{core.WithLogger(log)}
	if conn.Schema != "" {
		dbOpts = append(dbOpts, core.WithSchema(conn.Schema))
	}
	db, err := core.Open(conn.Driver, conn.DSN, dbOpts...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s connection", conn.Driver)
	}
	if err := db.SQLDB().PingContext(cmd.Context()); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrapf(err, "connect to %s", conn.Driver)
	}
	return db, reflector.NewCollection(db, reflector.WithLogger(log)), nil
}

// cached wraps c with the on-disk metadata store.
func (o *options) cached(c *reflector.Collection) (*reflector.CachedCollection, error) {
	dir := o.v.GetString("cache-dir")
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, errors.Wrap(err, "locate cache directory")
		}
		dir = filepath.Join(base, "quarry")
	}
	store, err := cache.NewFileStore(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "open cache %s", dir)
	}
	name := o.v.GetString("connection")
	if name == "" {
		name = config.DefaultConnection
	}
	return reflector.NewCachedCollection(c, store, name), nil
}

// describer is satisfied by Collection and CachedCollection.
type describer interface {
	Describe(ctx context.Context, name string) (*schema.Table, error)
}
