// Package config loads named database connections from a YAML file.
package config

import (
	"os"
	"slices"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/coregx/quarry/internal/dialects"
)

// DefaultConnection is used when no connection name is given.
const DefaultConnection = "default"

// Errors returned by Load and Lookup.
var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrInvalidConnection = errors.New("invalid connection")
)

// Connection describes one database.
type Connection struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
	// Schema overrides the dialect default namespace.
	Schema string `yaml:"schema,omitempty" mapstructure:"schema"`
}

// Config is the file layout:
//
//	log_level: info
//	connections:
//	  default:
//	    driver: postgres
//	    dsn: postgres://localhost/app?sslmode=disable
//	    schema: public
type Config struct {
	LogLevel    string                `yaml:"log_level,omitempty"`
	Connections map[string]Connection `yaml:"connections"`
}

// Load reads and validates a config file. ${VAR} references in DSNs are
// expanded from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

// Parse decodes and validates YAML config data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	for name, conn := range cfg.Connections {
		conn.DSN = os.ExpandEnv(conn.DSN)
		cfg.Connections[name] = conn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every connection names a known driver and a DSN.
func (c *Config) Validate() error {
	for _, name := range c.Names() {
		if err := c.Connections[name].Validate(); err != nil {
			return errors.Wrapf(err, "connection %q", name)
		}
	}
	return nil
}

// Names returns the connection names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns a connection by name. An empty name means DefaultConnection.
func (c *Config) Lookup(name string) (Connection, error) {
	if name == "" {
		name = DefaultConnection
	}
	conn, ok := c.Connections[name]
	if !ok {
		return Connection{}, errors.Wrapf(ErrUnknownConnection, "%q (known: %v)", name, c.Names())
	}
	return conn, nil
}

// Validate checks the driver and DSN.
func (c Connection) Validate() error {
	if c.DSN == "" {
		return errors.Wrap(ErrInvalidConnection, "dsn is empty")
	}
	if !slices.Contains(dialects.Names(), c.Driver) {
		return errors.Wrapf(ErrInvalidConnection, "driver %q is not one of %v", c.Driver, dialects.Names())
	}
	return nil
}

// Merge returns c with the non-empty fields of override applied.
func (c Connection) Merge(override Connection) Connection {
	if override.Driver != "" {
		c.Driver = override.Driver
	}
	if override.DSN != "" {
		c.DSN = override.DSN
	}
	if override.Schema != "" {
		c.Schema = override.Schema
	}
	return c
}
