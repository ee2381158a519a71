package reflector

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/coregx/quarry/internal/schema"
)

// Store is the key-value backend for described tables.
// *cache.MemoryStore satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CachedCollection is a Collection whose Describe results are kept in a Store
// under "<connection>_<table>" keys. It is safe for concurrent use as long as
// the Store is.
type CachedCollection struct {
	*Collection
	store      Store
	connection string
	group      singleflight.Group
}

// NewCachedCollection wraps c. connection prefixes every cache key.
func NewCachedCollection(c *Collection, store Store, connection string) *CachedCollection {
	return &CachedCollection{Collection: c, store: store, connection: connection}
}

// CacheKey returns the store key of a table.
func (c *CachedCollection) CacheKey(table string) string {
	return c.connection + "_" + table
}

// Describe returns the cached table or reads it from the catalog and caches it.
// Concurrent misses for the same table share one catalog read.
func (c *CachedCollection) Describe(ctx context.Context, name string) (*schema.Table, error) {
	key := c.CacheKey(name)

	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "cache get %s", key)
	}
	if ok {
		t, err := decodeTable(data)
		if err == nil {
			return t, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.refresh(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing a read must not share the mutable table.
	return decodeTable(v.([]byte))
}

// Build describes tables and overwrites their cache entries.
// With no names every table of the default schema is built.
// It returns the names that were built.
func (c *CachedCollection) Build(ctx context.Context, tables ...string) ([]string, error) {
	tables, err := c.names(ctx, tables)
	if err != nil {
		return nil, err
	}
	for _, name := range tables {
		if _, err := c.refresh(ctx, name); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// Clear removes cache entries. With no names every table of the default
// schema is cleared. It returns the names that were cleared.
func (c *CachedCollection) Clear(ctx context.Context, tables ...string) ([]string, error) {
	tables, err := c.names(ctx, tables)
	if err != nil {
		return nil, err
	}
	for _, name := range tables {
		key := c.CacheKey(name)
		if err := c.store.Delete(ctx, key); err != nil {
			return nil, errors.Wrapf(err, "cache delete %s", key)
		}
		c.logger.Debug("cleared cached table", "key", key)
	}
	return tables, nil
}

func (c *CachedCollection) refresh(ctx context.Context, name string) ([]byte, error) {
	t, err := c.Collection.Describe(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(t.Definition())
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", name)
	}
	key := c.CacheKey(name)
	if err := c.store.Set(ctx, key, data); err != nil {
		return nil, errors.Wrapf(err, "cache set %s", key)
	}
	c.logger.Debug("cached table", "key", key, "bytes", len(data))
	return data, nil
}

func (c *CachedCollection) names(ctx context.Context, tables []string) ([]string, error) {
	if len(tables) > 0 {
		return tables, nil
	}
	return c.ListTables(ctx)
}

func decodeTable(data []byte) (*schema.Table, error) {
	var def schema.Definition
	if err := msgpack.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, "decode cached table")
	}
	return schema.FromDefinition(def)
}
