package quarry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coregx/quarry"
)

type article struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
	Views int64  `db:"views"`
}

func openArticles(t *testing.T) *quarry.DB {
	t.Helper()
	db, err := quarry.Open("sqlite", ":memory:", quarry.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	table := quarry.NewTable("articles").
		AddColumn("id", quarry.Column{Type: quarry.TypeInteger, Null: quarry.NotNull}).
		AddColumn("title", quarry.Column{Type: quarry.TypeString, Length: 255}).
		AddColumn("views", quarry.Column{Type: quarry.TypeInteger})
	require.NoError(t, table.AddConstraint("primary", quarry.Constraint{Type: quarry.ConstraintPrimary, Columns: []string{"id"}}))

	for _, stmt := range db.Dialect().CreateTableSQL(table) {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err)
	}
	return db
}

// TestEndToEnd tests building and executing every statement type against SQLite
func TestEndToEnd(t *testing.T) {
	db := openArticles(t)

	_, err := db.Insert("articles", "title", "views").
		Values(
			map[string]any{"title": "First", "views": 10},
			map[string]any{"title": "Second", "views": 3},
			map[string]any{"title": "Third"},
		).
		Execute()
	require.NoError(t, err)

	var list []article
	err = db.Select("id", "title", "views").
		From("articles").
		Where(quarry.HashExp{"views >": 1}).
		OrderAsc("id").
		All(&list)
	require.NoError(t, err)
	assert.Equal(t, []article{{1, "First", 10}, {2, "Second", 3}}, list)

	count, err := db.Select(quarry.Func().Count("*")).From("articles").Where(quarry.IsNull("views")).Scalar()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	res, err := db.Update("articles").Set("views", 0).Where(quarry.IsNull("views")).Execute()
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.EqualValues(t, 1, n)

	var third article
	require.NoError(t, db.Select("*").From("articles").Where(quarry.Eq("title", "Third")).One(&third))
	assert.Equal(t, article{3, "Third", 0}, third)

	var page []article
	require.NoError(t, db.Select("id", "title").From("articles").OrderDesc("id").Page(2, 2).All(&page))
	require.Len(t, page, 1)
	assert.Equal(t, "First", page[0].Title)

	_, err = db.Delete("articles").Where(quarry.In("id", 1, 2)).Execute()
	require.NoError(t, err)

	var missing article
	err = db.Select("id").From("articles").Where(quarry.Eq("id", 1)).One(&missing)
	assert.ErrorIs(t, err, quarry.ErrNoRows)
}

// TestEndToEnd_Describe tests reading back the created table
func TestEndToEnd_Describe(t *testing.T) {
	db := openArticles(t)

	c := quarry.NewCollection(db)
	table, err := c.Describe(context.Background(), "articles")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title", "views"}, table.Columns())
	assert.Equal(t, []string{"id"}, table.PrimaryKey())

	cached := quarry.NewCachedCollection(c, quarry.NewMemoryStore(8), "default")
	again, err := cached.Describe(context.Background(), "articles")
	require.NoError(t, err)
	assert.Equal(t, table.Definition(), again.Definition())

	_, err = c.Describe(context.Background(), "nope")
	assert.ErrorIs(t, err, quarry.ErrTableNotFound)
}

// TestUsageErrors tests that builder misuse panics with a usage error
func TestUsageErrors(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, quarry.IsUsageError(err))
		assert.ErrorIs(t, err, quarry.ErrValuesBeforeInsert)
	}()
	quarry.NewQuery(quarry.GetDialect("postgres")).Values(map[string]any{"a": 1})
}
