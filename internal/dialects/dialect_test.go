package dialects

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/quarry/internal/schema"
)

func TestRegistry(t *testing.T) {
	for _, name := range []string{"mysql", "postgres", "pgx", "sqlite", "sqlite3", "sqlserver", "mssql"} {
		d, err := NewDialect(name, Config{})
		require.NoError(t, err, name)
		assert.NotNil(t, d)
	}

	_, err := NewDialect("oracle", Config{})
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
	assert.Contains(t, err.Error(), "oracle")

	assert.Panics(t, func() { GetDialect("oracle") })
	assert.Equal(t, "postgres", GetDialect("postgresql").Name())
	assert.Contains(t, Names(), "sqlserver")
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		dialect string
		input   string
		want    string
	}{
		{"postgres", "users", `"users"`},
		{"postgres", "public.users", `"public"."users"`},
		{"postgres", `we"ird`, `"we""ird"`},
		{"postgres", "u.*", `"u".*`},
		{"postgres", "*", "*"},
		{"mysql", "users", "`users`"},
		{"mysql", "db.users", "`db`.`users`"},
		{"mysql", "we`ird", "`we``ird`"},
		{"sqlite", "users", `"users"`},
		{"sqlserver", "users", "[users]"},
		{"sqlserver", "dbo.users", "[dbo].[users]"},
		{"sqlserver", "we]ird", "[we]]ird]"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, GetDialect(tt.dialect).QuoteIdentifier(tt.input))
		})
	}
}

func TestWithoutQuoting(t *testing.T) {
	d := WithoutQuoting(GetDialect("postgres"))
	assert.Equal(t, "public.users", d.QuoteIdentifier("public.users"))
	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t, "$2", d.Placeholder(2))
	assert.Same(t, d.(unquoted).Dialect, WithoutQuoting(d).(unquoted).Dialect)
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "?", GetDialect("mysql").Placeholder(3))
	assert.Equal(t, "?", GetDialect("sqlite").Placeholder(3))
	assert.Equal(t, "$3", GetDialect("postgres").Placeholder(3))
	assert.Equal(t, "@p3", GetDialect("sqlserver").Placeholder(3))
}

func TestLimitSQL(t *testing.T) {
	tests := []struct {
		dialect    string
		limit      int64
		offset     int64
		ordered    bool
		wantPrefix string
		wantSuffix string
	}{
		{"postgres", 10, -1, false, "", " LIMIT 10"},
		{"postgres", 10, 20, false, "", " LIMIT 10 OFFSET 20"},
		{"postgres", -1, 20, false, "", " OFFSET 20"},
		{"postgres", -1, -1, false, "", ""},
		{"mysql", -1, 5, false, "", " LIMIT 18446744073709551615 OFFSET 5"},
		{"mysql", 25, 0, false, "", " LIMIT 25 OFFSET 0"},
		{"sqlite", -1, 5, false, "", " LIMIT -1 OFFSET 5"},
		{"sqlserver", 10, -1, false, "TOP 10", ""},
		{"sqlserver", 10, 20, true, "", " OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"sqlserver", 10, 20, false, "", " ORDER BY (SELECT NULL) OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"sqlserver", -1, 20, true, "", " OFFSET 20 ROWS"},
		{"sqlserver", -1, -1, false, "", ""},
	}

	for _, tt := range tests {
		prefix, suffix := GetDialect(tt.dialect).LimitSQL(tt.limit, tt.offset, tt.ordered)
		assert.Equal(t, tt.wantPrefix, prefix, "%s %d/%d", tt.dialect, tt.limit, tt.offset)
		assert.Equal(t, tt.wantSuffix, suffix, "%s %d/%d", tt.dialect, tt.limit, tt.offset)
	}
}

func TestFeatures(t *testing.T) {
	assert.True(t, GetDialect("postgres").Features().DistinctOn)
	assert.False(t, GetDialect("mysql").Features().DistinctOn)
	assert.False(t, GetDialect("sqlite").Features().UnionParens)
	assert.True(t, GetDialect("mysql").Features().UnionParens)
}

func TestDefaultSchema(t *testing.T) {
	assert.Equal(t, "public", GetDialect("postgres").DefaultSchema())
	assert.Equal(t, "dbo", GetDialect("sqlserver").DefaultSchema())
	assert.Equal(t, "main", GetDialect("sqlite").DefaultSchema())
	assert.Equal(t, "", GetDialect("mysql").DefaultSchema())

	d, err := NewDialect("postgres", Config{Schema: "audit"})
	require.NoError(t, err)
	assert.Equal(t, "audit", d.DefaultSchema())

	_, args := d.DescribeColumnSQL("articles", "")
	assert.Equal(t, []any{"articles", "audit"}, args)
	_, args = d.DescribeColumnSQL("billing.invoices", "")
	assert.Equal(t, []any{"invoices", "billing"}, args)
}

func TestConvertOnClause(t *testing.T) {
	assert.Equal(t, schema.ActionCascade, convertOnClause("CASCADE"))
	assert.Equal(t, schema.ActionNoAction, convertOnClause("NO_ACTION"))
	assert.Equal(t, schema.ActionNoAction, convertOnClause("NO ACTION"))
	assert.Equal(t, schema.ActionSetDefault, convertOnClause("set default"))
	assert.Equal(t, schema.ActionRestrict, convertOnClause("RESTRICT"))
	assert.Equal(t, schema.ActionSetNull, convertOnClause("SOMETHING"))
}

// articlesSchema is the table rendered into the golden CREATE TABLE files.
func articlesSchema(t *testing.T) *schema.Table {
	t.Helper()
	table := schema.NewTable("articles").
		AddColumn("id", schema.Column{Type: "integer", Null: schema.NotNull}).
		AddColumn("title", schema.Column{Type: "string", Length: 255, Null: schema.NotNull, Comment: "The title"}).
		AddColumn("body", schema.Column{Type: "text"}).
		AddColumn("author_id", schema.Column{Type: "integer", Null: schema.NotNull}).
		AddColumn("published", schema.Column{Type: "boolean", Default: false}).
		AddColumn("created", schema.Column{Type: "datetime"}).
		SetOption("engine", "InnoDB").
		SetOption("charset", "utf8mb4")
	require.NoError(t, table.AddConstraint("primary", schema.Constraint{Type: schema.ConstraintPrimary, Columns: []string{"id"}}))
	require.NoError(t, table.AddConstraint("title_unique", schema.Constraint{Type: schema.ConstraintUnique, Columns: []string{"title"}}))
	require.NoError(t, table.AddConstraint("author_fk", schema.Constraint{
		Type:       schema.ConstraintForeign,
		Columns:    []string{"author_id"},
		References: &schema.Reference{Table: "authors", Columns: []string{"id"}},
		Update:     schema.ActionCascade,
	}))
	require.NoError(t, table.AddIndex("created_idx", schema.Index{Columns: []string{"created"}}))
	return table
}

func TestCreateTableSQL_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, name := range []string{"mysql", "postgres", "sqlite", "sqlserver"} {
		t.Run(name, func(t *testing.T) {
			statements := GetDialect(name).CreateTableSQL(articlesSchema(t))
			g.Assert(t, "create_"+name, []byte(strings.Join(statements, ";\n")+";\n"))
		})
	}
}
