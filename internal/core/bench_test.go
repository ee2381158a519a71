package core

import (
	"context"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/coregx/quarry/internal/dialects"
)

type benchItem struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func benchDB(b *testing.B) *DB {
	b.Helper()
	db, err := Open("sqlite", ":memory:", WithMaxOpenConns(1))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = db.Close() })
	if _, err := db.ExecContext(context.Background(), `CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		b.Fatal(err)
	}
	return db
}

func BenchmarkCompile(b *testing.B) {
	for _, name := range []string{"postgres", "mysql", "sqlite", "sqlserver"} {
		d := dialects.GetDialect(name)
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, err := NewQuery(d).Select("id", "name").
					From("items").
					Where(HashExp{"status": 1, "id >": 10}).
					OrWhere(In("id", 1, 2, 3)).
					OrderDesc("id").
					Page(3, 20).
					Compile()
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSelect(b *testing.B) {
	db := benchDB(b)
	if _, err := db.Insert("items", "id", "name").Values(map[string]any{"id": 1, "name": "test"}).Execute(); err != nil {
		b.Fatal(err)
	}

	b.Run("Struct", func(b *testing.B) {
		var items []benchItem
		for i := 0; i < b.N; i++ {
			if err := db.Select("id", "name").From("items").All(&items); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Rows", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := db.Select("id", "name").From("items").Rows(); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkInsertBatch(b *testing.B) {
	for _, size := range []int{10, 100} {
		rows := make([]any, size)
		for i := range rows {
			rows[i] = map[string]any{"name": fmt.Sprintf("item-%d", i)}
		}
		b.Run(fmt.Sprintf("rows=%d", size), func(b *testing.B) {
			db := benchDB(b)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := db.Insert("items", "name").Values(rows...).Execute(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
