package core

import (
	"context"
	"time"

	"github.com/coregx/quarry/internal/tracer"
)

// QueryEvent describes one executed statement.
type QueryEvent struct {
	// SQL is the statement sent to the driver, with positional placeholders.
	SQL string
	// Args are the converted bind values, after masking of sensitive columns.
	Args []any
	// Duration is how long the driver call took.
	Duration time.Duration
	// RowsAffected is set for INSERT, UPDATE and DELETE.
	RowsAffected int64
	// Error is nil on success.
	Error error
	// Operation is SELECT, INSERT, UPDATE, DELETE or UNKNOWN.
	Operation string
}

// QueryHook is called after every statement the DB executes.
//
// Example:
//
//	db, _ := quarry.Open("postgres", dsn,
//	    quarry.WithQueryHook(func(ctx context.Context, e quarry.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// DetectOperation returns the statement kind of sql.
func DetectOperation(sql string) string {
	return tracer.DetectOperation(sql)
}

func (db *DB) invokeHook(ctx context.Context, event QueryEvent) {
	if db.queryHook != nil {
		db.queryHook(ctx, event)
	}
}
