package core

import (
	"database/sql"
	"errors"
	"fmt"
)

// Errors returned by query execution.
var (
	// ErrNoRows is returned by One when the query matched nothing. It is sql.ErrNoRows.
	ErrNoRows = sql.ErrNoRows
	// ErrMissingParameter is returned when SQL references a placeholder that was never bound.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrNoConnection is returned when a query built without a DB is executed.
	ErrNoConnection = errors.New("query has no database connection")
)

// Usage errors. The builder panics with these at the offending call; Compile
// recovers render-time ones into a returned error.
var (
	// ErrValuesBeforeInsert is raised by Values on a query that is not an insert.
	ErrValuesBeforeInsert = errors.New("values() requires insert() to be called first")
	// ErrNoInsertColumns is raised by Insert without columns.
	ErrNoInsertColumns = errors.New("insert requires at least one column")
	// ErrMixedValuesSource is raised when row literals and a SELECT source are combined.
	ErrMixedValuesSource = errors.New("cannot mix row values and a query as insert source")
	// ErrUnionColumnCount is raised when UNION members select a different number of columns.
	ErrUnionColumnCount = errors.New("union members have different column counts")
	// ErrInvalidCondition is raised for unsupported condition values and operators.
	ErrInvalidCondition = errors.New("invalid condition")
	// ErrWrongQueryType is raised when a clause does not belong to the query type.
	ErrWrongQueryType = errors.New("clause not valid for query type")
	// ErrReservedPlaceholder is raised by Bind for names of the generated :cN form.
	ErrReservedPlaceholder = errors.New("placeholder name is reserved for generated bindings")
)

// UsageError carries a usage sentinel plus details. errors.Is matches the sentinel.
type UsageError struct {
	Err    error
	Detail string
}

func (e *UsageError) Error() string {
	if e.Detail == "" {
		return "quarry: " + e.Err.Error()
	}
	return "quarry: " + e.Err.Error() + ": " + e.Detail
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// panicf aborts a builder call with a usage error.
func panicf(sentinel error, format string, args ...any) {
	panic(&UsageError{Err: sentinel, Detail: fmt.Sprintf(format, args...)})
}

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
