// Package quarry is a portable SQL query builder and schema reflector for
// PostgreSQL, MySQL, SQLite and SQL Server. Queries are composed from
// clauses and expression trees, rendered with named placeholders, and
// executed through database/sql with the placeholders rewritten for the
// driver. The schema side describes live tables into an abstract model and
// renders that model back as DDL for any supported dialect.
package quarry

import (
	"github.com/coregx/quarry/internal/cache"
	"github.com/coregx/quarry/internal/core"
	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/logger"
	"github.com/coregx/quarry/internal/reflector"
	"github.com/coregx/quarry/internal/schema"
	"github.com/coregx/quarry/internal/tracer"
	"github.com/coregx/quarry/internal/types"
)

type (
	// DB runs built queries with statement caching, logging and tracing.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// Query is a fluent SELECT, INSERT, UPDATE or DELETE builder.
	Query = core.Query
	// Statement is a rendered query: SQL text plus bindings in order.
	Statement = core.Statement
	// Params binds :name tokens of raw SQL fragments.
	Params = core.Params
	// QueryEvent is passed to a QueryHook after every execution.
	QueryEvent = core.QueryEvent
	// QueryHook observes executed statements.
	QueryHook = core.QueryHook
	// UsageError reports builder misuse.
	UsageError = core.UsageError

	// Expression is a node of a condition or value tree.
	Expression = core.Expression
	// HashExp maps "column [operator]" keys to values, AND-joined.
	HashExp = core.HashExp
	// Conjunction joins expressions with AND or OR.
	Conjunction = core.Conjunction
	// Condition builds an expression from a fresh conjunction.
	Condition = core.Condition
	// LikeExp is a LIKE expression with escaping.
	LikeExp = core.LikeExp
	// CaseExp is a CASE expression.
	CaseExp = core.CaseExp
	// FuncExp is a function call expression.
	FuncExp = core.FuncExp

	// Dialect translates statements and schema for one product.
	Dialect = dialects.Dialect
	// DialectConfig configures a dialect.
	DialectConfig = dialects.Config
	// Table is the abstract description of a table.
	Table = schema.Table
	// Column describes one table column.
	Column = schema.Column
	// Constraint is a primary, unique or foreign key.
	Constraint = schema.Constraint
	// Index is a plain or fulltext index.
	Index = schema.Index
	// Reference is the target of a foreign key.
	Reference = schema.Reference
	// TableDefinition is a serializable snapshot of a Table.
	TableDefinition = schema.Definition

	// Collection describes the tables of one connection.
	Collection = reflector.Collection
	// CachedCollection keeps described tables in a Store.
	CachedCollection = reflector.CachedCollection
	// Store is the key-value backend of a CachedCollection.
	Store = reflector.Store

	// TypeMap converts values between Go and the driver per abstract type.
	TypeMap = types.Map
	// Logger receives execution logs.
	Logger = logger.Logger
	// Tracer starts spans around executions and catalog reads.
	Tracer = tracer.Tracer
)

// Abstract column types.
const (
	TypeInteger    = types.Integer
	TypeBigInteger = types.BigInteger
	TypeBoolean    = types.Boolean
	TypeFloat      = types.Float
	TypeDecimal    = types.Decimal
	TypeString     = types.String
	TypeText       = types.Text
	TypeDate       = types.Date
	TypeTime       = types.Time
	TypeDateTime   = types.DateTime
	TypeTimestamp  = types.Timestamp
	TypeBinary     = types.Binary
	TypeUUID       = types.UUID
	TypeLiteral    = types.Literal
)

// Column nullability and constraint kinds.
const (
	Nullable          = schema.Nullable
	NotNull           = schema.NotNull
	ConstraintPrimary = schema.ConstraintPrimary
	ConstraintUnique  = schema.ConstraintUnique
	ConstraintForeign = schema.ConstraintForeign
)

// Errors.
var (
	ErrNoRows              = core.ErrNoRows
	ErrMissingParameter    = core.ErrMissingParameter
	ErrNoConnection        = core.ErrNoConnection
	ErrValuesBeforeInsert  = core.ErrValuesBeforeInsert
	ErrNoInsertColumns     = core.ErrNoInsertColumns
	ErrMixedValuesSource   = core.ErrMixedValuesSource
	ErrUnionColumnCount    = core.ErrUnionColumnCount
	ErrInvalidCondition    = core.ErrInvalidCondition
	ErrWrongQueryType      = core.ErrWrongQueryType
	ErrReservedPlaceholder = core.ErrReservedPlaceholder
	ErrTableNotFound       = reflector.ErrTableNotFound
	ErrUnsupportedDialect  = dialects.ErrUnsupportedDialect
)

// Re-export core functions.
var (
	Open                  = core.Open
	WrapDB                = core.WrapDB
	NewQuery              = core.NewQuery
	IsUsageError          = core.IsUsageError
	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithLogger            = core.WithLogger
	WithSensitiveFields   = core.WithSensitiveFields
	WithTracer            = core.WithTracer
	WithQueryHook         = core.WithQueryHook
	WithSchema            = core.WithSchema
	WithRestrictFallback  = core.WithRestrictFallback
	WithAutoQuote         = core.WithAutoQuote
	WithTypes             = core.WithTypes

	// Expression builders
	NewExp         = core.NewExp
	Ident          = core.Ident
	Compare        = core.Compare
	Eq             = core.Eq
	NotEq          = core.NotEq
	GreaterThan    = core.GreaterThan
	LessThan       = core.LessThan
	GreaterOrEqual = core.GreaterOrEqual
	LessOrEqual    = core.LessOrEqual
	IsNull         = core.IsNull
	IsNotNull      = core.IsNotNull
	In             = core.In
	NotIn          = core.NotIn
	Between        = core.Between
	NotBetween     = core.NotBetween
	Like           = core.Like
	NotLike        = core.NotLike
	OrLike         = core.OrLike
	And            = core.And
	Or             = core.Or
	Not            = core.Not
	Exists         = core.Exists
	NotExists      = core.NotExists
	Case           = core.Case
	CaseWhen       = core.CaseWhen
	Func           = core.Func

	// Schema
	NewTable            = schema.NewTable
	FromDefinition      = schema.FromDefinition
	GetDialect          = dialects.GetDialect
	NewDialect          = dialects.NewDialect
	NewCollection       = reflector.NewCollection
	NewCachedCollection = reflector.NewCachedCollection
	NewMemoryStore      = cache.NewMemoryStore
	NewFileStore        = cache.NewFileStore

	// Observability
	NewLogger      = logger.New
	NewSlogAdapter = logger.NewSlogAdapter
	NewOtelTracer  = tracer.NewOtelTracer
)
