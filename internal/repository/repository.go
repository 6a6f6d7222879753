// Package repository provides data access for the dating service.
//
// # Overview
//
// BaseRepository is a generic, table-bound data-access type configured by an
// EntityConfig value. It builds parameterized SQL for lookups, writes,
// searches, pagination and many-to-many links. Domain repositories embed a
// BaseRepository for their table and add hand-written joins and aggregations.
//
// # Identifier Trust Boundary
//
// Column and table names are interpolated into SQL text; values never are.
// Every identifier reaching SQL text is checked to be a plain identifier and,
// when the EntityConfig lists Columns, to be one of them. Relationship tables
// are further restricted to a fixed allow-list. Violations are reported as
// domain.ValidationError before any query executes.
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// Not-found lookups return a nil entity and a nil error. Database failures are
// wrapped with context using fmt.Errorf with the %w verb, so pgx and pgconn
// errors stay reachable through errors.Is and errors.As.
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass the transaction from database.DB.WithTransaction to WithDB for atomic
// operations:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    repos := repos.WithDB(tx)
//	    _, err := repos.Likes.Like(ctx, likerID, likedID)
//	    return err
//	})
package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/internal/pagination"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// *database.DB, pgx.Tx and pgxmock pools all satisfy it.
type DBTX = database.DBTX

// QueryObserver receives the outcome of every statement a repository runs.
type QueryObserver interface {
	ObserveQuery(table, operation string, duration time.Duration, err error)
}

type options struct {
	logger   zerolog.Logger
	observer QueryObserver
	limits   pagination.Limits
}

func defaultOptions() options {
	return options{
		logger: zerolog.Nop(),
		limits: pagination.DefaultLimits,
	}
}

// Option configures a repository.
type Option func(*options)

// WithLogger logs every statement at trace level. Argument values are never logged.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver reports statement durations and failures to observer.
func WithObserver(observer QueryObserver) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithLimits sets the page size defaults used by paginated operations.
func WithLimits(limits pagination.Limits) Option {
	return func(o *options) {
		o.limits = limits
	}
}

// PostgreSQL error codes callers translate into domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err carries a unique violation and
// returns the violated constraint name.
func IsUniqueViolation(err error) (string, bool) {
	return pgCode(err, pgUniqueViolation)
}

// IsForeignKeyViolation reports whether err carries a foreign key violation
// and returns the violated constraint name.
func IsForeignKeyViolation(err error) (string, bool) {
	return pgCode(err, pgForeignKeyViolation)
}

func pgCode(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}
