// Package dialect names the database dialects hydrate can load rows from
// and the minimal driver contract the loader runs queries through.
package dialect

import "context"

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Querier wraps the Query method. args is a []any and v is the
// destination, a *sql.Rows for database/sql drivers.
type Querier interface {
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the database connection the loader reads from.
type Driver interface {
	Querier
	// Tx starts a transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a transaction.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}
