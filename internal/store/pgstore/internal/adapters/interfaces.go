// Package adapters isolates pgstore from the concrete database driver.
// Implementations exist for pgxpool.Pool, database/sql and sqlx; pgstore only
// ever sees these interfaces.
package adapters

import "context"

// DBAdapter opens transactions against the underlying database.
type DBAdapter interface {
	Begin(ctx context.Context) (DBTx, error)
}

// DBTx defines the database operations available inside one transaction.
type DBTx interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
