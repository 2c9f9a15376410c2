// Package store defines the transactional record-store contract shared by the
// Postgres implementation (pgstore) and the in-memory implementation used in
// tests (memstore).
//
// All business mutations happen inside WithinTx: the callback either returns
// nil and every write becomes visible atomically, or returns an error and
// nothing is committed. LockCase re-fetches a case under an exclusive row
// lock; any field read with intent to conditionally mutate shared state (the
// CE response counter in particular) must be re-read through LockCase
// immediately before the write.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/censusrm/caseprocessor/internal/domain"
)

var (
	// ErrNotFound is returned by lookups when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrNilDatabaseConnection is returned by store constructors when no
	// database handle is supplied.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
)

// Store opens transactions against the record store.
type Store interface {
	// WithinTx runs fn inside a single transaction. A nil return from fn
	// commits; any error rolls back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of record-store operations available inside a transaction.
type Tx interface {
	// CaseByID looks up a case by its id. Returns ErrNotFound if absent.
	CaseByID(ctx context.Context, id uuid.UUID) (*domain.Case, error)

	// CaseByRef looks up a case by its 8-digit public case reference.
	CaseByRef(ctx context.Context, caseRef int64) (*domain.Case, error)

	// LockCase re-fetches a case under an exclusive row lock. The lock is
	// held until the surrounding transaction commits or rolls back,
	// serialising all mutations of that row across concurrent workers.
	LockCase(ctx context.Context, id uuid.UUID) (*domain.Case, error)

	// LinkByQID looks up a uac/qid link by questionnaire id.
	LinkByQID(ctx context.Context, qid string) (*domain.UacQidLink, error)

	InsertCase(ctx context.Context, c *domain.Case) error
	UpdateCase(ctx context.Context, c *domain.Case) error
	InsertLink(ctx context.Context, l *domain.UacQidLink) error
	UpdateLink(ctx context.Context, l *domain.UacQidLink) error

	// AppendLedger inserts an audit row. Ledger rows are insert-only.
	AppendLedger(ctx context.Context, e *domain.LedgerEvent) error

	// NextCaseSequence allocates the next case sequence number. Values are
	// monotonic and never reused, even across rolled-back transactions.
	NextCaseSequence(ctx context.Context) (int64, error)

	// NextUniqueQidNumber allocates the next questionnaire id unique number.
	NextUniqueQidNumber(ctx context.Context) (int64, error)
}
