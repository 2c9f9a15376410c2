package pgstore

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/store"
	"github.com/censusrm/caseprocessor/internal/store/pgstore/internal/adapters"
)

const logMsgRollbackFailed = "failed to roll back transaction"

var (
	// ErrBeginTxFailed is returned when a transaction cannot be started.
	ErrBeginTxFailed = errors.New("failed to begin transaction")

	// ErrCommitFailed is returned when a transaction cannot be committed.
	ErrCommitFailed = errors.New("failed to commit transaction")

	// ErrBuildQueryFailed is returned when SQL generation fails.
	ErrBuildQueryFailed = errors.New("failed to build query")

	// ErrQueryFailed is returned when query execution fails.
	ErrQueryFailed = errors.New("database query execution failed")

	// ErrExecFailed is returned when statement execution fails.
	ErrExecFailed = errors.New("database statement execution failed")

	// ErrScanFailed is returned when scanning a result row fails.
	ErrScanFailed = errors.New("failed to scan database row")

	// ErrUnexpectedRowCount is returned when an insert or update affects a
	// number of rows other than exactly one.
	ErrUnexpectedRowCount = errors.New("unexpected number of rows affected")
)

// TableNames holds the table and sequence names used by the store.
type TableNames struct {
	Cases      string
	Links      string
	Ledger     string
	CaseSeq    string
	QidUniqSeq string
}

// DefaultTableNames returns the production schema names.
func DefaultTableNames() TableNames {
	return TableNames{
		Cases:      "cases",
		Links:      "uac_qid_link",
		Ledger:     "event_ledger",
		CaseSeq:    "case_sequence",
		QidUniqSeq: "qid_unique_number_seq",
	}
}

func (t TableNames) validate() error {
	if t.Cases == "" || t.Links == "" || t.Ledger == "" || t.CaseSeq == "" || t.QidUniqSeq == "" {
		return errors.New("table names must not be empty")
	}

	return nil
}

// Store implements store.Store on Postgres.
type Store struct {
	db     adapters.DBAdapter
	tables TableNames
	logger *zap.Logger
}

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithLogger sets the logger for the Store.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}

		s.logger = logger

		return nil
	}
}

// WithTableNames overrides the default table and sequence names.
func WithTableNames(tables TableNames) Option {
	return func(s *Store) error {
		if err := tables.validate(); err != nil {
			return err
		}

		s.tables = tables

		return nil
	}
}

// NewStoreFromPGXPool creates a new Store using a pgx pool with optional configuration.
func NewStoreFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Store, error) {
	if pool == nil {
		return nil, store.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(pool), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, store.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, store.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{
		db:     db,
		tables: DefaultTableNames(),
		logger: zap.NewNop(),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// WithinTx runs fn inside a single database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	dbTx, beginErr := s.db.Begin(ctx)
	if beginErr != nil {
		return errors.Join(ErrBeginTxFailed, beginErr)
	}

	tx := &Tx{db: dbTx, tables: s.tables, logger: s.logger}

	if fnErr := fn(ctx, tx); fnErr != nil {
		if rbErr := dbTx.Rollback(ctx); rbErr != nil {
			s.logger.Warn(logMsgRollbackFailed, zap.Error(rbErr))
		}

		return fnErr
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		return errors.Join(ErrCommitFailed, commitErr)
	}

	return nil
}
