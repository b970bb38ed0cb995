package repository

import (
	"context"
	"database/sql"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx, so every
// repository works both standalone and inside a unit of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the ledger store contract consumed by the services. ExecTx runs the
// closure against a store bound to a single serializable DB transaction; all
// check-then-act sequences on an account must happen inside one ExecTx.
type Store interface {
	Users() UserRepository
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Audit() AuditRepository
	Statements() StatementRepository
	ExecTx(ctx context.Context, fn func(Store) error) error
}

type SQLStore struct {
	db *sql.DB
	q  DBTX
}

func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, q: db}
}

func (s *SQLStore) Users() UserRepository               { return &PostgresUserRepository{q: s.q} }
func (s *SQLStore) Accounts() AccountRepository         { return &PostgresAccountRepository{q: s.q} }
func (s *SQLStore) Transactions() TransactionRepository { return &PostgresTransactionRepository{q: s.q} }
func (s *SQLStore) Audit() AuditRepository              { return &PostgresAuditRepository{q: s.q} }
func (s *SQLStore) Statements() StatementRepository     { return &PostgresStatementRepository{q: s.q} }

// ExecTx begins a serializable transaction, runs fn against a transaction-bound
// store and commits. A nested call joins the enclosing transaction.
func (s *SQLStore) ExecTx(ctx context.Context, fn func(Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.NewStoreError("begin", err)
	}

	if err := fn(&SQLStore{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return errors.NewStoreError("rollback", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("commit", err)
	}
	return nil
}
