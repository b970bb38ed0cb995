package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
)

// StatusUpdate carries the mutable fields of a status transition. Nil/empty
// fields keep their stored values.
type StatusUpdate struct {
	Status      models.TransactionStatus
	Note        string
	UpdatedBy   string
	CompletedAt *time.Time
	VerifiedAt  *time.Time
	VerifiedBy  string
}

type TransactionRepository interface {
	Insert(ctx context.Context, transaction *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	// GetByIDForUpdate locks the transaction row so a transition applies
	// exactly once under concurrent admin actions. Only meaningful in ExecTx.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	// GetOwnedForUpdate locks and returns the transaction only if it matches
	// owner, type and status; otherwise ErrTransactionNotFound.
	GetOwnedForUpdate(ctx context.Context, id, ownerID string, typ models.TransactionType, status models.TransactionStatus) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Transaction, error)
	ListByStatus(ctx context.Context, status models.TransactionStatus, limit int) ([]*models.Transaction, error)
}

type PostgresTransactionRepository struct {
	q DBTX
}

const transactionColumns = `id, owner_id, type, amount, status, description, status_note,
	created_at, completed_at, verified_at, verified_by, updated_by`

func scanTransaction(scan func(dest ...any) error) (*models.Transaction, error) {
	t := &models.Transaction{}
	var completedAt, verifiedAt sql.NullTime
	err := scan(&t.ID, &t.OwnerID, &t.Type, &t.Amount, &t.Status, &t.Description,
		&t.StatusNote, &t.CreatedAt, &completedAt, &verifiedAt, &t.VerifiedBy, &t.UpdatedBy)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if verifiedAt.Valid {
		t.VerifiedAt = &verifiedAt.Time
	}
	return t, nil
}

func (r *PostgresTransactionRepository) Insert(ctx context.Context, transaction *models.Transaction) error {
	if transaction.ID == "" {
		transaction.ID = uuid.New().String()
	}

	query := `INSERT INTO transactions (id, owner_id, type, amount, status, description,
			status_note, completed_at, verified_at, verified_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.q.QueryRowContext(ctx, query,
		transaction.ID, transaction.OwnerID, transaction.Type, transaction.Amount,
		transaction.Status, transaction.Description, transaction.StatusNote,
		transaction.CompletedAt, transaction.VerifiedAt, transaction.VerifiedBy,
		transaction.UpdatedBy,
	).Scan(&transaction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresTransactionRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PostgresTransactionRepository) GetOwnedForUpdate(ctx context.Context, id, ownerID string, typ models.TransactionType, status models.TransactionStatus) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE id = $1 AND owner_id = $2 AND type = $3 AND status = $4 FOR UPDATE`
	return r.getOne(ctx, query, id, ownerID, typ, status)
}

func (r *PostgresTransactionRepository) getOne(ctx context.Context, query string, args ...any) (*models.Transaction, error) {
	row := r.q.QueryRowContext(ctx, query, args...)
	transaction, err := scanTransaction(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return transaction, nil
}

func (r *PostgresTransactionRepository) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error {
	query := `UPDATE transactions
		SET status = $1,
			status_note = CASE WHEN $2 <> '' THEN $2 ELSE status_note END,
			updated_by = CASE WHEN $3 <> '' THEN $3 ELSE updated_by END,
			completed_at = COALESCE($4, completed_at),
			verified_at = COALESCE($5, verified_at),
			verified_by = CASE WHEN $6 <> '' THEN $6 ELSE verified_by END
		WHERE id = $7`

	result, err := r.q.ExecContext(ctx, query, upd.Status, upd.Note, upd.UpdatedBy,
		upd.CompletedAt, upd.VerifiedAt, upd.VerifiedBy, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after status update: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrTransactionNotFound
	}
	return nil
}

func (r *PostgresTransactionRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, ownerID, limit)
}

func (r *PostgresTransactionRepository) ListByStatus(ctx context.Context, status models.TransactionStatus, limit int) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, status, limit)
}

func (r *PostgresTransactionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}
	return transactions, nil
}
