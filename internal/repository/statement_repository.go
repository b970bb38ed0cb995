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

type StatementRepository interface {
	Insert(ctx context.Context, request *models.StatementRequest) error
	GetByIDForUpdate(ctx context.Context, id string) (*models.StatementRequest, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.StatementRequest, error)
	ListByStatus(ctx context.Context, status models.StatementStatus, limit int) ([]*models.StatementRequest, error)
	MarkProcessed(ctx context.Context, id string, status models.StatementStatus, note, processedBy string, processedAt time.Time) error
}

type PostgresStatementRepository struct {
	q DBTX
}

const statementColumns = `id, owner_id, period_start, period_end, status, note, created_at, processed_at, processed_by`

func (r *PostgresStatementRepository) Insert(ctx context.Context, request *models.StatementRequest) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}

	query := `INSERT INTO statement_requests (id, owner_id, period_start, period_end, status, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.q.QueryRowContext(ctx, query, request.ID, request.OwnerID,
		request.PeriodStart, request.PeriodEnd, request.Status, request.Note).
		Scan(&request.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert statement request: %w", err)
	}
	return nil
}

func (r *PostgresStatementRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.StatementRequest, error) {
	query := `SELECT ` + statementColumns + ` FROM statement_requests WHERE id = $1 FOR UPDATE`

	request := &models.StatementRequest{}
	var processedAt sql.NullTime
	err := r.q.QueryRowContext(ctx, query, id).Scan(&request.ID, &request.OwnerID,
		&request.PeriodStart, &request.PeriodEnd, &request.Status, &request.Note,
		&request.CreatedAt, &processedAt, &request.ProcessedBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrStatementNotFound
		}
		return nil, fmt.Errorf("failed to get statement request: %w", err)
	}
	if processedAt.Valid {
		request.ProcessedAt = &processedAt.Time
	}
	return request, nil
}

func (r *PostgresStatementRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.StatementRequest, error) {
	query := `SELECT ` + statementColumns + ` FROM statement_requests
		WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, ownerID, limit)
}

func (r *PostgresStatementRepository) ListByStatus(ctx context.Context, status models.StatementStatus, limit int) ([]*models.StatementRequest, error) {
	query := `SELECT ` + statementColumns + ` FROM statement_requests
		WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, status, limit)
}

func (r *PostgresStatementRepository) list(ctx context.Context, query string, args ...any) ([]*models.StatementRequest, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.StatementRequest
	for rows.Next() {
		request := &models.StatementRequest{}
		var processedAt sql.NullTime
		err := rows.Scan(&request.ID, &request.OwnerID, &request.PeriodStart,
			&request.PeriodEnd, &request.Status, &request.Note, &request.CreatedAt,
			&processedAt, &request.ProcessedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statement request: %w", err)
		}
		if processedAt.Valid {
			request.ProcessedAt = &processedAt.Time
		}
		requests = append(requests, request)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over statement requests: %w", err)
	}
	return requests, nil
}

func (r *PostgresStatementRepository) MarkProcessed(ctx context.Context, id string, status models.StatementStatus, note, processedBy string, processedAt time.Time) error {
	query := `UPDATE statement_requests
		SET status = $1, note = $2, processed_by = $3, processed_at = $4
		WHERE id = $5`

	result, err := r.q.ExecContext(ctx, query, status, note, processedBy, processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark statement request processed: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after statement update: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrStatementNotFound
	}
	return nil
}
