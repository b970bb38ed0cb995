package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dolaglobo/mmf-ledger/internal/models"
)

type AuditRepository interface {
	// Append writes one immutable entry. Callers run it inside the same ExecTx
	// as the mutation it records so the trail is durable before the operation
	// reports success.
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	List(ctx context.Context, limit int) ([]*models.AuditLogEntry, error)
}

type PostgresAuditRepository struct {
	q DBTX
}

func (r *PostgresAuditRepository) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	var details []byte
	if entry.Details != nil {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	query := `INSERT INTO audit_logs (id, actor_id, actor_name, action, target_type, target_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.q.QueryRowContext(ctx, query, entry.ID, entry.ActorID, entry.ActorName,
		entry.Action, entry.TargetType, entry.TargetID, details).
		Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (r *PostgresAuditRepository) List(ctx context.Context, limit int) ([]*models.AuditLogEntry, error) {
	query := `SELECT id, actor_id, actor_name, action, target_type, target_id, details, created_at
		FROM audit_logs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		entry := &models.AuditLogEntry{}
		var details []byte
		err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorName, &entry.Action,
			&entry.TargetType, &entry.TargetID, &details, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if details != nil {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over audit entries: %w", err)
	}
	return entries, nil
}
