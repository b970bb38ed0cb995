package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dolaglobo/mmf-ledger/internal/auth"
	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/repository"
)

type AdminService interface {
	UpdateCustomerContact(ctx context.Context, actor models.Actor, customerID string, req *models.UpdateCustomerRequest) (*models.User, error)
	ListAuditLog(ctx context.Context, actor models.Actor, limit int) ([]*models.AuditLogEntry, error)
	ListStatements(ctx context.Context, actor models.Actor, status models.StatementStatus, limit int) ([]*models.StatementRequest, error)
	ProcessStatement(ctx context.Context, actor models.Actor, requestID string, req *models.ProcessStatementRequest) (*models.StatementRequest, error)
}

type AdminServiceImpl struct {
	store  repository.Store
	logger *slog.Logger
}

func NewAdminService(store repository.Store, logger *slog.Logger) *AdminServiceImpl {
	return &AdminServiceImpl{store: store, logger: logger}
}

// UpdateCustomerContact edits the customer's name and/or phone and records the
// change in the audit trail within the same unit of work.
func (s *AdminServiceImpl) UpdateCustomerContact(ctx context.Context, actor models.Actor, customerID string, req *models.UpdateCustomerRequest) (*models.User, error) {
	if !auth.Allowed(actor.Role, auth.OpEditCustomer) {
		return nil, errors.ErrUnauthorized
	}
	if req.Name == nil && req.Phone == nil {
		return nil, errors.NewValidationError("body", "nothing to update")
	}

	var name, phone string
	if req.Name != nil {
		name = *req.Name
	}
	if req.Phone != nil {
		normalized, err := NormalizePhone(*req.Phone)
		if err != nil {
			return nil, err
		}
		phone = normalized
	}

	var updated *models.User
	err := s.store.ExecTx(ctx, func(st repository.Store) error {
		before, err := st.Users().GetByID(ctx, customerID)
		if err != nil {
			return err
		}
		if before.Role != models.RoleCustomer {
			return errors.ErrCustomerNotFound
		}

		updated, err = st.Users().UpdateContact(ctx, customerID, name, phone)
		if err != nil {
			return err
		}

		return st.Audit().Append(ctx, &models.AuditLogEntry{
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			Action:     models.AuditActionUpdateCustomer,
			TargetType: models.TargetCustomer,
			TargetID:   customerID,
			Details: map[string]any{
				"name_before":  before.Name,
				"name_after":   updated.Name,
				"phone_before": before.Phone,
				"phone_after":  updated.Phone,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("customer contact updated", "customer_id", customerID, "actor_id", actor.ID)
	return updated, nil
}

func (s *AdminServiceImpl) ListAuditLog(ctx context.Context, actor models.Actor, limit int) ([]*models.AuditLogEntry, error) {
	if !auth.Allowed(actor.Role, auth.OpReadAuditLog) {
		return nil, errors.ErrUnauthorized
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.store.Audit().List(ctx, limit)
}

func (s *AdminServiceImpl) ListStatements(ctx context.Context, actor models.Actor, status models.StatementStatus, limit int) ([]*models.StatementRequest, error) {
	if !auth.Allowed(actor.Role, auth.OpProcessStatement) {
		return nil, errors.ErrUnauthorized
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if status == "" {
		status = models.StatementPending
	}
	return s.store.Statements().ListByStatus(ctx, status, limit)
}

// ProcessStatement finalizes a pending statement request. Re-processing an
// already handled request returns ErrConflict.
func (s *AdminServiceImpl) ProcessStatement(ctx context.Context, actor models.Actor, requestID string, req *models.ProcessStatementRequest) (*models.StatementRequest, error) {
	if !auth.Allowed(actor.Role, auth.OpProcessStatement) {
		return nil, errors.ErrUnauthorized
	}
	if req.Status != models.StatementProcessed && req.Status != models.StatementRejected {
		return nil, errors.NewValidationError("status", "must be processed or rejected")
	}

	var processed *models.StatementRequest
	err := s.store.ExecTx(ctx, func(st repository.Store) error {
		request, err := st.Statements().GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != models.StatementPending {
			return errors.ErrConflict
		}

		now := time.Now().UTC()
		if err := st.Statements().MarkProcessed(ctx, requestID, req.Status, req.Note, actor.ID, now); err != nil {
			return err
		}

		request.Status = req.Status
		request.Note = req.Note
		request.ProcessedAt = &now
		request.ProcessedBy = actor.ID
		processed = request

		return st.Audit().Append(ctx, &models.AuditLogEntry{
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			Action:     models.AuditActionProcessStatement,
			TargetType: models.TargetStatement,
			TargetID:   requestID,
			Details: map[string]any{
				"owner_id": request.OwnerID,
				"status":   string(req.Status),
				"note":     req.Note,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("statement request processed",
		"request_id", requestID,
		"status", string(req.Status),
		"actor_id", actor.ID,
	)
	return processed, nil
}
