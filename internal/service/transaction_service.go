package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dolaglobo/mmf-ledger/internal/auth"
	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/repository"
)

// AdjustmentKind selects the direction of a manual balance adjustment.
type AdjustmentKind string

const (
	AdjustCredit AdjustmentKind = "credit"
	AdjustDebit  AdjustmentKind = "debit"
)

type TransactionService interface {
	CreateDeposit(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.Transaction, error)
	ConfirmDeposit(ctx context.Context, ownerID, transactionID string) (*models.Transaction, error)
	VerifyDeposit(ctx context.Context, actor models.Actor, transactionID string, approve bool, note string) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, actor models.Actor, transactionID string, newStatus models.TransactionStatus, note string) (*models.Transaction, error)
	CreateWithdrawal(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.Transaction, *models.Account, error)
	AdjustBalance(ctx context.Context, actor models.Actor, ownerID string, kind AdjustmentKind, amount decimal.Decimal, reason string) (*models.Transaction, *models.Account, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Transaction, error)
	ListByStatus(ctx context.Context, actor models.Actor, status models.TransactionStatus, limit int) ([]*models.Transaction, error)
}

type TransactionServiceImpl struct {
	store         repository.Store
	minDeposit    decimal.Decimal
	minWithdrawal decimal.Decimal
	paybill       string
	logger        *slog.Logger
}

func NewTransactionService(store repository.Store, minDeposit, minWithdrawal decimal.Decimal, paybill string, logger *slog.Logger) *TransactionServiceImpl {
	return &TransactionServiceImpl{
		store:         store,
		minDeposit:    minDeposit,
		minWithdrawal: minWithdrawal,
		paybill:       paybill,
		logger:        logger,
	}
}

// CreateDeposit records a provisional deposit. The balance is untouched until
// an administrator verifies the customer's payment.
func (s *TransactionServiceImpl) CreateDeposit(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.Transaction, error) {
	if amount.LessThan(s.minDeposit) {
		return nil, errors.NewValidationError("amount",
			fmt.Sprintf("minimum deposit is KES %s", s.minDeposit.String()))
	}

	transaction := &models.Transaction{
		OwnerID:     ownerID,
		Type:        models.TypeDeposit,
		Amount:      amount,
		Status:      models.StatusPending,
		Description: "Deposit via M-Pesa Paybill " + s.paybill,
	}

	if err := s.store.Transactions().Insert(ctx, transaction); err != nil {
		s.logger.Error("failed to create deposit",
			"owner_id", ownerID,
			"amount", amount.String(),
			"error", err.Error(),
		)
		return nil, errors.NewStoreError("create deposit", err)
	}

	s.logger.Info("deposit initiated",
		"owner_id", ownerID,
		"transaction_id", transaction.ID,
		"amount", amount.String(),
	)
	return transaction, nil
}

// ConfirmDeposit moves the customer's own pending deposit into
// pending_verification once they report having paid. Still no balance effect.
func (s *TransactionServiceImpl) ConfirmDeposit(ctx context.Context, ownerID, transactionID string) (*models.Transaction, error) {
	var confirmed *models.Transaction

	err := s.store.ExecTx(ctx, func(st repository.Store) error {
		transaction, err := st.Transactions().GetOwnedForUpdate(ctx, transactionID, ownerID,
			models.TypeDeposit, models.StatusPending)
		if err != nil {
			return err
		}

		upd := repository.StatusUpdate{Status: models.StatusPendingVerification}
		if err := st.Transactions().UpdateStatus(ctx, transaction.ID, upd); err != nil {
			return err
		}

		transaction.Status = models.StatusPendingVerification
		confirmed = transaction
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit confirmed by customer",
		"owner_id", ownerID,
		"transaction_id", transactionID,
	)
	return confirmed, nil
}

// VerifyDeposit is the operator decision on a customer-reported payment.
// Approval credits the account; rejection finalizes the record as failed with
// no balance effect. The credit, the status change and the audit entry commit
// as one unit.
func (s *TransactionServiceImpl) VerifyDeposit(ctx context.Context, actor models.Actor, transactionID string, approve bool, note string) (*models.Transaction, error) {
	if !auth.Allowed(actor.Role, auth.OpVerifyDeposit) {
		return nil, errors.ErrUnauthorized
	}

	var verified *models.Transaction

	err := s.store.ExecTx(ctx, func(st repository.Store) error {
		transaction, err := st.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if transaction.Type != models.TypeDeposit || transaction.Status != models.StatusPendingVerification {
			return errors.ErrTransactionNotFound
		}

		now := time.Now().UTC()
		upd := repository.StatusUpdate{
			Note:       note,
			UpdatedBy:  actor.ID,
			VerifiedAt: &now,
			VerifiedBy: actor.ID,
		}

		if approve {
			if _, err := st.Accounts().AdjustBalance(ctx, transaction.OwnerID, transaction.Amount); err != nil {
				return err
			}
			upd.Status = models.StatusCompleted
			upd.CompletedAt = &now
		} else {
			upd.Status = models.StatusFailed
		}

		if err := st.Transactions().UpdateStatus(ctx, transaction.ID, upd); err != nil {
			return err
		}

		transaction.Status = upd.Status
		transaction.StatusNote = note
		transaction.VerifiedAt = &now
		transaction.VerifiedBy = actor.ID
		transaction.UpdatedBy = actor.ID
		if approve {
			transaction.CompletedAt = &now
		}
		verified = transaction

		return st.Audit().Append(ctx, &models.AuditLogEntry{
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			Action:     models.AuditActionVerifyDeposit,
			TargetType: models.TargetTransaction,
			TargetID:   transaction.ID,
			Details: map[string]any{
				"owner_id": transaction.OwnerID,
				"amount":   transaction.Amount.String(),
				"approved": approve,
				"note":     note,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit verified",
		"transaction_id", transactionID,
		"approved", approve,
		"actor_id", actor.ID,
	)
	return verified, nil
}

// transition describes the balance side-effect of one status change.
type transition struct {
	delta    decimal.Decimal
	reversal bool
}

// resolveTransition validates a status change against the per-type machine and
// returns its balance effect. Same-status re-issue is handled by the caller.
func resolveTransition(transaction *models.Transaction, newStatus models.TransactionStatus) (transition, error) {
	from := transaction.Status
	invalid := transition{}

	switch transaction.Type {
	case models.TypeDeposit:
		switch {
		case from == models.StatusPending && newStatus == models.StatusPendingVerification:
			return transition{}, nil
		case from == models.StatusPendingVerification && newStatus == models.StatusCompleted:
			return transition{delta: transaction.Amount}, nil
		case from == models.StatusPendingVerification &&
			(newStatus == models.StatusFailed || newStatus == models.StatusCancelled):
			return transition{}, nil
		case from == models.StatusCompleted &&
			(newStatus == models.StatusFailed || newStatus == models.StatusCancelled):
			return transition{delta: transaction.Amount.Neg(), reversal: true}, nil
		}
	case models.TypeWithdrawal:
		switch {
		case from == models.StatusPendingVerification && newStatus == models.StatusCompleted:
			// Funds were held at creation; completion records the external payout.
			return transition{}, nil
		case from == models.StatusPendingVerification &&
			(newStatus == models.StatusFailed || newStatus == models.StatusCancelled):
			return transition{delta: transaction.Amount}, nil
		}
	}

	return invalid, errors.NewInvalidTransitionError(transaction.Type, from, newStatus)
}

// UpdateStatus is the generic administrative transition. Re-issuing a
// transition whose target status already holds returns ErrConflict so the
// balance effect can never apply twice.
func (s *TransactionServiceImpl) UpdateStatus(ctx context.Context, actor models.Actor, transactionID string, newStatus models.TransactionStatus, note string) (*models.Transaction, error) {
	if !auth.Allowed(actor.Role, auth.OpUpdateTransactionStatus) {
		return nil, errors.ErrUnauthorized
	}
	if !newStatus.Valid() {
		return nil, errors.NewValidationError("status", "unknown transaction status")
	}

	var updated *models.Transaction

	err := s.store.ExecTx(ctx, func(st repository.Store) error {
		transaction, err := st.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if transaction.Status == newStatus {
			return errors.ErrConflict
		}

		tr, err := resolveTransition(transaction, newStatus)
		if err != nil {
			return err
		}

		if !tr.delta.IsZero() {
			if _, err := st.Accounts().AdjustBalance(ctx, transaction.OwnerID, tr.delta); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		upd := repository.StatusUpdate{
			Status:    newStatus,
			Note:      note,
			UpdatedBy: actor.ID,
		}
		if tr.reversal && note == "" {
			upd.Note = fmt.Sprintf("reversal of completed %s", transaction.Type)
		}
		if newStatus == models.StatusCompleted {
			upd.CompletedAt = &now
			// An admin completing a deposit stands in for the verify step.
			if transaction.Type == models.TypeDeposit {
				upd.VerifiedAt = &now
				upd.VerifiedBy = actor.ID
			}
		}

		if err := st.Transactions().UpdateStatus(ctx, transaction.ID, upd); err != nil {
			return err
		}

		previous := transaction.Status
		transaction.Status = newStatus
		transaction.UpdatedBy = actor.ID
		if upd.Note != "" {
			transaction.StatusNote = upd.Note
		}
		if upd.CompletedAt != nil {
			transaction.CompletedAt = upd.CompletedAt
		}
		if upd.VerifiedAt != nil {
			transaction.VerifiedAt = upd.VerifiedAt
			transaction.VerifiedBy = actor.ID
		}
		updated = transaction

		return st.Audit().Append(ctx, &models.AuditLogEntry{
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			Action:     models.AuditActionUpdateStatus,
			TargetType: models.TargetTransaction,
			TargetID:   transaction.ID,
			Details: map[string]any{
				"owner_id":    transaction.OwnerID,
				"amount":      transaction.Amount.String(),
				"from_status": string(previous),
				"to_status":   string(newStatus),
				"reversal":    tr.reversal,
				"note":        note,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction status updated",
		"transaction_id", transactionID,
		"status", string(newStatus),
		"actor_id", actor.ID,
	)
	return updated, nil
}

// CreateWithdrawal places a pessimistic hold: the balance is debited in the
// same serialized unit of work that records the withdrawal, so two racing
// withdrawals can never both succeed against one covering balance.
func (s *TransactionServiceImpl) CreateWithdrawal(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.Transaction, *models.Account, error) {
	if amount.LessThan(s.minWithdrawal) {
		return nil, nil, errors.NewValidationError("amount",
			fmt.Sprintf("minimum withdrawal is KES %s", s.minWithdrawal.String()))
	}

	var (
		transaction *models.Transaction
		account     *models.Account
	)

	err := s.store.ExecTx(ctx, func(st repository.Store) error {
		updated, err := st.Accounts().AdjustBalance(ctx, ownerID, amount.Neg())
		if err != nil {
			return err
		}
		account = updated

		transaction = &models.Transaction{
			OwnerID:     ownerID,
			Type:        models.TypeWithdrawal,
			Amount:      amount,
			Status:      models.StatusPendingVerification,
			Description: "Withdrawal to M-Pesa",
		}
		return st.Transactions().Insert(ctx, transaction)
	})
	if err != nil {
		if errors.IsInsufficientFunds(err) {
			s.logger.Warn("withdrawal rejected for insufficient balance",
				"owner_id", ownerID,
				"amount", amount.String(),
			)
		}
		return nil, nil, err
	}

	s.logger.Info("withdrawal hold placed",
		"owner_id", ownerID,
		"transaction_id", transaction.ID,
		"amount", amount.String(),
	)
	return transaction, account, nil
}

// AdjustBalance is the super_admin manual correction. The balance effect, the
// completed transaction record and the audit entry with pre/post balances
// commit atomically.
func (s *TransactionServiceImpl) AdjustBalance(ctx context.Context, actor models.Actor, ownerID string, kind AdjustmentKind, amount decimal.Decimal, reason string) (*models.Transaction, *models.Account, error) {
	if !auth.Allowed(actor.Role, auth.OpAdjustBalance) {
		return nil, nil, errors.ErrUnauthorized
	}
	if kind != AdjustCredit && kind != AdjustDebit {
		return nil, nil, errors.NewValidationError("kind", "must be credit or debit")
	}
	if !amount.IsPositive() {
		return nil, nil, errors.NewValidationError("amount", "must be positive")
	}

	var (
		transaction *models.Transaction
		account     *models.Account
	)

	err := s.store.ExecTx(ctx, func(st repository.Store) error {
		before, err := st.Accounts().GetByOwnerIDForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}

		delta := amount
		transactionType := models.TypeAdminCredit
		if kind == AdjustDebit {
			delta = amount.Neg()
			transactionType = models.TypeAdminDebit
		}

		updated, err := st.Accounts().AdjustBalance(ctx, ownerID, delta)
		if err != nil {
			return err
		}
		account = updated

		now := time.Now().UTC()
		transaction = &models.Transaction{
			OwnerID:     ownerID,
			Type:        transactionType,
			Amount:      amount,
			Status:      models.StatusCompleted,
			Description: reason,
			CompletedAt: &now,
			UpdatedBy:   actor.ID,
		}
		if err := st.Transactions().Insert(ctx, transaction); err != nil {
			return err
		}

		return st.Audit().Append(ctx, &models.AuditLogEntry{
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			Action:     models.AuditActionAdjustBalance,
			TargetType: models.TargetAccount,
			TargetID:   account.ID,
			Details: map[string]any{
				"owner_id":       ownerID,
				"kind":           string(kind),
				"amount":         amount.String(),
				"reason":         reason,
				"balance_before": before.Balance.String(),
				"balance_after":  account.Balance.String(),
				"transaction_id": transaction.ID,
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("balance adjusted",
		"owner_id", ownerID,
		"kind", string(kind),
		"amount", amount.String(),
		"actor_id", actor.ID,
	)
	return transaction, account, nil
}

func (s *TransactionServiceImpl) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.store.Transactions().ListByOwner(ctx, ownerID, limit)
}

func (s *TransactionServiceImpl) ListByStatus(ctx context.Context, actor models.Actor, status models.TransactionStatus, limit int) ([]*models.Transaction, error) {
	if !auth.Allowed(actor.Role, auth.OpViewTransactions) {
		return nil, errors.ErrUnauthorized
	}
	if !status.Valid() {
		return nil, errors.NewValidationError("status", "unknown transaction status")
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.store.Transactions().ListByStatus(ctx, status, limit)
}
