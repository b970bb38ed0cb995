package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/repository"
)

type AccountService interface {
	GetAccount(ctx context.Context, ownerID string) (*models.AccountResponse, error)
	RequestStatement(ctx context.Context, ownerID string, req *models.CreateStatementRequest) (*models.StatementRequest, error)
	ListStatements(ctx context.Context, ownerID string, limit int) ([]*models.StatementRequest, error)
}

type AccountServiceImpl struct {
	store      repository.Store
	annualRate decimal.Decimal
	logger     *slog.Logger
}

func NewAccountService(store repository.Store, annualRate decimal.Decimal, logger *slog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		store:      store,
		annualRate: annualRate,
		logger:     logger,
	}
}

// GetAccount returns the balance snapshot with the projected daily interest
// and annual yield at the configured rate.
func (s *AccountServiceImpl) GetAccount(ctx context.Context, ownerID string) (*models.AccountResponse, error) {
	account, err := s.store.Accounts().GetByOwnerID(ctx, ownerID)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("account not found", "owner_id", ownerID)
			return nil, err
		}
		s.logger.Error("failed to get account", "owner_id", ownerID, "error", err.Error())
		return nil, err
	}

	dailyRate := s.annualRate.Div(decimal.NewFromInt(365))
	return &models.AccountResponse{
		ID:                   account.ID,
		OwnerID:              account.OwnerID,
		Balance:              account.Balance,
		TotalInterestEarned:  account.TotalInterestEarned,
		DailyInterest:        account.Balance.Mul(dailyRate).Round(6),
		EstimatedAnnualYield: account.Balance.Mul(s.annualRate).Round(6),
		LastInterestDate:     account.LastInterestDate,
	}, nil
}

func (s *AccountServiceImpl) RequestStatement(ctx context.Context, ownerID string, req *models.CreateStatementRequest) (*models.StatementRequest, error) {
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() {
		return nil, errors.NewValidationError("period", "period_start and period_end are required")
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, errors.NewValidationError("period", "period_end must be after period_start")
	}

	request := &models.StatementRequest{
		OwnerID:     ownerID,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Status:      models.StatementPending,
	}
	if err := s.store.Statements().Insert(ctx, request); err != nil {
		s.logger.Error("failed to create statement request", "owner_id", ownerID, "error", err.Error())
		return nil, errors.NewStoreError("create statement request", err)
	}

	s.logger.Info("statement requested", "owner_id", ownerID, "request_id", request.ID)
	return request, nil
}

func (s *AccountServiceImpl) ListStatements(ctx context.Context, ownerID string, limit int) ([]*models.StatementRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.store.Statements().ListByOwner(ctx, ownerID, limit)
}
