package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dolaglobo/mmf-ledger/internal/auth"
	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/repository"
)

// interestScale is the number of decimal places an interest credit is rounded
// to before it hits the ledger.
const interestScale = 6

// batchWorkers bounds the fan-out of a batch distribution run.
const batchWorkers = 8

type InterestService interface {
	// Distribute credits daily interest. An empty ownerID selects every
	// account with a positive balance; rate overrides the configured daily
	// rate when non-nil.
	Distribute(ctx context.Context, actor models.Actor, ownerID string, rate *decimal.Decimal) (*models.InterestReport, error)
}

type InterestServiceImpl struct {
	store      repository.Store
	annualRate decimal.Decimal
	logger     *slog.Logger
	now        func() time.Time
}

func NewInterestService(store repository.Store, annualRate decimal.Decimal, logger *slog.Logger) *InterestServiceImpl {
	return &InterestServiceImpl{
		store:      store,
		annualRate: annualRate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// DailyRate is the configured annual rate spread over 365 days.
func (s *InterestServiceImpl) DailyRate() decimal.Decimal {
	return s.annualRate.Div(decimal.NewFromInt(365))
}

func (s *InterestServiceImpl) Distribute(ctx context.Context, actor models.Actor, ownerID string, rate *decimal.Decimal) (*models.InterestReport, error) {
	op := auth.OpDistributeInterestBatch
	if ownerID != "" {
		op = auth.OpDistributeInterestSingle
	}
	if !auth.Allowed(actor.Role, op) {
		return nil, errors.ErrUnauthorized
	}

	dailyRate := s.DailyRate()
	if rate != nil {
		if !rate.IsPositive() {
			return nil, errors.NewValidationError("rate", "must be positive")
		}
		dailyRate = *rate
	}

	report := &models.InterestReport{
		TotalDistributed: decimal.Zero,
		Rate:             dailyRate,
	}

	if ownerID != "" {
		credited, amount, err := s.creditAccount(ctx, ownerID, dailyRate)
		if err != nil {
			return nil, err
		}
		if credited {
			report.CustomersCredited = 1
			report.TotalDistributed = amount
		} else {
			report.CustomersSkipped = 1
		}
	} else {
		accounts, err := s.store.Accounts().ListWithBalance(ctx)
		if err != nil {
			return nil, errors.NewStoreError("list accounts for interest", err)
		}

		// Accounts are credited independently: one failure is counted and
		// logged, never propagated, so the rest of the batch still runs.
		var mu sync.Mutex
		g := &errgroup.Group{}
		g.SetLimit(batchWorkers)

		for _, account := range accounts {
			account := account
			g.Go(func() error {
				credited, amount, err := s.creditAccount(ctx, account.OwnerID, dailyRate)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					report.Failures++
					s.logger.Error("failed to credit interest",
						"owner_id", account.OwnerID,
						"error", err.Error(),
					)
				case credited:
					report.CustomersCredited++
					report.TotalDistributed = report.TotalDistributed.Add(amount)
				default:
					report.CustomersSkipped++
				}
				return nil
			})
		}
		g.Wait()
	}

	auditErr := s.store.Audit().Append(ctx, &models.AuditLogEntry{
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     models.AuditActionDistributeInterest,
		TargetType: models.TargetAccount,
		TargetID:   ownerID,
		Details: map[string]any{
			"scope":              scopeLabel(ownerID),
			"rate":               dailyRate.String(),
			"customers_credited": report.CustomersCredited,
			"customers_skipped":  report.CustomersSkipped,
			"failures":           report.Failures,
			"total_distributed":  report.TotalDistributed.String(),
		},
	})
	if auditErr != nil {
		return nil, errors.NewStoreError("audit interest distribution", auditErr)
	}

	s.logger.Info("interest distributed",
		"scope", scopeLabel(ownerID),
		"credited", report.CustomersCredited,
		"skipped", report.CustomersSkipped,
		"failures", report.Failures,
		"total", report.TotalDistributed.String(),
	)
	return report, nil
}

func scopeLabel(ownerID string) string {
	if ownerID == "" {
		return "all"
	}
	return "owner:" + ownerID
}

// creditAccount applies one day of interest to one account. The balance read,
// the idempotence check against last_interest_date, the credit and the
// transaction record all commit in a single serialized unit of work.
func (s *InterestServiceImpl) creditAccount(ctx context.Context, ownerID string, rate decimal.Decimal) (bool, decimal.Decimal, error) {
	var (
		credited bool
		amount   decimal.Decimal
	)

	err := s.store.ExecTx(ctx, func(st repository.Store) error {
		account, err := st.Accounts().GetByOwnerIDForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}
		if !account.Balance.IsPositive() {
			return nil
		}

		now := s.now()
		if account.LastInterestDate != nil && sameDay(*account.LastInterestDate, now) {
			// Already credited today; repeated invocation is a no-op.
			return nil
		}

		interest := account.Balance.Mul(rate).Round(interestScale)
		if !interest.IsPositive() {
			return nil
		}

		if _, err := st.Accounts().CreditInterest(ctx, ownerID, interest, now); err != nil {
			return err
		}

		transaction := &models.Transaction{
			OwnerID:     ownerID,
			Type:        models.TypeInterest,
			Amount:      interest,
			Status:      models.StatusCompleted,
			Description: fmt.Sprintf("Daily interest earned (rate %s)", rate.String()),
			CompletedAt: &now,
		}
		if err := st.Transactions().Insert(ctx, transaction); err != nil {
			return err
		}

		credited = true
		amount = interest
		return nil
	})
	if err != nil {
		return false, decimal.Zero, err
	}
	return credited, amount, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
