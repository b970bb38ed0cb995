package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
)

var (
	manager    = models.Actor{ID: "admin-1", Name: "Alex", Role: models.RoleTransactionManager}
	superAdmin = models.Actor{ID: "admin-0", Name: "Sam", Role: models.RoleSuperAdmin}
	viewer     = models.Actor{ID: "admin-2", Name: "Vic", Role: models.RoleViewOnly}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTransactionService(store *memStore) *TransactionServiceImpl {
	min := decimal.NewFromInt(50)
	return NewTransactionService(store, min, min, "4114517", testLogger())
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func requireBalance(t *testing.T, store *memStore, ownerID, want string) {
	t.Helper()
	account, err := store.Accounts().GetByOwnerID(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("GetByOwnerID(%s): %v", ownerID, err)
	}
	if !account.Balance.Equal(dec(t, want)) {
		t.Fatalf("balance=%s want=%s", account.Balance, want)
	}
	// The ledger invariant: stored balance matches the balance implied by the
	// transaction records at all times.
	if derived := store.ledgerBalance(ownerID); !account.Balance.Equal(derived) {
		t.Fatalf("stored balance %s diverges from ledger-derived %s", account.Balance, derived)
	}
}

func TestDepositLifecycleApproved(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.Zero)
	svc := newTransactionService(store)
	ctx := context.Background()

	transaction, err := svc.CreateDeposit(ctx, "c1", dec(t, "1000"))
	if err != nil {
		t.Fatal(err)
	}
	if transaction.Status != models.StatusPending {
		t.Fatalf("status=%s want=pending", transaction.Status)
	}
	requireBalance(t, store, "c1", "0")

	if _, err := svc.ConfirmDeposit(ctx, "c1", transaction.ID); err != nil {
		t.Fatal(err)
	}
	requireBalance(t, store, "c1", "0")

	verified, err := svc.VerifyDeposit(ctx, manager, transaction.ID, true, "mpesa ref QX12")
	if err != nil {
		t.Fatal(err)
	}
	if verified.Status != models.StatusCompleted {
		t.Fatalf("status=%s want=completed", verified.Status)
	}
	if verified.VerifiedBy != manager.ID || verified.CompletedAt == nil {
		t.Fatalf("verification metadata not set: %+v", verified)
	}
	requireBalance(t, store, "c1", "1000")

	if entries := store.auditEntries(models.AuditActionVerifyDeposit); len(entries) != 1 {
		t.Fatalf("audit entries=%d want=1", len(entries))
	}
}

func TestDepositLifecycleRejected(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", dec(t, "1000"))
	svc := newTransactionService(store)
	ctx := context.Background()

	transaction, _ := svc.CreateDeposit(ctx, "c1", dec(t, "500"))
	svc.ConfirmDeposit(ctx, "c1", transaction.ID)

	rejected, err := svc.VerifyDeposit(ctx, manager, transaction.ID, false, "no matching payment")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != models.StatusFailed {
		t.Fatalf("status=%s want=failed", rejected.Status)
	}
	requireBalance(t, store, "c1", "1000")
}

func TestDepositMinimumBoundary(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.Zero)
	svc := newTransactionService(store)
	ctx := context.Background()

	if _, err := svc.CreateDeposit(ctx, "c1", dec(t, "49")); !errors.IsValidationError(err) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if _, err := svc.CreateDeposit(ctx, "c1", dec(t, "50")); err != nil {
		t.Fatalf("deposit at minimum should succeed, got %v", err)
	}
}

func TestConfirmDepositWrongOwner(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.Zero)
	store.seedCustomer("c2", decimal.Zero)
	svc := newTransactionService(store)
	ctx := context.Background()

	transaction, _ := svc.CreateDeposit(ctx, "c1", dec(t, "100"))
	if _, err := svc.ConfirmDeposit(ctx, "c2", transaction.ID); !errors.IsNotFound(err) {
		t.Fatalf("want not found for foreign transaction, got %v", err)
	}
}

func TestVerifyDepositRequiresRoleAndStatus(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.Zero)
	svc := newTransactionService(store)
	ctx := context.Background()

	transaction, _ := svc.CreateDeposit(ctx, "c1", dec(t, "100"))

	// Unconfirmed deposit is not in pending_verification yet.
	if _, err := svc.VerifyDeposit(ctx, manager, transaction.ID, true, ""); !errors.IsNotFound(err) {
		t.Fatalf("want not found for pending deposit, got %v", err)
	}

	svc.ConfirmDeposit(ctx, "c1", transaction.ID)
	if _, err := svc.VerifyDeposit(ctx, viewer, transaction.ID, true, ""); !errors.IsUnauthorized(err) {
		t.Fatalf("want unauthorized for view_only, got %v", err)
	}
}

func TestWithdrawalHoldAndRefund(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", dec(t, "1000"))
	svc := newTransactionService(store)
	ctx := context.Background()

	transaction, account, err := svc.CreateWithdrawal(ctx, "c1", dec(t, "200"))
	if err != nil {
		t.Fatal(err)
	}
	if transaction.Status != models.StatusPendingVerification {
		t.Fatalf("status=%s want=pending_verification", transaction.Status)
	}
	if !account.Balance.Equal(dec(t, "800")) {
		t.Fatalf("hold not applied, balance=%s", account.Balance)
	}
	requireBalance(t, store, "c1", "800")

	rejected, err := svc.UpdateStatus(ctx, manager, transaction.ID, models.StatusFailed, "payout failed")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != models.StatusFailed {
		t.Fatalf("status=%s want=failed", rejected.Status)
	}
	requireBalance(t, store, "c1", "1000")
}

func TestWithdrawalCompletionHasNoSecondDebit(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", dec(t, "500"))
	svc := newTransactionService(store)
	ctx := context.Background()

	transaction, _, _ := svc.CreateWithdrawal(ctx, "c1", dec(t, "100"))
	requireBalance(t, store, "c1", "400")

	if _, err := svc.UpdateStatus(ctx, manager, transaction.ID, models.StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	requireBalance(t, store, "c1", "400")
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", dec(t, "100"))
	svc := newTransactionService(store)
	ctx := context.Background()

	if _, _, err := svc.CreateWithdrawal(ctx, "c1", dec(t, "150")); !errors.IsInsufficientFunds(err) {
		t.Fatalf("want InsufficientFunds, got %v", err)
	}
	requireBalance(t, store, "c1", "100")

	if _, _, err := svc.CreateWithdrawal(ctx, "c1", dec(t, "49")); !errors.IsValidationError(err) {
		t.Fatalf("want ValidationError below minimum, got %v", err)
	}
}

func TestConcurrentWithdrawalsExactlyOneSucceeds(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", dec(t, "200"))
	svc := newTransactionService(store)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CreateWithdrawal(context.Background(), "c1", dec(t, "200"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.IsInsufficientFunds(err):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("succeeded=%d insufficient=%d, want exactly one of each", succeeded, insufficient)
	}
	requireBalance(t, store, "c1", "0")
}

func TestUpdateStatusConflictOnRepeat(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.Zero)
	svc := newTransactionService(store)
	ctx := context.Background()

	transaction, _ := svc.CreateDeposit(ctx, "c1", dec(t, "300"))
	svc.ConfirmDeposit(ctx, "c1", transaction.ID)
	if _, err := svc.UpdateStatus(ctx, manager, transaction.ID, models.StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	requireBalance(t, store, "c1", "300")

	if _, err := svc.UpdateStatus(ctx, manager, transaction.ID, models.StatusCompleted, ""); !errors.IsConflict(err) {
		t.Fatalf("want ConflictError on re-issue, got %v", err)
	}
	requireBalance(t, store, "c1", "300")
}

func TestDepositReversalRestoresBalance(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", dec(t, "1000"))
	svc := newTransactionService(store)
	ctx := context.Background()

	transaction, _ := svc.CreateDeposit(ctx, "c1", dec(t, "250"))
	svc.ConfirmDeposit(ctx, "c1", transaction.ID)
	svc.VerifyDeposit(ctx, manager, transaction.ID, true, "")
	requireBalance(t, store, "c1", "1250")

	reversed, err := svc.UpdateStatus(ctx, manager, transaction.ID, models.StatusFailed, "")
	if err != nil {
		t.Fatal(err)
	}
	if reversed.StatusNote == "" {
		t.Fatal("reversal should carry a status note")
	}
	requireBalance(t, store, "c1", "1000")

	// The reversal itself is not repeatable into the same status.
	if _, err := svc.UpdateStatus(ctx, manager, transaction.ID, models.StatusFailed, ""); !errors.IsConflict(err) {
		t.Fatalf("want ConflictError, got %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.Zero)
	svc := newTransactionService(store)
	ctx := context.Background()

	transaction, _ := svc.CreateDeposit(ctx, "c1", dec(t, "100"))

	// Skipping confirmation is not a defined deposit transition.
	if _, err := svc.UpdateStatus(ctx, manager, transaction.ID, models.StatusCompleted, ""); !errors.IsInvalidTransition(err) {
		t.Fatalf("want InvalidTransitionError, got %v", err)
	}

	// Interest transactions never transition.
	interest := &models.Transaction{
		OwnerID: "c1", Type: models.TypeInterest, Amount: dec(t, "1"),
		Status: models.StatusCompleted,
	}
	store.Transactions().Insert(ctx, interest)
	if _, err := svc.UpdateStatus(ctx, manager, interest.ID, models.StatusFailed, ""); !errors.IsInvalidTransition(err) {
		t.Fatalf("want InvalidTransitionError for interest, got %v", err)
	}
}

func TestAdjustBalance(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", dec(t, "100"))
	svc := newTransactionService(store)
	ctx := context.Background()

	if _, _, err := svc.AdjustBalance(ctx, manager, "c1", AdjustCredit, dec(t, "50"), "correction"); !errors.IsUnauthorized(err) {
		t.Fatalf("transaction_manager must not adjust balances, got %v", err)
	}

	transaction, account, err := svc.AdjustBalance(ctx, superAdmin, "c1", AdjustCredit, dec(t, "50"), "missed deposit")
	if err != nil {
		t.Fatal(err)
	}
	if transaction.Type != models.TypeAdminCredit || transaction.Status != models.StatusCompleted {
		t.Fatalf("unexpected transaction %+v", transaction)
	}
	if !account.Balance.Equal(dec(t, "150")) {
		t.Fatalf("balance=%s want=150", account.Balance)
	}
	requireBalance(t, store, "c1", "150")

	entries := store.auditEntries(models.AuditActionAdjustBalance)
	if len(entries) != 1 {
		t.Fatalf("audit entries=%d want=1", len(entries))
	}
	if entries[0].Details["balance_before"] != "100" || entries[0].Details["balance_after"] != "150" {
		t.Fatalf("audit snapshot wrong: %+v", entries[0].Details)
	}

	if _, _, err := svc.AdjustBalance(ctx, superAdmin, "c1", AdjustDebit, dec(t, "500"), "oops"); !errors.IsInsufficientFunds(err) {
		t.Fatalf("want InsufficientFunds on over-debit, got %v", err)
	}
	requireBalance(t, store, "c1", "150")
}
