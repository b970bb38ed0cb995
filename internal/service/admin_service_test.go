package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
)

func strp(s string) *string { return &s }

func TestUpdateCustomerContact(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.NewFromInt(100))
	svc := NewAdminService(store, testLogger())
	ctx := context.Background()

	updated, err := svc.UpdateCustomerContact(ctx, manager, "c1", &models.UpdateCustomerRequest{
		Name:  strp("Renamed Customer"),
		Phone: strp("0722000111"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Renamed Customer" || updated.Phone != "+254722000111" {
		t.Fatalf("updated=%+v", updated)
	}

	entries := store.auditEntries(models.AuditActionUpdateCustomer)
	if len(entries) != 1 {
		t.Fatalf("audit entries=%d want=1", len(entries))
	}
	if entries[0].Details["phone_after"] != "+254722000111" {
		t.Fatalf("audit details=%v", entries[0].Details)
	}

	if _, err := svc.UpdateCustomerContact(ctx, viewer, "c1", &models.UpdateCustomerRequest{Name: strp("X")}); !errors.IsUnauthorized(err) {
		t.Fatalf("view_only edit: want unauthorized, got %v", err)
	}
	if _, err := svc.UpdateCustomerContact(ctx, manager, "c1", &models.UpdateCustomerRequest{}); !errors.IsValidationError(err) {
		t.Fatalf("empty update: want ValidationError, got %v", err)
	}
	if _, err := svc.UpdateCustomerContact(ctx, manager, "missing", &models.UpdateCustomerRequest{Name: strp("X")}); !errors.IsNotFound(err) {
		t.Fatalf("unknown customer: want NotFound, got %v", err)
	}
}

func TestListAuditLogRequiresSuperAdmin(t *testing.T) {
	store := newMemStore()
	svc := NewAdminService(store, testLogger())
	ctx := context.Background()

	if _, err := svc.ListAuditLog(ctx, manager, 10); !errors.IsUnauthorized(err) {
		t.Fatalf("transaction_manager: want unauthorized, got %v", err)
	}
	if _, err := svc.ListAuditLog(ctx, superAdmin, 10); err != nil {
		t.Fatal(err)
	}
}

func TestProcessStatement(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.NewFromInt(100))
	accounts := NewAccountService(store, decimal.RequireFromString("0.15"), testLogger())
	svc := NewAdminService(store, testLogger())
	ctx := context.Background()

	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	request, err := accounts.RequestStatement(ctx, "c1", &models.CreateStatementRequest{
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if request.Status != models.StatementPending {
		t.Fatalf("status=%s want=pending", request.Status)
	}

	processed, err := svc.ProcessStatement(ctx, manager, request.ID, &models.ProcessStatementRequest{
		Status: models.StatementProcessed,
		Note:   "emailed",
	})
	if err != nil {
		t.Fatal(err)
	}
	if processed.Status != models.StatementProcessed || processed.ProcessedBy != manager.ID || processed.ProcessedAt == nil {
		t.Fatalf("processed=%+v", processed)
	}

	// A handled request cannot be processed again.
	if _, err := svc.ProcessStatement(ctx, manager, request.ID, &models.ProcessStatementRequest{
		Status: models.StatementRejected,
	}); !errors.IsConflict(err) {
		t.Fatalf("want conflict on re-process, got %v", err)
	}

	if _, err := svc.ProcessStatement(ctx, manager, request.ID, &models.ProcessStatementRequest{
		Status: models.StatementPending,
	}); !errors.IsValidationError(err) {
		t.Fatalf("want ValidationError for pending target status, got %v", err)
	}
}

func TestRequestStatementValidatesPeriod(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.NewFromInt(100))
	accounts := NewAccountService(store, decimal.RequireFromString("0.15"), testLogger())
	ctx := context.Background()

	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, err := accounts.RequestStatement(ctx, "c1", &models.CreateStatementRequest{
		PeriodStart: start,
		PeriodEnd:   start,
	}); !errors.IsValidationError(err) {
		t.Fatalf("want ValidationError for empty period, got %v", err)
	}
	if _, err := accounts.RequestStatement(ctx, "c1", &models.CreateStatementRequest{
		PeriodEnd: start,
	}); !errors.IsValidationError(err) {
		t.Fatalf("want ValidationError for missing start, got %v", err)
	}
}

func TestGetAccountProjectsInterest(t *testing.T) {
	store := newMemStore()
	store.seedCustomer("c1", decimal.NewFromInt(1000))
	accounts := NewAccountService(store, decimal.RequireFromString("0.15"), testLogger())

	resp, err := accounts.GetAccount(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !resp.DailyInterest.Equal(decimal.RequireFromString("0.410959")) {
		t.Fatalf("daily_interest=%s", resp.DailyInterest)
	}
	if !resp.EstimatedAnnualYield.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("estimated_annual_yield=%s", resp.EstimatedAnnualYield)
	}

	if _, err := accounts.GetAccount(context.Background(), "missing"); !errors.IsNotFound(err) {
		t.Fatalf("want NotFound, got %v", err)
	}
}
