package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request/response payloads for the HTTP layer.

type SignupRequest struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
	Name  string `json:"name"`
}

type LoginRequest struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

type AdminRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user"`
}

type AccountResponse struct {
	ID                   string          `json:"id"`
	OwnerID              string          `json:"owner_id"`
	Balance              decimal.Decimal `json:"balance"`
	TotalInterestEarned  decimal.Decimal `json:"total_interest_earned"`
	DailyInterest        decimal.Decimal `json:"daily_interest"`
	EstimatedAnnualYield decimal.Decimal `json:"estimated_annual_yield"`
	LastInterestDate     *time.Time      `json:"last_interest_date,omitempty"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// DepositInitiatedResponse carries the informational paybill instructions the
// customer follows on their phone. No payment rail is attached; the deposit
// stays pending until confirmed and verified.
type DepositInitiatedResponse struct {
	Message       string            `json:"message"`
	TransactionID string            `json:"transaction_id"`
	Paybill       string            `json:"paybill"`
	AccountNumber string            `json:"account_number"`
	Amount        decimal.Decimal   `json:"amount"`
	Instructions  map[string]string `json:"instructions"`
}

type WithdrawalInitiatedResponse struct {
	Message       string          `json:"message"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Destination   string          `json:"destination"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

type VerifyTransactionRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

type UpdateStatusRequest struct {
	Status TransactionStatus `json:"status"`
	Note   string            `json:"note"`
}

type AdjustBalanceRequest struct {
	Kind   string          `json:"kind"` // credit or debit
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type DistributeInterestRequest struct {
	OwnerID string           `json:"owner_id,omitempty"` // empty means all accounts
	Rate    *decimal.Decimal `json:"rate,omitempty"`     // optional daily rate override
}

type InterestReport struct {
	CustomersCredited int             `json:"customers_credited"`
	CustomersSkipped  int             `json:"customers_skipped"`
	Failures          int             `json:"failures"`
	TotalDistributed  decimal.Decimal `json:"total_distributed"`
	Rate              decimal.Decimal `json:"rate"`
}

type CreateStatementRequest struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type ProcessStatementRequest struct {
	Status StatementStatus `json:"status"`
	Note   string          `json:"note"`
}

type UpdateCustomerRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
