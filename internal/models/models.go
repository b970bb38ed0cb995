package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role of an authenticated caller. Customers own exactly one account; the
// admin roles form the capability ladder evaluated in internal/auth.
type Role string

const (
	RoleCustomer           Role = "customer"
	RoleViewOnly           Role = "view_only"
	RoleTransactionManager Role = "transaction_manager"
	RoleSuperAdmin         Role = "super_admin"
)

func (r Role) IsAdmin() bool {
	return r == RoleViewOnly || r == RoleTransactionManager || r == RoleSuperAdmin
}

type TransactionType string

const (
	TypeDeposit     TransactionType = "deposit"
	TypeWithdrawal  TransactionType = "withdrawal"
	TypeInterest    TransactionType = "interest"
	TypeAdminCredit TransactionType = "admin_credit"
	TypeAdminDebit  TransactionType = "admin_debit"
)

type TransactionStatus string

const (
	StatusPending             TransactionStatus = "pending"
	StatusPendingVerification TransactionStatus = "pending_verification"
	StatusProcessing          TransactionStatus = "processing"
	StatusCompleted           TransactionStatus = "completed"
	StatusFailed              TransactionStatus = "failed"
	StatusCancelled           TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPendingVerification, StatusProcessing,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type StatementStatus string

const (
	StatementPending   StatementStatus = "pending"
	StatementProcessed StatementStatus = "processed"
	StatementRejected  StatementStatus = "rejected"
)

// User covers both customers (phone + PIN) and administrators (email +
// password). Exactly one of PINHash/PasswordHash is set depending on the role.
type User struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name"`
	PINHash      string    `json:"-"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Account struct {
	ID                  string          `json:"id"`
	OwnerID             string          `json:"owner_id"`
	Balance             decimal.Decimal `json:"balance"`
	TotalInterestEarned decimal.Decimal `json:"total_interest_earned"`
	LastInterestDate    *time.Time      `json:"last_interest_date,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type Transaction struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description"`
	StatusNote  string            `json:"status_note,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	VerifiedAt  *time.Time        `json:"verified_at,omitempty"`
	VerifiedBy  string            `json:"verified_by,omitempty"`
	UpdatedBy   string            `json:"updated_by,omitempty"`
}

// SignedEffect is the contribution of this transaction to the owner's balance
// once it counts against the ledger: deposits, interest and admin credits add,
// withdrawals and admin debits subtract. Withdrawals count at hold time.
func (t *Transaction) SignedEffect() decimal.Decimal {
	switch t.Type {
	case TypeWithdrawal, TypeAdminDebit:
		return t.Amount.Neg()
	default:
		return t.Amount
	}
}

type AuditLogEntry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	ActorName  string         `json:"actor_name"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

const (
	AuditActionVerifyDeposit      = "verify_deposit"
	AuditActionUpdateStatus       = "update_transaction_status"
	AuditActionAdjustBalance      = "adjust_balance"
	AuditActionDistributeInterest = "distribute_interest"
	AuditActionUpdateCustomer     = "update_customer"
	AuditActionProcessStatement   = "process_statement"
)

const (
	TargetTransaction = "transaction"
	TargetAccount     = "account"
	TargetCustomer    = "customer"
	TargetStatement   = "statement_request"
)

type StatementRequest struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Status      StatementStatus `json:"status"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	ProcessedBy string          `json:"processed_by,omitempty"`
}

// Actor is the authenticated identity attached to a request by the auth
// middleware and passed down to privileged service operations.
type Actor struct {
	ID   string
	Name string
	Role Role
}
