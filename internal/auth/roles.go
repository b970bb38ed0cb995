package auth

import "github.com/dolaglobo/mmf-ledger/internal/models"

// Operation names every privileged action the core exposes. Services check the
// capability matrix before touching the ledger, independent of routing.
type Operation string

const (
	OpViewTransactions         Operation = "view_transactions"
	OpViewCustomer             Operation = "view_customer"
	OpVerifyDeposit            Operation = "verify_deposit"
	OpUpdateTransactionStatus  Operation = "update_transaction_status"
	OpDistributeInterestSingle Operation = "distribute_interest_single"
	OpDistributeInterestBatch  Operation = "distribute_interest_batch"
	OpAdjustBalance            Operation = "adjust_balance"
	OpReadAuditLog             Operation = "read_audit_log"
	OpEditCustomer             Operation = "edit_customer"
	OpProcessStatement         Operation = "process_statement"
)

// capabilities lists the minimal role set per operation. view_only sees reads,
// transaction_manager runs the day-to-day verification flow, super_admin holds
// the destructive levers.
var capabilities = map[Operation][]models.Role{
	OpViewTransactions:         {models.RoleViewOnly, models.RoleTransactionManager, models.RoleSuperAdmin},
	OpViewCustomer:             {models.RoleViewOnly, models.RoleTransactionManager, models.RoleSuperAdmin},
	OpVerifyDeposit:            {models.RoleTransactionManager, models.RoleSuperAdmin},
	OpUpdateTransactionStatus:  {models.RoleTransactionManager, models.RoleSuperAdmin},
	OpDistributeInterestSingle: {models.RoleTransactionManager, models.RoleSuperAdmin},
	OpDistributeInterestBatch:  {models.RoleSuperAdmin},
	OpAdjustBalance:            {models.RoleSuperAdmin},
	OpReadAuditLog:             {models.RoleSuperAdmin},
	OpEditCustomer:             {models.RoleTransactionManager, models.RoleSuperAdmin},
	OpProcessStatement:         {models.RoleTransactionManager, models.RoleSuperAdmin},
}

// Allowed reports whether the role may perform the operation.
func Allowed(role models.Role, op Operation) bool {
	for _, r := range capabilities[op] {
		if r == role {
			return true
		}
	}
	return false
}
