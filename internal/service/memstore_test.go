package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/repository"
)

// memStore is an in-memory repository.Store for service tests. Each repository
// method is atomic under one mutex, which gives the same guarantee the SQL
// store provides via conditional updates and row locks.
type memStore struct {
	mu           sync.Mutex
	users        map[string]*models.User
	accounts     map[string]*models.Account // keyed by owner id
	transactions map[string]*models.Transaction
	audit        []*models.AuditLogEntry
	statements   map[string]*models.StatementRequest

	// failAdjust injects a balance-adjustment failure per owner id.
	failAdjust map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*models.User),
		accounts:     make(map[string]*models.Account),
		transactions: make(map[string]*models.Transaction),
		statements:   make(map[string]*models.StatementRequest),
		failAdjust:   make(map[string]error),
	}
}

func (s *memStore) Users() repository.UserRepository               { return &memUsers{s} }
func (s *memStore) Accounts() repository.AccountRepository         { return &memAccounts{s} }
func (s *memStore) Transactions() repository.TransactionRepository { return &memTransactions{s} }
func (s *memStore) Audit() repository.AuditRepository              { return &memAudit{s} }
func (s *memStore) Statements() repository.StatementRepository     { return &memStatements{s} }

func (s *memStore) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(s)
}

// seedCustomer registers a customer with an account at the given balance. The
// opening balance is backed by a completed deposit so the ledger invariant
// holds from the start.
func (s *memStore) seedCustomer(ownerID string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.users[ownerID] = &models.User{
		ID: ownerID, Phone: "+254700" + ownerID, Name: "Customer " + ownerID,
		Role: models.RoleCustomer, CreatedAt: now, UpdatedAt: now,
	}
	s.accounts[ownerID] = &models.Account{
		ID: "acct-" + ownerID, OwnerID: ownerID,
		Balance: balance, TotalInterestEarned: decimal.Zero,
		CreatedAt: now, UpdatedAt: now,
	}
	if balance.IsPositive() {
		id := uuid.New().String()
		s.transactions[id] = &models.Transaction{
			ID: id, OwnerID: ownerID, Type: models.TypeDeposit, Amount: balance,
			Status: models.StatusCompleted, Description: "opening balance",
			CreatedAt: now, CompletedAt: &now,
		}
	}
}

// ledgerBalance derives the balance implied by the transaction records:
// completed transactions at their signed effect, plus held withdrawals
// (debited at creation, before verification).
func (s *memStore) ledgerBalance(ownerID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := decimal.Zero
	for _, t := range s.transactions {
		if t.OwnerID != ownerID {
			continue
		}
		if t.Status == models.StatusCompleted ||
			(t.Type == models.TypeWithdrawal && t.Status == models.StatusPendingVerification) {
			sum = sum.Add(t.SignedEffect())
		}
	}
	return sum
}

func (s *memStore) auditEntries(action string) []*models.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []*models.AuditLogEntry
	for _, e := range s.audit {
		if e.Action == action {
			entries = append(entries, e)
		}
	}
	return entries
}

type memUsers struct{ s *memStore }

func (r *memUsers) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if user.Phone != "" && existing.Phone == user.Phone {
			return errors.ErrPhoneAlreadyUsed
		}
		if user.Email != "" && existing.Email == user.Email {
			return errors.ErrEmailAlreadyUsed
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	clone := *user
	r.s.users[user.ID] = &clone
	return nil
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, errors.ErrCustomerNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *memUsers) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Phone == phone })
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Email == email })
}

func (r *memUsers) findBy(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, user := range r.s.users {
		if match(user) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, errors.ErrCustomerNotFound
}

func (r *memUsers) UpdateContact(ctx context.Context, id string, name, phone string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, errors.ErrCustomerNotFound
	}
	if name != "" {
		user.Name = name
	}
	if phone != "" {
		user.Phone = phone
	}
	user.UpdatedAt = time.Now().UTC()
	clone := *user
	return &clone, nil
}

func (r *memUsers) CountAdmins(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, user := range r.s.users {
		if user.Role != models.RoleCustomer {
			count++
		}
	}
	return count, nil
}

type memAccounts struct{ s *memStore }

func (r *memAccounts) Create(ctx context.Context, account *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	account.CreatedAt, account.UpdatedAt = now, now
	clone := *account
	r.s.accounts[account.OwnerID] = &clone
	return nil
}

func (r *memAccounts) GetByOwnerID(ctx context.Context, ownerID string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(ownerID)
}

func (r *memAccounts) GetByOwnerIDForUpdate(ctx context.Context, ownerID string) (*models.Account, error) {
	return r.GetByOwnerID(ctx, ownerID)
}

func (r *memAccounts) get(ownerID string) (*models.Account, error) {
	account, ok := r.s.accounts[ownerID]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *memAccounts) AdjustBalance(ctx context.Context, ownerID string, delta decimal.Decimal) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err, ok := r.s.failAdjust[ownerID]; ok {
		return nil, err
	}
	account, ok := r.s.accounts[ownerID]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	next := account.Balance.Add(delta)
	if next.IsNegative() {
		return nil, errors.ErrInsufficientFunds
	}
	account.Balance = next
	account.UpdatedAt = time.Now().UTC()
	clone := *account
	return &clone, nil
}

func (r *memAccounts) CreditInterest(ctx context.Context, ownerID string, interest decimal.Decimal, at time.Time) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err, ok := r.s.failAdjust[ownerID]; ok {
		return nil, err
	}
	account, ok := r.s.accounts[ownerID]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	account.Balance = account.Balance.Add(interest)
	account.TotalInterestEarned = account.TotalInterestEarned.Add(interest)
	account.LastInterestDate = &at
	account.UpdatedAt = time.Now().UTC()
	clone := *account
	return &clone, nil
}

func (r *memAccounts) ListWithBalance(ctx context.Context) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var accounts []*models.Account
	for _, account := range r.s.accounts {
		if account.Balance.IsPositive() {
			clone := *account
			accounts = append(accounts, &clone)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].OwnerID < accounts[j].OwnerID })
	return accounts, nil
}

type memTransactions struct{ s *memStore }

func (r *memTransactions) Insert(ctx context.Context, transaction *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if transaction.ID == "" {
		transaction.ID = uuid.New().String()
	}
	transaction.CreatedAt = time.Now().UTC()
	clone := *transaction
	r.s.transactions[transaction.ID] = &clone
	return nil
}

func (r *memTransactions) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	transaction, ok := r.s.transactions[id]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	clone := *transaction
	return &clone, nil
}

func (r *memTransactions) GetByIDForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *memTransactions) GetOwnedForUpdate(ctx context.Context, id, ownerID string, typ models.TransactionType, status models.TransactionStatus) (*models.Transaction, error) {
	transaction, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if transaction.OwnerID != ownerID || transaction.Type != typ || transaction.Status != status {
		return nil, errors.ErrTransactionNotFound
	}
	return transaction, nil
}

func (r *memTransactions) UpdateStatus(ctx context.Context, id string, upd repository.StatusUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	transaction, ok := r.s.transactions[id]
	if !ok {
		return errors.ErrTransactionNotFound
	}
	transaction.Status = upd.Status
	if upd.Note != "" {
		transaction.StatusNote = upd.Note
	}
	if upd.UpdatedBy != "" {
		transaction.UpdatedBy = upd.UpdatedBy
	}
	if upd.CompletedAt != nil {
		transaction.CompletedAt = upd.CompletedAt
	}
	if upd.VerifiedAt != nil {
		transaction.VerifiedAt = upd.VerifiedAt
	}
	if upd.VerifiedBy != "" {
		transaction.VerifiedBy = upd.VerifiedBy
	}
	return nil
}

func (r *memTransactions) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Transaction, error) {
	return r.list(func(t *models.Transaction) bool { return t.OwnerID == ownerID }, limit)
}

func (r *memTransactions) ListByStatus(ctx context.Context, status models.TransactionStatus, limit int) ([]*models.Transaction, error) {
	return r.list(func(t *models.Transaction) bool { return t.Status == status }, limit)
}

func (r *memTransactions) list(match func(*models.Transaction) bool, limit int) ([]*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var transactions []*models.Transaction
	for _, transaction := range r.s.transactions {
		if match(transaction) {
			clone := *transaction
			transactions = append(transactions, &clone)
		}
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})
	if len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

type memAudit struct{ s *memStore }

func (r *memAudit) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()
	clone := *entry
	r.s.audit = append(r.s.audit, &clone)
	return nil
}

func (r *memAudit) List(ctx context.Context, limit int) ([]*models.AuditLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entries := make([]*models.AuditLogEntry, 0, len(r.s.audit))
	for i := len(r.s.audit) - 1; i >= 0 && len(entries) < limit; i-- {
		clone := *r.s.audit[i]
		entries = append(entries, &clone)
	}
	return entries, nil
}

type memStatements struct{ s *memStore }

func (r *memStatements) Insert(ctx context.Context, request *models.StatementRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	request.CreatedAt = time.Now().UTC()
	clone := *request
	r.s.statements[request.ID] = &clone
	return nil
}

func (r *memStatements) GetByIDForUpdate(ctx context.Context, id string) (*models.StatementRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	request, ok := r.s.statements[id]
	if !ok {
		return nil, errors.ErrStatementNotFound
	}
	clone := *request
	return &clone, nil
}

func (r *memStatements) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.StatementRequest, error) {
	return r.list(func(s *models.StatementRequest) bool { return s.OwnerID == ownerID }, limit)
}

func (r *memStatements) ListByStatus(ctx context.Context, status models.StatementStatus, limit int) ([]*models.StatementRequest, error) {
	return r.list(func(s *models.StatementRequest) bool { return s.Status == status }, limit)
}

func (r *memStatements) list(match func(*models.StatementRequest) bool, limit int) ([]*models.StatementRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var requests []*models.StatementRequest
	for _, request := range r.s.statements {
		if match(request) && len(requests) < limit {
			clone := *request
			requests = append(requests, &clone)
		}
	}
	return requests, nil
}

func (r *memStatements) MarkProcessed(ctx context.Context, id string, status models.StatementStatus, note, processedBy string, processedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	request, ok := r.s.statements[id]
	if !ok {
		return errors.ErrStatementNotFound
	}
	request.Status = status
	request.Note = note
	request.ProcessedBy = processedBy
	request.ProcessedAt = &processedAt
	return nil
}
