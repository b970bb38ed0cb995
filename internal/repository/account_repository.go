package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByOwnerID(ctx context.Context, ownerID string) (*models.Account, error)
	// GetByOwnerIDForUpdate locks the account row for the duration of the
	// enclosing transaction. Only meaningful inside ExecTx.
	GetByOwnerIDForUpdate(ctx context.Context, ownerID string) (*models.Account, error)
	// AdjustBalance applies delta atomically with the non-negative balance
	// precondition evaluated at write time. Returns ErrInsufficientFunds when
	// the precondition would be violated.
	AdjustBalance(ctx context.Context, ownerID string, delta decimal.Decimal) (*models.Account, error)
	// CreditInterest increments balance and total_interest_earned by interest
	// and stamps last_interest_date, as one atomic update.
	CreditInterest(ctx context.Context, ownerID string, interest decimal.Decimal, at time.Time) (*models.Account, error)
	ListWithBalance(ctx context.Context) ([]*models.Account, error)
}

type PostgresAccountRepository struct {
	q DBTX
}

const accountColumns = `id, owner_id, balance, total_interest_earned, last_interest_date, created_at, updated_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	var lastInterest sql.NullTime
	err := row.Scan(&account.ID, &account.OwnerID, &account.Balance,
		&account.TotalInterestEarned, &lastInterest, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastInterest.Valid {
		account.LastInterestDate = &lastInterest.Time
	}
	return account, nil
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (id, owner_id, balance, total_interest_earned)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.q.QueryRowContext(ctx, query, account.ID, account.OwnerID,
		account.Balance, account.TotalInterestEarned).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByOwnerID(ctx context.Context, ownerID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1`

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) GetByOwnerIDForUpdate(ctx context.Context, ownerID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account for update: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) AdjustBalance(ctx context.Context, ownerID string, delta decimal.Decimal) (*models.Account, error) {
	query := `UPDATE accounts
		SET balance = balance + $1, updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = $2 AND balance + $1 >= 0
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, delta, ownerID))
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to adjust balance: %w", err)
		}
		// Zero rows: either the account is missing or the precondition failed.
		if _, getErr := r.GetByOwnerID(ctx, ownerID); getErr != nil {
			return nil, getErr
		}
		return nil, errors.ErrInsufficientFunds
	}
	return account, nil
}

func (r *PostgresAccountRepository) CreditInterest(ctx context.Context, ownerID string, interest decimal.Decimal, at time.Time) (*models.Account, error) {
	query := `UPDATE accounts
		SET balance = balance + $1,
			total_interest_earned = total_interest_earned + $1,
			last_interest_date = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = $3
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, interest, at, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to credit interest: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) ListWithBalance(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE balance > 0 ORDER BY created_at`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account := &models.Account{}
		var lastInterest sql.NullTime
		err := rows.Scan(&account.ID, &account.OwnerID, &account.Balance,
			&account.TotalInterestEarned, &lastInterest, &account.CreatedAt, &account.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if lastInterest.Valid {
			account.LastInterestDate = &lastInterest.Time
		}
		accounts = append(accounts, account)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over accounts: %w", err)
	}
	return accounts, nil
}
