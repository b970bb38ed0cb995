package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateContact(ctx context.Context, id string, name, phone string) (*models.User, error)
	// CountAdmins counts users holding any admin role. The first admin to
	// register is promoted to super_admin.
	CountAdmins(ctx context.Context) (int, error)
}

type PostgresUserRepository struct {
	q DBTX
}

const userColumns = `id, phone, email, name, pin_hash, password_hash, role, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var phone, email, pinHash, passwordHash sql.NullString
	err := row.Scan(&user.ID, &phone, &email, &user.Name, &pinHash, &passwordHash,
		&user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Phone = phone.String
	user.Email = email.String
	user.PINHash = pinHash.String
	user.PasswordHash = passwordHash.String
	return user, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, phone, email, name, pin_hash, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.q.QueryRowContext(ctx, query, user.ID, nullable(user.Phone), nullable(user.Email),
		user.Name, nullable(user.PINHash), nullable(user.PasswordHash), user.Role).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if user.Email != "" {
				return errors.ErrEmailAlreadyUsed
			}
			return errors.ErrPhoneAlreadyUsed
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return r.getOne(ctx, query, phone)
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) UpdateContact(ctx context.Context, id string, name, phone string) (*models.User, error) {
	query := `UPDATE users
		SET name = CASE WHEN $1 <> '' THEN $1 ELSE name END,
			phone = CASE WHEN $2 <> '' THEN $2 ELSE phone END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRowContext(ctx, query, name, phone, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrCustomerNotFound
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, errors.ErrPhoneAlreadyUsed
		}
		return nil, fmt.Errorf("failed to update user contact: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) CountAdmins(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE role <> $1`

	var count int
	if err := r.q.QueryRowContext(ctx, query, models.RoleCustomer).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}
