package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dolaglobo/mmf-ledger/internal/auth"
	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/repository"
)

type AuthService interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.TokenResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error)
	RegisterAdmin(ctx context.Context, req *models.AdminRegisterRequest) (*models.TokenResponse, error)
	LoginAdmin(ctx context.Context, req *models.AdminLoginRequest) (*models.TokenResponse, error)
	// Authenticate resolves a bearer token into an actor. The role comes from
	// the stored user record, not the token, so role changes apply immediately.
	Authenticate(ctx context.Context, token string) (models.Actor, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
}

type AuthServiceImpl struct {
	store  repository.Store
	tokens *auth.TokenManager
	logger *slog.Logger
}

func NewAuthService(store repository.Store, tokens *auth.TokenManager, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{store: store, tokens: tokens, logger: logger}
}

// NormalizePhone converts Kenyan numbers to the +254 canonical form. A local
// 07xx number becomes +2547xx; anything not matching either prefix is invalid.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "0") {
		phone = "+254" + phone[1:]
	}
	if !strings.HasPrefix(phone, "+254") {
		return "", errors.NewValidationError("phone", "invalid phone format, use +254 or 0 prefix")
	}
	return phone, nil
}

func validatePIN(pin string) error {
	if len(pin) != 4 {
		return errors.NewValidationError("pin", "PIN must be exactly 4 digits")
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return errors.NewValidationError("pin", "PIN must be exactly 4 digits")
		}
	}
	return nil
}

// Signup creates the customer identity and its account in one unit of work, so
// an account can never exist without its owner or vice versa.
func (s *AuthServiceImpl) Signup(ctx context.Context, req *models.SignupRequest) (*models.TokenResponse, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if err := validatePIN(req.PIN); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.NewValidationError("name", "must be non-empty")
	}

	pinHash, err := auth.HashSecret(req.PIN)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:      uuid.New().String(),
		Phone:   phone,
		Name:    strings.TrimSpace(req.Name),
		PINHash: pinHash,
		Role:    models.RoleCustomer,
	}

	err = s.store.ExecTx(ctx, func(st repository.Store) error {
		if err := st.Users().Create(ctx, user); err != nil {
			return err
		}
		account := &models.Account{
			ID:      uuid.New().String(),
			OwnerID: user.ID,
		}
		return st.Accounts().Create(ctx, account)
	})
	if err != nil {
		if errors.IsAlreadyExists(err) {
			s.logger.Warn("signup with registered phone", "phone", phone)
			return nil, err
		}
		s.logger.Error("failed to sign up customer", "error", err.Error())
		return nil, err
	}

	s.logger.Info("customer signed up", "user_id", user.ID)
	return s.issueToken(user)
}

func (s *AuthServiceImpl) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, errors.ErrInvalidCredentials
	}

	user, err := s.store.Users().GetByPhone(ctx, phone)
	if err != nil || !auth.CheckSecret(req.PIN, user.PINHash) {
		return nil, errors.ErrInvalidCredentials
	}

	return s.issueToken(user)
}

// RegisterAdmin creates an administrator. The first admin ever registered is
// granted super_admin; everyone after starts as view_only until promoted.
func (s *AuthServiceImpl) RegisterAdmin(ctx context.Context, req *models.AdminRegisterRequest) (*models.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(email, "@") {
		return nil, errors.NewValidationError("email", "invalid email address")
	}
	if len(req.Password) < 8 {
		return nil, errors.NewValidationError("password", "must be at least 8 characters")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.NewValidationError("name", "must be non-empty")
	}

	passwordHash, err := auth.HashSecret(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: passwordHash,
	}

	err = s.store.ExecTx(ctx, func(st repository.Store) error {
		count, err := st.Users().CountAdmins(ctx)
		if err != nil {
			return err
		}
		user.Role = models.RoleViewOnly
		if count == 0 {
			user.Role = models.RoleSuperAdmin
		}
		return st.Users().Create(ctx, user)
	})
	if err != nil {
		if errors.IsAlreadyExists(err) {
			return nil, err
		}
		s.logger.Error("failed to register admin", "error", err.Error())
		return nil, err
	}

	s.logger.Info("admin registered", "user_id", user.ID, "role", string(user.Role))
	return s.issueToken(user)
}

func (s *AuthServiceImpl) LoginAdmin(ctx context.Context, req *models.AdminLoginRequest) (*models.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil || !user.Role.IsAdmin() || !auth.CheckSecret(req.Password, user.PasswordHash) {
		return nil, errors.ErrInvalidCredentials
	}

	return s.issueToken(user)
}

func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (models.Actor, error) {
	userID, _, err := s.tokens.Verify(token)
	if err != nil {
		return models.Actor{}, err
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return models.Actor{}, errors.ErrInvalidCredentials
	}

	return models.Actor{ID: user.ID, Name: user.Name, Role: user.Role}, nil
}

func (s *AuthServiceImpl) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.store.Users().GetByID(ctx, userID)
}

func (s *AuthServiceImpl) issueToken(user *models.User) (*models.TokenResponse, error) {
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		s.logger.Error("failed to issue token", "user_id", user.ID, "error", err.Error())
		return nil, err
	}
	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	}, nil
}
