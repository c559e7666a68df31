package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/biolinkhq/biolink/internal/auth"
	"github.com/biolinkhq/biolink/internal/biolinks"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opResolveActor  = "users.resolve_actor"
	opCreateAccount = "users.create_account"
)

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrAdminRequired indicates a non-admin attempted an admin operation.
	ErrAdminRequired = errors.New("users: admin privileges required")
	// ErrAccountExists indicates an account with the same email already exists.
	ErrAccountExists = errors.New("users: account already exists")
	// ErrInvalidEmail indicates a malformed account email.
	ErrInvalidEmail = errors.New("users: invalid email")

	inputValidator = validator.New()
)

// ServiceConfig describes the dependencies required for the account registry.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider biolinks.IDProvider
	Logger     *zap.Logger
}

// CreateAccountInput describes an account created by an administrator.
type CreateAccountInput struct {
	Email   string
	Name    string
	IsAdmin bool
}

// Service manages registered accounts and resolves session claims into actors.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider biolinks.IDProvider
	logger     *zap.Logger
	cache      sync.Map
}

// NewService constructs the account registry.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		cache:      sync.Map{},
	}, nil
}

// ResolveActor returns the actor for the provided session claims. A registered account
// is authoritative for the admin flag; unknown users with an email are registered on
// first sight.
func (s *Service) ResolveActor(ctx context.Context, claims auth.SessionClaims) (biolinks.Actor, error) {
	userID, err := biolinks.NewUserID(claims.UserID)
	if err != nil {
		return biolinks.Actor{}, biolinks.NewServiceError(biolinks.KindUnauthorized, opResolveActor, "invalid_identity",
			fmt.Errorf("%w: %v", ErrInvalidIdentity, err))
	}

	if cached, ok := s.cache.Load(userID.String()); ok {
		if isAdmin, ok := cached.(bool); ok {
			return biolinks.Actor{ID: userID, IsAdmin: isAdmin}, nil
		}
	}

	var account Account
	err = s.db.WithContext(ctx).Where("id = ?", userID.String()).Take(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		email := normalizeEmail(claims.UserEmail)
		if email == "" {
			return biolinks.Actor{ID: userID, IsAdmin: claims.IsAdmin}, nil
		}
		account = Account{
			ID:         userID.String(),
			Email:      email,
			IsAdmin:    claims.IsAdmin,
			LastSeenAt: s.now(),
		}
		if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
			// A concurrent request or another account with this email won; fall back to the claims.
			s.logger.Warn("account registration skipped", zap.String("user_id", userID.String()), zap.Error(err))
			return biolinks.Actor{ID: userID, IsAdmin: claims.IsAdmin}, nil
		}
	case err != nil:
		s.logger.Error("account lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		return biolinks.Actor{}, biolinks.NewServiceError(biolinks.KindInternal, opResolveActor, "query_failed", err)
	default:
		if err := s.db.WithContext(ctx).Model(&Account{}).
			Where("id = ?", account.ID).
			Update("last_seen_at", s.now()).
			Error; err != nil {
			s.logger.Warn("account last seen not updated", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	s.cache.Store(userID.String(), account.IsAdmin)
	return biolinks.Actor{ID: userID, IsAdmin: account.IsAdmin}, nil
}

// CreateAccount registers a new account. Only administrators may call it.
func (s *Service) CreateAccount(ctx context.Context, actor biolinks.Actor, input CreateAccountInput) (Account, error) {
	if actor.ID == "" {
		return Account{}, biolinks.NewServiceError(biolinks.KindUnauthorized, opCreateAccount, "missing_actor", biolinks.ErrMissingActor)
	}
	if !actor.IsAdmin {
		return Account{}, biolinks.NewServiceError(biolinks.KindForbidden, opCreateAccount, "forbidden", ErrAdminRequired)
	}
	email := normalizeEmail(input.Email)
	if err := inputValidator.Var(email, "required,email,max=320"); err != nil {
		return Account{}, biolinks.NewServiceError(biolinks.KindInvalidInput, opCreateAccount, "invalid_input",
			fmt.Errorf("%w: %v", ErrInvalidEmail, err))
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logger.Error("account id generation failed", zap.Error(err))
		return Account{}, biolinks.NewServiceError(biolinks.KindInternal, opCreateAccount, "id_generation_failed", err)
	}
	account := Account{
		ID:      id,
		Email:   email,
		Name:    normalize(input.Name),
		IsAdmin: input.IsAdmin,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Account{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAccountExists
		}
		return tx.Create(&account).Error
	})
	switch {
	case txErr == nil:
		return account, nil
	case errors.Is(txErr, ErrAccountExists), errors.Is(txErr, gorm.ErrDuplicatedKey):
		return Account{}, biolinks.NewServiceError(biolinks.KindConflict, opCreateAccount, "account_exists", ErrAccountExists)
	default:
		s.logger.Error("account creation failed", zap.String("email", email), zap.Error(txErr))
		return Account{}, biolinks.NewServiceError(biolinks.KindInternal, opCreateAccount, "insert_failed", txErr)
	}
}
