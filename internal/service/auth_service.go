package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lotto999/lotto-service/internal/model"
	"github.com/lotto999/lotto-service/internal/repo"
)

var (
	// ErrEmailTaken means the registration email is already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials means login failed.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound means no such user id.
	ErrUserNotFound = errors.New("user not found")
)

// AuthService handles registration and login. Credentials are compared as
// stored; hardening the credential store is owned elsewhere.
type AuthService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewAuthService returns AuthService.
func NewAuthService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{repo: r, log: logger}
}

// Register creates a user and a zero-balance wallet in one transaction.
func (s *AuthService) Register(ctx context.Context, u *model.User) (*model.User, error) {
	if _, err := s.repo.GetUserByEmail(ctx, u.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if u.Role == "" {
		u.Role = "user"
	}
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		w := &model.Wallet{UserID: u.ID, Balance: decimal.Zero}
		return s.repo.CreateWallet(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("registered user %d (%s)", u.ID, u.Email)
	return u, nil
}

// Login checks the credentials and returns the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Password != password {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetUser returns a user by id.
func (s *AuthService) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
