package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidAccountID   = errors.New("invalid wallet account id")
)

// AuthService handles the two authentication paths: password verification
// against the user store and wallet-account registration.
type AuthService struct {
	store  storage.Store
	logger *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(store storage.Store, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:  store,
		logger: logger.Named("auth-service"),
	}
}

// Register creates a password user
func (s *AuthService) Register(ctx context.Context, username, password string, isAdmin bool) (*domain.User, error) {
	if existing, err := s.store.Users().GetByUsername(ctx, username); err == nil && existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Authenticate verifies a username/password pair
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("User logged in", zap.Int64("user_id", user.ID))
	return user, nil
}

// WalletLogin records a wallet account login, creating the account row on
// first sight.
func (s *AuthService) WalletLogin(ctx context.Context, accountID string) (*domain.WalletAccount, error) {
	if accountID == "" {
		return nil, ErrInvalidAccountID
	}

	account := &domain.WalletAccount{AccountID: accountID}
	if err := s.store.WalletAccounts().Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to record wallet login: %w", err)
	}

	s.logger.Info("Wallet account logged in", zap.String("account_id", accountID))
	return account, nil
}
