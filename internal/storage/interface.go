// Package storage defines the identity store interfaces backing the server
// identity bridge: conventional password users and wallet-derived accounts.
package storage

import (
	"context"
	"errors"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrDatabase      = errors.New("database error")
)

// UserStore defines storage operations for password users
type UserStore interface {
	// Create creates a new user, assigning its numeric id
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by numeric id
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// Update updates a user
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user
	Delete(ctx context.Context, id int64) error
}

// WalletAccountStore defines storage operations for wallet accounts
type WalletAccountStore interface {
	// Upsert creates the wallet account on first login and refreshes
	// LastLogin afterwards.
	Upsert(ctx context.Context, account *domain.WalletAccount) error

	// GetByAccountID retrieves a wallet account by its ledger account id
	GetByAccountID(ctx context.Context, accountID string) (*domain.WalletAccount, error)

	// SetAdmin grants or revokes admin rights for an account
	SetAdmin(ctx context.Context, accountID string, isAdmin bool) error

	// Delete removes a wallet account
	Delete(ctx context.Context, accountID string) error
}

// Store aggregates the identity stores
type Store interface {
	Users() UserStore
	WalletAccounts() WalletAccountStore

	// Close closes the storage connection
	Close() error

	// Ping checks if the storage is alive
	Ping(ctx context.Context) error
}
