// Package memory implements in-memory identity storage for development and
// tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/storage"
)

// Store implements storage.Store in memory
type Store struct {
	users   *UserStore
	wallets *WalletAccountStore
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		users:   &UserStore{data: make(map[int64]*domain.User)},
		wallets: &WalletAccountStore{data: make(map[string]*domain.WalletAccount)},
	}
}

func (s *Store) Users() storage.UserStore                   { return s.users }
func (s *Store) WalletAccounts() storage.WalletAccountStore { return s.wallets }
func (s *Store) Close() error                               { return nil }
func (s *Store) Ping(ctx context.Context) error             { return nil }

// UserStore implements in-memory user storage
type UserStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.User
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data {
		if existing.Username == user.Username {
			return storage.ErrAlreadyExists
		}
	}

	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	copied := *user
	s.data[user.ID] = &copied
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.data {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *UserStore) Update(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[user.ID]; !exists {
		return storage.ErrNotFound
	}

	user.UpdatedAt = time.Now()
	copied := *user
	s.data[user.ID] = &copied
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// WalletAccountStore implements in-memory wallet account storage
type WalletAccountStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalletAccount
}

func (s *WalletAccountStore) Upsert(ctx context.Context, account *domain.WalletAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, exists := s.data[account.AccountID]; exists {
		existing.LastLogin = now
		account.FirstSeen = existing.FirstSeen
		account.IsAdmin = existing.IsAdmin
		account.LastLogin = now
		return nil
	}

	account.FirstSeen = now
	account.LastLogin = now
	copied := *account
	s.data[account.AccountID] = &copied
	return nil
}

func (s *WalletAccountStore) GetByAccountID(ctx context.Context, accountID string) (*domain.WalletAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.data[accountID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *WalletAccountStore) SetAdmin(ctx context.Context, accountID string, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.data[accountID]
	if !exists {
		return storage.ErrNotFound
	}
	account.IsAdmin = isAdmin
	return nil
}

func (s *WalletAccountStore) Delete(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[accountID]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, accountID)
	return nil
}
