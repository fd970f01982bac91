// Package session implements the server identity bridge: it folds the two
// authentication paths (password login and wallet login) into one serialized
// session representation and reverses that mapping on every request.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/storage"
)

var (
	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserNotFound means a session references an identity that no longer
	// exists. Callers must force re-authentication, never crash.
	ErrUserNotFound = errors.New("session identity no longer exists")
)

// EncodeIdentity serializes a SessionIdentity as "<kind>:<key>". The kind tag
// is mandatory: without it a wallet account string cannot be told apart from
// a numeric user id.
func EncodeIdentity(identity domain.SessionIdentity) (string, error) {
	switch identity.Kind {
	case domain.IdentityWallet:
		if identity.AccountID == "" {
			return "", fmt.Errorf("wallet identity without account id")
		}
		return string(domain.IdentityWallet) + ":" + identity.AccountID, nil
	case domain.IdentityPassword:
		if identity.UserID == 0 {
			return "", fmt.Errorf("password identity without user id")
		}
		return string(domain.IdentityPassword) + ":" + strconv.FormatInt(identity.UserID, 10), nil
	default:
		return "", fmt.Errorf("unknown identity kind: %q", identity.Kind)
	}
}

// DecodeIdentity reverses EncodeIdentity.
func DecodeIdentity(encoded string) (domain.SessionIdentity, error) {
	kind, key, found := strings.Cut(encoded, ":")
	if !found || key == "" {
		return domain.SessionIdentity{}, fmt.Errorf("malformed session identity: %q", encoded)
	}

	switch domain.IdentityKind(kind) {
	case domain.IdentityWallet:
		return domain.WalletIdentity(key), nil
	case domain.IdentityPassword:
		userID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return domain.SessionIdentity{}, fmt.Errorf("malformed user id in session identity: %q", key)
		}
		return domain.PasswordIdentity(userID), nil
	default:
		return domain.SessionIdentity{}, fmt.Errorf("unknown identity kind: %q", kind)
	}
}

// ResolvedIdentity is a session identity looked up against its store.
type ResolvedIdentity struct {
	Kind   domain.IdentityKind
	User   *domain.User
	Wallet *domain.WalletAccount
}

// IsAdmin reports whether the resolved identity carries admin rights
func (r *ResolvedIdentity) IsAdmin() bool {
	switch r.Kind {
	case domain.IdentityWallet:
		return r.Wallet != nil && r.Wallet.IsAdmin
	case domain.IdentityPassword:
		return r.User != nil && r.User.IsAdmin
	}
	return false
}

// Key returns the identity's store key as a string
func (r *ResolvedIdentity) Key() string {
	switch r.Kind {
	case domain.IdentityWallet:
		return r.Wallet.AccountID
	case domain.IdentityPassword:
		return strconv.FormatInt(r.User.ID, 10)
	}
	return ""
}

// Resolver dispatches a tagged identity to the matching identity store.
type Resolver struct {
	store storage.Store
}

// NewResolver creates a resolver over store
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks the identity up in its store. A missing identity yields
// ErrUserNotFound so the caller can force re-authentication.
func (r *Resolver) Resolve(ctx context.Context, identity domain.SessionIdentity) (*ResolvedIdentity, error) {
	switch identity.Kind {
	case domain.IdentityWallet:
		account, err := r.store.WalletAccounts().GetByAccountID(ctx, identity.AccountID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to look up wallet account: %w", err)
		}
		return &ResolvedIdentity{Kind: domain.IdentityWallet, Wallet: account}, nil

	case domain.IdentityPassword:
		user, err := r.store.Users().GetByID(ctx, identity.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		return &ResolvedIdentity{Kind: domain.IdentityPassword, User: user}, nil

	default:
		return nil, fmt.Errorf("unknown identity kind: %q", identity.Kind)
	}
}
