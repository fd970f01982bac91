package session

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
)

// Bridge turns an authentication event into a server session and reverses
// the mapping on later requests. It owns the invariant that the serialized
// identity key and the shadow record never disagree: both are written on
// login, both are cleared on logout.
type Bridge struct {
	store    Store
	resolver *Resolver
	ttl      time.Duration
	logger   *zap.Logger
}

// NewBridge creates a bridge over the given session store and resolver.
func NewBridge(store Store, resolver *Resolver, ttl time.Duration, logger *zap.Logger) *Bridge {
	return &Bridge{
		store:    store,
		resolver: resolver,
		ttl:      ttl,
		logger:   logger.Named("bridge"),
	}
}

// Store exposes the underlying session store
func (b *Bridge) Store() Store { return b.store }

// TTL returns the configured session lifetime
func (b *Bridge) TTL() time.Duration { return b.ttl }

// Login establishes a session for identity. The identity is resolved first,
// so a login for a deleted identity fails with ErrUserNotFound.
func (b *Bridge) Login(ctx context.Context, identity domain.SessionIdentity) (*Data, error) {
	resolved, err := b.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	key, err := EncodeIdentity(identity)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Data{
		ID:          uuid.NewString(),
		IdentityKey: key,
		Shadow:      shadowOf(resolved),
		CreatedAt:   now,
		ExpiresAt:   now.Add(b.ttl),
	}

	if err := b.store.Put(ctx, session); err != nil {
		return nil, err
	}

	b.logger.Info("Session established",
		zap.String("kind", string(identity.Kind)),
		zap.String("key", resolved.Key()))
	return session, nil
}

// Logout destroys the session, clearing both identity representations at once.
func (b *Bridge) Logout(ctx context.Context, sessionID string) error {
	return b.store.Delete(ctx, sessionID)
}

// Resolve looks up the identity referenced by the session's serialized key.
// ErrUserNotFound means the identity was deleted between requests and the
// caller must force re-authentication.
func (b *Bridge) Resolve(ctx context.Context, session *Data) (*ResolvedIdentity, error) {
	if session.IdentityKey == "" {
		return nil, ErrUserNotFound
	}
	identity, err := DecodeIdentity(session.IdentityKey)
	if err != nil {
		return nil, err
	}
	return b.resolver.Resolve(ctx, identity)
}

// Backfill rewrites the shadow record from a resolved identity so subsequent
// requests short-circuit on the shadow check.
func (b *Bridge) Backfill(ctx context.Context, session *Data, resolved *ResolvedIdentity) error {
	session.Shadow = shadowOf(resolved)
	return b.store.Update(ctx, session)
}

// shadowOf derives the session-resident duplicate from a resolved identity.
func shadowOf(resolved *ResolvedIdentity) ShadowRecord {
	shadow := ShadowUser{Kind: string(resolved.Kind)}
	switch resolved.Kind {
	case domain.IdentityWallet:
		shadow.AccountID = resolved.Wallet.AccountID
		shadow.IsAdmin = resolved.Wallet.IsAdmin
	case domain.IdentityPassword:
		shadow.UserID = resolved.User.ID
		shadow.Username = resolved.User.Username
		shadow.IsAdmin = resolved.User.IsAdmin
	}
	return ShadowRecord{User: &shadow, IsLoggedIn: true}
}

// DisplayKey renders the identity key of a shadow user for logging.
func (s *ShadowUser) DisplayKey() string {
	if s.AccountID != "" {
		return s.AccountID
	}
	return strconv.FormatInt(s.UserID, 10)
}
