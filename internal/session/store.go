package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ShadowUser is the lightweight identity duplicate kept directly on the
// session, read by call sites that never touch the identity stores.
type ShadowUser struct {
	Kind      string `json:"kind"`
	AccountID string `json:"account_id,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
}

// ShadowRecord is the raw session-resident {user, isLoggedIn} pair. The
// bridge keeps it in sync with the serialized identity on every login and
// clears both on logout.
type ShadowRecord struct {
	User       *ShadowUser `json:"user,omitempty"`
	IsLoggedIn bool        `json:"is_logged_in"`
}

// Data represents one serializable server session.
type Data struct {
	ID string `json:"id"`
	// IdentityKey is the tagged serialized identity ("wallet:..." / "id:...").
	IdentityKey string       `json:"identity_key,omitempty"`
	Shadow      ShadowRecord `json:"shadow"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry
func (d *Data) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// Store provides persistent session storage keyed by the opaque cookie id.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a live session by ID, or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*Data, error)

	// Put stores a new session.
	Put(ctx context.Context, session *Data) error

	// Update updates an existing session.
	Update(ctx context.Context, session *Data) error

	// Delete removes a session by ID. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Cleanup removes expired sessions and returns how many were dropped.
	Cleanup(ctx context.Context) (int64, error)

	// Close releases resources.
	Close() error
}

// MemoryStore is an in-memory session store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Data
	logger   *zap.Logger
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Data),
		logger:   logger.Named("session_memory"),
	}
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok || session.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

func (m *MemoryStore) Put(ctx context.Context, session *Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, session *Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; !exists {
		return ErrSessionNotFound
	}

	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Cleanup(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	now := time.Now()
	for id, session := range m.sessions {
		if session.Expired(now) {
			delete(m.sessions, id)
			count++
		}
	}

	if count > 0 {
		m.logger.Debug("Cleaned up expired sessions", zap.Int64("count", count))
	}
	return count, nil
}

func (m *MemoryStore) Close() error { return nil }
