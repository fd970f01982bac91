package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/kvstore"
)

const connectionKeyPrefix = "wallet:connection:"

// ConnectionStore holds one adapter's in-memory connection record and its
// durable subset. Each adapter owns exactly one store; the facade only ever
// reads through State().
type ConnectionStore struct {
	mu       sync.RWMutex
	provider domain.Provider
	record   domain.ConnectionRecord
	kv       kvstore.Store
	logger   *zap.Logger
}

// NewConnectionStore creates a connection store for provider backed by kv.
func NewConnectionStore(provider domain.Provider, kv kvstore.Store, logger *zap.Logger) *ConnectionStore {
	return &ConnectionStore{
		provider: provider,
		record: domain.ConnectionRecord{
			Provider: provider,
			Phase:    domain.PhaseUninitialized,
		},
		kv:     kv,
		logger: logger.Named("connstore").With(zap.String("provider", string(provider))),
	}
}

// Record returns a copy of the current connection record
func (s *ConnectionStore) Record() domain.ConnectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// State returns the provider-agnostic connection view
func (s *ConnectionStore) State() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ConnectionState{
		Connected: s.record.Connected,
		AccountID: s.record.AccountID,
	}
}

// Phase returns the current lifecycle phase
func (s *ConnectionStore) Phase() domain.ConnectionPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Phase
}

// SetPhase transitions the lifecycle phase
func (s *ConnectionStore) SetPhase(phase domain.ConnectionPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Phase = phase
}

// SetConnected records a successful pairing
func (s *ConnectionStore) SetConnected(accountID, sessionHandle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Phase = domain.PhaseConnected
	s.record.Connected = true
	s.record.AccountID = accountID
	s.record.SessionHandle = sessionHandle
	s.record.LastError = ""
}

// SetError records a failure and returns the adapter to Idle
func (s *ConnectionStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Phase = domain.PhaseIdle
	s.record.Connected = false
	s.record.LastError = err.Error()
}

// Clear wipes the in-memory record back to Idle
func (s *ConnectionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Phase = domain.PhaseIdle
	s.record.Connected = false
	s.record.AccountID = ""
	s.record.SessionHandle = ""
	s.record.LastError = ""
}

// Persist writes the durable subset of the record. It refuses to persist a
// record that never reached Connected.
func (s *ConnectionStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	record := s.record
	s.mu.RUnlock()

	if !record.Connected {
		return fmt.Errorf("refusing to persist a disconnected record for %s", record.Provider)
	}

	persisted := domain.PersistedConnection{
		AccountID:     record.AccountID,
		SessionHandle: record.SessionHandle,
	}
	raw, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to encode persisted connection: %w", err)
	}
	return s.kv.Put(ctx, s.key(), raw)
}

// Restore reads the persisted connection, if any
func (s *ConnectionStore) Restore(ctx context.Context) (*domain.PersistedConnection, bool) {
	raw, err := s.kv.Get(ctx, s.key())
	if err != nil {
		if err != kvstore.ErrNotFound {
			s.logger.Warn("Failed to read persisted connection", zap.Error(err))
		}
		return nil, false
	}

	var persisted domain.PersistedConnection
	if err := json.Unmarshal(raw, &persisted); err != nil {
		s.logger.Warn("Discarding unreadable persisted connection", zap.Error(err))
		_ = s.kv.Delete(ctx, s.key())
		return nil, false
	}
	if persisted.AccountID == "" {
		return nil, false
	}
	return &persisted, true
}

// ClearPersisted removes the durable record
func (s *ConnectionStore) ClearPersisted(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key())
}

func (s *ConnectionStore) key() string {
	return connectionKeyPrefix + string(s.provider)
}
