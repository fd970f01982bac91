// Package extension implements the wallet provider backed by a locally
// installed extension. Pairing is initiated over the extension's message
// channel and then observed by polling the connection record, because the
// extension's event emission is uneven; the poll is bounded by the pairing
// timeout.
package extension

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

// EventType classifies asynchronous extension events.
type EventType string

const (
	// EventPaired reports an approved pairing.
	EventPaired EventType = "paired"
	// EventDisconnected reports a wallet-initiated disconnect.
	EventDisconnected EventType = "disconnected"
)

// Event is an asynchronous status change pushed by the extension.
type Event struct {
	Type          EventType
	AccountID     string
	SessionHandle string
}

// Messenger abstracts the extension message channel so extension internals
// never leak past the adapter.
type Messenger interface {
	// Detect reports whether the extension is present and responsive.
	Detect(ctx context.Context) (bool, error)

	// RequestPairing asks the extension to prompt the user. The outcome
	// arrives later as an EventPaired event.
	RequestPairing(ctx context.Context) error

	// Sign submits a signing request and returns a correlation identifier.
	// A declined request fails with wallet.ErrTransactionRejected.
	Sign(ctx context.Context, payload []byte) (string, error)

	// Teardown asks the extension to drop the pairing.
	Teardown(ctx context.Context) error

	// Events delivers asynchronous status changes.
	Events() <-chan Event

	// Close releases the channel.
	Close() error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMessenger injects a messenger, replacing the default WebSocket channel.
func WithMessenger(m Messenger) Option {
	return func(a *Adapter) { a.messenger = m }
}

// Adapter implements wallet.Provider for the extension-based wallet.
type Adapter struct {
	cfg            config.ExtensionConfig
	pollInterval   time.Duration
	pairingTimeout time.Duration
	messenger      Messenger
	store          *wallet.ConnectionStore
	logger         *zap.Logger

	initOnce sync.Once
	initErr  error
}

// NewAdapter creates an extension adapter.
func NewAdapter(cfg config.ExtensionConfig, pollInterval, pairingTimeout time.Duration, store *wallet.ConnectionStore, logger *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:            cfg,
		pollInterval:   pollInterval,
		pairingTimeout: pairingTimeout,
		store:          store,
		logger:         logger.Named("extension"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() domain.Provider { return domain.ProviderExtension }

// Initialize builds the message channel once and starts the event watcher.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.initOnce.Do(func() {
		a.store.SetPhase(domain.PhaseInitializing)

		if a.messenger == nil {
			if a.cfg.Endpoint == "" {
				a.initErr = fmt.Errorf("%w: extension endpoint is required", wallet.ErrInitConfig)
				a.store.SetError(a.initErr)
				return
			}
			a.messenger = NewWebsocketMessenger(a.cfg.Endpoint, a.logger)
		}

		go a.watch()
		a.store.SetPhase(domain.PhaseIdle)
	})
	return a.initErr
}

// watch applies asynchronous extension events to the connection record. A
// pairing approved after Connect stopped waiting still lands here, quietly.
func (a *Adapter) watch() {
	for event := range a.messenger.Events() {
		switch event.Type {
		case EventPaired:
			if state := a.store.State(); state.Connected {
				continue
			}
			a.store.SetConnected(event.AccountID, event.SessionHandle)
			if err := a.store.Persist(context.Background()); err != nil {
				a.logger.Warn("Failed to persist connection", zap.Error(err))
			}
		case EventDisconnected:
			a.logger.Info("Extension reported disconnect")
			a.store.Clear()
			if err := a.store.ClearPersisted(context.Background()); err != nil {
				a.logger.Warn("Failed to clear persisted connection", zap.Error(err))
			}
		default:
			a.logger.Debug("Ignoring extension event", zap.String("type", string(event.Type)))
		}
	}
}

// Connect detects the extension, requests pairing, then polls the connection
// record until the account is populated or the timeout elapses.
func (a *Adapter) Connect(ctx context.Context) wallet.ConnectResult {
	if err := a.Initialize(ctx); err != nil {
		return wallet.Failed(err)
	}

	if state := a.store.State(); state.Connected {
		return wallet.Connected(state.AccountID)
	}

	present, err := a.messenger.Detect(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", wallet.ErrTransport, err)
		a.store.SetError(wrapped)
		return wallet.Failed(wrapped)
	}
	if !present {
		a.store.SetError(wallet.ErrExtensionNotFound)
		return wallet.Failed(wallet.ErrExtensionNotFound)
	}

	a.store.SetPhase(domain.PhasePairing)

	if err := a.messenger.RequestPairing(ctx); err != nil {
		wrapped := fmt.Errorf("%w: %v", wallet.ErrTransport, err)
		a.store.SetError(wrapped)
		return wallet.Failed(wrapped)
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(a.pairingTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			// Caller abandoned the attempt; this is not a pairing timeout.
			a.store.SetError(ctx.Err())
			return wallet.Failed(ctx.Err())
		case <-deadline.C:
			a.store.SetError(wallet.ErrConnectionTimeout)
			return wallet.Failed(wallet.ErrConnectionTimeout)
		case <-ticker.C:
			if state := a.store.State(); state.Connected {
				return wallet.Connected(state.AccountID)
			}
		}
	}
}

// Disconnect tears down the pairing best-effort and always clears state.
func (a *Adapter) Disconnect(ctx context.Context) bool {
	a.store.SetPhase(domain.PhaseDisconnecting)

	remoteOK := true
	if a.messenger != nil {
		if err := a.messenger.Teardown(ctx); err != nil {
			a.logger.Warn("Extension teardown failed, clearing local state anyway",
				zap.Error(err))
			remoteOK = false
		}
	}

	a.store.Clear()
	if err := a.store.ClearPersisted(ctx); err != nil {
		a.logger.Warn("Failed to clear persisted connection", zap.Error(err))
	}
	return remoteOK
}

// State is a pure read of the connection record.
func (a *Adapter) State() domain.ConnectionState {
	return a.store.State()
}

// SignAndSubmit delegates signing to the extension.
func (a *Adapter) SignAndSubmit(ctx context.Context, payload []byte) (string, error) {
	if state := a.store.State(); !state.Connected {
		return "", wallet.ErrNotConnected
	}
	if err := a.Initialize(ctx); err != nil {
		return "", err
	}

	id, err := a.messenger.Sign(ctx, payload)
	if err != nil {
		if errors.Is(err, wallet.ErrTransactionRejected) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", wallet.ErrTransport, err)
	}
	return id, nil
}

// Restore marks the adapter connected from persisted state.
func (a *Adapter) Restore(ctx context.Context) bool {
	persisted, ok := a.store.Restore(ctx)
	if !ok {
		return false
	}
	a.store.SetConnected(persisted.AccountID, persisted.SessionHandle)
	a.logger.Info("Restored extension pairing",
		zap.String("account", persisted.AccountID))
	return true
}
