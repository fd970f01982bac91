package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

const signTimeout = 30 * time.Second

var errPairingRejected = errors.New("pairing rejected by wallet")

// Option configures an Adapter.
type Option func(*Adapter)

// WithPairingURIHandler installs the callback invoked when a pairing URI is
// ready to be presented to the user.
func WithPairingURIHandler(fn func(uri string)) Option {
	return func(a *Adapter) { a.onPairingURI = fn }
}

// WithTransport injects a transport, replacing the default WebSocket client.
func WithTransport(t Transport) Option {
	return func(a *Adapter) { a.transport = t }
}

// Adapter implements wallet.Provider over a message relay. The concrete
// protocol is supplied as a Dialect; everything else — pairing wait, timeout,
// asynchronous session deletion, sign correlation — is shared.
type Adapter struct {
	dialect        Dialect
	cfg            config.RelayConfig
	pairingTimeout time.Duration
	transport      Transport
	store          *wallet.ConnectionStore
	logger         *zap.Logger

	initOnce sync.Once
	initErr  error

	// waiter receives the in-flight connect outcome; nil when nobody waits.
	waiterMu sync.Mutex
	waiter   chan wallet.ConnectResult

	listenMu  sync.Mutex
	listening map[string]bool

	pendingMu sync.Mutex
	pending   map[string]chan SignResult

	onPairingURI func(uri string)
}

// NewAdapter creates a relay adapter speaking dialect.
func NewAdapter(dialect Dialect, cfg config.RelayConfig, pairingTimeout time.Duration, store *wallet.ConnectionStore, logger *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		dialect:        dialect,
		cfg:            cfg,
		pairingTimeout: pairingTimeout,
		store:          store,
		logger:         logger.Named(string(dialect.Provider())),
		listening:      make(map[string]bool),
		pending:        make(map[string]chan SignResult),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() domain.Provider { return a.dialect.Provider() }

// Initialize validates configuration and builds the relay client once.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.initOnce.Do(func() {
		a.store.SetPhase(domain.PhaseInitializing)

		if a.cfg.URL == "" || a.cfg.ProjectID == "" {
			a.initErr = fmt.Errorf("%w: relay url and project id are required", wallet.ErrInitConfig)
			a.store.SetError(a.initErr)
			return
		}
		if a.transport == nil {
			a.transport = NewClient(a.cfg, a.logger)
		}
		a.store.SetPhase(domain.PhaseIdle)
	})
	return a.initErr
}

// Connect opens a relay session, publishes a pairing proposal and waits for
// the wallet's approval. A pairing that outlives the wait updates the
// connection record quietly through the topic listener.
func (a *Adapter) Connect(ctx context.Context) wallet.ConnectResult {
	if err := a.Initialize(ctx); err != nil {
		return wallet.Failed(err)
	}

	if state := a.store.State(); state.Connected {
		return wallet.Connected(state.AccountID)
	}

	a.store.SetPhase(domain.PhasePairing)

	if err := a.transport.Dial(ctx); err != nil {
		wrapped := fmt.Errorf("%w: %v", wallet.ErrTransport, err)
		a.store.SetError(wrapped)
		return wallet.Failed(wrapped)
	}

	topic := uuid.NewString()
	a.ensureListening(topic)

	waiter := make(chan wallet.ConnectResult, 1)
	a.setWaiter(waiter)

	if err := a.transport.Publish(ctx, a.dialect.Proposal(topic, a.cfg)); err != nil {
		a.clearWaiter()
		wrapped := fmt.Errorf("%w: %v", wallet.ErrTransport, err)
		a.store.SetError(wrapped)
		return wallet.Failed(wrapped)
	}

	uri := a.dialect.PairingURI(topic, a.cfg)
	if a.onPairingURI != nil {
		a.onPairingURI(uri)
	} else {
		a.logger.Info("Pairing URI ready", zap.String("uri", uri))
	}

	select {
	case result := <-waiter:
		return result
	case <-ctx.Done():
		// Caller abandoned the attempt; this is not a pairing timeout.
		a.clearWaiter()
		a.store.SetError(ctx.Err())
		return wallet.Failed(ctx.Err())
	case <-time.After(a.pairingTimeout):
		a.clearWaiter()
		// The approval may have raced the timer.
		if state := a.store.State(); state.Connected {
			return wallet.Connected(state.AccountID)
		}
		a.store.SetError(wallet.ErrConnectionTimeout)
		return wallet.Failed(wallet.ErrConnectionTimeout)
	}
}

// Disconnect publishes a session teardown best-effort, then always clears
// local and persisted state.
func (a *Adapter) Disconnect(ctx context.Context) bool {
	a.store.SetPhase(domain.PhaseDisconnecting)
	record := a.store.Record()

	remoteOK := true
	if record.SessionHandle != "" && a.transport != nil {
		if err := a.transport.Publish(ctx, a.dialect.SessionDelete(record.SessionHandle)); err != nil {
			a.logger.Warn("Remote session teardown failed, clearing local state anyway",
				zap.Error(err))
			remoteOK = false
		}
		a.stopListening(record.SessionHandle)
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

// SignAndSubmit sends a signing request over the established session and
// waits for the wallet's response.
func (a *Adapter) SignAndSubmit(ctx context.Context, payload []byte) (string, error) {
	record := a.store.Record()
	if !record.Connected || record.SessionHandle == "" {
		return "", wallet.ErrNotConnected
	}

	if err := a.Initialize(ctx); err != nil {
		return "", err
	}
	if err := a.transport.Dial(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", wallet.ErrTransport, err)
	}
	a.ensureListening(record.SessionHandle)

	requestID := uuid.NewString()
	resultCh := make(chan SignResult, 1)

	a.pendingMu.Lock()
	a.pending[requestID] = resultCh
	a.pendingMu.Unlock()
	defer func() {
		a.pendingMu.Lock()
		delete(a.pending, requestID)
		a.pendingMu.Unlock()
	}()

	msg := a.dialect.SignRequest(record.SessionHandle, requestID, payload)
	if err := a.transport.Publish(ctx, msg); err != nil {
		return "", fmt.Errorf("%w: %v", wallet.ErrTransport, err)
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", wallet.ErrTransport, ctx.Err())
	case <-time.After(signTimeout):
		return "", fmt.Errorf("%w: sign request timed out", wallet.ErrTransport)
	case result := <-resultCh:
		if !result.Approved {
			if result.Reason != "" {
				return "", fmt.Errorf("%w: %s", wallet.ErrTransactionRejected, result.Reason)
			}
			return "", wallet.ErrTransactionRejected
		}
		if result.TransactionID != "" {
			return result.TransactionID, nil
		}
		return requestID, nil
	}
}

// Restore marks the adapter connected from persisted state. Relay sessions
// normally survive restarts, so no re-pairing happens; the transport is
// redialed lazily on the next signing request.
func (a *Adapter) Restore(ctx context.Context) bool {
	persisted, ok := a.store.Restore(ctx)
	if !ok {
		return false
	}
	a.store.SetConnected(persisted.AccountID, persisted.SessionHandle)
	a.logger.Info("Restored relay session",
		zap.String("account", persisted.AccountID))
	return true
}

// ensureListening starts exactly one listener goroutine per topic.
func (a *Adapter) ensureListening(topic string) {
	a.listenMu.Lock()
	defer a.listenMu.Unlock()

	if a.listening[topic] {
		return
	}
	a.listening[topic] = true
	ch := a.transport.Subscribe(topic)
	go a.listen(topic, ch)
}

func (a *Adapter) stopListening(topic string) {
	a.listenMu.Lock()
	delete(a.listening, topic)
	a.listenMu.Unlock()
	a.transport.Unsubscribe(topic)
}

// listen consumes messages on topic until the subscription closes. It keeps
// running after a connect timed out so a late approval still lands in the
// connection record, quietly.
func (a *Adapter) listen(topic string, ch <-chan Message) {
	defer func() {
		a.listenMu.Lock()
		delete(a.listening, topic)
		a.listenMu.Unlock()
	}()

	for msg := range ch {
		if approval, ok, err := a.dialect.ParseApproval(msg); ok {
			a.handleApproval(topic, approval, err)
			continue
		}

		if a.dialect.IsRejection(msg) {
			a.store.SetError(errPairingRejected)
			a.deliver(wallet.Failed(errPairingRejected))
			continue
		}

		if a.dialect.IsSessionDelete(msg) {
			a.logger.Info("Session deleted by remote wallet",
				zap.String("topic", topic))
			a.store.Clear()
			if err := a.store.ClearPersisted(context.Background()); err != nil {
				a.logger.Warn("Failed to clear persisted connection", zap.Error(err))
			}
			continue
		}

		if result, ok := a.dialect.ParseSignResult(msg); ok {
			a.pendingMu.Lock()
			waiting := a.pending[result.RequestID]
			a.pendingMu.Unlock()
			if waiting != nil {
				waiting <- *result
			} else {
				a.logger.Debug("Dropping unmatched sign result",
					zap.String("request_id", result.RequestID))
			}
			continue
		}

		a.logger.Debug("Ignoring relay message",
			zap.String("type", msg.Type), zap.String("topic", topic))
	}
}

func (a *Adapter) handleApproval(topic string, approval *Approval, err error) {
	if err != nil {
		a.store.SetError(err)
		a.deliver(wallet.Failed(err))
		return
	}

	a.store.SetConnected(approval.AccountID, approval.SessionHandle)
	if persistErr := a.store.Persist(context.Background()); persistErr != nil {
		a.logger.Warn("Failed to persist connection", zap.Error(persistErr))
	}

	// Session traffic may move to its own topic after approval.
	if approval.SessionHandle != topic {
		a.ensureListening(approval.SessionHandle)
	}

	a.deliver(wallet.Connected(approval.AccountID))
}

func (a *Adapter) setWaiter(ch chan wallet.ConnectResult) {
	a.waiterMu.Lock()
	a.waiter = ch
	a.waiterMu.Unlock()
}

func (a *Adapter) clearWaiter() {
	a.waiterMu.Lock()
	a.waiter = nil
	a.waiterMu.Unlock()
}

// deliver hands the result to the waiting connect, if one is still waiting.
// A result arriving after the wait ended is dropped here; the connection
// record was already updated.
func (a *Adapter) deliver(result wallet.ConnectResult) {
	a.waiterMu.Lock()
	waiter := a.waiter
	a.waiter = nil
	a.waiterMu.Unlock()

	if waiter != nil {
		waiter <- result
	}
}
