package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/kvstore"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

// fakeTransport is an in-process Transport. Tests script the wallet side by
// replying from the onPublish hook or by pushing messages directly.
type fakeTransport struct {
	mu        sync.Mutex
	channels  map[string]chan Message
	published []Message

	dialErr    error
	publishErr error
	onPublish  func(msg Message)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{channels: make(map[string]chan Message)}
}

func (t *fakeTransport) Dial(ctx context.Context) error { return t.dialErr }

func (t *fakeTransport) Subscribe(topic string) <-chan Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[topic]
	if !ok {
		ch = make(chan Message, 16)
		t.channels[topic] = ch
	}
	return ch
}

func (t *fakeTransport) Unsubscribe(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.channels[topic]; ok {
		close(ch)
		delete(t.channels, topic)
	}
}

func (t *fakeTransport) Publish(ctx context.Context, msg Message) error {
	t.mu.Lock()
	t.published = append(t.published, msg)
	hook := t.onPublish
	t.mu.Unlock()

	if t.publishErr != nil {
		return t.publishErr
	}
	if hook != nil {
		hook(msg)
	}
	return nil
}

func (t *fakeTransport) Close() error { return nil }

// push delivers a message as if the relay sent it.
func (t *fakeTransport) push(topic string, msg Message) {
	t.mu.Lock()
	ch := t.channels[topic]
	t.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

func (t *fakeTransport) publishedTypes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	types := make([]string, 0, len(t.published))
	for _, msg := range t.published {
		types = append(types, msg.Type)
	}
	return types
}

func newTestAdapter(t *testing.T, transport Transport, pairingTimeout time.Duration) (*Adapter, *wallet.ConnectionStore) {
	t.Helper()
	store := wallet.NewConnectionStore(domain.ProviderRelay, kvstore.NewMemoryStore(), zap.NewNop())
	cfg := config.RelayConfig{URL: "wss://relay.test", ProjectID: "project", Network: "testnet"}
	adapter := NewAdapter(StandardDialect(), cfg, pairingTimeout, store, zap.NewNop(),
		WithTransport(transport))
	return adapter, store
}

func approvalMessage(topic, namespace, sessionTopic string) Message {
	payload, _ := json.Marshal(standardApprovalPayload{
		Namespaces:   []string{namespace},
		SessionTopic: sessionTopic,
	})
	return Message{Type: "pairing_approved", Topic: topic, Payload: payload}
}

func TestAdapterInitializeRequiresConfig(t *testing.T) {
	store := wallet.NewConnectionStore(domain.ProviderRelay, kvstore.NewMemoryStore(), zap.NewNop())
	adapter := NewAdapter(StandardDialect(), config.RelayConfig{}, time.Second, store, zap.NewNop())

	result := adapter.Connect(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, wallet.ErrInitConfig.Error())

	// Initialize is once-only; the same error comes back on retry.
	result = adapter.Connect(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, wallet.ErrInitConfig.Error())
}

func TestAdapterConnectApproved(t *testing.T) {
	transport := newFakeTransport()
	transport.onPublish = func(msg Message) {
		if msg.Type == "pairing_proposal" {
			transport.push(msg.Topic, approvalMessage(msg.Topic, "ledger:testnet:0.0.777", "session-1"))
		}
	}
	adapter, store := newTestAdapter(t, transport, 2*time.Second)

	result := adapter.Connect(context.Background())
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "0.0.777", result.AccountID,
		"account must be the bare segment of the namespaced address")

	record := store.Record()
	assert.Equal(t, domain.PhaseConnected, record.Phase)
	assert.Equal(t, "session-1", record.SessionHandle)

	persisted, ok := store.Restore(context.Background())
	require.True(t, ok, "an approved pairing must be persisted")
	assert.Equal(t, "0.0.777", persisted.AccountID)
}

func TestAdapterConnectAlreadyConnectedReturnsCachedAccount(t *testing.T) {
	transport := newFakeTransport()
	adapter, store := newTestAdapter(t, transport, 2*time.Second)
	store.SetConnected("0.0.777", "session-1")

	result := adapter.Connect(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, "0.0.777", result.AccountID)
	assert.Empty(t, transport.publishedTypes(), "no proposal for an existing session")
}

func TestAdapterConnectTimesOut(t *testing.T) {
	adapter, store := newTestAdapter(t, newFakeTransport(), 30*time.Millisecond)

	result := adapter.Connect(context.Background())
	assert.False(t, result.Success)
	assert.Equal(t, wallet.ErrConnectionTimeout.Error(), result.Error)
	assert.Equal(t, domain.PhaseIdle, store.Phase(), "a timed out pairing returns to idle")
}

func TestAdapterConnectCancelledIsNotATimeout(t *testing.T) {
	adapter, store := newTestAdapter(t, newFakeTransport(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := adapter.Connect(ctx)
	assert.False(t, result.Success)
	assert.Equal(t, context.Canceled.Error(), result.Error)
	assert.Equal(t, context.Canceled.Error(), store.Record().LastError,
		"an abandoned connect must not be recorded as a pairing timeout")
}

func TestAdapterLateApprovalUpdatesRecordQuietly(t *testing.T) {
	transport := newFakeTransport()
	var proposalTopic string
	var topicMu sync.Mutex
	transport.onPublish = func(msg Message) {
		if msg.Type == "pairing_proposal" {
			topicMu.Lock()
			proposalTopic = msg.Topic
			topicMu.Unlock()
		}
	}
	adapter, store := newTestAdapter(t, transport, 30*time.Millisecond)

	result := adapter.Connect(context.Background())
	require.False(t, result.Success)

	// The wallet approves after the connect already gave up.
	topicMu.Lock()
	topic := proposalTopic
	topicMu.Unlock()
	transport.push(topic, approvalMessage(topic, "ledger:testnet:0.0.888", "session-2"))

	require.Eventually(t, func() bool {
		return store.State().Connected
	}, time.Second, 5*time.Millisecond, "late approval must still land in the record")
	assert.Equal(t, "0.0.888", store.State().AccountID)
}

func TestAdapterConnectRejected(t *testing.T) {
	transport := newFakeTransport()
	transport.onPublish = func(msg Message) {
		if msg.Type == "pairing_proposal" {
			transport.push(msg.Topic, Message{Type: "pairing_rejected", Topic: msg.Topic})
		}
	}
	adapter, store := newTestAdapter(t, transport, 2*time.Second)

	result := adapter.Connect(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "rejected")
	assert.Equal(t, domain.PhaseIdle, store.Phase())
}

func TestAdapterRemoteSessionDeleteClearsState(t *testing.T) {
	transport := newFakeTransport()
	transport.onPublish = func(msg Message) {
		if msg.Type == "pairing_proposal" {
			transport.push(msg.Topic, approvalMessage(msg.Topic, "ledger:testnet:0.0.777", "session-1"))
		}
	}
	adapter, store := newTestAdapter(t, transport, 2*time.Second)

	require.True(t, adapter.Connect(context.Background()).Success)

	transport.push("session-1", Message{Type: "session_delete", Topic: "session-1"})

	require.Eventually(t, func() bool {
		return !store.State().Connected
	}, time.Second, 5*time.Millisecond)
	_, ok := store.Restore(context.Background())
	assert.False(t, ok, "remote teardown must drop the persisted connection too")
}

func TestAdapterDisconnectClearsStateEvenWhenRemoteFails(t *testing.T) {
	transport := newFakeTransport()
	adapter, store := newTestAdapter(t, transport, 2*time.Second)
	require.NoError(t, adapter.Initialize(context.Background()))
	store.SetConnected("0.0.777", "session-1")
	require.NoError(t, store.Persist(context.Background()))

	transport.publishErr = errors.New("relay gone")

	remoteOK := adapter.Disconnect(context.Background())
	assert.False(t, remoteOK)
	assert.False(t, store.State().Connected)
	_, ok := store.Restore(context.Background())
	assert.False(t, ok)
}

func TestAdapterSignAndSubmit(t *testing.T) {
	transport := newFakeTransport()
	transport.onPublish = func(msg Message) {
		if msg.Type == "sign_request" {
			payload, _ := json.Marshal(standardSignResultPayload{
				Approved:      true,
				TransactionID: "tx-42",
			})
			transport.push(msg.Topic, Message{Type: "sign_result", Topic: msg.Topic, ID: msg.ID, Payload: payload})
		}
	}
	adapter, store := newTestAdapter(t, transport, 2*time.Second)
	store.SetConnected("0.0.777", "session-1")

	txID, err := adapter.SignAndSubmit(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "tx-42", txID)
}

func TestAdapterSignAndSubmitRejected(t *testing.T) {
	transport := newFakeTransport()
	transport.onPublish = func(msg Message) {
		if msg.Type == "sign_request" {
			payload, _ := json.Marshal(standardSignResultPayload{
				Approved: false,
				Reason:   "user declined",
			})
			transport.push(msg.Topic, Message{Type: "sign_result", Topic: msg.Topic, ID: msg.ID, Payload: payload})
		}
	}
	adapter, store := newTestAdapter(t, transport, 2*time.Second)
	store.SetConnected("0.0.777", "session-1")

	_, err := adapter.SignAndSubmit(context.Background(), []byte("payload"))
	assert.ErrorIs(t, err, wallet.ErrTransactionRejected)
	assert.Contains(t, err.Error(), "user declined")
}

func TestAdapterSignAndSubmitNotConnected(t *testing.T) {
	adapter, _ := newTestAdapter(t, newFakeTransport(), 2*time.Second)

	_, err := adapter.SignAndSubmit(context.Background(), []byte("payload"))
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
}

func TestAdapterRestore(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := wallet.NewConnectionStore(domain.ProviderRelay, kv, zap.NewNop())
	cfg := config.RelayConfig{URL: "wss://relay.test", ProjectID: "project"}
	adapter := NewAdapter(StandardDialect(), cfg, time.Second, store, zap.NewNop(),
		WithTransport(newFakeTransport()))

	assert.False(t, adapter.Restore(context.Background()), "nothing persisted yet")

	store.SetConnected("0.0.777", "session-1")
	require.NoError(t, store.Persist(context.Background()))
	store.Clear()

	// A fresh adapter over the same kv store resumes without pairing.
	store2 := wallet.NewConnectionStore(domain.ProviderRelay, kv, zap.NewNop())
	adapter2 := NewAdapter(StandardDialect(), cfg, time.Second, store2, zap.NewNop(),
		WithTransport(newFakeTransport()))
	require.True(t, adapter2.Restore(context.Background()))

	state := adapter2.State()
	assert.True(t, state.Connected)
	assert.Equal(t, "0.0.777", state.AccountID)
}

// Scenario from the connection lifecycle: approve pairing, disconnect, then
// a fresh facade over the same persisted state must come up disconnected.
func TestDisconnectSurvivesRestartAsDisconnected(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	cfg := config.RelayConfig{URL: "wss://relay.test", ProjectID: "project", Network: "net"}
	transport := newFakeTransport()
	transport.onPublish = func(msg Message) {
		if msg.Type == "pairing_proposal" {
			transport.push(msg.Topic, approvalMessage(msg.Topic, "chain:net:0.0.777", "session-1"))
		}
	}

	store := wallet.NewConnectionStore(domain.ProviderRelay, kv, zap.NewNop())
	adapter := NewAdapter(StandardDialect(), cfg, 2*time.Second, store, zap.NewNop(),
		WithTransport(transport))
	facade := wallet.NewFacade(zap.NewNop(), adapter)
	ctx := context.Background()

	result := facade.Connect(ctx, domain.ProviderRelay)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "0.0.777", result.AccountID)

	facade.Disconnect(ctx)

	// Fresh facade over the same kv: nothing to restore.
	store2 := wallet.NewConnectionStore(domain.ProviderRelay, kv, zap.NewNop())
	adapter2 := NewAdapter(StandardDialect(), cfg, 2*time.Second, store2, zap.NewNop(),
		WithTransport(newFakeTransport()))
	facade2 := wallet.NewFacade(zap.NewNop(), adapter2)
	facade2.Restore(ctx)

	assert.False(t, facade2.State().Connected)
	_, ok := facade2.ActiveAccount()
	assert.False(t, ok)
}
