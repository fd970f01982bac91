package extension

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/wallet"
)

const responseTimeout = 30 * time.Second

// message is the extension channel envelope.
type message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WebsocketMessenger talks to the local wallet extension agent over its
// WebSocket message channel. The connection is dialed lazily; a failed dial
// during Detect means the extension is absent, not broken.
type WebsocketMessenger struct {
	endpoint string
	logger   *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	sendMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan message

	events chan Event
}

// NewWebsocketMessenger creates a messenger for the agent at endpoint.
func NewWebsocketMessenger(endpoint string, logger *zap.Logger) *WebsocketMessenger {
	return &WebsocketMessenger{
		endpoint: endpoint,
		logger:   logger.Named("messenger"),
		pending:  make(map[string]chan message),
		events:   make(chan Event, 16),
	}
}

func (m *WebsocketMessenger) dial(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.endpoint, nil)
	if err != nil {
		return err
	}
	m.conn = conn
	go m.readPump(conn)
	return nil
}

func (m *WebsocketMessenger) readPump(conn *websocket.Conn) {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()
			return
		}

		switch msg.Type {
		case "paired":
			var payload struct {
				AccountID string `json:"account_id"`
				Handle    string `json:"handle"`
			}
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				m.logger.Warn("Unreadable pairing event", zap.Error(err))
				continue
			}
			m.emit(Event{Type: EventPaired, AccountID: payload.AccountID, SessionHandle: payload.Handle})
		case "disconnected":
			m.emit(Event{Type: EventDisconnected})
		default:
			if msg.ID != "" {
				m.resolve(msg)
			}
		}
	}
}

func (m *WebsocketMessenger) emit(event Event) {
	select {
	case m.events <- event:
	default:
		m.logger.Warn("Event channel full, dropping extension event",
			zap.String("type", string(event.Type)))
	}
}

func (m *WebsocketMessenger) resolve(msg message) {
	m.pendingMu.Lock()
	waiting := m.pending[msg.ID]
	m.pendingMu.Unlock()
	if waiting != nil {
		waiting <- msg
	}
}

// request sends msg and waits for the response carrying the same id.
func (m *WebsocketMessenger) request(ctx context.Context, msg message) (message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	responseCh := make(chan message, 1)
	m.pendingMu.Lock()
	m.pending[msg.ID] = responseCh
	m.pendingMu.Unlock()
	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, msg.ID)
		m.pendingMu.Unlock()
	}()

	if err := m.send(msg); err != nil {
		return message{}, err
	}

	select {
	case <-ctx.Done():
		return message{}, ctx.Err()
	case <-time.After(responseTimeout):
		return message{}, fmt.Errorf("extension response timed out")
	case resp := <-responseCh:
		return resp, nil
	}
}

func (m *WebsocketMessenger) send(msg message) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("extension channel not connected")
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}

// Detect dials the local agent and asks for its status. An unreachable agent
// means the extension is not installed.
func (m *WebsocketMessenger) Detect(ctx context.Context) (bool, error) {
	if err := m.dial(ctx); err != nil {
		m.logger.Debug("Extension agent unreachable", zap.Error(err))
		return false, nil
	}

	resp, err := m.request(ctx, message{Type: "status"})
	if err != nil {
		return false, err
	}

	var payload struct {
		Installed bool `json:"installed"`
	}
	if err := json.Unmarshal(resp.Payload, &payload); err != nil {
		return false, fmt.Errorf("unreadable status response: %w", err)
	}
	return payload.Installed, nil
}

// RequestPairing fires the pairing prompt. The approval arrives later as an
// event.
func (m *WebsocketMessenger) RequestPairing(ctx context.Context) error {
	if err := m.dial(ctx); err != nil {
		return err
	}
	return m.send(message{Type: "pair_request"})
}

// Sign submits payload for signing and waits for the result.
func (m *WebsocketMessenger) Sign(ctx context.Context, payload []byte) (string, error) {
	if err := m.dial(ctx); err != nil {
		return "", err
	}

	raw, err := json.Marshal(struct {
		Bytes []byte `json:"bytes"`
	}{Bytes: payload})
	if err != nil {
		return "", err
	}

	resp, err := m.request(ctx, message{Type: "sign_request", Payload: raw})
	if err != nil {
		return "", err
	}

	var result struct {
		Approved      bool   `json:"approved"`
		TransactionID string `json:"transaction_id"`
		Reason        string `json:"reason"`
	}
	if err := json.Unmarshal(resp.Payload, &result); err != nil {
		return "", fmt.Errorf("unreadable sign result: %w", err)
	}
	if !result.Approved {
		if result.Reason != "" {
			return "", fmt.Errorf("%w: %s", wallet.ErrTransactionRejected, result.Reason)
		}
		return "", wallet.ErrTransactionRejected
	}
	if result.TransactionID != "" {
		return result.TransactionID, nil
	}
	return resp.ID, nil
}

// Teardown asks the agent to drop the pairing.
func (m *WebsocketMessenger) Teardown(ctx context.Context) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return nil
	}
	return m.send(message{Type: "disconnect"})
}

// Events delivers asynchronous extension events.
func (m *WebsocketMessenger) Events() <-chan Event {
	return m.events
}

// Close drops the connection.
func (m *WebsocketMessenger) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
