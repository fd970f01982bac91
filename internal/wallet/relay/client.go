package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

// Transport carries relay messages between the adapter and the relay service.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Dial establishes the relay connection. It is idempotent.
	Dial(ctx context.Context) error

	// Subscribe returns the message channel for a topic, creating it if
	// needed. Repeated calls for the same topic return the same channel.
	Subscribe(topic string) <-chan Message

	// Unsubscribe drops the topic subscription and closes its channel.
	Unsubscribe(topic string)

	// Publish sends a message to the relay.
	Publish(ctx context.Context, msg Message) error

	// Close tears down the connection and all subscriptions.
	Close() error
}

// Client is the WebSocket relay transport.
type Client struct {
	cfg    config.RelayConfig
	logger *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	dialed bool

	sendMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[string]chan Message
}

// NewClient creates a relay client for cfg. No connection is made until Dial.
func NewClient(cfg config.RelayConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.Named("relay"),
		subs:   make(map[string]chan Message),
	}
}

// Dial connects to the relay, authenticating with a short-lived project token.
func (c *Client) Dial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialed {
		return nil
	}

	token, err := c.authToken()
	if err != nil {
		return fmt.Errorf("failed to build relay auth token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("relay dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("relay dial failed: %w", err)
	}

	c.conn = conn
	c.dialed = true
	go c.readPump(conn)

	c.logger.Debug("Relay connected", zap.String("url", c.cfg.URL))
	return nil
}

// authToken signs a short-lived HMAC token identifying the project to the
// relay operator.
func (c *Client) authToken() (string, error) {
	secret := c.cfg.ProjectSecret
	if secret == "" {
		secret = c.cfg.ProjectID
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": c.cfg.ProjectID,
		"iss": "wallet-gateway",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Relay read error", zap.Error(err))
			}
			c.mu.Lock()
			if c.conn == conn {
				c.dialed = false
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	c.subsMu.RLock()
	ch, ok := c.subs[msg.Topic]
	c.subsMu.RUnlock()

	if !ok {
		c.logger.Debug("Dropping message for unknown topic",
			zap.String("topic", msg.Topic), zap.String("type", msg.Type))
		return
	}

	select {
	case ch <- msg:
	default:
		c.logger.Warn("Subscription channel full, dropping message",
			zap.String("topic", msg.Topic))
	}
}

func (c *Client) Subscribe(topic string) <-chan Message {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if ch, ok := c.subs[topic]; ok {
		return ch
	}
	ch := make(chan Message, 16)
	c.subs[topic] = ch
	return ch
}

func (c *Client) Unsubscribe(topic string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if ch, ok := c.subs[topic]; ok {
		delete(c.subs, topic)
		close(ch)
	}
}

func (c *Client) Publish(ctx context.Context, msg Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("relay not connected")
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	return conn.WriteJSON(msg)
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.dialed = false
	c.mu.Unlock()

	c.subsMu.Lock()
	for topic, ch := range c.subs {
		delete(c.subs, topic)
		close(ch)
	}
	c.subsMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
