package relay

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

// Dialect describes one relay protocol's message shapes. The pairing wait,
// timeout handling, late-event tolerance and sign correlation live in the
// Adapter and are shared across dialects.
type Dialect interface {
	// Provider names the wallet provider this dialect speaks for.
	Provider() domain.Provider

	// PairingURI renders the URI presented to the user (QR or deep link).
	PairingURI(topic string, cfg config.RelayConfig) string

	// Proposal builds the pairing proposal published on topic.
	Proposal(topic string, cfg config.RelayConfig) Message

	// ParseApproval inspects msg. ok is false when msg is not an approval;
	// err is set when msg is an approval the dialect cannot decode.
	ParseApproval(msg Message) (approval *Approval, ok bool, err error)

	// IsRejection reports whether msg is a pairing rejection.
	IsRejection(msg Message) bool

	// IsSessionDelete reports whether msg is a remote session teardown.
	IsSessionDelete(msg Message) bool

	// SessionDelete builds the teardown message for a session handle.
	SessionDelete(handle string) Message

	// SignRequest builds a signing request with the given correlation id.
	SignRequest(handle, requestID string, payload []byte) Message

	// ParseSignResult inspects msg. ok is false when msg is not a sign result.
	ParseSignResult(msg Message) (result *SignResult, ok bool)
}

// standardDialect speaks the namespace-based pairing protocol: approvals
// carry "chain:network:account" addresses and sessions get their own topic.
type standardDialect struct{}

// StandardDialect returns the dialect for domain.ProviderRelay.
func StandardDialect() Dialect { return standardDialect{} }

func (standardDialect) Provider() domain.Provider { return domain.ProviderRelay }

func (standardDialect) PairingURI(topic string, cfg config.RelayConfig) string {
	return fmt.Sprintf("wg:%s@1?relay=%s&project=%s",
		topic, url.QueryEscape(cfg.URL), url.QueryEscape(cfg.ProjectID))
}

type standardProposalPayload struct {
	App     string `json:"app"`
	Network string `json:"network"`
}

func (standardDialect) Proposal(topic string, cfg config.RelayConfig) Message {
	payload, _ := json.Marshal(standardProposalPayload{
		App:     "wallet-gateway",
		Network: cfg.Network,
	})
	return Message{Type: "pairing_proposal", Topic: topic, Payload: payload}
}

type standardApprovalPayload struct {
	Namespaces   []string `json:"namespaces"`
	SessionTopic string   `json:"session_topic"`
}

func (standardDialect) ParseApproval(msg Message) (*Approval, bool, error) {
	if msg.Type != "pairing_approved" {
		return nil, false, nil
	}

	var payload standardApprovalPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, true, fmt.Errorf("unreadable pairing approval: %w", err)
	}
	if len(payload.Namespaces) == 0 {
		return nil, true, fmt.Errorf("pairing approval carried no namespaces")
	}

	account, err := domain.AccountFromNamespace(payload.Namespaces[0])
	if err != nil {
		return nil, true, err
	}

	handle := payload.SessionTopic
	if handle == "" {
		handle = msg.Topic
	}
	return &Approval{AccountID: account, SessionHandle: handle}, true, nil
}

func (standardDialect) IsRejection(msg Message) bool {
	return msg.Type == "pairing_rejected"
}

func (standardDialect) IsSessionDelete(msg Message) bool {
	return msg.Type == "session_delete"
}

func (standardDialect) SessionDelete(handle string) Message {
	return Message{Type: "session_delete", Topic: handle}
}

type standardSignPayload struct {
	Transaction []byte `json:"transaction"`
}

func (standardDialect) SignRequest(handle, requestID string, payload []byte) Message {
	raw, _ := json.Marshal(standardSignPayload{Transaction: payload})
	return Message{Type: "sign_request", Topic: handle, ID: requestID, Payload: raw}
}

type standardSignResultPayload struct {
	Approved      bool   `json:"approved"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

func (standardDialect) ParseSignResult(msg Message) (*SignResult, bool) {
	if msg.Type != "sign_result" {
		return nil, false
	}

	var payload standardSignResultPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return &SignResult{RequestID: msg.ID, Approved: false, Reason: "unreadable sign result"}, true
	}
	return &SignResult{
		RequestID:     msg.ID,
		TransactionID: payload.TransactionID,
		Approved:      payload.Approved,
		Reason:        payload.Reason,
	}, true
}
