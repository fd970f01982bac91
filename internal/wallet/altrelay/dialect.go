// Package altrelay provides the alternate relay protocol dialect. It reuses
// the shared relay transport and adapter; only the message shapes differ:
// pairing strings are base64 deep links and approvals carry bare account ids
// instead of namespaced addresses.
package altrelay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet/relay"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

// New creates the alternate-relay provider adapter.
func New(cfg config.RelayConfig, pairingTimeout time.Duration, store *wallet.ConnectionStore, logger *zap.Logger, opts ...relay.Option) *relay.Adapter {
	return relay.NewAdapter(Dialect(), cfg, pairingTimeout, store, logger, opts...)
}

type dialect struct{}

// Dialect returns the alternate relay dialect.
func Dialect() relay.Dialect { return dialect{} }

func (dialect) Provider() domain.Provider { return domain.ProviderAltRelay }

type pairingString struct {
	Topic   string `json:"topic"`
	Relay   string `json:"relay"`
	Network string `json:"network"`
}

func (dialect) PairingURI(topic string, cfg config.RelayConfig) string {
	raw, _ := json.Marshal(pairingString{
		Topic:   topic,
		Relay:   cfg.URL,
		Network: cfg.Network,
	})
	return "altwallet://pair/" + base64.RawURLEncoding.EncodeToString(raw)
}

type proposalPayload struct {
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Network string `json:"network"`
}

func (dialect) Proposal(topic string, cfg config.RelayConfig) relay.Message {
	var p proposalPayload
	p.Metadata.Name = "wallet-gateway"
	p.Network = cfg.Network
	raw, _ := json.Marshal(p)
	return relay.Message{Type: "session_proposal", Topic: topic, Payload: raw}
}

type approvalPayload struct {
	AccountIDs []string `json:"accountIds"`
	Topic      string   `json:"topic"`
	Network    string   `json:"network"`
}

func (dialect) ParseApproval(msg relay.Message) (*relay.Approval, bool, error) {
	if msg.Type != "session_approve" {
		return nil, false, nil
	}

	var payload approvalPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, true, fmt.Errorf("unreadable session approval: %w", err)
	}
	if len(payload.AccountIDs) == 0 || payload.AccountIDs[0] == "" {
		return nil, true, fmt.Errorf("session approval carried no accounts")
	}

	handle := payload.Topic
	if handle == "" {
		handle = msg.Topic
	}
	return &relay.Approval{AccountID: payload.AccountIDs[0], SessionHandle: handle}, true, nil
}

func (dialect) IsRejection(msg relay.Message) bool {
	return msg.Type == "session_reject"
}

func (dialect) IsSessionDelete(msg relay.Message) bool {
	return msg.Type == "session_close"
}

func (dialect) SessionDelete(handle string) relay.Message {
	return relay.Message{Type: "session_close", Topic: handle}
}

type signPayload struct {
	Bytes []byte `json:"bytes"`
}

func (dialect) SignRequest(handle, requestID string, payload []byte) relay.Message {
	raw, _ := json.Marshal(signPayload{Bytes: payload})
	return relay.Message{Type: "transaction_request", Topic: handle, ID: requestID, Payload: raw}
}

type signResultPayload struct {
	Success bool `json:"success"`
	Receipt struct {
		TransactionID string `json:"transactionId"`
	} `json:"receipt"`
	Error string `json:"error"`
}

func (dialect) ParseSignResult(msg relay.Message) (*relay.SignResult, bool) {
	if msg.Type != "transaction_response" {
		return nil, false
	}

	var payload signResultPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return &relay.SignResult{RequestID: msg.ID, Approved: false, Reason: "unreadable transaction response"}, true
	}
	return &relay.SignResult{
		RequestID:     msg.ID,
		TransactionID: payload.Receipt.TransactionID,
		Approved:      payload.Success,
		Reason:        payload.Error,
	}, true
}
