// Package relay implements wallet pairing over a third-party message relay.
// The transport and the pairing/timeout logic are shared; the message shapes
// of a concrete relay protocol are described by a Dialect.
package relay

import "encoding/json"

// Message is the relay wire envelope. Payload interpretation is left to the
// dialect in use.
type Message struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Approval is the provider-agnostic outcome of an approved pairing.
type Approval struct {
	// AccountID is the bare account identifier, with any chain/network
	// discriminators already stripped.
	AccountID string
	// SessionHandle is the opaque handle for the established session.
	SessionHandle string
}

// SignResult is the provider-agnostic outcome of a signing request.
type SignResult struct {
	RequestID     string
	TransactionID string
	Approved      bool
	Reason        string
}
