// Package wallet defines the uniform provider contract for external wallet
// protocols, the per-adapter connection store, and the session facade that
// callers depend on.
//
// Each adapter wraps one provider's pairing protocol. Provider-level errors
// never cross the adapter boundary: connects resolve to a ConnectResult and
// signing failures map onto the typed errors below.
package wallet

import (
	"context"
	"errors"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
)

var (
	// ErrInitConfig means required provider configuration is absent. It is
	// fatal to that adapter only and surfaces as a failed connect.
	ErrInitConfig = errors.New("provider configuration missing")

	// ErrExtensionNotFound means no local wallet extension could be detected.
	ErrExtensionNotFound = errors.New("wallet extension not found")

	// ErrConnectionTimeout means pairing was not approved before the deadline.
	ErrConnectionTimeout = errors.New("wallet pairing timed out")

	// ErrNotConnected means a signing request was made without an active session.
	ErrNotConnected = errors.New("no active wallet session")

	// ErrTransactionRejected means the remote wallet declined the request.
	ErrTransactionRejected = errors.New("transaction rejected by wallet")

	// ErrTransport covers relay or extension communication failures.
	ErrTransport = errors.New("wallet transport failure")
)

// ConnectResult is the structured outcome of a connect attempt. Failures are
// carried as values; adapters never let a raw provider error escape.
type ConnectResult struct {
	Success   bool   `json:"success"`
	AccountID string `json:"accountId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Connected builds a successful ConnectResult
func Connected(accountID string) ConnectResult {
	return ConnectResult{Success: true, AccountID: accountID}
}

// Failed builds a failed ConnectResult from err
func Failed(err error) ConnectResult {
	return ConnectResult{Success: false, Error: err.Error()}
}

// Provider is the uniform contract all wallet adapters implement.
type Provider interface {
	// Name identifies the provider.
	Name() domain.Provider

	// Initialize establishes the provider client exactly once per process
	// lifetime. It is idempotent and returns ErrInitConfig when required
	// configuration is absent.
	Initialize(ctx context.Context) error

	// Connect pairs with the wallet. If already connected it returns the
	// cached account without re-pairing.
	Connect(ctx context.Context) ConnectResult

	// Disconnect tears down the session. Local and persisted state are
	// always cleared, even when the remote teardown fails; the return
	// value reports whether the remote side acknowledged.
	Disconnect(ctx context.Context) bool

	// State is a pure read of the in-memory connection record.
	State() domain.ConnectionState

	// SignAndSubmit delegates a signing request to the connected wallet
	// and returns a correlation identifier.
	SignAndSubmit(ctx context.Context, payload []byte) (string, error)

	// Restore optimistically marks the adapter connected from persisted
	// state, without re-pairing. It reports whether state was restored.
	Restore(ctx context.Context) bool
}
