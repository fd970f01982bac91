package domain

// Provider identifies one of the supported external wallet protocols.
type Provider string

const (
	// ProviderExtension pairs with a locally installed browser/agent extension.
	ProviderExtension Provider = "extension"
	// ProviderRelay pairs through a third-party message relay.
	ProviderRelay Provider = "relay"
	// ProviderAltRelay pairs through a relay speaking the alternate envelope dialect.
	ProviderAltRelay Provider = "altrelay"
)

// Valid reports whether p names a known provider
func (p Provider) Valid() bool {
	switch p {
	case ProviderExtension, ProviderRelay, ProviderAltRelay:
		return true
	}
	return false
}

// ConnectionPhase is the adapter lifecycle phase
type ConnectionPhase string

const (
	PhaseUninitialized ConnectionPhase = "uninitialized"
	PhaseInitializing  ConnectionPhase = "initializing"
	PhaseIdle          ConnectionPhase = "idle"
	PhasePairing       ConnectionPhase = "pairing"
	PhaseConnected     ConnectionPhase = "connected"
	PhaseDisconnecting ConnectionPhase = "disconnecting"
)

// ConnectionRecord is the per-adapter connection state. It is mutated only by
// the owning adapter and its event handlers.
type ConnectionRecord struct {
	Provider      Provider        `json:"provider"`
	Phase         ConnectionPhase `json:"phase"`
	AccountID     string          `json:"account_id,omitempty"`
	Connected     bool            `json:"connected"`
	SessionHandle string          `json:"session_handle,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// ConnectionState is the provider-agnostic view exposed to callers
type ConnectionState struct {
	Connected bool   `json:"isConnected"`
	AccountID string `json:"accountId,omitempty"`
}

// PersistedConnection is the durable subset of a ConnectionRecord, written
// only after a connection reached Connected so a restart can restore
// connectivity without re-pairing.
type PersistedConnection struct {
	AccountID     string `json:"account_id"`
	SessionHandle string `json:"session_handle"`
}
