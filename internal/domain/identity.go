package domain

// IdentityKind tags which of the two identity stores a session references.
type IdentityKind string

const (
	// IdentityWallet is a wallet-account-based pseudo-user identity.
	IdentityWallet IdentityKind = "wallet"
	// IdentityPassword is a conventional numeric user-row identity.
	IdentityPassword IdentityKind = "id"
)

// SessionIdentity is the canonical tagged identity carried by a session.
// Exactly one kind is active; the other key field is zero.
type SessionIdentity struct {
	Kind      IdentityKind `json:"kind"`
	AccountID string       `json:"account_id,omitempty"`
	UserID    int64        `json:"user_id,omitempty"`
}

// WalletIdentity builds a wallet-kind session identity
func WalletIdentity(accountID string) SessionIdentity {
	return SessionIdentity{Kind: IdentityWallet, AccountID: accountID}
}

// PasswordIdentity builds a password-kind session identity
func PasswordIdentity(userID int64) SessionIdentity {
	return SessionIdentity{Kind: IdentityPassword, UserID: userID}
}
