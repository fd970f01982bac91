package domain

import "time"

// User represents a password-authenticated user row
type User struct {
	ID           int64     `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	IsAdmin      bool      `json:"is_admin" bson:"is_admin"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// WalletAccount represents a wallet-derived pseudo-user. It is keyed by the
// external ledger account identifier rather than a numeric id.
type WalletAccount struct {
	AccountID string    `json:"account_id" bson:"_id"`
	IsAdmin   bool      `json:"is_admin" bson:"is_admin"`
	FirstSeen time.Time `json:"first_seen" bson:"first_seen"`
	LastLogin time.Time `json:"last_login" bson:"last_login"`
}

// LoginRequest represents a password login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// WalletLoginRequest represents a wallet login request. The client writes the
// connected account into the session through this second identity path.
type WalletLoginRequest struct {
	AccountID string `json:"accountId" binding:"required"`
}
