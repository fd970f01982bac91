// Package service contains the application services between the HTTP
// handlers and storage.
package service

import (
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/storage"
)

// Services aggregates all application services
type Services struct {
	Auth *AuthService
}

// NewServices creates the service aggregate
func NewServices(store storage.Store, logger *zap.Logger) *Services {
	return &Services{
		Auth: NewAuthService(store, logger),
	}
}
