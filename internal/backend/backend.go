// Package backend selects the identity storage implementation from
// configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/hashpoint/go-wallet-gateway/internal/storage"
	"github.com/hashpoint/go-wallet-gateway/internal/storage/memory"
	"github.com/hashpoint/go-wallet-gateway/internal/storage/mongodb"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

// New creates a storage backend based on configuration
func New(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "memory":
		return memory.NewStore(), nil
	case "mongodb":
		store, err := mongodb.NewStore(ctx, &cfg.Storage.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to create MongoDB store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}
