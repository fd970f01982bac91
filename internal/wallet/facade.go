package wallet

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
)

// Facade is the single entry point callers use to talk to wallets. It selects
// the active adapter, exposes a provider-agnostic connection view, and
// coalesces concurrent connect attempts against the same adapter.
type Facade struct {
	mu        sync.RWMutex
	providers map[domain.Provider]Provider
	order     []domain.Provider
	active    domain.Provider

	connects singleflight.Group
	logger   *zap.Logger
}

// NewFacade creates a facade over the given adapters. Registration order
// decides restoration priority.
func NewFacade(logger *zap.Logger, providers ...Provider) *Facade {
	f := &Facade{
		providers: make(map[domain.Provider]Provider, len(providers)),
		logger:    logger.Named("facade"),
	}
	for _, p := range providers {
		f.providers[p.Name()] = p
		f.order = append(f.order, p.Name())
	}
	return f
}

// Restore attempts to resume a previously persisted connection without
// re-pairing. Relay session handles normally stay valid across restarts, so
// the adapter is marked connected optimistically. The first adapter that
// restores becomes active.
func (f *Facade) Restore(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, name := range f.order {
		if f.providers[name].Restore(ctx) {
			f.active = name
			f.logger.Info("Restored wallet connection",
				zap.String("provider", string(name)))
			return
		}
	}
}

// Connect connects through the named provider. Switching providers implicitly
// disconnects the previous one. Concurrent calls against the same provider
// while pairing is in flight share one pairing attempt and observe the same
// result.
func (f *Facade) Connect(ctx context.Context, name domain.Provider) ConnectResult {
	provider, ok := f.provider(name)
	if !ok {
		return Failed(fmt.Errorf("unknown wallet provider: %q", name))
	}

	f.mu.Lock()
	if f.active != "" && f.active != name {
		previous := f.providers[f.active]
		f.active = ""
		f.mu.Unlock()
		previous.Disconnect(ctx)
	} else {
		f.mu.Unlock()
	}

	v, _, _ := f.connects.Do(string(name), func() (interface{}, error) {
		return provider.Connect(ctx), nil
	})
	result := v.(ConnectResult)

	if result.Success {
		f.mu.Lock()
		f.active = name
		f.mu.Unlock()
	}
	return result
}

// Disconnect tears down the active connection, if any. The active adapter is
// always released locally regardless of the remote outcome.
func (f *Facade) Disconnect(ctx context.Context) bool {
	f.mu.Lock()
	name := f.active
	f.active = ""
	f.mu.Unlock()

	if name == "" {
		return true
	}
	return f.providers[name].Disconnect(ctx)
}

// ActiveAccount returns the connected account of the active adapter
func (f *Facade) ActiveAccount() (string, bool) {
	state := f.State()
	if !state.Connected || state.AccountID == "" {
		return "", false
	}
	return state.AccountID, true
}

// State returns the connection view of the active adapter
func (f *Facade) State() domain.ConnectionState {
	f.mu.RLock()
	name := f.active
	f.mu.RUnlock()

	if name == "" {
		return domain.ConnectionState{}
	}
	return f.providers[name].State()
}

// SignAndSubmit delegates a signing request to the active adapter
func (f *Facade) SignAndSubmit(ctx context.Context, payload []byte) (string, error) {
	f.mu.RLock()
	name := f.active
	f.mu.RUnlock()

	if name == "" {
		return "", ErrNotConnected
	}
	return f.providers[name].SignAndSubmit(ctx, payload)
}

func (f *Facade) provider(name domain.Provider) (Provider, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.providers[name]
	return p, ok
}
