package links

import (
	"context"
	"sync"

	"ckeytools/core/database"
	"ckeytools/core/guild"
)

// Provider hands out the store for a guild. Connections come from a
// database.Registry; each guild gets its own store because the table prefix
// is per guild even when the connection is shared.
type Provider struct {
	conns    *database.Registry
	fallback database.Config
	opts     []Option

	mu     sync.Mutex
	stores map[string]*GormStore
}

// NewProvider creates a provider over a connection registry.
func NewProvider(conns *database.Registry, fallback database.Config, opts ...Option) *Provider {
	return &Provider{
		conns:    conns,
		fallback: fallback,
		opts:     opts,
		stores:   make(map[string]*GormStore),
	}
}

// For returns the guild's store, connecting and creating the table on first
// use. Failures are not cached.
func (p *Provider) For(ctx context.Context, g guild.Config) (Store, error) {
	p.mu.Lock()
	s, ok := p.stores[g.ID]
	p.mu.Unlock()
	if ok {
		return s, nil
	}

	cfg := g.DatabaseConfig(p.fallback)
	db, err := p.conns.Get(ctx, g.ConnectionKey(), cfg)
	if err != nil {
		return nil, unavailable("connect guild "+g.ID, err)
	}

	s = NewGormStore(db, cfg.TablePrefix, p.opts...)
	if err := s.EnsureTable(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.stores[g.ID]; ok {
		return existing, nil
	}
	p.stores[g.ID] = s
	return s, nil
}

// StaticProvider serves one store for every guild.
type StaticProvider struct {
	Store Store
}

// For returns the wrapped store.
func (p StaticProvider) For(context.Context, guild.Config) (Store, error) {
	return p.Store, nil
}
