package guild

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownGuild is returned for guilds without configuration.
var ErrUnknownGuild = errors.New("unknown guild")

// Registry resolves guild ids to their configuration.
type Registry struct {
	mu     sync.RWMutex
	guilds map[string]Config
}

// NewRegistry validates and indexes the given guild configurations.
func NewRegistry(cfgs []Config) (*Registry, error) {
	r := &Registry{guilds: make(map[string]Config, len(cfgs))}
	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.guilds[cfg.ID]; dup {
			return nil, fmt.Errorf("guild %s configured twice", cfg.ID)
		}
		r.guilds[cfg.ID] = cfg
	}
	return r, nil
}

// Get returns the configuration for a guild.
func (r *Registry) Get(id string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.guilds[id]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownGuild, id)
	}
	return cfg, nil
}

// Put replaces or adds a guild configuration.
func (r *Registry) Put(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.guilds[cfg.ID] = cfg
	r.mu.Unlock()
	return nil
}

// All returns every configuration ordered by guild id.
func (r *Registry) All() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Config, 0, len(r.guilds))
	for _, cfg := range r.guilds {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
