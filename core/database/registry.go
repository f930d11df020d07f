package database

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Registry keeps one lazily opened connection per key (a guild id).
// Failed connections are not cached, so the next caller retries.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*gorm.DB
	sf      singleflight.Group
	connect func(Config) (*gorm.DB, error)
}

// NewRegistry creates a registry that opens connections with Connect.
func NewRegistry() *Registry {
	return NewRegistryWithConnector(Connect)
}

// NewRegistryWithConnector lets tests replace the connection function.
func NewRegistryWithConnector(connect func(Config) (*gorm.DB, error)) *Registry {
	return &Registry{
		conns:   make(map[string]*gorm.DB),
		connect: connect,
	}
}

// Get returns the connection for key, opening it with cfg on first use.
// Concurrent first calls for the same key share a single connect attempt.
func (r *Registry) Get(ctx context.Context, key string, cfg Config) (*gorm.DB, error) {
	r.mu.RLock()
	db, ok := r.conns[key]
	r.mu.RUnlock()
	if ok {
		return db, nil
	}

	ch := r.sf.DoChan(key, func() (any, error) {
		r.mu.RLock()
		db, ok := r.conns[key]
		r.mu.RUnlock()
		if ok {
			return db, nil
		}

		db, err := r.connect(cfg)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.conns[key] = db
		r.mu.Unlock()
		return db, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gorm.DB), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CloseAll closes every open connection.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*gorm.DB)
	r.mu.Unlock()

	var errs []error
	for _, db := range conns {
		if err := Close(db); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
