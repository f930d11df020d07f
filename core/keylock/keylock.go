package keylock

import (
	"context"
	"sort"
	"sync"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// Locker is a set of named locks. The zero value is ready to use.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Acquire locks every key and returns a function releasing them all.
// Duplicate keys are collapsed. If ctx ends while waiting, locks taken so far
// are released and the context error is returned.
func (l *Locker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := dedupe(keys)

	held := make([]string, 0, len(sorted))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range sorted {
		if err := l.lock(ctx, key); err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

// Held reports how many keys currently have a holder or waiter.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Locker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[string]*entry)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.drop(key, e)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *Locker) unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return
	}
	<-e.ch
	l.drop(key, e)
}

// drop must be called with l.mu held.
func (l *Locker) drop(key string, e *entry) {
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
