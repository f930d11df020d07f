package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ckeytools/core/keylock"
	"ckeytools/core/metrics"

	"go.uber.org/zap"
)

const defaultTTL = 15 * time.Minute

// Manager owns verification sessions. Transitions for one member are
// serialised; different members never wait on each other beyond a short
// map lock.
type Manager struct {
	mu       sync.Mutex
	sessions map[key]*Session

	locks   *keylock.Locker
	persist Persister
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithTTL sets how long a session stays open.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPersister stores open sessions durably.
func WithPersister(p Persister) Option {
	return func(m *Manager) {
		if p != nil {
			m.persist = p
		}
	}
}

// NewManager creates a manager that keeps sessions in memory only unless a
// persister is given.
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[key]*Session),
		locks:    &keylock.Locker{},
		persist:  NopPersister{},
		ttl:      defaultTTL,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a session for the member. It fails with ErrSessionAlreadyOpen
// while another session is open and unexpired.
func (m *Manager) Open(ctx context.Context, guildID string, subject int64, kind Kind, anchor Anchor) (Session, error) {
	k := key{guildID, subject}
	release, err := m.locks.Acquire(ctx, k.String())
	if err != nil {
		return Session{}, err
	}
	defer release()

	if cur, ok := m.current(ctx, k); ok && cur.State == StateOpen {
		return cur, ErrSessionAlreadyOpen
	}

	now := m.now()
	s := Session{
		GuildID:   guildID,
		SubjectID: subject,
		Kind:      kind,
		State:     StateOpen,
		OpenedAt:  now,
		ExpiresAt: now.Add(m.ttl),
		Anchor:    anchor,
	}
	if err := m.persist.Save(ctx, s, m.ttl); err != nil {
		return Session{}, fmt.Errorf("failed to persist session: %w", err)
	}
	m.put(k, s)
	metrics.SessionTransitions.WithLabelValues(string(StateOpen)).Inc()
	return s, nil
}

// Get returns the member's latest session, expiring it first if its
// deadline has passed.
func (m *Manager) Get(ctx context.Context, guildID string, subject int64) (Session, error) {
	k := key{guildID, subject}
	release, err := m.locks.Acquire(ctx, k.String())
	if err != nil {
		return Session{}, err
	}
	defer release()

	s, ok := m.current(ctx, k)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// RequireOpen returns the member's session if it is open, or the error that
// explains why it is not.
func (m *Manager) RequireOpen(ctx context.Context, guildID string, subject int64) (Session, error) {
	s, err := m.Get(ctx, guildID, subject)
	if err != nil {
		return s, err
	}
	return s, stateErr(s)
}

// Consume moves an open session to consumed.
func (m *Manager) Consume(ctx context.Context, guildID string, subject int64) (Session, error) {
	return m.finish(ctx, key{guildID, subject}, StateConsumed)
}

// Cancel moves an open session to cancelled. Committed link changes made
// while the session was open are not affected.
func (m *Manager) Cancel(ctx context.Context, guildID string, subject int64) (Session, error) {
	return m.finish(ctx, key{guildID, subject}, StateCancelled)
}

func (m *Manager) finish(ctx context.Context, k key, to State) (Session, error) {
	release, err := m.locks.Acquire(ctx, k.String())
	if err != nil {
		return Session{}, err
	}
	defer release()

	s, ok := m.current(ctx, k)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if err := stateErr(s); err != nil {
		return s, err
	}

	s.State = to
	m.put(k, s)
	m.forget(ctx, s)
	metrics.SessionTransitions.WithLabelValues(string(to)).Inc()
	return s, nil
}

// Sweep expires every open session whose deadline has passed and drops
// terminal sessions from memory. It returns how many sessions expired.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	keys := make([]key, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	expired := 0
	for _, k := range keys {
		release, err := m.locks.Acquire(ctx, k.String())
		if err != nil {
			return expired, err
		}
		m.mu.Lock()
		s, ok := m.sessions[k]
		var snapshot Session
		if ok {
			snapshot = *s
		}
		m.mu.Unlock()

		if ok {
			if snapshot.Expired(m.now()) {
				m.expire(ctx, k, snapshot)
				expired++
			} else if snapshot.Terminal() {
				m.mu.Lock()
				delete(m.sessions, k)
				m.mu.Unlock()
			}
		}
		release()
	}
	return expired, nil
}

// Restore loads open sessions from the persister. Sessions already in memory
// are kept; expired ones are dropped. It returns how many were restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	loaded, err := m.persist.LoadOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load sessions: %w", err)
	}

	restored := 0
	now := m.now()
	for _, s := range loaded {
		k := key{s.GuildID, s.SubjectID}
		if s.State != StateOpen {
			continue
		}
		if s.Expired(now) {
			m.forget(ctx, s)
			continue
		}
		m.mu.Lock()
		if _, exists := m.sessions[k]; !exists {
			cp := s
			m.sessions[k] = &cp
			restored++
		}
		m.mu.Unlock()
	}
	m.logger.Info("Verification sessions restored", zap.Int("count", restored))
	return restored, nil
}

// List returns every open, unexpired session.
func (m *Manager) List() []Session {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.State == StateOpen && !s.Expired(now) {
			out = append(out, *s)
		}
	}
	return out
}

// current returns a copy of the member's session, expiring it on access.
// The caller holds the member's lock.
func (m *Manager) current(ctx context.Context, k key) (Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[k]
	var snapshot Session
	if ok {
		snapshot = *s
	}
	m.mu.Unlock()
	if !ok {
		return Session{}, false
	}
	if snapshot.Expired(m.now()) {
		snapshot = m.expire(ctx, k, snapshot)
	}
	return snapshot, true
}

func (m *Manager) expire(ctx context.Context, k key, s Session) Session {
	s.State = StateExpired
	m.put(k, s)
	m.forget(ctx, s)
	metrics.SessionTransitions.WithLabelValues(string(StateExpired)).Inc()
	return s
}

func (m *Manager) put(k key, s Session) {
	m.mu.Lock()
	m.sessions[k] = &s
	m.mu.Unlock()
}

// forget removes a session from the persister. Failures are logged; the
// stored copy expires on its own TTL.
func (m *Manager) forget(ctx context.Context, s Session) {
	if err := m.persist.Delete(ctx, s.GuildID, s.SubjectID); err != nil {
		m.logger.Warn("Failed to delete persisted session",
			zap.String("guild", s.GuildID),
			zap.Int64("subject", s.SubjectID),
			zap.Error(err))
	}
}

func stateErr(s Session) error {
	switch s.State {
	case StateOpen:
		return nil
	case StateExpired:
		return ErrSessionExpired
	default:
		return ErrSessionClosed
	}
}
