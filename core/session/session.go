package session

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrSessionAlreadyOpen is returned when opening while a session is open.
	ErrSessionAlreadyOpen = errors.New("verification session already open")
	// ErrSessionNotFound is returned when the member has no session.
	ErrSessionNotFound = errors.New("verification session not found")
	// ErrSessionExpired is returned when the session deadline has passed.
	ErrSessionExpired = errors.New("verification session expired")
	// ErrSessionClosed is returned when the session was consumed or cancelled.
	ErrSessionClosed = errors.New("verification session closed")
)

// Kind is how the member is verifying.
type Kind string

const (
	KindTicket     Kind = "ticket"
	KindManualCode Kind = "manual-code"
)

// State is a session's lifecycle state.
type State string

const (
	StateOpen      State = "open"
	StateConsumed  State = "consumed"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
)

// Anchor is where the session's UI lives, used to reattach after a restart.
type Anchor struct {
	ChannelID string `json:"channel_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// Session is one verification attempt.
type Session struct {
	GuildID   string    `json:"guild_id"`
	SubjectID int64     `json:"subject_id,string"`
	Kind      Kind      `json:"kind"`
	State     State     `json:"state"`
	OpenedAt  time.Time `json:"opened_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Anchor    Anchor    `json:"anchor"`
}

// Terminal reports whether the session can no longer change.
func (s Session) Terminal() bool {
	return s.State != StateOpen
}

// Expired reports whether an open session's deadline has passed at now.
func (s Session) Expired(now time.Time) bool {
	return s.State == StateOpen && !now.Before(s.ExpiresAt)
}

type key struct {
	guild   string
	subject int64
}

func (k key) String() string {
	return k.guild + ":" + strconv.FormatInt(k.subject, 10)
}
