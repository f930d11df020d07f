package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ckeytools/core/guild"
	"ckeytools/core/links"
	"ckeytools/core/reconcile"
	"ckeytools/core/rolesync"
	"ckeytools/core/session"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

var (
	// ErrVerificationDisabled is returned when the guild has verification turned off.
	ErrVerificationDisabled = errors.New("verification is disabled for this guild")

	// ErrMembershipUnavailable is returned when no Discord connection can
	// answer membership checks.
	ErrMembershipUnavailable = errors.New("guild membership checks are not configured")
)

// RoleApplier re-applies a partial role diff.
type RoleApplier interface {
	Apply(ctx context.Context, diff rolesync.RoleDiff) rolesync.RoleDiff
}

// RoleSyncer reconciles a member's roles from scratch.
type RoleSyncer interface {
	Reconcile(ctx context.Context, g guild.Config, discordID int64) (rolesync.RoleDiff, error)
}

// Roles is what the service needs from the role synchronizer.
type Roles interface {
	RoleApplier
	RoleSyncer
}

// MemberRemover removes a member from a guild.
type MemberRemover interface {
	RemoveMember(ctx context.Context, guildID string, discordID int64, reason string) error
}

// MemberChecker reports whether an account is still a guild member.
type MemberChecker interface {
	MemberExists(ctx context.Context, guildID string, discordID int64) (bool, error)
}

// RetryPolicy bounds role retries.
type RetryPolicy struct {
	Attempts uint
	Initial  time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy retries three times starting at half a second.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Initial: 500 * time.Millisecond, Max: 5 * time.Second}

// Service runs verification flows for every configured guild.
type Service struct {
	guilds   *guild.Registry
	engine   *reconcile.Engine
	roles    Roles
	sessions *session.Manager
	remover  MemberRemover
	members  MemberChecker
	exporter *Exporter
	retry    RetryPolicy
	logger   *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithMemberRemover enables kick-on-deverify.
func WithMemberRemover(r MemberRemover) Option {
	return func(s *Service) { s.remover = r }
}

// WithMemberChecker enables invalidating the links of departed members.
func WithMemberChecker(c MemberChecker) Option {
	return func(s *Service) { s.members = c }
}

// WithExporter enables link snapshot export.
func WithExporter(e *Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		if p.Attempts > 0 {
			s.retry = p
		}
	}
}

// NewService creates a verification service. roles may be nil when no
// Discord connection is configured.
func NewService(guilds *guild.Registry, engine *reconcile.Engine, roles Roles, sessions *session.Manager, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		guilds:   guilds,
		engine:   engine,
		roles:    roles,
		sessions: sessions,
		retry:    DefaultRetryPolicy,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Guild resolves a guild's configuration.
func (s *Service) Guild(guildID string) (guild.Config, error) {
	return s.guilds.Get(guildID)
}

func (s *Service) verifying(guildID string) (guild.Config, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return g, err
	}
	if !g.VerificationEnabled {
		return g, ErrVerificationDisabled
	}
	return g, nil
}

// TicketResult describes what opening a ticket did.
type TicketResult struct {
	// AlreadyLinked is true when the member was linked and only had roles reapplied.
	AlreadyLinked bool `json:"already_linked"`
	// AutoLinked is true when the member was re-linked from history.
	AutoLinked bool               `json:"auto_linked"`
	Session    *session.Session   `json:"session,omitempty"`
	Outcome    *reconcile.Outcome `json:"outcome,omitempty"`
}

// OpenTicket starts a ticket for the member. Linked members get their roles
// reapplied instead. When the guild enables auto-verification a member with
// link history is re-linked and the ticket is consumed straight away.
func (s *Service) OpenTicket(ctx context.Context, guildID string, discordID int64, anchor session.Anchor) (*TicketResult, error) {
	g, err := s.verifying(guildID)
	if err != nil {
		return nil, err
	}

	st, err := s.engine.CheckUser(ctx, g, discordID)
	if err != nil {
		return nil, err
	}
	if st.Linked() {
		out := &reconcile.Outcome{Event: reconcile.EventJoin, GuildID: g.ID, DiscordID: discordID, Record: st.Link}
		if s.roles != nil {
			diff, err := s.roles.Reconcile(ctx, g, discordID)
			out.Syncs = []reconcile.SyncResult{{DiscordID: discordID, Diff: diff, Err: err}}
			s.retryRoles(ctx, out)
		}
		return &TicketResult{AlreadyLinked: true, Outcome: out}, nil
	}

	sess, err := s.sessions.Open(ctx, g.ID, discordID, session.KindTicket, anchor)
	if err != nil {
		return nil, err
	}
	res := &TicketResult{Session: &sess}
	if !g.AutoVerificationEnabled || st.Deverified {
		return res, nil
	}

	out, err := s.engine.Repromote(ctx, g, discordID)
	switch {
	case errors.Is(err, reconcile.ErrNoHistory), errors.Is(err, reconcile.ErrDeverified):
		return res, nil
	case err != nil:
		return res, err
	}

	s.retryRoles(ctx, out)
	res.Outcome = out
	res.AutoLinked = true
	if consumed, err := s.sessions.Consume(ctx, g.ID, discordID); err == nil {
		res.Session = &consumed
	}
	return res, nil
}

// BeginManual opens a manual-code session for the member.
func (s *Service) BeginManual(ctx context.Context, guildID string, discordID int64) (session.Session, error) {
	g, err := s.verifying(guildID)
	if err != nil {
		return session.Session{}, err
	}
	return s.sessions.Open(ctx, g.ID, discordID, session.KindManualCode, session.Anchor{})
}

// SubmitCode claims a token for the member while their session is open and
// consumes the session. If the session closes between the claim and the
// consume the claim still stands.
func (s *Service) SubmitCode(ctx context.Context, guildID string, discordID int64, token string) (*reconcile.Outcome, error) {
	g, err := s.verifying(guildID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.RequireOpen(ctx, g.ID, discordID); err != nil {
		return nil, err
	}

	out, err := s.engine.ClaimToken(ctx, g, token, discordID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.Consume(ctx, g.ID, discordID); err != nil {
		s.logger.Warn("Token claimed but session could not be consumed",
			zap.String("guild", g.ID), zap.Int64("discord_id", discordID), zap.Error(err))
	}
	s.retryRoles(ctx, out)
	return out, nil
}

// CancelSession closes the member's open session.
func (s *Service) CancelSession(ctx context.Context, guildID string, discordID int64) (session.Session, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return session.Session{}, err
	}
	return s.sessions.Cancel(ctx, g.ID, discordID)
}

// Session returns the member's current session.
func (s *Service) Session(ctx context.Context, guildID string, discordID int64) (session.Session, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return session.Session{}, err
	}
	return s.sessions.Get(ctx, g.ID, discordID)
}

// Join handles a member joining the guild.
func (s *Service) Join(ctx context.Context, guildID string, discordID int64) (*reconcile.Outcome, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.AutoVerifyOnJoin(ctx, g, discordID)
	if err != nil {
		return nil, err
	}
	s.retryRoles(ctx, out)
	return out, nil
}

// Leave handles a member leaving the guild. Any open session is cancelled.
func (s *Service) Leave(ctx context.Context, guildID string, discordID int64) (*reconcile.Outcome, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	s.closeSession(ctx, g, discordID)
	return s.engine.LeaveGuild(ctx, g, discordID)
}

// Deverify unlinks the member on staff request and, under the guild's
// force-stay policy, removes them from the guild.
func (s *Service) Deverify(ctx context.Context, guildID string, discordID int64, reason string) (*reconcile.Outcome, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	s.closeSession(ctx, g, discordID)

	out, err := s.engine.Deverify(ctx, g, discordID, reason)
	if err != nil {
		return out, err
	}
	s.retryRoles(ctx, out)

	if out.RemoveFromGuild && s.remover != nil {
		if err := s.remover.RemoveMember(ctx, g.ID, discordID, reason); err != nil {
			return out, fmt.Errorf("link invalidated but member removal failed: %w", err)
		}
	}
	return out, nil
}

// ForceLink links a ckey to a member on staff request.
func (s *Service) ForceLink(ctx context.Context, guildID, ckey string, discordID int64) (*reconcile.Outcome, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.ForceLink(ctx, g, ckey, discordID)
	if err != nil {
		return nil, err
	}
	s.closeSession(ctx, g, discordID)
	s.retryRoles(ctx, out)
	return out, nil
}

// InvalidateCkey unlinks every account holding a ckey.
func (s *Service) InvalidateCkey(ctx context.Context, guildID, ckey string) (*reconcile.Outcome, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.InvalidateCkey(ctx, g, ckey)
	if err != nil {
		return out, err
	}
	s.retryRoles(ctx, out)
	return out, nil
}

// InvalidateGone invalidates the links of every linked account that has left
// the guild.
func (s *Service) InvalidateGone(ctx context.Context, guildID string) (*reconcile.Outcome, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	if s.members == nil {
		return nil, ErrMembershipUnavailable
	}
	out, err := s.engine.InvalidateGone(ctx, g, func(ctx context.Context, discordID int64) (bool, error) {
		return s.members.MemberExists(ctx, g.ID, discordID)
	})
	if out != nil {
		s.logger.Info("Departed members invalidated",
			zap.String("guild", g.ID),
			zap.Int("links", len(out.Superseded)),
			zap.Error(err))
	}
	return out, err
}

// IssueToken stores a new one-time token for a ckey.
func (s *Service) IssueToken(ctx context.Context, guildID, ckey, token string) (*links.LinkRecord, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	return s.engine.IssueToken(ctx, g, ckey, token)
}

// CheckUser returns the member's link status.
func (s *Service) CheckUser(ctx context.Context, guildID string, discordID int64) (reconcile.Status, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return reconcile.Status{}, err
	}
	return s.engine.CheckUser(ctx, g, discordID)
}

// CkeysFor lists every ckey the member was linked to.
func (s *Service) CkeysFor(ctx context.Context, guildID string, discordID int64) ([]string, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	return s.engine.CkeysFor(ctx, g, discordID)
}

// DiscordIDsFor lists every account that claimed a token for the ckey.
func (s *Service) DiscordIDsFor(ctx context.Context, guildID, ckey string) ([]int64, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	return s.engine.DiscordIDsFor(ctx, g, ckey)
}

// History returns the member's link records, oldest first.
func (s *Service) History(ctx context.Context, guildID string, discordID int64) ([]links.LinkRecord, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	return s.engine.History(ctx, g, discordID)
}

// ValidLinks returns every valid link in the guild.
func (s *Service) ValidLinks(ctx context.Context, guildID string) ([]links.LinkRecord, error) {
	g, err := s.guilds.Get(guildID)
	if err != nil {
		return nil, err
	}
	return s.engine.ValidLinks(ctx, g)
}

// Sweep expires stale sessions.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.sessions.Sweep(ctx)
}

func (s *Service) closeSession(ctx context.Context, g guild.Config, discordID int64) {
	_, err := s.sessions.Cancel(ctx, g.ID, discordID)
	switch {
	case err == nil,
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, session.ErrSessionExpired):
	default:
		s.logger.Warn("Failed to cancel session",
			zap.String("guild", g.ID), zap.Int64("discord_id", discordID), zap.Error(err))
	}
}

// retryRoles re-applies the failed part of each role diff with exponential
// backoff and stores the final diff back into the outcome.
func (s *Service) retryRoles(ctx context.Context, out *reconcile.Outcome) {
	if out == nil || s.roles == nil {
		return
	}
	for i := range out.Syncs {
		res := &out.Syncs[i]
		if res.Err != nil || res.Diff.Complete() {
			continue
		}

		last := res.Diff
		pending := res.Diff.Remaining()
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = s.retry.Initial
		b.MaxInterval = s.retry.Max

		_, err := backoff.Retry(ctx, func() (bool, error) {
			d := s.roles.Apply(ctx, pending)
			last.Failures = d.Failures
			if d.Complete() {
				return true, nil
			}
			pending = d.Remaining()
			for _, f := range d.Failures {
				if errors.Is(f.Err, rolesync.ErrMemberNotFound) {
					return false, backoff.Permanent(d.Err())
				}
			}
			return false, d.Err()
		}, backoff.WithBackOff(b), backoff.WithMaxTries(s.retry.Attempts))

		res.Diff = last
		if err != nil {
			s.logger.Warn("Role operations still failing after retries",
				zap.String("guild", out.GuildID),
				zap.Int64("discord_id", res.DiscordID),
				zap.Error(err))
		}
	}
}
