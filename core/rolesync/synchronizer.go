package rolesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ckeytools/core/guild"
	"ckeytools/core/links"
	"ckeytools/core/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultCallTimeout = 10 * time.Second

// LinkSource resolves the link store for a guild.
type LinkSource interface {
	For(ctx context.Context, g guild.Config) (links.Store, error)
}

// Synchronizer reconciles a member's roles with their link state.
type Synchronizer struct {
	links   LinkSource
	api     RoleAPI
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// Option customises a Synchronizer.
type Option func(*Synchronizer)

// WithLimiter shares a rate limiter across every role call.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithCallTimeout bounds each role API call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSynchronizer creates a synchronizer. Without WithLimiter calls are not
// rate limited.
func NewSynchronizer(src LinkSource, api RoleAPI, logger *zap.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		links:   src,
		api:     api,
		limiter: rate.NewLimiter(rate.Inf, 1),
		timeout: defaultCallTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile reads the member's current valid link, plans the role change and
// applies it. Per-role failures are in the returned diff; an error is only
// returned when nothing could be planned.
func (s *Synchronizer) Reconcile(ctx context.Context, g guild.Config, discordID int64) (RoleDiff, error) {
	diff, err := s.Plan(ctx, g, discordID)
	if err != nil {
		return diff, err
	}
	return s.Apply(ctx, diff), nil
}

// Plan computes the diff without applying it.
func (s *Synchronizer) Plan(ctx context.Context, g guild.Config, discordID int64) (RoleDiff, error) {
	diff := RoleDiff{GuildID: g.ID, DiscordID: discordID}
	if len(g.VerificationRoles) == 0 {
		return diff, nil
	}

	store, err := s.links.For(ctx, g)
	if err != nil {
		return diff, err
	}
	_, err = store.FindValidByDiscordID(ctx, discordID)
	switch {
	case err == nil:
		diff.Linked = true
	case errors.Is(err, links.ErrNotFound):
	default:
		return diff, err
	}

	var current []string
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.api.MemberRoles(ctx, g.ID, discordID)
		return err
	})
	if err != nil {
		return diff, fmt.Errorf("failed to read member roles: %w", err)
	}

	diff.Grant, diff.Revoke = Plan(diff.Linked, g.VerificationRoles, current)
	return diff, nil
}

// Apply runs every operation in the diff and records failures. A missing
// member stops the remaining calls since none of them can succeed.
func (s *Synchronizer) Apply(ctx context.Context, diff RoleDiff) RoleDiff {
	diff.Failures = nil

	run := func(op Op, roles []string, fn func(context.Context, string, int64, string) error) bool {
		for i, role := range roles {
			err := s.call(ctx, func(ctx context.Context) error {
				return fn(ctx, diff.GuildID, diff.DiscordID, role)
			})
			metrics.RoleOperations.WithLabelValues(string(op), metrics.Result(err)).Inc()
			if err == nil {
				continue
			}
			s.logger.Warn("Role operation failed",
				zap.String("guild", diff.GuildID),
				zap.Int64("discord_id", diff.DiscordID),
				zap.String("op", string(op)),
				zap.String("role", role),
				zap.Error(err))
			if errors.Is(err, ErrMemberNotFound) {
				for _, r := range roles[i:] {
					diff.Failures = append(diff.Failures, RoleFailure{Op: op, RoleID: r, Err: err})
				}
				return false
			}
			diff.Failures = append(diff.Failures, RoleFailure{Op: op, RoleID: role, Err: err})
		}
		return true
	}

	if run(OpGrant, diff.Grant, s.api.Grant) {
		run(OpRevoke, diff.Revoke, s.api.Revoke)
	} else {
		for _, r := range diff.Revoke {
			diff.Failures = append(diff.Failures, RoleFailure{Op: OpRevoke, RoleID: r, Err: ErrMemberNotFound})
		}
	}
	return diff
}

// call waits for the limiter and runs fn under the per-call timeout.
func (s *Synchronizer) call(ctx context.Context, fn func(context.Context) error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}
