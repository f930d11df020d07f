package reconcile

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"ckeytools/core/guild"
	"ckeytools/core/links"
	"ckeytools/core/metrics"

	"go.uber.org/zap"
)

const maxAttempts = 3

// Engine applies identity events to the link store.
type Engine struct {
	links    LinkSource
	roles    RoleSyncer
	marks    Blocklist
	logger   *zap.Logger
	now      func() time.Time
	newToken func() (string, error)
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the time source used for derived tokens.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTokenGenerator replaces the random token source used by staff overrides.
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.newToken = gen }
}

// NewEngine creates an engine. A nil RoleSyncer disables role sync and a nil
// Blocklist keeps deverified marks in the guild's link database.
func NewEngine(src LinkSource, roles RoleSyncer, marks Blocklist, logger *zap.Logger, opts ...Option) *Engine {
	if marks == nil {
		marks = NewStoreBlocklist(src)
	}
	e := &Engine{
		links:    src,
		roles:    roles,
		marks:    marks,
		logger:   logger,
		now:      time.Now,
		newToken: RandomToken,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClaimToken binds an unclaimed token to discordID and makes it the member's
// valid link, invalidating any previous valid record for the member or ckey
// in the same transaction.
func (e *Engine) ClaimToken(ctx context.Context, g guild.Config, token string, discordID int64) (out *Outcome, err error) {
	defer func() { e.observe(EventClaim, out, err) }()

	token = strings.TrimSpace(token)
	if token == "" || len(token) > links.MaxTokenLength {
		return nil, ErrTokenNotFound
	}
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}

	out = &Outcome{Event: EventClaim, GuildID: g.ID, DiscordID: discordID}
	err = runAtomic(ctx, store,
		func() (links.Keys, error) {
			pre, err := store.FindByToken(ctx, token)
			if err != nil {
				return links.Keys{}, tokenErr(err)
			}
			if pre.Claimed() {
				return links.Keys{}, ErrTokenAlreadyClaimed
			}
			return links.Keys{DiscordIDs: []int64{discordID}, Tokens: []string{token}, Ckeys: []string{pre.Ckey}}, nil
		},
		func(tx links.Tx, keys links.Keys) error {
			rec, err := tx.FindByToken(ctx, token)
			if err != nil {
				return tokenErr(err)
			}
			if rec.Claimed() {
				return ErrTokenAlreadyClaimed
			}
			if rec.Ckey != keys.Ckeys[0] {
				return errRetry
			}

			superseded, err := supersede(ctx, tx, discordID, rec.Ckey, rec.ID)
			if err != nil {
				return err
			}
			if err := tx.SetDiscordID(ctx, rec.ID, discordID); err != nil {
				return err
			}
			if err := tx.SetValid(ctx, rec.ID, true); err != nil {
				return err
			}
			rec.DiscordID = links.Int64Ptr(discordID)
			rec.Valid = true

			out.Record = rec
			out.Superseded = superseded
			return nil
		})
	if err != nil {
		return nil, err
	}

	out.Changed = true
	out.Displaced = displaced(out.Superseded, discordID)
	e.clearMark(ctx, g, discordID)
	e.sync(ctx, g, out, append([]int64{discordID}, out.Displaced...)...)
	return out, nil
}

// AutoVerifyOnJoin reapplies roles for a member who joins with a valid link.
// A member without one is left alone unless the guild enables re-promotion,
// in which case their latest link is re-issued. Deverified members and
// members without history are a no-op.
func (e *Engine) AutoVerifyOnJoin(ctx context.Context, g guild.Config, discordID int64) (out *Outcome, err error) {
	defer func() { e.observe(EventJoin, out, err) }()

	out = &Outcome{Event: EventJoin, GuildID: g.ID, DiscordID: discordID}
	if !g.AutoVerifyOnJoin {
		return out, nil
	}
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}

	rec, err := store.FindValidByDiscordID(ctx, discordID)
	switch {
	case err == nil:
		out.Record = rec
		e.sync(ctx, g, out, discordID)
		return out, nil
	case !errors.Is(err, links.ErrNotFound):
		return nil, err
	}

	if !g.RepromoteOnJoin {
		return out, nil
	}
	promoted, err := e.Repromote(ctx, g, discordID)
	if errors.Is(err, ErrDeverified) || errors.Is(err, ErrNoHistory) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	promoted.Event = EventJoin
	return promoted, nil
}

// Repromote re-links a member to the ckey of their most recent record by
// inserting a new valid record with a token derived from the old one. A
// member who is still linked is returned unchanged with roles reapplied.
func (e *Engine) Repromote(ctx context.Context, g guild.Config, discordID int64) (out *Outcome, err error) {
	defer func() { e.observe(EventRepromote, out, err) }()

	blocked, err := e.marks.IsDeverified(ctx, g, discordID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrDeverified
	}
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}

	out = &Outcome{Event: EventRepromote, GuildID: g.ID, DiscordID: discordID}
	err = runAtomic(ctx, store,
		func() (links.Keys, error) {
			latest, err := store.FindLatestByDiscordID(ctx, discordID)
			if errors.Is(err, links.ErrNotFound) {
				return links.Keys{}, ErrNoHistory
			}
			if err != nil {
				return links.Keys{}, err
			}
			return links.Keys{DiscordIDs: []int64{discordID}, Ckeys: []string{latest.Ckey}}, nil
		},
		func(tx links.Tx, keys links.Keys) error {
			current, err := tx.FindValidByDiscordID(ctx, discordID)
			if err == nil {
				out.Record = current
				return nil
			}
			if !errors.Is(err, links.ErrNotFound) {
				return err
			}

			latest, err := tx.FindLatestByDiscordID(ctx, discordID)
			if err != nil {
				return err
			}
			if latest.Ckey != keys.Ckeys[0] {
				return errRetry
			}

			superseded, err := supersede(ctx, tx, discordID, latest.Ckey, 0)
			if err != nil {
				return err
			}
			rec, err := tx.Insert(ctx, &links.LinkRecord{
				Ckey:      latest.Ckey,
				DiscordID: links.Int64Ptr(discordID),
				Token:     DeriveToken(latest.Token, e.now()),
				Valid:     true,
			})
			if err != nil {
				return err
			}
			out.Changed = true
			out.Record = rec
			out.Superseded = superseded
			return nil
		})
	if err != nil {
		return nil, err
	}

	out.Displaced = displaced(out.Superseded, discordID)
	e.sync(ctx, g, out, append([]int64{discordID}, out.Displaced...)...)
	return out, nil
}

// Deverify invalidates the member's valid link, marks them deverified and
// strips their roles. With no valid link it returns ErrAlreadyUnlinked and
// writes nothing to the link store.
func (e *Engine) Deverify(ctx context.Context, g guild.Config, discordID int64, reason string) (out *Outcome, err error) {
	defer func() { e.observe(EventDeverify, out, err) }()

	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}

	out = &Outcome{Event: EventDeverify, GuildID: g.ID, DiscordID: discordID, Reason: reason}
	err = store.Atomic(ctx, links.Keys{DiscordIDs: []int64{discordID}}, func(tx links.Tx) error {
		invalidated, err := invalidateValidForDiscordID(ctx, tx, discordID)
		if err != nil {
			return err
		}
		if len(invalidated) == 0 {
			return ErrAlreadyUnlinked
		}
		out.Superseded = invalidated
		last := invalidated[len(invalidated)-1]
		out.Record = &last
		return nil
	})
	if err != nil && !errors.Is(err, ErrAlreadyUnlinked) {
		return nil, err
	}

	if markErr := e.marks.MarkDeverified(ctx, g, discordID); markErr != nil {
		e.logger.Warn("Failed to mark member deverified",
			zap.String("guild", g.ID), zap.Int64("discord_id", discordID), zap.Error(markErr))
	}
	if err != nil {
		return out, err
	}

	out.Changed = true
	out.RemoveFromGuild = g.KickOnDeverify
	e.logger.Info("Member deverified",
		zap.String("guild", g.ID),
		zap.Int64("discord_id", discordID),
		zap.String("ckey", out.Record.Ckey),
		zap.String("reason", reason))
	e.sync(ctx, g, out, discordID)
	return out, nil
}

// LeaveGuild invalidates the member's link when the guild invalidates on
// leave. Repeated leaves are no-ops. Roles are not synced since the member
// is gone.
func (e *Engine) LeaveGuild(ctx context.Context, g guild.Config, discordID int64) (out *Outcome, err error) {
	defer func() { e.observe(EventLeave, out, err) }()

	out = &Outcome{Event: EventLeave, GuildID: g.ID, DiscordID: discordID}
	if !g.InvalidateOnLeave {
		return out, nil
	}
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}

	err = store.Atomic(ctx, links.Keys{DiscordIDs: []int64{discordID}}, func(tx links.Tx) error {
		invalidated, err := invalidateValidForDiscordID(ctx, tx, discordID)
		if err != nil {
			return err
		}
		out.Superseded = invalidated
		if n := len(invalidated); n > 0 {
			last := invalidated[n-1]
			out.Record = &last
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Changed = len(out.Superseded) > 0
	return out, nil
}

// runAtomic pre-reads the keys a transition needs, then runs fn while holding
// them. fn returns errRetry when the pre-read went stale.
func runAtomic(ctx context.Context, store links.Store, plan func() (links.Keys, error), fn func(tx links.Tx, keys links.Keys) error) error {
	for attempt := 1; ; attempt++ {
		keys, err := plan()
		if err != nil {
			return err
		}
		err = store.Atomic(ctx, keys, func(tx links.Tx) error {
			return fn(tx, keys)
		})
		if !errors.Is(err, errRetry) {
			return err
		}
		if attempt == maxAttempts {
			return fmt.Errorf("%w: %w", links.ErrStoreUnavailable, err)
		}
	}
}

// supersede invalidates every valid record held by discordID or ckey except
// keep and returns the records it changed.
func supersede(ctx context.Context, tx links.Tx, discordID int64, ckey string, keep uint64) ([]links.LinkRecord, error) {
	byMember, err := tx.AllByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	byCkey, err := tx.AllByCkey(ctx, ckey)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]struct{})
	var out []links.LinkRecord
	for _, rec := range append(byMember, byCkey...) {
		if !rec.Valid || rec.ID == keep {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		if err := tx.SetValid(ctx, rec.ID, false); err != nil {
			return nil, err
		}
		rec.Valid = false
		out = append(out, rec)
	}
	return out, nil
}

func invalidateValidForDiscordID(ctx context.Context, tx links.Tx, discordID int64) ([]links.LinkRecord, error) {
	recs, err := tx.AllByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	var out []links.LinkRecord
	for _, rec := range recs {
		if !rec.Valid {
			continue
		}
		if err := tx.SetValid(ctx, rec.ID, false); err != nil {
			return nil, err
		}
		rec.Valid = false
		out = append(out, rec)
	}
	return out, nil
}

// displaced returns the other accounts whose records were superseded.
func displaced(superseded []links.LinkRecord, subject int64) []int64 {
	var out []int64
	seen := map[int64]struct{}{subject: {}}
	for _, rec := range superseded {
		if rec.DiscordID == nil {
			continue
		}
		id := *rec.DiscordID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func tokenErr(err error) error {
	if errors.Is(err, links.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}

// sync reconciles roles for each member after a committed transition.
func (e *Engine) sync(ctx context.Context, g guild.Config, out *Outcome, members ...int64) {
	if e.roles == nil {
		return
	}
	for _, id := range members {
		diff, err := e.roles.Reconcile(ctx, g, id)
		if err != nil {
			e.logger.Warn("Role sync failed",
				zap.String("guild", g.ID), zap.Int64("discord_id", id), zap.Error(err))
		}
		out.Syncs = append(out.Syncs, SyncResult{DiscordID: id, Diff: diff, Err: err})
	}
}

func (e *Engine) clearMark(ctx context.Context, g guild.Config, discordID int64) {
	if err := e.marks.ClearDeverified(ctx, g, discordID); err != nil {
		e.logger.Warn("Failed to clear deverified mark",
			zap.String("guild", g.ID), zap.Int64("discord_id", discordID), zap.Error(err))
	}
}

func (e *Engine) observe(event Event, out *Outcome, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrAlreadyUnlinked):
		result = "noop"
	case err != nil:
		result = "error"
	case out != nil && !out.Changed:
		result = "noop"
	}
	metrics.LinkEvents.WithLabelValues(string(event), result).Inc()
}

// DeriveToken builds the token for a re-promoted link from the previous
// token and the re-promotion time.
func DeriveToken(previous string, at time.Time) string {
	sum := sha256.Sum256([]byte(previous + at.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])
}

// RandomToken returns 16 random bytes hex encoded.
func RandomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
