package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ckeytools/core/guild"
	"ckeytools/core/links"

	"go.uber.org/zap"
)

// ForceLink links ckey to discordID with a generated token, superseding any
// valid link either side holds. Linking a member to the ckey they already
// hold changes nothing.
func (e *Engine) ForceLink(ctx context.Context, g guild.Config, ckey string, discordID int64) (out *Outcome, err error) {
	defer func() { e.observe(EventForceLink, out, err) }()

	ckey, err = links.NormalizeCkey(ckey)
	if err != nil {
		return nil, err
	}
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}
	token, err := e.newToken()
	if err != nil {
		return nil, err
	}

	out = &Outcome{Event: EventForceLink, GuildID: g.ID, DiscordID: discordID}
	keys := links.Keys{DiscordIDs: []int64{discordID}, Ckeys: []string{ckey}}
	err = store.Atomic(ctx, keys, func(tx links.Tx) error {
		current, err := tx.FindValidByDiscordID(ctx, discordID)
		if err == nil && current.Ckey == ckey {
			out.Record = current
			return nil
		}
		if err != nil && !errors.Is(err, links.ErrNotFound) {
			return err
		}

		superseded, err := supersede(ctx, tx, discordID, ckey, 0)
		if err != nil {
			return err
		}
		rec, err := tx.Insert(ctx, &links.LinkRecord{
			Ckey:      ckey,
			DiscordID: links.Int64Ptr(discordID),
			Token:     token,
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
	e.logger.Info("Link forced",
		zap.String("guild", g.ID), zap.String("ckey", ckey), zap.Int64("discord_id", discordID),
		zap.Bool("changed", out.Changed))
	e.clearMark(ctx, g, discordID)
	e.sync(ctx, g, out, append([]int64{discordID}, out.Displaced...)...)
	return out, nil
}

// InvalidateCkey invalidates every valid record for a ckey and re-syncs the
// accounts that held them. It returns ErrAlreadyUnlinked when none was valid.
func (e *Engine) InvalidateCkey(ctx context.Context, g guild.Config, ckey string) (out *Outcome, err error) {
	defer func() { e.observe(EventInvalidateCkey, out, err) }()

	ckey, err = links.NormalizeCkey(ckey)
	if err != nil {
		return nil, err
	}
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}

	out = &Outcome{Event: EventInvalidateCkey, GuildID: g.ID}
	err = store.Atomic(ctx, links.Keys{Ckeys: []string{ckey}}, func(tx links.Tx) error {
		recs, err := tx.AllByCkey(ctx, ckey)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if !rec.Valid {
				continue
			}
			if err := tx.SetValid(ctx, rec.ID, false); err != nil {
				return err
			}
			rec.Valid = false
			out.Superseded = append(out.Superseded, rec)
		}
		if len(out.Superseded) == 0 {
			return ErrAlreadyUnlinked
		}
		return nil
	})
	if err != nil {
		out.Superseded = nil
		if errors.Is(err, ErrAlreadyUnlinked) {
			return out, err
		}
		return nil, err
	}

	out.Changed = true
	out.Displaced = displaced(out.Superseded, 0)
	e.sync(ctx, g, out, out.Displaced...)
	return out, nil
}

// InvalidateGone invalidates the valid links of every account that is no
// longer a guild member. Roles are not synced since those accounts are gone.
// A failed membership check stops the sweep; links invalidated before it stay
// invalid and are listed in the returned outcome.
func (e *Engine) InvalidateGone(ctx context.Context, g guild.Config, isMember MemberCheck) (out *Outcome, err error) {
	defer func() { e.observe(EventInvalidateGone, out, err) }()

	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}
	recs, err := store.AllValid(ctx)
	if err != nil {
		return nil, err
	}

	out = &Outcome{Event: EventInvalidateGone, GuildID: g.ID}
	seen := make(map[int64]struct{}, len(recs))
	for _, rec := range recs {
		if rec.DiscordID == nil {
			continue
		}
		id := *rec.DiscordID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		member, err := isMember(ctx, id)
		if err != nil {
			return out, fmt.Errorf("failed to check membership of %d: %w", id, err)
		}
		if member {
			continue
		}

		var invalidated []links.LinkRecord
		err = store.Atomic(ctx, links.Keys{DiscordIDs: []int64{id}}, func(tx links.Tx) error {
			var err error
			invalidated, err = invalidateValidForDiscordID(ctx, tx, id)
			return err
		})
		if err != nil {
			return out, err
		}
		for _, r := range invalidated {
			e.logger.Info("Invalidated link of departed member",
				zap.String("guild", g.ID), zap.Int64("discord_id", id), zap.String("ckey", r.Ckey))
		}
		if len(invalidated) > 0 {
			out.Changed = true
			out.Superseded = append(out.Superseded, invalidated...)
		}
	}
	return out, nil
}

// IssueToken stores an unclaimed token for ckey, generating one when token
// is empty. A token that is still unconsumed cannot be issued again.
func (e *Engine) IssueToken(ctx context.Context, g guild.Config, ckey, token string) (rec *links.LinkRecord, err error) {
	defer func() {
		var out *Outcome
		if rec != nil {
			out = &Outcome{Changed: true}
		}
		e.observe(EventIssueToken, out, err)
	}()

	ckey, err = links.NormalizeCkey(ckey)
	if err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		if token, err = e.newToken(); err != nil {
			return nil, err
		}
	}
	if len(token) > links.MaxTokenLength {
		return nil, fmt.Errorf("%w: longer than %d characters", links.ErrInvalidToken, links.MaxTokenLength)
	}
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}

	keys := links.Keys{Tokens: []string{token}, Ckeys: []string{ckey}}
	err = store.Atomic(ctx, keys, func(tx links.Tx) error {
		existing, err := tx.FindByToken(ctx, token)
		switch {
		case err == nil && !existing.Claimed():
			return ErrDuplicateToken
		case err != nil && !errors.Is(err, links.ErrNotFound):
			return err
		}
		rec, err = tx.Insert(ctx, &links.LinkRecord{Ckey: ckey, Token: token})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
