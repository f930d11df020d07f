package reconcile

import (
	"context"
	"errors"

	"ckeytools/core/guild"
	"ckeytools/core/links"
)

// Status is a member's current link state.
type Status struct {
	DiscordID  int64             `json:"discord_id,string"`
	Link       *links.LinkRecord `json:"link"`
	Deverified bool              `json:"deverified"`
}

// Linked reports whether the member has a valid link.
func (s Status) Linked() bool {
	return s.Link != nil
}

// CheckUser returns the member's valid link, if any, and deverified mark.
func (e *Engine) CheckUser(ctx context.Context, g guild.Config, discordID int64) (Status, error) {
	st := Status{DiscordID: discordID}
	store, err := e.links.For(ctx, g)
	if err != nil {
		return st, err
	}

	rec, err := store.FindValidByDiscordID(ctx, discordID)
	switch {
	case err == nil:
		st.Link = rec
	case !errors.Is(err, links.ErrNotFound):
		return st, err
	}

	st.Deverified, err = e.marks.IsDeverified(ctx, g, discordID)
	return st, err
}

// History returns every record for a member, oldest first.
func (e *Engine) History(ctx context.Context, g guild.Config, discordID int64) ([]links.LinkRecord, error) {
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}
	return store.AllByDiscordID(ctx, discordID)
}

// CkeysFor returns each ckey a member was ever linked to, in first-seen order.
func (e *Engine) CkeysFor(ctx context.Context, g guild.Config, discordID int64) ([]string, error) {
	recs, err := e.History(ctx, g, discordID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(recs))
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		if _, dup := seen[rec.Ckey]; dup {
			continue
		}
		seen[rec.Ckey] = struct{}{}
		out = append(out, rec.Ckey)
	}
	return out, nil
}

// DiscordIDsFor returns each account that ever claimed a token for ckey, in
// first-seen order.
func (e *Engine) DiscordIDsFor(ctx context.Context, g guild.Config, ckey string) ([]int64, error) {
	ckey, err := links.NormalizeCkey(ckey)
	if err != nil {
		return nil, err
	}
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}
	recs, err := store.AllByCkey(ctx, ckey)
	if err != nil {
		return nil, err
	}
	return displaced(recs, 0), nil
}

// ValidLinks returns every currently valid link.
func (e *Engine) ValidLinks(ctx context.Context, g guild.Config) ([]links.LinkRecord, error) {
	store, err := e.links.For(ctx, g)
	if err != nil {
		return nil, err
	}
	return store.AllValid(ctx)
}
