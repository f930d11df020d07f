package api

import (
	"ckeytools/core/links"
	"ckeytools/core/reconcile"
	"ckeytools/core/rolesync"
	"ckeytools/core/utils"
)

// PendingRoles lists role operations that still failed after retries.
type PendingRoles struct {
	DiscordID string   `json:"discord_id"`
	Grant     []string `json:"grant,omitempty"`
	Revoke    []string `json:"revoke,omitempty"`
	Errors    []string `json:"errors"`
}

// Outcome is the JSON view of a reconcile.Outcome.
type Outcome struct {
	Event           reconcile.Event   `json:"event"`
	GuildID         string            `json:"guild_id"`
	DiscordID       string            `json:"discord_id"`
	Changed         bool              `json:"changed"`
	Record          *links.LinkRecord `json:"record,omitempty"`
	Superseded      int               `json:"superseded"`
	Displaced       []string          `json:"displaced,omitempty"`
	RemoveFromGuild bool              `json:"remove_from_guild,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	PendingRoles    []PendingRoles    `json:"pending_roles,omitempty"`
	SyncErrors      []string          `json:"sync_errors,omitempty"`
}

// NewOutcome converts an engine outcome. A nil outcome gives nil.
func NewOutcome(o *reconcile.Outcome) *Outcome {
	if o == nil {
		return nil
	}
	out := &Outcome{
		Event:           o.Event,
		GuildID:         o.GuildID,
		DiscordID:       utils.FormatDiscordID(o.DiscordID),
		Changed:         o.Changed,
		Record:          o.Record,
		Superseded:      len(o.Superseded),
		RemoveFromGuild: o.RemoveFromGuild,
		Reason:          o.Reason,
	}
	for _, id := range o.Displaced {
		out.Displaced = append(out.Displaced, utils.FormatDiscordID(id))
	}
	for _, s := range o.Syncs {
		if s.Err != nil {
			out.SyncErrors = append(out.SyncErrors, s.Err.Error())
		}
	}
	for _, d := range o.PendingRoles() {
		out.PendingRoles = append(out.PendingRoles, pending(d, o))
	}
	return out
}

func pending(d rolesync.RoleDiff, o *reconcile.Outcome) PendingRoles {
	p := PendingRoles{DiscordID: utils.FormatDiscordID(d.DiscordID), Grant: d.Grant, Revoke: d.Revoke}
	for _, s := range o.Syncs {
		if s.DiscordID != d.DiscordID {
			continue
		}
		for _, f := range s.Diff.Failures {
			p.Errors = append(p.Errors, f.Error())
		}
	}
	return p
}
