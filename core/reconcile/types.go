package reconcile

import (
	"context"
	"errors"

	"ckeytools/core/guild"
	"ckeytools/core/links"
	"ckeytools/core/rolesync"
)

// Event names the identity event an Outcome describes.
type Event string

const (
	EventClaim          Event = "claim"
	EventJoin           Event = "join"
	EventRepromote      Event = "repromote"
	EventDeverify       Event = "deverify"
	EventLeave          Event = "leave"
	EventForceLink      Event = "force_link"
	EventInvalidateCkey Event = "invalidate_ckey"
	EventIssueToken     Event = "issue_token"
	EventInvalidateGone Event = "invalidate_gone"
)

// LinkSource resolves the link store for a guild.
type LinkSource interface {
	For(ctx context.Context, g guild.Config) (links.Store, error)
}

// MemberCheck reports whether an account is still a member of the guild.
type MemberCheck func(ctx context.Context, discordID int64) (bool, error)

// RoleSyncer reconciles one member's roles with their current link.
type RoleSyncer interface {
	Reconcile(ctx context.Context, g guild.Config, discordID int64) (rolesync.RoleDiff, error)
}

// SyncResult is the role reconcile for one member after a transition.
type SyncResult struct {
	DiscordID int64
	Diff      rolesync.RoleDiff
	Err       error
}

// Outcome describes what an event did.
type Outcome struct {
	Event     Event
	GuildID   string
	DiscordID int64
	// Changed is true when the link store was written.
	Changed bool
	// Record is the record made valid, or for deverify the record invalidated.
	Record *links.LinkRecord
	// Superseded holds every record this event invalidated.
	Superseded []links.LinkRecord
	// Displaced lists other accounts that lost their link through ckey supersession.
	Displaced []int64
	// RemoveFromGuild asks the caller to remove the member (force-stay policy).
	RemoveFromGuild bool
	Reason          string
	Syncs           []SyncResult
}

// SyncErr reports role sync errors and incomplete diffs, or nil.
func (o *Outcome) SyncErr() error {
	if o == nil {
		return nil
	}
	var errs []error
	for _, s := range o.Syncs {
		if s.Err != nil {
			errs = append(errs, s.Err)
			continue
		}
		if err := s.Diff.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PendingRoles returns the diffs that still have failed operations.
func (o *Outcome) PendingRoles() []rolesync.RoleDiff {
	if o == nil {
		return nil
	}
	var out []rolesync.RoleDiff
	for _, s := range o.Syncs {
		if s.Err == nil && !s.Diff.Complete() {
			out = append(out, s.Diff.Remaining())
		}
	}
	return out
}
