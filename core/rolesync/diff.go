package rolesync

import (
	"fmt"
	"sort"
	"strings"
)

// Op is a single role operation.
type Op string

const (
	OpGrant  Op = "grant"
	OpRevoke Op = "revoke"
)

// RoleFailure records one role call that did not succeed.
type RoleFailure struct {
	Op     Op
	RoleID string
	Err    error
}

func (f RoleFailure) Error() string {
	return fmt.Sprintf("%s role %s: %v", f.Op, f.RoleID, f.Err)
}

// RoleDiff is the set of role changes for one member and how applying them went.
type RoleDiff struct {
	GuildID   string
	DiscordID int64
	// Linked is true when the member had a valid link at planning time.
	Linked bool
	Grant  []string
	Revoke []string
	// Failures lists the operations that failed during the last apply.
	Failures []RoleFailure
}

// Empty reports whether there is nothing to change.
func (d RoleDiff) Empty() bool {
	return len(d.Grant) == 0 && len(d.Revoke) == 0
}

// Complete reports whether every operation was applied.
func (d RoleDiff) Complete() bool {
	return len(d.Failures) == 0
}

// Remaining returns a diff holding only the failed operations.
func (d RoleDiff) Remaining() RoleDiff {
	rest := RoleDiff{GuildID: d.GuildID, DiscordID: d.DiscordID, Linked: d.Linked}
	for _, f := range d.Failures {
		switch f.Op {
		case OpGrant:
			rest.Grant = append(rest.Grant, f.RoleID)
		case OpRevoke:
			rest.Revoke = append(rest.Revoke, f.RoleID)
		}
	}
	return rest
}

// Err summarises the failures, or returns nil when the diff is complete.
func (d RoleDiff) Err() error {
	if d.Complete() {
		return nil
	}
	parts := make([]string, len(d.Failures))
	for i, f := range d.Failures {
		parts[i] = f.Error()
	}
	return fmt.Errorf("%d role operation(s) failed: %s", len(d.Failures), strings.Join(parts, "; "))
}

// Plan computes the grant and revoke sets for a member. Only configured
// roles are considered; the output is sorted.
func Plan(linked bool, configured, current []string) (grant, revoke []string) {
	held := make(map[string]struct{}, len(current))
	for _, r := range current {
		held[r] = struct{}{}
	}
	seen := make(map[string]struct{}, len(configured))
	for _, r := range configured {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}

		_, has := held[r]
		switch {
		case linked && !has:
			grant = append(grant, r)
		case !linked && has:
			revoke = append(revoke, r)
		}
	}
	sort.Strings(grant)
	sort.Strings(revoke)
	return grant, revoke
}
