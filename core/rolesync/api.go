package rolesync

import (
	"context"
	"errors"
)

// ErrMemberNotFound is returned when the member is not in the guild.
var ErrMemberNotFound = errors.New("guild member not found")

// RoleAPI is the Discord-side collaborator. Grant and Revoke must be
// idempotent.
type RoleAPI interface {
	// MemberRoles returns the role ids the member currently holds.
	MemberRoles(ctx context.Context, guildID string, discordID int64) ([]string, error)
	// Grant adds one role to the member.
	Grant(ctx context.Context, guildID string, discordID int64, roleID string) error
	// Revoke removes one role from the member.
	Revoke(ctx context.Context, guildID string, discordID int64, roleID string) error
}
