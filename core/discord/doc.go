// Package discord adapts discordgo to the role and membership interfaces used
// by the verification core.
//
// # Components
//
//   - Client: implements rolesync.RoleAPI and verification.MemberRemover on top
//     of the Discord REST API. Unknown members map to rolesync.ErrMemberNotFound.
//   - Gateway: listens for member add/remove events and forwards them to the
//     verification service as joins and leaves.
//
// # Configuration
//
// Config holds the bot token, the role API rate limit and the per-call timeout.
// The gateway only connects when Gateway is true.
package discord
