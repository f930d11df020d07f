// Package verify exposes the member-facing verification flows over HTTP.
//
// The bot front end calls these endpoints when a member opens a ticket,
// asks for a manual code prompt, submits a code or cancels. Join and leave
// endpoints exist for deployments that do not run the gateway listener.
//
// # Routes
//
//	POST   /guilds/:guild/members/:discord/ticket
//	POST   /guilds/:guild/members/:discord/manual
//	POST   /guilds/:guild/members/:discord/code
//	GET    /guilds/:guild/members/:discord/session
//	DELETE /guilds/:guild/members/:discord/session
//	POST   /guilds/:guild/members/:discord/join
//	POST   /guilds/:guild/members/:discord/leave
package verify
