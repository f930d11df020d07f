// Package admin exposes staff lookups and administrative overrides on the
// link table over HTTP.
//
// # Routes
//
//	GET    /guilds/:guild/links
//	POST   /guilds/:guild/links
//	POST   /guilds/:guild/links/tokens
//	POST   /guilds/:guild/links/export
//	GET    /guilds/:guild/links/users/:discord
//	GET    /guilds/:guild/links/users/:discord/history
//	GET    /guilds/:guild/links/users/:discord/ckeys
//	POST   /guilds/:guild/links/users/:discord/deverify
//	GET    /guilds/:guild/links/ckeys/:ckey/users
//	DELETE /guilds/:guild/links/ckeys/:ckey
package admin
