package discord

import (
	"context"
	"errors"
	"time"

	"ckeytools/core/guild"
	"ckeytools/core/reconcile"
	"ckeytools/core/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// MemberEvents receives membership changes from the gateway.
type MemberEvents interface {
	Join(ctx context.Context, guildID string, discordID int64) (*reconcile.Outcome, error)
	Leave(ctx context.Context, guildID string, discordID int64) (*reconcile.Outcome, error)
}

// Gateway forwards member add/remove events to MemberEvents.
type Gateway struct {
	session *discordgo.Session
	events  MemberEvents
	timeout time.Duration
	logger  *zap.Logger
}

// NewGateway registers member handlers on the session. Call Open to connect.
func NewGateway(s *discordgo.Session, events MemberEvents, timeout time.Duration, logger *zap.Logger) *Gateway {
	g := &Gateway{session: s, events: events, timeout: timeout, logger: logger}
	if s != nil {
		s.AddHandler(g.onMemberAdd)
		s.AddHandler(g.onMemberRemove)
	}
	return g
}

// Open connects to the gateway.
func (g *Gateway) Open() error {
	return g.session.Open()
}

// Close disconnects from the gateway.
func (g *Gateway) Close() error {
	return g.session.Close()
}

func (g *Gateway) onMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if e.Member == nil {
		return
	}
	g.forward("join", e.GuildID, e.User, g.events.Join)
}

func (g *Gateway) onMemberRemove(_ *discordgo.Session, e *discordgo.GuildMemberRemove) {
	if e.Member == nil {
		return
	}
	g.forward("leave", e.GuildID, e.User, g.events.Leave)
}

func (g *Gateway) forward(event, guildID string, user *discordgo.User, fn func(context.Context, string, int64) (*reconcile.Outcome, error)) {
	if user == nil || user.Bot {
		return
	}
	id, err := utils.ParseDiscordID(user.ID)
	if err != nil {
		g.logger.Warn("Ignoring member event with invalid user id", zap.String("user_id", user.ID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	l := g.logger.With(zap.String("event", event), zap.String("guild", guildID), zap.Int64("discord_id", id))
	out, err := fn(ctx, guildID, id)
	switch {
	case err == nil:
		l.Debug("Member event handled", zap.Bool("changed", out != nil && out.Changed))
		if syncErr := out.SyncErr(); syncErr != nil {
			l.Warn("Member roles out of sync", zap.Error(syncErr))
		}
	case errors.Is(err, guild.ErrUnknownGuild):
		l.Debug("Member event for unconfigured guild")
	default:
		l.Error("Member event failed", zap.Error(err))
	}
}
