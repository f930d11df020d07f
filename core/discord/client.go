package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ckeytools/core/rolesync"
	"ckeytools/core/utils"

	"github.com/bwmarrin/discordgo"
)

// restAPI is the subset of *discordgo.Session the client calls.
type restAPI interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
}

// Client performs role and membership changes through the Discord REST API.
type Client struct {
	rest restAPI
}

// NewSession creates an unopened discordgo session for the bot token.
func NewSession(cfg Config) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	s.Client.Timeout = cfg.CallTimeout()
	return s, nil
}

// NewClient wraps a discordgo session.
func NewClient(s *discordgo.Session) *Client {
	return &Client{rest: s}
}

// MemberRoles returns the role ids the member currently holds.
func (c *Client) MemberRoles(ctx context.Context, guildID string, discordID int64) ([]string, error) {
	m, err := c.rest.GuildMember(guildID, utils.FormatDiscordID(discordID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr("fetch member", err)
	}
	return m.Roles, nil
}

// MemberExists reports whether the account is still a member of the guild.
func (c *Client) MemberExists(ctx context.Context, guildID string, discordID int64) (bool, error) {
	_, err := c.rest.GuildMember(guildID, utils.FormatDiscordID(discordID), discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	err = mapErr("fetch member", err)
	if errors.Is(err, rolesync.ErrMemberNotFound) {
		return false, nil
	}
	return false, err
}

// Grant adds a role to the member.
func (c *Client) Grant(ctx context.Context, guildID string, discordID int64, roleID string) error {
	if err := c.rest.GuildMemberRoleAdd(guildID, utils.FormatDiscordID(discordID), roleID, discordgo.WithContext(ctx)); err != nil {
		return mapErr("grant role "+roleID, err)
	}
	return nil
}

// Revoke removes a role from the member.
func (c *Client) Revoke(ctx context.Context, guildID string, discordID int64, roleID string) error {
	if err := c.rest.GuildMemberRoleRemove(guildID, utils.FormatDiscordID(discordID), roleID, discordgo.WithContext(ctx)); err != nil {
		return mapErr("revoke role "+roleID, err)
	}
	return nil
}

// RemoveMember kicks the member from the guild.
func (c *Client) RemoveMember(ctx context.Context, guildID string, discordID int64, reason string) error {
	if err := c.rest.GuildMemberDeleteWithReason(guildID, utils.FormatDiscordID(discordID), reason, discordgo.WithContext(ctx)); err != nil {
		return mapErr("remove member", err)
	}
	return nil
}

func mapErr(op string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && unknownMember(restErr) {
		return fmt.Errorf("failed to %s: %w", op, rolesync.ErrMemberNotFound)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func unknownMember(err *discordgo.RESTError) bool {
	if err.Message != nil {
		switch err.Message.Code {
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
			return true
		}
		return false
	}
	return err.Response != nil && err.Response.StatusCode == http.StatusNotFound
}
