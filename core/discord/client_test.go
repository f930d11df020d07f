package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"ckeytools/core/rolesync"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeREST struct {
	roles   map[string][]string
	err     error
	added   []string
	removed []string
	kicked  []string
}

func (f *fakeREST) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID}, Roles: f.roles[userID]}, nil
}

func (f *fakeREST) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.added = append(f.added, userID+"/"+roleID)
	return f.err
}

func (f *fakeREST) GuildMemberRoleRemove(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.removed = append(f.removed, userID+"/"+roleID)
	return f.err
}

func (f *fakeREST) GuildMemberDeleteWithReason(_, userID, reason string, _ ...discordgo.RequestOption) error {
	f.kicked = append(f.kicked, userID+":"+reason)
	return f.err
}

func restErr(status, code int) error {
	e := &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
	if code != 0 {
		e.Message = &discordgo.APIErrorMessage{Code: code, Message: "error"}
	}
	return e
}

func TestClient_Calls(t *testing.T) {
	rest := &fakeREST{roles: map[string][]string{"175928847299117063": {"1", "2"}}}
	c := &Client{rest: rest}
	ctx := context.Background()

	roles, err := c.MemberRoles(ctx, "10", 175928847299117063)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, roles)

	require.NoError(t, c.Grant(ctx, "10", 42, "7"))
	require.NoError(t, c.Revoke(ctx, "10", 42, "8"))
	require.NoError(t, c.RemoveMember(ctx, "10", 42, "alt account"))

	assert.Equal(t, []string{"42/7"}, rest.added)
	assert.Equal(t, []string{"42/8"}, rest.removed)
	assert.Equal(t, []string{"42:alt account"}, rest.kicked)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"unknown member", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMember), true},
		{"unknown user", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownUser), true},
		{"bare 404", restErr(http.StatusNotFound, 0), true},
		{"unknown role", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownRole), false},
		{"forbidden", restErr(http.StatusForbidden, discordgo.ErrCodeMissingPermissions), false},
		{"network", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{rest: &fakeREST{err: tt.err}}
			err := c.Grant(context.Background(), "10", 42, "7")
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, rolesync.ErrMemberNotFound))
		})
	}
}

func TestConfig(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Token: "x"}.Enabled())
	assert.Equal(t, "10s", Config{}.CallTimeout().String())
	assert.Equal(t, 5, Config{Rate: 2, Burst: 5}.Limiter().Burst())
	assert.Equal(t, 1, Config{Rate: 2}.Limiter().Burst())
}

func TestClient_MemberExists(t *testing.T) {
	ctx := context.Background()

	ok, err := (&Client{rest: &fakeREST{}}).MemberExists(ctx, "10", 42)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = (&Client{rest: &fakeREST{err: restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMember)}}).MemberExists(ctx, "10", 42)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = (&Client{rest: &fakeREST{err: restErr(http.StatusForbidden, discordgo.ErrCodeMissingPermissions)}}).MemberExists(ctx, "10", 42)
	assert.Error(t, err)
}
