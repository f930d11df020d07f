package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// RoleAPI is a mock implementation of rolesync.RoleAPI
type RoleAPI struct {
	mock.Mock
}

func (m *RoleAPI) MemberRoles(ctx context.Context, guildID string, discordID int64) ([]string, error) {
	args := m.Called(ctx, guildID, discordID)
	if roles, ok := args.Get(0).([]string); ok {
		return roles, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoleAPI) Grant(ctx context.Context, guildID string, discordID int64, roleID string) error {
	args := m.Called(ctx, guildID, discordID, roleID)
	return args.Error(0)
}

func (m *RoleAPI) Revoke(ctx context.Context, guildID string, discordID int64, roleID string) error {
	args := m.Called(ctx, guildID, discordID, roleID)
	return args.Error(0)
}
