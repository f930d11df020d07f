package reconcile_test

import (
	"context"
	"testing"

	"ckeytools/core/links/linkstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	linkstest.Issue(t, f.store, "alice", "A1")
	linkstest.Issue(t, f.store, "bob", "B1")
	linkstest.Issue(t, f.store, "alice", "A2")
	_, err := f.engine.ClaimToken(ctx, testGuild, "A1", 42)
	require.NoError(t, err)
	_, err = f.engine.ClaimToken(ctx, testGuild, "B1", 42)
	require.NoError(t, err)
	_, err = f.engine.ClaimToken(ctx, testGuild, "A2", 7)
	require.NoError(t, err)

	t.Run("check user", func(t *testing.T) {
		st, err := f.engine.CheckUser(ctx, testGuild, 42)
		require.NoError(t, err)
		require.True(t, st.Linked())
		assert.Equal(t, "bob", st.Link.Ckey)
		assert.False(t, st.Deverified)

		none, err := f.engine.CheckUser(ctx, testGuild, 555)
		require.NoError(t, err)
		assert.False(t, none.Linked())
	})

	t.Run("ckeys for member", func(t *testing.T) {
		ckeys, err := f.engine.CkeysFor(ctx, testGuild, 42)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, ckeys)
	})

	t.Run("members for ckey", func(t *testing.T) {
		ids, err := f.engine.DiscordIDsFor(ctx, testGuild, "ALICE")
		require.NoError(t, err)
		assert.Equal(t, []int64{42, 7}, ids)
	})

	t.Run("valid links", func(t *testing.T) {
		valid, err := f.engine.ValidLinks(ctx, testGuild)
		require.NoError(t, err)
		require.Len(t, valid, 2)
		assert.Equal(t, "bob", valid[0].Ckey)
		assert.Equal(t, "alice", valid[1].Ckey)
	})
}
