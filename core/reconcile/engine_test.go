package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ckeytools/core/guild"
	"ckeytools/core/links"
	"ckeytools/core/links/linkstest"
	"ckeytools/core/reconcile"
	"ckeytools/core/rolesync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSyncer struct {
	mu    sync.Mutex
	calls []int64
}

func (r *recordingSyncer) Reconcile(_ context.Context, g guild.Config, discordID int64) (rolesync.RoleDiff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, discordID)
	return rolesync.RoleDiff{GuildID: g.ID, DiscordID: discordID}, nil
}

func (r *recordingSyncer) Calls() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.calls...)
}

var testGuild = guild.Config{
	ID:                "1000",
	VerificationRoles: []string{"10"},
	AutoVerifyOnJoin:  true,
}

type fixture struct {
	engine *reconcile.Engine
	store  *links.GormStore
	roles  *recordingSyncer
	marks  *reconcile.MemoryBlocklist
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := linkstest.NewStore(t, "ss13")
	roles := &recordingSyncer{}
	marks := reconcile.NewMemoryBlocklist()
	n := 0
	var mu sync.Mutex
	engine := reconcile.NewEngine(links.StaticProvider{Store: store}, roles, marks, zap.NewNop(),
		reconcile.WithClock(func() time.Time { return linkstest.Epoch }),
		reconcile.WithTokenGenerator(func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("gen-%d", n), nil
		}))
	return &fixture{engine: engine, store: store, roles: roles, marks: marks}
}

func countValid(t *testing.T, s links.Store, discordID int64) int {
	t.Helper()
	recs, err := s.AllByDiscordID(context.Background(), discordID)
	require.NoError(t, err)
	n := 0
	for _, r := range recs {
		if r.Valid {
			n++
		}
	}
	return n
}

func TestClaimToken_RoundTripAndSecondClaimFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	linkstest.Issue(t, f.store, "spacemandan", "ABC123")

	out, err := f.engine.ClaimToken(ctx, testGuild, "ABC123", 42)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Empty(t, out.Superseded)

	rec, err := f.store.FindValidByDiscordID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "spacemandan", rec.Ckey)
	assert.True(t, rec.HasDiscordID(42))
	assert.True(t, rec.Valid)

	_, err = f.engine.ClaimToken(ctx, testGuild, "ABC123", 99)
	assert.ErrorIs(t, err, reconcile.ErrTokenAlreadyClaimed)

	_, err = f.store.FindValidByDiscordID(ctx, 99)
	assert.ErrorIs(t, err, links.ErrNotFound)
	assert.Equal(t, []int64{42}, f.roles.Calls())
}

func TestClaimToken_UnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.ClaimToken(context.Background(), testGuild, "nope", 42)
	assert.ErrorIs(t, err, reconcile.ErrTokenNotFound)

	_, err = f.engine.ClaimToken(context.Background(), testGuild, "  ", 42)
	assert.ErrorIs(t, err, reconcile.ErrTokenNotFound)
	assert.Empty(t, f.roles.Calls())
}

func TestClaimToken_SupersedesPreviousLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l1 := linkstest.Link(t, f.store, "alice", "T1", 42)
	linkstest.Issue(t, f.store, "bob", "T2")

	out, err := f.engine.ClaimToken(ctx, testGuild, "T2", 42)
	require.NoError(t, err)
	require.Len(t, out.Superseded, 1)
	assert.Equal(t, l1.ID, out.Superseded[0].ID)
	assert.Empty(t, out.Displaced)

	old, err := f.store.FindByToken(ctx, "T1")
	require.NoError(t, err)
	assert.False(t, old.Valid)

	current, err := f.store.FindValidByDiscordID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "T2", current.Token)
	assert.Equal(t, 1, countValid(t, f.store, 42))

	// Exactly one role reconcile, for the subject.
	assert.Equal(t, []int64{42}, f.roles.Calls())
	require.Len(t, out.Syncs, 1)
	assert.NoError(t, out.SyncErr())
}

func TestClaimToken_DisplacesOtherAccountOnSameCkey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	linkstest.Link(t, f.store, "alice", "OLD", 7)
	linkstest.Issue(t, f.store, "alice", "NEW")

	out, err := f.engine.ClaimToken(ctx, testGuild, "NEW", 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, out.Displaced)

	_, err = f.store.FindValidByDiscordID(ctx, 7)
	assert.ErrorIs(t, err, links.ErrNotFound)

	byCkey, err := f.store.FindValidByCkey(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, byCkey.HasDiscordID(42))
	assert.Equal(t, []int64{42, 7}, f.roles.Calls())
}

func TestClaimToken_HistoryIsPreserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, ckey := range []string{"first", "second", "third"} {
		token := fmt.Sprintf("T%d", i)
		linkstest.Issue(t, f.store, ckey, token)
		_, err := f.engine.ClaimToken(ctx, testGuild, token, 42)
		require.NoError(t, err)
	}

	history, err := f.store.AllByDiscordID(ctx, 42)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, ckey := range []string{"first", "second", "third"} {
		assert.Equal(t, ckey, history[i].Ckey)
		assert.Equal(t, fmt.Sprintf("T%d", i), history[i].Token)
	}
	assert.True(t, history[0].CreatedAt.Before(history[1].CreatedAt))
	assert.True(t, history[1].CreatedAt.Before(history[2].CreatedAt))
	assert.False(t, history[0].Valid)
	assert.False(t, history[1].Valid)
	assert.True(t, history[2].Valid)
}

func TestClaimToken_ClearsDeverifiedMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.marks.MarkDeverified(ctx, testGuild, 42))
	linkstest.Issue(t, f.store, "alice", "T")

	_, err := f.engine.ClaimToken(ctx, testGuild, "T", 42)
	require.NoError(t, err)

	marked, err := f.marks.IsDeverified(ctx, testGuild, 42)
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestClaimToken_ConcurrentClaimsForSameMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 12
	for i := 0; i < n; i++ {
		linkstest.Issue(t, f.store, fmt.Sprintf("ckey%d", i), fmt.Sprintf("TOK%d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.ClaimToken(ctx, testGuild, fmt.Sprintf("TOK%d", i), 42)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, countValid(t, f.store, 42))

	history, err := f.store.AllByDiscordID(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, history, n)
}

func TestClaimToken_ConcurrentClaimsForSameToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	linkstest.Issue(t, f.store, "alice", "ONCE")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.ClaimToken(ctx, testGuild, "ONCE", int64(100+i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, reconcile.ErrTokenAlreadyClaimed)
	}
	assert.Equal(t, 1, wins)

	valid, err := f.store.AllValid(ctx)
	require.NoError(t, err)
	assert.Len(t, valid, 1)
}

// failingStore breaks SetDiscordID inside transactions.
type failingStore struct {
	*links.GormStore
}

type failingTx struct {
	links.Tx
}

func (failingTx) SetDiscordID(context.Context, uint64, int64) error {
	return fmt.Errorf("set discord id: %w", links.ErrStoreUnavailable)
}

func (s failingStore) Atomic(ctx context.Context, keys links.Keys, fn func(tx links.Tx) error) error {
	return s.GormStore.Atomic(ctx, keys, func(tx links.Tx) error {
		return fn(failingTx{tx})
	})
}

func TestClaimToken_FailedActivationRollsBackSupersession(t *testing.T) {
	store := linkstest.NewStore(t, "")
	roles := &recordingSyncer{}
	engine := reconcile.NewEngine(links.StaticProvider{Store: failingStore{store}}, roles, nil, zap.NewNop())
	ctx := context.Background()

	linkstest.Link(t, store, "alice", "T1", 42)
	linkstest.Issue(t, store, "bob", "T2")

	_, err := engine.ClaimToken(ctx, testGuild, "T2", 42)
	assert.ErrorIs(t, err, links.ErrStoreUnavailable)

	current, err := store.FindValidByDiscordID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "T1", current.Token)
	assert.Empty(t, roles.Calls())
}

func TestDeverify(t *testing.T) {
	t.Run("already unlinked is idempotent", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		old := linkstest.Link(t, f.store, "alice", "T1", 42)
		require.NoError(t, f.store.SetValid(ctx, old.ID, false))

		for i := 0; i < 2; i++ {
			out, err := f.engine.Deverify(ctx, testGuild, 42, "test")
			assert.ErrorIs(t, err, reconcile.ErrAlreadyUnlinked)
			require.NotNil(t, out)
			assert.False(t, out.Changed)
		}

		history, err := f.store.AllByDiscordID(ctx, 42)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, old.CreatedAt.Equal(history[0].CreatedAt))
		assert.Empty(t, f.roles.Calls())
	})

	t.Run("invalidates and marks", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		linkstest.Link(t, f.store, "alice", "T1", 42)

		g := testGuild
		g.KickOnDeverify = true
		out, err := f.engine.Deverify(ctx, g, 42, "alt account")
		require.NoError(t, err)
		assert.True(t, out.Changed)
		assert.True(t, out.RemoveFromGuild)
		assert.Equal(t, "alice", out.Record.Ckey)
		assert.Equal(t, "alt account", out.Reason)
		assert.Equal(t, 0, countValid(t, f.store, 42))
		assert.Equal(t, []int64{42}, f.roles.Calls())

		marked, err := f.marks.IsDeverified(ctx, g, 42)
		require.NoError(t, err)
		assert.True(t, marked)

		_, err = f.engine.Deverify(ctx, g, 42, "again")
		assert.ErrorIs(t, err, reconcile.ErrAlreadyUnlinked)
	})
}

func TestAutoVerifyOnJoin(t *testing.T) {
	t.Run("no history is a no-op", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.engine.AutoVerifyOnJoin(context.Background(), testGuild, 42)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Nil(t, out.Record)
		assert.Empty(t, f.roles.Calls())
	})

	t.Run("disabled is a no-op", func(t *testing.T) {
		f := newFixture(t)
		linkstest.Link(t, f.store, "alice", "T1", 42)
		g := testGuild
		g.AutoVerifyOnJoin = false

		out, err := f.engine.AutoVerifyOnJoin(context.Background(), g, 42)
		require.NoError(t, err)
		assert.Nil(t, out.Record)
		assert.Empty(t, f.roles.Calls())
	})

	t.Run("valid link reapplies roles without writes", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		linkstest.Link(t, f.store, "alice", "T1", 42)

		out, err := f.engine.AutoVerifyOnJoin(ctx, testGuild, 42)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, "alice", out.Record.Ckey)
		assert.Equal(t, []int64{42}, f.roles.Calls())

		history, err := f.store.AllByDiscordID(ctx, 42)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("invalidated link stays invalid by default", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		rec := linkstest.Link(t, f.store, "alice", "T1", 42)
		require.NoError(t, f.store.SetValid(ctx, rec.ID, false))

		out, err := f.engine.AutoVerifyOnJoin(ctx, testGuild, 42)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, 0, countValid(t, f.store, 42))
		assert.Empty(t, f.roles.Calls())
	})

	t.Run("re-promotion when enabled", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		rec := linkstest.Link(t, f.store, "alice", "T1", 42)
		require.NoError(t, f.store.SetValid(ctx, rec.ID, false))

		g := testGuild
		g.RepromoteOnJoin = true
		out, err := f.engine.AutoVerifyOnJoin(ctx, g, 42)
		require.NoError(t, err)
		assert.True(t, out.Changed)
		assert.Equal(t, reconcile.EventJoin, out.Event)
		assert.Equal(t, "alice", out.Record.Ckey)
		assert.Equal(t, reconcile.DeriveToken("T1", linkstest.Epoch), out.Record.Token)
		assert.NotEqual(t, rec.ID, out.Record.ID)
		assert.Equal(t, 1, countValid(t, f.store, 42))
		assert.Equal(t, []int64{42}, f.roles.Calls())
	})

	t.Run("deverified members are not re-promoted", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		linkstest.Link(t, f.store, "alice", "T1", 42)
		_, err := f.engine.Deverify(ctx, testGuild, 42, "")
		require.NoError(t, err)

		g := testGuild
		g.RepromoteOnJoin = true
		out, err := f.engine.AutoVerifyOnJoin(ctx, g, 42)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, 0, countValid(t, f.store, 42))

		_, err = f.engine.Repromote(ctx, g, 42)
		assert.ErrorIs(t, err, reconcile.ErrDeverified)
	})
}

func TestRepromote_NoHistory(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Repromote(context.Background(), testGuild, 42)
	assert.ErrorIs(t, err, reconcile.ErrNoHistory)
}

func TestLeaveGuild(t *testing.T) {
	t.Run("disabled keeps the link", func(t *testing.T) {
		f := newFixture(t)
		linkstest.Link(t, f.store, "alice", "T1", 42)

		out, err := f.engine.LeaveGuild(context.Background(), testGuild, 42)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, 1, countValid(t, f.store, 42))
	})

	t.Run("invalidates once and repeats safely", func(t *testing.T) {
		f := newFixture(t)
		linkstest.Link(t, f.store, "alice", "T1", 42)
		g := testGuild
		g.InvalidateOnLeave = true

		out, err := f.engine.LeaveGuild(context.Background(), g, 42)
		require.NoError(t, err)
		assert.True(t, out.Changed)
		assert.Equal(t, 0, countValid(t, f.store, 42))

		out, err = f.engine.LeaveGuild(context.Background(), g, 42)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Empty(t, f.roles.Calls())
	})
}

func TestOutcomeSyncErr(t *testing.T) {
	boom := errors.New("boom")
	out := &reconcile.Outcome{Syncs: []reconcile.SyncResult{
		{DiscordID: 1, Err: boom},
		{DiscordID: 2, Diff: rolesync.RoleDiff{
			Grant:    []string{"10"},
			Failures: []rolesync.RoleFailure{{Op: rolesync.OpGrant, RoleID: "10", Err: boom}},
		}},
		{DiscordID: 3},
	}}
	assert.ErrorIs(t, out.SyncErr(), boom)

	pending := out.PendingRoles()
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"10"}, pending[0].Grant)

	var none *reconcile.Outcome
	assert.NoError(t, none.SyncErr())
}

func TestDeverify_MarkIsSharedAcrossEngines(t *testing.T) {
	ctx := context.Background()
	store := linkstest.NewStore(t, "ss13")
	src := links.StaticProvider{Store: store}
	linkstest.Link(t, store, "alice", "T", 42)

	// Two engines over one database, as with a CLI run next to the server.
	cli := reconcile.NewEngine(src, nil, nil, zap.NewNop())
	server := reconcile.NewEngine(src, &recordingSyncer{}, nil, zap.NewNop())

	_, err := cli.Deverify(ctx, testGuild, 42, "alt account")
	require.NoError(t, err)

	_, err = server.Repromote(ctx, testGuild, 42)
	assert.ErrorIs(t, err, reconcile.ErrDeverified)

	st, err := server.CheckUser(ctx, testGuild, 42)
	require.NoError(t, err)
	assert.True(t, st.Deverified)
	assert.False(t, st.Linked())
	assert.Equal(t, 0, countValid(t, store, 42))

	_, err = server.ForceLink(ctx, testGuild, "alice", 42)
	require.NoError(t, err)
	st, err = cli.CheckUser(ctx, testGuild, 42)
	require.NoError(t, err)
	assert.False(t, st.Deverified)
}
