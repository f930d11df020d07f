package verification_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"ckeytools/core/guild"
	"ckeytools/core/links"
	"ckeytools/core/links/linkstest"
	"ckeytools/core/reconcile"
	"ckeytools/core/rolesync"
	"ckeytools/core/session"
	"ckeytools/core/storage"
	"ckeytools/core/storage/mocks"
	"ckeytools/core/verification"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRoles plans a single grant of role "10" and fails the first
// failApplies calls to Apply.
type fakeRoles struct {
	mu          sync.Mutex
	reconciled  []int64
	applies     int
	failInitial bool
	failApplies int
}

var errDenied = errors.New("missing permissions")

func (f *fakeRoles) Reconcile(_ context.Context, g guild.Config, id int64) (rolesync.RoleDiff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciled = append(f.reconciled, id)
	d := rolesync.RoleDiff{GuildID: g.ID, DiscordID: id, Linked: true, Grant: []string{"10"}}
	if f.failInitial {
		d.Failures = []rolesync.RoleFailure{{Op: rolesync.OpGrant, RoleID: "10", Err: errDenied}}
	}
	return d, nil
}

func (f *fakeRoles) Apply(_ context.Context, d rolesync.RoleDiff) rolesync.RoleDiff {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applies++
	d.Failures = nil
	if f.applies <= f.failApplies {
		for _, r := range d.Grant {
			d.Failures = append(d.Failures, rolesync.RoleFailure{Op: rolesync.OpGrant, RoleID: r, Err: errDenied})
		}
	}
	return d
}

type fakeRemover struct {
	calls []int64
	err   error
}

func (f *fakeRemover) RemoveMember(_ context.Context, _ string, id int64, _ string) error {
	f.calls = append(f.calls, id)
	return f.err
}

// fakeMembers treats every account in present as a guild member.
type fakeMembers struct {
	present map[int64]bool
	err     error
}

func (f *fakeMembers) MemberExists(_ context.Context, _ string, id int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.present[id], nil
}

type harness struct {
	svc      *verification.Service
	store    *links.GormStore
	roles    *fakeRoles
	remover  *fakeRemover
	members  *fakeMembers
	storage  *mocks.Client
	clock    *time.Time
	clockMu  *sync.Mutex
	guildCfg guild.Config
}

func (h *harness) advance(d time.Duration) {
	h.clockMu.Lock()
	*h.clock = h.clock.Add(d)
	h.clockMu.Unlock()
}

func newHarness(t *testing.T, mutate func(*guild.Config)) *harness {
	t.Helper()
	g := guild.Config{
		ID:                  "1000",
		VerificationRoles:   []string{"10"},
		VerificationEnabled: true,
		AutoVerifyOnJoin:    true,
	}
	if mutate != nil {
		mutate(&g)
	}
	reg, err := guild.NewRegistry([]guild.Config{g})
	require.NoError(t, err)

	store := linkstest.NewStore(t, "")
	roles := &fakeRoles{}
	engine := reconcile.NewEngine(links.StaticProvider{Store: store}, roles, nil, zap.NewNop())

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	sessions := session.NewManager(zap.NewNop(), session.WithClock(clock), session.WithTTL(time.Minute))

	remover := &fakeRemover{}
	members := &fakeMembers{present: map[int64]bool{}}
	storageClient := new(mocks.Client)
	svc := verification.NewService(reg, engine, roles, sessions, zap.NewNop(),
		verification.WithMemberRemover(remover),
		verification.WithMemberChecker(members),
		verification.WithExporter(verification.NewExporter(storageClient, "exports")),
		verification.WithRetryPolicy(verification.RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}))

	return &harness{svc: svc, store: store, roles: roles, remover: remover, members: members, storage: storageClient, clock: &now, clockMu: &mu, guildCfg: g}
}

func TestSubmitCode(t *testing.T) {
	t.Run("requires an open session", func(t *testing.T) {
		h := newHarness(t, nil)
		linkstest.Issue(t, h.store, "alice", "ABC123")

		_, err := h.svc.SubmitCode(context.Background(), "1000", 42, "ABC123")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)

		rec, err := h.store.FindByToken(context.Background(), "ABC123")
		require.NoError(t, err)
		assert.False(t, rec.Claimed())
	})

	t.Run("claims and consumes", func(t *testing.T) {
		h := newHarness(t, nil)
		ctx := context.Background()
		linkstest.Issue(t, h.store, "alice", "ABC123")

		_, err := h.svc.BeginManual(ctx, "1000", 42)
		require.NoError(t, err)
		_, err = h.svc.BeginManual(ctx, "1000", 42)
		assert.ErrorIs(t, err, session.ErrSessionAlreadyOpen)

		out, err := h.svc.SubmitCode(ctx, "1000", 42, "ABC123")
		require.NoError(t, err)
		assert.Equal(t, "alice", out.Record.Ckey)

		s, err := h.svc.Session(ctx, "1000", 42)
		require.NoError(t, err)
		assert.Equal(t, session.StateConsumed, s.State)

		st, err := h.svc.CheckUser(ctx, "1000", 42)
		require.NoError(t, err)
		assert.True(t, st.Linked())
	})

	t.Run("expired session", func(t *testing.T) {
		h := newHarness(t, nil)
		ctx := context.Background()
		linkstest.Issue(t, h.store, "alice", "ABC123")

		_, err := h.svc.BeginManual(ctx, "1000", 42)
		require.NoError(t, err)
		h.advance(2 * time.Minute)

		_, err = h.svc.SubmitCode(ctx, "1000", 42, "ABC123")
		assert.ErrorIs(t, err, session.ErrSessionExpired)
	})

	t.Run("bad token keeps the session open", func(t *testing.T) {
		h := newHarness(t, nil)
		ctx := context.Background()

		_, err := h.svc.BeginManual(ctx, "1000", 42)
		require.NoError(t, err)
		_, err = h.svc.SubmitCode(ctx, "1000", 42, "WRONG")
		assert.ErrorIs(t, err, reconcile.ErrTokenNotFound)

		s, err := h.svc.Session(ctx, "1000", 42)
		require.NoError(t, err)
		assert.Equal(t, session.StateOpen, s.State)
	})

	t.Run("disabled guild", func(t *testing.T) {
		h := newHarness(t, func(g *guild.Config) { g.VerificationEnabled = false })
		_, err := h.svc.BeginManual(context.Background(), "1000", 42)
		assert.ErrorIs(t, err, verification.ErrVerificationDisabled)
	})

	t.Run("unknown guild", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.svc.BeginManual(context.Background(), "999", 42)
		assert.ErrorIs(t, err, guild.ErrUnknownGuild)
	})
}

func TestOpenTicket(t *testing.T) {
	t.Run("linked member only gets roles", func(t *testing.T) {
		h := newHarness(t, nil)
		linkstest.Link(t, h.store, "alice", "A", 42)

		res, err := h.svc.OpenTicket(context.Background(), "1000", 42, session.Anchor{ChannelID: "1"})
		require.NoError(t, err)
		assert.True(t, res.AlreadyLinked)
		assert.Nil(t, res.Session)
		assert.Equal(t, []int64{42}, h.roles.reconciled)
	})

	t.Run("new member gets an open ticket", func(t *testing.T) {
		h := newHarness(t, func(g *guild.Config) { g.AutoVerificationEnabled = true })

		res, err := h.svc.OpenTicket(context.Background(), "1000", 42, session.Anchor{ChannelID: "1"})
		require.NoError(t, err)
		require.NotNil(t, res.Session)
		assert.Equal(t, session.StateOpen, res.Session.State)
		assert.Equal(t, session.KindTicket, res.Session.Kind)
		assert.False(t, res.AutoLinked)
	})

	t.Run("auto-verification re-links from history", func(t *testing.T) {
		h := newHarness(t, func(g *guild.Config) { g.AutoVerificationEnabled = true })
		ctx := context.Background()
		rec := linkstest.Link(t, h.store, "alice", "A", 42)
		require.NoError(t, h.store.SetValid(ctx, rec.ID, false))

		res, err := h.svc.OpenTicket(ctx, "1000", 42, session.Anchor{})
		require.NoError(t, err)
		assert.True(t, res.AutoLinked)
		assert.Equal(t, session.StateConsumed, res.Session.State)
		assert.Equal(t, "alice", res.Outcome.Record.Ckey)
	})

	t.Run("deverified member is not re-linked", func(t *testing.T) {
		h := newHarness(t, func(g *guild.Config) { g.AutoVerificationEnabled = true })
		ctx := context.Background()
		linkstest.Link(t, h.store, "alice", "A", 42)
		_, err := h.svc.Deverify(ctx, "1000", 42, "alt")
		require.NoError(t, err)

		res, err := h.svc.OpenTicket(ctx, "1000", 42, session.Anchor{})
		require.NoError(t, err)
		assert.False(t, res.AutoLinked)
		assert.Equal(t, session.StateOpen, res.Session.State)
	})
}

func TestDeverify_KicksUnderForceStay(t *testing.T) {
	h := newHarness(t, func(g *guild.Config) { g.KickOnDeverify = true })
	ctx := context.Background()
	linkstest.Link(t, h.store, "alice", "A", 42)
	_, err := h.svc.BeginManual(ctx, "1000", 42)
	require.NoError(t, err)

	out, err := h.svc.Deverify(ctx, "1000", 42, "rules")
	require.NoError(t, err)
	assert.True(t, out.RemoveFromGuild)
	assert.Equal(t, []int64{42}, h.remover.calls)

	s, err := h.svc.Session(ctx, "1000", 42)
	require.NoError(t, err)
	assert.Equal(t, session.StateCancelled, s.State)

	_, err = h.svc.Deverify(ctx, "1000", 42, "rules")
	assert.ErrorIs(t, err, reconcile.ErrAlreadyUnlinked)
	assert.Len(t, h.remover.calls, 1)
}

func TestDeverify_RemovalFailureIsReported(t *testing.T) {
	h := newHarness(t, func(g *guild.Config) { g.KickOnDeverify = true })
	h.remover.err = errors.New("missing kick permission")
	linkstest.Link(t, h.store, "alice", "A", 42)

	out, err := h.svc.Deverify(context.Background(), "1000", 42, "")
	assert.ErrorContains(t, err, "member removal failed")
	require.NotNil(t, out)
	assert.True(t, out.Changed)
}

func TestJoinAndLeave(t *testing.T) {
	h := newHarness(t, func(g *guild.Config) { g.InvalidateOnLeave = true })
	ctx := context.Background()
	linkstest.Link(t, h.store, "alice", "A", 42)

	out, err := h.svc.Join(ctx, "1000", 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", out.Record.Ckey)

	out, err = h.svc.Leave(ctx, "1000", 42)
	require.NoError(t, err)
	assert.True(t, out.Changed)

	out, err = h.svc.Join(ctx, "1000", 42)
	require.NoError(t, err)
	assert.Nil(t, out.Record)
}

func TestInvalidateGone(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	linkstest.Link(t, h.store, "alice", "A", 42)
	linkstest.Link(t, h.store, "bob", "B", 43)
	h.members.present[43] = true

	out, err := h.svc.InvalidateGone(ctx, "1000")
	require.NoError(t, err)
	require.Len(t, out.Superseded, 1)
	assert.Equal(t, "alice", out.Superseded[0].Ckey)

	st, err := h.svc.CheckUser(ctx, "1000", 42)
	require.NoError(t, err)
	assert.False(t, st.Linked())
	st, err = h.svc.CheckUser(ctx, "1000", 43)
	require.NoError(t, err)
	assert.True(t, st.Linked())

	h.members.err = errors.New("gateway timeout")
	_, err = h.svc.InvalidateGone(ctx, "1000")
	assert.ErrorContains(t, err, "gateway timeout")

	_, err = h.svc.InvalidateGone(ctx, "999")
	assert.ErrorIs(t, err, guild.ErrUnknownGuild)
}

func TestInvalidateGone_RequiresMemberChecker(t *testing.T) {
	reg, err := guild.NewRegistry([]guild.Config{{ID: "1"}})
	require.NoError(t, err)
	svc := verification.NewService(reg, nil, nil, session.NewManager(zap.NewNop()), zap.NewNop())

	_, err = svc.InvalidateGone(context.Background(), "1")
	assert.ErrorIs(t, err, verification.ErrMembershipUnavailable)
}

func TestRetryRoles(t *testing.T) {
	t.Run("recovers after a transient failure", func(t *testing.T) {
		h := newHarness(t, nil)
		h.roles.failInitial = true
		h.roles.failApplies = 1
		linkstest.Link(t, h.store, "alice", "A", 42)

		out, err := h.svc.Join(context.Background(), "1000", 42)
		require.NoError(t, err)
		assert.NoError(t, out.SyncErr())
		assert.Equal(t, 2, h.roles.applies)
	})

	t.Run("reports what still fails", func(t *testing.T) {
		h := newHarness(t, nil)
		h.roles.failInitial = true
		h.roles.failApplies = 100
		linkstest.Link(t, h.store, "alice", "A", 42)

		out, err := h.svc.Join(context.Background(), "1000", 42)
		require.NoError(t, err)
		assert.Error(t, out.SyncErr())
		assert.Equal(t, 3, h.roles.applies)
		require.Len(t, out.PendingRoles(), 1)
		assert.Equal(t, []string{"10"}, out.PendingRoles()[0].Grant)
	})
}

func TestExportValid(t *testing.T) {
	h := newHarness(t, nil)
	linkstest.Link(t, h.store, "alice", "A", 175928847299117063)
	linkstest.Issue(t, h.store, "bob", "B")

	var uploaded []byte
	h.storage.On("BucketExists", mock.Anything, "exports").Return(true, nil)
	h.storage.On("PutObject", mock.Anything, "exports", mock.MatchedBy(func(name string) bool {
		return len(name) > len("exports/1000/links-") && name[:len("exports/1000/links-")] == "exports/1000/links-"
	}), mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			uploaded, _ = io.ReadAll(args.Get(3).(io.Reader))
		}).
		Return(minio.UploadInfo{}, nil)

	res, err := h.svc.ExportValid(context.Background(), "1000")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	var snap verification.Snapshot
	require.NoError(t, json.Unmarshal(uploaded, &snap))
	require.Len(t, snap.Links, 1)
	assert.Equal(t, "alice", snap.Links[0].Ckey)
	assert.Equal(t, "175928847299117063", snap.Links[0].DiscordID)
}

func TestExportDisabled(t *testing.T) {
	reg, err := guild.NewRegistry([]guild.Config{{ID: "1"}})
	require.NoError(t, err)
	svc := verification.NewService(reg, nil, nil, session.NewManager(zap.NewNop()), zap.NewNop())

	_, err = svc.ExportValid(context.Background(), "1")
	assert.ErrorIs(t, err, verification.ErrExportDisabled)
	_, err = svc.Exports(context.Background(), "1")
	assert.ErrorIs(t, err, verification.ErrExportDisabled)
	_, err = svc.ReadExport(context.Background(), "2", "links-1.json")
	assert.ErrorIs(t, err, guild.ErrUnknownGuild)
}

func TestReadExportRejectsPaths(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.ReadExport(context.Background(), "1000", "../2000/links-1.json")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	h.storage.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
