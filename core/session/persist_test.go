package session

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, "test")
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	mr, store := newRedisStore(t)
	ctx := context.Background()

	s := Session{
		GuildID:   "1",
		SubjectID: 175928847299117063,
		Kind:      KindTicket,
		State:     StateOpen,
		OpenedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt: time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC),
		Anchor:    Anchor{ChannelID: "900", MessageID: "901"},
	}
	require.NoError(t, store.Save(ctx, s, time.Minute))
	assert.True(t, mr.Exists("test:session:1:175928847299117063"))
	assert.Equal(t, time.Minute, mr.TTL("test:session:1:175928847299117063"))

	loaded, err := store.LoadOpen(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, s.SubjectID, loaded[0].SubjectID)
	assert.Equal(t, s.Anchor, loaded[0].Anchor)
	assert.True(t, s.ExpiresAt.Equal(loaded[0].ExpiresAt))

	require.NoError(t, store.Delete(ctx, "1", s.SubjectID))
	loaded, err = store.LoadOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRedisStore_PrunesExpiredEntries(t *testing.T) {
	mr, store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Session{GuildID: "1", SubjectID: 5, State: StateOpen}, time.Minute))
	mr.FastForward(2 * time.Minute)

	loaded, err := store.LoadOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	members, err := mr.Members("test:sessions")
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestManager_RestoreFromRedis(t *testing.T) {
	_, store := newRedisStore(t)
	ctx := context.Background()

	first, clock := newTestManager(t, WithPersister(store))
	_, err := first.Open(ctx, "1", 42, KindTicket, Anchor{ChannelID: "900"})
	require.NoError(t, err)
	_, err = first.Open(ctx, "1", 43, KindManualCode, Anchor{})
	require.NoError(t, err)
	_, err = first.Cancel(ctx, "1", 43)
	require.NoError(t, err)

	// A fresh manager sharing the store sees only the open session.
	second := NewManager(first.logger, WithPersister(store), WithClock(clock.Now), WithTTL(time.Minute))
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err := second.RequireOpen(ctx, "1", 42)
	require.NoError(t, err)
	assert.Equal(t, "900", s.Anchor.ChannelID)

	_, err = second.Open(ctx, "1", 42, KindTicket, Anchor{})
	assert.ErrorIs(t, err, ErrSessionAlreadyOpen)

	_, err = second.Consume(ctx, "1", 42)
	require.NoError(t, err)

	third := NewManager(first.logger, WithPersister(store), WithClock(clock.Now))
	n, err = third.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestManager_RestoreDropsExpired(t *testing.T) {
	_, store := newRedisStore(t)
	ctx := context.Background()

	first, clock := newTestManager(t, WithPersister(store))
	_, err := first.Open(ctx, "1", 42, KindTicket, Anchor{})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	second := NewManager(first.logger, WithPersister(store), WithClock(clock.Now))
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
