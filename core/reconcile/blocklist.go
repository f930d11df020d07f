package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"ckeytools/core/guild"

	"github.com/redis/go-redis/v9"
)

// Blocklist records members a staff member deverified.
type Blocklist interface {
	IsDeverified(ctx context.Context, g guild.Config, discordID int64) (bool, error)
	MarkDeverified(ctx context.Context, g guild.Config, discordID int64) error
	ClearDeverified(ctx context.Context, g guild.Config, discordID int64) error
}

// StoreBlocklist keeps marks in the guild's link database, so every process
// sharing that database sees them.
type StoreBlocklist struct {
	links LinkSource
}

// NewStoreBlocklist creates a blocklist over the guilds' link stores.
func NewStoreBlocklist(src LinkSource) *StoreBlocklist {
	return &StoreBlocklist{links: src}
}

func (b *StoreBlocklist) IsDeverified(ctx context.Context, g guild.Config, discordID int64) (bool, error) {
	store, err := b.links.For(ctx, g)
	if err != nil {
		return false, err
	}
	return store.IsDeverified(ctx, discordID)
}

func (b *StoreBlocklist) MarkDeverified(ctx context.Context, g guild.Config, discordID int64) error {
	store, err := b.links.For(ctx, g)
	if err != nil {
		return err
	}
	return store.MarkDeverified(ctx, discordID)
}

func (b *StoreBlocklist) ClearDeverified(ctx context.Context, g guild.Config, discordID int64) error {
	store, err := b.links.For(ctx, g)
	if err != nil {
		return err
	}
	return store.ClearDeverified(ctx, discordID)
}

// MemoryBlocklist keeps marks in process memory. Marks are lost when the
// process exits.
type MemoryBlocklist struct {
	mu    sync.RWMutex
	marks map[string]map[int64]struct{}
}

// NewMemoryBlocklist creates an empty in-memory blocklist.
func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{marks: make(map[string]map[int64]struct{})}
}

func (b *MemoryBlocklist) IsDeverified(_ context.Context, g guild.Config, discordID int64) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.marks[g.ID][discordID]
	return ok, nil
}

func (b *MemoryBlocklist) MarkDeverified(_ context.Context, g guild.Config, discordID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.marks[g.ID]
	if !ok {
		set = make(map[int64]struct{})
		b.marks[g.ID] = set
	}
	set[discordID] = struct{}{}
	return nil
}

func (b *MemoryBlocklist) ClearDeverified(_ context.Context, g guild.Config, discordID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.marks[g.ID], discordID)
	return nil
}

// RedisBlocklist keeps one Redis set of Discord ids per guild.
type RedisBlocklist struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBlocklist creates a blocklist under the given key prefix.
func NewRedisBlocklist(client redis.UniversalClient, prefix string) *RedisBlocklist {
	if prefix == "" {
		prefix = "ckeytools"
	}
	return &RedisBlocklist{client: client, prefix: prefix}
}

func (b *RedisBlocklist) key(guildID string) string {
	return fmt.Sprintf("%s:deverified:%s", b.prefix, guildID)
}

func (b *RedisBlocklist) IsDeverified(ctx context.Context, g guild.Config, discordID int64) (bool, error) {
	ok, err := b.client.SIsMember(ctx, b.key(g.ID), strconv.FormatInt(discordID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read deverified mark: %w", err)
	}
	return ok, nil
}

func (b *RedisBlocklist) MarkDeverified(ctx context.Context, g guild.Config, discordID int64) error {
	if err := b.client.SAdd(ctx, b.key(g.ID), strconv.FormatInt(discordID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to set deverified mark: %w", err)
	}
	return nil
}

func (b *RedisBlocklist) ClearDeverified(ctx context.Context, g guild.Config, discordID int64) error {
	if err := b.client.SRem(ctx, b.key(g.ID), strconv.FormatInt(discordID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to clear deverified mark: %w", err)
	}
	return nil
}
