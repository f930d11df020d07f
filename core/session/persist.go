package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Persister stores open sessions so they survive a restart.
type Persister interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Delete(ctx context.Context, guildID string, subject int64) error
	LoadOpen(ctx context.Context) ([]Session, error)
}

// NopPersister keeps nothing.
type NopPersister struct{}

func (NopPersister) Save(context.Context, Session, time.Duration) error { return nil }
func (NopPersister) Delete(context.Context, string, int64) error        { return nil }
func (NopPersister) LoadOpen(context.Context) ([]Session, error)        { return nil, nil }

// RedisStore keeps each open session as a JSON value with a TTL, plus an
// index set naming every stored session.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store under the given key prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ckeytools"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) indexKey() string {
	return r.prefix + ":sessions"
}

func (r *RedisStore) sessionKey(member string) string {
	return r.prefix + ":session:" + member
}

func (r *RedisStore) Save(ctx context.Context, s Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	member := key{s.GuildID, s.SubjectID}.String()

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.sessionKey(member), raw, ttl)
		p.SAdd(ctx, r.indexKey(), member)
		return nil
	})
	return err
}

func (r *RedisStore) Delete(ctx context.Context, guildID string, subject int64) error {
	member := key{guildID, subject}.String()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.sessionKey(member))
		p.SRem(ctx, r.indexKey(), member)
		return nil
	})
	return err
}

// LoadOpen returns every stored session. Index entries whose value already
// expired are pruned.
func (r *RedisStore) LoadOpen(ctx context.Context) ([]Session, error) {
	members, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(members))
	for _, member := range members {
		raw, err := r.client.Get(ctx, r.sessionKey(member)).Bytes()
		if errors.Is(err, redis.Nil) {
			if err := r.client.SRem(ctx, r.indexKey(), member).Err(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", member, err)
		}
		if !validMember(member, s) {
			return nil, fmt.Errorf("session %s does not match its key", member)
		}
		out = append(out, s)
	}
	return out, nil
}

func validMember(member string, s Session) bool {
	guild, subject, ok := strings.Cut(member, ":")
	return ok && guild == s.GuildID && subject == strconv.FormatInt(s.SubjectID, 10)
}
