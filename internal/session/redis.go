package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"preciobot/internal"
)

const (
	fieldPlan      = "plan"
	fieldOfferedAt = "offeredAt"
)

// resolveScript returns {plan, option} and deletes the hash in one step, or
// nil when the option is absent.
var resolveScript = redis.NewScript(`
local option = redis.call('HGET', KEYS[1], ARGV[1])
if not option then
  return false
end
local plan = redis.call('HGET', KEYS[1], 'plan')
redis.call('DEL', KEYS[1])
return {plan, option}
`)

// RedisStore keeps one hash per identity so several bot replicas share
// pending offers. The hash expires after the idle timeout.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisStore(client, cfg.Prefix, cfg.TTL), nil
}

func newRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "preciobot:session:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(identity string) string {
	return s.prefix + identity
}

func (s *RedisStore) Offer(ctx context.Context, identity string, plan internal.FinancingPlan, candidates []internal.CatalogRecord) (Pending, error) {
	p := NewPending(plan, candidates, time.Now())

	values := map[string]any{
		fieldPlan:      string(plan),
		fieldOfferedAt: p.OfferedAt.UTC().Format(time.RFC3339Nano),
	}
	for k, r := range p.Options {
		blob, err := json.Marshal(r)
		if err != nil {
			return Pending{}, err
		}
		values[k] = string(blob)
	}

	key := s.key(identity)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return Pending{}, fmt.Errorf("redis offer: %w", err)
	}
	return p, nil
}

func (s *RedisStore) Resolve(ctx context.Context, identity, token string) (Selection, bool, error) {
	key, ok := ChoiceKey(token)
	if !ok {
		return Selection{}, false, nil
	}

	res, err := resolveScript.Run(ctx, s.client, []string{s.key(identity)}, key).StringSlice()
	if errors.Is(err, redis.Nil) {
		return Selection{}, false, nil
	}
	if err != nil {
		return Selection{}, false, fmt.Errorf("redis resolve: %w", err)
	}
	if len(res) != 2 {
		return Selection{}, false, fmt.Errorf("redis resolve: unexpected reply of %d items", len(res))
	}

	var record internal.CatalogRecord
	if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
		return Selection{}, false, fmt.Errorf("redis resolve: %w", err)
	}
	return Selection{Plan: internal.FinancingPlan(res[0]), Record: record}, true, nil
}

func (s *RedisStore) Clear(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
