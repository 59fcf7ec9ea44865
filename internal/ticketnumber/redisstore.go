package ticketnumber

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL keeps a day's key alive past midnight in any timezone.
const counterTTL = 48 * time.Hour

// RedisStore increments a per-day key with INCR. The seed is applied with
// SETNX so only the first writer of the day sets it.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a store using keys "<keyPrefix>ticketnumber:<scope>".
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(scope string) string {
	return s.keyPrefix + "ticketnumber:" + scope
}

// Next implements CounterStore.
func (s *RedisStore) Next(ctx context.Context, scope string, seed int64) (int64, error) {
	key := s.key(scope)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if seed > 0 {
			pipe.SetNX(ctx, key, seed, counterTTL)
		}
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, counterTTL)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
