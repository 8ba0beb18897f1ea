package repositories

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisSequencePrefix = "intake:seq:"

// RedisSequences reserves id blocks with INCRBY, which is atomic across
// every process sharing the redis instance.
type RedisSequences struct {
	client redis.Cmdable
}

func NewRedisSequences(client redis.Cmdable) *RedisSequences {
	return &RedisSequences{client: client}
}

func (repo *RedisSequences) Reserve(ctx context.Context, name string, count int) (int64, error) {
	if count <= 0 {
		return 0, fmt.Errorf("reserve count must be positive, got %d", count)
	}

	last, err := repo.client.IncrBy(ctx, redisSequencePrefix+name, int64(count)).Result()
	if err != nil {
		return 0, errors.Wrapf(ErrSequenceUnavailable, "sequence %s: %v", name, err)
	}

	return last - int64(count) + 1, nil
}

// SeedFrom makes sure the redis counter is not behind value, e.g. when
// switching an existing database-backed deployment over to redis.
func (repo *RedisSequences) SeedFrom(ctx context.Context, name string, value int64) error {
	key := redisSequencePrefix + name
	current, err := repo.client.Get(ctx, key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if current >= value {
		return nil
	}
	return repo.client.IncrBy(ctx, key, value-current).Err()
}
