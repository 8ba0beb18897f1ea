package services

import (
	"context"
	"github.com/bsm/redislock"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"time"
)

var ErrIdentityBusy = errors.New("another intake holds this identity")

const identityLockPrefix = "intake:identity:"

// RedisIdentityLocker serializes intakes of the same normalized identity
// across processes.
type RedisIdentityLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewRedisIdentityLocker(client *redislock.Client, ttl time.Duration) *RedisIdentityLocker {
	return &RedisIdentityLocker{client: client, ttl: ttl}
}

// Lock returns ErrIdentityBusy when the identity is locked elsewhere.
func (l *RedisIdentityLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, identityLockPrefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrIdentityBusy
	}
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeRedis).Errorf("failed to obtain identity lock: %v", err)
		return nil, errors.Wrap(err, "obtain identity lock")
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeRedis).Warnf("failed to release identity lock: %v", err)
		}
	}, nil
}
