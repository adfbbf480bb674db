package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisclient "github.com/keyward/keyward-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

// Lock serializes cron cycles across instances.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

const lockName = "cron"

// RedisLock implements Lock with SETNX plus an owner token so only the
// acquiring instance can release.
type RedisLock struct {
	client *redisclient.Client
	ttl    time.Duration
	owner  string
}

// NewRedisLock builds a redis-backed cron lock.
func NewRedisLock(client *redisclient.Client, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	return &RedisLock{
		client: client,
		ttl:    ttl,
		owner:  uuid.NewString(),
	}, nil
}

// Acquire attempts to take the lock. Returns false when another instance
// holds it.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.client.LockKey(lockName), l.owner, l.ttl)
}

// Release frees the lock, but only if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	key := l.client.LockKey(lockName)
	current, err := l.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil
		}
		return err
	}
	if current != l.owner {
		return nil
	}
	return l.client.Del(ctx, key)
}
