package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobLocker keeps two pollers from watching the same job at once.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// MemoryLocker is a process-local JobLocker.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time), clock: time.Now}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
	return nil
}

// RedisLocker shares poll locks across instances.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "tour-video:poll:"}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, "1", ttl).Result()
}

func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}
