package calsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSyncBusy means another run currently holds the sync lock.
var ErrSyncBusy = errors.New("sync already in progress")

// Locker serializes sync runs. The engine is not reentrant; every entry
// point must hold the lock for the whole run.
type Locker interface {
	// Acquire returns a release func, or ErrSyncBusy when the lock is held.
	Acquire(ctx context.Context) (func(), error)
}

// LocalLocker serializes runs within a single process.
type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) Acquire(_ context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrSyncBusy
	}
	return l.mu.Unlock, nil
}

// RedisLocker serializes runs across replicas with SET NX and a holder
// token, so a crashed run's lock expires instead of wedging sync forever.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = "ballers:sync:lock"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

// releaseScript deletes the lock only when the caller still holds it.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return nil, ErrSyncBusy
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.client.Eval(ctx, releaseScript, []string{l.key}, token)
	}
	return release, nil
}
