package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Guard admits at most one run per user. Acquire returns ErrBusy when a run
// is already active; the release func must be called exactly once.
type Guard interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// LocalGuard serializes runs within one process.
type LocalGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{active: make(map[string]struct{})}
}

func (g *LocalGuard) Acquire(_ context.Context, userID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[userID]; ok {
		return nil, ErrBusy
	}
	g.active[userID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, userID)
			g.mu.Unlock()
		})
	}, nil
}

// RedisGuard serializes runs across instances sharing a Redis. The lock TTL
// must exceed the longest run (progress sequence plus every retry wait).
type RedisGuard struct {
	locker *redislock.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisGuard {
	if prefix == "" {
		prefix = "finpulse"
	}
	return &RedisGuard{locker: redislock.New(rdb), prefix: prefix, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, userID string) (func(), error) {
	key := fmt.Sprintf("%s:lock:assessment:%s", g.prefix, userID)
	lock, err := g.locker.Obtain(ctx, key, g.ttl, &redislock.Options{RetryStrategy: redislock.NoRetry()})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain assessment lock: %w", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the run's ctx may already be done; release on a fresh one
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lock.Release(rctx)
		})
	}, nil
}
