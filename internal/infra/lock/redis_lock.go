package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseLost is the cancellation cause of a held context whose lease
// expired or was taken over.
var ErrLeaseLost = errors.New("lead lease lost")

// releaseScript deletes the lease only if we still own it.
// KEYS[1] = lease key, ARGV[1] = owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lease only if we still own it.
// KEYS[1] = lease key, ARGV[1] = owner token, ARGV[2] = ttl in milliseconds
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker extends KeyedMutex across processes with a Redis lease. The
// lease is refreshed while held, so a crashed holder frees the key after ttl.
type RedisLocker struct {
	client redis.UniversalClient
	local  *KeyedMutex
	ttl    time.Duration
	poll   time.Duration
	prefix string
	log    *slog.Logger
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, log *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisLocker{
		client: client,
		local:  NewKeyedMutex(),
		ttl:    ttl,
		poll:   50 * time.Millisecond,
		prefix: "leadsync:lock:",
		log:    log,
	}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Acquire holds the local slot and the Redis lease. The returned context is
// cancelled with ErrLeaseLost when a refresh fails or finds another owner.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (context.Context, func(), error) {
	_, releaseLocal, err := l.local.Acquire(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	leaseKey := l.prefix + key
	token := uuid.NewString()
	if err := l.obtain(ctx, leaseKey, token); err != nil {
		releaseLocal()
		return nil, nil, err
	}

	held, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(leaseKey, token, cancel, stop, done)

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel(nil)
			ctx, cancelRelease := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelRelease()
			if err := releaseScript.Run(ctx, l.client, []string{leaseKey}, token).Err(); err != nil {
				l.log.Warn("failed to release lead lease", "key", key, "error", err)
			}
			releaseLocal()
		})
	}, nil
}

func (l *RedisLocker) obtain(ctx context.Context, leaseKey, token string) error {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, leaseKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis lease failed: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) keepAlive(leaseKey, token string, lost context.CancelCauseFunc, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := refreshScript.Run(ctx, l.client, []string{leaseKey}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil || n == 0 {
				l.log.Error("lost lead lease", "key", leaseKey, "error", err)
				lost(ErrLeaseLost)
				return
			}
		}
	}
}
