package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient connects to Redis and verifies connectivity
func NewClient(redisURL string, logger *zap.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return client, nil
}

// Locker implements ports.Locker with a Redis SET NX lock. The TTL bounds the
// hold time; release only deletes the key when it still holds this acquirer's
// token, so an expired lock taken over by another acquirer is never released
// from under them.
type Locker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewLocker creates a new Redis-backed named lock
func NewLocker(client *redis.Client, logger *zap.Logger) *Locker {
	return &Locker{client: client, logger: logger}
}

// checkAndDelete deletes the lock key only when it still holds the given
// token.
var checkAndDelete = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Acquire takes the named lock or fails immediately when it is already held.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := "lock:" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s is already held", name)
	}

	release := func() {
		// Release runs on exit paths where the request context may already
		// be cancelled; use a fresh deadline so the key is still cleaned up.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := checkAndDelete.Run(relCtx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			l.logger.Warn("Failed to release lock",
				zap.String("lock", name),
				zap.Error(err),
			)
		}
	}
	return release, nil
}
