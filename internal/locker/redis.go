package locker

import (
	"context"
	"fmt"
	"time"

	"auction-market/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token, so an
// expired lock taken over by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions tunes the distributed lock.
type RedisOptions struct {
	Prefix string
	TTL    time.Duration // lease length; bounds how long a crashed holder blocks others
	Wait   time.Duration // how long Lock polls before giving up
	Poll   time.Duration
}

// Redis is a Locker shared by every instance pointing at the same Redis.
type Redis struct {
	client redis.UniversalClient
	opts   RedisOptions
}

var _ Locker = (*Redis)(nil)

// NewRedis creates a Redis-backed locker.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "market:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 2 * time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = 5 * time.Millisecond
	}
	return &Redis{client: client, opts: opts}
}

// Lock polls SET NX PX until it owns key, ctx is done or the wait elapses.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.opts.Prefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.Wait)
	defer cancel()

	ticker := time.NewTicker(r.opts.Poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(waitCtx, redisKey, token, r.opts.TTL).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("locker: acquire %s: %w", key, err)
		}
		if ok {
			return func() { r.unlock(redisKey, token) }, nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("locker: acquire %s: %w", key, ErrLockTimeout)
		}
	}
}

func (r *Redis) unlock(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
		utils.Warn("Failed to release lock", map[string]any{"key": redisKey, "error": err.Error()})
	}
}
