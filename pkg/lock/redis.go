package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisAPI is the subset of redis.Client used by RedisLocker.
type RedisAPI interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker keeps the lock as a key written with SET NX PX.
type RedisLocker struct {
	client RedisAPI
	key    string
	ttl    time.Duration
}

// NewRedisClient creates a client and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     2,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisLocker creates a lock named name that expires after ttl.
func NewRedisLocker(client RedisAPI, name string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: fmt.Sprintf("lock:%s", name), ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, token string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
