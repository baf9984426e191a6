package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

// LockClient holds short-lived mutual-exclusion markers in Redis. A lock is
// a SET NX key with a TTL; release checks the holder token so an expired
// lock reacquired by someone else is never deleted by the old holder.
type LockClient struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewLockClient(log *logger.Logger, addr string) (*LockClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &LockClient{
		log:    log.With("client", "RedisLockClient"),
		rdb:    rdb,
		prefix: "gamescout:lock:",
	}, nil
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (c *LockClient) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if c == nil || c.rdb == nil {
		return "", false, fmt.Errorf("redis lock client not initialized")
	}
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, c.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (c *LockClient) Release(ctx context.Context, key, token string) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis lock client not initialized")
	}
	return releaseScript.Run(ctx, c.rdb, []string{c.prefix + key}, token).Err()
}

func (c *LockClient) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
