package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// FixedWindow 基于 Redis 的固定窗口计数器，多实例共享配额；Redis 异常时拒绝（fail closed）
type FixedWindow struct {
	RDB    *redis.Client
	Prefix string
	Limit  int
	Window time.Duration
}

func NewClient(addr, pass string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

func NewFixedWindow(rdb *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindow, error) {
	if rdb == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("ratelimit: limit and window must be positive")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "soil:ratelimit"
	}
	return &FixedWindow{RDB: rdb, Prefix: prefix, Limit: limit, Window: window}, nil
}

func (f *FixedWindow) Allow(ctx context.Context, key string) bool {
	if strings.TrimSpace(key) == "" {
		key = "unknown"
	}
	windowMs := f.Window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	k := fmt.Sprintf("%s:%s:%d", f.Prefix, key, slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := fixedWindowScript.Run(ctx, f.RDB, []string{k}, windowMs).Int64()
	if err != nil {
		return false
	}
	return n <= int64(f.Limit)
}
