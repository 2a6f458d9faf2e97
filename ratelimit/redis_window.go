package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "initiatives:ratelimit"

// slidingWindowScript trims the sorted set to the window, then either records
// ARGV[4] members and returns {1, 0} or returns {0, wait_ms}.
var slidingWindowScript = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local n = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count + n <= limit then
	for i = 1, n do
		redis.call('ZADD', key, now, member .. ':' .. i)
	end
	redis.call('PEXPIRE', key, window)
	return {1, 0}
end

local idx = count + n - limit - 1
local blocking = redis.call('ZRANGE', key, idx, idx, 'WITHSCORES')
local wait = window
if blocking[2] then
	wait = tonumber(blocking[2]) + window - now
end
if wait < 1 then
	wait = 1
end
return {0, wait}
`)

// RedisSlidingWindow shares one throughput window across worker processes.
type RedisSlidingWindow struct {
	Client goredis.Scripter
	Key    Key
	Prefix string
	Limit  int
	Window time.Duration
	Now    func() time.Time
	Sleep  func(ctx context.Context, delay time.Duration) error
}

func NewRedisSlidingWindow(client goredis.Scripter, key Key, limit int, window time.Duration) (*RedisSlidingWindow, error) {
	if client == nil {
		return nil, fmt.Errorf("ratelimit: redis client is required")
	}
	key = NormalizeKey(key)
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("ratelimit: window requires a positive limit and duration")
	}
	return &RedisSlidingWindow{
		Client: client,
		Key:    key,
		Prefix: defaultRedisKeyPrefix,
		Limit:  limit,
		Window: window,
		Now:    func() time.Time { return time.Now().UTC() },
		Sleep:  sleepContext,
	}, nil
}

func (w *RedisSlidingWindow) Wait(ctx context.Context, n int) error {
	if w == nil || n <= 0 {
		return nil
	}
	if n > w.Limit {
		n = w.Limit
	}
	member := uuid.NewString()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := time.Now().UTC()
		if w.Now != nil {
			now = w.Now().UTC()
		}
		raw, err := slidingWindowScript.Run(ctx, w.Client, []string{w.redisKey()},
			now.UnixMilli(),
			w.Window.Milliseconds(),
			w.Limit,
			n,
			member,
		).Result()
		if err != nil {
			return fmt.Errorf("ratelimit: redis window: %w", err)
		}
		allowed, delay, err := parseWindowResult(raw)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		sleep := w.Sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (w *RedisSlidingWindow) redisKey() string {
	prefix := strings.TrimSpace(w.Prefix)
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return prefix + ":" + w.Key.Provider + ":" + w.Key.Bucket
}

func parseWindowResult(raw any) (bool, time.Duration, error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("ratelimit: unexpected redis window result %T", raw)
	}
	allowed, err := toInt64(values[0])
	if err != nil {
		return false, 0, err
	}
	waitMS, err := toInt64(values[1])
	if err != nil {
		return false, 0, err
	}
	if allowed == 1 {
		return true, 0, nil
	}
	if waitMS < 1 {
		waitMS = 1
	}
	return false, time.Duration(waitMS) * time.Millisecond, nil
}

func toInt64(value any) (int64, error) {
	switch typed := value.(type) {
	case int64:
		return typed, nil
	case string:
		parsed, err := strconv.ParseInt(typed, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("ratelimit: parse redis value: %w", err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("ratelimit: unexpected redis value %T", value)
	}
}
