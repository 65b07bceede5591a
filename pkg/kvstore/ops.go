package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WindowState is a snapshot of one identifier's sliding window after an
// operation: how many entries are live and when the oldest one was
// recorded. OldestAt is zero when the window is empty.
type WindowState struct {
	Count    int64
	OldestAt time.Time
}

// windowConsumeScript atomically prunes expired entries, checks the
// limit, and records the requested units. Scores and arguments are unix
// milliseconds. Returns {allowed, count, oldestScore} where count and
// oldestScore reflect the state after the operation.
var windowConsumeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local units = tonumber(ARGV[4])
local nonce = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)

local allowed = 0
if count + units <= limit then
  allowed = 1
  for i = 1, units do
    redis.call('ZADD', key, now, nonce .. ':' .. i)
  end
  redis.call('PEXPIRE', key, window)
  count = count + units
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = 0
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end

return {allowed, count, oldestScore}
`)

// WindowConsume atomically attempts to record units new entries in the
// sliding window at key, subject to limit over the trailing window.
// Returns whether the units were admitted and the resulting window
// state. When not admitted the window is left unchanged.
func (s *Store) WindowConsume(ctx context.Context, key string, window time.Duration, limit, units int64, now time.Time) (bool, WindowState, error) {
	client := s.Client()
	if client == nil {
		return false, WindowState{}, ErrNotConfigured
	}

	res, err := windowConsumeScript.Run(ctx, client,
		[]string{key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		units,
		uuid.NewString(),
	).Slice()
	if err != nil {
		return false, WindowState{}, fmt.Errorf("window consume for %q: %w", key, err)
	}
	if len(res) != 3 {
		return false, WindowState{}, fmt.Errorf("window consume for %q: unexpected reply length %d", key, len(res))
	}

	allowed, ok1 := res[0].(int64)
	count, ok2 := res[1].(int64)
	oldest, ok3 := res[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return false, WindowState{}, fmt.Errorf("window consume for %q: unexpected reply types", key)
	}

	return allowed == 1, windowState(count, oldest), nil
}

// WindowPeek returns the current window state without recording
// anything. Expired entries are excluded from the count but not
// physically removed; the consume script prunes them on its next run.
func (s *Store) WindowPeek(ctx context.Context, key string, window time.Duration, now time.Time) (WindowState, error) {
	client := s.Client()
	if client == nil {
		return WindowState{}, ErrNotConfigured
	}

	min := fmt.Sprintf("%d", now.Add(-window).UnixMilli())

	count, err := client.ZCount(ctx, key, min, "+inf").Result()
	if err != nil {
		return WindowState{}, fmt.Errorf("window peek for %q: %w", key, err)
	}

	entries, err := client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   min,
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return WindowState{}, fmt.Errorf("window peek for %q: %w", key, err)
	}

	var oldest int64
	if len(entries) > 0 {
		oldest = int64(entries[0].Score)
	}

	return windowState(count, oldest), nil
}

// GetString reads the value at key. The second return value is false on
// a clean miss.
func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	client := s.Client()
	if client == nil {
		return "", false, ErrNotConfigured
	}

	val, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}

	return val, true, nil
}

// SetString writes value at key with the given time-to-live.
func (s *Store) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	client := s.Client()
	if client == nil {
		return ErrNotConfigured
	}

	if err := client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity to the store. Returns ErrNotConfigured in
// degraded mode.
func (s *Store) Ping(ctx context.Context) error {
	client := s.Client()
	if client == nil {
		return ErrNotConfigured
	}
	return client.Ping(ctx).Err()
}

func windowState(count, oldestMilli int64) WindowState {
	state := WindowState{Count: count}
	if oldestMilli > 0 {
		state.OldestAt = time.UnixMilli(oldestMilli)
	}
	return state
}
