package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// slidingWindowScript trims, counts and conditionally records a hit in one
// atomic step. Scores are unix milliseconds.
var slidingWindowScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max    = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= max then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// SlidingWindowLimiter is a sliding-window limiter shared by every replica.
// Key format: ratelimit:<key>, a sorted set of hit timestamps that expires
// one window after the last admitted hit.
type SlidingWindowLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	now    func() time.Time
	// instance keeps members from different replicas apart.
	instance string
	seq      atomic.Uint64
}

// NewSlidingWindowLimiter creates a limiter admitting max hits per window.
func NewSlidingWindowLimiter(client *redis.Client, max int, window time.Duration) (*SlidingWindowLimiter, error) {
	if max <= 0 || window < time.Millisecond {
		return nil, errors.New("redis ratelimit: max and window must be positive")
	}
	var id [8]byte
	if _, err := rand.Read(id[:]); err != nil {
		return nil, fmt.Errorf("redis ratelimit: instance id: %w", err)
	}
	return &SlidingWindowLimiter{
		client:   client,
		max:      max,
		window:   window,
		now:      time.Now,
		instance: hex.EncodeToString(id[:]),
	}, nil
}

// Allow reports whether key may proceed, recording the hit when it does.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + l.instance + "-" + strconv.FormatUint(l.seq.Add(1), 10)

	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{rateLimitPrefix + key},
		now, l.window.Milliseconds(), l.max, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return res == 1, nil
}
