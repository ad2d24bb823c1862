// Package ratelimit provides an in-process sliding-window rate limiter.
//
// Each limiter instance owns its key → timestamps store; there is no package
// level state. Stale keys are evicted by Sweep (run periodically by Run) and
// the number of tracked keys is bounded by MaxKeys.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	defaultMaxKeys       = 100_000
	defaultSweepInterval = time.Minute
)

// Config parameterises a SlidingWindow.
type Config struct {
	MaxRequests int
	Window      time.Duration
	// MaxKeys bounds memory. When a new key arrives and the store is full,
	// stale keys are swept and, if still full, the least recently used key
	// is dropped.
	MaxKeys int
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

type entry struct {
	hits     []time.Time // ascending
	lastSeen time.Time
}

// SlidingWindow admits at most MaxRequests per key within any trailing
// Window. All access is serialized by a single mutex.
type SlidingWindow struct {
	max     int
	window  time.Duration
	maxKeys int
	now     func() time.Time

	mu   sync.Mutex
	keys map[string]*entry
}

func NewSlidingWindow(cfg Config) (*SlidingWindow, error) {
	if cfg.MaxRequests <= 0 {
		return nil, errors.New("ratelimit: MaxRequests must be positive")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("ratelimit: Window must be positive")
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SlidingWindow{
		max:     cfg.MaxRequests,
		window:  cfg.Window,
		maxKeys: cfg.MaxKeys,
		now:     cfg.Now,
		keys:    make(map[string]*entry),
	}, nil
}

// Allow records a hit for key when it fits in the window. A declined call is
// not recorded. The error is always nil; it exists to satisfy
// ports.RateLimiter.
func (l *SlidingWindow) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.keys[key]
	if !ok {
		if len(l.keys) >= l.maxKeys {
			l.sweepLocked(now)
			if len(l.keys) >= l.maxKeys {
				l.evictOldestLocked()
			}
		}
		e = &entry{}
		l.keys[key] = e
	}
	e.lastSeen = now

	e.hits = trim(e.hits, now.Add(-l.window))
	if len(e.hits) >= l.max {
		return false, nil
	}
	e.hits = append(e.hits, now)
	return true, nil
}

// Sweep drops every key whose hits have all left the window and reports how
// many were removed.
func (l *SlidingWindow) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(now)
}

// Len reports the number of tracked keys.
func (l *SlidingWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// Run sweeps every interval until ctx is cancelled.
func (l *SlidingWindow) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *SlidingWindow) sweepLocked(now time.Time) int {
	cutoff := now.Add(-l.window)
	removed := 0
	for key, e := range l.keys {
		e.hits = trim(e.hits, cutoff)
		if len(e.hits) == 0 {
			delete(l.keys, key)
			removed++
		}
	}
	return removed
}

func (l *SlidingWindow) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, e := range l.keys {
		if !found || e.lastSeen.Before(oldest) {
			oldestKey, oldest, found = key, e.lastSeen, true
		}
	}
	if found {
		delete(l.keys, oldestKey)
	}
}

// trim discards hits at or before cutoff, reusing the backing array.
func trim(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
