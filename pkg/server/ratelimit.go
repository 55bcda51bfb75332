package server

import (
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

// rateLimiter keeps a sliding window of request times per client. Idle clients
// expire from the cache after one window.
type rateLimiter struct {
	requests *otter.Cache[string, []time.Time]
	now      func() time.Time
	window   time.Duration
	limit    int
	mu       sync.Mutex
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		requests: otter.Must(&otter.Options[string, []time.Time]{
			MaximumSize:      10_000,
			ExpiryCalculator: otter.ExpiryWriting[string, []time.Time](window),
		}),
		now:    time.Now,
		window: window,
		limit:  limit,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	previous, _ := rl.requests.GetIfPresent(ip)
	valid := make([]time.Time, 0, len(previous)+1)
	for _, t := range previous {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests.Set(ip, valid)
		return false
	}

	rl.requests.Set(ip, append(valid, now))
	return true
}
