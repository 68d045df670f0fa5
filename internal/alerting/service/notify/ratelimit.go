package notify

import (
	"sync"
	"time"

	"github.com/vigilops/vigil/internal/alerting/model"
)

// RateLimiter bounds notification volume per (channel, severity) pair with a
// sliding window of attempt timestamps. Safe for concurrent use by parallel
// dispatch goroutines.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string][]time.Time)}
}

// Admit evicts entries older than the policy window, then reports whether
// another send fits under the cap. The attempt timestamp is recorded on
// admission — before the transport call — so a slow-to-fail channel still
// consumes quota.
func (l *RateLimiter) Admit(channelID string, severity model.Severity, policy *model.RateLimitPolicy, now time.Time) bool {
	if policy == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := channelID + ":" + string(severity)
	cutoff := now.Add(-policy.Window())

	win := l.windows[key]
	idx := 0
	for idx < len(win) && win[idx].Before(cutoff) {
		idx++
	}
	win = win[idx:]

	if len(win) >= policy.Limit() {
		l.windows[key] = win
		return false
	}
	l.windows[key] = append(win, now)
	return true
}
