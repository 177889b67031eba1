package swarm

import (
	"sync"
	"time"
)

// AIMD adapts the effective concurrency limit to provider feedback: halve on
// throttling, creep back up while latency stays healthy. CloudTrail's
// LookupEvents quota is the constraint this exists for.
type AIMD struct {
	mu         sync.Mutex
	limit      int
	minLimit   int
	maxLimit   int
	lastChange time.Time
}

func NewAIMD(start, min, max int) *AIMD {
	return &AIMD{
		limit:      start,
		minLimit:   min,
		maxLimit:   max,
		lastChange: time.Now(),
	}
}

func (a *AIMD) Limit() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limit
}

func (a *AIMD) Feedback(lat time.Duration, throttled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	// dampen oscillation
	if now.Sub(a.lastChange) < 100*time.Millisecond {
		return
	}

	if throttled {
		a.limit = a.limit / 2
		if a.limit < a.minLimit {
			a.limit = a.minLimit
		}
		a.lastChange = now
		return
	}

	if lat < 30*time.Second {
		a.limit++
		if a.limit > a.maxLimit {
			a.limit = a.maxLimit
		}
		a.lastChange = now
	}
}
