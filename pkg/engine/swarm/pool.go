// Package swarm bounds the per-region fan-out. Downstream audit APIs are
// heavily rate limited, so the pool carries a hard caller-configured ceiling
// and an AIMD governor that squeezes below it while requests are throttled.
package swarm

import (
	"context"
	"sync"
	"time"
)

// DefaultLimit is a sensible region fan-out for accounts talking to
// rate-limited audit APIs.
const DefaultLimit = 8

// Task is one unit of regional work. The returned error is only used as
// throttle feedback; containment of failures is the task's own business.
type Task func(ctx context.Context) error

// Pool runs tasks under a fixed upper bound. Wait blocks until every
// submitted task has finished, which is what lets the caller guarantee no
// commit is outstanding before finalization.
type Pool struct {
	aimd      *AIMD
	throttled func(error) bool

	mu     sync.Mutex
	cond   *sync.Cond
	active int
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given ceiling. throttled classifies task
// errors for AIMD feedback; nil disables the feedback loop's downward path.
func NewPool(limit int, throttled func(error) bool) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	p := &Pool{
		aimd:      NewAIMD(limit, 1, limit),
		throttled: throttled,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Go submits a task. Tasks parked on a full pool abandon cooperatively when
// the context is cancelled.
func (p *Pool) Go(ctx context.Context, task Task) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if !p.acquire(ctx) {
			return
		}
		defer p.release()

		start := time.Now()
		err := task(ctx)

		isThrottle := false
		if err != nil && p.throttled != nil {
			isThrottle = p.throttled(err)
		}
		p.aimd.Feedback(time.Since(start), isThrottle)
	}()
}

// Wait blocks until all submitted tasks have completed or abandoned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) acquire(ctx context.Context) bool {
	// Wake parked waiters when the context dies.
	stop := context.AfterFunc(ctx, func() {
		p.cond.Broadcast()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.active >= p.aimd.Limit() {
		if ctx.Err() != nil {
			return false
		}
		p.cond.Wait()
	}
	if ctx.Err() != nil {
		return false
	}
	p.active++
	return true
}

func (p *Pool) release() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Active returns the number of tasks currently holding a slot.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
