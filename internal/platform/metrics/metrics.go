package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	clientErrors    uint64
	totalDurationMs uint64

	mu          sync.Mutex
	transitions map[string]map[string]uint64
}

func New() *Collector {
	return &Collector{transitions: map[string]map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	} else if status >= 400 {
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordTransition counts one workflow action by outcome.
func (c *Collector) RecordTransition(action, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byOutcome, ok := c.transitions[action]
	if !ok {
		byOutcome = map[string]uint64{}
		c.transitions[action] = byOutcome
	}
	byOutcome[outcome]++
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	clientErrs := atomic.LoadUint64(&c.clientErrors)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	transitions := make(map[string]map[string]uint64, len(c.transitions))
	for action, byOutcome := range c.transitions {
		copied := make(map[string]uint64, len(byOutcome))
		for outcome, n := range byOutcome {
			copied[outcome] = n
		}
		transitions[action] = copied
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":     total,
		"errorsTotal":       errs,
		"clientErrorsTotal": clientErrs,
		"avgDurationMs":     avg,
		"totalDurationMs":   totalMs,
		"transitions":       transitions,
	}
}
