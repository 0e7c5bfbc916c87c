package resilience

import (
	"sync"
)

// FailureBreaker cuts off an operation target after a run of consecutive
// failures. Unlike a full circuit breaker there is no half-open recovery:
// the breaker is scoped to a single site crawl, where a dead site stays
// dead for the remainder of that crawl.
type FailureBreaker struct {
	threshold int

	mu       sync.Mutex
	failures int
	tripped  bool
}

// NewFailureBreaker creates a breaker that trips after threshold consecutive
// failures. A threshold <= 0 disables tripping.
func NewFailureBreaker(threshold int) *FailureBreaker {
	return &FailureBreaker{threshold: threshold}
}

// Allow reports whether the next operation may proceed.
func (b *FailureBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.tripped
}

// Record feeds an operation outcome into the breaker. A success resets the
// consecutive-failure count.
func (b *FailureBreaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.threshold > 0 && b.failures >= b.threshold {
		b.tripped = true
	}
}
