// Package politeness gates page fetches so no target domain is hammered
// regardless of how many candidates share it. It combines a global in-flight
// ceiling, a per-domain in-flight ceiling, and a per-domain minimum
// inter-request delay.
package politeness

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults applied when a config value is zero or negative.
const (
	DefaultGlobalConcurrency    = 16
	DefaultPerDomainConcurrency = 2
	DefaultPerDomainDelay       = 500 * time.Millisecond
)

// Limiter is the crawl concurrency gate. Acquire blocks until both a global
// and a per-domain slot are granted and the domain's pacing delay has
// elapsed. The returned release function must be called when the fetch
// completes, success or failure.
type Limiter struct {
	global chan struct{}

	perDomain int
	delay     time.Duration

	mu      sync.Mutex
	domains map[string]*domainGate
}

type domainGate struct {
	slots *rate.Limiter // pacing: min inter-request delay
	sem   chan struct{} // per-domain in-flight ceiling
}

// New creates a Limiter. Zero or negative values fall back to defaults.
func New(globalConcurrency, perDomainConcurrency int, perDomainDelay time.Duration) *Limiter {
	if globalConcurrency <= 0 {
		globalConcurrency = DefaultGlobalConcurrency
	}
	if perDomainConcurrency <= 0 {
		perDomainConcurrency = DefaultPerDomainConcurrency
	}
	if perDomainDelay <= 0 {
		perDomainDelay = DefaultPerDomainDelay
	}
	return &Limiter{
		global:    make(chan struct{}, globalConcurrency),
		perDomain: perDomainConcurrency,
		delay:     perDomainDelay,
		domains:   make(map[string]*domainGate),
	}
}

// Acquire blocks until a slot for the domain is granted or ctx is done.
// On success it returns a release function; the caller must invoke it
// exactly once after the fetch finishes.
func (l *Limiter) Acquire(ctx context.Context, domain string) (release func(), err error) {
	gate := l.gate(domain)

	// Global ceiling first: a stalled domain must not pin a global slot
	// while waiting for its own semaphore.
	select {
	case l.global <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case gate.sem <- struct{}{}:
	case <-ctx.Done():
		<-l.global
		return nil, ctx.Err()
	}

	// Per-domain pacing. Wait returns promptly on ctx cancellation.
	if err := gate.slots.Wait(ctx); err != nil {
		<-gate.sem
		<-l.global
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-gate.sem
			<-l.global
		})
	}, nil
}

// InFlight returns the current number of in-flight global slots. Intended
// for tests and observability.
func (l *Limiter) InFlight() int {
	return len(l.global)
}

// DomainInFlight returns the current in-flight count for one domain.
func (l *Limiter) DomainInFlight(domain string) int {
	l.mu.Lock()
	gate, ok := l.domains[domain]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	return len(gate.sem)
}

func (l *Limiter) gate(domain string) *domainGate {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.domains[domain]
	if !ok {
		g = &domainGate{
			slots: rate.NewLimiter(rate.Every(l.delay), 1),
			sem:   make(chan struct{}, l.perDomain),
		}
		l.domains[domain] = g
	}
	return g
}
