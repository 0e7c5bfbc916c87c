package politeness

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestAcquireRelease(t *testing.T) {
	l := New(4, 2, time.Millisecond)

	release, err := l.Acquire(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, l.InFlight())
	assert.Equal(t, 1, l.DomainInFlight("example.com"))

	release()
	assert.Equal(t, 0, l.InFlight())
	assert.Equal(t, 0, l.DomainInFlight("example.com"))

	// Double release is a no-op.
	release()
	assert.Equal(t, 0, l.InFlight())
}

func TestPerDomainCeilingUnderStress(t *testing.T) {
	const (
		requests = 50
		limit    = 2
	)
	l := New(64, limit, time.Millisecond)

	var inFlight, peak atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())

	for i := 0; i < requests; i++ {
		g.Go(func() error {
			release, err := l.Acquire(ctx, "stress.example")
			if err != nil {
				return err
			}
			defer release()

			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, peak.Load(), int64(limit),
		"per-domain in-flight count must never exceed the configured ceiling")
}

func TestGlobalCeiling(t *testing.T) {
	l := New(3, 3, time.Millisecond)

	var inFlight, peak atomic.Int64
	var wg sync.WaitGroup
	domains := []string{"a.example", "b.example", "c.example", "d.example"}

	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(domain string) {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), domain)
			if err != nil {
				return
			}
			defer release()

			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
		}(domains[i%len(domains)])
	}

	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	l := New(1, 1, time.Millisecond)

	release, err := l.Acquire(context.Background(), "busy.example")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "busy.example")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Equal(t, 0, l.InFlight(), "cancelled waiter must not leak a slot")
}

func TestPerDomainDelayPacesRequests(t *testing.T) {
	const delay = 40 * time.Millisecond
	l := New(8, 8, delay)

	start := time.Now()
	for i := 0; i < 3; i++ {
		release, err := l.Acquire(context.Background(), "paced.example")
		require.NoError(t, err)
		release()
	}
	elapsed := time.Since(start)

	// First request is immediate; the next two wait one delay each.
	assert.GreaterOrEqual(t, elapsed, 2*delay-5*time.Millisecond)
}

func TestIndependentDomainsDoNotBlockEachOther(t *testing.T) {
	l := New(8, 1, 200*time.Millisecond)

	// Saturate one domain.
	releaseA, err := l.Acquire(context.Background(), "slow.example")
	require.NoError(t, err)
	defer releaseA()

	// A different domain acquires promptly.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	releaseB, err := l.Acquire(ctx, "fast.example")
	require.NoError(t, err)
	releaseB()
}
