package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoVal_SucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), FetchRetryConfig(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesTransient(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, JitterFraction: 0}
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (struct{}, error) {
		calls++
		if calls < 3 {
			return struct{}{}, NewTransientError(eris.New("boom"), 503)
		}
		return struct{}{}, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_NoRetryOnPermanent(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), FetchRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("permanent: 404")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: 50 * time.Millisecond, JitterFraction: 0}
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("boom"), 500)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_PreservesValue(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, JitterFraction: 0}
	val, err := DoVal(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(eris.New("flaky"), 502)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 2, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, JitterFraction: 0}
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("still down"), 500)
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

// A per-attempt deadline expiring must not stop the retry loop: only the
// caller's own context does.
func TestDoVal_RetriesAfterPerAttemptDeadline(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, JitterFraction: 0}
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		attemptCtx, cancel := context.WithTimeout(ctx, time.Microsecond)
		defer cancel()
		<-attemptCtx.Done()
		return 0, NewTransientError(eris.Wrap(attemptCtx.Err(), "fetch"), 0)
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(eris.New("x"), 429)))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
	assert.True(t, IsTransient(eris.New("dial tcp: no such host")))
	assert.False(t, IsTransient(eris.New("invalid credentials")))
}

func TestIsTransient_WrappedChain(t *testing.T) {
	inner := NewTransientError(eris.New("rate limited"), 429)
	wrapped := eris.Wrap(inner, "crawler: fetch page")
	assert.True(t, IsTransient(wrapped))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}

func TestDoVal_RealHTTPTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 20 * time.Millisecond}
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, JitterFraction: 0}
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		_, err := client.Get(srv.URL)
		return 0, err
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls, "client timeout should be treated as transient and retried once")
}
