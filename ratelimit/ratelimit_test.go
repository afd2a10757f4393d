package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunleeweirong/video-downloader/errs"
)

func TestAllowBurstThenDeny(t *testing.T) {
	l := New(Config{RPS: 0.001, Burst: 3})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("10.0.0.1"), "request past burst")
}

func TestAllowKeysIndependent(t *testing.T) {
	l := New(Config{RPS: 0.001, Burst: 1})
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	// A different client still has a full bucket.
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestAllowRefills(t *testing.T) {
	l := New(Config{RPS: 50, Burst: 1})
	defer l.Stop()

	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))
	time.Sleep(40 * time.Millisecond)
	assert.True(t, l.Allow("10.0.0.1"), "bucket should refill at 50 rps")
}

func TestSweepEvictsIdleKeys(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1, TTL: 10 * time.Millisecond})
	defer l.Stop()

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	l.sweep(time.Now().Add(time.Second))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.visitors)
}

func TestAllowConcurrent(t *testing.T) {
	l := New(Config{RPS: 1000, Burst: 1000})
	defer l.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.Allow("10.0.0.1")
				l.Allow("10.0.0.2")
			}
		}()
	}
	wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.visitors, 2)
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	l := New(Config{RPS: 0.001, Burst: 2})
	defer l.Stop()

	handler := l.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	do := func() error {
		req := httptest.NewRequest(http.MethodGet, "/api/medias", nil)
		req.RemoteAddr = "10.0.0.1:54321"
		rec := httptest.NewRecorder()
		return handler(e.NewContext(req, rec))
	}

	require.NoError(t, do())
	require.NoError(t, do())

	err := do()
	re, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
	assert.Equal(t, "Too many requests, please try again later", re.Message)
}
