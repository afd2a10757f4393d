// Package ratelimit throttles requests per client IP.
package ratelimit

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/shaunleeweirong/video-downloader/errs"
	"github.com/shaunleeweirong/video-downloader/internal/logger"
)

const sweepInterval = time.Minute

var log = logger.Get(logger.ComponentRateLimit)

// Config tunes the per-key token bucket.
type Config struct {
	// RPS is the sustained refill rate per key.
	RPS float64
	// Burst is the bucket size per key.
	Burst int
	// TTL evicts keys idle for this long. Zero keeps entries forever.
	TTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out a token bucket per key and sweeps idle ones.
type Limiter struct {
	cfg Config

	mu       sync.Mutex
	visitors map[string]*visitor

	stop chan struct{}
	once sync.Once
}

// New builds a Limiter and starts its sweep loop when a TTL is set.
func New(cfg Config) *Limiter {
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	l := &Limiter{
		cfg:      cfg,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	if cfg.TTL > 0 {
		go l.sweepLoop()
	}
	return l
}

// Allow reports whether key may proceed right now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()
	return v.limiter.Allow()
}

// Stop ends the sweep loop. Safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now())
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.TTL {
			delete(l.visitors, key)
		}
	}
}

// Middleware rejects over-limit requests with the 429 error contract.
// The client IP is the key, so one hot client cannot starve the rest.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !l.Allow(ip) {
				log.Warn("rate limit exceeded for %s on %s", ip, c.Path())
				return errs.RateLimited()
			}
			return next(c)
		}
	}
}
