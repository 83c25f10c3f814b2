package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/staffdesk/emis/internal/httperr"
	"github.com/staffdesk/emis/internal/logging"
)

type window struct {
	count int
	start time.Time
}

// Limiter keeps a per-client-address request counter inside a fixed window.
// State is in-process and resets on restart; this is a defense-in-depth
// control, not a security boundary.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	Window time.Duration
	Max    int

	// SlowDownAfter > 0 enables the soft band: requests past it are delayed
	// by SlowDownStep per excess request, capped at MaxDelay, before the
	// hard cap rejects.
	SlowDownAfter int
	SlowDownStep  time.Duration
	MaxDelay      time.Duration

	// Now and Sleep are overridable in tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

func New(windowDur time.Duration, max int) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		Window:  windowDur,
		Max:     max,
		Now:     time.Now,
		Sleep:   time.Sleep,
	}
}

const sweepThreshold = 10000

// take increments the counter for addr and reports the new count plus the
// seconds remaining in the window.
func (l *Limiter) take(addr string) (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	if len(l.windows) > sweepThreshold {
		for k, w := range l.windows {
			if now.Sub(w.start) > l.Window {
				delete(l.windows, k)
			}
		}
	}

	w, ok := l.windows[addr]
	if !ok || now.Sub(w.start) > l.Window {
		w = &window{start: now}
		l.windows[addr] = w
	}
	w.count++
	retryAfter := int(l.Window.Seconds() - now.Sub(w.start).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	return w.count, retryAfter
}

// Count reports the current counter for addr without incrementing it.
func (l *Limiter) Count(addr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[addr]
	if !ok || l.Now().Sub(w.start) > l.Window {
		return 0
	}
	return w.count
}

// Fail charges one unit against addr. The auth limiter counts failed
// credential checks only, so the login handler calls this after the check
// comes back negative instead of the gate counting every attempt.
func (l *Limiter) Fail(addr string) {
	l.take(addr)
}

// Middleware is the general gate: every request is counted, the soft band
// delays, the hard cap rejects with a retry hint.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			count, retryAfter := l.take(c.RealIP())
			if count > l.Max {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				logging.FromContext(c.Request().Context()).Warn("rate_limited",
					"status", 429, "remote_ip", c.RealIP())
				return httperr.WithCode(http.StatusTooManyRequests,
					"Too many requests, please try again later", "RATE_LIMITED")
			}
			if l.SlowDownAfter > 0 && count > l.SlowDownAfter {
				delay := time.Duration(count-l.SlowDownAfter) * l.SlowDownStep
				if l.MaxDelay > 0 && delay > l.MaxDelay {
					delay = l.MaxDelay
				}
				l.Sleep(delay)
			}
			return next(c)
		}
	}
}

// Gate rejects once the failure budget for the client address is spent.
// It never increments; failures are charged via Fail.
func (l *Limiter) Gate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.Count(c.RealIP()) >= l.Max {
				logging.FromContext(c.Request().Context()).Warn("auth_rate_limited",
					"status", 429, "remote_ip", c.RealIP())
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(l.Window.Seconds())))
				return httperr.WithCode(http.StatusTooManyRequests,
					"Too many authentication attempts, please try again later", "RATE_LIMITED")
			}
			return next(c)
		}
	}
}
