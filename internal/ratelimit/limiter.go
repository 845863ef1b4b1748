// Package ratelimit enforces a per-client requests-per-minute ceiling over a
// sliding 60 second log. State is per process.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	Window     = time.Minute
	DefaultRPM = 120
)

type Limiter struct {
	rpm int
	now func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

func New(rpm int) *Limiter {
	if rpm <= 0 {
		rpm = DefaultRPM
	}
	return &Limiter{rpm: rpm, now: time.Now, windows: make(map[string][]time.Time)}
}

// SetClock is for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

func (l *Limiter) RPM() int { return l.rpm }

func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Decide(key)
	return ok
}

// Decide prunes the client's log, then admits and records the request when
// fewer than rpm remain. Rejected requests are not recorded; retryAfter is the
// time until the oldest entry leaves the window.
func (l *Limiter) Decide(key string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := prune(l.windows[key], now)
	if len(w) >= l.rpm {
		l.windows[key] = w
		return false, w[0].Add(Window).Sub(now)
	}
	l.windows[key] = append(w, now)
	return true, 0
}

// prune drops timestamps older than the window, reusing the backing array.
func prune(w []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(w) && w[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return w
	}
	n := copy(w, w[i:])
	return w[:n]
}

// Cleanup removes windows with no timestamps inside the last minute.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, w := range l.windows {
		if w = prune(w, now); len(w) == 0 {
			delete(l.windows, k)
		} else {
			l.windows[k] = w
		}
	}
}

func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartJanitor runs Cleanup every interval until ctx is cancelled.
func (l *Limiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}
