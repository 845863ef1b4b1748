package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimiter(rpm int) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := New(rpm)
	l.SetClock(clk.Now)
	return l, clk
}

func TestAllow_120thAdmitted121stRejected(t *testing.T) {
	l, clk := newLimiter(0)
	for i := 1; i <= 120; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d rejected", i)
		}
		clk.Advance(100 * time.Millisecond)
	}
	if l.Allow("1.2.3.4") {
		t.Fatalf("121st request admitted")
	}
}

func TestAllow_ResetsAfter61s(t *testing.T) {
	l, clk := newLimiter(120)
	for i := 0; i < 120; i++ {
		l.Allow("c")
	}
	if l.Allow("c") {
		t.Fatalf("expected rejection at limit")
	}
	clk.Advance(61 * time.Second)
	if !l.Allow("c") {
		t.Fatalf("expected admission after window reset")
	}
}

func TestAllow_RejectedNotRecorded(t *testing.T) {
	l, clk := newLimiter(2)
	l.Allow("c")
	clk.Advance(30 * time.Second)
	l.Allow("c")
	// hammer while full; none of these may extend the window
	for i := 0; i < 10; i++ {
		if l.Allow("c") {
			t.Fatalf("admitted while full")
		}
	}
	clk.Advance(30*time.Second + time.Millisecond)
	if !l.Allow("c") {
		t.Fatalf("first slot should have expired")
	}
	if l.Allow("c") {
		t.Fatalf("second slot still held")
	}
}

func TestDecide_RetryAfterTracksOldestEntry(t *testing.T) {
	l, clk := newLimiter(1)
	l.Allow("c")
	clk.Advance(15 * time.Second)
	ok, retry := l.Decide("c")
	if ok {
		t.Fatalf("expected rejection")
	}
	if retry != 45*time.Second {
		t.Fatalf("retry=%v want 45s", retry)
	}
}

func TestAllow_ClientsIsolated(t *testing.T) {
	l, _ := newLimiter(1)
	if !l.Allow("a") || !l.Allow("b") {
		t.Fatalf("distinct clients should not share a window")
	}
	if l.Allow("a") {
		t.Fatalf("a should be limited")
	}
}

func TestCleanup_DropsIdleWindows(t *testing.T) {
	l, clk := newLimiter(5)
	l.Allow("a")
	clk.Advance(30 * time.Second)
	l.Allow("b")
	clk.Advance(31 * time.Second)
	l.Cleanup()
	if got := l.Clients(); got != 1 {
		t.Fatalf("clients=%d want 1", got)
	}
}

func TestStartJanitor_StopsOnCancel(t *testing.T) {
	l, clk := newLimiter(5)
	l.Allow("a")
	clk.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	l.StartJanitor(ctx, 5*time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for l.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if l.Clients() != 0 {
		t.Fatalf("janitor did not clean idle window")
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l, _ := newLimiter(50)
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if admitted != 50 {
		t.Fatalf("admitted=%d want 50", admitted)
	}
}
