package ttl

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration, size int) (*Cache[string], *fakeClock) {
	fc := &fakeClock{now: time.Unix(0, 0).UTC()}
	c := New[string]("test", ttl, size)
	c.SetClock(fc.Now)
	return c, fc
}

func TestPutGet_RoundTrip(t *testing.T) {
	c, _ := newTestCache(time.Minute, 4)
	c.Put("miami", "25.76,-80.19")

	got, ok := c.Get("miami")
	if !ok || got != "25.76,-80.19" {
		t.Fatalf("got=%q ok=%v", got, ok)
	}
	if _, ok := c.Get("tampa"); ok {
		t.Fatal("unexpected hit for missing key")
	}
}

func TestCapacity_EvictsExactlyTheOldest(t *testing.T) {
	const n = 3
	c, fc := newTestCache(time.Hour, n)

	for i := 0; i <= n; i++ {
		c.Put("k"+strconv.Itoa(i), "v")
		fc.Add(time.Second)
	}

	if c.Len() != n {
		t.Fatalf("len=%d want %d", c.Len(), n)
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatal("oldest entry k0 should have been evicted")
	}
	for i := 1; i <= n; i++ {
		if _, ok := c.Get("k" + strconv.Itoa(i)); !ok {
			t.Fatalf("k%d should still be present", i)
		}
	}
}

func TestGet_DoesNotRefreshRecency(t *testing.T) {
	c, fc := newTestCache(time.Hour, 2)
	c.Put("a", "1")
	fc.Add(time.Second)
	c.Put("b", "2")
	fc.Add(time.Second)

	// reading a must not protect it from eviction
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Put("c", "3")

	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be evicted: ordering is by write time, not access")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("b should survive")
	}
}

func TestPut_RefreshMovesEntryToNewest(t *testing.T) {
	c, fc := newTestCache(time.Hour, 2)
	c.Put("a", "1")
	fc.Add(time.Second)
	c.Put("b", "2")
	fc.Add(time.Second)
	c.Put("a", "1b")
	c.Put("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should be evicted after a was refreshed")
	}
	if v, ok := c.Get("a"); !ok || v != "1b" {
		t.Fatalf("a=%q ok=%v want refreshed value", v, ok)
	}
}

func TestGet_ExpiresAfterTTL(t *testing.T) {
	ttl := 10 * time.Second
	c, fc := newTestCache(ttl, 4)
	c.Put("k", "v")

	fc.Add(ttl)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry exactly at ttl is still fresh")
	}

	fc.Add(time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry older than ttl must be absent")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be dropped, len=%d", c.Len())
	}
}

func TestConcurrentAccess_NoRace(t *testing.T) {
	c := New[int]("race", time.Minute, 32)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := strconv.Itoa((g * i) % 50)
				c.Put(k, i)
				c.Get(k)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 32 {
		t.Fatalf("len=%d exceeds capacity", c.Len())
	}
}
