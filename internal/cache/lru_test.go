package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %d %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[string](10, time.Minute)
	c.now = clock.now

	c.Set("k", "v")
	clock.advance(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected k before ttl")
	}
	clock.advance(31 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected k to expire")
	}
}

func TestSlidingLRUExtendsOnGet(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewSlidingLRUCache[string](10, time.Minute)
	c.now = clock.now

	c.Set("k", "v")
	for i := 0; i < 5; i++ {
		clock.advance(45 * time.Second)
		if _, ok := c.Get("k"); !ok {
			t.Fatalf("iteration %d: sliding entry expired", i)
		}
	}
	clock.advance(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected idle entry to expire")
	}
}

func TestCleanExpiredAndManager(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](10, time.Second)
	c.now = clock.now
	c.Set("a", 1)
	c.Set("b", 2)
	clock.advance(2 * time.Second)
	c.Set("c", 3)

	m := NewManager()
	m.Register("test", c)
	removed := m.CleanNow()
	if removed["test"] != 2 {
		t.Fatalf("expected 2 removed, got %v", removed)
	}
	if c.Size() != 1 {
		t.Fatalf("expected 1 left, got %d", c.Size())
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a running cleanup loop")
	}
}

func TestStatsAndEvictionHook(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](2, time.Minute)
	c.now = clock.now

	var evicted []string
	c.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts a
	c.Get("b")
	c.Get("a")
	c.Delete("c")
	clock.advance(2 * time.Minute)
	c.Get("b") // expired

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 2 || st.Evictions != 1 || st.Expired != 1 || st.Size != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if len(evicted) != 2 || evicted[0] != "a" || evicted[1] != "b" {
		t.Fatalf("Delete must not run the hook; got %v", evicted)
	}
}
