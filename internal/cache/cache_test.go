package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(3310, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_SetThenGet(t *testing.T) {
	c := New[string]("test", Options{})
	c.Set("k", "v")
	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("Get = %q,%v want v,true", v, ok)
	}
}

func TestCache_TTLScenario(t *testing.T) {
	clock := newFakeClock()
	c := New[string]("test", Options{TTL: 3600 * time.Second, Now: clock.Now})

	c.SetTTL("sysA:gold", "listing", 3600*time.Second)
	if v, ok := c.Get("sysA:gold"); !ok || v != "listing" {
		t.Fatalf("immediate Get = %q,%v want listing,true", v, ok)
	}

	clock.Advance(3601 * time.Second)
	if _, ok := c.Get("sysA:gold"); ok {
		t.Fatal("Get after ttl should miss")
	}

	// Next access triggers a remote fetch.
	var fetches int
	v, _, err := c.GetOrLoad(context.Background(), "sysA:gold", time.Hour, func(context.Context) (string, error) {
		fetches++
		return "fresh", nil
	})
	if err != nil || v != "fresh" {
		t.Fatalf("GetOrLoad = %q,%v", v, err)
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1", fetches)
	}

	s := c.Stats()
	if s.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", s.Evictions)
	}
}

func TestCache_HitMissCountersMatchGets(t *testing.T) {
	clock := newFakeClock()
	c := New[int]("test", Options{TTL: time.Minute, Now: clock.Now})
	c.Set("a", 1)

	gets := 0
	for i := 0; i < 5; i++ {
		c.Get("a")
		gets++
		c.Get(fmt.Sprintf("missing-%d", i))
		gets++
	}
	clock.Advance(2 * time.Minute)
	c.Get("a")
	gets++

	s := c.Stats()
	if s.Hits+s.Misses != int64(gets) {
		t.Errorf("hits+misses = %d, want %d", s.Hits+s.Misses, gets)
	}
	if s.Hits != 5 || s.Misses != 6 {
		t.Errorf("hits=%d misses=%d, want 5/6", s.Hits, s.Misses)
	}
	if rate := s.HitRate(); rate < 0.45 || rate > 0.46 {
		t.Errorf("HitRate = %v, want 5/11", rate)
	}
}

func TestCache_HitRateEmpty(t *testing.T) {
	if r := (Stats{}).HitRate(); r != 0 {
		t.Errorf("HitRate = %v, want 0", r)
	}
}

func TestCache_CapacityEvictsLRU(t *testing.T) {
	c := New[int]("test", Options{Capacity: 2})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should survive")
	}
	if s := c.Stats(); s.Evictions != 1 || s.Size != 2 {
		t.Errorf("Evictions=%d Size=%d, want 1/2", s.Evictions, s.Size)
	}
}

func TestCache_OverwriteReplacesWholesale(t *testing.T) {
	clock := newFakeClock()
	c := New[[]int]("test", Options{TTL: time.Minute, Now: clock.Now})
	c.Set("k", []int{1, 2})
	clock.Advance(50 * time.Second)
	c.Set("k", []int{3})
	clock.Advance(50 * time.Second)

	v, age, ok := c.GetWithAge("k")
	if !ok {
		t.Fatal("overwritten entry should have a fresh TTL")
	}
	if len(v) != 1 || v[0] != 3 {
		t.Errorf("value = %v, want [3]", v)
	}
	if age != 50*time.Second {
		t.Errorf("age = %v, want 50s", age)
	}
}

func TestCache_GetOrLoadCoalescesConcurrentMisses(t *testing.T) {
	c := New[string]("test", Options{})
	release := make(chan struct{})
	var loads int32

	const callers = 8
	var started, wg sync.WaitGroup
	started.Add(callers)
	wg.Add(callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			started.Done()
			v, _, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
				atomic.AddInt32(&loads, 1)
				<-release
				return "v", nil
			})
			if err == nil && v != "v" {
				err = fmt.Errorf("value %q", v)
			}
			errs <- err
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	n := atomic.LoadInt32(&loads)
	s := c.Stats()
	if int64(n) != s.Loads {
		t.Errorf("loads=%d, stats.Loads=%d", n, s.Loads)
	}
	if s.Loads+s.InflightHits+s.Hits != callers {
		t.Errorf("loads(%d)+inflight(%d)+hits(%d) != %d", s.Loads, s.InflightHits, s.Hits, callers)
	}
}

func TestCache_GetOrLoadSurvivesLeaderCancel(t *testing.T) {
	c := New[string]("test", Options{})
	started := make(chan struct{})
	release := make(chan struct{})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrLoad(leaderCtx, "k", time.Minute, func(ctx context.Context) (string, error) {
			close(started)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-release:
				return "v", nil
			}
		})
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	follower := make(chan result, 1)
	go func() {
		v, _, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
			return "", errors.New("second load started")
		})
		follower <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader err = %v, want context.Canceled", err)
	}
	close(release)

	r := <-follower
	if r.err != nil || r.v != "v" {
		t.Fatalf("follower = %q,%v", r.v, r.err)
	}
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Errorf("cached = %q,%v", v, ok)
	}
	if s := c.Stats(); s.Loads != 1 || s.InflightHits != 1 {
		t.Errorf("loads=%d inflight=%d", s.Loads, s.InflightHits)
	}
}

func TestCache_GetOrLoadTimeout(t *testing.T) {
	c := New[string]("test", Options{LoadTimeout: 20 * time.Millisecond})
	_, _, err := c.GetOrLoad(context.Background(), "k", 0, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestCache_GetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := New[string]("test", Options{})
	boom := errors.New("boom")
	_, _, err := c.GetOrLoad(context.Background(), "k", 0, func(context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after failed load", c.Len())
	}
	if s := c.Stats(); s.LoadErrors != 1 {
		t.Errorf("LoadErrors = %d, want 1", s.LoadErrors)
	}
}

func TestCache_ConcurrentGetSet(t *testing.T) {
	c := New[int]("test", Options{Capacity: 50})
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", i%64)
				c.Set(key, g)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	s := c.Stats()
	if s.Hits+s.Misses != 16*500 {
		t.Errorf("hits+misses = %d, want %d", s.Hits+s.Misses, 16*500)
	}
	if s.Size > 50 {
		t.Errorf("Size = %d exceeds capacity 50", s.Size)
	}
}

func TestCache_SweepAndClear(t *testing.T) {
	clock := newFakeClock()
	c := New[int]("test", Options{TTL: time.Minute, Now: clock.Now})
	c.Set("a", 1)
	c.SetTTL("b", 2, time.Hour)
	clock.Advance(2 * time.Minute)

	if n := c.Sweep(); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if n := c.Clear(); n != 1 {
		t.Errorf("Clear = %d, want 1", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear", c.Len())
	}
}
