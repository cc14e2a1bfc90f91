package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/a11yscan/a11yscan/internal/model"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, maxSize int, clock *fakeClock) *AnalysisCache {
	t.Helper()

	c, err := NewAnalysisCache(maxSize, WithClock(clock.Now), WithSweepInterval(time.Hour))
	if err != nil {
		t.Fatalf("NewAnalysisCache() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func violations(id string) []model.Violation {
	return []model.Violation{{ID: id, Impact: model.ImpactSerious, Occurrences: 1}}
}

func TestGetOrComputeCachesWithinTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newTestCache(t, 8, clock)

	calls := 0
	compute := func(context.Context) ([]model.Violation, error) {
		calls++
		return violations("image-alt"), nil
	}

	first, err := c.GetOrCompute(context.Background(), "k1", compute, time.Minute)
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	second, err := c.GetOrCompute(context.Background(), "k1", compute, time.Minute)
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}

	if calls != 1 {
		t.Errorf("computeFn called %d times, want 1", calls)
	}
	if first[0].ID != second[0].ID {
		t.Errorf("GetOrCompute() values differ: %q vs %q", first[0].ID, second[0].ID)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats() = hits %d misses %d, want 1 and 1", stats.Hits, stats.Misses)
	}
}

func TestGetOrComputeRecomputesAfterExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newTestCache(t, 8, clock)

	calls := 0
	compute := func(context.Context) ([]model.Violation, error) {
		calls++
		return violations("label"), nil
	}

	if _, err := c.GetOrCompute(context.Background(), "k1", compute, time.Minute); err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}

	clock.Advance(2 * time.Minute)

	if _, err := c.GetOrCompute(context.Background(), "k1", compute, time.Minute); err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("computeFn called %d times after expiry, want 2", calls)
	}
	if got := c.Stats().Expirations; got != 1 {
		t.Errorf("Stats().Expirations = %d, want 1", got)
	}
}

func TestGetOrComputeError(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newTestCache(t, 8, clock)

	wantErr := errors.New("analyzer down")
	_, err := c.GetOrCompute(context.Background(), "k1", func(context.Context) ([]model.Violation, error) {
		return nil, wantErr
	}, time.Minute)
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetOrCompute() error = %v, want %v", err, wantErr)
	}

	if _, ok := c.Get("k1"); ok {
		t.Error("Get() found an entry after a failed computation")
	}
}

func TestLRUEviction(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newTestCache(t, 3, clock)

	for i := 0; i < 3; i++ {
		c.Store(fmt.Sprintf("k%d", i), violations("x"), time.Minute)
	}

	// Touch k0 so k1 becomes the least recently used.
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("Get(k0) missed unexpectedly")
	}

	c.Store("k3", violations("x"), time.Minute)

	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3 (never above capacity)", c.Len())
	}
	if _, ok := c.Get("k1"); ok {
		t.Error("Get(k1) hit, want the least-recently-used key evicted")
	}
	for _, key := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("Get(%s) missed, want retained", key)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Stats().Evictions = %d, want 1", got)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newTestCache(t, 8, clock)

	c.Store("short", violations("x"), time.Minute)
	c.Store("long", violations("x"), time.Hour)

	clock.Advance(10 * time.Minute)

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d after sweep, want 1", c.Len())
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("Get(long) missed, want unexpired entry retained")
	}
}

func TestStatsBytesTracksStores(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newTestCache(t, 8, clock)

	c.Store("k1", violations("image-alt"), time.Minute)
	if got := c.Stats().Bytes; got <= 0 {
		t.Errorf("Stats().Bytes = %d, want > 0", got)
	}

	before := c.Stats().Bytes
	c.Store("k1", nil, time.Minute)
	if got := c.Stats().Bytes; got >= before {
		t.Errorf("Stats().Bytes = %d after overwrite with smaller value, want < %d", got, before)
	}
}

func TestHitRate(t *testing.T) {
	t.Parallel()

	s := Stats{Hits: 3, Misses: 1}
	if got := s.HitRate(); got != 0.75 {
		t.Errorf("HitRate() = %v, want 0.75", got)
	}
	if got := (Stats{}).HitRate(); got != 0 {
		t.Errorf("HitRate() on empty stats = %v, want 0", got)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	opts := model.DefaultAnalysisOptions()

	a := Fingerprint("https://example.com/", opts)
	b := Fingerprint("https://example.com/", opts)
	if a != b {
		t.Errorf("Fingerprint() not deterministic: %q vs %q", a, b)
	}

	if got := Fingerprint("https://example.com/about", opts); got == a {
		t.Error("Fingerprint() identical for different URLs")
	}

	warned := opts
	warned.IncludeWarnings = true
	if got := Fingerprint("https://example.com/", warned); got == a {
		t.Error("Fingerprint() identical for different options")
	}
}
