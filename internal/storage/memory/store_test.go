package memory

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"gatekeeper/internal/storage"
)

// fakeClock is a manually advanced clock shared by the tests
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(clock *fakeClock) *Store {
	s := NewStore(nil)
	s.SetNow(clock.Now)
	return s
}

func TestBurst(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	q := storage.Quota{Rate: 10, Burst: 5, Period: time.Minute}

	for i := 0; i < 5; i++ {
		res, err := s.Check(context.Background(), "k", q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if res.Remaining != 4-i {
			t.Fatalf("expected remaining %d, got %d", 4-i, res.Remaining)
		}
	}

	res, _ := s.Check(context.Background(), "k", q)
	if res.Allowed {
		t.Fatal("expected request beyond burst to be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", res.Remaining)
	}

	// Next token mintable after period/rate = 6s
	wantReset := clock.Now().Add(6 * time.Second)
	if d := res.ResetAt.Sub(wantReset); d < -time.Millisecond || d > time.Millisecond {
		t.Fatalf("expected resetAt ~%v, got %v", wantReset, res.ResetAt)
	}
}

func TestRefill(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	q := storage.Quota{Rate: 60, Burst: 2, Period: time.Minute} // 1 token/s

	s.Check(context.Background(), "k", q)
	s.Check(context.Background(), "k", q)

	if res, _ := s.Check(context.Background(), "k", q); res.Allowed {
		t.Fatal("expected denial with empty bucket")
	}

	clock.Advance(time.Second)
	if res, _ := s.Check(context.Background(), "k", q); !res.Allowed {
		t.Fatal("expected allow after one token refilled")
	}

	// Refill never exceeds burst
	clock.Advance(time.Hour)
	res, _ := s.Check(context.Background(), "k", q)
	if !res.Allowed {
		t.Fatal("expected allow after long idle")
	}
	if res.Remaining != 1 {
		t.Fatalf("expected remaining capped at burst-1=1, got %d", res.Remaining)
	}
}

func TestSustainedRate(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	q := storage.Quota{Rate: 10, Burst: 5, Period: 10 * time.Second} // 1 token/s

	// One request per second, exactly the refill rate: no denials ever
	for i := 0; i < 100; i++ {
		res, _ := s.Check(context.Background(), "k", q)
		if !res.Allowed {
			t.Fatalf("expected sustained-rate request %d to be allowed", i)
		}
		clock.Advance(time.Second)
	}
}

func TestTokenInvariant(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	q := storage.Quota{Rate: 7, Burst: 13, Period: 5 * time.Second}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		s.Check(context.Background(), "k", q)
		clock.Advance(time.Duration(rng.Int63n(int64(3 * time.Second))))

		snap, _ := s.Snapshot(context.Background())
		e := snap["k"]
		if e.Tokens < 0 || e.Tokens > float64(q.Burst) {
			t.Fatalf("token invariant violated at step %d: %f", i, e.Tokens)
		}
	}
}

func TestSeparateKeys(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	q := storage.Quota{Rate: 1, Burst: 1, Period: time.Minute}

	if res, _ := s.Check(context.Background(), "a", q); !res.Allowed {
		t.Fatal("expected first request for a to be allowed")
	}
	if res, _ := s.Check(context.Background(), "b", q); !res.Allowed {
		t.Fatal("expected first request for b to be allowed")
	}
	if res, _ := s.Check(context.Background(), "a", q); res.Allowed {
		t.Fatal("expected second request for a to be denied")
	}
}

func TestExempt(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	q := storage.Quota{Rate: 1, Burst: 1, Period: time.Minute}

	if err := s.Exempt(context.Background(), "vip"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 50; i++ {
		res, _ := s.Check(context.Background(), "vip", q)
		if !res.Allowed {
			t.Fatalf("expected exempt key to always be allowed (call %d)", i)
		}
	}

	snap, _ := s.Snapshot(context.Background())
	if !snap["vip"].Exempt {
		t.Fatal("expected snapshot to mark the key exempt")
	}

	// Reset clears the exemption
	s.Reset(context.Background(), "vip")
	s.Check(context.Background(), "vip", q)
	if res, _ := s.Check(context.Background(), "vip", q); res.Allowed {
		t.Fatal("expected rate limiting to resume after reset")
	}
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	q := storage.Quota{Rate: 1, Burst: 1, Period: time.Minute}

	s.Check(context.Background(), "old", q)
	s.Exempt(context.Background(), "vip")
	clock.Advance(10 * time.Minute)
	s.Check(context.Background(), "fresh", q)

	removed, err := s.Sweep(context.Background(), 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 bucket removed, got %d", removed)
	}

	snap, _ := s.Snapshot(context.Background())
	if _, ok := snap["old"]; ok {
		t.Fatal("expected idle bucket to be swept")
	}
	if _, ok := snap["fresh"]; !ok {
		t.Fatal("expected fresh bucket to survive")
	}
	if _, ok := snap["vip"]; !ok {
		t.Fatal("expected exempt entry to survive sweeps")
	}
}

func TestMaxEntriesEviction(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(&storage.LimiterStoreConfig{MaxEntries: 2})
	s.SetNow(clock.Now)
	q := storage.Quota{Rate: 1, Burst: 1, Period: time.Minute}

	s.Check(context.Background(), "first", q)
	clock.Advance(time.Second)
	s.Check(context.Background(), "second", q)
	clock.Advance(time.Second)
	s.Check(context.Background(), "third", q)

	snap, _ := s.Snapshot(context.Background())
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", len(snap))
	}
	if _, ok := snap["first"]; ok {
		t.Fatal("expected oldest bucket to be evicted")
	}
}

func TestResetAtMath(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	q := storage.Quota{Rate: 2, Burst: 2, Period: time.Minute} // 30s per token

	res, _ := s.Check(context.Background(), "k", q)
	// tokens now 1: full refill in (2-1)*30s
	want := clock.Now().Add(30 * time.Second)
	if !res.ResetAt.Equal(want) {
		t.Fatalf("expected resetAt %v, got %v", want, res.ResetAt)
	}

	res, _ = s.Check(context.Background(), "k", q)
	want = clock.Now().Add(60 * time.Second)
	if !res.ResetAt.Equal(want) {
		t.Fatalf("expected resetAt %v, got %v", want, res.ResetAt)
	}

	snap, _ := s.Snapshot(context.Background())
	if tok := snap["k"].Tokens; math.Abs(tok) > 1e-9 {
		t.Fatalf("expected empty bucket, got %f tokens", tok)
	}
}
