package csrf

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *fakeClock) {
	clock := newFakeClock()
	s := NewStore(0, nil)
	s.SetNow(clock.Now)
	return s, clock
}

func TestIssueAndValidate(t *testing.T) {
	s, _ := newTestStore()

	token := s.Issue("user-1")
	if token == "" {
		t.Fatal("expected a non-empty token")
	}
	if !s.Validate(token) {
		t.Fatal("expected fresh token to validate")
	}

	// Non-consuming: the same token validates again
	if !s.Validate(token) {
		t.Fatal("expected token to remain valid after validation")
	}
}

func TestUnknownToken(t *testing.T) {
	s, _ := newTestStore()

	if s.Validate("not-a-token") {
		t.Fatal("expected unknown token to fail")
	}
	if s.Validate("") {
		t.Fatal("expected empty token to fail")
	}
}

func TestExpiry(t *testing.T) {
	s, clock := newTestStore()

	token := s.Issue("")
	clock.Advance(DefaultTTL + time.Second)

	if s.Validate(token) {
		t.Fatal("expected expired token to fail validation")
	}
	if s.Len() != 0 {
		t.Fatalf("expected lazy removal of the expired token, got %d live", s.Len())
	}
}

func TestTokensUnique(t *testing.T) {
	s, _ := newTestStore()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := s.Issue("")
		if seen[token] {
			t.Fatal("expected tokens to be unique")
		}
		seen[token] = true
	}
}

func TestSweep(t *testing.T) {
	s, clock := newTestStore()

	old := s.Issue("")
	clock.Advance(DefaultTTL + time.Second)
	fresh := s.Issue("")

	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("expected 1 token swept, got %d", removed)
	}
	if s.Validate(old) {
		t.Fatal("expected swept token to fail")
	}
	if !s.Validate(fresh) {
		t.Fatal("expected fresh token to survive the sweep")
	}
}
