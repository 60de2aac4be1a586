package bruteforce

import (
	"testing"
	"time"

	"gatekeeper/internal/blocklist"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard() (*Guard, *blocklist.Blocklist, *fakeClock) {
	clock := newFakeClock()
	blocks := blocklist.New(nil)
	blocks.SetNow(clock.Now)
	g := NewGuard(DefaultConfig(), blocks, nil)
	g.SetNow(clock.Now)
	return g, blocks, clock
}

func TestThreshold(t *testing.T) {
	g, blocks, _ := newTestGuard()

	for i := 0; i < 4; i++ {
		g.RecordResult("1.2.3.4", false)
		if !g.PermitAttempt("1.2.3.4") {
			t.Fatalf("expected attempt to be permitted after %d failures", i+1)
		}
	}

	g.RecordResult("1.2.3.4", false)
	if g.PermitAttempt("1.2.3.4") {
		t.Fatal("expected attempt to be denied after 5th failure")
	}
	if !blocks.IsBlocked("1.2.3.4") {
		t.Fatal("expected IP to be in the blocklist")
	}
}

func TestRecordResultReportsBlock(t *testing.T) {
	g, _, _ := newTestGuard()

	for i := 0; i < 4; i++ {
		if g.RecordResult("1.2.3.4", false) {
			t.Fatalf("failure %d should not insert a block", i+1)
		}
	}
	if !g.RecordResult("1.2.3.4", false) {
		t.Fatal("5th failure should report the inserted block")
	}
	if g.RecordResult("1.2.3.4", true) {
		t.Fatal("a success never inserts a block")
	}
}

func TestBlockExpires(t *testing.T) {
	g, _, clock := newTestGuard()

	for i := 0; i < 5; i++ {
		g.RecordResult("1.2.3.4", false)
	}
	if g.PermitAttempt("1.2.3.4") {
		t.Fatal("expected blocked IP to be denied")
	}

	clock.Advance(time.Hour + time.Second)
	if !g.PermitAttempt("1.2.3.4") {
		t.Fatal("expected attempts to be permitted after the block expires")
	}
}

func TestSuccessClearsWindow(t *testing.T) {
	g, blocks, _ := newTestGuard()

	for i := 0; i < 4; i++ {
		g.RecordResult("1.2.3.4", false)
	}
	g.RecordResult("1.2.3.4", true)

	// The window restarts: four more failures still do not block
	for i := 0; i < 4; i++ {
		g.RecordResult("1.2.3.4", false)
	}
	if !g.PermitAttempt("1.2.3.4") {
		t.Fatal("expected attempt to be permitted after success reset")
	}
	if blocks.IsBlocked("1.2.3.4") {
		t.Fatal("expected IP not to be blocked")
	}
}

func TestWindowSlides(t *testing.T) {
	g, blocks, clock := newTestGuard()

	for i := 0; i < 4; i++ {
		g.RecordResult("1.2.3.4", false)
	}

	// Old failures age out of the 5-minute window
	clock.Advance(6 * time.Minute)
	g.RecordResult("1.2.3.4", false)

	if blocks.IsBlocked("1.2.3.4") {
		t.Fatal("expected no block when failures span beyond the window")
	}
	if got := g.Failures("1.2.3.4"); got != 1 {
		t.Fatalf("expected 1 failure in the window, got %d", got)
	}
}

func TestIPsIndependent(t *testing.T) {
	g, blocks, _ := newTestGuard()

	for i := 0; i < 5; i++ {
		g.RecordResult("1.2.3.4", false)
	}
	if g.PermitAttempt("5.6.7.8") != true {
		t.Fatal("expected another IP to be unaffected")
	}
	if blocks.IsBlocked("5.6.7.8") {
		t.Fatal("expected other IP not to be blocked")
	}
}

func TestSweep(t *testing.T) {
	g, _, clock := newTestGuard()

	g.RecordResult("1.2.3.4", false)
	g.RecordResult("5.6.7.8", false)
	clock.Advance(6 * time.Minute)
	g.RecordResult("9.9.9.9", false)

	if removed := g.Sweep(); removed != 2 {
		t.Fatalf("expected 2 windows swept, got %d", removed)
	}
	if g.TrackedIPs() != 1 {
		t.Fatalf("expected 1 tracked IP, got %d", g.TrackedIPs())
	}
}
