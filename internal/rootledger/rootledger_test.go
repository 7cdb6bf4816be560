package rootledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zkdrop/zkdrop-node/pkg/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
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

func hashOf(b byte) types.Hash {
	return types.BytesToHash([]byte{b})
}

func TestCurrentRootAcceptable(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock))

	l.Record(1, hashOf(1), clock.Now())

	if !l.IsAcceptable(1, hashOf(1), clock.Now()) {
		t.Error("current root should be acceptable")
	}

	clock.Advance(48 * time.Hour)
	if !l.IsAcceptable(1, hashOf(1), clock.Now()) {
		t.Error("current root should stay acceptable regardless of age")
	}
}

func TestSupersededRootWindow(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock), WithValidityWindow(time.Hour))

	l.Record(1, hashOf(1), clock.Now())
	clock.Advance(time.Minute)
	l.Record(1, hashOf(2), clock.Now())

	if !l.IsAcceptable(1, hashOf(1), clock.Now()) {
		t.Error("just-superseded root should be acceptable")
	}

	// 59m after supersedence, still inside the 1h window.
	clock.Advance(59 * time.Minute)
	if !l.IsAcceptable(1, hashOf(1), clock.Now()) {
		t.Error("superseded root inside the window should be acceptable")
	}

	// 1h1s after supersedence, past the window.
	clock.Advance(time.Minute + time.Second)
	if l.IsAcceptable(1, hashOf(1), clock.Now()) {
		t.Error("superseded root past the window should be rejected")
	}
}

func TestUnknownRootAndGroup(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock))

	if l.IsAcceptable(1, hashOf(1), clock.Now()) {
		t.Error("unknown group should be rejected")
	}

	l.Record(1, hashOf(1), clock.Now())
	if l.IsAcceptable(1, hashOf(9), clock.Now()) {
		t.Error("root never recorded should be rejected")
	}
	if l.IsAcceptable(2, hashOf(1), clock.Now()) {
		t.Error("root from another group should be rejected")
	}
}

func TestHistoryCap(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock), WithHistorySize(4))

	for i := 0; i < 10; i++ {
		l.Record(1, hashOf(byte(i)), clock.Now())
		clock.Advance(time.Second)
	}

	if got := l.HistoryLen(1); got != 4 {
		t.Errorf("HistoryLen = %d, want 4", got)
	}

	// The oldest roots fell off the cap even though they are still inside
	// the validity window.
	if l.IsAcceptable(1, hashOf(0), clock.Now()) {
		t.Error("root evicted by the cap should be rejected")
	}
	if !l.IsAcceptable(1, hashOf(8), clock.Now()) {
		t.Error("recently superseded root should be acceptable")
	}
}

func TestExpiredEntriesPruned(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock), WithValidityWindow(time.Minute))

	l.Record(1, hashOf(1), clock.Now())
	clock.Advance(time.Second)
	l.Record(1, hashOf(2), clock.Now())

	clock.Advance(2 * time.Minute)
	l.Record(1, hashOf(3), clock.Now())

	if got := l.HistoryLen(1); got != 1 {
		t.Errorf("HistoryLen = %d, want 1 after pruning", got)
	}
}

func TestCurrentRoot(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock))

	if _, ok := l.CurrentRoot(1); ok {
		t.Fatal("unknown group should have no current root")
	}

	l.Record(1, hashOf(1), clock.Now())
	l.Record(1, hashOf(2), clock.Now())

	root, ok := l.CurrentRoot(1)
	if !ok || root != hashOf(2) {
		t.Errorf("CurrentRoot = %s, %v; want %s, true", root, ok, hashOf(2))
	}
}

func TestGroupsIndependent(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock), WithValidityWindow(time.Hour))

	for g := 1; g <= 3; g++ {
		l.Record(types.GroupID(g), hashOf(byte(g)), clock.Now())
	}
	clock.Advance(time.Minute)
	l.Record(1, hashOf(10), clock.Now())

	if !l.IsAcceptable(2, hashOf(2), clock.Now()) {
		t.Error("group 2 current root should be unaffected by group 1 updates")
	}
	if got := l.HistoryLen(2); got != 0 {
		t.Errorf("group 2 HistoryLen = %d, want 0", got)
	}
}

func TestConcurrentRecordAndCheck(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Record(types.GroupID(i%2+1), types.BytesToHash(fmt.Appendf(nil, "%d-%d", i, j)), clock.Now())
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.IsAcceptable(types.GroupID(i%2+1), hashOf(1), clock.Now())
			}
		}(i)
	}
	wg.Wait()
}
