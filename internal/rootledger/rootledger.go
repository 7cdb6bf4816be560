// Package rootledger tracks the recent membership-root history of each
// group. Proof generation and submission are not instantaneous, so a claim
// may legitimately reference a root that was superseded moments ago; the
// ledger accepts any root still inside the configured validity window and
// permanently rejects everything older.
package rootledger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zkdrop/zkdrop-node/internal/observability"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

const (
	// DefaultValidityWindow is how long a superseded root remains
	// acceptable. Long enough that one membership change between proof
	// generation and submission does not invalidate the proof.
	DefaultValidityWindow = time.Hour

	// DefaultHistorySize caps the number of superseded roots retained
	// per group.
	DefaultHistorySize = 16
)

// Clock supplies the current time. Injected so tests can advance time
// deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used in production.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// rootEntry is a superseded root and the instant it stopped being current.
type rootEntry struct {
	root         types.Hash
	supersededAt time.Time
}

// groupHistory is the current root plus the bounded tail of superseded
// roots, newest last.
type groupHistory struct {
	current    types.Hash
	hasCurrent bool
	superseded []rootEntry
}

// Ledger stores a bounded, time-stamped root history per group. Writers
// (membership-change events) and readers (claim validation) are serialized
// by an RWMutex so no caller ever observes a torn history.
type Ledger struct {
	mu             sync.RWMutex
	groups         map[types.GroupID]*groupHistory
	validityWindow time.Duration
	historySize    int
	clock          Clock
	metrics        *observability.Metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithValidityWindow overrides the validity window for superseded roots.
func WithValidityWindow(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.validityWindow = d
		}
	}
}

// WithHistorySize overrides the per-group cap on retained superseded roots.
func WithHistorySize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.historySize = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// New creates a Ledger with the given options.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		groups:         make(map[types.GroupID]*groupHistory),
		validityWindow: DefaultValidityWindow,
		historySize:    DefaultHistorySize,
		clock:          SystemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ValidityWindow returns the configured validity window.
func (l *Ledger) ValidityWindow() time.Duration { return l.validityWindow }

// Record appends newRoot as the group's current root, stamping the prior
// current root's supersededAt with the event time. Entries older than the
// validity window, and entries beyond the history cap, are pruned.
//
// Record is the sink for membership-change events; the ledger never
// invents roots on its own.
func (l *Ledger) Record(groupID types.GroupID, newRoot types.Hash, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[groupID]
	if !ok {
		g = &groupHistory{}
		l.groups[groupID] = g
	}

	if g.hasCurrent {
		g.superseded = append(g.superseded, rootEntry{root: g.current, supersededAt: at})
	}
	g.current = newRoot
	g.hasCurrent = true

	l.pruneLocked(g, at)

	if l.metrics != nil {
		l.metrics.RootsRecorded.WithLabelValues(groupID.String()).Inc()
	}
	slog.Debug("membership root recorded",
		"group", groupID,
		"root", newRoot,
		"history_len", len(g.superseded),
	)
}

// IsAcceptable reports whether root may back a claim against the group at
// the given instant: it must be the current root, or a superseded root
// whose supersededAt is less than the validity window ago. Roots absent
// from the history, and unknown groups, are rejected outright.
func (l *Ledger) IsAcceptable(groupID types.GroupID, root types.Hash, at time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g, ok := l.groups[groupID]
	if !ok || !g.hasCurrent {
		return false
	}
	if g.current == root {
		return true
	}
	for i := len(g.superseded) - 1; i >= 0; i-- {
		e := g.superseded[i]
		if e.root == root {
			return at.Sub(e.supersededAt) < l.validityWindow
		}
	}
	return false
}

// CurrentRoot returns the group's current root, if any.
func (l *Ledger) CurrentRoot(groupID types.GroupID) (types.Hash, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g, ok := l.groups[groupID]
	if !ok || !g.hasCurrent {
		return types.Hash{}, false
	}
	return g.current, true
}

// HistoryLen returns the number of superseded roots retained for the group.
func (l *Ledger) HistoryLen(groupID types.GroupID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g, ok := l.groups[groupID]
	if !ok {
		return 0
	}
	return len(g.superseded)
}

// Now returns the ledger's view of the current time.
func (l *Ledger) Now() time.Time { return l.clock.Now() }

// pruneLocked drops superseded entries that can never validate again:
// those past the validity window, then the oldest beyond the history cap.
// Caller holds l.mu.
func (l *Ledger) pruneLocked(g *groupHistory, at time.Time) {
	cutoff := 0
	for cutoff < len(g.superseded) && at.Sub(g.superseded[cutoff].supersededAt) >= l.validityWindow {
		cutoff++
	}
	if cutoff > 0 {
		g.superseded = append(g.superseded[:0:0], g.superseded[cutoff:]...)
	}
	if excess := len(g.superseded) - l.historySize; excess > 0 {
		g.superseded = append(g.superseded[:0:0], g.superseded[excess:]...)
	}
}
