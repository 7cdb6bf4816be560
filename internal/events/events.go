// Package events provides an in-process publish/subscribe bus for
// lifecycle events: airdrop creation and claim settlement.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/zkdrop/zkdrop-node/internal/observability"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeAirdropCreated is published when a new airdrop record is created.
	TypeAirdropCreated Type = "airdrop.created"

	// TypeClaimSettled is published after a claim has consumed its
	// nullifier and the transfer has completed.
	TypeClaimSettled Type = "claim.settled"
)

// AirdropCreated is the payload for TypeAirdropCreated. It carries the
// full record.
type AirdropCreated struct {
	AirdropID types.AirdropID
	GroupID   types.GroupID
	Token     types.Address
	Manager   types.Address
	Holder    types.Address
	Amount    *uint256.Int
}

// ClaimSettled is the payload for TypeClaimSettled.
type ClaimSettled struct {
	AirdropID     types.AirdropID
	NullifierHash types.Hash
	Receiver      types.Address
	Token         types.Address
	Amount        *uint256.Int
}

// Event is a published event with its payload in Data.
type Event struct {
	Type Type
	Time time.Time
	Data any
}

// DefaultBufferSize is the per-subscriber channel buffer.
const DefaultBufferSize = 64

type subscriber struct {
	ch    chan Event
	types map[Type]bool
}

// Bus fans events out to subscribers. Delivery is best-effort: a
// subscriber that falls behind drops events rather than blocking
// publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	bufferSize  int
	logger      *slog.Logger
	metrics     *observability.Metrics
	closed      bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// NewBus creates a new event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[string]*subscriber),
		bufferSize:  DefaultBufferSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber for the given event types. An empty
// type list subscribes to all events. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe(eventTypes ...Type) (<-chan Event, func()) {
	sub := &subscriber{
		ch: make(chan Event, b.bufferSize),
	}
	if len(eventTypes) > 0 {
		sub.types = make(map[Type]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = true
		}
	}

	id := uuid.NewString()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subscribers[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers the event to all matching subscribers. Subscribers
// with full buffers are skipped.
func (b *Bus) Publish(eventType Type, data any) {
	event := Event{
		Type: eventType,
		Time: time.Now(),
		Data: data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if sub.types != nil && !sub.types[eventType] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber", "type", eventType)
			if b.metrics != nil {
				b.metrics.EventsDropped.WithLabelValues(string(eventType)).Inc()
			}
		}
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}
