// Package events defines the publish boundary between the detection engine
// and whatever transports broadcast its activity.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind names an engine event.
type Kind string

const (
	PriceUpdate        Kind = "price:update"
	ExchangeStatus     Kind = "exchange:status"
	CrossOpportunity   Kind = "arbitrage:opportunity"
	TriangleOpp        Kind = "triangle:opportunity"
	TriangleAdded      Kind = "triangle:added"
	TriangleUpdated    Kind = "triangle:updated"
	TriangleRemoved    Kind = "triangle:removed"
	TriangleToggled    Kind = "triangle:toggled"
	TrianglesEnabled   Kind = "triangles:all-enabled"
	TrianglesDisabled  Kind = "triangles:all-disabled"
	TestOrderEnabled   Kind = "testorder:enabled"
	TestOrderLog       Kind = "testorder:log"
	TestOrderLogsClear Kind = "testorder:logs-cleared"
)

// Event is a published kind/payload pair.
type Event struct {
	Kind    Kind
	Payload any
	At      time.Time
}

// Sink receives engine events. Implementations must return promptly and must
// not panic; the engine calls Publish on its hot path.
type Sink interface {
	Publish(kind Kind, payload any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Kind, any) {}

// Multi fans each event out to every sink in order.
type Multi []Sink

func (m Multi) Publish(kind Kind, payload any) {
	for _, s := range m {
		s.Publish(kind, payload)
	}
}

// Handler consumes events delivered by an Async sink.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

func (f HandlerFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }

// Async decouples slow consumers from the engine: Publish enqueues into a
// bounded buffer and drops the event when the buffer is full. Run drains the
// buffer into the handler until ctx is cancelled.
type Async struct {
	name    string
	queue   chan Event
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	dropped uint64
}

// NewAsync creates an Async sink with the given buffer size.
func NewAsync(name string, size int, h Handler, logger *slog.Logger) *Async {
	if size <= 0 {
		size = 1
	}
	return &Async{
		name:    name,
		queue:   make(chan Event, size),
		handler: h,
		logger:  logger,
	}
}

func (a *Async) Publish(kind Kind, payload any) {
	ev := Event{Kind: kind, Payload: payload, At: time.Now()}
	select {
	case a.queue <- ev:
	default:
		a.mu.Lock()
		a.dropped++
		n := a.dropped
		a.mu.Unlock()
		if n == 1 || n%1000 == 0 {
			a.logger.Warn("events: queue full, dropping", "sink", a.name, "kind", kind, "dropped", n)
		}
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (a *Async) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Run delivers queued events to the handler until ctx is done.
func (a *Async) Run(ctx context.Context) error {
	a.logger.Info("events: sink started", "sink", a.name)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("events: sink stopped", "sink", a.name)
			return nil
		case ev := <-a.queue:
			a.deliver(ctx, ev)
		}
	}
}

func (a *Async) deliver(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("events: handler panic", "sink", a.name, "kind", ev.Kind, "panic", r)
		}
	}()
	a.handler.Handle(ctx, ev)
}

// Recorder keeps every published event in memory. Useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(kind Kind, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: kind, Payload: payload, At: time.Now()})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of the given kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent event of the given kind.
func (r *Recorder) Last(kind Kind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
