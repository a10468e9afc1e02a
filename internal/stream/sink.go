// Package stream carries live output from agents to the consuming surface.
//
// Agents produce tagged events (content deltas, tool lifecycle markers) and
// the UI layer consumes them. The sink is a bounded channel: a slow consumer
// applies backpressure to producers instead of growing an unbounded queue,
// and producers observe context cancellation while blocked on a full sink.
package stream

import (
	"context"
	"sync"
)

// EventType tags what an event carries.
type EventType string

const (
	// EventDelta carries an incremental content chunk of an artifact or a
	// model answer.
	EventDelta EventType = "delta"
	// EventToolStart marks the beginning of a tool execution.
	EventToolStart EventType = "toolStart"
	// EventToolEnd marks the end of a tool execution, success or failure.
	EventToolEnd EventType = "toolEnd"
)

// Event is one unit of live output.
// Kind carries the artifact kind for delta events ("document", "code",
// "diagram") or the tool name for lifecycle events; it may be empty for
// plain chat deltas.
type Event struct {
	Type    EventType `json:"type"`
	Kind    string    `json:"kind,omitempty"`
	Payload string    `json:"payload,omitempty"`
}

// DefaultCapacity is the sink buffer used when callers pass a non-positive
// capacity to NewSink.
const DefaultCapacity = 64

// Sink is an append-only, bounded event queue. Producers call Send; the
// single consumer ranges over Events. Safe for concurrent producers, and
// safe to Close while producers are still sending.
type Sink struct {
	// events is the producer side. It is never closed, so a Send racing
	// Close cannot panic on a closed channel; Close signals shutdown
	// through closed instead.
	events chan Event
	// out is the consumer side, owned by the forwarding goroutine, which
	// closes it once closed is signalled and the buffer is drained.
	out chan Event

	closeOnce sync.Once
	closed    chan struct{}
}

// NewSink creates a Sink with the given buffer capacity.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Sink{
		// The forwarding goroutine holds one event in flight, so the
		// channel carries the rest of the capacity.
		events: make(chan Event, capacity-1),
		out:    make(chan Event),
		closed: make(chan struct{}),
	}
	go s.forward()
	return s
}

// forward shuttles events to the consumer channel. It is the only goroutine
// that closes out, and it exits once the sink is closed and drained.
func (s *Sink) forward() {
	defer close(s.out)
	for {
		select {
		case ev := <-s.events:
			s.out <- ev
		case <-s.closed:
			for {
				select {
				case ev := <-s.events:
					s.out <- ev
				default:
					return
				}
			}
		}
	}
}

// Send enqueues one event, blocking while the buffer is full.
// Returns ctx.Err() if the context ends first, or nil silently dropping the
// event if the sink is already closed: producers finishing after the
// consumer went away are expected during cancellation, not an error.
func (s *Sink) Send(ctx context.Context, ev Event) error {
	select {
	case <-s.closed:
		return nil
	default:
	}

	select {
	case s.events <- ev:
		return nil
	case <-s.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delta is shorthand for sending an EventDelta.
func (s *Sink) Delta(ctx context.Context, kind, payload string) error {
	return s.Send(ctx, Event{Type: EventDelta, Kind: kind, Payload: payload})
}

// Events returns the consumer side of the sink. After Close, the channel is
// closed once every buffered event has been delivered; the consumer must
// drain it to completion.
func (s *Sink) Events() <-chan Event {
	return s.out
}

// Close ends the stream: buffered events are still delivered, then the
// Events channel is closed and the consumer's range loop ends. Idempotent.
// A Send racing Close is either delivered or silently dropped, never a
// panic, since producers only ever write to a channel that stays open.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}
