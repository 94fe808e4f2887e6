package events

import "trustrent/core/types"

// Event represents a structured state change emitted by a module.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render their canonical typed form
// for the journal and downstream subscribers.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Collector buffers emitted events so an operation can publish them only once
// its state changes have been committed.
type Collector struct {
	events []*types.Event
}

// Emit implements the Emitter interface. Events without a typed payload are
// dropped.
func (c *Collector) Emit(evt Event) {
	if c == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok {
		return
	}
	if typed := payload.Event(); typed != nil {
		c.events = append(c.events, typed.Clone())
	}
}

// Events returns the buffered events in emission order.
func (c *Collector) Events() []*types.Event {
	if c == nil {
		return nil
	}
	out := make([]*types.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset drops all buffered events.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.events = nil
}
