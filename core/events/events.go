package events

import "tokensale/core/types"

// Event represents a structured notification emitted by the sale engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (RPC streams, audit
// sinks). Delivery is fire-and-forget: emitters must never block or fail the
// operation that produced the event.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// It is the default for components that expose events optionally.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// CollectingEmitter accumulates emitted events in order. Intended for tests
// and for batch draining by an RPC layer.
type CollectingEmitter struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (c *CollectingEmitter) Emit(evt Event) {
	if c == nil || evt == nil {
		return
	}
	c.Events = append(c.Events, evt)
}

var _ Emitter = NoopEmitter{}
var _ Emitter = (*CollectingEmitter)(nil)

func addr(a types.Address) string { return a.Hex() }
