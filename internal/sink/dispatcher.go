package sink

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/mirage/internal/event"
)

// registration pairs a named sink with its topic routing.
type registration struct {
	name   string
	sink   Sink
	topics map[string]string
}

// topic resolves the destination topic for a schema. Unmapped schemas
// route to a topic named after the schema itself.
func (r registration) topic(schemaName string) string {
	if t, ok := r.topics[schemaName]; ok {
		return t
	}
	return schemaName
}

// Dispatcher fans events out to registered sinks in registration order.
type Dispatcher struct {
	regs []registration
}

// NewDispatcher creates an empty dispatcher. Dispatching with no sinks
// registered silently drops events.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a sink under a unique name. topics maps schema names to
// destination topics; pass nil to route every schema to a topic of its
// own name.
func (d *Dispatcher) Register(name string, s Sink, topics map[string]string) error {
	if name == "" {
		return fmt.Errorf("sink name must not be empty")
	}
	if s == nil {
		return fmt.Errorf("sink %q is nil", name)
	}
	for _, r := range d.regs {
		if r.name == name {
			return fmt.Errorf("duplicate sink: %s", name)
		}
	}
	d.regs = append(d.regs, registration{name: name, sink: s, topics: topics})
	return nil
}

// Dispatch delivers the event to every sink in registration order. A
// failing sink is logged and skipped; the remaining sinks still receive
// the event.
func (d *Dispatcher) Dispatch(ev event.Event) {
	for _, r := range d.regs {
		topic := r.topic(ev.Schema)
		if err := r.sink.Write(ev, topic); err != nil {
			slog.Error("sink write failed",
				"sink", r.name,
				"topic", topic,
				"event_id", ev.ID,
				"error", &SinkError{Sink: r.name, Topic: topic, Err: err},
			)
		}
	}
}

// Close closes every sink in registration order and joins their errors.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, r := range d.regs {
		if err := r.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", r.name, err))
		}
	}
	return errors.Join(errs...)
}
