// Package sink delivers built events to their output destinations.
//
// A Dispatcher fans each event out to every registered sink in registration
// order. Sink failures are contained: a failing sink is logged and skipped
// for that event, and never stops the simulation or the other sinks.
package sink

import (
	"errors"
	"fmt"

	"github.com/roach88/mirage/internal/event"
)

// Sink writes events to one destination. Implementations are used from a
// single goroutine; they do not need to be safe for concurrent use.
type Sink interface {
	// Write delivers one event under the resolved topic.
	Write(ev event.Event, topic string) error

	// Close flushes and releases the destination.
	Close() error
}

// SinkError wraps a delivery failure with the sink and topic it occurred
// on. Dispatch logs these; they are returned only from direct Write calls.
type SinkError struct {
	Sink  string
	Topic string
	Err   error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("SINK_ERROR: sink %s failed on topic %s: %v", e.Sink, e.Topic, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *SinkError) Unwrap() error { return e.Err }

// IsSinkError reports whether err is a delivery failure.
// Uses errors.As to handle wrapped errors.
func IsSinkError(err error) bool {
	var se *SinkError
	return errors.As(err, &se)
}
