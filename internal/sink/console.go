package sink

import (
	"fmt"
	"io"

	"github.com/roach88/mirage/internal/event"
)

// Console writes one canonically-encoded JSON line per event to a writer,
// prefixed with the topic. Intended for interactive runs on stdout.
type Console struct {
	w io.Writer
}

// NewConsole creates a console sink over w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Write emits "topic: {...}\n".
func (c *Console) Write(ev event.Event, topic string) error {
	data, err := event.MarshalRecord(ev.Record())
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	if _, err := fmt.Fprintf(c.w, "%s: %s\n", topic, data); err != nil {
		return fmt.Errorf("write event %s: %w", ev.ID, err)
	}
	return nil
}

// Close is a no-op; the writer is owned by the caller.
func (c *Console) Close() error { return nil }
