// Package history exports lifecycle events of the supervised process to an
// append-only sink. Nothing is ever read back.
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/procwatch/internal/process"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
	EventExit  EventType = "exit"
)

// Event is one row of process history.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	PID        int       `json:"pid"`
	ExitCode   *int      `json:"exit_code,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// FromProcess converts a process lifecycle event.
func FromProcess(e process.Event) Event {
	out := Event{
		Type:       EventType(e.Type),
		OccurredAt: e.OccurredAt,
		Name:       e.Name,
		PID:        e.PID,
	}
	if e.Type == process.EventExit {
		code := e.ExitCode
		out.ExitCode = &code
	}
	return out
}

// Observer returns a process observer that forwards events to sink, bounding
// each write by timeout. Failures are logged and otherwise ignored.
func Observer(sink Sink, timeout time.Duration, log *slog.Logger) func(process.Event) {
	if log == nil {
		log = slog.Default()
	}
	return func(e process.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := sink.Send(ctx, FromProcess(e)); err != nil {
			log.Warn("history write failed", "event", e.Type, "error", err)
		}
	}
}
