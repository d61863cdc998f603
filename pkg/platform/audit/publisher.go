package audit

import "context"

// Publisher emits audit events to a durable sink.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Noop discards all events. Used when no broker is configured; structured
// logs remain the only record.
type Noop struct{}

func (Noop) Emit(context.Context, Event) error { return nil }
