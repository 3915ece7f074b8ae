package processor

import (
	"context"

	"flag-events/internal/event"
)

// NotificationKind tags what a notification is about.
type NotificationKind string

// LogEventDispatched fires after a batch has been handed to the dispatcher
// without error.
const LogEventDispatched NotificationKind = "log_event_dispatched"

// Dispatcher delivers a finalized batch. It may perform network I/O; a
// returned error is logged by the worker and the batch is discarded, never
// retried here.
type Dispatcher interface {
	Dispatch(ctx context.Context, le event.LogEvent) error
}

// NotificationSink is told about every successfully dispatched batch.
type NotificationSink interface {
	Notify(kind NotificationKind, le event.LogEvent)
}

// PayloadFactory finalizes an ordered batch into a wire-ready LogEvent.
type PayloadFactory interface {
	Build(events []event.UserEvent) (event.LogEvent, error)
}
