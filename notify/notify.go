/*
Package notify is the boundary to the email/SMS dispatcher.

Dispatch is invoked fire-and-forget after a successful state transition.
A dispatch failure must never roll back the transition: callers log the
error and continue. The production implementation lives behind this
interface; the core ships a zap-logging dispatcher and a no-op for tests.
*/
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Event describes one notification-worthy state change.
type Event struct {
	FarmID  string
	Kind    string // e.g. "timeoff.approved", "task.alert"
	Subject string // the entity id the event concerns
	Actor   string
	Detail  map[string]string
}

// Dispatcher delivers events to members. Implementations must not block
// longer than the request; delivery is best-effort.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event) error
}

// LogDispatcher writes events to the structured log instead of delivering
// them. Used in development and as the default wiring.
type LogDispatcher struct {
	Log *zap.Logger
}

func (d *LogDispatcher) Dispatch(_ context.Context, e Event) error {
	d.Log.Info("notification",
		zap.String("farm_id", e.FarmID),
		zap.String("kind", e.Kind),
		zap.String("subject", e.Subject),
		zap.String("actor", e.Actor),
		zap.Any("detail", e.Detail),
	)
	return nil
}

// Noop discards every event.
type Noop struct{}

func (Noop) Dispatch(context.Context, Event) error { return nil }
