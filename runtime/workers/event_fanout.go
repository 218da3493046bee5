package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
)

// EventFanout pushes each queued event to every live handle of its audience.
//
// It is best effort: a stale handle or a full connection queue is a delivery miss,
// logged and counted, never retried. Statuses are already stored, the push only
// saves clients a round trip.
//
// Events are consumed one at a time in queue order, so two events for the same
// handle arrive in the order they were published.
type EventFanout struct {
	log        *slog.Logger
	events     <-chan event.Event
	registry   contract.IPresenceRegistry
	notifier   contract.Notifier
	monitoring *observability.MonitoringManager
}

func NewEventFanout(log *slog.Logger, events <-chan event.Event, registry contract.IPresenceRegistry,
	notifier contract.Notifier, monitoring *observability.MonitoringManager) *EventFanout {
	return &EventFanout{
		log:        log,
		events:     events,
		registry:   registry,
		notifier:   notifier,
		monitoring: monitoring,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fan-out")
			return nil
		}
	}
}

// Fanout One push for each handle of the audience
func (w *EventFanout) Fanout(evt event.Event) {
	for _, handle := range w.registry.HandlesFor(evt.Audience()) {
		if err := w.notifier.Notify(handle, evt.Name(), evt.Payload()); err != nil {
			w.monitoring.IncrMissed()
			w.log.Debug("Notification dropped", "event", evt.Name(), "handle", handle, "error", err)
			continue
		}
		w.monitoring.IncrPushed()
	}
}
