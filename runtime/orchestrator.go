// Package runtime holds the delivery core: presence, status transitions, contact list and
// history paging, plus the orchestration of the background workers that push notifications.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"time"
)

const (
	// The queue length is sampled this many times per heartbeat.
	capacitySamples    = 6
	queueHighWatermark = 80
)

// Orchestrator queues notifications and runs the supervised workers draining them.
// It implements contract.IPublisher.
type Orchestrator struct {
	log               *slog.Logger
	supervisor        contract.ISupervisor
	registry          contract.IPresenceRegistry
	notifier          contract.Notifier
	monitoring        *observability.MonitoringManager
	events            chan event.Event
	heartbeatInterval time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IPresenceRegistry, notifier contract.Notifier,
	monitoring *observability.MonitoringManager,
	bufferSize int, heartbeatInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:               log,
		supervisor:        supervisor,
		registry:          registry,
		notifier:          notifier,
		monitoring:        monitoring,
		events:            make(chan event.Event, bufferSize),
		heartbeatInterval: heartbeatInterval,
	}
}

// Publish never blocks: when the queue is full the notification is dropped.
// The message status is already stored, clients catch up on their next fetch.
func (o *Orchestrator) Publish(evt event.Event) {
	select {
	case o.events <- evt:
	default:
		o.monitoring.IncrMissed()
		o.log.Warn("Event channel full, dropping notification",
			"event", evt.Name(), "audience", evt.Audience())
	}
}

// Start registers the workers to the supervisor and blocks until ctx is canceled or Stop is called.
// A single fan-out worker drains the queue, keeping notifications in publication order.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.supervisor.Add(
		workers.NewEventFanout(o.log, o.events, o.registry, o.notifier, o.monitoring),
	)
	if o.heartbeatInterval > 0 {
		o.supervisor.Add(
			workers.NewHeartbeatWorker(o.log, o.monitoring, o.heartbeatInterval),
			workers.NewChannelCapacityWorker(o.log,
				[]workers.NamedChannel{{Name: "events", Channel: o.events}},
				o.monitoring, o.heartbeatInterval/capacitySamples, queueHighWatermark),
		)
	}

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised context, workers return and Start unblocks.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
