package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically samples the length of the notification queues.
// Reading len(channel) and cap(channel) is non-blocking, so this won't interfere
// with the goroutines producing or draining them.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	monitoring     *observability.MonitoringManager
	metricInterval time.Duration
	// highWatermark is the fill ratio, in percent, above which a queue is reported.
	highWatermark int
}

func NewChannelCapacityWorker(log *slog.Logger,
	channels []NamedChannel, monitoring *observability.MonitoringManager,
	metricInterval time.Duration, highWatermark int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log: log, channels: channels,
		monitoring:     monitoring,
		metricInterval: metricInterval,
		highWatermark:  highWatermark,
	}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			queued := 0
			for _, nc := range w.channels {
				v := reflect.ValueOf(nc.Channel)
				// Verify if this is a channel
				if v.Kind() != reflect.Chan {
					w.log.Error("Provided object is not a channel", "name", nc.Name)
					continue
				}
				capacity, length := v.Cap(), v.Len()
				queued += length
				if capacity > 0 && length*100 >= capacity*w.highWatermark {
					w.log.Warn("Notification queue filling up",
						"name", nc.Name, "length", length, "capacity", capacity)
				}
			}
			w.monitoring.SetQueued(queued)
		}
	}
}
