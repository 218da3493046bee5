package workers

import "chat-relay/observability"

func observabilityManager() *observability.MonitoringManager {
	return observability.NewMonitoringManager(nil)
}
