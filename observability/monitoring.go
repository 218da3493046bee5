package observability

import (
	"runtime"
	"sync/atomic"
)

// MonitoringStats aggregates delivery counters and process metrics for /debug/stats.
type MonitoringStats struct {
	// --- DELIVERY METRICS ---
	MessagesSent        uint64 `json:"messages_sent"`
	MessagesDelivered   uint64 `json:"messages_delivered"`
	MessagesRead        uint64 `json:"messages_read"`
	NotificationsPushed uint64 `json:"notifications_pushed"`
	NotificationsMissed uint64 `json:"notifications_missed"`
	StoreFailures       uint64 `json:"store_failures"`
	QueuedNotifications int64  `json:"queued_notifications"`

	// --- PRESENCE METRICS ---
	OpenConnections int64 `json:"open_connections"`
	OnlineUsers     int   `json:"online_users"`

	// --- SYSTEM METRICS ---
	AllocMemMb uint64 `json:"alloc_mem_mb"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

// MonitoringManager holds the counters. Every method is safe for concurrent use.
type MonitoringManager struct {
	sent        atomic.Uint64
	delivered   atomic.Uint64
	read        atomic.Uint64
	pushed      atomic.Uint64
	missed      atomic.Uint64
	storeFailed atomic.Uint64
	connections atomic.Int64
	queued      atomic.Int64
	onlineUsers func() int
}

// NewMonitoringManager takes the function reporting how many users are online.
func NewMonitoringManager(onlineUsers func() int) *MonitoringManager {
	return &MonitoringManager{onlineUsers: onlineUsers}
}

func (mm *MonitoringManager) IncrSent() { mm.sent.Add(1) }
func (mm *MonitoringManager) IncrDelivered(n int) { mm.delivered.Add(uint64(n)) }
func (mm *MonitoringManager) IncrRead(n int) { mm.read.Add(uint64(n)) }
func (mm *MonitoringManager) IncrPushed() { mm.pushed.Add(1) }
func (mm *MonitoringManager) IncrMissed() { mm.missed.Add(1) }
func (mm *MonitoringManager) IncrStoreFailure() { mm.storeFailed.Add(1) }
func (mm *MonitoringManager) ConnectionOpened() { mm.connections.Add(1) }
func (mm *MonitoringManager) ConnectionClosed() { mm.connections.Add(-1) }
func (mm *MonitoringManager) SetQueued(n int) { mm.queued.Store(int64(n)) }
func (mm *MonitoringManager) NotificationsMissed() uint64 { return mm.missed.Load() }

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := MonitoringStats{
		MessagesSent:        mm.sent.Load(),
		MessagesDelivered:   mm.delivered.Load(),
		MessagesRead:        mm.read.Load(),
		NotificationsPushed: mm.pushed.Load(),
		NotificationsMissed: mm.missed.Load(),
		StoreFailures:       mm.storeFailed.Load(),
		QueuedNotifications: mm.queued.Load(),
		OpenConnections:     mm.connections.Load(),
		AllocMemMb:          m.Alloc / 1024 / 1024,
		NumGC:               m.NumGC,
		Goroutines:          runtime.NumGoroutine(),
	}
	if mm.onlineUsers != nil {
		stats.OnlineUsers = mm.onlineUsers()
	}
	return stats
}
