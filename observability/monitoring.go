package observability

import (
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

// MonitoringStats is a point-in-time snapshot of the realtime core.
type MonitoringStats struct {
	EventsDelivered  uint64 `json:"events_delivered"`
	EventsDropped    uint64 `json:"events_dropped"`
	PushesQueued     uint64 `json:"pushes_queued"`
	PushesDropped    uint64 `json:"pushes_dropped"`
	PresenceChanges  uint64 `json:"presence_changes"`
	MessagesStored   uint64 `json:"messages_stored"`
	OnlineUsers      int    `json:"online_users"`
	OpenConnections  int    `json:"open_connections"`
	AllocMemMb       uint64 `json:"alloc_mem_mb"`
	NumGC            uint32 `json:"num_gc"`
	CollectedAt      time.Time
}

// Occupancy reports live registry sizes for the snapshot.
type Occupancy interface {
	UserCount() int
	TotalConnections() int
}

// MonitoringManager aggregates counters from the broadcaster, the push
// queue and the presence tracker. Counters are cumulative since start.
type MonitoringManager struct {
	log       *slog.Logger
	occupancy Occupancy

	eventsDelivered uint64
	eventsDropped   uint64
	pushesQueued    uint64
	pushesDropped   uint64
	presenceChanges uint64
	messagesStored  uint64
}

func NewMonitoringManager(log *slog.Logger, occupancy Occupancy) *MonitoringManager {
	return &MonitoringManager{log: log, occupancy: occupancy}
}

func (mm *MonitoringManager) IncrEventsDelivered() {
	atomic.AddUint64(&mm.eventsDelivered, 1)
}

func (mm *MonitoringManager) IncrEventsDropped() {
	atomic.AddUint64(&mm.eventsDropped, 1)
}

func (mm *MonitoringManager) IncrPushesQueued() {
	atomic.AddUint64(&mm.pushesQueued, 1)
}

func (mm *MonitoringManager) IncrPushesDropped() {
	atomic.AddUint64(&mm.pushesDropped, 1)
}

func (mm *MonitoringManager) IncrPresenceChanges() {
	atomic.AddUint64(&mm.presenceChanges, 1)
}

func (mm *MonitoringManager) IncrMessagesStored() {
	atomic.AddUint64(&mm.messagesStored, 1)
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := MonitoringStats{
		EventsDelivered: atomic.LoadUint64(&mm.eventsDelivered),
		EventsDropped:   atomic.LoadUint64(&mm.eventsDropped),
		PushesQueued:    atomic.LoadUint64(&mm.pushesQueued),
		PushesDropped:   atomic.LoadUint64(&mm.pushesDropped),
		PresenceChanges: atomic.LoadUint64(&mm.presenceChanges),
		MessagesStored:  atomic.LoadUint64(&mm.messagesStored),
		AllocMemMb:      m.Alloc / 1024 / 1024,
		NumGC:           m.NumGC,
		CollectedAt:     time.Now().UTC(),
	}
	if mm.occupancy != nil {
		stats.OnlineUsers = mm.occupancy.UserCount()
		stats.OpenConnections = mm.occupancy.TotalConnections()
	}
	return stats
}
