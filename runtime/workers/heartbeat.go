package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/RACOAI-Official/ems-realtime/observability"
	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker periodically logs process health (CPU, RAM, status)
// together with the realtime counters, so an operator tailing the logs
// sees queue pressure and drop rates without extra tooling.
type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	queue      interface{ QueueDepth() int }
	interval   time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitoring *observability.MonitoringManager, queue interface{ QueueDepth() int }, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitoring: monitoring, queue: queue, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := w.monitoring.GetLatest()
			w.log.Info("Heartbeat",
				"pid", os.Getpid(),
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"online_users", stats.OnlineUsers,
				"open_connections", stats.OpenConnections,
				"events_delivered", stats.EventsDelivered,
				"events_dropped", stats.EventsDropped,
				"pushes_queued", stats.PushesQueued,
				"pushes_dropped", stats.PushesDropped,
				"push_queue_depth", w.queue.QueueDepth(),
				"alloc_mem_mb", stats.AllocMemMb,
			)
		}
	}
}

// getSelfStats retrieves technical metrics (memory, CPU and OS status)
// for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
