package workers

import (
	"chat-relay/domain"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Counter is anything able to tell who is connected and since when.
type Counter interface {
	Len() int
	Sessions() []domain.Session
}

// Stats is a point-in-time view of the server process.
type Stats struct {
	Participants int     `json:"participants"`
	RSSBytes     uint64  `json:"rss_bytes"`
	CPUPercent   float64 `json:"cpu_percent"`
	Uptime       string  `json:"uptime"`
	// OldestSession is the participant connected the longest, empty when nobody is.
	OldestSession  string `json:"oldest_session,omitempty"`
	OldestJoinedAt string `json:"oldest_joined_at,omitempty"`
}

// HeartbeatWorker periodically logs participant count and process resource usage.
type HeartbeatWorker struct {
	log      *slog.Logger
	counter  Counter
	interval time.Duration
	started  time.Time
}

func NewHeartbeatWorker(log *slog.Logger, counter Counter, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, counter: counter, interval: interval, started: time.Now()}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping heartbeat")
			return nil
		case <-ticker.C:
			stats, err := CollectStats(p, w.counter, w.started)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("Heartbeat",
				"participants", stats.Participants,
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent,
				"uptime", stats.Uptime,
				"oldest_session", stats.OldestSession,
				"oldest_joined_at", stats.OldestJoinedAt)
		}
	}
}

// CollectStats reads memory and CPU usage of p together with the participant count.
func CollectStats(p *process.Process, counter Counter, started time.Time) (Stats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return Stats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Participants: counter.Len(),
		RSSBytes:     memInfo.RSS,
		CPUPercent:   cpuPercent,
		Uptime:       time.Since(started).Round(time.Second).String(),
	}
	if sessions := counter.Sessions(); len(sessions) > 0 {
		stats.OldestSession = sessions[0].Name.String()
		stats.OldestJoinedAt = domain.ISOTimestamp(sessions[0].JoinedAt)
	}
	return stats, nil
}

// SelfStats collects Stats for the current process.
func SelfStats(counter Counter, started time.Time) (Stats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return Stats{}, err
	}
	return CollectStats(p, counter, started)
}
