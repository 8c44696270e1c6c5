package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dockpulse/internal/model"
	"dockpulse/internal/system"
)

type HostSource interface {
	Read(ctx context.Context) (system.HostCounters, error)
}

// HostCollector turns raw host counters into a HostSnapshot.
type HostCollector struct {
	source HostSource
	logger *slog.Logger
	now    func() time.Time
}

func NewHostCollector(source HostSource, logger *slog.Logger) *HostCollector {
	return &HostCollector{source: source, logger: logger, now: time.Now}
}

// Sample never returns a partial snapshot as an error: groups that failed to read
// are zero. ErrSampleFailure is returned only when the source is entirely unreachable.
func (c *HostCollector) Sample(ctx context.Context) (model.HostSnapshot, error) {
	raw, err := c.source.Read(ctx)
	if err != nil {
		return model.HostSnapshot{}, fmt.Errorf("%w: %w", ErrSampleFailure, err)
	}
	for _, e := range raw.Errors {
		c.logger.Debug("host counter group unavailable", "error", e)
	}
	return hostSnapshotFromCounters(raw, c.now().UTC()), nil
}

func hostSnapshotFromCounters(raw system.HostCounters, now time.Time) model.HostSnapshot {
	var uptime int64
	if !raw.Info.BootTime.IsZero() {
		uptime = int64(now.Sub(raw.Info.BootTime).Seconds())
		if uptime < 0 {
			uptime = 0
		}
	}

	return model.HostSnapshot{
		CPU: model.HostCPU{
			Percent:   round(raw.CPU.Percent, 1),
			Count:     raw.CPU.LogicalCores,
			Frequency: round(raw.CPU.FrequencyMHz, 2),
		},
		Memory: model.HostMemory{
			Total:     raw.Memory.TotalBytes,
			Available: raw.Memory.AvailableBytes,
			Percent:   round(raw.Memory.UsedPercent, 1),
			Used:      raw.Memory.UsedBytes,
		},
		Swap: model.HostSwap{
			Total:   raw.Swap.TotalBytes,
			Used:    raw.Swap.UsedBytes,
			Percent: round(raw.Swap.UsedPercent, 1),
		},
		Disk: model.HostDisk{
			Total:   raw.Disk.TotalBytes,
			Used:    raw.Disk.UsedBytes,
			Free:    raw.Disk.FreeBytes,
			Percent: round(percentOf(raw.Disk.UsedBytes, raw.Disk.TotalBytes), 1),
		},
		Network: model.HostNetwork{
			BytesSent:   raw.Net.TxBytes,
			BytesRecv:   raw.Net.RxBytes,
			PacketsSent: raw.Net.TxPackets,
			PacketsRecv: raw.Net.RxPackets,
		},
		System: model.HostSystem{
			Platform:        raw.Info.Platform,
			PlatformVersion: raw.Info.PlatformVersion,
			Architecture:    raw.Info.Architecture,
			Hostname:        raw.Info.Hostname,
			UptimeSeconds:   uptime,
		},
		Timestamp: now,
	}
}
