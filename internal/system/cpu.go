package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
)

type CPUCounters struct {
	Percent      float64
	LogicalCores int
	FrequencyMHz float64
}

// ReadCPUCounters reports utilisation since the previous call. The first call
// in a process compares against boot-time counters.
func ReadCPUCounters(ctx context.Context) (CPUCounters, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return CPUCounters{}, fmt.Errorf("cpu percent: %w", err)
	}
	out := CPUCounters{}
	if len(pct) > 0 {
		out.Percent = pct[0]
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		out.LogicalCores = n
	}
	// frequency is optional; some virtualised hosts do not expose it
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		out.FrequencyMHz = infos[0].Mhz
	}
	return out, nil
}
