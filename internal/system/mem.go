package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

type MemoryInfo struct {
	TotalBytes     uint64
	AvailableBytes uint64
	UsedBytes      uint64
	UsedPercent    float64
}

type SwapInfo struct {
	TotalBytes  uint64
	UsedBytes   uint64
	UsedPercent float64
}

func ReadMemoryInfo(ctx context.Context) (MemoryInfo, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("virtual memory: %w", err)
	}
	return MemoryInfo{
		TotalBytes:     v.Total,
		AvailableBytes: v.Available,
		UsedBytes:      v.Used,
		UsedPercent:    v.UsedPercent,
	}, nil
}

func ReadSwapInfo(ctx context.Context) (SwapInfo, error) {
	s, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return SwapInfo{}, fmt.Errorf("swap memory: %w", err)
	}
	return SwapInfo{TotalBytes: s.Total, UsedBytes: s.Used, UsedPercent: s.UsedPercent}, nil
}
