package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

type DiskUsage struct {
	Path       string
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
}

func ReadDiskUsage(ctx context.Context, path string) (DiskUsage, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskUsage{}, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return DiskUsage{Path: path, TotalBytes: u.Total, UsedBytes: u.Used, FreeBytes: u.Free}, nil
}
