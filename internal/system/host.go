package system

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

type PlatformInfo struct {
	Platform        string
	PlatformVersion string
	Architecture    string
	Hostname        string
	BootTime        time.Time
}

func ReadPlatformInfo(ctx context.Context) (PlatformInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return PlatformInfo{}, fmt.Errorf("host info: %w", err)
	}
	arch := info.KernelArch
	if arch == "" {
		arch = runtime.GOARCH
	}
	out := PlatformInfo{
		Platform:        info.OS,
		PlatformVersion: info.KernelVersion,
		Architecture:    arch,
		Hostname:        info.Hostname,
	}
	if info.BootTime > 0 {
		out.BootTime = time.Unix(int64(info.BootTime), 0).UTC()
	}
	return out, nil
}
