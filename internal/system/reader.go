package system

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned by Read when no counter group could be read at all.
var ErrUnavailable = errors.New("host counters unavailable")

// HostCounters is one raw read of the host counter interface. A group that
// failed to read is left zero and its error recorded in Errors.
type HostCounters struct {
	CPU    CPUCounters
	Memory MemoryInfo
	Swap   SwapInfo
	Disk   DiskUsage
	Net    NetCounters
	Info   PlatformInfo
	ReadAt time.Time
	Errors []error
}

// Reader reads host counters through gopsutil.
type Reader struct {
	diskPath string
}

func NewReader(diskPath string) *Reader {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Reader{diskPath: diskPath}
}

func (r *Reader) Read(ctx context.Context) (HostCounters, error) {
	out := HostCounters{ReadAt: time.Now().UTC()}
	failed := 0
	groups := 0
	note := func(group string, err error) {
		groups++
		if err != nil {
			failed++
			out.Errors = append(out.Errors, fmt.Errorf("%s: %w", group, err))
		}
	}

	var err error
	out.CPU, err = ReadCPUCounters(ctx)
	note("cpu", err)
	out.Memory, err = ReadMemoryInfo(ctx)
	note("memory", err)
	out.Swap, err = ReadSwapInfo(ctx)
	note("swap", err)
	out.Disk, err = ReadDiskUsage(ctx, r.diskPath)
	note("disk", err)
	out.Net, err = ReadNetCounters(ctx)
	note("network", err)
	out.Info, err = ReadPlatformInfo(ctx)
	note("platform", err)

	if failed == groups {
		return HostCounters{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(out.Errors...))
	}
	return out, nil
}
