package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/net"
)

type NetCounters struct {
	RxBytes   uint64
	TxBytes   uint64
	RxPackets uint64
	TxPackets uint64
}

// ReadNetCounters returns cumulative counters summed across all interfaces.
func ReadNetCounters(ctx context.Context) (NetCounters, error) {
	stats, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return NetCounters{}, fmt.Errorf("net io counters: %w", err)
	}
	var out NetCounters
	for _, s := range stats {
		out.RxBytes += s.BytesRecv
		out.TxBytes += s.BytesSent
		out.RxPackets += s.PacketsRecv
		out.TxPackets += s.PacketsSent
	}
	return out, nil
}
