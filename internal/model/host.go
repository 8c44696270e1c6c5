package model

import "time"

// HostSnapshot is one host sample. Values are immutable once the sampler returns it.
type HostSnapshot struct {
	CPU       HostCPU     `json:"cpu"`
	Memory    HostMemory  `json:"memory"`
	Swap      HostSwap    `json:"swap"`
	Disk      HostDisk    `json:"disk"`
	Network   HostNetwork `json:"network"`
	System    HostSystem  `json:"system"`
	Timestamp time.Time   `json:"timestamp"`
}

type HostCPU struct {
	Percent   float64 `json:"percent"`
	Count     int     `json:"count"`
	Frequency float64 `json:"frequency"`
}

type HostMemory struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Percent   float64 `json:"percent"`
	Used      uint64  `json:"used"`
}

type HostSwap struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Percent float64 `json:"percent"`
}

type HostDisk struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// HostNetwork holds cumulative counters at sample time, summed over all interfaces.
type HostNetwork struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
}

type HostSystem struct {
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	Architecture    string `json:"architecture"`
	Hostname        string `json:"hostname"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
}
