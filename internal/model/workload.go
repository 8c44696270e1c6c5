package model

import "time"

// WorkloadInfo is what the runtime reports when enumerating running workloads.
type WorkloadInfo struct {
	ID      string
	Name    string
	Image   string
	Status  string
	State   string
	Created time.Time
	Ports   []PortMapping
}

type PortMapping struct {
	ContainerPort string `json:"container_port"`
	HostPort      string `json:"host_port"`
	HostIP        string `json:"host_ip"`
}

// InterfaceCounters are cumulative byte counters for one workload network interface.
type InterfaceCounters struct {
	RxBytes uint64
	TxBytes uint64
}

// WorkloadCounterSample is the raw counter read for one workload at one instant.
// CPUTime and SystemCPUTime share a unit (nanoseconds for every runtime we read).
type WorkloadCounterSample struct {
	CPUTime       uint64
	SystemCPUTime uint64
	OnlineCPUs    uint32
	MemoryUsage   uint64
	MemoryLimit   uint64
	Networks      map[string]InterfaceCounters
	At            time.Time
}

// WorkloadSnapshot is the per-workload entry of a CombinedSnapshot. Usage is nil
// when the counters of the workload could not be read; Error then says why.
type WorkloadSnapshot struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Status string `json:"status"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`

	*WorkloadUsage
}

// WorkloadUsage carries the derived metrics. It is flattened into the snapshot on the wire.
type WorkloadUsage struct {
	Created       time.Time     `json:"created"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Ports         []PortMapping `json:"ports"`
	CPUPercent    float64       `json:"cpu_percent"`
	MemoryPercent float64       `json:"memory_percent"`
	MemoryUsage   uint64        `json:"memory_usage"`
	NetworkRx     uint64        `json:"network_rx"`
	NetworkTx     uint64        `json:"network_tx"`
}

// Failed reports whether the snapshot is in the error form.
func (w WorkloadSnapshot) Failed() bool {
	return w.WorkloadUsage == nil
}

// RuntimeInfo describes the workload runtime the agent is attached to.
type RuntimeInfo struct {
	Runtime          string `json:"runtime"`
	Version          string `json:"version,omitempty"`
	APIVersion       string `json:"api_version,omitempty"`
	Workloads        int    `json:"workloads"`
	WorkloadsRunning int    `json:"workloads_running"`
	WorkloadsPaused  int    `json:"workloads_paused"`
	WorkloadsStopped int    `json:"workloads_stopped"`
	Images           int    `json:"images,omitempty"`
	StorageDriver    string `json:"storage_driver,omitempty"`
	TotalMemory      uint64 `json:"total_memory"`
	CPUs             int    `json:"ncpu"`
}
