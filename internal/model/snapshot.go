package model

import "time"

// CombinedSnapshot is the unit stored in the snapshot cache and broadcast to observers.
type CombinedSnapshot struct {
	Host        HostSnapshot       `json:"host"`
	Workloads   []WorkloadSnapshot `json:"workloads"`
	GeneratedAt time.Time          `json:"generated_at"`
}
