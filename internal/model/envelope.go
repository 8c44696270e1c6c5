package model

import "time"

type MetricType string

const (
	MetricTypeSystemUpdate MetricType = "system_update"
	MetricTypeUnavailable  MetricType = "snapshot_unavailable"
)

// Envelope is transport-agnostic framing for stream payloads.
type Envelope struct {
	Type      MetricType `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Payload   any        `json:"payload"`
}
