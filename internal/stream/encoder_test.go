package stream_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockpulse/internal/model"
	"dockpulse/internal/stream"
)

func TestEnvelopeForSnapshot(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := &model.CombinedSnapshot{
		Host: model.HostSnapshot{CPU: model.HostCPU{Percent: 12.5, Count: 4}},
		Workloads: []model.WorkloadSnapshot{
			{ID: "abc123def456", Name: "web", WorkloadUsage: &model.WorkloadUsage{CPUPercent: 1.5, Ports: []model.PortMapping{}}},
			{ID: "0123456789ab", Name: "db", Error: "stats unavailable"},
		},
		GeneratedAt: at,
	}

	raw, err := stream.EncodeEnvelope(stream.NewEnvelope(snap, time.Now()))
	require.NoError(t, err)

	var got struct {
		Type      string    `json:"type"`
		Timestamp time.Time `json:"timestamp"`
		Payload   struct {
			Stats struct {
				CPU struct {
					Percent float64 `json:"percent"`
				} `json:"cpu"`
			} `json:"stats"`
			Services  []map[string]any `json:"services"`
			Timestamp time.Time        `json:"timestamp"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, "system_update", got.Type)
	assert.Equal(t, at, got.Timestamp)
	assert.Equal(t, 12.5, got.Payload.Stats.CPU.Percent)
	require.Len(t, got.Payload.Services, 2)
	assert.Equal(t, 1.5, got.Payload.Services[0]["cpu_percent"])
	assert.NotContains(t, got.Payload.Services[0], "error")
	assert.Equal(t, "stats unavailable", got.Payload.Services[1]["error"])
	assert.NotContains(t, got.Payload.Services[1], "cpu_percent")
	assert.NotContains(t, got.Payload.Services[1], "uptime_seconds")
}

func TestEnvelopeBeforeFirstSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := stream.EncodeEnvelope(stream.NewEnvelope(nil, now))
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"type":"snapshot_unavailable","timestamp":"2026-03-01T12:00:00Z","payload":{"error":"snapshot not yet available"}}`,
		string(raw),
	)
}

func TestUpdateFrameNeverHasNullServices(t *testing.T) {
	t.Parallel()

	frame := stream.NewUpdateFrame(&model.CombinedSnapshot{})
	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"services":[]`)
}
