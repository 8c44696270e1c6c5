package stream

import (
	"encoding/json"
	"time"

	"dockpulse/internal/model"
)

// UpdateFrame is the payload of a system_update envelope as dashboards consume it.
type UpdateFrame struct {
	Stats     model.HostSnapshot       `json:"stats"`
	Services  []model.WorkloadSnapshot `json:"services"`
	Timestamp time.Time                `json:"timestamp"`
}

// UnavailableFrame is sent in place of an UpdateFrame before the first cycle completes.
type UnavailableFrame struct {
	Error string `json:"error"`
}

func NewUpdateFrame(snap *model.CombinedSnapshot) UpdateFrame {
	services := snap.Workloads
	if services == nil {
		services = []model.WorkloadSnapshot{}
	}
	return UpdateFrame{Stats: snap.Host, Services: services, Timestamp: snap.GeneratedAt}
}

// NewEnvelope wraps snap for push transports. A nil snap yields a
// snapshot_unavailable envelope stamped with now.
func NewEnvelope(snap *model.CombinedSnapshot, now time.Time) model.Envelope {
	if snap == nil {
		return model.Envelope{
			Type:      model.MetricTypeUnavailable,
			Timestamp: now.UTC(),
			Payload:   UnavailableFrame{Error: "snapshot not yet available"},
		}
	}
	return model.Envelope{
		Type:      model.MetricTypeSystemUpdate,
		Timestamp: snap.GeneratedAt,
		Payload:   NewUpdateFrame(snap),
	}
}

func EncodeEnvelope(e model.Envelope) ([]byte, error) {
	return json.Marshal(e)
}
