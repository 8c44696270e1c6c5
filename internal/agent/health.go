package agent

import (
	"sync/atomic"
	"time"

	"dockpulse/internal/model"
)

type HealthStatus struct {
	runtimeConnected   atomic.Bool
	forwarderConnected atomic.Bool
	lastCycleAt        atomic.Int64
	runtime            string
	maxCycleAge        time.Duration
	observers          func() int
}

// NewHealthStatus reports unhealthy once no cycle has completed for maxCycleAge.
func NewHealthStatus(runtime string, maxCycleAge time.Duration, observers func() int) *HealthStatus {
	if observers == nil {
		observers = func() int { return 0 }
	}
	return &HealthStatus{runtime: runtime, maxCycleAge: maxCycleAge, observers: observers}
}

func (h *HealthStatus) SetRuntimeConnected(ok bool) {
	h.runtimeConnected.Store(ok)
}

func (h *HealthStatus) SetForwarderConnected(ok bool) {
	h.forwarderConnected.Store(ok)
}

func (h *HealthStatus) MarkCycle(ts time.Time) {
	h.lastCycleAt.Store(ts.UnixNano())
}

func (h *HealthStatus) LastCycleAt() time.Time {
	v := h.lastCycleAt.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

func (h *HealthStatus) Healthy() bool {
	last := h.LastCycleAt()
	if last.IsZero() {
		return false
	}
	return h.maxCycleAge <= 0 || time.Since(last) <= h.maxCycleAge
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"healthy":             h.Healthy(),
		"workload_runtime":    h.runtime,
		"runtime_connected":   h.runtimeConnected.Load(),
		"forwarder_connected": h.forwarderConnected.Load(),
		"observers":           h.observers(),
	}
	if last := h.LastCycleAt(); !last.IsZero() {
		out["last_cycle_at"] = last
	}
	return out
}

// healthStore marks every installed snapshot on the health status before
// handing it to the cache.
type healthStore struct {
	store interface {
		Set(snap *model.CombinedSnapshot)
	}
	health *HealthStatus
}

func (s *healthStore) Set(snap *model.CombinedSnapshot) {
	s.store.Set(snap)
	if snap != nil {
		s.health.MarkCycle(snap.GeneratedAt)
	}
}
