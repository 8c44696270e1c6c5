package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"dockpulse/internal/model"
	"dockpulse/internal/snapshot"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// latest writes the 503 response itself when no snapshot exists yet.
func (h *handlers) latest(w http.ResponseWriter) (*model.CombinedSnapshot, bool) {
	snap, err := h.opts.Snapshots.Get()
	if err != nil {
		if errors.Is(err, snapshot.ErrNotYetAvailable) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return nil, false
	}
	return snap, true
}

func (h *handlers) system(w http.ResponseWriter, _ *http.Request) {
	if snap, ok := h.latest(w); ok {
		writeJSON(w, http.StatusOK, snap.Host)
	}
}

func (h *handlers) services(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	services := snap.Workloads
	if services == nil {
		services = []model.WorkloadSnapshot{}
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *handlers) snapshot(w http.ResponseWriter, _ *http.Request) {
	if snap, ok := h.latest(w); ok {
		writeJSON(w, http.StatusOK, snap)
	}
}

func (h *handlers) runtime(w http.ResponseWriter, r *http.Request) {
	if h.opts.Runtime == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "workload runtime not available"})
		return
	}
	info, err := h.opts.Runtime.Info(r.Context())
	if err != nil {
		h.opts.Logger.Debug("runtime info failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handlers) version(w http.ResponseWriter, _ *http.Request) {
	if h.opts.Version == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "version not available"})
		return
	}
	writeJSON(w, http.StatusOK, h.opts.Version())
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	if h.opts.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"healthy": true})
		return
	}
	status := http.StatusOK
	if !h.opts.Health.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h.opts.Health.Snapshot())
}
