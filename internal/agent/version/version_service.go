package version

import (
	"runtime"
	"time"

	"dockpulse/internal/config"
)

func Get(cfg config.Config) *GetVersionResponse {
	return &GetVersionResponse{
		AgentVersion:    cfg.AgentVersion,
		Hostname:        cfg.Hostname,
		WorkloadRuntime: string(cfg.WorkloadRuntime),
		SampleInterval:  cfg.SampleInterval.String(),
		ProbeListenAddr: cfg.ProbeListenAddr,
		GoVersion:       runtime.Version(),
		CheckedAtUnix:   time.Now().UTC().Unix(),
	}
}
