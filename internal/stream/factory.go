package stream

import (
	"log/slog"

	"dockpulse/internal/config"
	"dockpulse/internal/metrics"
)

// NewForwarderFromConfig returns nil when forwarding is not configured.
func NewForwarderFromConfig(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*Forwarder, error) {
	if cfg.ForwardGRPCAddr == "" {
		return nil, nil
	}
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	return NewForwarder(cfg.ForwardGRPCAddr, cfg.ForwardGRPCMethod, cfg.ForwardToken, tlsCfg, logger, m), nil
}
