// Package runtime selects the workload runtime the agent samples.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dockpulse/internal/config"
	"dockpulse/internal/libvirt"
	"dockpulse/internal/model"
	"dockpulse/internal/runtime/docker"
)

// Source is a workload runtime as the agent drives it.
type Source interface {
	Name() string
	List(ctx context.Context) ([]model.WorkloadInfo, error)
	Counters(ctx context.Context, id string) (model.WorkloadCounterSample, error)
	Ping(ctx context.Context) error
	Info(ctx context.Context) (model.RuntimeInfo, error)
	Close() error
}

// Reconnecter is implemented by runtimes that keep a long-lived connection.
type Reconnecter interface {
	Reconnect(ctx context.Context) error
}

var ErrNoRuntime = errors.New("no workload runtime configured")

func New(cfg config.Config, logger *slog.Logger) (Source, error) {
	switch cfg.WorkloadRuntime {
	case config.WorkloadRuntimeDocker:
		src, err := docker.New(logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.WorkloadRuntimeLibvirt:
		conn := libvirt.NewConnManager(cfg.LibvirtURI, cfg.ReconnectInterval, cfg.MaxReconnectJitter, logger)
		return libvirt.NewWorkloadSource(conn, logger), nil
	case config.WorkloadRuntimeNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("unsupported workload runtime %q", cfg.WorkloadRuntime)
	}
}

// None reports no workloads.
type None struct{}

func (None) Name() string {
	return string(config.WorkloadRuntimeNone)
}

func (None) List(context.Context) ([]model.WorkloadInfo, error) {
	return []model.WorkloadInfo{}, nil
}

func (None) Counters(context.Context, string) (model.WorkloadCounterSample, error) {
	return model.WorkloadCounterSample{}, ErrNoRuntime
}

func (None) Ping(context.Context) error {
	return nil
}

func (None) Info(context.Context) (model.RuntimeInfo, error) {
	return model.RuntimeInfo{Runtime: string(config.WorkloadRuntimeNone)}, nil
}

func (None) Close() error {
	return nil
}
