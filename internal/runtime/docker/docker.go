// Package docker reads workload enumeration and counters from a Docker engine.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"dockpulse/internal/model"
)

const (
	RuntimeName  = "docker"
	shortIDLen    = 12
	unknownImage  = "unknown"
	imageIDPrefix = "sha256:"
)

type Source struct {
	cli    *client.Client
	logger *slog.Logger
}

// New connects lazily: the engine is not contacted until the first call.
// Without opts the client is configured from DOCKER_HOST and friends.
func New(logger *slog.Logger, opts ...client.Opt) (*Source, error) {
	if len(opts) == 0 {
		opts = []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Source{cli: cli, logger: logger}, nil
}

func (s *Source) Name() string {
	return RuntimeName
}

func (s *Source) List(ctx context.Context) ([]model.WorkloadInfo, error) {
	containers, err := s.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]model.WorkloadInfo, 0, len(containers))
	tags := map[string]string{}
	for _, c := range containers {
		info := workloadFromSummary(c)
		if strings.HasPrefix(c.Image, imageIDPrefix) {
			info.Image = s.imageTag(ctx, c.Image, tags)
		}
		out = append(out, info)
	}
	return out, nil
}

// imageTag resolves a container created from a bare image id to the image's
// first repo tag. Lookups are memoised in seen for the duration of one List.
func (s *Source) imageTag(ctx context.Context, ref string, seen map[string]string) string {
	if tag, ok := seen[ref]; ok {
		return tag
	}
	tag := unknownImage
	img, err := s.cli.ImageInspect(ctx, ref)
	switch {
	case err != nil:
		s.logger.Debug("image inspect failed", "image", ref, "error", err)
	case len(img.RepoTags) > 0:
		tag = img.RepoTags[0]
	}
	seen[ref] = tag
	return tag
}

func (s *Source) Counters(ctx context.Context, id string) (model.WorkloadCounterSample, error) {
	resp, err := s.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return model.WorkloadCounterSample{}, fmt.Errorf("stats %s: %w", id, err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return model.WorkloadCounterSample{}, fmt.Errorf("decode stats %s: %w", id, err)
	}
	return sampleFromStats(stats, time.Now().UTC()), nil
}

func (s *Source) Ping(ctx context.Context) error {
	if _, err := s.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	return nil
}

func (s *Source) Info(ctx context.Context) (model.RuntimeInfo, error) {
	info, err := s.cli.Info(ctx)
	if err != nil {
		return model.RuntimeInfo{}, fmt.Errorf("docker info: %w", err)
	}
	ver, err := s.cli.ServerVersion(ctx)
	if err != nil {
		return model.RuntimeInfo{}, fmt.Errorf("docker version: %w", err)
	}
	return model.RuntimeInfo{
		Runtime:          RuntimeName,
		Version:          ver.Version,
		APIVersion:       ver.APIVersion,
		Workloads:        info.Containers,
		WorkloadsRunning: info.ContainersRunning,
		WorkloadsPaused:  info.ContainersPaused,
		WorkloadsStopped: info.ContainersStopped,
		Images:           info.Images,
		StorageDriver:    info.Driver,
		TotalMemory:      uint64(max(info.MemTotal, 0)),
		CPUs:             info.NCPU,
	}, nil
}

func (s *Source) Close() error {
	return s.cli.Close()
}

func workloadFromSummary(c container.Summary) model.WorkloadInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	image := c.Image
	if image == "" {
		image = unknownImage
	}
	var created time.Time
	if c.Created > 0 {
		created = time.Unix(c.Created, 0).UTC()
	}

	ports := make([]model.PortMapping, 0, len(c.Ports))
	for _, p := range c.Ports {
		if p.PublicPort == 0 {
			continue
		}
		ports = append(ports, model.PortMapping{
			ContainerPort: fmt.Sprintf("%d/%s", p.PrivatePort, p.Type),
			HostPort:      strconv.Itoa(int(p.PublicPort)),
			HostIP:        p.IP,
		})
	}

	return model.WorkloadInfo{
		ID:      shortID(c.ID),
		Name:    name,
		Image:   image,
		Status:  c.State,
		State:   c.State,
		Created: created,
		Ports:   ports,
	}
}

func sampleFromStats(st container.StatsResponse, now time.Time) model.WorkloadCounterSample {
	cores := st.CPUStats.OnlineCPUs
	if cores == 0 {
		cores = uint32(len(st.CPUStats.CPUUsage.PercpuUsage))
	}
	at := st.Read
	if at.IsZero() {
		at = now
	}

	networks := make(map[string]model.InterfaceCounters, len(st.Networks))
	for name, n := range st.Networks {
		networks[name] = model.InterfaceCounters{RxBytes: n.RxBytes, TxBytes: n.TxBytes}
	}

	return model.WorkloadCounterSample{
		CPUTime:       st.CPUStats.CPUUsage.TotalUsage,
		SystemCPUTime: st.CPUStats.SystemUsage,
		OnlineCPUs:    cores,
		MemoryUsage:   st.MemoryStats.Usage,
		MemoryLimit:   st.MemoryStats.Limit,
		Networks:      networks,
		At:            at,
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}
