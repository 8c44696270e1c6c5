package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dockpulse/internal/metrics"
	"dockpulse/internal/model"
)

// WorkloadSource enumerates active workloads and reads their cumulative counters.
type WorkloadSource interface {
	List(ctx context.Context) ([]model.WorkloadInfo, error)
	Counters(ctx context.Context, id string) (model.WorkloadCounterSample, error)
}

type WorkloadCollector struct {
	source      WorkloadSource
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time

	unavailable atomic.Bool
}

func NewWorkloadCollector(source WorkloadSource, concurrency int, logger *slog.Logger, m *metrics.Metrics) *WorkloadCollector {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &WorkloadCollector{
		source:      source,
		logger:      logger,
		metrics:     m,
		concurrency: concurrency,
		now:         time.Now,
	}
}

type workloadRead struct {
	sample model.WorkloadCounterSample
	err    error
}

// Sample reads every enumerated workload and derives its usage against prev.
// The returned history holds only workloads read successfully in this call.
func (c *WorkloadCollector) Sample(
	ctx context.Context,
	prev map[string]model.WorkloadCounterSample,
) ([]model.WorkloadSnapshot, map[string]model.WorkloadCounterSample) {
	infos, err := c.source.List(ctx)
	if err != nil {
		c.reportUnavailable(fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
		return []model.WorkloadSnapshot{}, map[string]model.WorkloadCounterSample{}
	}
	if c.unavailable.Swap(false) {
		c.logger.Info("workload source recovered")
	}

	reads := make([]workloadRead, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, info := range infos {
		g.Go(func() error {
			sample, err := c.source.Counters(gctx, info.ID)
			reads[i] = workloadRead{sample: sample, err: err}
			return nil
		})
	}
	_ = g.Wait()

	now := c.now().UTC()
	out := make([]model.WorkloadSnapshot, 0, len(infos))
	next := make(map[string]model.WorkloadCounterSample, len(infos))
	for i, info := range infos {
		snap := model.WorkloadSnapshot{
			ID:     info.ID,
			Name:   info.Name,
			Image:  info.Image,
			Status: info.Status,
			State:  info.State,
		}
		if reads[i].err != nil {
			c.logger.Debug("workload counter read failed", "workload_id", info.ID, "error", reads[i].err)
			if c.metrics != nil {
				c.metrics.WorkloadReadFailures.Inc()
			}
			snap.Error = reads[i].err.Error()
			out = append(out, snap)
			continue
		}

		cur := reads[i].sample
		previous, seen := prev[info.ID]
		snap.WorkloadUsage = deriveUsage(info, cur, previous, seen, now)
		next[info.ID] = cur
		out = append(out, snap)
	}
	if c.metrics != nil {
		c.metrics.Workloads.Set(float64(len(out)))
	}
	return out, next
}

func (c *WorkloadCollector) reportUnavailable(err error) {
	if c.unavailable.Swap(true) {
		c.logger.Debug("workload source still unavailable", "error", err)
		return
	}
	c.logger.Warn("workload source unavailable, reporting no workloads", "error", err)
}

func deriveUsage(
	info model.WorkloadInfo,
	cur, prev model.WorkloadCounterSample,
	seen bool,
	now time.Time,
) *model.WorkloadUsage {
	var cpu float64
	if seen {
		cpu = cpuPercent(cur.CPUTime, prev.CPUTime, cur.SystemCPUTime, prev.SystemCPUTime, cur.OnlineCPUs)
	}

	var rx, tx uint64
	for _, iface := range cur.Networks {
		rx += iface.RxBytes
		tx += iface.TxBytes
	}

	var uptime int64
	if !info.Created.IsZero() {
		uptime = max(int64(now.Sub(info.Created).Seconds()), 0)
	}

	ports := info.Ports
	if ports == nil {
		ports = []model.PortMapping{}
	}

	return &model.WorkloadUsage{
		Created:       info.Created,
		UptimeSeconds: uptime,
		Ports:         ports,
		CPUPercent:    round(cpu, 1),
		MemoryPercent: round(percentOf(cur.MemoryUsage, cur.MemoryLimit), 1),
		MemoryUsage:   cur.MemoryUsage,
		NetworkRx:     rx,
		NetworkTx:     tx,
	}
}
