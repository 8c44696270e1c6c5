package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dockpulse/internal/metrics"
	"dockpulse/internal/model"
)

// Store is where finished snapshots are installed.
type Store interface {
	Set(snap *model.CombinedSnapshot)
}

// Publisher fans a finished snapshot out to observers.
type Publisher interface {
	Publish(snap *model.CombinedSnapshot)
}

type Scheduler struct {
	logger    *slog.Logger
	host      *HostCollector
	workloads *WorkloadCollector
	store     Store
	publisher Publisher
	metrics   *metrics.Metrics
	interval  time.Duration
	now       func() time.Time

	// mu serialises cycles; everything below it is owned by the running cycle.
	mu            sync.Mutex
	history       map[string]model.WorkloadCounterSample
	lastHost      *model.HostSnapshot
	lastGenerated time.Time
}

func NewScheduler(
	logger *slog.Logger,
	host *HostCollector,
	workloads *WorkloadCollector,
	store Store,
	publisher Publisher,
	m *metrics.Metrics,
	interval time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Scheduler{
		logger:    logger,
		host:      host,
		workloads: workloads,
		store:     store,
		publisher: publisher,
		metrics:   m,
		interval:  interval,
		now:       time.Now,
		history:   map[string]model.WorkloadCounterSample{},
	}
}

// Run samples immediately and then on every tick until ctx is cancelled.
// A slow cycle makes the ticker drop ticks rather than queue them.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("sampling cycle failed", "error", err)
	}
}

// RunCycle performs one full sampling cycle. On error the cache is left untouched.
func (s *Scheduler) RunCycle(ctx context.Context) (snap *model.CombinedSnapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			snap, err = nil, fmt.Errorf("%w: panic: %v", ErrCycleFailure, r)
		}
		if s.metrics != nil {
			s.metrics.CycleDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				s.metrics.CycleFailures.Inc()
			}
		}
	}()

	var (
		host      model.HostSnapshot
		hostErr   error
		workloads []model.WorkloadSnapshot
		history   map[string]model.WorkloadCounterSample
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return guard(func() {
			host, hostErr = s.host.Sample(gctx)
		})
	})
	g.Go(func() error {
		return guard(func() {
			workloads, history = s.workloads.Sample(gctx, s.history)
		})
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCycleFailure, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCycleFailure, err)
	}

	if hostErr != nil {
		if s.lastHost == nil {
			return nil, fmt.Errorf("%w: %w", ErrCycleFailure, hostErr)
		}
		s.logger.Warn("host sample failed, reusing previous host snapshot", "error", hostErr)
		host = *s.lastHost
	}

	generatedAt := s.now().UTC()
	if !generatedAt.After(s.lastGenerated) {
		generatedAt = s.lastGenerated.Add(time.Nanosecond)
	}
	if workloads == nil {
		workloads = []model.WorkloadSnapshot{}
	}

	snap = &model.CombinedSnapshot{
		Host:        host,
		Workloads:   workloads,
		GeneratedAt: generatedAt,
	}

	s.lastHost = &host
	s.lastGenerated = generatedAt
	s.history = history
	s.store.Set(snap)
	s.publisher.Publish(snap)

	s.logger.Debug("sampling cycle done",
		"workloads", len(workloads),
		"generated_at", generatedAt,
		"took", time.Since(start),
	)
	return snap, nil
}

// guard converts a panic in fn into an error.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}
