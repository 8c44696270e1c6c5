package collector

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"dockpulse/internal/model"
	"dockpulse/internal/system"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHostSource struct {
	mu       sync.Mutex
	counters system.HostCounters
	err      error
	panicMsg string
	calls    int
}

func (f *fakeHostSource) Read(context.Context) (system.HostCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.counters, f.err
}

func (f *fakeHostSource) set(fn func(f *fakeHostSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeWorkloadSource struct {
	mu      sync.Mutex
	infos   []model.WorkloadInfo
	listErr error
	samples map[string]model.WorkloadCounterSample
	errs    map[string]error
}

func (f *fakeWorkloadSource) List(context.Context) ([]model.WorkloadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.WorkloadInfo(nil), f.infos...), nil
}

func (f *fakeWorkloadSource) Counters(_ context.Context, id string) (model.WorkloadCounterSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return model.WorkloadCounterSample{}, err
	}
	return f.samples[id], nil
}

func (f *fakeWorkloadSource) set(fn func(f *fakeWorkloadSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []*model.CombinedSnapshot
}

func (p *recordingPublisher) Publish(snap *model.CombinedSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, snap)
}

func (p *recordingPublisher) published() []*model.CombinedSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.CombinedSnapshot(nil), p.got...)
}
