package libvirt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	golibvirt "github.com/digitalocean/go-libvirt"

	"dockpulse/internal/model"
)

const (
	RuntimeName = "libvirt"
	shortIDLen  = 12

	statCPUTime          = "cpu.time"
	statBalloonMaximum   = "balloon.maximum"
	statBalloonRSS       = "balloon.rss"
	statBalloonAvailable = "balloon.available"
	statBalloonUnused    = "balloon.unused"
	statState            = "state.state"
	statNetPrefix        = "net."

	// VIR_NODE_CPU_STATS_ALL_CPUS
	allCPUs int32 = -1
)

// WorkloadSource exposes active libvirt domains as workloads.
type WorkloadSource struct {
	conn   *ConnManager
	logger *slog.Logger

	mu      sync.RWMutex
	domains map[string]golibvirt.Domain
}

func NewWorkloadSource(conn *ConnManager, logger *slog.Logger) *WorkloadSource {
	return &WorkloadSource{
		conn:    conn,
		logger:  logger,
		domains: map[string]golibvirt.Domain{},
	}
}

func (s *WorkloadSource) Name() string {
	return RuntimeName
}

func (s *WorkloadSource) List(ctx context.Context) ([]model.WorkloadInfo, error) {
	client, err := s.conn.Client(ctx)
	if err != nil {
		return nil, err
	}
	doms, _, err := client.ConnectListAllDomains(1, golibvirt.ConnectListDomainsActive)
	if err != nil {
		return nil, fmt.Errorf("ConnectListAllDomains: %w", err)
	}

	states := map[string]string{}
	if len(doms) > 0 {
		records, err := client.ConnectGetAllDomainStats(doms, uint32(golibvirt.DomainStatsState), 0)
		if err != nil {
			s.logger.Debug("domain state read failed", "error", err)
		}
		for _, rec := range records {
			states[domainID(rec.Dom)] = parseDomainStats(rec.Params).state
		}
	}

	known := make(map[string]golibvirt.Domain, len(doms))
	out := make([]model.WorkloadInfo, 0, len(doms))
	for _, d := range doms {
		id := domainID(d)
		known[id] = d
		state, ok := states[id]
		if !ok {
			state = "unknown"
		}
		out = append(out, model.WorkloadInfo{
			ID:     id,
			Name:   d.Name,
			Image:  "unknown",
			Status: state,
			State:  state,
			Ports:  []model.PortMapping{},
		})
	}

	s.mu.Lock()
	s.domains = known
	s.mu.Unlock()
	return out, nil
}

func (s *WorkloadSource) Counters(ctx context.Context, id string) (model.WorkloadCounterSample, error) {
	s.mu.RLock()
	dom, ok := s.domains[id]
	s.mu.RUnlock()
	if !ok {
		return model.WorkloadCounterSample{}, fmt.Errorf("domain %s not enumerated", id)
	}

	client, err := s.conn.Client(ctx)
	if err != nil {
		return model.WorkloadCounterSample{}, err
	}

	mask := uint32(golibvirt.DomainStatsCPUTotal | golibvirt.DomainStatsBalloon | golibvirt.DomainStatsInterface)
	records, err := client.ConnectGetAllDomainStats([]golibvirt.Domain{dom}, mask, 0)
	if err != nil {
		return model.WorkloadCounterSample{}, fmt.Errorf("ConnectGetAllDomainStats %s: %w", dom.Name, err)
	}
	if len(records) == 0 {
		return model.WorkloadCounterSample{}, fmt.Errorf("no stats for domain %s", dom.Name)
	}

	hostNs, err := nodeCPUTime(client)
	if err != nil {
		return model.WorkloadCounterSample{}, err
	}
	_, _, cpus, _, _, _, _, _, err := client.NodeGetInfo()
	if err != nil {
		return model.WorkloadCounterSample{}, fmt.Errorf("NodeGetInfo: %w", err)
	}

	st := parseDomainStats(records[0].Params)
	return model.WorkloadCounterSample{
		CPUTime:       st.cpuNs,
		SystemCPUTime: hostNs,
		OnlineCPUs:    uint32(max(cpus, 0)),
		MemoryUsage:   st.memoryUsedKiB() * 1024,
		MemoryLimit:   st.balloonMaximumKiB * 1024,
		Networks:      st.networks,
		At:            time.Now().UTC(),
	}, nil
}

func (s *WorkloadSource) Ping(ctx context.Context) error {
	return s.conn.Healthy(ctx)
}

func (s *WorkloadSource) Info(ctx context.Context) (model.RuntimeInfo, error) {
	client, err := s.conn.Client(ctx)
	if err != nil {
		return model.RuntimeInfo{}, err
	}
	version, err := client.Version()
	if err != nil {
		return model.RuntimeInfo{}, fmt.Errorf("libvirt version: %w", err)
	}
	all, _, err := client.ConnectListAllDomains(1, 0)
	if err != nil {
		return model.RuntimeInfo{}, fmt.Errorf("ConnectListAllDomains: %w", err)
	}
	active, _, err := client.ConnectListAllDomains(1, golibvirt.ConnectListDomainsActive)
	if err != nil {
		return model.RuntimeInfo{}, fmt.Errorf("ConnectListAllDomains: %w", err)
	}
	_, memoryKiB, cpus, _, _, _, _, _, err := client.NodeGetInfo()
	if err != nil {
		return model.RuntimeInfo{}, fmt.Errorf("NodeGetInfo: %w", err)
	}
	return model.RuntimeInfo{
		Runtime:          RuntimeName,
		Version:          version,
		Workloads:        len(all),
		WorkloadsRunning: len(active),
		WorkloadsStopped: len(all) - len(active),
		TotalMemory:      memoryKiB * 1024,
		CPUs:             int(cpus),
	}, nil
}

func (s *WorkloadSource) Close() error {
	return s.conn.Close()
}

// nodeCPUTime sums every node CPU time bucket across all CPUs, in nanoseconds.
func nodeCPUTime(client *golibvirt.Libvirt) (uint64, error) {
	_, n, err := client.NodeGetCPUStats(allCPUs, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("NodeGetCPUStats: %w", err)
	}
	stats, _, err := client.NodeGetCPUStats(allCPUs, n, 0)
	if err != nil {
		return 0, fmt.Errorf("NodeGetCPUStats: %w", err)
	}
	if len(stats) == 0 {
		return 0, fmt.Errorf("empty node cpu stats")
	}
	return sumNodeCPU(stats), nil
}

func sumNodeCPU(stats []golibvirt.NodeGetCPUStats) uint64 {
	var total uint64
	for _, st := range stats {
		switch strings.ToLower(st.Field) {
		case "kernel", "user", "idle", "iowait":
			total += st.Value
		}
	}
	return total
}

type domainStats struct {
	cpuNs               uint64
	balloonMaximumKiB   uint64
	balloonRSSKiB       uint64
	balloonAvailableKiB uint64
	balloonUnusedKiB    uint64
	hasAvailable        bool
	hasUnused           bool
	state               string
	networks            map[string]model.InterfaceCounters
}

// memoryUsedKiB prefers the guest's own view (available minus unused) and
// falls back to the host-side resident set of the domain process.
func (d domainStats) memoryUsedKiB() uint64 {
	if d.hasAvailable && d.hasUnused && d.balloonAvailableKiB >= d.balloonUnusedKiB {
		return d.balloonAvailableKiB - d.balloonUnusedKiB
	}
	return d.balloonRSSKiB
}

// parseDomainStats folds the typed params of one stats record. Interfaces are
// reported as net.<n>.name / net.<n>.rx.bytes / net.<n>.tx.bytes.
func parseDomainStats(params []golibvirt.TypedParam) domainStats {
	out := domainStats{state: "unknown"}
	names := map[string]string{}
	byIndex := map[string]model.InterfaceCounters{}

	for _, p := range params {
		switch p.Field {
		case statCPUTime:
			out.cpuNs = asUint64(p.Value.I)
		case statBalloonRSS:
			out.balloonRSSKiB = asUint64(p.Value.I)
		case statBalloonAvailable:
			out.balloonAvailableKiB = asUint64(p.Value.I)
			out.hasAvailable = true
		case statBalloonUnused:
			out.balloonUnusedKiB = asUint64(p.Value.I)
			out.hasUnused = true
		case statBalloonMaximum:
			out.balloonMaximumKiB = asUint64(p.Value.I)
		case statState:
			out.state = domainStateString(asUint64(p.Value.I))
		default:
			if !strings.HasPrefix(p.Field, statNetPrefix) {
				continue
			}
			idx, key, ok := strings.Cut(strings.TrimPrefix(p.Field, statNetPrefix), ".")
			if !ok {
				continue
			}
			if _, err := strconv.Atoi(idx); err != nil {
				continue
			}
			c := byIndex[idx]
			switch key {
			case "name":
				if name, ok := p.Value.I.(string); ok {
					names[idx] = name
				}
			case "rx.bytes":
				c.RxBytes = asUint64(p.Value.I)
			case "tx.bytes":
				c.TxBytes = asUint64(p.Value.I)
			}
			byIndex[idx] = c
		}
	}

	out.networks = make(map[string]model.InterfaceCounters, len(byIndex))
	for idx, c := range byIndex {
		name := names[idx]
		if name == "" {
			name = "net" + idx
		}
		out.networks[name] = c
	}
	return out
}

func domainID(d golibvirt.Domain) string {
	id := strings.ReplaceAll(uuidToString(d.UUID), "-", "")
	if id == "" {
		return d.Name
	}
	return id[:shortIDLen]
}

func asUint64(v any) uint64 {
	switch t := v.(type) {
	case uint64:
		return t
	case uint32:
		return uint64(t)
	case int64:
		return uint64(max(t, 0))
	case int32:
		return uint64(max(t, 0))
	case int:
		return uint64(max(t, 0))
	case float64:
		return uint64(max(t, 0))
	default:
		return 0
	}
}

func uuidToString(u golibvirt.UUID) string {
	if len(u) != 16 {
		return ""
	}
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uint32(u[0])<<24|uint32(u[1])<<16|uint32(u[2])<<8|uint32(u[3]),
		uint16(u[4])<<8|uint16(u[5]),
		uint16(u[6])<<8|uint16(u[7]),
		uint16(u[8])<<8|uint16(u[9]),
		uint64(u[10])<<40|uint64(u[11])<<32|uint64(u[12])<<24|uint64(u[13])<<16|uint64(u[14])<<8|uint64(u[15]),
	)
}

func domainStateString(v uint64) string {
	switch v {
	case 0:
		return "nostate"
	case 1:
		return "running"
	case 2:
		return "blocked"
	case 3:
		return "paused"
	case 4:
		return "shutdown"
	case 5:
		return "shutoff"
	case 6:
		return "crashed"
	case 7:
		return "pmsuspended"
	default:
		return "unknown"
	}
}

func (s *WorkloadSource) Reconnect(ctx context.Context) error {
	return s.conn.Reconnect(ctx)
}
