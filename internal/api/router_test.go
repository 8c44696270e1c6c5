package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockpulse/internal/api"
	"dockpulse/internal/metrics"
	"dockpulse/internal/model"
	"dockpulse/internal/snapshot"
	"dockpulse/internal/stream"
)

type fakeHealth struct{ healthy bool }

func (f fakeHealth) Healthy() bool { return f.healthy }

func (f fakeHealth) Snapshot() map[string]any {
	return map[string]any{"healthy": f.healthy}
}

type fakeRuntime struct {
	info model.RuntimeInfo
	err  error
}

func (f fakeRuntime) Info(context.Context) (model.RuntimeInfo, error) { return f.info, f.err }

type fixture struct {
	cache *snapshot.Cache
	hub   *stream.Hub
	srv   *httptest.Server
}

func newFixture(t *testing.T, opts api.Options) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{cache: snapshot.NewCache()}
	f.hub = stream.NewHub(f.cache, 8, logger, nil)
	opts.Snapshots = f.cache
	opts.Hub = f.hub
	opts.Logger = logger
	f.srv = httptest.NewServer(api.NewRouter(opts))
	t.Cleanup(func() {
		f.hub.Close()
		f.srv.Close()
	})
	return f
}

func (f *fixture) install(snap *model.CombinedSnapshot) {
	f.cache.Set(snap)
	f.hub.Publish(snap)
}

func sampleSnapshot(sec int64) *model.CombinedSnapshot {
	return &model.CombinedSnapshot{
		Host: model.HostSnapshot{
			CPU:    model.HostCPU{Percent: 12.5, Count: 4},
			System: model.HostSystem{Hostname: "box"},
		},
		Workloads: []model.WorkloadSnapshot{
			{ID: "abc123def456", Name: "web", WorkloadUsage: &model.WorkloadUsage{CPUPercent: 3, Ports: []model.PortMapping{}}},
		},
		GeneratedAt: time.Unix(sec, 0).UTC(),
	}
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	return resp.StatusCode
}

func TestSnapshotEndpointsBeforeFirstCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, api.Options{})
	for _, path := range []string{"/api/system", "/api/services", "/api/snapshot"} {
		var body map[string]string
		status := getJSON(t, f.srv.URL+path, &body)
		assert.Equal(t, http.StatusServiceUnavailable, status, path)
		assert.Equal(t, "snapshot not yet available", body["error"], path)
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, api.Options{})
	f.install(sampleSnapshot(1))

	var host model.HostSnapshot
	require.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/system", &host))
	assert.Equal(t, "box", host.System.Hostname)

	var services []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/services", &services))
	require.Len(t, services, 1)
	assert.Equal(t, "abc123def456", services[0]["id"])
	assert.Equal(t, 3.0, services[0]["cpu_percent"])

	var combined map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/snapshot", &combined))
	assert.Equal(t, "1970-01-01T00:00:01Z", combined["generated_at"])
	assert.Contains(t, combined, "host")
	assert.Contains(t, combined, "workloads")
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		healthy bool
		want    int
	}{
		{name: "healthy", healthy: true, want: http.StatusOK},
		{name: "unhealthy", healthy: false, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, api.Options{Health: fakeHealth{healthy: tt.healthy}})
			var body map[string]any
			assert.Equal(t, tt.want, getJSON(t, f.srv.URL+"/healthz", &body))
			assert.Equal(t, tt.healthy, body["healthy"])
		})
	}
}

func TestRuntimeAndVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, api.Options{
		Runtime: fakeRuntime{info: model.RuntimeInfo{Runtime: "docker", Version: "28.3.3", CPUs: 4}},
		Version: func() any { return map[string]string{"agent_version": "V0.3"} },
	})

	var info model.RuntimeInfo
	require.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/runtime", &info))
	assert.Equal(t, "28.3.3", info.Version)

	var ver map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/version", &ver))
	assert.Equal(t, "V0.3", ver["agent_version"])

	down := newFixture(t, api.Options{Runtime: fakeRuntime{err: errors.New("docker daemon not reachable")}})
	var body map[string]string
	assert.Equal(t, http.StatusBadGateway, getJSON(t, down.srv.URL+"/api/runtime", &body))
	assert.Equal(t, "docker daemon not reachable", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.CycleFailures.Inc()
	f := newFixture(t, api.Options{Metrics: m})

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "dockpulse_sampling_cycle_failures_total 1")
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialWS(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebSocketPush(t *testing.T) {
	t.Parallel()

	f := newFixture(t, api.Options{})
	conn := dialWS(t, f)

	first := readEnvelope(t, conn)
	assert.Equal(t, "snapshot_unavailable", first.Type)

	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	f.install(sampleSnapshot(1))

	update := readEnvelope(t, conn)
	assert.Equal(t, "system_update", update.Type)
	var frame struct {
		Stats     model.HostSnapshot `json:"stats"`
		Services  []map[string]any   `json:"services"`
		Timestamp time.Time          `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(update.Payload, &frame))
	assert.Equal(t, "box", frame.Stats.System.Hostname)
	assert.Len(t, frame.Services, 1)
	assert.Equal(t, time.Unix(1, 0).UTC(), frame.Timestamp)
}

func TestWebSocketGetsCurrentSnapshotFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t, api.Options{})
	f.install(sampleSnapshot(5))
	conn := dialWS(t, f)

	first := readEnvelope(t, conn)
	assert.Equal(t, "system_update", first.Type)
}

func TestWebSocketClosedOnHubShutdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, api.Options{})
	conn := dialWS(t, f)
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	f.hub.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestWebSocketDisconnectUnsubscribes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, api.Options{})
	conn := dialWS(t, f)
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerSentEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, api.Options{})
	f.install(sampleSnapshot(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, envelope) {
		var name string
		var env envelope
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env))
			case line == "":
				return name, env
			}
		}
	}

	name, env := readEvent()
	assert.Equal(t, "system_update", name)
	assert.Equal(t, "system_update", env.Type)

	f.install(sampleSnapshot(2))
	name, _ = readEvent()
	assert.Equal(t, "system_update", name)

	cancel()
	require.Eventually(t, func() bool { return f.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
