package stream_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockpulse/internal/metrics"
	"dockpulse/internal/model"
	"dockpulse/internal/snapshot"
	"dockpulse/internal/stream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapAt(sec int64) *model.CombinedSnapshot {
	return &model.CombinedSnapshot{GeneratedAt: time.Unix(sec, 0).UTC(), Workloads: []model.WorkloadSnapshot{}}
}

// install mimics a scheduler cycle: cache first, then fan-out.
func install(cache *snapshot.Cache, hub *stream.Hub, snap *model.CombinedSnapshot) {
	cache.Set(snap)
	hub.Publish(snap)
}

func recv(t *testing.T, o *stream.Observer) (*model.CombinedSnapshot, bool) {
	t.Helper()
	select {
	case snap, ok := <-o.Updates():
		return snap, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for observer update")
		return nil, false
	}
}

func assertNoUpdate(t *testing.T, o *stream.Observer) {
	t.Helper()
	select {
	case snap, ok := <-o.Updates():
		t.Fatalf("unexpected update %v (open=%v)", snap, ok)
	default:
	}
}

func TestSubscribeBeforeFirstSnapshot(t *testing.T) {
	t.Parallel()

	cache := snapshot.NewCache()
	hub := stream.NewHub(cache, 4, discardLogger(), metrics.New())

	o, err := hub.Subscribe()
	require.NoError(t, err)
	first, ok := recv(t, o)
	require.True(t, ok)
	assert.Nil(t, first)

	s1 := snapAt(1)
	install(cache, hub, s1)
	got, ok := recv(t, o)
	require.True(t, ok)
	assert.Same(t, s1, got)
}

func TestSubscribeAfterSnapshotGetsCurrent(t *testing.T) {
	t.Parallel()

	cache := snapshot.NewCache()
	hub := stream.NewHub(cache, 4, discardLogger(), nil)
	s1 := snapAt(1)
	install(cache, hub, s1)

	o, err := hub.Subscribe()
	require.NoError(t, err)
	got, _ := recv(t, o)
	assert.Same(t, s1, got)
	assertNoUpdate(t, o)
}

func TestSubscribeBetweenInstallAndPublishHasNoDuplicate(t *testing.T) {
	t.Parallel()

	cache := snapshot.NewCache()
	hub := stream.NewHub(cache, 4, discardLogger(), nil)
	s1 := snapAt(1)
	cache.Set(s1)

	o, err := hub.Subscribe()
	require.NoError(t, err)
	hub.Publish(s1)

	got, _ := recv(t, o)
	assert.Same(t, s1, got)
	assertNoUpdate(t, o)

	hub.Publish(snapAt(1))
	assertNoUpdate(t, o)
}

func TestPublishSkipsOlderSnapshots(t *testing.T) {
	t.Parallel()

	cache := snapshot.NewCache()
	hub := stream.NewHub(cache, 4, discardLogger(), nil)
	o, err := hub.Subscribe()
	require.NoError(t, err)
	recv(t, o)

	hub.Publish(snapAt(5))
	hub.Publish(snapAt(3))
	hub.Publish(snapAt(6))

	got, _ := recv(t, o)
	assert.Equal(t, time.Unix(5, 0).UTC(), got.GeneratedAt)
	got, _ = recv(t, o)
	assert.Equal(t, time.Unix(6, 0).UTC(), got.GeneratedAt)
	assertNoUpdate(t, o)
}

func TestStalledObserverIsDroppedOthersContinue(t *testing.T) {
	t.Parallel()

	cache := snapshot.NewCache()
	m := metrics.New()
	hub := stream.NewHub(cache, 2, discardLogger(), m)

	stalled, err := hub.Subscribe()
	require.NoError(t, err)
	healthy, err := hub.Subscribe()
	require.NoError(t, err)
	recv(t, healthy)

	for i := int64(1); i <= 5; i++ {
		install(cache, hub, snapAt(i))
		got, ok := recv(t, healthy)
		require.True(t, ok)
		assert.Equal(t, time.Unix(i, 0).UTC(), got.GeneratedAt)
	}
	assert.Equal(t, 1, hub.Len())

	var drained int
	for range stalled.Updates() {
		drained++
	}
	assert.Equal(t, 2, drained)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := stream.NewHub(snapshot.NewCache(), 1, discardLogger(), nil)
	o, err := hub.Subscribe()
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Len())

	hub.Unsubscribe(o)
	hub.Unsubscribe(o)
	hub.Unsubscribe(nil)
	assert.Equal(t, 0, hub.Len())

	recv(t, o)
	_, ok := recv(t, o)
	assert.False(t, ok)

	assert.NotPanics(t, func() { hub.Publish(snapAt(1)) })
}

func TestCloseDropsEveryObserver(t *testing.T) {
	t.Parallel()

	hub := stream.NewHub(snapshot.NewCache(), 1, discardLogger(), nil)
	a, _ := hub.Subscribe()
	b, _ := hub.Subscribe()

	hub.Close()
	hub.Close()
	assert.Equal(t, 0, hub.Len())

	for _, o := range []*stream.Observer{a, b} {
		recv(t, o)
		_, ok := recv(t, o)
		assert.False(t, ok)
	}

	late, err := hub.Subscribe()
	assert.ErrorIs(t, err, stream.ErrHubClosed)
	require.NotNil(t, late)
	_, ok := recv(t, late)
	assert.False(t, ok)

	hub.Unsubscribe(a)
}

func TestObserverIDsAreUUIDs(t *testing.T) {
	t.Parallel()

	hub := stream.NewHub(snapshot.NewCache(), 1, discardLogger(), nil)
	a, _ := hub.Subscribe()
	b, _ := hub.Subscribe()

	_, err := uuid.Parse(a.ID())
	assert.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestConcurrentSubscribersSeeIncreasingSnapshots(t *testing.T) {
	t.Parallel()

	cache := snapshot.NewCache()
	hub := stream.NewHub(cache, 64, discardLogger(), nil)

	var wg sync.WaitGroup
	for range 8 {
		o, err := hub.Subscribe()
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last time.Time
			var n int
			for snap := range o.Updates() {
				if snap == nil {
					continue
				}
				assert.True(t, snap.GeneratedAt.After(last))
				last = snap.GeneratedAt
				n++
			}
			assert.Equal(t, 50, n)
		}()
	}

	for i := int64(1); i <= 50; i++ {
		install(cache, hub, snapAt(i))
	}
	hub.Close()
	wg.Wait()
}
