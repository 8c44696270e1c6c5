package stream

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"dockpulse/internal/metrics"
	"dockpulse/internal/model"
)

var ErrHubClosed = errors.New("broadcast hub closed")

// Latest is the read side of the snapshot cache.
type Latest interface {
	Get() (*model.CombinedSnapshot, error)
}

// Observer is one hub membership. Updates yields snapshots in increasing
// generated_at order; a nil value means no snapshot exists yet. The channel is
// closed when the observer is unsubscribed, dropped or the hub shuts down.
type Observer struct {
	id        string
	ch        chan *model.CombinedSnapshot
	closeOnce sync.Once

	// guarded by Hub.mu
	last time.Time
}

func (o *Observer) ID() string {
	return o.id
}

func (o *Observer) Updates() <-chan *model.CombinedSnapshot {
	return o.ch
}

func (o *Observer) close() {
	o.closeOnce.Do(func() { close(o.ch) })
}

type Hub struct {
	mu        sync.Mutex
	observers map[string]*Observer
	closed    bool

	latest  Latest
	buffer  int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(latest Latest, buffer int, logger *slog.Logger, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		observers: make(map[string]*Observer),
		latest:    latest,
		buffer:    buffer,
		logger:    logger,
		metrics:   m,
	}
}

// Subscribe registers a new observer and queues the current snapshot (or nil)
// as its first item. After Close it returns an already closed observer and ErrHubClosed.
func (h *Hub) Subscribe() (*Observer, error) {
	o := &Observer{
		id: uuid.NewString(),
		ch: make(chan *model.CombinedSnapshot, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		o.close()
		return o, ErrHubClosed
	}

	snap, err := h.latest.Get()
	if err != nil {
		snap = nil
	}
	if snap != nil {
		o.last = snap.GeneratedAt
	}
	o.ch <- snap
	h.observers[o.id] = o
	h.setObserverGauge()
	h.logger.Debug("observer subscribed", "observer_id", o.id, "observers", len(h.observers))
	return o, nil
}

// Unsubscribe removes o from the hub and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(o *Observer) {
	if o == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[o.id]; ok {
		delete(h.observers, o.id)
		h.setObserverGauge()
		h.logger.Debug("observer unsubscribed", "observer_id", o.id, "observers", len(h.observers))
	}
	o.close()
}

// Publish hands snap to every observer without blocking. Observers whose
// buffer is full are dropped. Snapshots not newer than what an observer
// already received are skipped for that observer.
func (h *Hub) Publish(snap *model.CombinedSnapshot) {
	if snap == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, o := range h.observers {
		if !snap.GeneratedAt.After(o.last) {
			continue
		}
		select {
		case o.ch <- snap:
			o.last = snap.GeneratedAt
		default:
			delete(h.observers, id)
			o.close()
			if h.metrics != nil {
				h.metrics.ObserversDropped.Inc()
			}
			h.logger.Debug("observer dropped, buffer full", "observer_id", id)
		}
	}
	h.setObserverGauge()
}

// Close drops every observer. Later Subscribe calls get a closed observer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, o := range h.observers {
		delete(h.observers, id)
		o.close()
	}
	h.setObserverGauge()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

func (h *Hub) setObserverGauge() {
	if h.metrics != nil {
		h.metrics.Observers.Set(float64(len(h.observers)))
	}
}
