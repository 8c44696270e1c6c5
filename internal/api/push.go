package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dockpulse/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// websocket pushes one envelope per snapshot. The first frame is the current
// snapshot or a snapshot_unavailable envelope.
func (h *handlers) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.Logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	obs, err := h.opts.Hub.Subscribe()
	defer h.opts.Hub.Unsubscribe(obs)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.opts.WriteTimeout))
		return
	}
	log := h.opts.Logger.With("observer_id", obs.ID(), "remote", r.RemoteAddr)
	log.Debug("websocket observer connected")

	pongWait := 2 * h.opts.PingInterval
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Observers never send anything meaningful; reading keeps control frames flowing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			log.Debug("websocket observer disconnected")
			return
		case snap, ok := <-obs.Updates():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "observer dropped"),
					time.Now().Add(h.opts.WriteTimeout))
				return
			}
			data, err := stream.EncodeEnvelope(stream.NewEnvelope(snap, time.Now()))
			if err != nil {
				log.Warn("encode envelope failed", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
				log.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

// events is the server-sent-events variant of the websocket feed.
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	obs, err := h.opts.Hub.Subscribe()
	defer h.opts.Hub.Unsubscribe(obs)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := h.opts.Logger.With("observer_id", obs.ID(), "remote", r.RemoteAddr)
	log.Debug("sse observer connected")

	for {
		select {
		case <-r.Context().Done():
			log.Debug("sse observer disconnected")
			return
		case snap, ok := <-obs.Updates():
			if !ok {
				return
			}
			env := stream.NewEnvelope(snap, time.Now())
			data, err := stream.EncodeEnvelope(env)
			if err != nil {
				log.Warn("encode envelope failed", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
