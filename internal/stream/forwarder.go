package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"

	"dockpulse/internal/metrics"
	"dockpulse/internal/model"
)

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Forwarder is a hub observer that streams every snapshot to an upstream
// collector over a single gRPC client stream.
type Forwarder struct {
	mu sync.Mutex

	logger       *slog.Logger
	metrics      *metrics.Metrics
	addr         string
	method       string
	token        string
	tlsConfig    *tls.Config
	conn         *grpc.ClientConn
	stream       grpc.ClientStream
	streamCancel context.CancelFunc
	retryDelay   time.Duration
	connected    atomic.Bool
}

func NewForwarder(addr, method, token string, tlsCfg *tls.Config, logger *slog.Logger, m *metrics.Metrics) *Forwarder {
	return &Forwarder{
		logger:     logger,
		metrics:    m,
		addr:       addr,
		method:     method,
		token:      token,
		tlsConfig:  tlsCfg,
		retryDelay: time.Second,
	}
}

// Run follows the hub until ctx is cancelled or the hub closes. When the
// forwarder falls behind and gets dropped it subscribes again.
func (f *Forwarder) Run(ctx context.Context, hub *Hub) error {
	for {
		obs, err := hub.Subscribe()
		if errors.Is(err, ErrHubClosed) {
			return nil
		}
		f.drain(ctx, obs)
		hub.Unsubscribe(obs)
		if ctx.Err() != nil {
			return nil
		}
		f.logger.Warn("forwarder fell behind, resubscribing", "addr", f.addr)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.retryDelay):
		}
	}
}

func (f *Forwarder) drain(ctx context.Context, obs *Observer) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-obs.Updates():
			if !ok {
				return
			}
			if snap == nil {
				continue
			}
			err := f.Send(ctx, snap)
			f.connected.Store(err == nil)
			if err != nil {
				if f.metrics != nil {
					f.metrics.ForwardFailures.Inc()
				}
				f.logger.Warn("forward snapshot failed", "addr", f.addr, "error", err)
			}
		}
	}
}

// Send writes one system_update envelope to the upstream stream, reopening it once on failure.
func (f *Forwarder) Send(ctx context.Context, snap *model.CombinedSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureConnLocked(); err != nil {
		return err
	}
	if f.stream == nil {
		if err := f.openStreamLocked(ctx); err != nil {
			return err
		}
	}
	frame := NewEnvelope(snap, time.Now())
	if err := f.stream.SendMsg(frame); err != nil {
		f.logger.Warn("grpc send failed, reopening stream", "error", err)
		f.closeStreamLocked()
		if err2 := f.openStreamLocked(ctx); err2 != nil {
			return fmt.Errorf("reopen stream: %w", err2)
		}
		if err2 := f.stream.SendMsg(frame); err2 != nil {
			return fmt.Errorf("send snapshot frame: %w", err2)
		}
	}
	return nil
}

// Connected reports whether the last forwarded snapshot was accepted by the stream.
func (f *Forwarder) Connected() bool {
	return f.connected.Load()
}

func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeStreamLocked()
	if f.conn != nil {
		err := f.conn.Close()
		f.conn = nil
		return err
	}
	return nil
}

func (f *Forwarder) ensureConnLocked() error {
	if f.conn != nil {
		return nil
	}
	var creds credentials.TransportCredentials
	if f.tlsConfig != nil {
		creds = credentials.NewTLS(f.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(
		f.addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
	)
	if err != nil {
		return fmt.Errorf("grpc client %s: %w", f.addr, err)
	}
	f.conn = conn
	f.logger.Info("grpc forwarder connected", "addr", f.addr)
	return nil
}

func (f *Forwarder) openStreamLocked(ctx context.Context) error {
	if f.conn == nil {
		return errors.New("grpc conn is nil")
	}
	// The stream outlives the Send call that opened it.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if f.token != "" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, "authorization", "Bearer "+f.token)
	}
	s, err := f.conn.NewStream(streamCtx, &grpc.StreamDesc{ClientStreams: true}, f.method)
	if err != nil {
		cancel()
		return fmt.Errorf("open stream %s: %w", f.method, err)
	}
	f.stream = s
	f.streamCancel = cancel
	return nil
}

func (f *Forwarder) closeStreamLocked() {
	if f.stream != nil {
		_ = f.stream.CloseSend()
		f.stream = nil
	}
	if f.streamCancel != nil {
		f.streamCancel()
		f.streamCancel = nil
	}
}
