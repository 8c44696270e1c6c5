package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"dockpulse/internal/runtime"
)

func (a *Agent) run(ctx context.Context) error {
	if err := a.runtime.Ping(ctx); err != nil {
		a.logger.Warn("workload runtime not reachable, continuing without workloads", "runtime", a.runtime.Name(), "error", err)
	} else {
		a.health.SetRuntimeConnected(true)
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", a.server.Addr, err)
	}
	a.logger.Info("http api listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Push handlers only return once their observer channel closes.
		a.hub.Close()
		shCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shCtx)
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	g.Go(func() error {
		return a.runProbeListener(gctx)
	})
	if a.forwarder != nil {
		g.Go(func() error {
			return a.forwarder.Run(gctx, a.hub)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.checkHealth(ctx)
		}
	}
}

func (a *Agent) checkHealth(ctx context.Context) {
	if a.forwarder != nil {
		a.health.SetForwarderConnected(a.forwarder.Connected())
	}
	if err := a.runtime.Ping(ctx); err != nil {
		a.health.SetRuntimeConnected(false)
		rc, ok := a.runtime.(runtime.Reconnecter)
		if !ok {
			a.logger.Debug("workload runtime health check failed", "runtime", a.runtime.Name(), "error", err)
			return
		}
		a.logger.Warn("workload runtime health check failed, reconnecting", "runtime", a.runtime.Name(), "error", err)
		if recErr := rc.Reconnect(ctx); recErr != nil {
			a.logger.Error("workload runtime reconnect failed", "error", recErr)
			return
		}
		a.health.SetRuntimeConnected(true)
		a.logHealth("recovered")
		return
	}
	a.health.SetRuntimeConnected(true)
	a.logHealth("ok")
}

func (a *Agent) logHealth(status string) {
	a.logger.Log(context.Background(), slog.LevelDebug, "agent health", "status", status, "snapshot", a.health.Snapshot())
}

func (a *Agent) shutdown(ctx context.Context) {
	a.hub.Close()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("http api shutdown failed", "error", err)
	}
	if a.forwarder != nil {
		if err := a.forwarder.Close(); err != nil {
			a.logger.Warn("grpc forwarder close failed", "error", err)
		}
		a.health.SetForwarderConnected(false)
	}
	if err := a.runtime.Close(); err != nil {
		a.logger.Warn("workload runtime close failed", "error", err)
	}
	a.health.SetRuntimeConnected(false)
}
