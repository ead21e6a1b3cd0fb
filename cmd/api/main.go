package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"energy-advisor/internal/bootstrap"
	"energy-advisor/internal/shared/config"
	"energy-advisor/internal/shared/server"
	"energy-advisor/internal/shared/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.LogLevel, cfg.LogFormat)
	defer telemetry.Sync()

	if err := run(cfg); err != nil {
		telemetry.Error("api.exit", map[string]any{"error": err})
		telemetry.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: advice streams stay open for up to LLM_TIMEOUT.
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	telemetry.Info("api.listen", map[string]any{"addr": ln.Addr().String(), "env": cfg.Env})
	return serve(ctx, srv, ln)
}

// serve runs srv on ln until ctx is done. Request contexts derive from a base
// context that is cancelled before Shutdown so open advice streams end instead
// of holding the drain past shutdownTimeout.
func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		telemetry.Info("api.shutdown", nil)
		cancelBase()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				telemetry.Warn("api.shutdown.timeout", map[string]any{"timeout_ms": shutdownTimeout.Milliseconds()})
				return srv.Close()
			}
			return err
		}
		return nil
	})
	return g.Wait()
}
