package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"cookflow/internal/logsink"
	"cookflow/internal/recipes"
	"cookflow/internal/telemetry"
)

func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	tp, err := telemetry.Setup(ctx, r.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("telemetry shutdown error", "error", err)
		}
	}()

	handlers := logsink.Fanout{slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(r.logger.GetLevel())})}
	if r.cfg.LogSinkEnabled() {
		sink, err := logsink.New(ctx, logsink.Config{
			AccountName: r.cfg.Azure.AccountName,
			AccountKey:  r.cfg.Azure.AccountKey,
			Container:   r.cfg.LogSink.Container,
			BlobName:    r.cfg.LogSink.BlobName,
		})
		if err != nil {
			return fmt.Errorf("failed to create log sink: %w", err)
		}
		defer func() { _ = sink.Close() }()
		handlers = append(handlers, sink)
	}
	if h := tp.LogHandler(); h != nil {
		handlers = append(handlers, h)
	}
	slog.SetDefault(slog.New(withRequestID{handlers}))

	p, err := r.pipeline(ctx, r.billing)
	if err != nil {
		return err
	}
	return runServer(ctx, newMux(r, p), cmd.String("addr"))
}

func newMux(r *Runner, p *recipes.Pipeline) http.Handler {
	mux := http.NewServeMux()
	recipes.NewHandler(p).Register(mux)

	ro := &readyOnce{}
	ro.Add(storeReady(r.cache))
	mux.Handle("GET /ready", ro)
	return WithMiddleware(mux)
}

func runServer(ctx context.Context, handler http.Handler, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Serving cookflow", "address", addr)
		serverErrors <- server.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
		return gracefulShutdown(server)
	}
}

func gracefulShutdown(svr *http.Server) error {
	// in-flight extractions can take as long as a model call
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := svr.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", "error", err)
		if closeErr := svr.Close(); closeErr != nil {
			slog.Error("Server close error", "error", closeErr)
		}
		return err
	}
	slog.Info("Server stopped")
	return nil
}
