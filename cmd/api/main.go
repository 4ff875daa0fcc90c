package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/harliandi/heicconv/internal/config"
	"github.com/harliandi/heicconv/internal/converter"
	"github.com/harliandi/heicconv/internal/handler"
	"github.com/harliandi/heicconv/internal/logging"
	"github.com/harliandi/heicconv/internal/middleware"
	"github.com/harliandi/heicconv/internal/telemetry"
	"github.com/harliandi/heicconv/pkg/jpeg"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return errors.Errorf("create upload dir: %w", err)
	}

	if err := converter.Startup(); err != nil {
		return errors.Errorf("start %s backend: %w", converter.Backend(), err)
	}
	defer converter.Shutdown()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "heicconv",
		Exporter:     cfg.TraceExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		return errors.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn().Err(err).Msg("flushing traces")
		}
	}()

	pool := converter.NewWorkerPool(converter.New(), cfg.WorkerCount, logger)
	pool.Start()
	defer pool.Stop()

	h := handler.New(pool, handler.Config{
		MaxUploadMB:    cfg.MaxUploadMB,
		UploadDir:      cfg.UploadDir,
		ConvertTimeout: cfg.ConvertTimeout,
	})
	server := newServer(cfg, newRouter(cfg, h, logger))

	logger.Info().
		Str("addr", server.Addr).
		Str("backend", converter.Backend()).
		Bool("jpeg_optimized", jpeg.Optimized()).
		Int("max_upload_mb", cfg.MaxUploadMB).
		Int("max_concurrent", cfg.MaxConcurrent).
		Int("rate_limit", cfg.RateLimitPerSec).
		Int("workers", cfg.WorkerCount).
		Dur("convert_timeout", cfg.ConvertTimeout).
		Msg("starting HEIC conversion API")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}

// newRouter wires the endpoints behind the middleware stack, outermost first:
// security headers, request id, per-IP rate limit, global concurrency limit,
// panic recovery and request logging.
func newRouter(cfg *config.Config, h *handler.Handler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/convert", h.Convert)
	mux.HandleFunc("/health", h.Health)
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.Chain(mux,
		middleware.Security,
		middleware.RequestID(logger),
		middleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst, logger),
		middleware.ConcurrencyLimit(cfg.MaxConcurrent, logger),
		middleware.Recovery,
		middleware.Logger,
	)
}

// newServer sets timeouts against slowloris and hung clients. Writes get the
// conversion budget on top of the usual allowance.
func newServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.ConvertTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
