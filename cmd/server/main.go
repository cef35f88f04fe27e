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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"esgledger/internal/app"
	gapstatushandler "esgledger/internal/gapstatus/handler"
	"esgledger/internal/platform/config"
	"esgledger/internal/platform/httpserver"
	"esgledger/internal/platform/logger"
	"esgledger/internal/platform/metrics"
	rolloverhandler "esgledger/internal/rollover/handler"
	"esgledger/pkg/platform/httputil"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close resources", "error", err)
		}
	}()

	httpMetrics := metrics.New(a.Registry)
	router := chi.NewRouter()
	router.Get("/healthz", healthz(a))
	router.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}))
	rolloverhandler.New(a.Rollover, log, httpMetrics, cfg.Rollover.HTTPTimeout).Register(router)
	gapstatushandler.New(a.GapStatus, log, httpMetrics).Register(router)

	srv := httpserver.New(cfg.Addr, router, cfg.Rollover.HTTPTimeout)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting esgledger", "addr", cfg.Addr, "postgres", a.DB != nil, "redis", a.Redis != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func healthz(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if a.DB != nil {
			if err := a.DB.PingContext(ctx); err != nil {
				status["postgres"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if a.Redis != nil {
			if err := a.Redis.Health(ctx); err != nil {
				status["redis"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if code != http.StatusOK {
			status["status"] = "degraded"
		}
		httputil.WriteJSON(w, code, status)
	}
}
