package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/omerorhan/erp-settings-service/internal/config"
	"github.com/omerorhan/erp-settings-service/internal/metrics"
	"github.com/omerorhan/erp-settings-service/internal/service"
	httptransport "github.com/omerorhan/erp-settings-service/internal/transport/http"
)

func main() {
	w := log.NewSyncWriter(os.Stderr)
	logger := log.NewLogfmtLogger(w)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	cfg, err := config.Load()
	if err != nil {
		level.Error(logger).Log("msg", "failed to load config", "err", err)
		os.Exit(1)
	}
	logger = level.NewFilter(logger, levelOption(cfg.Log.Level))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := service.NewSettingsService(
		service.WithRedisConfig(cfg.Redis.Addr),
		service.WithRatesURL(cfg.Rates.URL),
		service.WithRatesTTL(cfg.Rates.TTL),
		service.WithRatesRefreshInterval(cfg.Rates.RefreshInterval),
		service.WithSettingsURL(cfg.Settings.URL, cfg.Settings.BasicAuth),
		service.WithHTTPTimeout(cfg.HTTP.Timeout),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		level.Error(logger).Log("msg", "failed to create settings service", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// /healthz reports loading until this finishes
	go svc.Initialize(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httptransport.NewServer(svc, log.With(logger, "component", "http"), reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "listening", "addr", cfg.HTTP.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		level.Info(logger).Log("msg", "shutting down")
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			level.Error(logger).Log("msg", "http server failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		level.Warn(logger).Log("msg", "http shutdown", "err", err)
	}
	svc.Stop()
}

func levelOption(l string) level.Option {
	switch l {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
