// Command verify compares forecast fields against reference fields over a
// sweep of dates, lead times and members, and writes one row of metrics per
// task to the configured sink.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"

	"github.com/couchcryptid/storm-data-verify/internal/adapter/httpadapter"
	"github.com/couchcryptid/storm-data-verify/internal/config"
	"github.com/couchcryptid/storm-data-verify/internal/observability"
	"github.com/couchcryptid/storm-data-verify/internal/pipeline"
)

const serviceName = "storm-data-verify"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTelEndpoint, serviceName)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		return 1
	}

	runID := uuid.NewString()
	src := newSource(cfg, logger)
	out, err := newSink(cfg, runID, logger)
	if err != nil {
		logger.Error("failed to open sink", "error", err)
		return 1
	}

	p := pipeline.New(cfg.Plan, cfg.Metrics,
		pipeline.NewTemplateLoader(src, cfg.ForecastTemplate, cfg.ForecastVar, cfg.ForecastLevel).
			WithShiftHours(cfg.ForecastShiftHours),
		pipeline.NewTemplateLoader(src, cfg.ReferenceTemplate, cfg.ReferenceVar, cfg.ReferenceLevel),
		out, logger, metrics,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithOrderedOutput(cfg.OrderedOutput),
		pipeline.WithRegridder(newRegridder(cfg, src, metrics)),
		pipeline.WithRunID(runID),
	)

	srv := httpadapter.NewServer[pipeline.Status](cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("verification starting",
		"run_id", runID,
		"sink", cfg.OutputSink,
		"metrics", cfg.Metrics.String(),
		"interpolation", cfg.Interpolation,
		"forecast_shift_hours", cfg.ForecastShiftHours,
	)
	summary, runErr := p.Run(ctx)
	if runErr != nil {
		logger.Error("run rejected", "error", runErr)
	} else {
		for _, f := range summary.Failures {
			logger.Debug("skipped task", "task", f.Task.String(), "reason", f.Reason, "error", f.Err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := out.Close(); err != nil {
		logger.Error("sink close error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	if runErr != nil {
		return 1
	}
	return 0
}
