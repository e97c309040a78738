package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/storm-data-verify/internal/adapter/fieldfile"
	"github.com/couchcryptid/storm-data-verify/internal/adapter/fieldhttp"
	"github.com/couchcryptid/storm-data-verify/internal/adapter/gridcache"
	kafkaadapter "github.com/couchcryptid/storm-data-verify/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-verify/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-data-verify/internal/adapter/tsv"
	"github.com/couchcryptid/storm-data-verify/internal/config"
	"github.com/couchcryptid/storm-data-verify/internal/domain"
	"github.com/couchcryptid/storm-data-verify/internal/observability"
	"github.com/couchcryptid/storm-data-verify/internal/pipeline"
)

// source reads both fields and target grids.
type source interface {
	domain.FieldSource
	domain.GridSource
}

func newSource(cfg *config.Config, logger *slog.Logger) source {
	if cfg.FieldSource == config.SourceHTTP {
		logger.Info("reading fields over http", "base_url", cfg.FieldBaseURL, "timeout", cfg.FieldTimeout)
		return fieldhttp.NewClient(cfg.FieldBaseURL, cfg.FieldTimeout, logger)
	}
	return fieldfile.NewSource("")
}

func newRegridder(cfg *config.Config, grids domain.GridSource, metrics *observability.Metrics) *pipeline.Regridder {
	switch cfg.Interpolation {
	case config.InterpolationTarget:
		return pipeline.OntoTarget(gridcache.New(grids, cfg.GridCacheSize, metrics), cfg.TargetGrid)
	case config.InterpolationForecast:
		return pipeline.OntoForecast()
	default:
		return pipeline.NoRegrid()
	}
}

// sink is a pipeline.Sink that owns resources.
type sink interface {
	pipeline.Sink
	io.Closer
}

func newSink(cfg *config.Config, runID string, logger *slog.Logger) (sink, error) {
	switch cfg.OutputSink {
	case config.SinkSQLite:
		s, err := sqlite.Open(cfg.OutputPath, runID)
		if err != nil {
			return nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		return s, nil
	case config.SinkKafka:
		return kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, runID, logger), nil
	default:
		w, err := tsv.Create(cfg.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("open tsv sink: %w", err)
		}
		return w, nil
	}
}
