package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-verify/internal/adapter/fieldfile"
	"github.com/couchcryptid/storm-data-verify/internal/adapter/fieldhttp"
	kafkaadapter "github.com/couchcryptid/storm-data-verify/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-verify/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-data-verify/internal/adapter/tsv"
	"github.com/couchcryptid/storm-data-verify/internal/config"
	"github.com/couchcryptid/storm-data-verify/internal/domain"
	"github.com/couchcryptid/storm-data-verify/internal/observability"
)

func TestNewSource(t *testing.T) {
	_, ok := newSource(&config.Config{FieldSource: config.SourceFile}, slog.Default()).(*fieldfile.Source)
	assert.True(t, ok)

	cfg := &config.Config{FieldSource: config.SourceHTTP, FieldBaseURL: "http://fields", FieldTimeout: time.Second}
	_, ok = newSource(cfg, slog.Default()).(*fieldhttp.Client)
	assert.True(t, ok)
}

func TestNewSink(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		cfg  config.Config
		want any
	}{
		{config.Config{OutputSink: config.SinkTSV, OutputPath: filepath.Join(dir, "out.tsv")}, &tsv.Writer{}},
		{config.Config{OutputSink: config.SinkSQLite, OutputPath: filepath.Join(dir, "out.db")}, &sqlite.Store{}},
		{config.Config{OutputSink: config.SinkKafka, KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "rows"}, &kafkaadapter.Writer{}},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.OutputSink, func(t *testing.T) {
			s, err := newSink(&tt.cfg, "run-1", slog.Default())
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
			require.NoError(t, s.Close())
		})
	}
}

func TestNewSink_UnwritablePath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	w, err := newSink(&config.Config{OutputSink: config.SinkTSV, OutputPath: blocker}, "run-1", slog.Default())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = newSink(&config.Config{OutputSink: config.SinkTSV, OutputPath: filepath.Join(blocker, "out.tsv")}, "run-1", slog.Default())
	require.Error(t, err)
}

func TestNewRegridder_TargetUsesCachedGrid(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, fieldfile.WriteFile(filepath.Join(root, "grid.json"), fieldfile.Document{
		Lat: fieldfile.Axis([]float64{30, 31}),
		Lon: fieldfile.Axis([]float64{-100, -99}),
	}))
	cfg := &config.Config{
		Interpolation: config.InterpolationTarget,
		TargetGrid:    filepath.Join(root, "grid.json"),
		GridCacheSize: 2,
	}
	metrics := observability.NewMetricsForTesting()
	r := newRegridder(cfg, fieldfile.NewSource(""), metrics)

	f := fieldfile.Document{
		Values: [][]float64{{1, 2}, {3, 4}},
		Lat:    fieldfile.Axis([]float64{30, 31}),
		Lon:    fieldfile.Axis([]float64{-100, -99}),
	}
	field, err := f.Field()
	require.NoError(t, err)

	task := domain.Task{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Lead: 6}
	for range 2 {
		members, ref, err := r.Apply(context.Background(), task, []domain.Field{field}, field)
		require.NoError(t, err)
		assert.Equal(t, field.Values, members[0])
		assert.Equal(t, field.Values, ref)
	}
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GridCache.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GridCache.WithLabelValues("hit")), 0)
}
