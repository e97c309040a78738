package main

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-verify/internal/adapter/tsv"
)

func TestBootstrap(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want leadComparison
	}{
		{
			name: "identical models",
			a:    []float64{1, 2, 3},
			b:    []float64{1, 2, 3},
			want: leadComparison{Pairs: 3, ObservedDiff: 0, PValue: 1, Better: "B"},
		},
		{
			name: "model B higher everywhere",
			a:    []float64{1, 2, 3},
			b:    []float64{3, 4, 5},
			want: leadComparison{Pairs: 3, ObservedDiff: 2, PValue: 1, CILower: 2, CIUpper: 2, Better: "B"},
		},
		{
			name: "model B lower everywhere",
			a:    []float64{3, 4, 5},
			b:    []float64{1, 2, 3},
			want: leadComparison{Pairs: 3, ObservedDiff: -2, PValue: 1, CILower: -2, CIUpper: -2, Better: "A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, 2))
			got := bootstrap(tt.a, tt.b, 200, 95, rng)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("bootstrap mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBootstrap_VaryingDifferences(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{2, 2, 5, 5} // b-a = 1, 0, 2, 1

	got := bootstrap(a, b, 2000, 90, rand.New(rand.NewPCG(7, 7)))

	assert.Equal(t, 4, got.Pairs)
	assert.InDelta(t, 1.0, got.ObservedDiff, 1e-12)
	assert.Greater(t, got.PValue, 0.0)
	assert.Less(t, got.PValue, 1.0)
	assert.False(t, got.Significant)
	assert.GreaterOrEqual(t, got.CILower, 0.0)
	assert.LessOrEqual(t, got.CILower, got.ObservedDiff)
	assert.GreaterOrEqual(t, got.CIUpper, got.ObservedDiff)
	assert.LessOrEqual(t, got.CIUpper, 2.0)
	assert.Equal(t, "B", got.Better)

	again := bootstrap(a, b, 2000, 90, rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, got, again, "same seed must reproduce the result")
}

func TestCompareModels_PairsCommonRows(t *testing.T) {
	d1 := day.Add(24 * time.Hour)
	d2 := day.Add(48 * time.Hour)
	a := tsv.Table{
		Columns: []string{"bias", "rmse"},
		Records: []tsv.Record{
			{Date: day, Lead: 0, Values: []float64{0, 1}},
			{Date: d1, Lead: 0, Values: []float64{0, 2}},
			{Date: day, Lead: 6, Values: []float64{0, math.NaN()}},
			{Date: d1, Lead: 6, Values: []float64{0, 3}},
			{Date: day, Lead: 12, Values: []float64{0, 5}},
		},
	}
	b := tsv.Table{
		Columns: []string{"rmse"},
		Records: []tsv.Record{
			{Date: day, Lead: 0, Values: []float64{2}},
			{Date: d1, Lead: 0, Values: []float64{3}},
			{Date: day, Lead: 6, Values: []float64{1}},
			{Date: d1, Lead: 6, Values: []float64{4}},
			{Date: d2, Lead: 12, Values: []float64{5}},
		},
	}

	got, err := compareModels(a, b, compareOptions{metric: "rmse", iterations: 100, ci: 95, seed: 1})
	require.NoError(t, err)

	want := []leadComparison{
		{Lead: 0, Pairs: 2, ObservedDiff: 1, PValue: 1, CILower: 1, CIUpper: 1, Better: "B"},
		{Lead: 6, Pairs: 1, ObservedDiff: 1, PValue: 1, CILower: 1, CIUpper: 1, Better: "B"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("compareModels mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareModels_Errors(t *testing.T) {
	table := tsv.Table{Columns: []string{"rmse"}}
	other := tsv.Table{Columns: []string{"bias"}}
	valid := compareOptions{metric: "rmse", iterations: 10, ci: 95}

	tests := []struct {
		name    string
		b       tsv.Table
		mutate  func(*compareOptions)
		wantErr string
	}{
		{"no metric", table, func(o *compareOptions) { o.metric = "" }, "no metric"},
		{"zero iterations", table, func(o *compareOptions) { o.iterations = 0 }, "iterations"},
		{"interval of 100", table, func(o *compareOptions) { o.ci = 100 }, "confidence interval"},
		{"nan interval", table, func(o *compareOptions) { o.ci = math.NaN() }, "confidence interval"},
		{"column missing from B", other, func(*compareOptions) {}, `model B has no "rmse" column`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			_, err := compareModels(table, tt.b, opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompare_SameTable(t *testing.T) {
	path := writeTSV(t, rows())

	var out bytes.Buffer
	code := compare(&out, path, path, compareOptions{metric: "pod_t30", iterations: 50, ci: 95, seed: 3})

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "Model Comparison: pod_t30")
	assert.NotContains(t, out.String(), "true")
}

func TestCompare_MissingColumn(t *testing.T) {
	path := writeTSV(t, rows())

	var out bytes.Buffer
	code := compare(&out, path, path, compareOptions{metric: "csi", iterations: 10, ci: 95})

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), `model A has no "csi" column`)
}
