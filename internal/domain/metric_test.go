package domain

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetricRequest(t *testing.T) {
	t.Run("mixed request", func(t *testing.T) {
		req, err := ParseMetricRequest("rmse, gss:thr=30:radius=2, fss:fthr=30:rthr=25:window=5")
		require.NoError(t, err)
		want := []MetricSpec{
			{Kind: KindRMSE},
			{Kind: KindGSS, Threshold: Scalar(30), HasThreshold: true, Radius: 2},
			{Kind: KindFSS, Threshold: Threshold{Forecast: 30, Reference: 25}, HasThreshold: true, Window: 5},
		}
		if diff := cmp.Diff(want, req.Specs); diff != "" {
			t.Errorf("specs mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, []string{"rmse", "gss", "fss"}, req.Columns())
	})

	t.Run("defaults", func(t *testing.T) {
		req, err := ParseMetricRequest("reliability:thr=0.5,brier:thr=40")
		require.NoError(t, err)
		assert.Equal(t, DefaultReliabilityBins, req.Specs[0].Bins)
		assert.Equal(t, DefaultBrierWindow, req.Specs[1].Window)
		assert.Equal(t, 11, req.Width())
	})

	t.Run("brier probability type", func(t *testing.T) {
		req, err := ParseMetricRequest("brier:thr=40:prob=Sigmoid,brier:thr=40")
		require.NoError(t, err)
		assert.Equal(t, ProbSigmoid, req.Specs[0].Probability)
		assert.Equal(t, ProbBinary, req.Specs[1].Probability)
		assert.Equal(t, []string{"brier_t40_psigmoid", "brier_t40"}, req.Columns())
	})

	t.Run("aliases", func(t *testing.T) {
		req, err := ParseMetricRequest("correlation,stddev")
		require.NoError(t, err)
		assert.Equal(t, []string{"corr", "stdev"}, req.Columns())
	})

	errCases := map[string]string{
		"unknown metric":         "rmse,skill",
		"missing threshold":      "gss",
		"fss without window":     "fss:thr=30",
		"fss zero window":        "fss:thr=30:window=0",
		"negative radius":        "pod:thr=1:radius=-1",
		"radius on field metric": "rmse:radius=2",
		"bad number":             "gss:thr=abc",
		"unknown key":            "gss:thr=1:size=3",
		"missing value":          "gss:thr",
		"half threshold":         "csi:fthr=3",
		"duplicate":              "rmse,rmse",
		"empty":                  " , ",
		"bins on brier":          "brier:thr=1:bins=3",
		"nan threshold":          "gss:thr=NaN",
		"infinite threshold":     "pod:fthr=Inf:rthr=1",
		"unknown probability":    "brier:thr=1:prob=logit",
		"probability on fss":     "fss:thr=1:window=3:prob=raw",
	}
	for name, in := range errCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMetricRequest(in)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestMetricRequestColumns(t *testing.T) {
	t.Run("quantiles expand", func(t *testing.T) {
		req, err := NewMetricRequest(MetricSpec{Kind: KindBias}, MetricSpec{Kind: KindQuantiles})
		require.NoError(t, err)
		assert.Equal(t, []string{"bias", "25p", "50p", "75p", "IQR", "LW", "UW"}, req.Columns())
	})

	t.Run("reliability bin centers", func(t *testing.T) {
		req, err := NewMetricRequest(MetricSpec{Kind: KindReliability, Threshold: Scalar(0.5), HasThreshold: true, Bins: 4})
		require.NoError(t, err)
		assert.Equal(t, []string{"rel_0.125", "rel_0.375", "rel_0.625", "rel_0.875"}, req.Columns())
	})

	t.Run("repeated names get parameter suffixes", func(t *testing.T) {
		req, err := ParseMetricRequest("gss:thr=30:radius=2,gss:thr=40,fss:thr=30:window=3,fss:fthr=30:rthr=25:window=5,rmse")
		require.NoError(t, err)
		assert.Equal(t, []string{"gss_t30_r2", "gss_t40", "fss_t30_w3", "fss_t30-25_w5", "rmse"}, req.Columns())
	})

	t.Run("width matches columns", func(t *testing.T) {
		req, err := ParseMetricRequest("quantiles,reliability:thr=1:bins=5,csi:thr=2")
		require.NoError(t, err)
		assert.Len(t, req.Columns(), req.Width())
	})
}

func TestMetricRequestValidateFor(t *testing.T) {
	req, err := ParseMetricRequest("fss:thr=30:window=3,reliability:thr=30,brier:thr=30")
	require.NoError(t, err)
	assert.NoError(t, req.ValidateFor(Ensemble))
	assert.NoError(t, req.ValidateFor(Deterministic))

	req, err = ParseMetricRequest("fss:thr=30:window=3,rmse")
	require.NoError(t, err)
	err = req.ValidateFor(Ensemble)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "rmse")
}

func TestMetricSpecValidate_NonFiniteThreshold(t *testing.T) {
	for _, thr := range []Threshold{Scalar(math.NaN()), {Forecast: 1, Reference: math.Inf(-1)}} {
		s := MetricSpec{Kind: KindCSI, Threshold: thr, HasThreshold: true}
		require.ErrorIs(t, s.Validate(), ErrConfiguration)
	}

	// NaN never equals itself, so without the check these would pass the
	// duplicate test and share a column name.
	nan := MetricSpec{Kind: KindGSS, Threshold: Scalar(math.NaN()), HasThreshold: true}
	_, err := NewMetricRequest(nan, nan)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "finite")
}

func TestReliabilityEdge(t *testing.T) {
	assert.Equal(t, 0.0, ReliabilityEdge(0, 10))
	assert.Equal(t, 1.0, ReliabilityEdge(10, 10))
	assert.InDelta(t, 0.3, ReliabilityEdge(3, 10), 1e-15)
}
