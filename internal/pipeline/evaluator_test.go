package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-verify/internal/contingency"
	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

func TestKindTable_CoversEveryKind(t *testing.T) {
	for k := domain.KindRMSE; k <= domain.KindBrier; k++ {
		e, err := lookup(k)
		require.NoError(t, err, k.String())
		assert.Equal(t, k.EnsembleAware(), e.input == inputMembers, k.String())
		assert.Equal(t, k.UsesCounts(), e.input == inputCounts, k.String())
	}
	_, err := lookup(domain.MetricKind(99))
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestEvaluator_MemoizesCountsPerThresholdAndRadius(t *testing.T) {
	req, err := domain.ParseMetricRequest("gss:thr=1,pod:thr=1,far:thr=1,csi:thr=1:radius=1,sr:thr=2")
	require.NoError(t, err)
	ev, err := NewEvaluator(req, domain.Deterministic)
	require.NoError(t, err)

	calls := map[countKey]int{}
	ev.count = func(f, r domain.Array2D, thr domain.Threshold, radius int) (domain.ContingencyCounts, error) {
		calls[countKey{thr: thr, radius: radius}]++
		return contingency.Count(f, r, thr, radius)
	}

	f := domain.MustArray([][]float64{{1, 0}, {2, 0}})
	r := domain.MustArray([][]float64{{1, 1}, {0, 2}})
	values, err := ev.Evaluate([]domain.Array2D{f}, r)
	require.NoError(t, err)
	assert.Len(t, values, 5)

	assert.Equal(t, map[countKey]int{
		{thr: domain.Scalar(1), radius: 0}: 1,
		{thr: domain.Scalar(1), radius: 1}: 1,
		{thr: domain.Scalar(2), radius: 0}: 1,
	}, calls)

	// A second task starts with an empty memo.
	_, err = ev.Evaluate([]domain.Array2D{f}, r)
	require.NoError(t, err)
	assert.Equal(t, 2, calls[countKey{thr: domain.Scalar(1), radius: 0}])
}

func TestEvaluator_ValuesFollowRequestOrder(t *testing.T) {
	req, err := domain.ParseMetricRequest("bias,quantiles,pod:thr=1")
	require.NoError(t, err)
	ev, err := NewEvaluator(req, domain.Deterministic)
	require.NoError(t, err)

	f := domain.MustArray([][]float64{{1, 2, 3, 4}})
	r := domain.NewArray2D(1, 4)
	values, err := ev.Evaluate([]domain.Array2D{f}, r)
	require.NoError(t, err)
	require.Len(t, values, len(ev.Columns()))
	assert.InDelta(t, 2.5, values[0], 1e-12)
	assert.InDelta(t, 2.5, values[2], 1e-12) // median
}

func TestNewEvaluator_RejectsFieldMetricsInEnsembleMode(t *testing.T) {
	req, err := domain.ParseMetricRequest("brier:thr=1,corr")
	require.NoError(t, err)
	_, err = NewEvaluator(req, domain.Ensemble)
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCollector_Ordered(t *testing.T) {
	var got []int
	c := newCollector(true, func(o domain.TaskOutcome) { got = append(got, o.Task.Lead) })

	c.add(2, domain.TaskOutcome{Task: domain.Task{Lead: 2}})
	c.add(1, domain.TaskOutcome{Task: domain.Task{Lead: 1}})
	assert.Empty(t, got)
	c.add(0, domain.TaskOutcome{Task: domain.Task{Lead: 0}})
	assert.Equal(t, []int{0, 1, 2}, got)
	c.add(3, domain.TaskOutcome{Task: domain.Task{Lead: 3}})
	assert.Equal(t, []int{0, 1, 2, 3}, got)
	assert.Empty(t, c.pending)
}

func TestCollector_Unordered(t *testing.T) {
	var got []int
	c := newCollector(false, func(o domain.TaskOutcome) { got = append(got, o.Task.Lead) })
	c.add(2, domain.TaskOutcome{Task: domain.Task{Lead: 2}})
	c.add(0, domain.TaskOutcome{Task: domain.Task{Lead: 0}})
	assert.Equal(t, []int{2, 0}, got)
}
