package contingency

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

func TestCount_PerCell(t *testing.T) {
	f := domain.MustArray([][]float64{{1, 0}, {1, 0}})
	r := domain.MustArray([][]float64{{1, 1}, {0, 0}})

	got, err := Count(f, r, domain.Scalar(0.5), 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ContingencyCounts{Hits: 1, Misses: 1, FalseAlarms: 1, CorrectRejections: 1, Total: 4}, got)
}

func TestCount_ThresholdIsInclusive(t *testing.T) {
	f := domain.MustArray([][]float64{{30}})
	r := domain.MustArray([][]float64{{25}})

	got, err := Count(f, r, domain.Threshold{Forecast: 30, Reference: 25}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Hits)
}

func TestCount_NeighborhoodRadius(t *testing.T) {
	f := domain.MustArray([][]float64{
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	})
	r := domain.MustArray([][]float64{
		{1, 0, 0, 0, 0},
		{0, 1, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	})

	perCell, err := Count(f, r, domain.Scalar(1), 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ContingencyCounts{Misses: 2, FalseAlarms: 1, CorrectRejections: 22, Total: 25}, perCell)

	// Radius 1: the forecast event at (2,2) reaches the 3x3 block around it.
	got, err := Count(f, r, domain.Scalar(1), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ContingencyCounts{Hits: 1, Misses: 1, FalseAlarms: 8, CorrectRejections: 15, Total: 25}, got)

	got, err = Count(f, r, domain.Scalar(1), 2)
	require.NoError(t, err)
	assert.Equal(t, domain.ContingencyCounts{Hits: 2, FalseAlarms: 23, Total: 25}, got)
}

func TestCount_Errors(t *testing.T) {
	_, err := Count(domain.NewArray2D(2, 2), domain.NewArray2D(2, 3), domain.Scalar(1), 0)
	require.ErrorIs(t, err, domain.ErrInputShape)

	_, err = Count(domain.NewArray2D(2, 2), domain.NewArray2D(2, 2), domain.Scalar(1), -1)
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCount_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 20; trial++ {
		rows, cols := 3+rng.IntN(8), 3+rng.IntN(8)
		f, r := domain.NewArray2D(rows, cols), domain.NewArray2D(rows, cols)
		for i := range f.Data {
			f.Data[i] = rng.Float64()
			r.Data[i] = rng.Float64()
		}
		thr := domain.Scalar(0.8)

		prev, err := Count(f, r, thr, 0)
		require.NoError(t, err)
		events := prev.Hits + prev.Misses
		for radius := 1; radius <= 3; radius++ {
			c, err := Count(f, r, thr, radius)
			require.NoError(t, err)
			assert.True(t, c.Consistent())
			assert.Equal(t, rows*cols, c.Total)
			assert.Equal(t, events, c.Hits+c.Misses, "reference events do not depend on radius")
			assert.GreaterOrEqual(t, c.Hits, prev.Hits, "hits grow with radius")
			prev = c
		}
	}
}

func TestCount_IdenticalFieldsHaveNoErrors(t *testing.T) {
	a := domain.MustArray([][]float64{{5, 1, 7}, {9, 2, 0}})
	got, err := Count(a, a, domain.Scalar(5), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Misses)
	assert.Equal(t, 0, got.FalseAlarms)
}

func TestSummedArea_Window(t *testing.T) {
	mask := [][]bool{
		{true, false, true},
		{false, true, false},
	}
	s := NewSummedArea(2, 3, func(i, j int) bool { return mask[i][j] })

	assert.Equal(t, 3, s.Window(0, 0, 1, 2))
	assert.Equal(t, 1, s.Window(1, 1, 1, 1))
	assert.Equal(t, 2, s.Window(0, 0, 1, 1))
	assert.Equal(t, 3, s.Window(-5, -5, 10, 10), "clipped to the grid")
	assert.Equal(t, 0, s.Window(5, 5, 6, 6))
}
