package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayFrom(t *testing.T) {
	t.Run("row major", func(t *testing.T) {
		a, err := ArrayFrom([][]float64{{1, 2, 3}, {4, 5, 6}})
		require.NoError(t, err)
		assert.Equal(t, 2, a.Rows)
		assert.Equal(t, 3, a.Cols)
		assert.Equal(t, 6.0, a.At(1, 2))
		assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, a.Data)
	})

	t.Run("ragged rows", func(t *testing.T) {
		_, err := ArrayFrom([][]float64{{1, 2}, {3}})
		require.ErrorIs(t, err, ErrInputShape)
		assert.Contains(t, err.Error(), "row 1")
	})

	t.Run("round trip through rows", func(t *testing.T) {
		rows := [][]float64{{1, 2}, {3, 4}}
		assert.Equal(t, rows, MustArray(rows).RowsOf())
	})
}

func TestNewField(t *testing.T) {
	v := MustArray([][]float64{{1, 2}, {3, 4}})
	lat := MustArray([][]float64{{0, 0}, {1, 1}})

	t.Run("matching shapes", func(t *testing.T) {
		f, err := NewField(v, lat, lat)
		require.NoError(t, err)
		assert.Equal(t, v, f.Values)
	})

	t.Run("longitude shape mismatch", func(t *testing.T) {
		_, err := NewField(v, lat, MustArray([][]float64{{0, 1, 2}}))
		require.ErrorIs(t, err, ErrInputShape)
		assert.Contains(t, err.Error(), "2x2 vs 1x3")
	})

	t.Run("malformed backing slice", func(t *testing.T) {
		bad := Array2D{Rows: 2, Cols: 2, Data: []float64{1}}
		_, err := NewField(bad, lat, lat)
		require.ErrorIs(t, err, ErrInputShape)
	})
}

func TestNewGrid(t *testing.T) {
	_, err := NewGrid(NewArray2D(2, 3), NewArray2D(3, 2))
	require.ErrorIs(t, err, ErrInputShape)
}

func TestContingencyCountsConsistent(t *testing.T) {
	assert.True(t, ContingencyCounts{Hits: 1, Misses: 2, FalseAlarms: 3, CorrectRejections: 4, Total: 10}.Consistent())
	assert.False(t, ContingencyCounts{Hits: 1, Total: 2}.Consistent())
}

func TestThresholdString(t *testing.T) {
	assert.Equal(t, "30", Scalar(30).String())
	assert.Equal(t, "30/25.5", Threshold{Forecast: 30, Reference: 25.5}.String())
}
