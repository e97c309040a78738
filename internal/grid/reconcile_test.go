package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// planeField samples v = 2*lat + 3*lon + 1 on a regular mesh.
func planeField(lats, lons []float64) domain.Field {
	g := Mesh(lats, lons)
	v := domain.NewArray2D(g.Lat.Rows, g.Lat.Cols)
	for i := range v.Data {
		v.Data[i] = 2*g.Lat.Data[i] + 3*g.Lon.Data[i] + 1
	}
	return domain.Field{Values: v, Lat: g.Lat, Lon: g.Lon}
}

func TestMesh(t *testing.T) {
	g := Mesh([]float64{10, 20}, []float64{-100, -99, -98})
	assert.Equal(t, 2, g.Lat.Rows)
	assert.Equal(t, 3, g.Lat.Cols)
	assert.Equal(t, [][]float64{{10, 10, 10}, {20, 20, 20}}, g.Lat.RowsOf())
	assert.Equal(t, [][]float64{{-100, -99, -98}, {-100, -99, -98}}, g.Lon.RowsOf())
}

func TestReconcile_IdentityFastPath(t *testing.T) {
	f := planeField([]float64{30, 31, 32}, []float64{-100, -99})
	f.Values.Set(1, 1, math.NaN())

	target := domain.Grid{Lat: domain.MustArray(f.Lat.RowsOf()), Lon: domain.MustArray(f.Lon.RowsOf())}
	target.Lat.Data[0] += 1e-12

	got, err := Reconcile(f, target)
	require.NoError(t, err)
	assert.Equal(t, f.Values.Rows, got.Rows)
	assert.True(t, math.IsNaN(got.At(1, 1)), "identity path must return values unmodified")
	assert.Equal(t, f.Values.At(2, 0), got.At(2, 0))
}

func TestReconcile_LinearFieldIsExactInsideHull(t *testing.T) {
	f := planeField([]float64{30, 31, 32, 33}, []float64{-100, -99, -98, -97})
	target := Mesh([]float64{30.25, 31.5, 32.75}, []float64{-99.5, -98.1, -97.2})

	got, err := Reconcile(f, target)
	require.NoError(t, err)
	require.Equal(t, 3, got.Rows)
	require.Equal(t, 3, got.Cols)
	for i := range got.Data {
		want := 2*target.Lat.Data[i] + 3*target.Lon.Data[i] + 1
		assert.InDelta(t, want, got.Data[i], 1e-9, "cell %d", i)
	}
}

func TestReconcile_OutsideHullUsesNearest(t *testing.T) {
	f := domain.Field{
		Values: domain.MustArray([][]float64{{1, 2}, {3, 4}}),
		Lat:    domain.MustArray([][]float64{{0, 0}, {1, 1}}),
		Lon:    domain.MustArray([][]float64{{0, 1}, {0, 1}}),
	}
	target := domain.Grid{
		Lat: domain.MustArray([][]float64{{-5, 6}}),
		Lon: domain.MustArray([][]float64{{-5, 6}}),
	}

	got, err := Reconcile(f, target)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.At(0, 0))
	assert.Equal(t, 4.0, got.At(0, 1))
}

func TestReconcile_NaNInterpolationFallsBackToNearest(t *testing.T) {
	f := domain.Field{
		Values: domain.MustArray([][]float64{{math.NaN(), 2, 7}}),
		Lat:    domain.MustArray([][]float64{{0, 0, 1}}),
		Lon:    domain.MustArray([][]float64{{0, 1, 0.5}}),
	}
	target := domain.Grid{
		Lat: domain.MustArray([][]float64{{0.1}}),
		Lon: domain.MustArray([][]float64{{0.9}}),
	}

	got, err := Reconcile(f, target)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.At(0, 0))
}

func TestReconcile_CollinearSourceUsesNearest(t *testing.T) {
	f := domain.Field{
		Values: domain.MustArray([][]float64{{10, 20, 30}}),
		Lat:    domain.MustArray([][]float64{{0, 0, 0}}),
		Lon:    domain.MustArray([][]float64{{0, 1, 2}}),
	}
	target := domain.Grid{
		Lat: domain.MustArray([][]float64{{0.2, -0.3}}),
		Lon: domain.MustArray([][]float64{{1.1, 1.9}}),
	}

	got, err := Reconcile(f, target)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 30}, got.Data)
}

func TestReconcile_ShapeErrors(t *testing.T) {
	good := planeField([]float64{0, 1}, []float64{0, 1})

	t.Run("field coordinates", func(t *testing.T) {
		bad := good
		bad.Lon = domain.NewArray2D(3, 3)
		_, err := Reconcile(bad, Mesh([]float64{0}, []float64{0}))
		require.ErrorIs(t, err, domain.ErrInputShape)
	})

	t.Run("target coordinates", func(t *testing.T) {
		target := domain.Grid{Lat: domain.NewArray2D(2, 2), Lon: domain.NewArray2D(1, 2)}
		_, err := Reconcile(good, target)
		require.ErrorIs(t, err, domain.ErrInputShape)
	})
}

func TestReconcile_ManyTargetsWalkAcrossTriangles(t *testing.T) {
	lats := make([]float64, 12)
	lons := make([]float64, 15)
	for i := range lats {
		lats[i] = 25 + float64(i)*0.5
	}
	for j := range lons {
		lons[j] = -105 + float64(j)*0.5
	}
	f := planeField(lats, lons)

	tl := make([]float64, 20)
	tn := make([]float64, 20)
	for i := range tl {
		tl[i] = 25.1 + float64(i)*0.27
		tn[i] = -104.9 + float64(i)*0.34
	}
	target := Mesh(tl, tn)

	got, err := Reconcile(f, target)
	require.NoError(t, err)
	for i := range got.Data {
		want := 2*target.Lat.Data[i] + 3*target.Lon.Data[i] + 1
		assert.InDelta(t, want, got.Data[i], 1e-8)
	}
}
