// Package grid projects fields from their native coordinates onto a target
// coordinate set.
//
// Source points are triangulated in (lon, lat) space and every target point
// is linearly interpolated inside its enclosing triangle. Targets outside the
// convex hull of the source take the value of the nearest source point.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/fogleman/delaunay"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// coordTolerance is the per-coordinate slack for the identity fast path.
const coordTolerance = 1e-9

// Reconcile returns field values on the target grid. When the field already
// lies on the target grid its values are returned unmodified.
func Reconcile(field domain.Field, target domain.Grid) (domain.Array2D, error) {
	if err := checkField(field); err != nil {
		return domain.Array2D{}, err
	}
	if err := domain.CheckSameShape("target grid", target.Lat, target.Lon); err != nil {
		return domain.Array2D{}, err
	}
	if sameCoordinates(field, target) {
		return field.Values, nil
	}
	if field.Values.Len() == 0 {
		return domain.Array2D{}, fmt.Errorf("%w: empty source field", domain.ErrInputShape)
	}

	out := domain.NewArray2D(target.Lat.Rows, target.Lat.Cols)
	nearest := newNearestIndex(field)

	tri, err := newTriangulation(field)
	if err != nil {
		// Collinear or too few points: no interior to interpolate over.
		for i := range out.Data {
			out.Data[i] = nearest.value(target.Lat.Data[i], target.Lon.Data[i])
		}
		return out, nil
	}

	for i := range out.Data {
		lat, lon := target.Lat.Data[i], target.Lon.Data[i]
		v, ok := tri.interpolate(lon, lat)
		if !ok || math.IsNaN(v) {
			v = nearest.value(lat, lon)
		}
		out.Data[i] = v
	}
	return out, nil
}

// Mesh expands 1D latitude and longitude axes into 2D arrays with latitude
// varying along rows and longitude along columns.
func Mesh(lats, lons []float64) domain.Grid {
	lat := domain.NewArray2D(len(lats), len(lons))
	lon := domain.NewArray2D(len(lats), len(lons))
	for i, la := range lats {
		for j, lo := range lons {
			lat.Set(i, j, la)
			lon.Set(i, j, lo)
		}
	}
	return domain.Grid{Lat: lat, Lon: lon}
}

func checkField(f domain.Field) error {
	if err := domain.CheckSameShape("source latitude", f.Values, f.Lat); err != nil {
		return err
	}
	return domain.CheckSameShape("source longitude", f.Values, f.Lon)
}

func sameCoordinates(f domain.Field, g domain.Grid) bool {
	if !f.Lat.SameShape(g.Lat) {
		return false
	}
	return within(f.Lat.Data, g.Lat.Data) && within(f.Lon.Data, g.Lon.Data)
}

func within(a, b []float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > coordTolerance {
			return false
		}
	}
	return true
}

var errOutsideHull = errors.New("point outside convex hull")

// triangulation locates points by walking the Delaunay triangles.
type triangulation struct {
	t      *delaunay.Triangulation
	values []float64
	last   int // triangle the previous walk ended in
}

func newTriangulation(f domain.Field) (*triangulation, error) {
	points := make([]delaunay.Point, f.Values.Len())
	for i := range points {
		points[i] = delaunay.Point{X: f.Lon.Data[i], Y: f.Lat.Data[i]}
	}
	t, err := delaunay.Triangulate(points)
	if err != nil {
		return nil, fmt.Errorf("triangulate source: %w", err)
	}
	if len(t.Triangles) == 0 {
		return nil, errors.New("triangulate source: no triangles")
	}
	return &triangulation{t: t, values: f.Values.Data}, nil
}

// interpolate returns the barycentric interpolation at (x, y), or false when
// the point lies outside the convex hull.
func (tr *triangulation) interpolate(x, y float64) (float64, bool) {
	tri, l, err := tr.locate(x, y)
	if err != nil {
		return math.NaN(), false
	}
	ts := tr.t.Triangles
	return l[0]*tr.values[ts[3*tri]] + l[1]*tr.values[ts[3*tri+1]] + l[2]*tr.values[ts[3*tri+2]], true
}

// locate walks from the last triangle toward (x, y), crossing the edge
// opposite the most negative barycentric coordinate. A walk that has not
// converged after every triangle was visited falls back to a scan.
func (tr *triangulation) locate(x, y float64) (int, [3]float64, error) {
	const eps = -1e-12
	n := len(tr.t.Triangles) / 3
	tri := tr.last
	for steps := 0; steps <= n; steps++ {
		l := tr.barycentric(tri, x, y)
		worst := 0
		for k := 1; k < 3; k++ {
			if l[k] < l[worst] {
				worst = k
			}
		}
		if l[worst] >= eps {
			tr.last = tri
			return tri, l, nil
		}
		// Halfedge 3t+k runs from vertex k to vertex k+1, so the edge
		// opposite vertex k is halfedge 3t+(k+1)%3.
		next := tr.t.Halfedges[3*tri+(worst+1)%3]
		if next < 0 {
			return 0, l, errOutsideHull
		}
		tri = next / 3
	}
	return tr.scan(x, y)
}

func (tr *triangulation) scan(x, y float64) (int, [3]float64, error) {
	const eps = -1e-12
	for tri := 0; tri < len(tr.t.Triangles)/3; tri++ {
		l := tr.barycentric(tri, x, y)
		if l[0] >= eps && l[1] >= eps && l[2] >= eps {
			tr.last = tri
			return tri, l, nil
		}
	}
	return 0, [3]float64{}, errOutsideHull
}

func (tr *triangulation) barycentric(tri int, x, y float64) [3]float64 {
	ts, ps := tr.t.Triangles, tr.t.Points
	a, b, c := ps[ts[3*tri]], ps[ts[3*tri+1]], ps[ts[3*tri+2]]
	det := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	la := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / det
	lb := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / det
	return [3]float64{la, lb, 1 - la - lb}
}
