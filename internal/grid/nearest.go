package grid

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// sourcePoint is a source cell in (lon, lat) space carrying its value.
type sourcePoint struct {
	lon, lat float64
	value    float64
}

func (p sourcePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(sourcePoint)
	if d == 0 {
		return p.lon - q.lon
	}
	return p.lat - q.lat
}

func (p sourcePoint) Dims() int { return 2 }

// Distance is the squared euclidean distance, as kdtree expects.
func (p sourcePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(sourcePoint)
	dx, dy := p.lon-q.lon, p.lat-q.lat
	return dx*dx + dy*dy
}

// sourcePoints implements kdtree.Interface.
type sourcePoints []sourcePoint

func (s sourcePoints) Index(i int) kdtree.Comparable { return s[i] }
func (s sourcePoints) Len() int                      { return len(s) }
func (s sourcePoints) Slice(start, end int) kdtree.Interface {
	return s[start:end]
}

func (s sourcePoints) Pivot(d kdtree.Dim) int {
	return plane{sourcePoints: s, dim: d}.pivot()
}

// plane orders points along one dimension for median partitioning.
type plane struct {
	sourcePoints
	dim kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.sourcePoints[i].Compare(p.sourcePoints[j], p.dim) < 0
}
func (p plane) Swap(i, j int) { p.sourcePoints[i], p.sourcePoints[j] = p.sourcePoints[j], p.sourcePoints[i] }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{sourcePoints: p.sourcePoints[start:end], dim: p.dim}
}

func (p plane) pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfRandoms(p, 100))
}

// nearestIndex answers nearest-source-value queries.
type nearestIndex struct {
	tree *kdtree.Tree
}

func newNearestIndex(f domain.Field) nearestIndex {
	pts := make(sourcePoints, f.Values.Len())
	for i := range pts {
		pts[i] = sourcePoint{lon: f.Lon.Data[i], lat: f.Lat.Data[i], value: f.Values.Data[i]}
	}
	return nearestIndex{tree: kdtree.New(pts, false)}
}

func (n nearestIndex) value(lat, lon float64) float64 {
	got, _ := n.tree.Nearest(sourcePoint{lon: lon, lat: lat})
	return got.(sourcePoint).value
}
