// Package contingency classifies forecast and reference events into a 2x2
// contingency table, optionally with a neighborhood tolerance.
package contingency

import (
	"fmt"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// Count classifies every cell. An event is a value at or above its threshold.
//
// With radius 0 cells are compared one to one. With radius r > 0 a forecast
// event anywhere in the clipped (2r+1)x(2r+1) window around a cell counts:
// a reference event there is a hit, otherwise a false alarm; without a
// forecast event in the window the cell is a miss or a correct rejection.
func Count(forecast, reference domain.Array2D, thr domain.Threshold, radius int) (domain.ContingencyCounts, error) {
	if err := domain.CheckSameShape("contingency fields", forecast, reference); err != nil {
		return domain.ContingencyCounts{}, err
	}
	if radius < 0 {
		return domain.ContingencyCounts{}, fmt.Errorf("%w: negative radius %d", domain.ErrConfiguration, radius)
	}

	forecastEvent := func(i, j int) bool { return forecast.At(i, j) >= thr.Forecast }
	if radius > 0 {
		sat := NewSummedArea(forecast.Rows, forecast.Cols, func(i, j int) bool {
			return forecast.At(i, j) >= thr.Forecast
		})
		forecastEvent = func(i, j int) bool {
			return sat.Window(i-radius, j-radius, i+radius, j+radius) > 0
		}
	}

	var c domain.ContingencyCounts
	for i := 0; i < reference.Rows; i++ {
		for j := 0; j < reference.Cols; j++ {
			f := forecastEvent(i, j)
			switch r := reference.At(i, j) >= thr.Reference; {
			case r && f:
				c.Hits++
			case r:
				c.Misses++
			case f:
				c.FalseAlarms++
			default:
				c.CorrectRejections++
			}
		}
	}
	c.Total = reference.Len()
	return c, nil
}

// SummedArea is an inclusive prefix-sum table over a binary mask, answering
// rectangle event counts in constant time.
type SummedArea struct {
	rows, cols int
	sum        []int // (rows+1) x (cols+1), first row and column zero
}

// NewSummedArea builds the table for a rows x cols mask.
func NewSummedArea(rows, cols int, mask func(i, j int) bool) *SummedArea {
	w := cols + 1
	s := &SummedArea{rows: rows, cols: cols, sum: make([]int, (rows+1)*w)}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := 0
			if mask(i, j) {
				v = 1
			}
			s.sum[(i+1)*w+j+1] = v + s.sum[i*w+j+1] + s.sum[(i+1)*w+j] - s.sum[i*w+j]
		}
	}
	return s
}

// Window counts mask cells in rows i0..i1 and columns j0..j1 inclusive,
// clipped to the grid.
func (s *SummedArea) Window(i0, j0, i1, j1 int) int {
	i0, j0 = max(i0, 0), max(j0, 0)
	i1, j1 = min(i1, s.rows-1), min(j1, s.cols-1)
	if i0 > i1 || j0 > j1 {
		return 0
	}
	w := s.cols + 1
	return s.sum[(i1+1)*w+j1+1] - s.sum[i0*w+j1+1] - s.sum[(i1+1)*w+j0] + s.sum[i0*w+j0]
}
