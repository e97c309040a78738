package domain

import "fmt"

// Array2D is a row-major two-dimensional array of float64 values.
type Array2D struct {
	Rows int
	Cols int
	Data []float64
}

// NewArray2D allocates a zeroed rows x cols array.
func NewArray2D(rows, cols int) Array2D {
	return Array2D{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// ArrayFrom copies nested rows into an Array2D. Ragged rows are rejected.
func ArrayFrom(rows [][]float64) (Array2D, error) {
	if len(rows) == 0 {
		return Array2D{}, nil
	}
	cols := len(rows[0])
	a := NewArray2D(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return Array2D{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInputShape, i, len(row), cols)
		}
		copy(a.Data[i*cols:], row)
	}
	return a, nil
}

// MustArray is ArrayFrom for literals in tests and fixtures; it panics on ragged input.
func MustArray(rows [][]float64) Array2D {
	a, err := ArrayFrom(rows)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Array2D) At(i, j int) float64     { return a.Data[i*a.Cols+j] }
func (a Array2D) Set(i, j int, v float64) { a.Data[i*a.Cols+j] = v }
func (a Array2D) Len() int                { return len(a.Data) }

// SameShape reports whether a and b have identical dimensions.
func (a Array2D) SameShape(b Array2D) bool { return a.Rows == b.Rows && a.Cols == b.Cols }

// Valid reports whether the backing slice matches the declared dimensions.
func (a Array2D) Valid() bool {
	return a.Rows >= 0 && a.Cols >= 0 && len(a.Data) == a.Rows*a.Cols
}

func (a Array2D) Shape() string { return fmt.Sprintf("%dx%d", a.Rows, a.Cols) }

// RowsOf returns the array as nested rows, the inverse of ArrayFrom.
func (a Array2D) RowsOf() [][]float64 {
	out := make([][]float64, a.Rows)
	for i := range out {
		out[i] = append([]float64(nil), a.Data[i*a.Cols:(i+1)*a.Cols]...)
	}
	return out
}

// CheckSameShape returns an ErrInputShape error naming what was compared
// when a and b differ in shape.
func CheckSameShape(what string, a, b Array2D) error {
	if !a.Valid() || !b.Valid() {
		return fmt.Errorf("%w: %s: malformed array", ErrInputShape, what)
	}
	if !a.SameShape(b) {
		return fmt.Errorf("%w: %s: %s vs %s", ErrInputShape, what, a.Shape(), b.Shape())
	}
	return nil
}
