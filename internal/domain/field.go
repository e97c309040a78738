package domain

import (
	"context"
	"fmt"
	"strconv"
)

// Field is a gridded variable: values plus the latitude and longitude of
// every cell. All three arrays share one shape.
type Field struct {
	Values Array2D
	Lat    Array2D
	Lon    Array2D
}

// NewField validates that values and coordinates share a shape.
func NewField(values, lat, lon Array2D) (Field, error) {
	if err := CheckSameShape("field latitude", values, lat); err != nil {
		return Field{}, err
	}
	if err := CheckSameShape("field longitude", values, lon); err != nil {
		return Field{}, err
	}
	return Field{Values: values, Lat: lat, Lon: lon}, nil
}

// Grid is a target coordinate set with 2D latitude and longitude arrays.
type Grid struct {
	Lat Array2D
	Lon Array2D
}

// NewGrid validates that lat and lon share a shape.
func NewGrid(lat, lon Array2D) (Grid, error) {
	if err := CheckSameShape("grid coordinates", lat, lon); err != nil {
		return Grid{}, err
	}
	return Grid{Lat: lat, Lon: lon}, nil
}

// Threshold defines an event: forecast >= Forecast, reference >= Reference.
type Threshold struct {
	Forecast  float64
	Reference float64
}

// Scalar returns a threshold applied identically to both fields.
func Scalar(v float64) Threshold { return Threshold{Forecast: v, Reference: v} }

func (t Threshold) String() string {
	f := strconv.FormatFloat(t.Forecast, 'g', -1, 64)
	if t.Forecast == t.Reference {
		return f
	}
	return f + "/" + strconv.FormatFloat(t.Reference, 'g', -1, 64)
}

// ContingencyCounts is a 2x2 event classification over one grid.
type ContingencyCounts struct {
	Hits              int
	Misses            int
	FalseAlarms       int
	CorrectRejections int
	Total             int
}

// Consistent reports whether Total equals the sum of the four classes.
func (c ContingencyCounts) Consistent() bool {
	return c.Total == c.Hits+c.Misses+c.FalseAlarms+c.CorrectRejections
}

func (c ContingencyCounts) String() string {
	return fmt.Sprintf("hits=%d misses=%d false_alarms=%d correct_rejections=%d total=%d",
		c.Hits, c.Misses, c.FalseAlarms, c.CorrectRejections, c.Total)
}

// FieldSource supplies decoded fields. Implementations return either a
// well-formed field or an error; a missing field wraps ErrDataUnavailable.
type FieldSource interface {
	ReadField(ctx context.Context, identifier, variable, level string) (Field, error)
}

// GridSource supplies target coordinate sets.
type GridSource interface {
	ReadGrid(ctx context.Context, identifier string) (Grid, error)
}
