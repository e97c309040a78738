// Package metric computes scalar and fixed-length vector verification
// metrics from forecast and reference arrays or from contingency counts.
//
// Undefined results are NaN, never errors. Shape mismatches return
// domain.ErrInputShape.
package metric

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// FieldOption configures the field-difference metrics.
type FieldOption func(*fieldOptions)

type fieldOptions struct {
	threshold    float64
	hasThreshold bool
}

// WithForecastThreshold restricts the metric to cells whose forecast value is
// at or above t. The reference value does not take part in the mask.
func WithForecastThreshold(t float64) FieldOption {
	return func(o *fieldOptions) {
		o.threshold = t
		o.hasThreshold = true
	}
}

// differences returns f-r over the qualifying cells.
func differences(forecast, reference domain.Array2D, opts []FieldOption) ([]float64, error) {
	if err := domain.CheckSameShape("metric fields", forecast, reference); err != nil {
		return nil, err
	}
	var o fieldOptions
	for _, opt := range opts {
		opt(&o)
	}
	d := make([]float64, 0, forecast.Len())
	for i, f := range forecast.Data {
		if o.hasThreshold && !(f >= o.threshold) {
			continue
		}
		d = append(d, f-reference.Data[i])
	}
	return d, nil
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

// MSE is mean((f-r)^2).
func MSE(forecast, reference domain.Array2D, opts ...FieldOption) (float64, error) {
	d, err := differences(forecast, reference, opts)
	if err != nil {
		return math.NaN(), err
	}
	for i, v := range d {
		d[i] = v * v
	}
	return mean(d), nil
}

// RMSE is sqrt(mean((f-r)^2)).
func RMSE(forecast, reference domain.Array2D, opts ...FieldOption) (float64, error) {
	mse, err := MSE(forecast, reference, opts...)
	if err != nil {
		return math.NaN(), err
	}
	return math.Sqrt(mse), nil
}

// Bias is mean(f-r).
func Bias(forecast, reference domain.Array2D, opts ...FieldOption) (float64, error) {
	d, err := differences(forecast, reference, opts)
	if err != nil {
		return math.NaN(), err
	}
	return mean(d), nil
}

// MAE is mean(|f-r|).
func MAE(forecast, reference domain.Array2D, opts ...FieldOption) (float64, error) {
	d, err := differences(forecast, reference, opts)
	if err != nil {
		return math.NaN(), err
	}
	for i, v := range d {
		d[i] = math.Abs(v)
	}
	return mean(d), nil
}

// Correlation is the Pearson coefficient of the flattened fields. It is NaN
// when either field is constant.
func Correlation(forecast, reference domain.Array2D) (float64, error) {
	if err := domain.CheckSameShape("metric fields", forecast, reference); err != nil {
		return math.NaN(), err
	}
	if forecast.Len() < 2 || constant(forecast.Data) || constant(reference.Data) {
		return math.NaN(), nil
	}
	return stat.Correlation(forecast.Data, reference.Data, nil), nil
}

func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}

// StdDev is the population standard deviation of the forecast. The
// reference only takes part in the shape check.
func StdDev(forecast, reference domain.Array2D) (float64, error) {
	if err := domain.CheckSameShape("metric fields", forecast, reference); err != nil {
		return math.NaN(), err
	}
	if forecast.Len() == 0 {
		return math.NaN(), nil
	}
	_, std := stat.PopMeanStdDev(forecast.Data, nil)
	return std, nil
}

// Quantile summary positions.
const (
	Q1 = iota
	Q2
	Q3
	IQR
	LowerWhisker
	UpperWhisker
)

// Quantiles summarizes the finite differences f-r as
// [Q1, Q2, Q3, IQR, Q1-1.5*IQR, Q3+1.5*IQR]. Every entry is NaN when no
// finite difference exists.
func Quantiles(forecast, reference domain.Array2D) ([6]float64, error) {
	d, err := finiteDifferences(forecast, reference)
	if err != nil {
		return nanQuantiles(), err
	}
	if len(d) == 0 {
		return nanQuantiles(), nil
	}
	q1, q2, q3 := Percentile(d, 25), Percentile(d, 50), Percentile(d, 75)
	iqr := q3 - q1
	return [6]float64{q1, q2, q3, iqr, q1 - 1.5*iqr, q3 + 1.5*iqr}, nil
}

func finiteDifferences(forecast, reference domain.Array2D) ([]float64, error) {
	if err := domain.CheckSameShape("metric fields", forecast, reference); err != nil {
		return nil, err
	}
	d := make([]float64, 0, forecast.Len())
	for i, f := range forecast.Data {
		v := f - reference.Data[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		d = append(d, v)
	}
	return d, nil
}

func nanQuantiles() [6]float64 {
	var q [6]float64
	for i := range q {
		q[i] = math.NaN()
	}
	return q
}

// Percentile interpolates linearly between the two closest ranks at
// position p/100*(n-1). Callers pass a non-empty slice; it is sorted in
// place on the first call.
func Percentile(x []float64, p float64) float64 {
	if !slices.IsSorted(x) {
		slices.Sort(x)
	}
	pos := p / 100 * float64(len(x)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(x)-1)
	t := pos - float64(lo)
	a, b := x[lo], x[hi]
	if t >= 0.5 {
		return b - (b-a)*(1-t)
	}
	return a + (b-a)*t
}
