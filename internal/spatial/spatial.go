// Package spatial computes neighborhood skill scores from event fractions:
// the fractions skill score, ensemble reliability and the Brier score.
package spatial

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// BoxMean convolves a with a window x window kernel of ones, zero padded and
// aligned like a "same" convolution, and divides by window^2. Output row i
// covers input rows i-window/2 through i+(window-1)/2; columns likewise.
func BoxMean(a domain.Array2D, window int) (domain.Array2D, error) {
	if window <= 0 {
		return domain.Array2D{}, fmt.Errorf("%w: window must be positive, got %d", domain.ErrConfiguration, window)
	}
	if !a.Valid() {
		return domain.Array2D{}, fmt.Errorf("%w: box mean input %s is malformed", domain.ErrInputShape, a.Shape())
	}
	sat := newSummedFloat(a)
	out := domain.NewArray2D(a.Rows, a.Cols)
	area := float64(window * window)
	before, after := window/2, (window-1)/2
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < a.Cols; j++ {
			out.Set(i, j, sat.window(i-before, j-before, i+after, j+after)/area)
		}
	}
	return out, nil
}

// summedFloat is a summed-area table over float values.
type summedFloat struct {
	rows, cols int
	sum        []float64
}

func newSummedFloat(a domain.Array2D) summedFloat {
	w := a.Cols + 1
	s := summedFloat{rows: a.Rows, cols: a.Cols, sum: make([]float64, (a.Rows+1)*w)}
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < a.Cols; j++ {
			s.sum[(i+1)*w+j+1] = a.At(i, j) + s.sum[i*w+j+1] + s.sum[(i+1)*w+j] - s.sum[i*w+j]
		}
	}
	return s
}

func (s summedFloat) window(i0, j0, i1, j1 int) float64 {
	i0, j0 = max(i0, 0), max(j0, 0)
	i1, j1 = min(i1, s.rows-1), min(j1, s.cols-1)
	if i0 > i1 || j0 > j1 {
		return 0
	}
	w := s.cols + 1
	return s.sum[(i1+1)*w+j1+1] - s.sum[i0*w+j1+1] - s.sum[(i1+1)*w+j0] + s.sum[i0*w+j0]
}

// Exceedance returns a binary event field: 1 where a >= thr, else 0.
func Exceedance(a domain.Array2D, thr float64) domain.Array2D {
	out := domain.NewArray2D(a.Rows, a.Cols)
	for i, v := range a.Data {
		if v >= thr {
			out.Data[i] = 1
		}
	}
	return out
}

// Probability is the per-cell fraction of members at or above thr.
func Probability(members []domain.Array2D, thr float64) (domain.Array2D, error) {
	if len(members) == 0 {
		return domain.Array2D{}, fmt.Errorf("%w: no ensemble members", domain.ErrInputShape)
	}
	out := domain.NewArray2D(members[0].Rows, members[0].Cols)
	for k, m := range members {
		if err := domain.CheckSameShape(fmt.Sprintf("ensemble member %d", k), members[0], m); err != nil {
			return domain.Array2D{}, err
		}
		for i, v := range m.Data {
			if v >= thr {
				out.Data[i]++
			}
		}
	}
	n := float64(len(members))
	for i := range out.Data {
		out.Data[i] /= n
	}
	return out, nil
}

// FSS is the fractions skill score of a deterministic forecast.
func FSS(forecast, reference domain.Array2D, thr domain.Threshold, window int) (float64, error) {
	if err := domain.CheckSameShape("fss fields", forecast, reference); err != nil {
		return math.NaN(), err
	}
	return fractionsSkill(Exceedance(forecast, thr.Forecast), Exceedance(reference, thr.Reference), window)
}

// EnsembleFSS is the fractions skill score with the forecast event field
// replaced by the member exceedance fraction.
func EnsembleFSS(members []domain.Array2D, reference domain.Array2D, thr domain.Threshold, window int) (float64, error) {
	prob, err := Probability(members, thr.Forecast)
	if err != nil {
		return math.NaN(), err
	}
	if err := domain.CheckSameShape("fss fields", prob, reference); err != nil {
		return math.NaN(), err
	}
	return fractionsSkill(prob, Exceedance(reference, thr.Reference), window)
}

// fractionsSkill is 1 - mean((F-R)^2) / (mean(F^2) + mean(R^2)) over the
// box-mean fractions. It is NaN when neither field has an event or the
// reference denominator is zero.
func fractionsSkill(fEvents, rEvents domain.Array2D, window int) (float64, error) {
	if window <= 0 {
		return math.NaN(), fmt.Errorf("%w: fss window must be positive, got %d", domain.ErrConfiguration, window)
	}
	if !anyPositive(fEvents) && !anyPositive(rEvents) {
		return math.NaN(), nil
	}
	F, err := BoxMean(fEvents, window)
	if err != nil {
		return math.NaN(), err
	}
	R, err := BoxMean(rEvents, window)
	if err != nil {
		return math.NaN(), err
	}
	var mse, f2, r2 float64
	for i := range F.Data {
		d := F.Data[i] - R.Data[i]
		mse += d * d
		f2 += F.Data[i] * F.Data[i]
		r2 += R.Data[i] * R.Data[i]
	}
	n := float64(F.Len())
	den := f2/n + r2/n
	if den == 0 {
		return math.NaN(), nil
	}
	return 1 - (mse/n)/den, nil
}

func anyPositive(a domain.Array2D) bool {
	for _, v := range a.Data {
		if v > 0 {
			return true
		}
	}
	return false
}

// Reliability bins the ensemble probability into bins equal-width bins over
// [0, 1) and returns the observed event frequency in each. Empty bins are
// NaN. A probability of exactly 1 falls in no bin.
func Reliability(members []domain.Array2D, reference domain.Array2D, thr domain.Threshold, bins int) ([]float64, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("%w: reliability bins must be positive, got %d", domain.ErrConfiguration, bins)
	}
	prob, err := Probability(members, thr.Forecast)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckSameShape("reliability fields", prob, reference); err != nil {
		return nil, err
	}

	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = domain.ReliabilityEdge(i, bins)
	}
	counts := make([]int, bins)
	events := make([]int, bins)
	for i, p := range prob.Data {
		b := binOf(edges, p)
		if b < 0 {
			continue
		}
		counts[b]++
		if reference.Data[i] >= thr.Reference {
			events[b]++
		}
	}

	out := make([]float64, bins)
	for b := range out {
		if counts[b] == 0 {
			out[b] = math.NaN()
			continue
		}
		out[b] = float64(events[b]) / float64(counts[b])
	}
	return out, nil
}

// binOf returns the bin b with edges[b] <= p < edges[b+1], or -1.
func binOf(edges []float64, p float64) int {
	for b := 0; b < len(edges)-1; b++ {
		if p >= edges[b] && p < edges[b+1] {
			return b
		}
	}
	return -1
}

// Brier is mean((P-O)^2) between the ensemble event probability and the
// reference events. With window > 1 both fields are box-mean pooled first.
// A single member gives the deterministic binary Brier score.
func Brier(members []domain.Array2D, reference domain.Array2D, thr domain.Threshold, window int) (float64, error) {
	return BrierWith(members, reference, thr, window, domain.ProbBinary)
}

// BrierWith is Brier with the forecast probability derived by pt. Every type
// other than ProbBinary works on the member mean. ProbRaw is NaN when the
// mean field is constant.
func BrierWith(members []domain.Array2D, reference domain.Array2D, thr domain.Threshold, window int, pt domain.ProbabilityType) (float64, error) {
	if window < 1 {
		return math.NaN(), fmt.Errorf("%w: brier window must be at least 1, got %d", domain.ErrConfiguration, window)
	}
	prob, err := forecastProbability(members, thr.Forecast, pt)
	if err != nil {
		return math.NaN(), err
	}
	if err := domain.CheckSameShape("brier fields", prob, reference); err != nil {
		return math.NaN(), err
	}
	if prob.Len() == 0 {
		return math.NaN(), nil
	}
	obs := Exceedance(reference, thr.Reference)
	if window > 1 {
		if prob, err = BoxMean(prob, window); err != nil {
			return math.NaN(), err
		}
		if obs, err = BoxMean(obs, window); err != nil {
			return math.NaN(), err
		}
	}
	var sum float64
	for i := range prob.Data {
		d := prob.Data[i] - obs.Data[i]
		sum += d * d
	}
	return sum / float64(prob.Len()), nil
}

func forecastProbability(members []domain.Array2D, thr float64, pt domain.ProbabilityType) (domain.Array2D, error) {
	if pt == domain.ProbBinary {
		return Probability(members, thr)
	}
	mean, err := memberMean(members)
	if err != nil {
		return domain.Array2D{}, err
	}
	out := domain.NewArray2D(mean.Rows, mean.Cols)
	switch pt {
	case domain.ProbRaw:
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range mean.Data {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		for i, v := range mean.Data {
			out.Data[i] = math.NaN()
			if hi > lo {
				out.Data[i] = (v - lo) / (hi - lo)
			}
		}
	case domain.ProbSigmoid:
		for i, v := range mean.Data {
			out.Data[i] = 1 / (1 + math.Exp(-v))
		}
	case domain.ProbSoftmax:
		peak := math.Inf(-1)
		for _, v := range mean.Data {
			peak = math.Max(peak, v)
		}
		var total float64
		for i, v := range mean.Data {
			out.Data[i] = math.Exp(v - peak)
			total += out.Data[i]
		}
		for i := range out.Data {
			out.Data[i] /= total
		}
	default:
		return domain.Array2D{}, fmt.Errorf("%w: unknown probability type %s", domain.ErrConfiguration, pt)
	}
	return out, nil
}

// memberMean is the per-cell mean of the members.
func memberMean(members []domain.Array2D) (domain.Array2D, error) {
	if len(members) == 0 {
		return domain.Array2D{}, fmt.Errorf("%w: no ensemble members", domain.ErrInputShape)
	}
	out := domain.NewArray2D(members[0].Rows, members[0].Cols)
	for k, m := range members {
		if err := domain.CheckSameShape(fmt.Sprintf("ensemble member %d", k), members[0], m); err != nil {
			return domain.Array2D{}, err
		}
		for i, v := range m.Data {
			out.Data[i] += v
		}
	}
	n := float64(len(members))
	for i := range out.Data {
		out.Data[i] /= n
	}
	return out, nil
}
