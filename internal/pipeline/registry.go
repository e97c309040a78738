package pipeline

import (
	"fmt"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
	"github.com/couchcryptid/storm-data-verify/internal/metric"
	"github.com/couchcryptid/storm-data-verify/internal/spatial"
)

// input is what a metric consumes.
type input int

const (
	inputFields  input = iota // one forecast and the reference
	inputCounts               // contingency counts for (threshold, radius)
	inputMembers              // every forecast member and the reference
)

type computeFunc func(in *taskInputs, s domain.MetricSpec) ([]float64, error)

type kindEntry struct {
	input   input
	compute computeFunc
}

var kindTable = map[domain.MetricKind]kindEntry{
	domain.KindRMSE:        {inputFields, thresholded(metric.RMSE)},
	domain.KindMSE:         {inputFields, thresholded(metric.MSE)},
	domain.KindBias:        {inputFields, thresholded(metric.Bias)},
	domain.KindMAE:         {inputFields, thresholded(metric.MAE)},
	domain.KindCorrelation: {inputFields, plain(metric.Correlation)},
	domain.KindStdDev:      {inputFields, plain(metric.StdDev)},
	domain.KindQuantiles:   {inputFields, quantiles},
	domain.KindGSS:         {inputCounts, fromCounts(metric.GSS)},
	domain.KindFBias:       {inputCounts, fromCounts(metric.FBias)},
	domain.KindPOD:         {inputCounts, fromCounts(metric.POD)},
	domain.KindFAR:         {inputCounts, fromCounts(metric.FAR)},
	domain.KindSR:          {inputCounts, fromCounts(metric.SR)},
	domain.KindCSI:         {inputCounts, fromCounts(metric.CSI)},
	domain.KindFSS:         {inputMembers, fss},
	domain.KindReliability: {inputMembers, reliability},
	domain.KindBrier:       {inputMembers, brier},
}

// lookup returns the table entry for a kind.
func lookup(k domain.MetricKind) (kindEntry, error) {
	e, ok := kindTable[k]
	if !ok {
		return kindEntry{}, fmt.Errorf("%w: no implementation for %s", domain.ErrConfiguration, k)
	}
	return e, nil
}

func thresholded(fn func(f, r domain.Array2D, opts ...metric.FieldOption) (float64, error)) computeFunc {
	return func(in *taskInputs, s domain.MetricSpec) ([]float64, error) {
		var opts []metric.FieldOption
		if s.HasThreshold {
			opts = append(opts, metric.WithForecastThreshold(s.Threshold.Forecast))
		}
		v, err := fn(in.forecast(), in.reference, opts...)
		return []float64{v}, err
	}
}

func plain(fn func(f, r domain.Array2D) (float64, error)) computeFunc {
	return func(in *taskInputs, _ domain.MetricSpec) ([]float64, error) {
		v, err := fn(in.forecast(), in.reference)
		return []float64{v}, err
	}
}

func quantiles(in *taskInputs, _ domain.MetricSpec) ([]float64, error) {
	q, err := metric.Quantiles(in.forecast(), in.reference)
	return q[:], err
}

func fromCounts(fn func(domain.ContingencyCounts) float64) computeFunc {
	return func(in *taskInputs, s domain.MetricSpec) ([]float64, error) {
		c, err := in.counts(s.Threshold, s.Radius)
		if err != nil {
			return nil, err
		}
		return []float64{fn(c)}, nil
	}
}

func fss(in *taskInputs, s domain.MetricSpec) ([]float64, error) {
	var v float64
	var err error
	if len(in.members) == 1 {
		v, err = spatial.FSS(in.members[0], in.reference, s.Threshold, s.Window)
	} else {
		v, err = spatial.EnsembleFSS(in.members, in.reference, s.Threshold, s.Window)
	}
	return []float64{v}, err
}

func reliability(in *taskInputs, s domain.MetricSpec) ([]float64, error) {
	return spatial.Reliability(in.members, in.reference, s.Threshold, s.Bins)
}

func brier(in *taskInputs, s domain.MetricSpec) ([]float64, error) {
	v, err := spatial.BrierWith(in.members, in.reference, s.Threshold, s.Window, s.Probability)
	return []float64{v}, err
}
