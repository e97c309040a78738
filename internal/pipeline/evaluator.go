package pipeline

import (
	"fmt"

	"github.com/couchcryptid/storm-data-verify/internal/contingency"
	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// CountFunc computes contingency counts; contingency.Count in production.
type CountFunc func(forecast, reference domain.Array2D, thr domain.Threshold, radius int) (domain.ContingencyCounts, error)

// Evaluator turns one task's fields into row values in request order.
type Evaluator struct {
	request domain.MetricRequest
	mode    domain.Mode
	count   CountFunc
}

// NewEvaluator checks that every requested metric can run in mode.
func NewEvaluator(req domain.MetricRequest, mode domain.Mode) (*Evaluator, error) {
	if err := req.ValidateFor(mode); err != nil {
		return nil, err
	}
	for _, s := range req.Specs {
		e, err := lookup(s.Kind)
		if err != nil {
			return nil, err
		}
		if mode == domain.Ensemble && e.input != inputMembers {
			return nil, fmt.Errorf("%w: %s needs a single forecast", domain.ErrConfiguration, s.Kind)
		}
	}
	return &Evaluator{request: req, mode: mode, count: contingency.Count}, nil
}

// Columns returns the metric column names.
func (e *Evaluator) Columns() []string { return e.request.Columns() }

// Evaluate computes every requested metric. members holds one forecast in
// deterministic mode and the full member stack in ensemble mode.
func (e *Evaluator) Evaluate(members []domain.Array2D, reference domain.Array2D) ([]float64, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: no forecast fields", domain.ErrInputShape)
	}
	in := &taskInputs{members: members, reference: reference, count: e.count}
	values := make([]float64, 0, e.request.Width())
	for _, s := range e.request.Specs {
		entry, err := lookup(s.Kind)
		if err != nil {
			return nil, err
		}
		v, err := entry.compute(in, s)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", s, err)
		}
		values = append(values, v...)
	}
	return values, nil
}

type countKey struct {
	thr    domain.Threshold
	radius int
}

// taskInputs holds one task's arrays and its memoized contingency counts.
// It is owned by a single worker.
type taskInputs struct {
	members   []domain.Array2D
	reference domain.Array2D
	count     CountFunc
	memo      map[countKey]domain.ContingencyCounts
}

func (in *taskInputs) forecast() domain.Array2D { return in.members[0] }

// counts computes the table for (thr, radius) at most once per task.
func (in *taskInputs) counts(thr domain.Threshold, radius int) (domain.ContingencyCounts, error) {
	key := countKey{thr: thr, radius: radius}
	if c, ok := in.memo[key]; ok {
		return c, nil
	}
	c, err := in.count(in.forecast(), in.reference, thr, radius)
	if err != nil {
		return c, err
	}
	if in.memo == nil {
		in.memo = make(map[countKey]domain.ContingencyCounts)
	}
	in.memo[key] = c
	return c, nil
}
