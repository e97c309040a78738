package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/storm-data-verify/internal/adapter/tsv"
	"github.com/couchcryptid/storm-data-verify/internal/metric"
)

// ── Model comparison ──

const significanceLevel = 0.05

type compareOptions struct {
	metric     string
	iterations int
	ci         float64
	seed       uint64
}

func (o compareOptions) validate() error {
	switch {
	case o.metric == "":
		return errors.New("no metric column to compare")
	case o.iterations < 1:
		return fmt.Errorf("iterations must be positive, got %d", o.iterations)
	case !(o.ci > 0 && o.ci < 100):
		return fmt.Errorf("confidence interval must be in (0, 100), got %g", o.ci)
	}
	return nil
}

// leadComparison is the bootstrap outcome of model B against model A at one
// lead. ObservedDiff is mean(B) - mean(A).
type leadComparison struct {
	Lead         int
	Pairs        int
	ObservedDiff float64
	PValue       float64
	CILower      float64
	CIUpper      float64
	Better       string
	Significant  bool
}

type pairKey struct {
	date   time.Time
	lead   int
	member string
}

// pairsByLead matches the metric values of a and b that share date, lead and
// member. Pairs with NaN on either side are dropped. The result holds A's
// values at index 0 and B's at index 1.
func pairsByLead(a, b tsv.Table, column string) (map[int][2][]float64, error) {
	ia, ib := slices.Index(a.Columns, column), slices.Index(b.Columns, column)
	if ia < 0 {
		return nil, fmt.Errorf("model A has no %q column", column)
	}
	if ib < 0 {
		return nil, fmt.Errorf("model B has no %q column", column)
	}

	bvals := make(map[pairKey]float64, len(b.Records))
	for _, r := range b.Records {
		if ib < len(r.Values) {
			bvals[pairKey{r.Date.UTC(), r.Lead, r.Member}] = r.Values[ib]
		}
	}

	out := map[int][2][]float64{}
	for _, r := range a.Records {
		if ia >= len(r.Values) {
			continue
		}
		vb, ok := bvals[pairKey{r.Date.UTC(), r.Lead, r.Member}]
		va := r.Values[ia]
		if !ok || math.IsNaN(va) || math.IsNaN(vb) {
			continue
		}
		p := out[r.Lead]
		p[0] = append(p[0], va)
		p[1] = append(p[1], vb)
		out[r.Lead] = p
	}
	return out, nil
}

// bootstrap resamples paired indices with replacement and collects the mean
// difference b-a of every resample. The p-value is the share of resampled
// differences at least as large in magnitude as the observed one.
func bootstrap(a, b []float64, iterations int, ci float64, rng *rand.Rand) leadComparison {
	n := len(a)
	diffs := make([]float64, iterations)
	for k := range diffs {
		var sum float64
		for range n {
			i := rng.IntN(n)
			sum += b[i] - a[i]
		}
		diffs[k] = sum / float64(n)
	}

	observed := stat.Mean(b, nil) - stat.Mean(a, nil)
	extreme := 0
	for _, d := range diffs {
		if math.Abs(d) >= math.Abs(observed) {
			extreme++
		}
	}
	p := float64(extreme) / float64(iterations)

	c := leadComparison{
		Pairs:        n,
		ObservedDiff: observed,
		PValue:       p,
		CILower:      metric.Percentile(diffs, (100-ci)/2),
		CIUpper:      metric.Percentile(diffs, 100-(100-ci)/2),
		Better:       "B",
		Significant:  p < significanceLevel,
	}
	if observed < 0 {
		c.Better = "A"
	}
	return c
}

// compareModels runs the bootstrap at every lead both tables share, in lead
// order, drawing from one seeded generator.
func compareModels(a, b tsv.Table, opts compareOptions) ([]leadComparison, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	pairs, err := pairsByLead(a, b, opts.metric)
	if err != nil {
		return nil, err
	}
	leads := make([]int, 0, len(pairs))
	for lead := range pairs {
		leads = append(leads, lead)
	}
	slices.Sort(leads)

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	out := make([]leadComparison, 0, len(leads))
	for _, lead := range leads {
		c := bootstrap(pairs[lead][0], pairs[lead][1], opts.iterations, opts.ci, rng)
		c.Lead = lead
		out = append(out, c)
	}
	return out, nil
}

func compare(out io.Writer, pathA, pathB string, opts compareOptions) int {
	fmt.Fprintf(out, "\n=== Model Comparison: %s (B - A) ===\n\n", opts.metric)

	a, err := loadTable(pathA)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load model A: %v\n", err)
		return 1
	}
	b, err := loadTable(pathB)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load model B: %v\n", err)
		return 1
	}
	results, err := compareModels(a, b, opts)
	if err != nil {
		fmt.Fprintf(out, "FATAL: compare: %v\n", err)
		return 1
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No paired rows at any common lead.")
		return 1
	}

	fmt.Fprintf(out, "%-6s %6s %12s %8s %12s %12s %6s %s\n",
		"lead", "pairs", "diff", "p", "ci_lower", "ci_upper", "better", "significant")
	for _, c := range results {
		fmt.Fprintf(out, "%-6d %6d %12s %8.4f %12s %12s %6s %t\n",
			c.Lead, c.Pairs, tsv.FormatValue(c.ObservedDiff), c.PValue,
			tsv.FormatValue(c.CILower), tsv.FormatValue(c.CIUpper), c.Better, c.Significant)
	}
	return 0
}
