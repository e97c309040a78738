// Command checkstats validates a verification table written by the verify
// command and prints the mean of every metric column per lead time. NaN
// values are excluded from the means. When a SQLite store of the same run is
// given, its per-lead means are cross-checked against the table. With
// -compare, a second table is treated as model B and a paired bootstrap of
// one metric column reports per lead whether B differs from A.
//
// Usage:
//
//	go run ./cmd/checkstats -tsv verification.tsv
//	go run ./cmd/checkstats -tsv verification.tsv -db verification.db -run-id <uuid>
//	go run ./cmd/checkstats -tsv model_a.tsv -compare model_b.tsv -metric rmse -iterations 10000 -ci 95
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/storm-data-verify/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-data-verify/internal/adapter/tsv"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	tsvPath := flag.String("tsv", "", "verification table to check")
	dbPath := flag.String("db", "", "optional SQLite store of the same run")
	runID := flag.String("run-id", "", "run id to read from -db")
	comparePath := flag.String("compare", "", "optional table of a second model to compare against -tsv")
	var opts compareOptions
	flag.StringVar(&opts.metric, "metric", "rmse", "metric column compared with -compare")
	flag.IntVar(&opts.iterations, "iterations", 10000, "bootstrap resamples per lead")
	flag.Float64Var(&opts.ci, "ci", 95, "confidence interval percentile")
	flag.Uint64Var(&opts.seed, "seed", 1, "bootstrap random seed")
	flag.Parse()

	if *tsvPath == "" || (*dbPath != "" && *runID == "") {
		flag.Usage()
		os.Exit(1)
	}

	code := run(os.Stdout, *tsvPath, *dbPath, *runID)
	if code == 0 && *comparePath != "" {
		code = compare(os.Stdout, *tsvPath, *comparePath, opts)
	}
	os.Exit(code)
}

func run(out io.Writer, tsvPath, dbPath, runID string) int {
	fmt.Fprintln(out, "=== Verification Table Check ===")
	fmt.Fprintln(out)

	table, err := loadTable(tsvPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load table: %v\n", err)
		return 1
	}
	means := leadMeans(table)

	phases := []*phase{
		checkStructure(table),
		checkRanges(table),
	}
	if dbPath != "" {
		store, err := sqlite.Open(dbPath, runID)
		if err != nil {
			fmt.Fprintf(out, "FATAL: open store: %v\n", err)
			return 1
		}
		defer store.Close()
		phases = append(phases, checkStore(context.Background(), store, table.Columns, means))
	}

	printMeans(out, table.Columns, means)

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}
	fmt.Fprintf(out, "\nRows: %d, columns: %d\n", len(table.Records), len(table.Columns))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll checks passed.")
		return 0
	}
	fmt.Fprintln(out, "\nCheck FAILED.")
	return 1
}

func loadTable(path string) (tsv.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return tsv.Table{}, err
	}
	defer f.Close()
	return tsv.ReadTable(f)
}

// ── Phase 1: Structure ──

func checkStructure(t tsv.Table) *phase {
	p := &phase{name: "Phase 1: Structure"}

	seenCol := map[string]bool{}
	for _, c := range t.Columns {
		if seenCol[c] {
			p.errorf("duplicate column %q", c)
		}
		seenCol[c] = true
	}

	seenRow := map[string]int{}
	for i, r := range t.Records {
		if len(r.Values) != len(t.Columns) {
			p.errorf("row %d: %d values for %d columns", i+1, len(r.Values), len(t.Columns))
		}
		if r.Lead < 0 {
			p.errorf("row %d: negative lead %d", i+1, r.Lead)
		}
		if t.MemberColumn && r.Member == "" {
			p.errorf("row %d: empty member", i+1)
		}
		key := fmt.Sprintf("%s|%d|%s", r.Date.Format("2006-01-02T15"), r.Lead, r.Member)
		if prev, ok := seenRow[key]; ok {
			p.errorf("row %d: duplicates row %d (%s)", i+1, prev, key)
			continue
		}
		seenRow[key] = i + 1
	}
	return p
}

// ── Phase 2: Value ranges ──

type bounds struct{ lo, hi float64 }

var (
	unit        = bounds{0, 1}
	nonNegative = bounds{0, math.Inf(1)}
)

// columnBounds maps a column's leading name to the range its values must fall in.
var columnBounds = map[string]bounds{
	"rmse":  nonNegative,
	"mae":   nonNegative,
	"mse":   nonNegative,
	"stdev": nonNegative,
	"fbias": nonNegative,
	"IQR":   nonNegative,
	"corr":  {-1, 1},
	"gss":   {-1.0 / 3, 1},
	"pod":   unit,
	"far":   unit,
	"sr":    unit,
	"csi":   unit,
	"fss":   unit,
	"rel":   unit,
	"brier": unit,
}

func boundsFor(column string) (bounds, bool) {
	name, _, _ := strings.Cut(column, "_")
	b, ok := columnBounds[name]
	return b, ok
}

func checkRanges(t tsv.Table) *phase {
	p := &phase{name: "Phase 2: Value ranges"}
	const eps = 1e-9
	for i, r := range t.Records {
		for j, v := range r.Values {
			if j >= len(t.Columns) || math.IsNaN(v) {
				continue
			}
			if math.IsInf(v, 0) {
				p.errorf("row %d: %s is infinite", i+1, t.Columns[j])
				continue
			}
			b, ok := boundsFor(t.Columns[j])
			if ok && (v < b.lo-eps || v > b.hi+eps) {
				p.errorf("row %d: %s=%g outside [%g, %g]", i+1, t.Columns[j], v, b.lo, b.hi)
			}
		}
	}
	return p
}

// ── Phase 3: Store parity ──

type leadStore interface {
	LeadMeans(ctx context.Context, metric string) (map[int]float64, error)
}

func checkStore(ctx context.Context, s leadStore, columns []string, means map[int][]float64) *phase {
	p := &phase{name: "Phase 3: Store parity (SQLite)"}
	for j, c := range columns {
		got, err := s.LeadMeans(ctx, c)
		if err != nil {
			p.errorf("%s: %v", c, err)
			continue
		}
		for lead, row := range means {
			want := row[j]
			have, ok := got[lead]
			switch {
			case !ok:
				p.errorf("%s lead %d: missing from store", c, lead)
			case math.IsNaN(want) != math.IsNaN(have):
				p.errorf("%s lead %d: table=%g, store=%g", c, lead, want, have)
			case !math.IsNaN(want) && math.Abs(want-have) > 1e-9*math.Max(1, math.Abs(want)):
				p.errorf("%s lead %d: table=%g, store=%g", c, lead, want, have)
			}
		}
	}
	return p
}

// ── Summary ──

// leadMeans averages each column per lead, skipping NaN. A column with no
// finite value at a lead averages to NaN.
func leadMeans(t tsv.Table) map[int][]float64 {
	sums := map[int][]float64{}
	counts := map[int][]int{}
	for _, r := range t.Records {
		if _, ok := sums[r.Lead]; !ok {
			sums[r.Lead] = make([]float64, len(t.Columns))
			counts[r.Lead] = make([]int, len(t.Columns))
		}
		for j, v := range r.Values {
			if j >= len(t.Columns) || math.IsNaN(v) {
				continue
			}
			sums[r.Lead][j] += v
			counts[r.Lead][j]++
		}
	}
	for lead, s := range sums {
		for j := range s {
			if counts[lead][j] == 0 {
				s[j] = math.NaN()
				continue
			}
			s[j] /= float64(counts[lead][j])
		}
	}
	return sums
}

func printMeans(out io.Writer, columns []string, means map[int][]float64) {
	leads := make([]int, 0, len(means))
	for lead := range means {
		leads = append(leads, lead)
	}
	slices.Sort(leads)

	fmt.Fprintf(out, "%-6s", "lead")
	for _, c := range columns {
		fmt.Fprintf(out, " %12s", c)
	}
	fmt.Fprintln(out)
	for _, lead := range leads {
		fmt.Fprintf(out, "%-6d", lead)
		for _, v := range means[lead] {
			fmt.Fprintf(out, " %12s", tsv.FormatValue(v))
		}
		fmt.Fprintln(out)
	}
}
