package domain

import "fmt"

// Row prefix column names.
const (
	ColumnDate   = "date"
	ColumnLead   = "lead"
	ColumnMember = "member"
)

// ResultRow is one task's output: identity prefix plus metric values in
// request column order.
type ResultRow struct {
	Task         Task
	MemberColumn bool
	Columns      []string
	Values       []float64
}

// Header returns the full column header including the identity prefix.
func (r ResultRow) Header() []string {
	return append(PrefixColumns(r.MemberColumn), r.Columns...)
}

// Prefix renders the identity columns of the row.
func (r ResultRow) Prefix() []string {
	out := []string{r.Task.Date.UTC().Format(DateLayout), fmt.Sprintf("%d", r.Task.Lead)}
	if r.MemberColumn {
		out = append(out, r.Task.Member)
	}
	return out
}

// PrefixColumns returns the identity column names.
func PrefixColumns(member bool) []string {
	if member {
		return []string{ColumnDate, ColumnLead, ColumnMember}
	}
	return []string{ColumnDate, ColumnLead}
}

// TaskOutcome is the result of one task: a row, or the error that skipped it.
// NaN values inside Row are computed results, not failures.
type TaskOutcome struct {
	Task Task
	Row  ResultRow
	Err  error
}

// Failed reports whether the task produced no row.
func (o TaskOutcome) Failed() bool { return o.Err != nil }
