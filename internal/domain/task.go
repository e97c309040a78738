package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout renders task dates in row prefixes and logs.
const DateLayout = "2006-01-02_15:04:05"

// NoMember is the member of a task that does not address a single member.
const NoMember = ""

// Mode selects how members are treated.
type Mode int

const (
	// Deterministic evaluates every member as its own task.
	Deterministic Mode = iota
	// Ensemble reads all members together inside one task.
	Ensemble
)

func (m Mode) String() string {
	if m == Ensemble {
		return "ensemble"
	}
	return "deterministic"
}

// ParseMode maps a configuration string to a Mode. Empty means deterministic.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "deterministic", "det":
		return Deterministic, nil
	case "ensemble", "ens":
		return Ensemble, nil
	default:
		return Deterministic, fmt.Errorf("%w: unknown stat type %q", ErrConfiguration, s)
	}
}

// Task is one unit of work: a valid date, a lead time in hours and a member.
type Task struct {
	Date   time.Time
	Lead   int
	Member string
}

// InitTime is the forecast initialization time, valid date minus lead.
func (t Task) InitTime() time.Time { return t.Date.Add(-time.Duration(t.Lead) * time.Hour) }

func (t Task) String() string {
	s := fmt.Sprintf("%s/f%03d", t.Date.UTC().Format(DateLayout), t.Lead)
	if t.Member != NoMember {
		s += "/" + t.Member
	}
	return s
}

// Plan is the sweep of dates, leads and members to evaluate.
type Plan struct {
	Dates   []time.Time
	Leads   []int
	Members []string
	Mode    Mode
}

// memberAxis is the member dimension of the task enumeration.
func (p Plan) memberAxis() []string {
	if p.Mode == Ensemble || len(p.Members) == 0 {
		return []string{NoMember}
	}
	return p.Members
}

// Tasks enumerates dates outer, leads middle, members inner.
func (p Plan) Tasks() []Task {
	members := p.memberAxis()
	tasks := make([]Task, 0, p.Size())
	for _, d := range p.Dates {
		for _, l := range p.Leads {
			for _, m := range members {
				tasks = append(tasks, Task{Date: d, Lead: l, Member: m})
			}
		}
	}
	return tasks
}

// Size is the number of tasks Tasks would return.
func (p Plan) Size() int { return len(p.Dates) * len(p.Leads) * len(p.memberAxis()) }

// MemberColumn reports whether rows carry a member column.
func (p Plan) MemberColumn() bool { return p.Mode == Deterministic && len(p.Members) > 0 }

// Validate rejects empty axes and ensemble plans without members.
func (p Plan) Validate() error {
	if len(p.Dates) == 0 {
		return fmt.Errorf("%w: no dates to verify", ErrConfiguration)
	}
	if len(p.Leads) == 0 {
		return fmt.Errorf("%w: no lead times to verify", ErrConfiguration)
	}
	if p.Mode == Ensemble && len(p.Members) == 0 {
		return fmt.Errorf("%w: ensemble mode requires members", ErrConfiguration)
	}
	return nil
}

// DateRange returns start, start+interval, ... up to and including end.
func DateRange(start, end time.Time, intervalHours int) ([]time.Time, error) {
	if intervalHours <= 0 {
		return nil, fmt.Errorf("%w: date interval must be positive, got %d", ErrConfiguration, intervalHours)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %s before start date %s", ErrConfiguration,
			end.Format(DateLayout), start.Format(DateLayout))
	}
	step := time.Duration(intervalHours) * time.Hour
	var out []time.Time
	for d := start; !d.After(end); d = d.Add(step) {
		out = append(out, d)
	}
	return out, nil
}

// LeadRange returns start, start+interval, ... up to and including end.
func LeadRange(start, end, interval int) ([]int, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: lead interval must be positive, got %d", ErrConfiguration, interval)
	}
	if end < start {
		return nil, fmt.Errorf("%w: lead end %d before start %d", ErrConfiguration, end, start)
	}
	var out []int
	for l := start; l <= end; l += interval {
		out = append(out, l)
	}
	return out, nil
}
