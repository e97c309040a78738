package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanTasks(t *testing.T) {
	d0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	d1 := d0.Add(12 * time.Hour)

	t.Run("deterministic enumeration order", func(t *testing.T) {
		p := Plan{Dates: []time.Time{d0, d1}, Leads: []int{1, 2}, Members: []string{"m1", "m2"}}
		tasks := p.Tasks()
		require.Len(t, tasks, 8)
		assert.Equal(t, 8, p.Size())
		assert.Equal(t, Task{Date: d0, Lead: 1, Member: "m1"}, tasks[0])
		assert.Equal(t, Task{Date: d0, Lead: 1, Member: "m2"}, tasks[1])
		assert.Equal(t, Task{Date: d0, Lead: 2, Member: "m1"}, tasks[2])
		assert.Equal(t, Task{Date: d1, Lead: 2, Member: "m2"}, tasks[7])
		assert.True(t, p.MemberColumn())
	})

	t.Run("no members", func(t *testing.T) {
		p := Plan{Dates: []time.Time{d0}, Leads: []int{6}}
		assert.Equal(t, []Task{{Date: d0, Lead: 6, Member: NoMember}}, p.Tasks())
		assert.False(t, p.MemberColumn())
	})

	t.Run("ensemble collapses members", func(t *testing.T) {
		p := Plan{Dates: []time.Time{d0, d1}, Leads: []int{1}, Members: []string{"m1", "m2", "m3"}, Mode: Ensemble}
		tasks := p.Tasks()
		require.Len(t, tasks, 2)
		assert.Equal(t, NoMember, tasks[0].Member)
		assert.False(t, p.MemberColumn())
	})
}

func TestPlanValidate(t *testing.T) {
	d0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, Plan{Leads: []int{1}}.Validate(), ErrConfiguration)
	assert.ErrorIs(t, Plan{Dates: []time.Time{d0}}.Validate(), ErrConfiguration)
	assert.ErrorIs(t, Plan{Dates: []time.Time{d0}, Leads: []int{1}, Mode: Ensemble}.Validate(), ErrConfiguration)
	assert.NoError(t, Plan{Dates: []time.Time{d0}, Leads: []int{1}}.Validate())
}

func TestDateRange(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	dates, err := DateRange(start, start.Add(24*time.Hour), 12)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{start, start.Add(12 * time.Hour), start.Add(24 * time.Hour)}, dates)

	_, err = DateRange(start, start, 0)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = DateRange(start, start.Add(-time.Hour), 1)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestLeadRange(t *testing.T) {
	leads, err := LeadRange(0, 6, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 6}, leads)

	leads, err = LeadRange(1, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, leads)

	_, err = LeadRange(1, 5, -1)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("ensemble")
	require.NoError(t, err)
	assert.Equal(t, Ensemble, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Deterministic, m)

	_, err = ParseMode("probabilistic")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestTaskString(t *testing.T) {
	d := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-01_18:00:00/f006", Task{Date: d, Lead: 6}.String())
	assert.Equal(t, "2024-05-01_18:00:00/f012/mem3", Task{Date: d, Lead: 12, Member: "mem3"}.String())
}

func TestExpandTemplate(t *testing.T) {
	task := Task{Date: time.Date(2024, 5, 2, 3, 30, 0, 0, time.UTC), Lead: 6}

	got := ExpandTemplate("fcst/{init_year}{init_month}{init_day}{init_hour}/{members}/f{lead_time}_{year}{month}{day}_{hour}{minute}.json", task, "mem01")
	assert.Equal(t, "fcst/2024050121/mem01/f06_20240502_0330.json", got)

	got = ExpandTemplate("obs/{valid_year}-{valid_month}-{valid_day}T{valid_hour}.json.zst", task, NoMember)
	assert.Equal(t, "obs/2024-05-02T03.json.zst", got)

	assert.Equal(t, "f120_{unknown}", ExpandTemplate("f{lead_time}_{unknown}", Task{Date: task.Date, Lead: 120}, ""))
}

func TestExpandShifted(t *testing.T) {
	task := Task{Date: time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC), Lead: 6}
	tmpl := "{init_year}{init_month}{init_day}{init_hour}/{year}{month}{day}{hour}/f{lead_time}/{members}"

	assert.Equal(t, "2024050121/2024050203/f06/m1", ExpandShifted(tmpl, task, "m1", 0))
	assert.Equal(t, ExpandTemplate(tmpl, task, "m1"), ExpandShifted(tmpl, task, "m1", 0))
	assert.Equal(t, "2024050209/2024050215/f06/m1", ExpandShifted(tmpl, task, "m1", 12))
	assert.Equal(t, "2024050120/2024050202/f06/m1", ExpandShifted(tmpl, task, "m1", -1))
}

func TestResultRowPrefix(t *testing.T) {
	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	row := ResultRow{Task: Task{Date: d, Lead: 3, Member: "m1"}, MemberColumn: true, Columns: []string{"rmse"}, Values: []float64{1.5}}

	assert.Equal(t, []string{"date", "lead", "member", "rmse"}, row.Header())
	assert.Equal(t, []string{"2024-05-01_00:00:00", "3", "m1"}, row.Prefix())
}
