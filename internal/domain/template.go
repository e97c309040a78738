package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExpandTemplate fills identifier placeholders for a task and member.
//
//	{year} {month} {day} {hour} {minute}   valid date
//	{valid_year} ... {valid_minute}        valid date
//	{init_year} ... {init_minute}          valid date minus lead
//	{lead_time}                            lead hours, two digits minimum
//	{members}                              member name
//
// Task dates are valid times, so the plain date fields and the valid_ fields
// expand alike. Templates written against cycle dates, where {year} is the
// initialization time and {valid_*} adds the lead, need {init_*} in place of
// the plain fields. Unknown placeholders are left in place.
func ExpandTemplate(tmpl string, task Task, member string) string {
	return ExpandShifted(tmpl, task, member, 0)
}

// ExpandShifted is ExpandTemplate with every date placeholder moved by
// shiftHours. Lead and member are unchanged.
func ExpandShifted(tmpl string, task Task, member string, shiftHours int) string {
	shift := time.Duration(shiftHours) * time.Hour
	pairs := make([]string, 0, 36)
	pairs = appendTimeFields(pairs, "", task.Date.Add(shift))
	pairs = appendTimeFields(pairs, "valid_", task.Date.Add(shift))
	pairs = appendTimeFields(pairs, "init_", task.InitTime().Add(shift))
	pairs = append(pairs,
		"{lead_time}", fmt.Sprintf("%02d", task.Lead),
		"{members}", member,
	)
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func appendTimeFields(pairs []string, prefix string, t time.Time) []string {
	t = t.UTC()
	return append(pairs,
		"{"+prefix+"year}", fmt.Sprintf("%04d", t.Year()),
		"{"+prefix+"month}", fmt.Sprintf("%02d", int(t.Month())),
		"{"+prefix+"day}", fmt.Sprintf("%02d", t.Day()),
		"{"+prefix+"hour}", fmt.Sprintf("%02d", t.Hour()),
		"{"+prefix+"minute}", fmt.Sprintf("%02d", t.Minute()),
	)
}
