package metric

import (
	"math"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// GSS is the Gilbert skill score (equitable threat score). It is 0 when the
// denominator vanishes and NaN when the table is empty.
func GSS(c domain.ContingencyCounts) float64 {
	if c.Total == 0 {
		return math.NaN()
	}
	h, m, fa := float64(c.Hits), float64(c.Misses), float64(c.FalseAlarms)
	expected := (h + fa) * (h + m) / float64(c.Total)
	den := h + m + fa - expected
	if den == 0 {
		return 0
	}
	return (h - expected) / den
}

// FBias is forecast events over observed events.
func FBias(c domain.ContingencyCounts) float64 {
	return ratio(c.Hits+c.FalseAlarms, c.Hits+c.Misses)
}

// POD is the probability of detection, hits over observed events.
func POD(c domain.ContingencyCounts) float64 {
	return ratio(c.Hits, c.Hits+c.Misses)
}

// FAR is the false alarm ratio, false alarms over forecast events.
func FAR(c domain.ContingencyCounts) float64 {
	return ratio(c.FalseAlarms, c.Hits+c.FalseAlarms)
}

// SR is the success ratio, 1 - FAR.
func SR(c domain.ContingencyCounts) float64 {
	return 1 - FAR(c)
}

// CSI is the critical success index.
func CSI(c domain.ContingencyCounts) float64 {
	return ratio(c.Hits, c.Hits+c.Misses+c.FalseAlarms)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}
