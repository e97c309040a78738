package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MetricKind is the closed set of supported metrics.
type MetricKind int

const (
	KindRMSE MetricKind = iota + 1
	KindBias
	KindMAE
	KindMSE
	KindQuantiles
	KindCorrelation
	KindStdDev
	KindGSS
	KindFBias
	KindPOD
	KindFAR
	KindSR
	KindCSI
	KindFSS
	KindReliability
	KindBrier
)

var kindNames = map[MetricKind]string{
	KindRMSE:        "rmse",
	KindBias:        "bias",
	KindMAE:         "mae",
	KindMSE:         "mse",
	KindQuantiles:   "quantiles",
	KindCorrelation: "corr",
	KindStdDev:      "stdev",
	KindGSS:         "gss",
	KindFBias:       "fbias",
	KindPOD:         "pod",
	KindFAR:         "far",
	KindSR:          "sr",
	KindCSI:         "csi",
	KindFSS:         "fss",
	KindReliability: "reliability",
	KindBrier:       "brier",
}

// Aliases accepted in requests besides the canonical names.
var kindAliases = map[string]MetricKind{
	"correlation": KindCorrelation,
	"stddev":      KindStdDev,
	"std":         KindStdDev,
	"ets":         KindGSS,
}

func (k MetricKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("metric(%d)", int(k))
}

// ParseMetricKind resolves a metric name, case-insensitively.
func ParseMetricKind(name string) (MetricKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: unknown metric %q", ErrConfiguration, name)
}

// NeedsThreshold reports whether the metric is undefined without an event threshold.
func (k MetricKind) NeedsThreshold() bool {
	switch k {
	case KindGSS, KindFBias, KindPOD, KindFAR, KindSR, KindCSI, KindFSS, KindReliability, KindBrier:
		return true
	}
	return false
}

// UsesCounts reports whether the metric is derived from contingency counts.
func (k MetricKind) UsesCounts() bool {
	switch k {
	case KindGSS, KindFBias, KindPOD, KindFAR, KindSR, KindCSI:
		return true
	}
	return false
}

// EnsembleAware reports whether the metric accepts a stack of members.
func (k MetricKind) EnsembleAware() bool {
	switch k {
	case KindFSS, KindReliability, KindBrier:
		return true
	}
	return false
}

// Default parameters applied by normalization.
const (
	DefaultReliabilityBins = 10
	DefaultBrierWindow     = 1
)

// Quantile column names, in output order.
var QuantileColumns = []string{"25p", "50p", "75p", "IQR", "LW", "UW"}

// ProbabilityType selects how the Brier score turns forecast values into
// event probabilities.
type ProbabilityType int

const (
	// ProbBinary is the fraction of members at or above the threshold.
	ProbBinary ProbabilityType = iota
	// ProbRaw min-max normalizes the member mean over the grid.
	ProbRaw
	// ProbSigmoid applies the logistic function to the member mean.
	ProbSigmoid
	// ProbSoftmax normalizes exp(member mean) to sum to one over the grid.
	ProbSoftmax
)

var probabilityNames = map[ProbabilityType]string{
	ProbBinary:  "binary",
	ProbRaw:     "raw",
	ProbSigmoid: "sigmoid",
	ProbSoftmax: "softmax",
}

func (p ProbabilityType) String() string {
	if n, ok := probabilityNames[p]; ok {
		return n
	}
	return fmt.Sprintf("probability(%d)", int(p))
}

// ParseProbabilityType resolves a probability type name, case-insensitively.
func ParseProbabilityType(name string) (ProbabilityType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range probabilityNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown probability type %q", ErrConfiguration, name)
}

// MetricSpec is one requested metric and its parameters.
type MetricSpec struct {
	Kind         MetricKind
	Threshold    Threshold
	HasThreshold bool
	Radius       int
	Window       int
	Bins         int
	Probability  ProbabilityType
}

// normalize fills parameter defaults.
func (s MetricSpec) normalize() MetricSpec {
	if s.Kind == KindReliability && s.Bins == 0 {
		s.Bins = DefaultReliabilityBins
	}
	if s.Kind == KindBrier && s.Window == 0 {
		s.Window = DefaultBrierWindow
	}
	return s
}

// Validate checks the parameters the metric requires.
func (s MetricSpec) Validate() error {
	if _, ok := kindNames[s.Kind]; !ok {
		return fmt.Errorf("%w: unknown metric kind %d", ErrConfiguration, int(s.Kind))
	}
	if s.Kind.NeedsThreshold() && !s.HasThreshold {
		return fmt.Errorf("%w: %s requires a threshold", ErrConfiguration, s.Kind)
	}
	if s.HasThreshold && (!isFinite(s.Threshold.Forecast) || !isFinite(s.Threshold.Reference)) {
		return fmt.Errorf("%w: %s threshold must be finite, got %s", ErrConfiguration, s.Kind, s.Threshold)
	}
	if s.Radius < 0 {
		return fmt.Errorf("%w: %s radius must be non-negative, got %d", ErrConfiguration, s.Kind, s.Radius)
	}
	if s.Radius > 0 && !s.Kind.UsesCounts() {
		return fmt.Errorf("%w: %s does not take a radius", ErrConfiguration, s.Kind)
	}
	switch s.Kind {
	case KindFSS, KindBrier:
		if s.Window <= 0 {
			return fmt.Errorf("%w: %s window must be positive, got %d", ErrConfiguration, s.Kind, s.Window)
		}
	case KindReliability:
		if s.Bins <= 0 {
			return fmt.Errorf("%w: reliability bins must be positive, got %d", ErrConfiguration, s.Bins)
		}
	}
	if s.Window != 0 && s.Kind != KindFSS && s.Kind != KindBrier {
		return fmt.Errorf("%w: %s does not take a window", ErrConfiguration, s.Kind)
	}
	if s.Bins != 0 && s.Kind != KindReliability {
		return fmt.Errorf("%w: %s does not take bins", ErrConfiguration, s.Kind)
	}
	if _, ok := probabilityNames[s.Probability]; !ok {
		return fmt.Errorf("%w: unknown probability type %d", ErrConfiguration, int(s.Probability))
	}
	if s.Probability != ProbBinary && s.Kind != KindBrier {
		return fmt.Errorf("%w: %s does not take a probability type", ErrConfiguration, s.Kind)
	}
	return nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Width is the number of output columns the metric produces.
func (s MetricSpec) Width() int {
	switch s.Kind {
	case KindQuantiles:
		return len(QuantileColumns)
	case KindReliability:
		return s.Bins
	default:
		return 1
	}
}

// suffix renders the parameters used to tell repeated metrics apart.
func (s MetricSpec) suffix() string {
	var b strings.Builder
	if s.HasThreshold {
		b.WriteString("_t")
		b.WriteString(formatNumber(s.Threshold.Forecast))
		if s.Threshold.Reference != s.Threshold.Forecast {
			b.WriteString("-")
			b.WriteString(formatNumber(s.Threshold.Reference))
		}
	}
	if s.Radius > 0 {
		fmt.Fprintf(&b, "_r%d", s.Radius)
	}
	if s.Kind == KindFSS || (s.Kind == KindBrier && s.Window > 1) {
		fmt.Fprintf(&b, "_w%d", s.Window)
	}
	if s.Kind == KindReliability {
		fmt.Fprintf(&b, "_b%d", s.Bins)
	}
	if s.Probability != ProbBinary {
		b.WriteString("_p")
		b.WriteString(s.Probability.String())
	}
	return b.String()
}

// columns returns the metric's column names, with suffix appended when set.
func (s MetricSpec) columns(suffix string) []string {
	switch s.Kind {
	case KindQuantiles:
		out := make([]string, len(QuantileColumns))
		for i, c := range QuantileColumns {
			out[i] = c + suffix
		}
		return out
	case KindReliability:
		out := make([]string, s.Bins)
		width := 1.0 / float64(s.Bins)
		for i := range out {
			center := (float64(i)*width + ReliabilityEdge(i+1, s.Bins)) / 2
			out[i] = fmt.Sprintf("rel_%.4g", center) + suffix
		}
		return out
	default:
		return []string{s.Kind.String() + suffix}
	}
}

// ReliabilityEdge is the i-th of n+1 equal-width bin edges over [0, 1].
// The last edge is exactly 1.
func ReliabilityEdge(i, n int) float64 {
	if i >= n {
		return 1
	}
	return float64(i) * (1.0 / float64(n))
}

func (s MetricSpec) String() string { return s.Kind.String() + s.suffix() }

func formatNumber(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// MetricRequest is an ordered list of metrics. Its order fixes the column order.
type MetricRequest struct {
	Specs []MetricSpec
}

// NewMetricRequest normalizes and validates specs. Unknown kinds, missing
// parameters and exact duplicates are configuration errors.
func NewMetricRequest(specs ...MetricSpec) (MetricRequest, error) {
	if len(specs) == 0 {
		return MetricRequest{}, fmt.Errorf("%w: no metrics requested", ErrConfiguration)
	}
	out := make([]MetricSpec, len(specs))
	seen := make(map[MetricSpec]bool, len(specs))
	for i, s := range specs {
		s = s.normalize()
		if err := s.Validate(); err != nil {
			return MetricRequest{}, err
		}
		if seen[s] {
			return MetricRequest{}, fmt.Errorf("%w: duplicate metric %s", ErrConfiguration, s)
		}
		seen[s] = true
		out[i] = s
	}
	return MetricRequest{Specs: out}, nil
}

// ValidateFor rejects metrics that cannot run in the given mode.
func (r MetricRequest) ValidateFor(mode Mode) error {
	if mode != Ensemble {
		return nil
	}
	for _, s := range r.Specs {
		if !s.Kind.EnsembleAware() {
			return fmt.Errorf("%w: %s is not available in ensemble mode", ErrConfiguration, s.Kind)
		}
	}
	return nil
}

// Columns returns the output column names in request order. Metrics named
// more than once carry a parameter suffix.
func (r MetricRequest) Columns() []string {
	counts := make(map[MetricKind]int, len(r.Specs))
	for _, s := range r.Specs {
		counts[s.Kind]++
	}
	var cols []string
	for _, s := range r.Specs {
		suffix := ""
		if counts[s.Kind] > 1 {
			suffix = s.suffix()
		}
		cols = append(cols, s.columns(suffix)...)
	}
	return cols
}

// String lists every spec with its full parameter suffix.
func (r MetricRequest) String() string {
	parts := make([]string, len(r.Specs))
	for i, s := range r.Specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Width is the total number of metric columns.
func (r MetricRequest) Width() int {
	n := 0
	for _, s := range r.Specs {
		n += s.Width()
	}
	return n
}

// ParseMetricRequest parses a comma-separated list of name[:key=value...]
// entries.
func ParseMetricRequest(s string) (MetricRequest, error) {
	var specs []MetricSpec
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		spec, err := parseMetricEntry(entry)
		if err != nil {
			return MetricRequest{}, err
		}
		specs = append(specs, spec)
	}
	return NewMetricRequest(specs...)
}

func parseMetricEntry(entry string) (MetricSpec, error) {
	parts := strings.Split(entry, ":")
	kind, err := ParseMetricKind(parts[0])
	if err != nil {
		return MetricSpec{}, err
	}
	spec := MetricSpec{Kind: kind}
	var fthr, rthr *float64
	for _, kv := range parts[1:] {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return MetricSpec{}, fmt.Errorf("%w: %s: expected key=value, got %q", ErrConfiguration, entry, kv)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "thr", "fthr", "rthr":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || !isFinite(f) {
				return MetricSpec{}, fmt.Errorf("%w: %s: invalid %s %q", ErrConfiguration, entry, key, val)
			}
			if key != "rthr" {
				fthr = &f
			}
			if key != "fthr" {
				rthr = &f
			}
		case "radius", "window", "bins":
			n, err := strconv.Atoi(val)
			if err != nil {
				return MetricSpec{}, fmt.Errorf("%w: %s: invalid %s %q", ErrConfiguration, entry, key, val)
			}
			switch key {
			case "radius":
				spec.Radius = n
			case "window":
				spec.Window = n
			default:
				spec.Bins = n
			}
		case "prob":
			p, err := ParseProbabilityType(val)
			if err != nil {
				return MetricSpec{}, fmt.Errorf("%s: %w", entry, err)
			}
			spec.Probability = p
		default:
			return MetricSpec{}, fmt.Errorf("%w: %s: unknown parameter %q", ErrConfiguration, entry, key)
		}
	}
	switch {
	case fthr != nil && rthr != nil:
		spec.Threshold = Threshold{Forecast: *fthr, Reference: *rthr}
		spec.HasThreshold = true
	case fthr != nil || rthr != nil:
		return MetricSpec{}, fmt.Errorf("%w: %s: fthr and rthr must be given together", ErrConfiguration, entry)
	}
	return spec, nil
}
