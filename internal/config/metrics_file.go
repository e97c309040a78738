package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

type metricsFile struct {
	Metrics []metricEntry `yaml:"metrics"`
}

type metricEntry struct {
	Name        string         `yaml:"name"`
	Threshold   *yamlThreshold `yaml:"threshold"`
	Radius      int            `yaml:"radius"`
	Window      int            `yaml:"window"`
	Bins        int            `yaml:"bins"`
	Probability string         `yaml:"probability"`
}

// yamlThreshold accepts either a scalar or a [forecast, reference] pair.
type yamlThreshold domain.Threshold

func (t *yamlThreshold) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := n.Decode(&v); err != nil {
			return err
		}
		*t = yamlThreshold(domain.Scalar(v))
		return nil
	case yaml.SequenceNode:
		var pair []float64
		if err := n.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: threshold pair needs 2 values, got %d", n.Line, len(pair))
		}
		*t = yamlThreshold{Forecast: pair[0], Reference: pair[1]}
		return nil
	default:
		return fmt.Errorf("line %d: threshold must be a number or [forecast, reference]", n.Line)
	}
}

// ReadMetricsFile reads a YAML metric request.
func ReadMetricsFile(path string) (domain.MetricRequest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.MetricRequest{}, fmt.Errorf("read metrics file: %w", err)
	}
	return ParseMetricsYAML(b)
}

// ParseMetricsYAML decodes
//
//	metrics:
//	  - name: gss
//	    threshold: 30
//	    radius: 2
//	  - name: fss
//	    threshold: [30, 25]
//	    window: 5
func ParseMetricsYAML(b []byte) (domain.MetricRequest, error) {
	var doc metricsFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return domain.MetricRequest{}, fmt.Errorf("%w: decode metrics yaml: %w", domain.ErrConfiguration, err)
	}
	if len(doc.Metrics) == 0 {
		return domain.MetricRequest{}, fmt.Errorf("%w: metrics list is empty", domain.ErrConfiguration)
	}
	specs := make([]domain.MetricSpec, 0, len(doc.Metrics))
	for i, m := range doc.Metrics {
		if m.Name == "" {
			return domain.MetricRequest{}, fmt.Errorf("%w: metrics[%d]: name is required", domain.ErrConfiguration, i)
		}
		kind, err := domain.ParseMetricKind(m.Name)
		if err != nil {
			return domain.MetricRequest{}, fmt.Errorf("metrics[%d]: %w", i, err)
		}
		spec := domain.MetricSpec{Kind: kind, Radius: m.Radius, Window: m.Window, Bins: m.Bins}
		if m.Threshold != nil {
			spec.Threshold = domain.Threshold(*m.Threshold)
			spec.HasThreshold = true
		}
		if m.Probability != "" {
			if spec.Probability, err = domain.ParseProbabilityType(m.Probability); err != nil {
				return domain.MetricRequest{}, fmt.Errorf("metrics[%d]: %w", i, err)
			}
		}
		specs = append(specs, spec)
	}
	return domain.NewMetricRequest(specs...)
}
