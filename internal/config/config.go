package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// Interpolation modes.
const (
	InterpolationNone     = "none"
	InterpolationTarget   = "target"
	InterpolationForecast = "forecast"
)

// Field sources.
const (
	SourceFile = "file"
	SourceHTTP = "http"
)

// Output sinks.
const (
	SinkTSV    = "tsv"
	SinkSQLite = "sqlite"
	SinkKafka  = "kafka"
)

// environment mirrors the raw variables; Load turns it into a Config.
type environment struct {
	StartDate     string `env:"VERIFY_START_DATE"`
	EndDate       string `env:"VERIFY_END_DATE"`
	IntervalHours int    `env:"VERIFY_INTERVAL_HOURS" envDefault:"24"`

	LeadStart    int `env:"LEAD_TIME_START" envDefault:"0"`
	LeadEnd      int `env:"LEAD_TIME_END" envDefault:"0"`
	LeadInterval int `env:"LEAD_TIME_INTERVAL" envDefault:"1"`

	Members     []string `env:"MEMBERS" envSeparator:","`
	StatType    string   `env:"STAT_TYPE" envDefault:"deterministic"`
	Metrics     string   `env:"METRICS"`
	MetricsFile string   `env:"METRICS_FILE"`

	ForecastTemplate  string `env:"FCST_FILE_TEMPLATE"`
	ReferenceTemplate string `env:"REF_FILE_TEMPLATE"`
	ForecastVar       string `env:"FCST_VAR"`
	ReferenceVar      string `env:"REF_VAR"`
	ForecastLevel     string `env:"FCST_LEVEL"`
	ReferenceLevel    string `env:"REF_LEVEL"`
	ForecastShift     int    `env:"FCST_SHIFT_HOURS" envDefault:"0"`

	Interpolation string `env:"INTERPOLATION" envDefault:"none"`
	TargetGrid    string `env:"TARGET_GRID"`
	GridCacheSize int    `env:"GRID_CACHE_SIZE" envDefault:"16"`

	FieldSource  string        `env:"FIELD_SOURCE" envDefault:"file"`
	FieldBaseURL string        `env:"FIELD_BASE_URL"`
	FieldTimeout time.Duration `env:"FIELD_TIMEOUT" envDefault:"10s"`

	Workers       int  `env:"WORKERS" envDefault:"0"`
	OrderedOutput bool `env:"ORDERED_OUTPUT" envDefault:"true"`

	OutputSink string `env:"OUTPUT_SINK" envDefault:"tsv"`
	OutputPath string `env:"OUTPUT_PATH" envDefault:"verification.tsv"`
	KafkaTopic string `env:"KAFKA_TOPIC" envDefault:"verification-rows"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	Plan    domain.Plan
	Metrics domain.MetricRequest

	ForecastTemplate  string
	ReferenceTemplate string
	ForecastVar       string
	ReferenceVar      string
	ForecastLevel     string
	ReferenceLevel    string

	// ForecastShiftHours offsets the date placeholders of the forecast template.
	ForecastShiftHours int

	Interpolation string
	TargetGrid    string
	GridCacheSize int

	FieldSource  string
	FieldBaseURL string
	FieldTimeout time.Duration

	Workers       int
	OrderedOutput bool

	OutputSink   string
	OutputPath   string
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	OTelEndpoint    string
}

// Load reads configuration from environment variables, applying defaults
// where unset. Every returned error wraps domain.ErrConfiguration.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return cfg, nil
}

func load() (*Config, error) {
	var e environment
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	plan, err := buildPlan(e)
	if err != nil {
		return nil, err
	}
	metrics, err := loadMetrics(e)
	if err != nil {
		return nil, err
	}
	if err := metrics.ValidateFor(plan.Mode); err != nil {
		return nil, fmt.Errorf("METRICS: %w", err)
	}

	cfg := &Config{
		Plan:               plan,
		Metrics:            metrics,
		ForecastTemplate:   e.ForecastTemplate,
		ReferenceTemplate:  e.ReferenceTemplate,
		ForecastVar:        e.ForecastVar,
		ReferenceVar:       e.ReferenceVar,
		ForecastLevel:      e.ForecastLevel,
		ReferenceLevel:     e.ReferenceLevel,
		ForecastShiftHours: e.ForecastShift,
		Interpolation:      strings.ToLower(e.Interpolation),
		TargetGrid:         e.TargetGrid,
		GridCacheSize:      e.GridCacheSize,
		FieldSource:        strings.ToLower(e.FieldSource),
		FieldBaseURL:       e.FieldBaseURL,
		FieldTimeout:       e.FieldTimeout,
		Workers:            e.Workers,
		OrderedOutput:      e.OrderedOutput,
		OutputSink:         strings.ToLower(e.OutputSink),
		OutputPath:         e.OutputPath,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         e.KafkaTopic,
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		OTelEndpoint:       e.OTelEndpoint,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ForecastTemplate == "" {
		return errors.New("FCST_FILE_TEMPLATE is required")
	}
	if c.ReferenceTemplate == "" {
		return errors.New("REF_FILE_TEMPLATE is required")
	}
	if c.ForecastVar == "" {
		return errors.New("FCST_VAR is required")
	}
	if c.ReferenceVar == "" {
		c.ReferenceVar = c.ForecastVar
	}
	if c.ReferenceLevel == "" {
		c.ReferenceLevel = c.ForecastLevel
	}

	switch c.Interpolation {
	case InterpolationNone, InterpolationForecast:
	case InterpolationTarget:
		if c.TargetGrid == "" {
			return errors.New("TARGET_GRID is required when INTERPOLATION is target")
		}
	default:
		return fmt.Errorf("invalid INTERPOLATION %q", c.Interpolation)
	}
	if c.GridCacheSize <= 0 {
		return errors.New("invalid GRID_CACHE_SIZE")
	}

	switch c.FieldSource {
	case SourceFile:
	case SourceHTTP:
		if c.FieldBaseURL == "" {
			return errors.New("FIELD_BASE_URL is required when FIELD_SOURCE is http")
		}
	default:
		return fmt.Errorf("invalid FIELD_SOURCE %q", c.FieldSource)
	}
	if c.FieldTimeout <= 0 {
		return errors.New("invalid FIELD_TIMEOUT")
	}

	if c.Workers < 0 {
		return errors.New("invalid WORKERS")
	}

	switch c.OutputSink {
	case SinkTSV, SinkSQLite:
		if c.OutputPath == "" {
			return errors.New("OUTPUT_PATH is required")
		}
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required")
		}
	default:
		return fmt.Errorf("invalid OUTPUT_SINK %q", c.OutputSink)
	}
	return nil
}

func buildPlan(e environment) (domain.Plan, error) {
	mode, err := domain.ParseMode(e.StatType)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("STAT_TYPE: %w", err)
	}
	if e.StartDate == "" {
		return domain.Plan{}, errors.New("VERIFY_START_DATE is required")
	}
	start, err := parseDate(e.StartDate)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("invalid VERIFY_START_DATE: %w", err)
	}
	end := start
	if e.EndDate != "" {
		if end, err = parseDate(e.EndDate); err != nil {
			return domain.Plan{}, fmt.Errorf("invalid VERIFY_END_DATE: %w", err)
		}
	}
	dates, err := domain.DateRange(start, end, e.IntervalHours)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("VERIFY_*_DATE: %w", err)
	}
	leads, err := domain.LeadRange(e.LeadStart, e.LeadEnd, e.LeadInterval)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("LEAD_TIME_*: %w", err)
	}

	var members []string
	for _, m := range e.Members {
		if m = strings.TrimSpace(m); m != "" {
			members = append(members, m)
		}
	}
	plan := domain.Plan{Dates: dates, Leads: leads, Members: members, Mode: mode}
	if err := plan.Validate(); err != nil {
		return domain.Plan{}, fmt.Errorf("MEMBERS: %w", err)
	}
	return plan, nil
}

var dateLayouts = []string{domain.DateLayout, time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q does not match %s", s, domain.DateLayout)
}

func loadMetrics(e environment) (domain.MetricRequest, error) {
	switch {
	case e.Metrics != "" && e.MetricsFile != "":
		return domain.MetricRequest{}, errors.New("set only one of METRICS and METRICS_FILE")
	case e.MetricsFile != "":
		req, err := ReadMetricsFile(e.MetricsFile)
		if err != nil {
			return domain.MetricRequest{}, fmt.Errorf("METRICS_FILE: %w", err)
		}
		return req, nil
	case e.Metrics != "":
		req, err := domain.ParseMetricRequest(e.Metrics)
		if err != nil {
			return domain.MetricRequest{}, fmt.Errorf("METRICS: %w", err)
		}
		return req, nil
	default:
		return domain.MetricRequest{}, errors.New("METRICS or METRICS_FILE is required")
	}
}
