package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
	"github.com/couchcryptid/storm-data-verify/internal/observability"
)

var tracer = otel.Tracer("github.com/couchcryptid/storm-data-verify/internal/pipeline")

// errTaskPanic marks a task whose computation panicked.
var errTaskPanic = errors.New("task panicked")

// Sink receives one row per completed task. AppendRow is only ever called
// from a single goroutine.
type Sink interface {
	AppendRow(ctx context.Context, row domain.ResultRow) error
}

// TaskFailure records a task that produced no row.
type TaskFailure struct {
	Task   domain.Task
	Reason string
	Err    error
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID         string
	Dispatched    int
	Completed     int
	Skipped       int
	NotDispatched int
	Failures      []TaskFailure
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers sets the worker pool size. Values below 1 use runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithOrderedOutput controls whether rows reach the sink in task enumeration
// order (the default) or in completion order.
func WithOrderedOutput(ordered bool) Option {
	return func(p *Pipeline) { p.ordered = ordered }
}

// WithRegridder sets how fields are brought onto a common grid.
func WithRegridder(r *Regridder) Option {
	return func(p *Pipeline) { p.regrid = r }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// Pipeline evaluates every task of a plan on a bounded worker pool and
// streams rows to a sink.
type Pipeline struct {
	plan      domain.Plan
	request   domain.MetricRequest
	forecast  FieldLoader
	reference FieldLoader
	sink      Sink
	logger    *slog.Logger
	metrics   *observability.Metrics
	regrid    *Regridder
	workers   int
	ordered   bool
	runID     string
	ready     atomic.Bool

	mu     sync.Mutex
	status Status
}

// Status is a point-in-time view of the current or last run.
type Status struct {
	RunID      string    `json:"run_id"`
	Running    bool      `json:"running"`
	Tasks      int       `json:"tasks"`
	Completed  int       `json:"completed"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// New creates a Pipeline with the given loaders, sink and observability.
func New(plan domain.Plan, req domain.MetricRequest, forecast, reference FieldLoader, sink Sink, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		plan:      plan,
		request:   req,
		forecast:  forecast,
		reference: reference,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
		regrid:    NoRegrid(),
		ordered:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = runtime.NumCPU()
	}
	return p
}

// CheckReadiness returns nil once the pipeline has written at least one row.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not written any rows yet")
	}
	return nil
}

// Status returns a snapshot of run progress.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) updateStatus(fn func(*Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.status)
}

// Columns returns the full output header for the run.
func (p *Pipeline) Columns() []string {
	return append(domain.PrefixColumns(p.plan.MemberColumn()), p.request.Columns()...)
}

type job struct {
	index int
	task  domain.Task
}

// Run validates the plan and request, then evaluates every task. Only
// configuration errors are returned; task failures are recorded in the
// summary. Cancelling ctx stops dispatching new tasks; tasks already
// running finish and their rows are written.
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	if err := p.plan.Validate(); err != nil {
		return RunSummary{}, err
	}
	evaluator, err := NewEvaluator(p.request, p.plan.Mode)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{RunID: p.runID, StartedAt: domain.Now()}
	if summary.RunID == "" {
		summary.RunID = uuid.NewString()
	}
	logger := p.logger.With("run_id", summary.RunID)
	tasks := p.plan.Tasks()
	workers := min(p.workers, len(tasks))

	logger.Info("run started",
		"tasks", len(tasks), "workers", workers, "mode", p.plan.Mode.String(), "ordered", p.ordered)
	p.metrics.RunActive.Set(1)
	defer p.metrics.RunActive.Set(0)
	p.updateStatus(func(st *Status) {
		*st = Status{RunID: summary.RunID, Running: true, Tasks: len(tasks), StartedAt: summary.StartedAt}
	})

	jobs := make(chan job)
	outcomes := make(chan indexedOutcome, workers)

	// Tasks are not cancellable once started.
	taskCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				outcomes <- indexedOutcome{index: j.index, outcome: p.runTask(taskCtx, evaluator, j.task)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, t := range tasks {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- job{index: i, task: t}:
				p.metrics.TasksDispatched.Inc()
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	c := newCollector(p.ordered, func(o domain.TaskOutcome) {
		p.emit(taskCtx, logger, &summary, o)
	})
	for o := range outcomes {
		summary.Dispatched++
		c.add(o.index, o.outcome)
	}

	summary.NotDispatched = len(tasks) - summary.Dispatched
	summary.FinishedAt = domain.Now()
	p.updateStatus(func(st *Status) {
		st.Running = false
		st.FinishedAt = summary.FinishedAt
	})
	logger.Info("run finished",
		"dispatched", summary.Dispatched,
		"completed", summary.Completed,
		"skipped", summary.Skipped,
		"not_dispatched", summary.NotDispatched,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return summary, nil
}

// emit runs on the collector goroutine only.
func (p *Pipeline) emit(ctx context.Context, logger *slog.Logger, summary *RunSummary, o domain.TaskOutcome) {
	if o.Failed() {
		p.recordFailure(logger, summary, o.Task, reasonFor(o.Err), o.Err)
		return
	}
	if err := p.sink.AppendRow(ctx, o.Row); err != nil {
		p.recordFailure(logger, summary, o.Task, domain.ReasonSink, err)
		return
	}
	summary.Completed++
	p.updateStatus(func(st *Status) { st.Completed++ })
	p.metrics.TasksCompleted.Inc()
	p.metrics.RowsWritten.Inc()
	for i, v := range o.Row.Values {
		if math.IsNaN(v) {
			p.metrics.UndefinedValues.WithLabelValues(o.Row.Columns[i]).Inc()
		}
	}
	p.ready.Store(true)
}

func (p *Pipeline) recordFailure(logger *slog.Logger, summary *RunSummary, task domain.Task, reason string, err error) {
	summary.Skipped++
	p.updateStatus(func(st *Status) { st.Skipped++ })
	summary.Failures = append(summary.Failures, TaskFailure{Task: task, Reason: reason, Err: err})
	p.metrics.TasksSkipped.WithLabelValues(reason).Inc()
	logger.Warn("task failed, skipping", "task", task.String(), "reason", reason, "error", err)
}

func reasonFor(err error) string {
	if errors.Is(err, errTaskPanic) {
		return domain.ReasonPanic
	}
	return domain.FailureReason(err)
}

// runTask loads, regrids and evaluates one task. A panic becomes a failed
// outcome.
func (p *Pipeline) runTask(ctx context.Context, evaluator *Evaluator, task domain.Task) (out domain.TaskOutcome) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "verify.task", trace.WithAttributes(
		attribute.String("task", task.String()),
		attribute.Int("lead", task.Lead),
	))
	out.Task = task

	defer func() {
		if r := recover(); r != nil {
			out = domain.TaskOutcome{Task: task, Err: fmt.Errorf("%w: %v", errTaskPanic, r)}
		}
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, reasonFor(out.Err))
		}
		span.End()
		p.metrics.TaskDuration.Observe(time.Since(start).Seconds())
	}()

	forecasts, reference, err := p.load(ctx, task)
	if err != nil {
		out.Err = err
		return out
	}
	members, ref, err := p.regrid.Apply(ctx, task, forecasts, reference)
	if err != nil {
		out.Err = err
		return out
	}
	values, err := evaluator.Evaluate(members, ref)
	if err != nil {
		out.Err = err
		return out
	}
	out.Row = domain.ResultRow{
		Task:         task,
		MemberColumn: p.plan.MemberColumn(),
		Columns:      evaluator.Columns(),
		Values:       values,
	}
	return out
}

func (p *Pipeline) load(ctx context.Context, task domain.Task) ([]domain.Field, domain.Field, error) {
	members := []string{task.Member}
	if p.plan.Mode == domain.Ensemble {
		members = p.plan.Members
	}
	forecasts := make([]domain.Field, len(members))
	for i, m := range members {
		f, err := p.forecast.Load(ctx, task, m)
		if err != nil {
			return nil, domain.Field{}, fmt.Errorf("load forecast: %w", err)
		}
		forecasts[i] = f
	}
	ref, err := p.reference.Load(ctx, task, domain.NoMember)
	if err != nil {
		return nil, domain.Field{}, fmt.Errorf("load reference: %w", err)
	}
	return forecasts, ref, nil
}

type indexedOutcome struct {
	index   int
	outcome domain.TaskOutcome
}

// collector forwards outcomes to emit, either immediately or in index order.
type collector struct {
	ordered bool
	emit    func(domain.TaskOutcome)
	next    int
	pending map[int]domain.TaskOutcome
}

func newCollector(ordered bool, emit func(domain.TaskOutcome)) *collector {
	return &collector{ordered: ordered, emit: emit, pending: make(map[int]domain.TaskOutcome)}
}

func (c *collector) add(index int, o domain.TaskOutcome) {
	if !c.ordered {
		c.emit(o)
		return
	}
	c.pending[index] = o
	for {
		o, ok := c.pending[c.next]
		if !ok {
			return
		}
		delete(c.pending, c.next)
		c.next++
		c.emit(o)
	}
}
