package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
	"github.com/couchcryptid/storm-data-verify/internal/grid"
)

// FieldLoader reads the field for one task and member.
type FieldLoader interface {
	Load(ctx context.Context, task domain.Task, member string) (domain.Field, error)
}

// TemplateLoader expands an identifier template for each task and reads the
// field from a FieldSource.
type TemplateLoader struct {
	source     domain.FieldSource
	template   string
	variable   string
	level      string
	shiftHours int
}

// NewTemplateLoader creates a loader for one variable and level.
func NewTemplateLoader(source domain.FieldSource, template, variable, level string) *TemplateLoader {
	return &TemplateLoader{source: source, template: template, variable: variable, level: level}
}

// WithShiftHours offsets every date placeholder of the template by hours.
func (l *TemplateLoader) WithShiftHours(hours int) *TemplateLoader {
	l.shiftHours = hours
	return l
}

func (l *TemplateLoader) Load(ctx context.Context, task domain.Task, member string) (domain.Field, error) {
	id := domain.ExpandShifted(l.template, task, member, l.shiftHours)
	f, err := l.source.ReadField(ctx, id, l.variable, l.level)
	if err != nil {
		return domain.Field{}, fmt.Errorf("read %s %s: %w", id, l.variable, err)
	}
	return f, nil
}

// RegridMode selects how forecast and reference fields are brought onto a
// common grid.
type RegridMode int

const (
	// RegridNone compares fields as read; mismatched shapes fail the task.
	RegridNone RegridMode = iota
	// RegridTarget reconciles forecast and reference onto a target grid.
	RegridTarget
	// RegridForecast reconciles the reference and any further ensemble
	// members onto the first forecast's coordinates.
	RegridForecast
)

// Regridder applies a RegridMode to the fields of one task.
type Regridder struct {
	mode     RegridMode
	grids    domain.GridSource
	template string
}

// NoRegrid leaves fields on their native grids.
func NoRegrid() *Regridder { return &Regridder{mode: RegridNone} }

// OntoTarget reconciles every field onto the grid named by template, read
// through grids. The template accepts the same placeholders as field
// identifiers.
func OntoTarget(grids domain.GridSource, template string) *Regridder {
	return &Regridder{mode: RegridTarget, grids: grids, template: template}
}

// OntoForecast reconciles the reference, and members after the first, onto
// the first forecast's coordinates.
func OntoForecast() *Regridder { return &Regridder{mode: RegridForecast} }

// Apply returns forecast member values and reference values on a common grid.
func (r *Regridder) Apply(ctx context.Context, task domain.Task, forecasts []domain.Field, reference domain.Field) ([]domain.Array2D, domain.Array2D, error) {
	out := make([]domain.Array2D, len(forecasts))
	switch r.mode {
	case RegridTarget:
		id := domain.ExpandTemplate(r.template, task, domain.NoMember)
		g, err := r.grids.ReadGrid(ctx, id)
		if err != nil {
			return nil, domain.Array2D{}, fmt.Errorf("read target grid %s: %w", id, err)
		}
		for i, f := range forecasts {
			if out[i], err = grid.Reconcile(f, g); err != nil {
				return nil, domain.Array2D{}, fmt.Errorf("reconcile forecast: %w", err)
			}
		}
		ref, err := grid.Reconcile(reference, g)
		if err != nil {
			return nil, domain.Array2D{}, fmt.Errorf("reconcile reference: %w", err)
		}
		return out, ref, nil

	case RegridForecast:
		g := domain.Grid{Lat: forecasts[0].Lat, Lon: forecasts[0].Lon}
		out[0] = forecasts[0].Values
		for i := 1; i < len(forecasts); i++ {
			var err error
			if out[i], err = grid.Reconcile(forecasts[i], g); err != nil {
				return nil, domain.Array2D{}, fmt.Errorf("reconcile member %d: %w", i, err)
			}
		}
		ref, err := grid.Reconcile(reference, g)
		if err != nil {
			return nil, domain.Array2D{}, fmt.Errorf("reconcile reference: %w", err)
		}
		return out, ref, nil

	default:
		for i, f := range forecasts {
			out[i] = f.Values
		}
		return out, reference.Values, nil
	}
}
