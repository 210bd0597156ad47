// Package remodel reshapes a concept's stated relationship groups so they
// conform to a logical template.
//
// Every attempt works on trial clones of the concept's groups. The live graph
// is touched once, by graph.Store.Apply, after the trial groups have been
// diffed into a mutation list; a rejected attempt leaves the concept exactly
// as it was.
//
// # Steps
//
//  1. Snapshot the stated groups, padded to the template's group count.
//  2. Strip grouped-only attributes from group 0.
//  3. Keep one relationship per type within each group.
//  4. Compact group numbering.
//  5. Align template groups to existing concept groups.
//  6. Satisfy each template attribute from stated, then inferred, values.
//  7. Apply caller-requested removals.
//  8. Move ungrouped-only attributes back to group 0.
//  9. Demote singleton groups.
//  10. Diff, check the expression changed, and commit.
package remodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semremodel/export"
	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/report"
	"github.com/c360studio/semremodel/template"
	"github.com/c360studio/semremodel/vocabulary/snomed"
)

// Hierarchy is the subsumption view the engine needs. *graph.Closure
// implements it.
type Hierarchy interface {
	Subsumes(a, b *graph.Concept) bool
	IsAncestorOf(a, b *graph.Concept) bool
	MostSpecific(candidates []*graph.Concept) []*graph.Concept
}

// Removal names a (type, target) pair to drop from every group.
type Removal struct {
	Type   *graph.Concept
	Target *graph.Concept
}

// Request asks for one concept to be remodeled against one template.
type Request struct {
	Concept  *graph.Concept
	Template *template.Template
	Remove   []Removal
}

// Engine runs remodels against one store. An Engine is safe for concurrent
// use as long as no two in-flight requests name the same concept.
type Engine struct {
	store    *graph.Store
	closure  Hierarchy
	reporter report.Reporter
	logger   *slog.Logger

	// maxAdditional caps the groups one remodel may form; 0 means no cap.
	maxAdditional int
}

// Option configures an Engine.
type Option func(*Engine)

// WithReporter sets the audit sink. The default discards entries.
func WithReporter(r report.Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMaxAdditionalGroups caps how many groups beyond the template's own a
// single remodel may form. Zero leaves only the template cardinality.
func WithMaxAdditionalGroups(n int) Option {
	return func(e *Engine) {
		e.maxAdditional = n
	}
}

// NewEngine creates an engine over store using closure for subsumption.
func NewEngine(store *graph.Store, closure Hierarchy, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		closure:  closure,
		reporter: report.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reporter == nil {
		e.reporter = report.Discard
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Remodel reshapes one concept. Validation failures and caller cancellation
// come back as a Rejected outcome with a nil error; a non-nil error means an
// invariant was violated and the concept must be treated as suspect.
func (e *Engine) Remodel(ctx context.Context, req Request) (*Outcome, error) {
	c, tmpl := req.Concept, req.Template
	if c == nil || tmpl == nil {
		return nil, fmt.Errorf("%w: remodel needs a concept and a template", graph.ErrInvariant)
	}
	if _, ok := e.store.Concept(c.ID); !ok {
		return nil, fmt.Errorf("remodel %s: %w", c.ID, graph.ErrUnknownConcept)
	}

	out := &Outcome{
		ConceptID: c.ID,
		Template:  tmpl.Name(),
		Before:    export.Expression(c, graph.Stated),
	}
	if err := ctx.Err(); err != nil {
		return rejected(out, fail(KindAborted, "%v", err)), nil
	}

	a := newAttempt(e, c, tmpl)
	err := a.run(req.Remove)
	var vf *ValidationFailure
	switch {
	case errors.As(err, &vf):
		e.audit(c, tmpl, report.LevelWarn, vf.Error())
		return rejected(out, vf), nil
	case err != nil:
		return nil, fmt.Errorf("remodel %s: %w", c.ID, err)
	}

	if !a.changed {
		out.Status = Unchanged
		return out, nil
	}

	mutations, err := a.diff()
	if err != nil {
		return nil, fmt.Errorf("remodel %s: %w", c.ID, err)
	}
	if len(mutations) == 0 {
		out.Status = Unchanged
		return out, nil
	}

	out.After = export.Render(c.DefinitionStatus, a.result())
	if out.After == out.Before {
		e.audit(c, tmpl, report.LevelWarn, "planned changes leave the stated expression unchanged")
		return rejected(out, fail(KindNoEffectiveChange, "%d mutations planned", len(mutations))), nil
	}

	if err := ctx.Err(); err != nil {
		return rejected(out, fail(KindAborted, "%v", err)), nil
	}
	if err := e.store.Apply(c, mutations); err != nil {
		return nil, fmt.Errorf("commit %s: %w", c.ID, err)
	}

	out.Status = Changed
	out.Mutations = mutations
	e.logger.Debug("Remodel committed",
		"concept", c.ID,
		"template", tmpl.Name(),
		"mutations", len(mutations))
	return out, nil
}

func (e *Engine) audit(c *graph.Concept, tmpl *template.Template, level report.Level, msg string) {
	e.reporter.Report(report.Entry{
		ConceptID: c.ID,
		Template:  tmpl.Name(),
		Level:     level,
		Message:   msg,
		Time:      time.Now(),
	})
}

func (e *Engine) auditf(c *graph.Concept, tmpl *template.Template, format string, args ...any) {
	e.audit(c, tmpl, report.LevelInfo, fmt.Sprintf(format, args...))
}

// remodelable selects the relationships the engine may move: active, of the
// given characteristic, and not part of the IS-A hierarchy.
func remodelable(char graph.CharacteristicType) graph.Filter {
	return graph.Select(char).ExcludingType(snomed.IsA)
}
