// Package batch runs remodel requests for many concepts with bounded
// concurrency and a per-concept time budget.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/remodel"
	"github.com/c360studio/semremodel/report"
	"github.com/c360studio/semremodel/storage"
)

// ErrDuplicateConcept is returned when one batch names a concept twice.
// The store allows at most one remodel in flight per concept.
var ErrDuplicateConcept = errors.New("concept appears twice in batch")

// Remodeler runs one remodel. *remodel.Engine implements it.
type Remodeler interface {
	Remodel(ctx context.Context, req remodel.Request) (*remodel.Outcome, error)
}

// Recorder keeps a durable history of batches. storage.SQLite and
// storage.KV implement it.
type Recorder interface {
	StartRun(ctx context.Context, run *storage.Run) error
	Record(ctx context.Context, runID string, c *graph.Concept, out *remodel.Outcome) error
	FinishRun(ctx context.Context, run *storage.Run) error
}

// Config bounds a batch run.
type Config struct {
	// Workers is the number of concepts remodeled at once. Zero means 1.
	Workers int

	// ConceptTimeout is the time budget per concept. An overrun rejects the
	// concept as aborted. Zero disables the budget.
	ConceptTimeout time.Duration
}

// Summary is the result of a batch.
type Summary struct {
	RunID string

	// Outcomes is indexed like the request slice. An entry is nil only when
	// that concept hit an invariant violation or was never started.
	Outcomes []*remodel.Outcome

	Changed   int
	Unchanged int
	Rejected  int
	Mutations int
}

// Driver runs batches against one Remodeler.
type Driver struct {
	engine   Remodeler
	config   Config
	reporter report.Reporter
	metrics  *Metrics
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithReporter sets where the one-line summary per concept goes.
func WithReporter(r report.Reporter) Option {
	return func(d *Driver) { d.reporter = r }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithRecorder records every outcome under a run.
func WithRecorder(r Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// NewDriver creates a batch driver.
func NewDriver(engine Remodeler, config Config, opts ...Option) *Driver {
	d := &Driver{
		engine:   engine,
		config:   config,
		reporter: report.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.config.Workers <= 0 {
		d.config.Workers = 1
	}
	return d
}

// Run remodels every request. Rejections are part of the summary, not
// errors. An invariant violation stops the batch: concepts not yet started
// are skipped and the violation is returned alongside the partial summary.
func (d *Driver) Run(ctx context.Context, reqs []remodel.Request) (*Summary, error) {
	seen := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if req.Concept == nil {
			return nil, fmt.Errorf("batch request without concept")
		}
		if seen[req.Concept.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateConcept, req.Concept.ID)
		}
		seen[req.Concept.ID] = true
	}

	run := &storage.Run{ID: storage.NewRunID(), StartedAt: time.Now(), Concepts: len(reqs)}
	if d.recorder != nil {
		if err := d.recorder.StartRun(ctx, run); err != nil {
			return nil, fmt.Errorf("start run: %w", err)
		}
	}

	sum := &Summary{RunID: run.ID, Outcomes: make([]*remodel.Outcome, len(reqs))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.Workers)

	for i, req := range reqs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := d.one(gctx, req)
			if err != nil {
				d.logger.Error("Remodel failed", "concept", req.Concept.ID, "error", err)
				return err
			}
			if d.recorder != nil {
				// A committed change is recorded even when the batch is stopping.
				if err := d.recorder.Record(context.WithoutCancel(gctx), run.ID, req.Concept, out); err != nil {
					return fmt.Errorf("record %s: %w", req.Concept.ID, err)
				}
			}
			mu.Lock()
			sum.Outcomes[i] = out
			switch out.Status {
			case remodel.Changed:
				sum.Changed++
				sum.Mutations += out.Count()
			case remodel.Rejected:
				sum.Rejected++
			default:
				sum.Unchanged++
			}
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	finished := time.Now()
	run.FinishedAt = &finished
	run.Changed, run.Unchanged, run.Rejected, run.Mutations = sum.Changed, sum.Unchanged, sum.Rejected, sum.Mutations
	if d.recorder != nil {
		if ferr := d.recorder.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			err = errors.Join(err, fmt.Errorf("finish run: %w", ferr))
		}
	}

	d.logger.Info("Batch complete",
		"run", run.ID,
		"concepts", len(reqs),
		"changed", sum.Changed,
		"unchanged", sum.Unchanged,
		"rejected", sum.Rejected,
		"mutations", sum.Mutations,
		"elapsed", finished.Sub(run.StartedAt))

	if err != nil {
		return sum, fmt.Errorf("batch stopped: %w", err)
	}
	return sum, nil
}

func (d *Driver) one(ctx context.Context, req remodel.Request) (*remodel.Outcome, error) {
	if d.config.ConceptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ConceptTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := d.engine.Remodel(ctx, req)
	d.metrics.observe(out, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	level := report.LevelInfo
	if out.Status == remodel.Rejected {
		level = report.LevelWarn
	}
	d.reporter.Report(report.Entry{
		ConceptID: out.ConceptID,
		Template:  out.Template,
		Level:     level,
		Message:   out.Summary(),
		Time:      time.Now(),
	})
	return out, nil
}
