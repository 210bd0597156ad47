package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/semremodel/batch"
	"github.com/c360studio/semremodel/config"
	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/remodel"
	"github.com/c360studio/semremodel/report"
	"github.com/c360studio/semremodel/storage"
	"github.com/c360studio/semremodel/template"
)

// App wires the snapshot, templates, engine and sinks together.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	store     *graph.Store
	closure   *graph.Closure
	templates *template.Registry
	watcher   *template.Watcher

	// Storage
	snapshotDB *storage.SQLite
	historyDB  *storage.SQLite
	history    *storage.KV

	// NATS
	natsConn *nats.Conn
	js       jetstream.JetStream

	reporter report.Reporter
	metrics  *prometheus.Registry

	// commit writes changed concepts back to the snapshot
	commit bool
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:       cfg,
		logger:    logger,
		templates: template.NewRegistry(logger),
		metrics:   prometheus.NewRegistry(),
	}
}

// Start loads the snapshot and templates and connects the configured sinks.
// commit writes changed concepts back to the snapshot.
func (a *App) Start(ctx context.Context, commit bool) error {
	a.commit = commit
	if err := a.OpenSnapshot(ctx); err != nil {
		return err
	}

	if err := a.templates.LoadDir(a.cfg.Templates.Dir, a.cfg.Templates.Pattern, a.store); err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	if a.cfg.Templates.Watch {
		if err := a.Watch(ctx); err != nil {
			return err
		}
	}

	if err := a.startNATS(); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	reporters := []report.Reporter{report.NewSlogReporter(a.logger)}
	if a.natsConn != nil {
		reporters = append(reporters, report.NewNATSReporter(a.natsConn, a.cfg.Report.Subject, a.logger))
	}
	a.reporter = report.Multi(reporters...)

	if err := a.openHistory(ctx); err != nil {
		return fmt.Errorf("open history: %w", err)
	}

	a.logger.Info("Semremodel ready",
		"concepts", a.store.Len(),
		"templates", a.templates.Len(),
		"closure", a.cfg.Remodel.Closure)
	return nil
}

// OpenSnapshot loads the concept snapshot and builds its closure.
func (a *App) OpenSnapshot(ctx context.Context) error {
	if err := a.loadSnapshot(ctx); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	char, err := graph.ParseCharacteristic(a.cfg.Remodel.Closure)
	if err != nil {
		return fmt.Errorf("closure characteristic: %w", err)
	}
	a.closure = graph.NewClosure(a.store, char)
	return nil
}

// Watch reloads the templates whenever the template directory changes.
func (a *App) Watch(ctx context.Context) error {
	if a.watcher != nil {
		return nil
	}
	w, err := template.NewWatcher(template.WatchConfig{
		Dir:           a.cfg.Templates.Dir,
		Pattern:       a.cfg.Templates.Pattern,
		DebounceDelay: a.cfg.Templates.DebounceDelay.String(),
	}, a.templates, a.store, a.logger)
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return fmt.Errorf("start template watcher: %w", err)
	}
	a.watcher = w
	return nil
}

func (a *App) loadSnapshot(ctx context.Context) error {
	switch a.cfg.Snapshot.Driver {
	case config.DriverSQLite:
		var opts []storage.SQLiteOption
		if a.commit {
			opts = append(opts, storage.WithCommit())
		}
		db, err := storage.OpenSQLite(a.cfg.Snapshot.Path, opts...)
		if err != nil {
			return err
		}
		a.snapshotDB = db
		a.store, err = db.LoadSnapshot(ctx)
		return err
	default:
		var err error
		a.store, err = storage.LoadSnapshotFile(a.cfg.Snapshot.Path)
		return err
	}
}

func (a *App) startNATS() error {
	if a.cfg.Report.NATSURL == "" {
		return nil
	}
	a.logger.Debug("Connecting to NATS", "url", a.cfg.Report.NATSURL)
	conn, err := report.Connect(a.cfg.Report.NATSURL)
	if err != nil {
		return err
	}
	a.natsConn = conn

	if a.cfg.History.Driver == config.DriverNATS {
		js, err := jetstream.New(conn)
		if err != nil {
			return fmt.Errorf("create JetStream context: %w", err)
		}
		a.js = js
	}
	return nil
}

func (a *App) openHistory(ctx context.Context) error {
	switch a.cfg.History.Driver {
	case config.DriverNATS:
		kv, err := storage.NewKV(ctx, a.js)
		if err != nil {
			return err
		}
		a.history = kv
	case config.DriverSQLite:
		path := a.cfg.HistoryPath()
		if a.snapshotDB != nil && path == a.snapshotDB.Path() {
			return nil
		}
		db, err := storage.OpenSQLite(path)
		if err != nil {
			return err
		}
		a.historyDB = db
	}
	return nil
}

// Engine returns a remodeling engine over the loaded snapshot.
func (a *App) Engine() *remodel.Engine {
	return remodel.NewEngine(a.store, a.closure,
		remodel.WithReporter(a.reporter),
		remodel.WithLogger(a.logger),
		remodel.WithMaxAdditionalGroups(a.cfg.Remodel.MaxAdditionalGroups))
}

// Driver returns a batch driver with every configured recorder attached.
func (a *App) Driver() *batch.Driver {
	opts := []batch.Option{
		batch.WithReporter(a.reporter),
		batch.WithMetrics(batch.NewMetrics(a.metrics)),
		batch.WithLogger(a.logger),
	}
	var recs recorders
	sharedHistory := a.historyDB == nil && a.cfg.History.Driver == config.DriverSQLite
	if a.snapshotDB != nil && (sharedHistory || a.commit) {
		recs = append(recs, a.snapshotDB)
	}
	if a.historyDB != nil {
		recs = append(recs, a.historyDB)
	}
	if a.history != nil {
		recs = append(recs, a.history)
	}
	if len(recs) > 0 {
		opts = append(opts, batch.WithRecorder(recs))
	}
	return batch.NewDriver(a.Engine(), batch.Config{
		Workers:        a.cfg.Remodel.Workers,
		ConceptTimeout: a.cfg.Remodel.ConceptTimeout,
	}, opts...)
}

// Persist writes the in-memory snapshot back to a YAML file. SQLite
// snapshots commit per concept as outcomes are recorded.
func (a *App) Persist() error {
	if a.commit && a.cfg.Snapshot.Driver == config.DriverYAML {
		if err := storage.SaveSnapshotFile(a.cfg.Snapshot.Path, a.store); err != nil {
			return err
		}
		a.logger.Info("Snapshot written", "path", a.cfg.Snapshot.Path)
	}
	return nil
}

// WriteMetrics exports the batch metrics when a textfile is configured.
func (a *App) WriteMetrics() error {
	if a.cfg.Metrics.Textfile == "" {
		return nil
	}
	return batch.WriteTextfile(a.cfg.Metrics.Textfile, a.metrics)
}

// Shutdown stops the watcher and closes every connection.
func (a *App) Shutdown() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Stop())
	}
	if a.snapshotDB != nil {
		errs = append(errs, a.snapshotDB.Close())
	}
	if a.historyDB != nil {
		errs = append(errs, a.historyDB.Close())
	}
	if a.natsConn != nil {
		errs = append(errs, a.natsConn.Drain())
	}
	return errors.Join(errs...)
}

// recorders fans one batch history out to several stores.
type recorders []batch.Recorder

func (rs recorders) StartRun(ctx context.Context, run *storage.Run) error {
	for _, r := range rs {
		if err := r.StartRun(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (rs recorders) Record(ctx context.Context, runID string, c *graph.Concept, out *remodel.Outcome) error {
	for _, r := range rs {
		if err := r.Record(ctx, runID, c, out); err != nil {
			return err
		}
	}
	return nil
}

func (rs recorders) FinishRun(ctx context.Context, run *storage.Run) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.FinishRun(ctx, run))
	}
	return errors.Join(errs...)
}
