package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/remodel"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLite holds a terminology snapshot and the run history in one database.
type SQLite struct {
	db     *sql.DB
	path   string
	commit bool
}

// SQLiteOption configures a SQLite store.
type SQLiteOption func(*SQLite)

// WithCommit makes Record rewrite the stored relationships of every changed
// concept along with its outcome.
func WithCommit() SQLiteOption {
	return func(s *SQLite) { s.commit = true }
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: pragma %q: %w", p, err)
		}
	}

	s := &SQLite{db: db, path: path}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS concepts (
			id                TEXT PRIMARY KEY,
			label             TEXT    NOT NULL,
			active            INTEGER NOT NULL DEFAULT 1,
			definition_status TEXT    NOT NULL DEFAULT 'primitive',
			descriptions      TEXT
		);

		CREATE TABLE IF NOT EXISTS relationships (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT,
			source_id      TEXT    NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
			type_id        TEXT    NOT NULL,
			target_id      TEXT    NOT NULL,
			group_id       INTEGER NOT NULL DEFAULT 0,
			characteristic TEXT    NOT NULL DEFAULT 'stated',
			active         INTEGER NOT NULL DEFAULT 1
		);
		CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);

		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  TEXT    NOT NULL,
			finished_at TEXT,
			concepts    INTEGER NOT NULL DEFAULT 0,
			changed     INTEGER NOT NULL DEFAULT 0,
			unchanged   INTEGER NOT NULL DEFAULT 0,
			rejected    INTEGER NOT NULL DEFAULT 0,
			mutations   INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS outcomes (
			run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			concept_id     TEXT NOT NULL,
			template       TEXT NOT NULL,
			status         TEXT NOT NULL,
			failure_kind   TEXT,
			failure_detail TEXT,
			before_expr    TEXT,
			after_expr     TEXT,
			mutations      TEXT,
			recorded_at    TEXT NOT NULL,
			PRIMARY KEY (run_id, concept_id)
		);
		CREATE INDEX IF NOT EXISTS idx_outcomes_concept ON outcomes(concept_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSnapshot replaces the stored snapshot with the store's contents.
func (s *SQLite) SaveSnapshot(ctx context.Context, store *graph.Store) error {
	concepts, rels := Records(store)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships`); err != nil {
		return fmt.Errorf("clear relationships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM concepts`); err != nil {
		return fmt.Errorf("clear concepts: %w", err)
	}
	for _, cr := range concepts {
		if err := insertConcept(ctx, tx, cr); err != nil {
			return err
		}
	}
	for _, rr := range rels {
		if err := insertRelationship(ctx, tx, rr); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot save: %w", err)
	}
	return nil
}

func insertConcept(ctx context.Context, tx *sql.Tx, cr ConceptRecord) error {
	label := cr.Label
	if label == "" {
		label = cr.ID
	}
	status := cr.DefinitionStatus
	if status == "" {
		status = graph.Primitive.String()
	}
	var descriptions *string
	if len(cr.Descriptions) > 0 {
		data, err := json.Marshal(cr.Descriptions)
		if err != nil {
			return fmt.Errorf("marshal descriptions of %s: %w", cr.ID, err)
		}
		d := string(data)
		descriptions = &d
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO concepts (id, label, active, definition_status, descriptions) VALUES (?, ?, ?, ?, ?)`,
		cr.ID, label, !cr.Inactive, status, descriptions)
	if err != nil {
		return fmt.Errorf("insert concept %s: %w", cr.ID, err)
	}
	return nil
}

func insertRelationship(ctx context.Context, tx *sql.Tx, rr RelationshipRecord) error {
	var id *string
	if rr.ID != "" {
		id = &rr.ID
	}
	char := rr.Characteristic
	if char == "" {
		char = graph.Stated.String()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO relationships (id, source_id, type_id, target_id, group_id, characteristic, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rr.Source, rr.Type, rr.Target, rr.Group, char, !rr.Inactive)
	if err != nil {
		return fmt.Errorf("insert relationship %s -> %s on %s: %w", rr.Type, rr.Target, rr.Source, err)
	}
	return nil
}

// LoadSnapshot builds a store from the database.
func (s *SQLite) LoadSnapshot(ctx context.Context, opts ...graph.StoreOption) (*graph.Store, error) {
	concepts, err := s.concepts(ctx)
	if err != nil {
		return nil, err
	}
	rels, err := s.relationships(ctx)
	if err != nil {
		return nil, err
	}
	return Build(concepts, rels, opts...)
}

func (s *SQLite) concepts(ctx context.Context) ([]ConceptRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, active, definition_status, descriptions FROM concepts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query concepts: %w", err)
	}
	defer rows.Close()

	var out []ConceptRecord
	for rows.Next() {
		var cr ConceptRecord
		var active bool
		var descriptions sql.NullString
		if err := rows.Scan(&cr.ID, &cr.Label, &active, &cr.DefinitionStatus, &descriptions); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		cr.Inactive = !active
		if descriptions.Valid {
			if err := json.Unmarshal([]byte(descriptions.String), &cr.Descriptions); err != nil {
				return nil, fmt.Errorf("unmarshal descriptions of %s: %w", cr.ID, err)
			}
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (s *SQLite) relationships(ctx context.Context) ([]RelationshipRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, type_id, target_id, group_id, characteristic, active
		 FROM relationships ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var out []RelationshipRecord
	for rows.Next() {
		var rr RelationshipRecord
		var id sql.NullString
		var active bool
		if err := rows.Scan(&id, &rr.Source, &rr.Type, &rr.Target, &rr.Group, &rr.Characteristic, &active); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rr.ID = id.String
		rr.Inactive = !active
		out = append(out, rr)
	}
	return out, rows.Err()
}

// StartRun records the start of a batch.
func (s *SQLite) StartRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, concepts) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Concepts)
	if err != nil {
		return fmt.Errorf("start run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final counts of a batch.
func (s *SQLite) FinishRun(ctx context.Context, run *Run) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, concepts = ?, changed = ?, unchanged = ?, rejected = ?, mutations = ?
		 WHERE id = ?`,
		finished.UTC().Format(time.RFC3339Nano), run.Concepts, run.Changed, run.Unchanged, run.Rejected, run.Mutations,
		run.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetRun returns one run.
func (s *SQLite) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var started string
	var finished sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, concepts, changed, unchanged, rejected, mutations
		 FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &started, &finished, &run.Concepts, &run.Changed, &run.Unchanged, &run.Rejected, &run.Mutations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		t, _ := time.Parse(time.RFC3339Nano, finished.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

// Record stores an outcome. With WithCommit, a Changed outcome also rewrites
// the concept's relationships in the same transaction, so the snapshot and
// the history never disagree.
func (s *SQLite) Record(ctx context.Context, runID string, c *graph.Concept, out *remodel.Outcome) error {
	rec := NewOutcomeRecord(runID, out)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	var mutations *string
	if len(rec.Mutations) > 0 {
		data, err := json.Marshal(rec.Mutations)
		if err != nil {
			return fmt.Errorf("marshal mutations: %w", err)
		}
		m := string(data)
		mutations = &m
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, concept_id, template, status, failure_kind, failure_detail,
		                       before_expr, after_expr, mutations, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.ConceptID, rec.Template, rec.Status, rec.FailureKind, rec.FailureDetail,
		rec.Before, rec.After, mutations, rec.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert outcome %s: %w", rec.ConceptID, err)
	}

	if s.commit && out.Status == remodel.Changed && c != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE source_id = ?`, c.ID); err != nil {
			return fmt.Errorf("clear relationships of %s: %w", c.ID, err)
		}
		for _, rr := range relationshipRecords(c) {
			if err := insertRelationship(ctx, tx, rr); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outcome %s: %w", rec.ConceptID, err)
	}
	return nil
}

// History returns every recorded outcome for a concept, oldest first.
func (s *SQLite) History(ctx context.Context, conceptID string) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, concept_id, template, status, failure_kind, failure_detail,
		        before_expr, after_expr, mutations, recorded_at
		 FROM outcomes WHERE concept_id = ? ORDER BY recorded_at`, conceptID)
	if err != nil {
		return nil, fmt.Errorf("query history of %s: %w", conceptID, err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var rec OutcomeRecord
		var kind, detail, before, after, mutations sql.NullString
		var recorded string
		if err := rows.Scan(&rec.RunID, &rec.ConceptID, &rec.Template, &rec.Status,
			&kind, &detail, &before, &after, &mutations, &recorded); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.FailureKind = kind.String
		rec.FailureDetail = detail.String
		rec.Before = before.String
		rec.After = after.String
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
		if mutations.Valid {
			if err := json.Unmarshal([]byte(mutations.String), &rec.Mutations); err != nil {
				return nil, fmt.Errorf("unmarshal mutations: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
