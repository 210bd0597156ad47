package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/remodel"
)

// Bucket names for the run history.
const (
	BucketRuns     = "SEMREMODEL_RUNS"
	BucketOutcomes = "SEMREMODEL_OUTCOMES"
)

// Bucket is the subset of a key-value bucket the history needs.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context) ([]string, error)
}

// KV keeps the run history in NATS KV buckets.
type KV struct {
	runs     Bucket
	outcomes Bucket
}

// NewKV creates the history over the given JetStream context, creating the
// buckets if they don't exist.
func NewKV(ctx context.Context, js jetstream.JetStream) (*KV, error) {
	runs, err := getOrCreateBucket(ctx, js, BucketRuns)
	if err != nil {
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}

	outcomes, err := getOrCreateBucket(ctx, js, BucketOutcomes)
	if err != nil {
		return nil, fmt.Errorf("create outcomes bucket: %w", err)
	}

	return NewKVWithBuckets(runs, outcomes), nil
}

// NewKVWithBuckets creates the history over existing buckets.
func NewKVWithBuckets(runs, outcomes Bucket) *KV {
	return &KV{runs: runs, outcomes: outcomes}
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (Bucket, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return jsBucket{kv}, nil
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Semremodel %s history", strings.ToLower(strings.TrimPrefix(name, "SEMREMODEL_"))),
		History:     5,
	})
	if err != nil {
		return nil, err
	}
	return jsBucket{kv}, nil
}

// jsBucket adapts a JetStream key-value store to Bucket.
type jsBucket struct {
	kv jetstream.KeyValue
}

func (b jsBucket) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

func (b jsBucket) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.kv.Put(ctx, key, value)
	return err
}

func (b jsBucket) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	return keys, err
}

// outcomeKey builds "<run>.<concept>". KV keys allow only a restricted
// alphabet, so other characters in concept identifiers become '_'.
func outcomeKey(runID, conceptID string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, conceptID)
	return runID + "." + clean
}

// StartRun stores a new run.
func (s *KV) StartRun(ctx context.Context, run *Run) error {
	return s.putRun(ctx, run)
}

// FinishRun overwrites a run with its final counts.
func (s *KV) FinishRun(ctx context.Context, run *Run) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	return s.putRun(ctx, run)
}

func (s *KV) putRun(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := s.runs.Put(ctx, run.ID, data); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *KV) GetRun(ctx context.Context, id string) (*Run, error) {
	data, err := s.runs.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &run, nil
}

// ListRuns returns all runs, oldest first.
func (s *KV) ListRuns(ctx context.Context) ([]*Run, error) {
	keys, err := s.runs.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list run keys: %w", err)
	}

	runs := make([]*Run, 0, len(keys))
	for _, key := range keys {
		run, err := s.GetRun(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		runs = append(runs, run)
	}
	slices.SortFunc(runs, func(a, b *Run) int { return a.StartedAt.Compare(b.StartedAt) })
	return runs, nil
}

// Record stores an outcome. The concept is not needed here; the snapshot is
// not kept in KV.
func (s *KV) Record(ctx context.Context, runID string, _ *graph.Concept, out *remodel.Outcome) error {
	rec := NewOutcomeRecord(runID, out)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := s.outcomes.Put(ctx, outcomeKey(runID, rec.ConceptID), data); err != nil {
		return fmt.Errorf("store outcome: %w", err)
	}
	return nil
}

// GetOutcome retrieves the outcome of one concept in one run.
func (s *KV) GetOutcome(ctx context.Context, runID, conceptID string) (*OutcomeRecord, error) {
	data, err := s.outcomes.Get(ctx, outcomeKey(runID, conceptID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get outcome: %w", err)
	}

	var rec OutcomeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return &rec, nil
}

// ListOutcomes returns the outcomes of one run ordered by concept.
func (s *KV) ListOutcomes(ctx context.Context, runID string) ([]*OutcomeRecord, error) {
	keys, err := s.outcomes.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list outcome keys: %w", err)
	}

	prefix := runID + "."
	var out []*OutcomeRecord
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		data, err := s.outcomes.Get(ctx, key)
		if err != nil {
			continue
		}
		var rec OutcomeRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	slices.SortFunc(out, func(a, b *OutcomeRecord) int { return strings.Compare(a.ConceptID, b.ConceptID) })
	return out, nil
}
