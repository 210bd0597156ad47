// Package storage loads terminology snapshots into a graph.Store and keeps
// a durable record of remodel runs.
//
// Snapshots come from YAML fixture files or a SQLite database. Run history
// goes to SQLite or to NATS KV buckets.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/remodel"
)

// ConceptRecord is the serialized form of a concept.
type ConceptRecord struct {
	ID               string              `json:"id" yaml:"id"`
	Label            string              `json:"label,omitempty" yaml:"label,omitempty"`
	Inactive         bool                `json:"inactive,omitempty" yaml:"inactive,omitempty"`
	DefinitionStatus string              `json:"definition_status,omitempty" yaml:"definition_status,omitempty"`
	Descriptions     []graph.Description `json:"descriptions,omitempty" yaml:"descriptions,omitempty"`
}

// RelationshipRecord is the serialized form of a relationship.
type RelationshipRecord struct {
	ID             string `json:"id,omitempty" yaml:"id,omitempty"`
	Source         string `json:"source" yaml:"source"`
	Type           string `json:"type" yaml:"type"`
	Target         string `json:"target" yaml:"target"`
	Group          int    `json:"group,omitempty" yaml:"group,omitempty"`
	Characteristic string `json:"characteristic,omitempty" yaml:"characteristic,omitempty"`
	Inactive       bool   `json:"inactive,omitempty" yaml:"inactive,omitempty"`
}

// Build creates a store from records. Every problem is reported, not only
// the first.
func Build(concepts []ConceptRecord, rels []RelationshipRecord, opts ...graph.StoreOption) (*graph.Store, error) {
	store := graph.NewStore(opts...)
	var errs []error

	for _, cr := range concepts {
		if cr.ID == "" {
			errs = append(errs, errors.New("concept without id"))
			continue
		}
		c := graph.NewConcept(cr.ID, cr.Label)
		if c.Label == "" {
			c.Label = cr.ID
		}
		c.Active = !cr.Inactive
		c.Descriptions = cr.Descriptions
		status, err := graph.ParseDefinitionStatus(cr.DefinitionStatus)
		if err != nil {
			errs = append(errs, fmt.Errorf("concept %s: %w", cr.ID, err))
		}
		c.DefinitionStatus = status
		if err := store.AddConcept(c); err != nil {
			errs = append(errs, err)
		}
	}

	for i, rr := range rels {
		r, err := relationship(store, rr)
		if err != nil {
			errs = append(errs, fmt.Errorf("relationship %d (%s): %w", i, rr.ID, err))
			continue
		}
		if err := store.LoadRelationship(r); err != nil {
			errs = append(errs, fmt.Errorf("relationship %d (%s): %w", i, rr.ID, err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("build snapshot: %w", errors.Join(errs...))
	}
	return store, nil
}

func relationship(store *graph.Store, rr RelationshipRecord) (*graph.Relationship, error) {
	var missing []string
	lookup := func(id string) *graph.Concept {
		c, ok := store.Concept(id)
		if !ok {
			missing = append(missing, id)
		}
		return c
	}
	source, typ, target := lookup(rr.Source), lookup(rr.Type), lookup(rr.Target)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", graph.ErrUnknownConcept, strings.Join(missing, ", "))
	}
	if rr.Group < 0 {
		return nil, fmt.Errorf("negative group %d", rr.Group)
	}
	char, err := graph.ParseCharacteristic(rr.Characteristic)
	if err != nil {
		return nil, err
	}
	r := graph.NewRelationship(source, typ, target, rr.Group, char)
	r.ID = rr.ID
	r.Active = !rr.Inactive
	return r, nil
}

// Records flattens a store into records, concepts ordered by identifier and
// relationships in load order per concept.
func Records(store *graph.Store) ([]ConceptRecord, []RelationshipRecord) {
	var concepts []ConceptRecord
	var rels []RelationshipRecord
	for _, c := range store.Concepts() {
		concepts = append(concepts, conceptRecord(c))
		rels = append(rels, relationshipRecords(c)...)
	}
	return concepts, rels
}

func conceptRecord(c *graph.Concept) ConceptRecord {
	cr := ConceptRecord{
		ID:           c.ID,
		Inactive:     !c.Active,
		Descriptions: c.Descriptions,
	}
	if c.Label != c.ID {
		cr.Label = c.Label
	}
	if c.DefinitionStatus == graph.FullyDefined {
		cr.DefinitionStatus = c.DefinitionStatus.String()
	}
	return cr
}

func relationshipRecords(c *graph.Concept) []RelationshipRecord {
	var out []RelationshipRecord
	for _, r := range c.Relationships(graph.All()) {
		out = append(out, RelationshipRecord{
			ID:             r.ID,
			Source:         c.ID,
			Type:           r.Type.ID,
			Target:         r.Target.ID,
			Group:          r.GroupID,
			Characteristic: r.Characteristic.String(),
			Inactive:       !r.Active,
		})
	}
	return out
}

// Run summarizes one batch for the history.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Concepts   int        `json:"concepts"`
	Changed    int        `json:"changed"`
	Unchanged  int        `json:"unchanged"`
	Rejected   int        `json:"rejected"`
	Mutations  int        `json:"mutations"`
}

// NewRunID generates a unique run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// MutationRecord is the serialized form of one committed mutation.
type MutationRecord struct {
	Kind           string `json:"kind"`
	RelationshipID string `json:"relationship_id,omitempty"`
	Type           string `json:"type"`
	Target         string `json:"target"`
	FromGroup      int    `json:"from_group"`
	ToGroup        int    `json:"to_group"`
}

// OutcomeRecord is the serialized form of one remodel outcome.
type OutcomeRecord struct {
	RunID         string           `json:"run_id"`
	ConceptID     string           `json:"concept_id"`
	Template      string           `json:"template"`
	Status        string           `json:"status"`
	FailureKind   string           `json:"failure_kind,omitempty"`
	FailureDetail string           `json:"failure_detail,omitempty"`
	Before        string           `json:"before,omitempty"`
	After         string           `json:"after,omitempty"`
	Mutations     []MutationRecord `json:"mutations,omitempty"`
	RecordedAt    time.Time        `json:"recorded_at"`
}

// NewOutcomeRecord captures an outcome for the history.
func NewOutcomeRecord(runID string, out *remodel.Outcome) OutcomeRecord {
	rec := OutcomeRecord{
		RunID:      runID,
		ConceptID:  out.ConceptID,
		Template:   out.Template,
		Status:     out.Status.String(),
		Before:     out.Before,
		After:      out.After,
		RecordedAt: time.Now(),
	}
	if out.Failure != nil {
		rec.FailureKind = string(out.Failure.Kind)
		rec.FailureDetail = out.Failure.Detail
	}
	if out.Status == remodel.Changed {
		for _, m := range out.Mutations {
			rec.Mutations = append(rec.Mutations, MutationRecord{
				Kind:           string(m.Kind),
				RelationshipID: m.Relationship.ID,
				Type:           m.Relationship.Type.ID,
				Target:         m.Relationship.Target.ID,
				FromGroup:      m.FromGroup,
				ToGroup:        m.ToGroup,
			})
		}
	}
	return rec
}
