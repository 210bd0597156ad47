package graph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/c360studio/semremodel/vocabulary/snomed"
)

// Store is the authoritative in-memory holder of concepts and relationships.
//
// Store is not internally synchronized. Concurrent remodels are safe only when
// each invocation works on a different concept: queries read the concept map
// (never modified after loading) and mutations touch only the concept being
// committed.
type Store struct {
	concepts map[string]*Concept
	// incoming IS-A edges keyed by parent concept ID
	children map[string][]*Relationship
	newID    func() string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDGenerator overrides how identities are assigned to relationships
// created at commit time. The default generates random UUIDs.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		s.newID = fn
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		concepts: make(map[string]*Concept),
		children: make(map[string][]*Relationship),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddConcept registers a concept. Loading the same identifier twice is an error.
func (s *Store) AddConcept(c *Concept) error {
	if _, exists := s.concepts[c.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConcept, c.ID)
	}
	s.concepts[c.ID] = c
	return nil
}

// Concept looks up a concept by identifier.
func (s *Store) Concept(id string) (*Concept, bool) {
	c, ok := s.concepts[id]
	return c, ok
}

// Concepts returns all concepts ordered by identifier.
func (s *Store) Concepts() []*Concept {
	out := make([]*Concept, 0, len(s.concepts))
	for _, c := range s.concepts {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Concept) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of concepts.
func (s *Store) Len() int {
	return len(s.concepts)
}

// LoadRelationship attaches a relationship read from snapshot data. Input may
// contain duplicates; no group invariant is checked here.
func (s *Store) LoadRelationship(r *Relationship) error {
	if err := s.checkEndpoints(r); err != nil {
		return err
	}
	r.Source.relationships = append(r.Source.relationships, r)
	if r.IsHierarchy() {
		s.children[r.Target.ID] = append(s.children[r.Target.ID], r)
	}
	return nil
}

// Parents returns the active IS-A parents of a concept.
func (s *Store) Parents(c *Concept, char CharacteristicType) []*Concept {
	var out []*Concept
	for _, r := range c.Relationships(Select(char).OfTypeID(snomed.IsA)) {
		out = append(out, r.Target)
	}
	return out
}

// Children returns the concepts with an active IS-A edge to c.
func (s *Store) Children(c *Concept, char CharacteristicType) []*Concept {
	var out []*Concept
	for _, r := range s.children[c.ID] {
		if r.Active && r.Characteristic == char {
			out = append(out, r.Source)
		}
	}
	return out
}

// AddRelationship attaches a new active relationship to its source concept,
// assigning an identity when it has none.
func (s *Store) AddRelationship(r *Relationship) error {
	if err := s.checkEndpoints(r); err != nil {
		return err
	}
	r.Active = true
	if dup := findDuplicate(r.Source.relationships, r, r.GroupID); dup != nil {
		return fmt.Errorf("%w: add %s duplicates %s on %s", ErrInvariant, r, dup, r.Source.ID)
	}
	return s.addUnchecked(r)
}

// SetGroup moves a relationship to another group.
func (s *Store) SetGroup(r *Relationship, groupID int) error {
	if groupID < 0 {
		return fmt.Errorf("%w: negative group %d for %s", ErrInvariant, groupID, r)
	}
	if !owns(r.Source, r) {
		return fmt.Errorf("%w: %s is not attached to %s", ErrInvariant, r, r.Source.ID)
	}
	if r.Active {
		if dup := findDuplicate(r.Source.relationships, r, groupID); dup != nil {
			return fmt.Errorf("%w: regroup %s duplicates %s", ErrInvariant, r, dup)
		}
	}
	r.GroupID = groupID
	return nil
}

// Deactivate marks a persisted relationship inactive. Inactivation is a state
// change; the relationship stays attached.
func (s *Store) Deactivate(r *Relationship) error {
	if !owns(r.Source, r) {
		return fmt.Errorf("%w: %s is not attached to %s", ErrInvariant, r, r.Source.ID)
	}
	r.Active = false
	return nil
}

// RemoveRelationship detaches a relationship that was never persisted.
func (s *Store) RemoveRelationship(r *Relationship) error {
	if r.ID != "" {
		return fmt.Errorf("%w: persisted relationship %s must be deactivated, not removed", ErrInvariant, r.ID)
	}
	idx := slices.Index(r.Source.relationships, r)
	if idx < 0 {
		return fmt.Errorf("%w: %s is not attached to %s", ErrInvariant, r, r.Source.ID)
	}
	r.Source.relationships = slices.Delete(r.Source.relationships, idx, idx+1)
	if r.IsHierarchy() {
		kids := s.children[r.Target.ID]
		if i := slices.Index(kids, r); i >= 0 {
			s.children[r.Target.ID] = slices.Delete(kids, i, i+1)
		}
	}
	return nil
}

func (s *Store) checkEndpoints(r *Relationship) error {
	if r.Source == nil || r.Type == nil || r.Target == nil {
		return fmt.Errorf("%w: relationship with nil endpoint", ErrInvariant)
	}
	if _, ok := s.concepts[r.Source.ID]; !ok {
		return fmt.Errorf("%w: source %s", ErrUnknownConcept, r.Source.ID)
	}
	return nil
}

func owns(c *Concept, r *Relationship) bool {
	return slices.Contains(c.relationships, r)
}

// findDuplicate returns an active relationship other than r with the same
// characteristic, group, type and target.
func findDuplicate(rels []*Relationship, r *Relationship, groupID int) *Relationship {
	for _, o := range rels {
		if o == r || !o.Active || o.Characteristic != r.Characteristic {
			continue
		}
		if o.GroupID == groupID && o.SameTypeValue(r) {
			return o
		}
	}
	return nil
}
