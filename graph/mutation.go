package graph

import (
	"fmt"
	"slices"
)

// MutationKind identifies one change to a concept's relationships.
type MutationKind string

const (
	// MutationAdd creates a new stated relationship.
	MutationAdd MutationKind = "add"
	// MutationReassign moves an existing relationship to another group.
	MutationReassign MutationKind = "reassign"
	// MutationDeactivate inactivates a persisted relationship.
	MutationDeactivate MutationKind = "deactivate"
	// MutationRemove detaches a relationship that was never persisted.
	MutationRemove MutationKind = "remove"
)

// Mutation is one planned change. For MutationAdd, Relationship is the new
// candidate; for every other kind it is the live relationship being changed.
type Mutation struct {
	Kind         MutationKind
	Relationship *Relationship
	FromGroup    int
	ToGroup      int
}

// String renders the mutation for audit output.
func (m Mutation) String() string {
	r := m.Relationship
	switch m.Kind {
	case MutationAdd:
		return fmt.Sprintf("add %s -> %s in group %d", r.Type, r.Target, m.ToGroup)
	case MutationReassign:
		return fmt.Sprintf("move %s -> %s from group %d to %d", r.Type, r.Target, m.FromGroup, m.ToGroup)
	default:
		return fmt.Sprintf("%s %s -> %s in group %d", m.Kind, r.Type, r.Target, m.FromGroup)
	}
}

// Apply commits a mutation list for one concept. The whole list is validated
// against the resulting state first; nothing is changed when validation fails,
// so a concept is either fully updated or left as it was.
func (s *Store) Apply(c *Concept, mutations []Mutation) error {
	if err := s.check(c, mutations); err != nil {
		return err
	}
	for _, m := range mutations {
		var err error
		switch m.Kind {
		case MutationAdd:
			m.Relationship.Source = c
			m.Relationship.GroupID = m.ToGroup
			err = s.addUnchecked(m.Relationship)
		case MutationReassign:
			m.Relationship.GroupID = m.ToGroup
		case MutationDeactivate:
			err = s.Deactivate(m.Relationship)
		case MutationRemove:
			err = s.RemoveRelationship(m.Relationship)
		}
		if err != nil {
			// check() accepted the list, so this is a defect.
			return fmt.Errorf("apply %s to %s: %w", m, c.ID, err)
		}
	}
	return nil
}

// addUnchecked appends a candidate whose duplicate check already ran as part
// of the whole-list validation.
func (s *Store) addUnchecked(r *Relationship) error {
	if err := s.checkEndpoints(r); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = s.newID()
	}
	r.Active = true
	r.origin = nil
	r.Source.relationships = append(r.Source.relationships, r)
	if r.IsHierarchy() {
		s.children[r.Target.ID] = append(s.children[r.Target.ID], r)
	}
	return nil
}

type slot struct {
	char   CharacteristicType
	group  int
	typeID string
	target string
}

// check simulates the mutation list and verifies the duplicate-free-per-group
// invariant on every characteristic type the list touches.
func (s *Store) check(c *Concept, mutations []Mutation) error {
	type state struct {
		group  int
		active bool
	}
	planned := make(map[*Relationship]state)
	touched := make(map[CharacteristicType]bool)
	var added []Mutation

	for _, m := range mutations {
		r := m.Relationship
		if r == nil || r.Type == nil || r.Target == nil {
			return fmt.Errorf("%w: %s mutation without relationship", ErrInvariant, m.Kind)
		}
		if m.ToGroup < 0 {
			return fmt.Errorf("%w: negative group %d", ErrInvariant, m.ToGroup)
		}
		touched[r.Characteristic] = true
		if m.Kind == MutationAdd {
			if slices.Contains(c.relationships, r) {
				return fmt.Errorf("%w: %s is already attached to %s", ErrInvariant, r, c.ID)
			}
			added = append(added, m)
			continue
		}
		if !owns(c, r) {
			return fmt.Errorf("%w: %s is not attached to %s", ErrInvariant, r, c.ID)
		}
		if _, seen := planned[r]; seen {
			return fmt.Errorf("%w: %s mutated twice", ErrInvariant, r)
		}
		switch m.Kind {
		case MutationReassign:
			planned[r] = state{group: m.ToGroup, active: r.Active}
		case MutationDeactivate, MutationRemove:
			if m.Kind == MutationRemove && r.ID != "" {
				return fmt.Errorf("%w: persisted relationship %s must be deactivated", ErrInvariant, r.ID)
			}
			planned[r] = state{group: r.GroupID, active: false}
		default:
			return fmt.Errorf("%w: unknown mutation kind %q", ErrInvariant, m.Kind)
		}
	}

	seen := make(map[slot]bool)
	claim := func(char CharacteristicType, group int, r *Relationship) error {
		if !touched[char] {
			return nil
		}
		k := slot{char: char, group: group, typeID: r.Type.ID, target: r.Target.ID}
		if seen[k] {
			return fmt.Errorf("%w: duplicate %s -> %s in %s group %d of %s",
				ErrInvariant, r.Type.ID, r.Target.ID, char, group, c.ID)
		}
		seen[k] = true
		return nil
	}

	for _, r := range c.relationships {
		st, ok := planned[r]
		if !ok {
			st = state{group: r.GroupID, active: r.Active}
		}
		if !st.active {
			continue
		}
		if err := claim(r.Characteristic, st.group, r); err != nil {
			return err
		}
	}
	for _, m := range added {
		if err := claim(m.Relationship.Characteristic, m.ToGroup, m.Relationship); err != nil {
			return err
		}
	}
	return nil
}
