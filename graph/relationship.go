package graph

import (
	"fmt"

	"github.com/c360studio/semremodel/vocabulary/snomed"
)

// Relationship is a directed, typed, grouped edge from a source concept.
// ID is empty until the relationship has been committed.
type Relationship struct {
	ID             string
	Source         *Concept
	Type           *Concept
	Target         *Concept
	GroupID        int
	Characteristic CharacteristicType
	Active         bool

	origin *Relationship
}

// NewRelationship creates an active, not-yet-persisted relationship.
func NewRelationship(source, typ, target *Concept, groupID int, char CharacteristicType) *Relationship {
	return &Relationship{
		Source:         source,
		Type:           typ,
		Target:         target,
		GroupID:        groupID,
		Characteristic: char,
		Active:         true,
	}
}

// Clone returns a trial copy. The copy remembers the live relationship it was
// taken from so the commit step can reuse its identity.
func (r *Relationship) Clone() *Relationship {
	c := *r
	if r.origin == nil {
		c.origin = r
	}
	return &c
}

// Origin returns the live relationship this trial copy was cloned from, or
// nil for a freshly created candidate.
func (r *Relationship) Origin() *Relationship {
	return r.origin
}

// SameTypeValue reports whether both relationships have the same type and target.
func (r *Relationship) SameTypeValue(o *Relationship) bool {
	return r.Type.ID == o.Type.ID && r.Target.ID == o.Target.ID
}

// HasTypeValue reports whether the relationship has the given type and target.
func (r *Relationship) HasTypeValue(typ, target *Concept) bool {
	return r.Type.ID == typ.ID && r.Target.ID == target.ID
}

// IsHierarchy reports whether this is an IS-A edge.
func (r *Relationship) IsHierarchy() bool {
	return r.Type != nil && r.Type.ID == snomed.IsA
}

// String renders the relationship as "[group] type -> target".
func (r *Relationship) String() string {
	return fmt.Sprintf("[%d] %s -> %s", r.GroupID, r.Type, r.Target)
}
