// Package graph holds the in-memory terminology snapshot: concepts, their
// stated and inferred relationships, and the transitive closure over the
// IS-A hierarchy used for subsumption tests.
//
// All query methods are pure reads. Mutation methods are only called by the
// remodeling engine's commit step and reject any change that would leave two
// active relationships with the same (type, target) pair in one group.
package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// CharacteristicType distinguishes authored relationships from classifier output.
type CharacteristicType int

const (
	// Stated relationships are authored directly for a concept.
	Stated CharacteristicType = iota
	// Inferred relationships are computed by the classifier.
	Inferred
)

// String returns the lower-case name of the characteristic type.
func (c CharacteristicType) String() string {
	switch c {
	case Stated:
		return "stated"
	case Inferred:
		return "inferred"
	default:
		return fmt.Sprintf("characteristic(%d)", int(c))
	}
}

// ParseCharacteristic parses "stated" or "inferred" (case-insensitive).
func ParseCharacteristic(s string) (CharacteristicType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stated", "":
		return Stated, nil
	case "inferred":
		return Inferred, nil
	default:
		return Stated, fmt.Errorf("unknown characteristic type: %q", s)
	}
}

// DefinitionStatus records whether a concept is sufficiently defined.
type DefinitionStatus int

const (
	Primitive DefinitionStatus = iota
	FullyDefined
)

// String returns the lower-case name of the definition status.
func (d DefinitionStatus) String() string {
	if d == FullyDefined {
		return "fully-defined"
	}
	return "primitive"
}

// ParseDefinitionStatus parses "primitive" or "fully-defined".
func ParseDefinitionStatus(s string) (DefinitionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primitive", "":
		return Primitive, nil
	case "fully-defined", "fully_defined", "defined", "sufficiently-defined":
		return FullyDefined, nil
	default:
		return Primitive, fmt.Errorf("unknown definition status: %q", s)
	}
}

// Description is a human-readable term attached to a concept.
type Description struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Term   string `json:"term" yaml:"term"`
	Active bool   `json:"active" yaml:"active"`
}

// Concept is a node of the terminology. It owns its relationships; they are
// reachable only through the query methods so the store stays the single
// writer.
type Concept struct {
	ID               string
	Label            string
	Active           bool
	DefinitionStatus DefinitionStatus
	Descriptions     []Description

	relationships []*Relationship
}

// NewConcept creates an active, primitive concept.
func NewConcept(id, label string) *Concept {
	return &Concept{
		ID:     id,
		Label:  label,
		Active: true,
	}
}

// String renders the concept as "id |label|".
func (c *Concept) String() string {
	if c == nil {
		return "<nil>"
	}
	if c.Label == "" || c.Label == c.ID {
		return c.ID
	}
	return c.ID + " |" + c.Label + "|"
}

// Relationships returns the relationships matching the filter, in load order.
// The returned slice is a copy; the relationships themselves are shared.
func (c *Concept) Relationships(f Filter) []*Relationship {
	var out []*Relationship
	for _, r := range c.relationships {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// MaxGroupID returns the largest group identifier among matching relationships.
func (c *Concept) MaxGroupID(f Filter) int {
	maxID := 0
	for _, r := range c.Relationships(f) {
		if r.GroupID > maxID {
			maxID = r.GroupID
		}
	}
	return maxID
}

// CompareConcepts orders concepts by label, then identifier.
func CompareConcepts(a, b *Concept) int {
	if c := cmp.Compare(a.Label, b.Label); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortConcepts sorts concepts alphabetically by label, breaking ties on ID.
func SortConcepts(concepts []*Concept) {
	slices.SortStableFunc(concepts, CompareConcepts)
}
