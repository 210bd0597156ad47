// Package group models relationship groups as mutable scratch state for one
// remodeling attempt. Groups are cloned from a concept's live relationships,
// edited freely, and either diffed into a mutation list or discarded.
package group

import (
	"fmt"
	"slices"
	"strings"

	"github.com/c360studio/semremodel/graph"
)

// MinGroups is the smallest group list ShuffleDown and Pad return: group 0
// plus two grouped slots, so template indices 1 and 2 can always be addressed.
const MinGroups = 3

// State classifies a group by size.
type State int

const (
	Empty State = iota
	Singleton
	Populated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Singleton:
		return "singleton"
	default:
		return "populated"
	}
}

// Subsumer answers "is a the same as or an ancestor of b".
// *graph.Closure implements it.
type Subsumer interface {
	Subsumes(a, b *graph.Concept) bool
}

// Group is an ordered bag of relationships sharing a group identifier.
// Group 0 holds ungrouped relationships.
type Group struct {
	id            int
	relationships []*graph.Relationship
	trial         bool
}

// New creates a group holding the given relationships. Their GroupID fields
// are set to id.
func New(id int, rels ...*graph.Relationship) *Group {
	g := &Group{id: id}
	for _, r := range rels {
		g.Add(r)
	}
	return g
}

// FromRelationships groups relationships by GroupID into 0..max(GroupID),
// padded with empty groups to at least minCount entries, and returns trial
// clones of those groups. The relationships themselves are not modified.
func FromRelationships(rels []*graph.Relationship, minCount int) []*Group {
	maxID := 0
	for _, r := range rels {
		maxID = max(maxID, r.GroupID)
	}
	live := make([]*Group, max(maxID+1, minCount))
	for i := range live {
		live[i] = &Group{id: i}
	}
	for _, r := range rels {
		live[r.GroupID].relationships = append(live[r.GroupID].relationships, r)
	}
	return Clone(live)
}

// ID returns the group identifier.
func (g *Group) ID() int {
	return g.id
}

// SetID renumbers the group and every relationship in it.
func (g *Group) SetID(id int) {
	g.id = id
	for _, r := range g.relationships {
		r.GroupID = id
	}
}

// IsTrial reports whether the group was produced by Clone or FromRelationships.
func (g *Group) IsTrial() bool {
	return g.trial
}

// Relationships returns the members in insertion order.
func (g *Group) Relationships() []*graph.Relationship {
	return slices.Clone(g.relationships)
}

// Len returns the number of members.
func (g *Group) Len() int {
	return len(g.relationships)
}

// IsEmpty reports whether the group has no members.
func (g *Group) IsEmpty() bool {
	return len(g.relationships) == 0
}

// State classifies the group as empty, singleton or populated.
func (g *Group) State() State {
	switch len(g.relationships) {
	case 0:
		return Empty
	case 1:
		return Singleton
	default:
		return Populated
	}
}

// Add appends a relationship and sets its GroupID.
func (g *Group) Add(r *graph.Relationship) {
	r.GroupID = g.id
	g.relationships = append(g.relationships, r)
}

// Remove drops a member by identity. It reports whether the member was found.
func (g *Group) Remove(r *graph.Relationship) bool {
	idx := slices.Index(g.relationships, r)
	if idx < 0 {
		return false
	}
	g.relationships = slices.Delete(g.relationships, idx, idx+1)
	return true
}

// RemoveFunc drops every member matching fn and returns them.
func (g *Group) RemoveFunc(fn func(*graph.Relationship) bool) []*graph.Relationship {
	var removed []*graph.Relationship
	kept := g.relationships[:0]
	for _, r := range g.relationships {
		if fn(r) {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	clear(g.relationships[len(kept):])
	g.relationships = kept
	return removed
}

// Clear empties the group and returns its former members.
func (g *Group) Clear() []*graph.Relationship {
	out := g.relationships
	g.relationships = nil
	return out
}

// Clone deep-copies the group. The copy is trial state and its members point
// back at the originals through Relationship.Origin.
func (g *Group) Clone() *Group {
	c := &Group{id: g.id, trial: true}
	c.relationships = make([]*graph.Relationship, len(g.relationships))
	for i, r := range g.relationships {
		c.relationships[i] = r.Clone()
	}
	return c
}

// Find returns the member with the given type and target, if any.
func (g *Group) Find(typ, target *graph.Concept) *graph.Relationship {
	for _, r := range g.relationships {
		if r.HasTypeValue(typ, target) {
			return r
		}
	}
	return nil
}

// OfType returns the members with the given type.
func (g *Group) OfType(typ *graph.Concept) []*graph.Relationship {
	var out []*graph.Relationship
	for _, r := range g.relationships {
		if r.Type.ID == typ.ID {
			out = append(out, r)
		}
	}
	return out
}

// ContainsType reports whether any member has the given type.
func (g *Group) ContainsType(typ *graph.Concept) bool {
	return len(g.OfType(typ)) > 0
}

// ContainsTypeValue reports whether a member of the given type has a target
// that is one of values or is subsumed by one of them. Adding any of values
// to the group would then be redundant.
func (g *Group) ContainsTypeValue(typ *graph.Concept, values []*graph.Concept, s Subsumer) bool {
	for _, r := range g.OfType(typ) {
		for _, v := range values {
			if r.Target.ID == v.ID || (s != nil && s.Subsumes(v, r.Target)) {
				return true
			}
		}
	}
	return false
}

// ContainsRelationship reports whether a member has the same type and target
// as r.
func (g *Group) ContainsRelationship(r *graph.Relationship) bool {
	return g.Find(r.Type, r.Target) != nil
}

// String renders the group as "{type=target, ...}".
func (g *Group) String() string {
	parts := make([]string, len(g.relationships))
	for i, r := range g.relationships {
		parts[i] = r.Type.ID + "=" + r.Target.ID
	}
	return fmt.Sprintf("%d{%s}", g.id, strings.Join(parts, ", "))
}
