package graph

// ActiveState selects relationships by activation flag.
type ActiveState int

const (
	ActiveOnly ActiveState = iota
	InactiveOnly
	AnyState
)

// AnyGroup disables group filtering.
const AnyGroup = -1

// Filter selects a subset of a concept's relationships. Build one with
// Select and narrow it with the chained methods:
//
//	graph.Select(graph.Inferred).OfType(findingSite).InGroup(1)
type Filter struct {
	characteristic CharacteristicType
	anyChar        bool
	state          ActiveState
	typeID         string
	targetID       string
	group          int
	skipTypeID     string
}

// Select returns a filter for active relationships of one characteristic type
// in any group.
func Select(char CharacteristicType) Filter {
	return Filter{characteristic: char, state: ActiveOnly, group: AnyGroup}
}

// All returns a filter matching every relationship regardless of state.
func All() Filter {
	return Filter{anyChar: true, state: AnyState, group: AnyGroup}
}

// WithState replaces the activation filter.
func (f Filter) WithState(s ActiveState) Filter {
	f.state = s
	return f
}

// OfType restricts to one relationship type.
func (f Filter) OfType(t *Concept) Filter {
	f.typeID = t.ID
	return f
}

// OfTypeID restricts to one relationship type identifier.
func (f Filter) OfTypeID(id string) Filter {
	f.typeID = id
	return f
}

// WithTarget restricts to one target concept.
func (f Filter) WithTarget(t *Concept) Filter {
	f.targetID = t.ID
	return f
}

// InGroup restricts to one group identifier.
func (f Filter) InGroup(g int) Filter {
	f.group = g
	return f
}

// ExcludingType drops relationships of the given type identifier.
func (f Filter) ExcludingType(typeID string) Filter {
	f.skipTypeID = typeID
	return f
}

func (f Filter) matches(r *Relationship) bool {
	if !f.anyChar && r.Characteristic != f.characteristic {
		return false
	}
	switch f.state {
	case ActiveOnly:
		if !r.Active {
			return false
		}
	case InactiveOnly:
		if r.Active {
			return false
		}
	}
	if f.typeID != "" && r.Type.ID != f.typeID {
		return false
	}
	if f.targetID != "" && r.Target.ID != f.targetID {
		return false
	}
	if f.group != AnyGroup && r.GroupID != f.group {
		return false
	}
	if f.skipTypeID != "" && r.Type.ID == f.skipTypeID {
		return false
	}
	return true
}
