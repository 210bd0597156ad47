package group

import "github.com/c360studio/semremodel/graph"

// Clone deep-copies a group list.
func Clone(groups []*Group) []*Group {
	out := make([]*Group, len(groups))
	for i, g := range groups {
		out[i] = g.Clone()
	}
	return out
}

// Pad appends empty trial groups until the list has at least n entries.
func Pad(groups []*Group, n int) []*Group {
	for len(groups) < n {
		groups = append(groups, &Group{id: len(groups), trial: true})
	}
	return groups
}

// ShuffleDown renumbers non-empty grouped groups contiguously from 1,
// preserving group 0 and the relative order of the rest, then pads the list
// with empty groups to MinGroups entries. Empty groups are legal
// placeholders that keep template indices aligned.
func ShuffleDown(groups []*Group) []*Group {
	var zero *Group
	if len(groups) > 0 && groups[0].id == 0 {
		zero = groups[0]
		groups = groups[1:]
	} else {
		zero = &Group{id: 0, trial: true}
	}

	out := []*Group{zero}
	for _, g := range groups {
		if g.IsEmpty() {
			continue
		}
		g.SetID(len(out))
		out = append(out, g)
	}
	return Pad(out, MinGroups)
}

// DemoteSingletons moves the sole member of every non-zero singleton group
// into group 0 and returns the moved relationships. Group 0 must be groups[0].
func DemoteSingletons(groups []*Group) []*graph.Relationship {
	if len(groups) == 0 {
		return nil
	}
	var moved []*graph.Relationship
	for _, g := range groups[1:] {
		if g.State() != Singleton {
			continue
		}
		r := g.Clear()[0]
		if groups[0].ContainsRelationship(r) {
			// group 0 already asserts it; dropping the copy keeps the
			// per-group duplicate invariant.
			moved = append(moved, r)
			continue
		}
		groups[0].Add(r)
		moved = append(moved, r)
	}
	return moved
}

// Relationships flattens a group list.
func Relationships(groups []*Group) []*graph.Relationship {
	var out []*graph.Relationship
	for _, g := range groups {
		out = append(out, g.relationships...)
	}
	return out
}
