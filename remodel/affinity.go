package remodel

import (
	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/group"
)

// affinity assigns each candidate to one of the slot groups, returning the
// chosen group index per candidate. Rules, in order:
//
//	a. the slot already states the candidate's value or a less specific one
//	b. the inferred form groups the candidate with something the slot states
//	c. the first free slot, candidates taken in alphabetical order
//
// Each slot takes at most one candidate. Rule c is a tie-break only.
func (a *attempt) affinity(slots []int, typ *graph.Concept, cands []*graph.Concept) []int {
	assigned := make([]int, len(cands))
	for i := range assigned {
		assigned[i] = -1
	}
	free := make(map[int]bool, len(slots))
	for _, ci := range slots {
		free[ci] = true
	}
	claim := func(i, ci int) {
		assigned[i] = ci
		free[ci] = false
	}

	for i, c := range cands {
		for _, ci := range slots {
			if free[ci] && a.statesAtOrAbove(a.groups[ci], typ, c) {
				claim(i, ci)
				break
			}
		}
	}

	for i, c := range cands {
		if assigned[i] >= 0 {
			continue
		}
		for _, ci := range slots {
			if free[ci] && !a.groups[ci].IsEmpty() && a.coGrouped(a.groups[ci], typ, c) {
				claim(i, ci)
				break
			}
		}
	}

	for i := range cands {
		if assigned[i] >= 0 {
			continue
		}
		for _, ci := range slots {
			if free[ci] {
				claim(i, ci)
				break
			}
		}
	}
	return assigned
}

// statesAtOrAbove reports whether g holds typ with the candidate value or an
// ancestor of it.
func (a *attempt) statesAtOrAbove(g *group.Group, typ, cand *graph.Concept) bool {
	for _, r := range g.OfType(typ) {
		if a.e.closure.Subsumes(r.Target, cand) {
			return true
		}
	}
	return false
}

// coGrouped reports whether some inferred group holds typ -> cand together
// with a relationship that one of g's members states, at the same or a less
// specific value.
func (a *attempt) coGrouped(g *group.Group, typ, cand *graph.Concept) bool {
	for _, x := range a.inferred {
		if x.GroupID == 0 || !x.HasTypeValue(typ, cand) {
			continue
		}
		for _, y := range a.inferred {
			if y == x || y.GroupID != x.GroupID {
				continue
			}
			for _, m := range g.OfType(y.Type) {
				if a.e.closure.Subsumes(m.Target, y.Target) {
					return true
				}
			}
		}
	}
	return false
}
