package remodel

import (
	"slices"
	"strings"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/group"
	"github.com/c360studio/semremodel/template"
)

// satisfy walks the template attributes group by group (step 6).
func (a *attempt) satisfy() error {
	for ti := 0; ti < a.tmpl.Len(); ti++ {
		tg := a.tmpl.Group(ti)
		for _, attr := range a.splitsFirst(tg) {
			if attr.IsFixed() {
				a.satisfyFixed(ti, tg, attr)
				continue
			}
			if err := a.satisfyOpen(ti, tg, attr); err != nil {
				return err
			}
		}
	}
	return nil
}

// splitsFirst orders a template group's attributes so the ones with two or
// more disjoint inferred values come first. Attributes placed after a split
// then reach every group the split formed.
func (a *attempt) splitsFirst(tg template.AttributeGroup) []template.Attribute {
	var splits, rest []template.Attribute
	for _, attr := range tg.Attributes {
		if !attr.IsFixed() && len(a.candidates(attr.Type)) > 1 {
			splits = append(splits, attr)
		} else {
			rest = append(rest, attr)
		}
	}
	return append(splits, rest...)
}

// satisfyFixed places a template-specified constant. Ungrouped constants
// always apply. Grouped ones apply to required groups, to optional groups the
// concept already populates, and wherever the concept still asserts the value.
func (a *attempt) satisfyFixed(ti int, tg template.AttributeGroup, attr template.Attribute) {
	for _, ci := range a.slots(ti) {
		if ti > 0 && tg.Cardinality.Optional() && a.groups[ci].IsEmpty() && !a.asserts(attr.Type, attr.Value) {
			continue
		}
		a.place(ci, attr.Type, attr.Value, true)
	}
}

// asserts reports whether a stated relationship taken out of the groups, or
// the inferred form, holds typ with value or a more specific one.
func (a *attempt) asserts(typ, value *graph.Concept) bool {
	for _, r := range slices.Concat(a.pool, a.inferred) {
		if r.Type.ID == typ.ID && a.e.closure.Subsumes(value, r.Target) {
			return true
		}
	}
	return false
}

func (a *attempt) satisfyOpen(ti int, tg template.AttributeGroup, attr template.Attribute) error {
	cands := a.candidates(attr.Type)
	switch {
	case len(cands) == 0:
		return nil
	case len(cands) > 2:
		ids := make([]string, len(cands))
		for i, c := range cands {
			ids[i] = c.ID
		}
		return fail(KindTooManyCandidates, "%s has %d disjoint inferred values: %s",
			attr.Type, len(cands), strings.Join(ids, ", "))
	case ti == 0:
		for _, c := range cands {
			a.place(0, attr.Type, c, false)
		}
		return nil
	case len(cands) == 1:
		for _, ci := range a.slots(ti) {
			a.place(ci, attr.Type, cands[0], false)
		}
		return nil
	default:
		return a.split(ti, tg, attr.Type, cands)
	}
}

// candidates returns the most specific inferred values of a type, in
// alphabetical order.
func (a *attempt) candidates(typ *graph.Concept) []*graph.Concept {
	var values []*graph.Concept
	for _, r := range a.inferred {
		if r.Type.ID == typ.ID {
			values = append(values, r.Target)
		}
	}
	if len(values) == 0 {
		return nil
	}
	values = a.e.closure.MostSpecific(values)
	graph.SortConcepts(values)
	return values
}

// split distributes two disjoint values across the concept groups of one
// template group, forming an additional group when needed.
func (a *attempt) split(ti int, tg template.AttributeGroup, typ *graph.Concept, cands []*graph.Concept) error {
	slots := a.slots(ti)
	for len(slots) < len(cands) {
		if !tg.Cardinality.AllowsAdditional() {
			return fail(KindGroupBudgetExceeded, "%s needs %d groups but template group %d allows %s",
				typ, len(cands), ti, tg.Cardinality)
		}
		if limit := a.e.maxAdditional; limit > 0 && a.formed >= limit {
			return fail(KindGroupBudgetExceeded, "%s needs another group but %d additional groups were already formed",
				typ, a.formed)
		}
		ci := a.additionalGroup(ti)
		a.formed++
		a.note("formed additional group %d from template group %d", ci, ti)
		slots = append(slots, ci)
	}

	assigned := a.affinity(slots, typ, cands)
	for i, c := range cands {
		if assigned[i] <= 0 {
			return fail(KindGroupZeroLanding, "%s -> %s from template group %d", typ, c, ti)
		}
		a.place(assigned[i], typ, c, false)
	}
	return nil
}

// place ensures group ci holds typ -> target, unless it already holds that
// value or a more specific one. An existing relationship is reused before a
// new one is created.
func (a *attempt) place(ci int, typ, target *graph.Concept, constant bool) {
	g := a.groups[ci]
	values := []*graph.Concept{target}
	if ci == 0 {
		for _, other := range a.groups {
			if other.ContainsTypeValue(typ, values, a.e.closure) {
				return
			}
		}
	} else if g.ContainsTypeValue(typ, values, a.e.closure) {
		return
	}

	r := a.take(typ, target, ci)
	g.Add(r)
	a.changed = true
	switch o := r.Origin(); {
	case o != nil && o.GroupID != ci:
		a.note("moved %s -> %s from group %d to group %d", typ, target, o.GroupID, ci)
	case o != nil:
		a.note("restored %s -> %s in group %d", typ, target, ci)
	case constant:
		a.note("added template-specified constant %s -> %s to group %d", typ, target, ci)
	default:
		a.note("added inferred %s -> %s to group %d", typ, target, ci)
	}
	a.pruneLessSpecific(g, r)
}

// take finds a relationship to place in group ci: a pooled one, one moved
// out of group 0, or a new candidate.
func (a *attempt) take(typ, target *graph.Concept, ci int) *graph.Relationship {
	for i, p := range a.pool {
		if p.HasTypeValue(typ, target) {
			a.pool = append(a.pool[:i], a.pool[i+1:]...)
			return p
		}
	}
	if ci != 0 {
		if r := a.groups[0].Find(typ, target); r != nil {
			a.groups[0].Remove(r)
			return r
		}
	}
	return graph.NewRelationship(a.concept, typ, target, ci, graph.Stated)
}

// pruneLessSpecific drops same-type relationships in g whose target is a
// proper ancestor of keep's target.
func (a *attempt) pruneLessSpecific(g *group.Group, keep *graph.Relationship) {
	removed := g.RemoveFunc(func(r *graph.Relationship) bool {
		return r != keep && r.Type.ID == keep.Type.ID && a.e.closure.IsAncestorOf(r.Target, keep.Target)
	})
	for _, r := range removed {
		a.note("removed redundant %s -> %s from group %d, refined by %s", r.Type, r.Target, g.ID(), keep.Target)
	}
	a.pool = append(a.pool, removed...)
}
