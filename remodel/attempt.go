package remodel

import (
	"fmt"
	"slices"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/group"
	"github.com/c360studio/semremodel/template"
	"github.com/c360studio/semremodel/vocabulary/snomed"
)

// attempt is the private scratch state of one remodel. Nothing in it is
// shared with other attempts or visible in the store until commit.
type attempt struct {
	e       *Engine
	concept *graph.Concept
	tmpl    *template.Template

	live     []*graph.Relationship
	inferred []*graph.Relationship
	groups   []*group.Group

	// pool holds trial relationships taken out of the groups. A later step
	// may place them again, reusing the live identity they were cloned from.
	pool []*graph.Relationship

	// origin maps concept group index to the template group it was formed
	// from. Indices below tmpl.Len() map to themselves.
	origin map[int]int
	formed int

	changed bool
}

func newAttempt(e *Engine, c *graph.Concept, tmpl *template.Template) *attempt {
	return &attempt{
		e:        e,
		concept:  c,
		tmpl:     tmpl,
		live:     c.Relationships(remodelable(graph.Stated)),
		inferred: c.Relationships(remodelable(graph.Inferred)),
		origin:   make(map[int]int),
	}
}

func (a *attempt) run(removals []Removal) error {
	a.snapshot()
	a.stripGroupedOnly()
	a.dedupe()
	a.groups = group.Pad(group.ShuffleDown(a.groups), a.tmpl.Len())
	if err := a.align(); err != nil {
		return err
	}
	a.adoptExtraGroups()
	if err := a.satisfy(); err != nil {
		return err
	}
	a.removeBlanket(removals)
	a.ungroup()
	for _, r := range group.DemoteSingletons(a.groups) {
		a.note("demoted singleton %s -> %s to group 0", r.Type, r.Target)
	}
	return nil
}

func (a *attempt) note(format string, args ...any) {
	a.e.auditf(a.concept, a.tmpl, format, args...)
}

// snapshot clones the stated groups (step 1).
func (a *attempt) snapshot() {
	minCount := max(a.tmpl.Len(), group.MinGroups)
	a.groups = group.FromRelationships(a.live, minCount)
}

// stripGroupedOnly pulls grouped-only attributes out of group 0 (step 2).
func (a *attempt) stripGroupedOnly() {
	stripped := a.groups[0].RemoveFunc(func(r *graph.Relationship) bool {
		return a.tmpl.IsGroupedOnly(r.Type)
	})
	for _, r := range stripped {
		a.note("removed grouped-only %s -> %s from group 0", r.Type, r.Target)
	}
	a.pool = append(a.pool, stripped...)
}

// dedupe keeps the first relationship of each type in every grouped group
// (step 3). Group 0 may hold several values of one type; only exact repeats
// are dropped there.
func (a *attempt) dedupe() {
	for _, g := range a.groups {
		seen := make(map[string]bool)
		dropped := g.RemoveFunc(func(r *graph.Relationship) bool {
			key := r.Type.ID
			if g.ID() == 0 {
				key += "=" + r.Target.ID
			}
			if seen[key] {
				return true
			}
			seen[key] = true
			return false
		})
		for _, r := range dropped {
			a.note("dropped repeated %s -> %s from group %d", r.Type, r.Target, g.ID())
		}
		a.pool = append(a.pool, dropped...)
	}
}

// align reorders a private copy of the template so its groups line up with
// the concept groups they already best match (step 5).
func (a *attempt) align() error {
	n := a.tmpl.Len() - 1
	if n <= 2 || a.groups[1].IsEmpty() {
		return nil
	}

	type pair struct{ concept, tmpl, score int }
	var pairs []pair
	for ci := 1; ci <= n; ci++ {
		for ti := 1; ti <= n; ti++ {
			if s := score(a.groups[ci], a.tmpl.Group(ti)); s > 0 {
				pairs = append(pairs, pair{ci, ti, s})
			}
		}
	}
	slices.SortStableFunc(pairs, func(x, y pair) int {
		return y.score - x.score
	})

	order := make([]int, n)
	used := make(map[int]bool)
	for _, p := range pairs {
		if order[p.concept-1] != 0 || used[p.tmpl] {
			continue
		}
		order[p.concept-1] = p.tmpl
		used[p.tmpl] = true
	}
	next := 1
	for i := range order {
		if order[i] != 0 {
			continue
		}
		for used[next] {
			next++
		}
		order[i] = next
		used[next] = true
	}

	if slices.IsSorted(order) {
		return nil
	}
	reordered, err := a.tmpl.Reorder(order)
	if err != nil {
		return err
	}
	a.tmpl = reordered
	a.note("aligned template groups to concept groups as %v", order)
	return nil
}

// score counts the template attributes a concept group already satisfies.
func score(g *group.Group, tg template.AttributeGroup) int {
	n := 0
	for _, attr := range tg.Attributes {
		if attr.IsFixed() {
			if g.Find(attr.Type, attr.Value) != nil {
				n++
			}
		} else if g.ContainsType(attr.Type) {
			n++
		}
	}
	return n
}

// adoptExtraGroups links concept groups beyond the template's range to the
// template group they best match, so they count as additional groups of it.
func (a *attempt) adoptExtraGroups() {
	for ci := a.tmpl.Len(); ci < len(a.groups); ci++ {
		best, bestScore := 0, 0
		for ti := 1; ti < a.tmpl.Len(); ti++ {
			if s := score(a.groups[ci], a.tmpl.Group(ti)); s > bestScore {
				best, bestScore = ti, s
			}
		}
		if best > 0 {
			a.origin[ci] = best
		}
	}
}

// slots returns the concept groups formed from template group ti.
func (a *attempt) slots(ti int) []int {
	if ti == 0 {
		return []int{0}
	}
	out := []int{ti}
	for ci := a.tmpl.Len(); ci < len(a.groups); ci++ {
		if o, ok := a.origin[ci]; ok && o == ti {
			out = append(out, ci)
		}
	}
	return out
}

// additionalGroup forms a new concept group for template group ti, reusing
// an unassigned empty group beyond the template's range when one exists.
func (a *attempt) additionalGroup(ti int) int {
	for ci := a.tmpl.Len(); ci < len(a.groups); ci++ {
		if _, taken := a.origin[ci]; !taken && a.groups[ci].IsEmpty() {
			a.origin[ci] = ti
			return ci
		}
	}
	ci := len(a.groups)
	a.groups = group.Pad(a.groups, ci+1)
	a.origin[ci] = ti
	return ci
}

// removeBlanket drops caller-named pairs from every group (step 7).
func (a *attempt) removeBlanket(removals []Removal) {
	for _, rm := range removals {
		for _, g := range a.groups {
			removed := g.RemoveFunc(func(r *graph.Relationship) bool {
				return r.HasTypeValue(rm.Type, rm.Target)
			})
			for _, r := range removed {
				a.note("removed %s -> %s from group %d on request", r.Type, r.Target, g.ID())
				a.changed = true
			}
		}
	}
}

// ungroup moves ungrouped-only attributes back to group 0 (step 8).
func (a *attempt) ungroup() {
	zero := a.groups[0]
	for _, g := range a.groups[1:] {
		moved := g.RemoveFunc(func(r *graph.Relationship) bool {
			return a.tmpl.IsUngroupedOnly(r.Type)
		})
		for _, r := range moved {
			if zero.ContainsRelationship(r) {
				a.note("dropped grouped copy of ungrouped %s -> %s", r.Type, r.Target)
				continue
			}
			zero.Add(r)
			a.note("moved ungrouped %s -> %s to group 0", r.Type, r.Target)
		}
	}
}

// result lists the stated relationships the concept would have after commit,
// for rendering.
func (a *attempt) result() []*graph.Relationship {
	out := a.concept.Relationships(graph.Select(graph.Stated).OfTypeID(snomed.IsA))
	return append(out, group.Relationships(a.groups)...)
}

// diff turns the final trial groups into mutations against the live
// relationships (step 10). Trial relationships cloned from a live one reuse
// its identity; the rest are additions. Every group must be trial state.
func (a *attempt) diff() ([]graph.Mutation, error) {
	a.groups = group.ShuffleDown(a.groups)
	for _, g := range a.groups {
		if !g.IsTrial() {
			return nil, fmt.Errorf("%w: group %d of %s is live state", graph.ErrInvariant, g.ID(), a.concept.ID)
		}
	}

	var out []graph.Mutation
	kept := make(map[*graph.Relationship]bool)
	for _, r := range group.Relationships(a.groups) {
		o := r.Origin()
		if o != nil && !kept[o] {
			kept[o] = true
			if o.GroupID != r.GroupID {
				out = append(out, graph.Mutation{
					Kind:         graph.MutationReassign,
					Relationship: o,
					FromGroup:    o.GroupID,
					ToGroup:      r.GroupID,
				})
			}
			continue
		}
		fresh := graph.NewRelationship(a.concept, r.Type, r.Target, r.GroupID, graph.Stated)
		out = append(out, graph.Mutation{
			Kind:         graph.MutationAdd,
			Relationship: fresh,
			ToGroup:      r.GroupID,
		})
	}
	for _, l := range a.live {
		if kept[l] {
			continue
		}
		kind := graph.MutationDeactivate
		if l.ID == "" {
			kind = graph.MutationRemove
		}
		out = append(out, graph.Mutation{
			Kind:         kind,
			Relationship: l,
			FromGroup:    l.GroupID,
			ToGroup:      l.GroupID,
		})
	}
	return out, nil
}
