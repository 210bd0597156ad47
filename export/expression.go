package export

import (
	"cmp"
	"slices"
	"strings"

	"github.com/c360studio/semremodel/graph"
)

// Definition status operators of the compositional grammar.
const (
	OperatorEquivalent = "==="
	OperatorSubtype    = "<<<"
)

// Expression renders a concept's active relationships of one characteristic
// type in compositional grammar.
func Expression(c *graph.Concept, char graph.CharacteristicType) string {
	return Render(c.DefinitionStatus, c.Relationships(graph.Select(char)))
}

// Render builds the canonical expression for a relationship set. Focus
// concepts, attributes and groups are each sorted, so two sets that differ
// only in group numbering or load order render identically:
//
//	<<< 64572001 |Disease| : 370135005 = 441862004, { 246075003 = 9861002, 363698007 = 39057004 }
//
// Inactive relationships are ignored.
func Render(status graph.DefinitionStatus, rels []*graph.Relationship) string {
	var focus []string
	var ungrouped []string
	grouped := make(map[int][]string)

	for _, r := range rels {
		if !r.Active {
			continue
		}
		if r.IsHierarchy() {
			focus = append(focus, r.Target.String())
			continue
		}
		attr := r.Type.String() + " = " + r.Target.String()
		if r.GroupID == 0 {
			ungrouped = append(ungrouped, attr)
		} else {
			grouped[r.GroupID] = append(grouped[r.GroupID], attr)
		}
	}

	slices.SortFunc(focus, cmp.Compare[string])
	focus = slices.Compact(focus)
	slices.SortFunc(ungrouped, cmp.Compare[string])

	groups := make([]string, 0, len(grouped))
	for _, attrs := range grouped {
		slices.Sort(attrs)
		groups = append(groups, "{ "+strings.Join(attrs, ", ")+" }")
	}
	slices.Sort(groups)

	var sb strings.Builder
	if status == graph.FullyDefined {
		sb.WriteString(OperatorEquivalent)
	} else {
		sb.WriteString(OperatorSubtype)
	}
	if len(focus) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(focus, " + "))
	}

	refinement := append(ungrouped, groups...)
	if len(refinement) > 0 {
		sb.WriteString(" : ")
		sb.WriteString(strings.Join(refinement, ", "))
	}
	return sb.String()
}
