// Package template models logical templates: the ordered attribute groups a
// class of concepts should conform to.
//
// Templates are authored as YAML Definitions naming concept identifiers.
// Resolve turns a Definition into a Template holding graph references, so
// identifier lookup and "not found" handling happen once, at load time.
// A resolved Template is immutable; Reorder returns a private copy.
package template

import (
	"fmt"
	"slices"
	"strings"

	"github.com/c360studio/semremodel/graph"
)

// Lookup resolves concept identifiers. *graph.Store implements it.
type Lookup interface {
	Concept(id string) (*graph.Concept, bool)
}

// Attribute requires a relationship type and, when Value is set, a fixed target.
type Attribute struct {
	Type  *graph.Concept
	Value *graph.Concept
}

// IsFixed reports whether the attribute carries a template-specified constant.
func (a Attribute) IsFixed() bool {
	return a.Value != nil
}

// String renders "type" or "type=value".
func (a Attribute) String() string {
	if a.Value == nil {
		return a.Type.ID
	}
	return a.Type.ID + "=" + a.Value.ID
}

// AttributeGroup bundles attributes with a cardinality.
type AttributeGroup struct {
	Cardinality Cardinality
	Attributes  []Attribute
}

// HasType reports whether the group declares an attribute of the given type.
func (g AttributeGroup) HasType(typ *graph.Concept) bool {
	for _, a := range g.Attributes {
		if a.Type.ID == typ.ID {
			return true
		}
	}
	return false
}

// Template is a resolved logical template. Groups()[0] always holds the
// ungrouped attributes, possibly none, so callers can treat groups 0..N
// uniformly.
type Template struct {
	name        string
	description string
	groups      []AttributeGroup
}

// Resolve turns a definition into a template, looking up every identifier.
// All unknown identifiers are reported together.
func Resolve(def *Definition, lookup Lookup) (*Template, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var missing []string
	concept := func(id string) *graph.Concept {
		if id == "" {
			return nil
		}
		c, ok := lookup.Concept(id)
		if !ok {
			if !slices.Contains(missing, id) {
				missing = append(missing, id)
			}
			return nil
		}
		return c
	}
	attrs := func(in []AttributeDefinition) []Attribute {
		out := make([]Attribute, 0, len(in))
		for _, a := range in {
			out = append(out, Attribute{Type: concept(a.Type), Value: concept(a.Value)})
		}
		return out
	}

	t := &Template{name: def.Name, description: def.Description}
	t.groups = append(t.groups, AttributeGroup{
		Cardinality: Cardinality{Min: "0", Max: "*"},
		Attributes:  attrs(def.Ungrouped),
	})
	for _, g := range def.Groups {
		card, _ := ParseCardinality(g.Cardinality)
		t.groups = append(t.groups, AttributeGroup{Cardinality: card, Attributes: attrs(g.Attributes)})
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w in %s: %s", ErrUnknownConcept, def.Name, strings.Join(missing, ", "))
	}
	return t, nil
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.name
}

// Description returns the free-text description.
func (t *Template) Description() string {
	return t.description
}

// Len returns the number of groups including group 0.
func (t *Template) Len() int {
	return len(t.groups)
}

// Group returns one attribute group by index.
func (t *Template) Group(i int) AttributeGroup {
	return t.groups[i]
}

// Groups returns the attribute groups in declaration order, group 0 first.
func (t *Template) Groups() []AttributeGroup {
	return slices.Clone(t.groups)
}

// IsGroupedOnly reports whether the type appears in some non-zero group but
// not in group 0. Such attributes never belong ungrouped.
func (t *Template) IsGroupedOnly(typ *graph.Concept) bool {
	if t.groups[0].HasType(typ) {
		return false
	}
	for _, g := range t.groups[1:] {
		if g.HasType(typ) {
			return true
		}
	}
	return false
}

// IsUngroupedOnly reports whether the type appears in group 0 and in no
// other group.
func (t *Template) IsUngroupedOnly(typ *graph.Concept) bool {
	if !t.groups[0].HasType(typ) {
		return false
	}
	for _, g := range t.groups[1:] {
		if g.HasType(typ) {
			return false
		}
	}
	return true
}

// Reorder returns a copy whose non-zero groups follow order, where order[i]
// is the original index placed at position i+1. The receiver is unchanged,
// so a shared template stays reusable across concepts.
func (t *Template) Reorder(order []int) (*Template, error) {
	if len(order) != len(t.groups)-1 {
		return nil, fmt.Errorf("reorder %s: want %d indices, got %d", t.name, len(t.groups)-1, len(order))
	}
	seen := make(map[int]bool, len(order))
	out := &Template{name: t.name, description: t.description, groups: []AttributeGroup{t.groups[0]}}
	for _, idx := range order {
		if idx < 1 || idx >= len(t.groups) || seen[idx] {
			return nil, fmt.Errorf("reorder %s: bad index %d", t.name, idx)
		}
		seen[idx] = true
		out.groups = append(out.groups, t.groups[idx])
	}
	return out, nil
}

// String renders a compact form, e.g. "infection[0:{} 1:{246075003 363698007}]".
func (t *Template) String() string {
	var sb strings.Builder
	sb.WriteString(t.name)
	sb.WriteString("[")
	for i, g := range t.groups {
		if i > 0 {
			sb.WriteString(" ")
		}
		names := make([]string, len(g.Attributes))
		for j, a := range g.Attributes {
			names[j] = a.String()
		}
		fmt.Fprintf(&sb, "%d:{%s}", i, strings.Join(names, " "))
	}
	sb.WriteString("]")
	return sb.String()
}
