// Package export renders concepts for review and interchange: canonical
// compositional-grammar expressions and RDF triples of their relationships.
package export

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/vocabulary/snomed"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"

	// FormatExpression produces one compositional-grammar line per concept.
	FormatExpression Format = "expression"
)

const (
	rdfsNamespace = "http://www.w3.org/2000/01/rdf-schema#"
	rdfsLabel     = rdfsNamespace + "label"
	rdfsSubClass  = rdfsNamespace + "subClassOf"
)

func defaultPrefixes() map[string]string {
	return map[string]string{
		"rdfs": rdfsNamespace,
		"sct":  snomed.Namespace,
	}
}

// Exporter serializes the active relationships of one characteristic type.
// Grouped relationships hang off a role-group blank node per group, so the
// grouping survives the round trip through RDF.
type Exporter struct {
	format Format
	char   graph.CharacteristicType
}

// NewExporter creates an exporter for the given format.
func NewExporter(format Format, char graph.CharacteristicType) (*Exporter, error) {
	if _, ok := GetFormatInfo(format); !ok {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return &Exporter{format: format, char: char}, nil
}

// Export writes the concepts in identifier order.
func (e *Exporter) Export(w io.Writer, concepts []*graph.Concept) error {
	sorted := slices.Clone(concepts)
	slices.SortFunc(sorted, func(a, b *graph.Concept) int { return cmp.Compare(a.ID, b.ID) })

	var out string
	switch e.format {
	case FormatExpression:
		var sb strings.Builder
		for _, c := range sorted {
			fmt.Fprintf(&sb, "%s\t%s\n", c.ID, Expression(c, e.char))
		}
		out = sb.String()
	case FormatNTriples:
		nt := NewNTriplesWriter()
		for _, c := range sorted {
			for _, tr := range e.triples(c) {
				nt.WriteTriple(tr.subject, tr.predicate, tr.object)
			}
		}
		out = nt.String()
	case FormatTurtle:
		tw := NewTurtleWriter()
		tw.WritePrefixes()
		for _, c := range sorted {
			var subject Term
			for i, tr := range e.triples(c) {
				if i == 0 || tr.subject != subject {
					tw.WriteSubject(tr.subject)
					subject = tr.subject
				}
				tw.WritePredicate(tr.predicate, tr.object)
			}
		}
		out = tw.String()
	}

	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("write %s export: %w", e.format, err)
	}
	return nil
}

type triple struct {
	subject   Term
	predicate Term
	object    Term
}

// triples lists a concept's triples, concept-level ones first and then one
// block per role group, each block sharing its subject.
func (e *Exporter) triples(c *graph.Concept) []triple {
	subject := IRI(snomed.IRI(c.ID))
	out := []triple{{subject, IRI(rdfsLabel), Literal(c.Label)}}

	rels := c.Relationships(graph.Select(e.char))
	groups := make(map[int][]*graph.Relationship)
	for _, r := range rels {
		switch {
		case r.IsHierarchy():
			out = append(out, triple{subject, IRI(rdfsSubClass), IRI(snomed.IRI(r.Target.ID))})
		case r.GroupID == 0:
			out = append(out, triple{subject, IRI(snomed.IRI(r.Type.ID)), IRI(snomed.IRI(r.Target.ID))})
		default:
			groups[r.GroupID] = append(groups[r.GroupID], r)
		}
	}

	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		out = append(out, triple{subject, IRI(snomed.IRI(snomed.RoleGroup)), groupNode(c, id)})
	}
	for _, id := range ids {
		node := groupNode(c, id)
		for _, r := range groups[id] {
			out = append(out, triple{node, IRI(snomed.IRI(r.Type.ID)), IRI(snomed.IRI(r.Target.ID))})
		}
	}
	return out
}

func groupNode(c *graph.Concept, group int) Term {
	return Blank("c" + c.ID + "g" + strconv.Itoa(group))
}
