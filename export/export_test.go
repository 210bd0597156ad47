package export_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/c360studio/semremodel/export"
	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/graph/graphtest"
)

func infection(t *testing.T) (*graphtest.Builder, *graph.Concept) {
	b := graphtest.New(t)
	c := b.Concept("40733004", "Infectious disease")
	b.Concept("agent", "Causative agent")
	b.Concept("site", "Finding site")
	b.Stated("40733004", "116680003", "64572001", 0)
	b.Stated("40733004", "process", "infectious", 0)
	b.Stated("40733004", "agent", "bacteria", 1)
	b.Stated("40733004", "site", "lung", 1)
	b.Stated("40733004", "agent", "virus", 2)
	b.Stated("40733004", "site", "skin", 2)
	return b, c
}

func TestRender_Canonical(t *testing.T) {
	_, c := infection(t)

	got := export.Expression(c, graph.Stated)
	want := "<<< 64572001 : process = infectious, " +
		"{ agent |Causative agent| = bacteria, site |Finding site| = lung }, " +
		"{ agent |Causative agent| = virus, site |Finding site| = skin }"
	if got != want {
		t.Errorf("Expression() =\n  %s\nwant\n  %s", got, want)
	}

	c.DefinitionStatus = graph.FullyDefined
	if got := export.Expression(c, graph.Stated); !strings.HasPrefix(got, "=== ") {
		t.Errorf("fully defined concept should render with ===, got %q", got)
	}
}

func TestRender_IgnoresGroupNumbering(t *testing.T) {
	_, c := infection(t)
	rels := c.Relationships(graph.Select(graph.Stated))
	before := export.Render(c.DefinitionStatus, rels)

	// swap groups 1 and 2 and shuffle load order
	var swapped []*graph.Relationship
	for i := len(rels) - 1; i >= 0; i-- {
		r := *rels[i]
		switch r.GroupID {
		case 1:
			r.GroupID = 7
		case 2:
			r.GroupID = 1
		}
		swapped = append(swapped, &r)
	}
	if after := export.Render(c.DefinitionStatus, swapped); after != before {
		t.Errorf("renumbered groups should render identically:\n  %s\n  %s", before, after)
	}
}

func TestRender_DistinguishesSelfGroupedFromUngrouped(t *testing.T) {
	b := graphtest.New(t)
	ungrouped := b.Stated("a", "site", "lung", 0)
	grouped := b.Stated("b", "site", "lung", 1)

	u := export.Render(graph.Primitive, []*graph.Relationship{ungrouped})
	g := export.Render(graph.Primitive, []*graph.Relationship{grouped})
	if u == g {
		t.Errorf("a self-grouped attribute must not render like an ungrouped one: %q", u)
	}
}

func TestRender_SkipsInactive(t *testing.T) {
	b := graphtest.New(t)
	r := b.Stated("a", "site", "lung", 0)
	r.Active = false
	if got := export.Render(graph.Primitive, []*graph.Relationship{r}); got != "<<<" {
		t.Errorf("Render() = %q, want bare operator", got)
	}
}

func TestExporter_NTriples(t *testing.T) {
	_, c := infection(t)
	e, err := export.NewExporter(export.FormatNTriples, graph.Stated)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	var buf bytes.Buffer
	if err := e.Export(&buf, []*graph.Concept{c}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<http://snomed.info/id/40733004> <http://www.w3.org/2000/01/rdf-schema#label> "Infectious disease" .`,
		`<http://snomed.info/id/40733004> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://snomed.info/id/64572001> .`,
		`<http://snomed.info/id/40733004> <http://snomed.info/id/process> <http://snomed.info/id/infectious> .`,
		`<http://snomed.info/id/40733004> <http://snomed.info/id/609096000> _:c40733004g1 .`,
		`_:c40733004g2 <http://snomed.info/id/site> <http://snomed.info/id/skin> .`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("N-Triples output missing %q\n%s", want, out)
		}
	}
	if n := strings.Count(out, "\n"); n != 9 {
		t.Errorf("expected 9 triples, got %d", n)
	}
}

func TestExporter_Turtle(t *testing.T) {
	_, c := infection(t)
	e, err := export.NewExporter(export.FormatTurtle, graph.Stated)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	var buf bytes.Buffer
	if err := e.Export(&buf, []*graph.Concept{c}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "@prefix sct: <http://snomed.info/id/> .") {
		t.Error("Turtle output should declare the sct prefix")
	}
	if !strings.Contains(out, "sct:40733004\n    rdfs:label \"Infectious disease\" ;") {
		t.Errorf("Turtle output should open the concept block:\n%s", out)
	}
	if !strings.Contains(out, "_:c40733004g1\n    sct:agent sct:bacteria ;\n    sct:site sct:lung .") {
		t.Errorf("Turtle output should render group 1 as one block:\n%s", out)
	}
}

func TestExporter_Expression(t *testing.T) {
	_, c := infection(t)
	e, err := export.NewExporter(export.FormatExpression, graph.Stated)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	var buf bytes.Buffer
	if err := e.Export(&buf, []*graph.Concept{c}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "40733004\t<<< 64572001 : ") {
		t.Errorf("unexpected expression line: %q", buf.String())
	}
}

func TestNewExporter_UnsupportedFormat(t *testing.T) {
	if _, err := export.NewExporter("rdfxml", graph.Stated); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestGetFormatInfo(t *testing.T) {
	info, ok := export.GetFormatInfo(export.FormatNTriples)
	if !ok {
		t.Fatal("ntriples should be registered")
	}
	if info.Extension != ".nt" {
		t.Errorf("Extension = %q, want .nt", info.Extension)
	}
}
