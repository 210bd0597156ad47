package export

import (
	"fmt"
	"slices"
	"strings"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatTurtle: {
		Name:        FormatTurtle,
		MIMEType:    "text/turtle",
		Extension:   ".ttl",
		Description: "Turtle - Terse RDF Triple Language",
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples - Line-based RDF format",
	},
	FormatExpression: {
		Name:        FormatExpression,
		MIMEType:    "text/plain",
		Extension:   ".txt",
		Description: "Compositional grammar, one concept per line",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// Term is an RDF subject or object: an IRI, a blank node label or a literal.
type Term struct {
	value string
	kind  termKind
}

type termKind int

const (
	termIRI termKind = iota
	termBlank
	termLiteral
)

// IRI returns an IRI term.
func IRI(iri string) Term { return Term{value: iri, kind: termIRI} }

// Blank returns a blank node term.
func Blank(label string) Term { return Term{value: label, kind: termBlank} }

// Literal returns a plain string literal.
func Literal(s string) Term { return Term{value: s, kind: termLiteral} }

func (t Term) ntriples() string {
	switch t.kind {
	case termBlank:
		return "_:" + t.value
	case termLiteral:
		return `"` + escapeString(t.value) + `"`
	default:
		return "<" + t.value + ">"
	}
}

func (t Term) turtle(prefixes map[string]string) string {
	if t.kind != termIRI {
		return t.ntriples()
	}
	for prefix, ns := range prefixes {
		if local, ok := strings.CutPrefix(t.value, ns); ok && local != "" && !strings.ContainsAny(local, "/#") {
			return prefix + ":" + local
		}
	}
	return t.ntriples()
}

// TurtleWriter writes RDF in Turtle format.
type TurtleWriter struct {
	prefixes map[string]string
	sb       strings.Builder
	open     bool
}

// NewTurtleWriter creates a new Turtle writer with default prefixes.
func NewTurtleWriter() *TurtleWriter {
	return &TurtleWriter{
		prefixes: defaultPrefixes(),
	}
}

// SetPrefix sets a namespace prefix.
func (w *TurtleWriter) SetPrefix(prefix, iri string) {
	w.prefixes[prefix] = iri
}

// WritePrefixes writes prefix declarations.
func (w *TurtleWriter) WritePrefixes() {
	keys := make([]string, 0, len(w.prefixes))
	for k := range w.prefixes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, prefix := range keys {
		fmt.Fprintf(&w.sb, "@prefix %s: <%s> .\n", prefix, w.prefixes[prefix])
	}
	w.sb.WriteString("\n")
}

// WriteSubject starts a new subject block, closing the previous one.
func (w *TurtleWriter) WriteSubject(subject Term) {
	w.closeSubject()
	w.sb.WriteString(subject.turtle(w.prefixes))
	w.open = true
}

// WritePredicate writes a predicate-object pair for the current subject.
func (w *TurtleWriter) WritePredicate(predicate, object Term) {
	fmt.Fprintf(&w.sb, "\n    %s %s ;", predicate.turtle(w.prefixes), object.turtle(w.prefixes))
}

func (w *TurtleWriter) closeSubject() {
	if !w.open {
		return
	}
	s := strings.TrimSuffix(w.sb.String(), " ;")
	w.sb.Reset()
	w.sb.WriteString(s)
	w.sb.WriteString(" .\n\n")
	w.open = false
}

// String returns the accumulated Turtle output.
func (w *TurtleWriter) String() string {
	w.closeSubject()
	return w.sb.String()
}

// NTriplesWriter writes RDF in N-Triples format.
type NTriplesWriter struct {
	sb strings.Builder
}

// NewNTriplesWriter creates a new N-Triples writer.
func NewNTriplesWriter() *NTriplesWriter {
	return &NTriplesWriter{}
}

// WriteTriple writes a single triple.
func (w *NTriplesWriter) WriteTriple(subject, predicate, object Term) {
	fmt.Fprintf(&w.sb, "%s %s %s .\n", subject.ntriples(), predicate.ntriples(), object.ntriples())
}

// String returns the accumulated N-Triples output.
func (w *NTriplesWriter) String() string {
	return w.sb.String()
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
