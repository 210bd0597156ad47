package snomed

import "strings"

// Namespace is the base IRI for SNOMED CT concepts.
const Namespace = "http://snomed.info/id/"

// IRI returns the IRI for a concept identifier.
func IRI(id string) string {
	return Namespace + id
}

// IDFromIRI extracts the concept identifier from a SNOMED CT IRI.
// Returns the input unchanged when it is not in the SNOMED namespace.
func IDFromIRI(iri string) string {
	return strings.TrimPrefix(iri, Namespace)
}
