package snomed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIRI_RoundTrip(t *testing.T) {
	iri := IRI(FindingSite)
	assert.Equal(t, "http://snomed.info/id/363698007", iri)
	assert.Equal(t, FindingSite, IDFromIRI(iri))
}

func TestIDFromIRI_ForeignNamespace(t *testing.T) {
	assert.Equal(t, "urn:x:1", IDFromIRI("urn:x:1"))
}
