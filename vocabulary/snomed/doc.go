// Package snomed provides well-known SNOMED CT concept identifiers used by the
// remodeling engine and its tooling.
//
// Identifiers are kept as plain strings so they can be compared directly with
// graph.Concept IDs loaded from any snapshot source. The IRI helpers map
// identifiers onto the http://snomed.info/id/ namespace for triple export.
//
// # Usage
//
//	site, ok := store.Concept(snomed.FindingSite)
//	if rel.Type.ID == snomed.IsA {
//	    // hierarchy edge, never remodeled
//	}
package snomed
