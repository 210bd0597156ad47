package graph

import "errors"

var (
	// ErrInvariant marks a violated store invariant. It indicates a defect in
	// the caller, not a data condition, and must not be swallowed.
	ErrInvariant = errors.New("graph invariant violated")

	// ErrUnknownConcept is returned when a relationship references a concept
	// that is not in the store.
	ErrUnknownConcept = errors.New("unknown concept")

	// ErrDuplicateConcept is returned when a concept identifier is loaded twice.
	ErrDuplicateConcept = errors.New("duplicate concept")
)
