package template

import "errors"

var (
	// ErrInvalid wraps every structural problem found in a definition.
	ErrInvalid = errors.New("invalid template")

	// ErrUnknownConcept is returned by Resolve when a definition names
	// identifiers that are not in the snapshot.
	ErrUnknownConcept = errors.New("template references unknown concepts")

	// ErrNotFound is returned when a template name is not registered.
	ErrNotFound = errors.New("template not found")
)
