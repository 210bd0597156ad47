package remodel

import (
	"fmt"
	"strings"

	"github.com/c360studio/semremodel/graph"
)

// Status is the result class of one remodel.
type Status int

const (
	Unchanged Status = iota
	Changed
	Rejected
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case Changed:
		return "changed"
	case Rejected:
		return "rejected"
	default:
		return "unchanged"
	}
}

// Outcome is the structured result of remodeling one concept.
type Outcome struct {
	ConceptID string
	Template  string
	Status    Status

	// Mutations holds the committed changes when Status is Changed.
	Mutations []graph.Mutation

	// Failure is set when Status is Rejected.
	Failure *ValidationFailure

	// Before and After are canonical stated expressions. After is set only
	// when a mutation list was planned.
	Before string
	After  string
}

// Count returns the number of mutations applied.
func (o *Outcome) Count() int {
	if o.Status != Changed {
		return 0
	}
	return len(o.Mutations)
}

// Summary renders the one-line audit summary of the outcome.
func (o *Outcome) Summary() string {
	switch o.Status {
	case Changed:
		parts := make([]string, len(o.Mutations))
		for i, m := range o.Mutations {
			parts[i] = m.String()
		}
		return fmt.Sprintf("changed(%d) using %s: %s", len(o.Mutations), o.Template, strings.Join(parts, "; "))
	case Rejected:
		return fmt.Sprintf("rejected using %s: %s", o.Template, o.Failure)
	default:
		return fmt.Sprintf("unchanged using %s", o.Template)
	}
}

func rejected(base *Outcome, f *ValidationFailure) *Outcome {
	base.Status = Rejected
	base.Failure = f
	base.Mutations = nil
	return base
}
