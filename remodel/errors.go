package remodel

import "fmt"

// FailureKind names a sound-but-unhandled input shape.
type FailureKind string

const (
	// KindTooManyCandidates: more than two mutually non-subsuming inferred
	// values for one attribute type.
	KindTooManyCandidates FailureKind = "too_many_candidates"

	// KindGroupZeroLanding: a grouped template attribute resolved to group 0.
	KindGroupZeroLanding FailureKind = "group_zero_landing"

	// KindNoEffectiveChange: the planned mutations leave the stated
	// expression as it was.
	KindNoEffectiveChange FailureKind = "no_effective_change"

	// KindGroupBudgetExceeded: an additional group is needed but the template
	// group allows only one.
	KindGroupBudgetExceeded FailureKind = "group_budget_exceeded"

	// KindAborted: the caller's time budget ran out before commit.
	KindAborted FailureKind = "aborted"
)

// ValidationFailure explains why a concept was rejected. It is carried in a
// Rejected outcome; the engine never returns it as a Go error.
type ValidationFailure struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail"`
}

// Error implements error so steps can return it up the call chain.
func (f *ValidationFailure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func fail(kind FailureKind, format string, args ...any) *ValidationFailure {
	return &ValidationFailure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
