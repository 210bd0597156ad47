package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Unbounded is the MaxCount of a "*" upper bound.
const Unbounded = -1

// Cardinality is a "min..max" range as written in template definitions.
// Min "0" marks an optional group; Max "*" is unbounded.
type Cardinality struct {
	Min string
	Max string
}

// ParseCardinality parses "min..max". A bare "n" means "n..n"; an empty
// string means "1..1".
func ParseCardinality(s string) (Cardinality, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cardinality{Min: "1", Max: "1"}, nil
	}
	lo, hi, found := strings.Cut(s, "..")
	if !found {
		hi = lo
	}
	c := Cardinality{Min: strings.TrimSpace(lo), Max: strings.TrimSpace(hi)}
	minN, err := strconv.Atoi(c.Min)
	if err != nil || minN < 0 {
		return Cardinality{}, fmt.Errorf("invalid cardinality %q: bad minimum", s)
	}
	if c.Max == "*" {
		return c, nil
	}
	maxN, err := strconv.Atoi(c.Max)
	if err != nil || maxN < minN {
		return Cardinality{}, fmt.Errorf("invalid cardinality %q: bad maximum", s)
	}
	return c, nil
}

// Optional reports whether the group may be absent.
func (c Cardinality) Optional() bool {
	return c.Min == "0"
}

// MaxCount returns the upper bound, or Unbounded.
func (c Cardinality) MaxCount() int {
	if c.Max == "*" {
		return Unbounded
	}
	n, err := strconv.Atoi(c.Max)
	if err != nil {
		return 1
	}
	return n
}

// AllowsAdditional reports whether more than one concept group may be formed
// from the template group.
func (c Cardinality) AllowsAdditional() bool {
	n := c.MaxCount()
	return n == Unbounded || n > 1
}

// String renders "min..max".
func (c Cardinality) String() string {
	return c.Min + ".." + c.Max
}
