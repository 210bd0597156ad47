package graph

import (
	"slices"
	"sync"

	"github.com/c360studio/semremodel/vocabulary/snomed"
)

// Closure answers ancestor and descendant queries over the IS-A hierarchy of
// one characteristic type.
//
// The parent and child adjacency is captured when the closure is built, so
// later commits to the store (which never touch IS-A edges) cannot race with
// readers. Full ancestor and descendant sets are computed on first use per
// concept and memoised; a Closure is safe for concurrent use.
//
// A concept missing from the closure has no ancestors and no descendants.
type Closure struct {
	char     CharacteristicType
	parents  map[string][]string
	children map[string][]string

	mu          sync.RWMutex
	ancestors   map[string]map[string]struct{}
	descendants map[string]map[string]struct{}
}

// NewClosure snapshots the active IS-A edges of the given characteristic type.
func NewClosure(s *Store, char CharacteristicType) *Closure {
	c := &Closure{
		char:        char,
		parents:     make(map[string][]string),
		children:    make(map[string][]string),
		ancestors:   make(map[string]map[string]struct{}),
		descendants: make(map[string]map[string]struct{}),
	}
	for _, concept := range s.Concepts() {
		for _, r := range concept.Relationships(Select(char).OfTypeID(snomed.IsA)) {
			c.parents[concept.ID] = append(c.parents[concept.ID], r.Target.ID)
			c.children[r.Target.ID] = append(c.children[r.Target.ID], concept.ID)
		}
	}
	return c
}

// Characteristic returns the characteristic type the closure was built from.
func (c *Closure) Characteristic() CharacteristicType {
	return c.char
}

// Ancestors returns the proper ancestors of a concept, sorted by identifier.
func (c *Closure) Ancestors(id string) []string {
	return sortedKeys(c.ancestorSet(id))
}

// AncestorsOrSelf returns the ancestors of a concept plus the concept itself.
func (c *Closure) AncestorsOrSelf(id string) []string {
	return withSelf(c.Ancestors(id), id)
}

// Descendants returns the proper descendants of a concept, sorted by identifier.
func (c *Closure) Descendants(id string) []string {
	return sortedKeys(c.descendantSet(id))
}

// DescendantsOrSelf returns the descendants of a concept plus the concept itself.
func (c *Closure) DescendantsOrSelf(id string) []string {
	return withSelf(c.Descendants(id), id)
}

// IsAncestorOf reports whether a is a proper ancestor of b.
func (c *Closure) IsAncestorOf(a, b *Concept) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}
	_, ok := c.ancestorSet(b.ID)[a.ID]
	return ok
}

// IsDescendantOf reports whether a is a proper descendant of b.
func (c *Closure) IsDescendantOf(a, b *Concept) bool {
	return c.IsAncestorOf(b, a)
}

// Subsumes reports whether a is b or an ancestor of b.
func (c *Closure) Subsumes(a, b *Concept) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID == b.ID || c.IsAncestorOf(a, b)
}

// MostSpecific removes every candidate that is a proper ancestor of another
// candidate, and collapses duplicates. When a parent and child of the same
// attribute type both appear, only the child remains. Input order is kept.
func (c *Closure) MostSpecific(candidates []*Concept) []*Concept {
	var out []*Concept
	seen := make(map[string]bool)
	for _, cand := range candidates {
		if cand == nil || seen[cand.ID] {
			continue
		}
		seen[cand.ID] = true
		redundant := false
		for _, other := range candidates {
			if other != nil && c.IsAncestorOf(cand, other) {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, cand)
		}
	}
	return out
}

func (c *Closure) ancestorSet(id string) map[string]struct{} {
	return c.memo(id, c.ancestors, c.parents)
}

func (c *Closure) descendantSet(id string) map[string]struct{} {
	return c.memo(id, c.descendants, c.children)
}

func (c *Closure) memo(id string, cache map[string]map[string]struct{}, edges map[string][]string) map[string]struct{} {
	c.mu.RLock()
	set, ok := cache[id]
	c.mu.RUnlock()
	if ok {
		return set
	}

	set = walk(id, edges)

	c.mu.Lock()
	if existing, ok := cache[id]; ok {
		set = existing
	} else {
		cache[id] = set
	}
	c.mu.Unlock()
	return set
}

// walk collects everything reachable from id. The start node is excluded
// even when a cycle leads back to it.
func walk(id string, edges map[string][]string) map[string]struct{} {
	out := make(map[string]struct{})
	stack := slices.Clone(edges[id])
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if next == id {
			continue
		}
		if _, done := out[next]; done {
			continue
		}
		out[next] = struct{}{}
		stack = append(stack, edges[next]...)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func withSelf(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	out := append(ids, id)
	slices.Sort(out)
	return out
}
