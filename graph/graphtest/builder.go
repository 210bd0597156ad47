// Package graphtest builds small terminology snapshots for tests.
package graphtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/vocabulary/snomed"
)

// Builder accumulates concepts and relationships into a graph.Store.
// Concepts are created on first mention, labelled with their identifier
// unless Concept was called with a label first.
type Builder struct {
	t      testing.TB
	store  *graph.Store
	nextID int
}

// New creates a builder whose store assigns sequential identities ("new-1",
// "new-2", ...) to relationships created at commit time.
func New(t testing.TB) *Builder {
	t.Helper()
	b := &Builder{t: t}
	var seq atomic.Int64
	b.store = graph.NewStore(graph.WithIDGenerator(func() string {
		return fmt.Sprintf("new-%d", seq.Add(1))
	}))
	return b
}

// Concept returns the concept with the given identifier, creating it with the
// given label if needed.
func (b *Builder) Concept(id, label string) *graph.Concept {
	b.t.Helper()
	if c, ok := b.store.Concept(id); ok {
		if label != "" {
			c.Label = label
		}
		return c
	}
	if label == "" {
		label = id
	}
	c := graph.NewConcept(id, label)
	if err := b.store.AddConcept(c); err != nil {
		b.t.Fatalf("add concept %s: %v", id, err)
	}
	return c
}

// IsA adds stated and inferred IS-A edges from child to parent.
func (b *Builder) IsA(child, parent string) *Builder {
	b.t.Helper()
	b.rel(child, snomed.IsA, parent, 0, graph.Stated)
	b.rel(child, snomed.IsA, parent, 0, graph.Inferred)
	return b
}

// Stated adds a persisted stated relationship.
func (b *Builder) Stated(source, typ, target string, group int) *graph.Relationship {
	b.t.Helper()
	return b.rel(source, typ, target, group, graph.Stated)
}

// Inferred adds a persisted inferred relationship.
func (b *Builder) Inferred(source, typ, target string, group int) *graph.Relationship {
	b.t.Helper()
	return b.rel(source, typ, target, group, graph.Inferred)
}

// Store returns the store being built.
func (b *Builder) Store() *graph.Store {
	return b.store
}

// Closure builds an inferred closure over the current store.
func (b *Builder) Closure() *graph.Closure {
	return graph.NewClosure(b.store, graph.Inferred)
}

func (b *Builder) rel(source, typ, target string, group int, char graph.CharacteristicType) *graph.Relationship {
	b.t.Helper()
	b.nextID++
	r := graph.NewRelationship(b.Concept(source, ""), b.Concept(typ, ""), b.Concept(target, ""), group, char)
	r.ID = fmt.Sprintf("r%d", b.nextID)
	if err := b.store.LoadRelationship(r); err != nil {
		b.t.Fatalf("load relationship: %v", err)
	}
	return r
}
