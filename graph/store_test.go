package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/graph/graphtest"
	"github.com/c360studio/semremodel/vocabulary/snomed"
)

func TestStore_AddConceptRejectsDuplicate(t *testing.T) {
	s := graph.NewStore()
	require.NoError(t, s.AddConcept(graph.NewConcept("1", "One")))

	err := s.AddConcept(graph.NewConcept("1", "Again"))
	assert.ErrorIs(t, err, graph.ErrDuplicateConcept)
	assert.Equal(t, 1, s.Len())
}

func TestStore_LoadRelationshipUnknownSource(t *testing.T) {
	s := graph.NewStore()
	typ := graph.NewConcept("t", "")
	r := graph.NewRelationship(graph.NewConcept("ghost", ""), typ, typ, 0, graph.Stated)

	assert.ErrorIs(t, s.LoadRelationship(r), graph.ErrUnknownConcept)
}

func TestStore_LoadToleratesDuplicates(t *testing.T) {
	b := graphtest.New(t)
	b.Stated("c", "site", "foot", 1)
	b.Stated("c", "site", "foot", 1)

	c := b.Concept("c", "")
	assert.Len(t, c.Relationships(graph.Select(graph.Stated)), 2)
}

func TestStore_ParentsAndChildren(t *testing.T) {
	b := graphtest.New(t)
	b.IsA("toe", "foot")
	b.IsA("heel", "foot")
	s := b.Store()

	parents := s.Parents(b.Concept("toe", ""), graph.Stated)
	require.Len(t, parents, 1)
	assert.Equal(t, "foot", parents[0].ID)

	children := s.Children(b.Concept("foot", ""), graph.Inferred)
	ids := []string{children[0].ID, children[1].ID}
	assert.ElementsMatch(t, []string{"toe", "heel"}, ids)
}

func TestConcept_RelationshipFilters(t *testing.T) {
	b := graphtest.New(t)
	b.Stated("c", "site", "foot", 1)
	b.Stated("c", "morph", "lesion", 1)
	b.Stated("c", "site", "hand", 2)
	b.Inferred("c", "site", "foot", 1)
	inactive := b.Stated("c", "site", "leg", 0)
	inactive.Active = false
	b.IsA("c", "parent")

	c := b.Concept("c", "")
	site := b.Concept("site", "")

	assert.Len(t, c.Relationships(graph.Select(graph.Stated)), 4)
	assert.Len(t, c.Relationships(graph.Select(graph.Stated).ExcludingType(snomed.IsA)), 3)
	assert.Len(t, c.Relationships(graph.Select(graph.Stated).OfType(site)), 2)
	assert.Len(t, c.Relationships(graph.Select(graph.Stated).InGroup(1)), 2)
	assert.Len(t, c.Relationships(graph.Select(graph.Stated).WithState(graph.InactiveOnly)), 1)
	assert.Len(t, c.Relationships(graph.Select(graph.Inferred)), 2)
	assert.Len(t, c.Relationships(graph.All()), 7)
	assert.Len(t, c.Relationships(graph.Select(graph.Stated).WithTarget(b.Concept("hand", ""))), 1)
	assert.Equal(t, 2, c.MaxGroupID(graph.Select(graph.Stated)))
}

func TestStore_SetGroupRejectsDuplicate(t *testing.T) {
	b := graphtest.New(t)
	b.Stated("c", "site", "foot", 1)
	r := b.Stated("c", "site", "foot", 2)
	s := b.Store()

	err := s.SetGroup(r, 1)
	assert.ErrorIs(t, err, graph.ErrInvariant)
	assert.Equal(t, 2, r.GroupID)

	require.NoError(t, s.SetGroup(r, 3))
	assert.Equal(t, 3, r.GroupID)
	assert.ErrorIs(t, s.SetGroup(r, -1), graph.ErrInvariant)
}

func TestStore_AddRelationshipAssignsIdentity(t *testing.T) {
	b := graphtest.New(t)
	b.Stated("c", "site", "foot", 1)
	s := b.Store()
	c := b.Concept("c", "")

	dup := graph.NewRelationship(c, b.Concept("site", ""), b.Concept("foot", ""), 1, graph.Stated)
	assert.ErrorIs(t, s.AddRelationship(dup), graph.ErrInvariant)

	fresh := graph.NewRelationship(c, b.Concept("site", ""), b.Concept("foot", ""), 2, graph.Stated)
	require.NoError(t, s.AddRelationship(fresh))
	assert.Equal(t, "new-1", fresh.ID)
	assert.Len(t, c.Relationships(graph.Select(graph.Stated)), 2)
}

func TestStore_DeactivateAndRemove(t *testing.T) {
	b := graphtest.New(t)
	persisted := b.Stated("c", "site", "foot", 1)
	s := b.Store()
	c := b.Concept("c", "")

	require.NoError(t, s.Deactivate(persisted))
	assert.False(t, persisted.Active)
	assert.Len(t, c.Relationships(graph.All()), 1, "inactivation keeps the relationship")

	assert.ErrorIs(t, s.RemoveRelationship(persisted), graph.ErrInvariant)

	draft := graph.NewRelationship(c, b.Concept("site", ""), b.Concept("toe", ""), 1, graph.Stated)
	require.NoError(t, s.LoadRelationship(draft))
	require.NoError(t, s.RemoveRelationship(draft))
	assert.Len(t, c.Relationships(graph.All()), 1)
}

func TestRelationship_CloneKeepsOrigin(t *testing.T) {
	b := graphtest.New(t)
	live := b.Stated("c", "site", "foot", 1)

	trial := live.Clone()
	assert.Same(t, live, trial.Origin())
	assert.Same(t, live, trial.Clone().Origin(), "clone of a clone points at the live relationship")
	assert.Nil(t, live.Origin())

	trial.GroupID = 4
	assert.Equal(t, 1, live.GroupID)
	assert.True(t, trial.SameTypeValue(live))
}
