package graph_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/graph/graphtest"
	"github.com/c360studio/semremodel/vocabulary/snomed"
)

// body site hierarchy: Limb > Foot > Toe > GreatToe, Foot > Heel
func bodySites(t *testing.T) *graphtest.Builder {
	b := graphtest.New(t)
	b.IsA("foot", "limb")
	b.IsA("toe", "foot")
	b.IsA("great-toe", "toe")
	b.IsA("heel", "foot")
	return b
}

func TestClosure_AncestorsAndDescendants(t *testing.T) {
	b := bodySites(t)
	c := b.Closure()

	assert.Equal(t, []string{"foot", "limb", "toe"}, c.Ancestors("great-toe"))
	assert.Equal(t, []string{"foot", "great-toe", "limb", "toe"}, c.AncestorsOrSelf("great-toe"))
	assert.Equal(t, []string{"foot", "great-toe", "heel", "toe"}, c.Descendants("limb"))
	assert.Equal(t, []string{"heel"}, c.DescendantsOrSelf("heel"))
}

func TestClosure_SelfExclusiveQueries(t *testing.T) {
	b := bodySites(t)
	c := b.Closure()
	foot := b.Concept("foot", "")
	toe := b.Concept("toe", "")
	heel := b.Concept("heel", "")

	assert.True(t, c.IsAncestorOf(foot, toe))
	assert.False(t, c.IsAncestorOf(toe, foot))
	assert.False(t, c.IsAncestorOf(foot, foot), "ancestry is self-exclusive")
	assert.True(t, c.IsDescendantOf(toe, foot))
	assert.False(t, c.IsDescendantOf(heel, toe))
	assert.True(t, c.Subsumes(foot, foot))
	assert.True(t, c.Subsumes(foot, toe))
	assert.False(t, c.Subsumes(toe, foot))
}

func TestClosure_MissingConceptIsConservative(t *testing.T) {
	b := bodySites(t)
	c := b.Closure()
	stranger := graph.NewConcept("not-loaded", "Not loaded")

	assert.Empty(t, c.Ancestors("not-loaded"))
	assert.Empty(t, c.Descendants("not-loaded"))
	assert.False(t, c.IsAncestorOf(stranger, b.Concept("toe", "")))
	assert.False(t, c.IsAncestorOf(b.Concept("toe", ""), stranger))
}

func TestClosure_Transitivity(t *testing.T) {
	b := bodySites(t)
	b.IsA("limb", "body")
	c := b.Closure()

	concepts := b.Store().Concepts()
	for _, x := range concepts {
		for _, y := range concepts {
			for _, z := range concepts {
				if c.IsAncestorOf(x, y) && c.IsAncestorOf(y, z) {
					assert.True(t, c.IsAncestorOf(x, z), "%s > %s > %s", x.ID, y.ID, z.ID)
				}
			}
		}
	}
}

func TestClosure_MostSpecific(t *testing.T) {
	b := bodySites(t)
	c := b.Closure()
	foot := b.Concept("foot", "")
	toe := b.Concept("toe", "")
	heel := b.Concept("heel", "")
	limb := b.Concept("limb", "")

	tests := []struct {
		name  string
		input []*graph.Concept
		want  []*graph.Concept
	}{
		{name: "parent and child keep child", input: []*graph.Concept{foot, toe}, want: []*graph.Concept{toe}},
		{name: "siblings are both kept", input: []*graph.Concept{toe, heel}, want: []*graph.Concept{toe, heel}},
		{name: "chain keeps leaf", input: []*graph.Concept{limb, foot, heel}, want: []*graph.Concept{heel}},
		{name: "duplicates collapse", input: []*graph.Concept{toe, toe}, want: []*graph.Concept{toe}},
		{name: "empty", input: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.MostSpecific(tt.input))
		})
	}
}

func TestClosure_CycleDoesNotHang(t *testing.T) {
	b := graphtest.New(t)
	b.IsA("a", "b")
	b.IsA("b", "a")
	c := b.Closure()

	assert.Equal(t, []string{"b"}, c.Ancestors("a"))
}

func TestClosure_ConcurrentReads(t *testing.T) {
	b := bodySites(t)
	c := b.Closure()
	toe := b.Concept("toe", "")
	limb := b.Concept("limb", "")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, c.IsAncestorOf(limb, toe))
			assert.Len(t, c.Descendants("limb"), 4)
		}()
	}
	wg.Wait()
}

func TestClosure_IgnoresOtherCharacteristic(t *testing.T) {
	b := graphtest.New(t)
	b.Inferred("child", snomed.IsA, "parent", 0)

	stated := graph.NewClosure(b.Store(), graph.Stated)
	inferred := graph.NewClosure(b.Store(), graph.Inferred)

	assert.Empty(t, stated.Ancestors("child"))
	assert.Equal(t, []string{"parent"}, inferred.Ancestors("child"))
	assert.Equal(t, graph.Inferred, inferred.Characteristic())
}
