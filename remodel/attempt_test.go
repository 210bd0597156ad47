package remodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/graph/graphtest"
	"github.com/c360studio/semremodel/group"
	"github.com/c360studio/semremodel/template"
)

func TestAttempt_DiffRejectsLiveGroups(t *testing.T) {
	b := graphtest.New(t)
	c := b.Concept("disease", "")
	live := b.Stated("disease", "site", "foot", 1)
	b.Concept("morph", "")
	def, err := template.Parse([]byte("name: finding\ngroups:\n  - attributes:\n      - type: site\n      - type: morph\n"))
	require.NoError(t, err)
	tmpl, err := template.Resolve(def, b.Store())
	require.NoError(t, err)

	a := newAttempt(NewEngine(b.Store(), b.Closure()), c, tmpl)
	a.snapshot()
	for _, g := range a.groups {
		assert.True(t, g.IsTrial())
	}
	mutations, err := a.diff()
	require.NoError(t, err)
	assert.Empty(t, mutations)

	a.groups[1] = group.New(1, live)
	_, err = a.diff()
	assert.ErrorIs(t, err, graph.ErrInvariant)
}
