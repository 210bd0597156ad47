package template_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semremodel/graph/graphtest"
	"github.com/c360studio/semremodel/template"
)

const infectionYAML = `
name: infection-by-organism
description: Infectious disease of a body site
ungrouped:
  - type: pathological-process
    value: infectious-process
groups:
  - cardinality: "1..*"
    attributes:
      - type: causative-agent
      - type: finding-site
`

func snapshot(t *testing.T) *graphtest.Builder {
	b := graphtest.New(t)
	for _, id := range []string{"pathological-process", "infectious-process", "causative-agent", "finding-site", "morphology"} {
		b.Concept(id, "")
	}
	return b
}

func TestCardinality(t *testing.T) {
	tests := []struct {
		in         string
		want       string
		optional   bool
		additional bool
		wantErr    bool
	}{
		{in: "", want: "1..1"},
		{in: "0..1", want: "0..1", optional: true},
		{in: "1..*", want: "1..*", additional: true},
		{in: "0..*", want: "0..*", optional: true, additional: true},
		{in: "2", want: "2..2", additional: true},
		{in: "1..3", want: "1..3", additional: true},
		{in: "3..1", wantErr: true},
		{in: "x..1", wantErr: true},
		{in: "-1..1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := template.ParseCardinality(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
			assert.Equal(t, tt.optional, c.Optional())
			assert.Equal(t, tt.additional, c.AllowsAdditional())
		})
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "groups: [{attributes: [{type: a}]}]",
			wantErr: "name is required",
		},
		{
			name:    "no groups",
			yaml:    "name: x",
			wantErr: "no groups",
		},
		{
			name:    "bad cardinality",
			yaml:    "name: x\ngroups: [{cardinality: '2..1', attributes: [{type: a}]}]",
			wantErr: "group 1",
		},
		{
			name:    "repeated type",
			yaml:    "name: x\ngroups: [{attributes: [{type: a}, {type: a}]}]",
			wantErr: "appears twice",
		},
		{
			name:    "empty group",
			yaml:    "name: x\ngroups: [{attributes: []}]",
			wantErr: "no attributes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := template.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, template.ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolve(t *testing.T) {
	b := snapshot(t)
	def, err := template.Parse([]byte(infectionYAML))
	require.NoError(t, err)

	tmpl, err := template.Resolve(def, b.Store())
	require.NoError(t, err)

	assert.Equal(t, "infection-by-organism", tmpl.Name())
	assert.Equal(t, 2, tmpl.Len())

	zero := tmpl.Group(0)
	require.Len(t, zero.Attributes, 1)
	assert.True(t, zero.Attributes[0].IsFixed())
	assert.Equal(t, "infectious-process", zero.Attributes[0].Value.ID)

	g1 := tmpl.Group(1)
	assert.Equal(t, "1..*", g1.Cardinality.String())
	assert.False(t, g1.Attributes[0].IsFixed())

	agent := b.Concept("causative-agent", "")
	process := b.Concept("pathological-process", "")
	assert.True(t, tmpl.IsGroupedOnly(agent))
	assert.False(t, tmpl.IsUngroupedOnly(agent))
	assert.True(t, tmpl.IsUngroupedOnly(process))
	assert.False(t, tmpl.IsGroupedOnly(b.Concept("morphology", "")))
}

func TestResolve_ReportsAllUnknownConcepts(t *testing.T) {
	b := graphtest.New(t)
	b.Concept("finding-site", "")
	def, err := template.Parse([]byte(infectionYAML))
	require.NoError(t, err)

	_, err = template.Resolve(def, b.Store())
	require.Error(t, err)
	assert.ErrorIs(t, err, template.ErrUnknownConcept)
	for _, id := range []string{"pathological-process", "infectious-process", "causative-agent"} {
		assert.Contains(t, err.Error(), id)
	}
	assert.NotContains(t, err.Error(), "finding-site")
}

func TestReorder_LeavesSharedTemplateUntouched(t *testing.T) {
	b := snapshot(t)
	def := &template.Definition{
		Name: "two-groups",
		Groups: []template.GroupDefinition{
			{Attributes: []template.AttributeDefinition{{Type: "finding-site"}}},
			{Attributes: []template.AttributeDefinition{{Type: "morphology"}}},
		},
	}
	tmpl, err := template.Resolve(def, b.Store())
	require.NoError(t, err)

	swapped, err := tmpl.Reorder([]int{2, 1})
	require.NoError(t, err)
	assert.Equal(t, "morphology", swapped.Group(1).Attributes[0].Type.ID)
	assert.Equal(t, "finding-site", tmpl.Group(1).Attributes[0].Type.ID)

	_, err = tmpl.Reorder([]int{1, 1})
	assert.Error(t, err)
	_, err = tmpl.Reorder([]int{1})
	assert.Error(t, err)
}

func TestRegistry_LoadDir(t *testing.T) {
	b := snapshot(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "disorders"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "disorders", "infection.yaml"), []byte(infectionYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.yaml"),
		[]byte("name: site-only\ngroups: [{attributes: [{type: finding-site}]}]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	reg := template.NewRegistry(nil)
	require.NoError(t, reg.LoadDir(dir, "", b.Store()))

	assert.Equal(t, []string{"infection-by-organism", "site-only"}, reg.Names())
	got, err := reg.Get("site-only")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, filepath.Join(dir, "site.yaml"), reg.Source("site-only"))

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, template.ErrNotFound)
}

func TestRegistry_FailedLoadKeepsPreviousSet(t *testing.T) {
	b := snapshot(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "infection.yaml")
	require.NoError(t, os.WriteFile(path, []byte(infectionYAML), 0o644))

	reg := template.NewRegistry(nil)
	require.NoError(t, reg.LoadDir(dir, "", b.Store()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"),
		[]byte("name: broken\ngroups: [{attributes: [{type: nowhere}]}]"), 0o644))
	err := reg.LoadDir(dir, "", b.Store())
	require.Error(t, err)
	assert.ErrorIs(t, err, template.ErrUnknownConcept)
	assert.Equal(t, []string{"infection-by-organism"}, reg.Names())
}

func TestRegistry_DuplicateNames(t *testing.T) {
	b := snapshot(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(infectionYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(infectionYAML), 0o644))

	err := template.NewRegistry(nil).LoadDir(dir, "", b.Store())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already defined")
}
