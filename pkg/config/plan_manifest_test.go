package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/LENAX/grade-engine/pkg/core/dag"
	"github.com/LENAX/grade-engine/pkg/core/executor"
	"github.com/LENAX/grade-engine/pkg/core/registry"
	"github.com/LENAX/grade-engine/pkg/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestYAML = `
name: readme-check
description: README 检查
input: repo
nodes:
  - id: has-readme
    role: evaluator
    func: fs.exists
    params:
      path: "README*"
      points: "2"
    after: [tree]
  - id: dir
    role: context
    func: subject.dir
    after: [repo]
  - id: tree
    role: context
    func: fs.tree
    after: [dir]
`

func TestParsePlanManifest_BuildAndGrade(t *testing.T) {
	m, err := ParsePlanManifest([]byte(manifestYAML))
	require.NoError(t, err)
	assert.Equal(t, "readme-check", m.Name)
	require.Len(t, m.Nodes, 3)

	g, err := m.BuildGraph(registry.NewWithBuiltins())
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{"repo", "has-readme", "dir", "tree"}, g.Nodes())

	s, err := dag.Compile(g)
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{"repo", "dir", "tree", "has-readme"}, s.Order())

	subject := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(subject, "README.md"), []byte("hi"), 0o644))

	records, err := executor.NewPlan(s).Grade(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "has-readme", records[0].Criterion)
	assert.Equal(t, 2.0, records[0].Value)
}

func TestLoadPlanManifest(t *testing.T) {
	path := writeFile(t, t.TempDir(), "plan.yaml", manifestYAML)
	m, err := LoadPlanManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "repo", m.Input)

	_, err = LoadPlanManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParsePlanManifest_Invalid(t *testing.T) {
	cases := map[string]string{
		"no name":      "nodes:\n  - {id: a, role: input}\n",
		"no nodes":     "name: x\n",
		"bad role":     "name: x\nnodes:\n  - {id: a, role: grader, func: f}\n",
		"missing func": "name: x\nnodes:\n  - {id: a, role: context}\n",
		"unknown key":  "name: x\nweights: 3\nnodes:\n  - {id: a, role: input}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlanManifest([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestBuildGraph_Errors(t *testing.T) {
	reg := registry.NewWithBuiltins()

	m, err := ParsePlanManifest([]byte("name: x\ninput: repo\nnodes:\n  - {id: a, role: context, func: nope, after: [repo]}\n"))
	require.NoError(t, err)
	_, err = m.BuildGraph(reg)
	assert.ErrorIs(t, err, registry.ErrFunctionNotFound)

	m, err = ParsePlanManifest([]byte("name: x\ninput: repo\nnodes:\n  - {id: a, role: context, func: subject.dir, after: [ghost]}\n"))
	require.NoError(t, err)
	_, err = m.BuildGraph(reg)
	assert.Error(t, err)

	_, err = m.BuildGraph(nil)
	assert.Error(t, err)
}

func TestBuildGraph_StructuralErrorsSurfaceAtCompile(t *testing.T) {
	m, err := ParsePlanManifest([]byte(`
name: cyclic
input: repo
nodes:
  - {id: a, role: context, func: subject.dir, after: [repo, b]}
  - {id: b, role: context, func: subject.dir, after: [a]}
`))
	require.NoError(t, err)
	g, err := m.BuildGraph(registry.NewWithBuiltins())
	require.NoError(t, err)

	_, err = dag.Compile(g)
	assert.ErrorIs(t, err, dag.ErrCycleDetected)
}
