package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/LENAX/grade-engine/pkg/core/dag"
	"github.com/LENAX/grade-engine/pkg/core/executor"
	"github.com/LENAX/grade-engine/pkg/core/graph"
	"github.com/LENAX/grade-engine/pkg/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexHTML = `<html><head><title>Coffee</title></head>
<body><ul class="menu"><li>Espresso</li><li>Latte</li><li>Mocha</li></ul></body></html>`

func writeSubject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Coffee machine\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "site"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site", "index.html"), []byte(indexHTML), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref"), 0o644))
	return dir
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterContext("const", "常量", func(Params) (types.ContextFactory, error) {
		return func(types.Pass) (any, error) { return 1, nil }, nil
	}))
	err := r.RegisterContext("const", "重复", func(Params) (types.ContextFactory, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	f, err := r.Context("const", nil)
	require.NoError(t, err)
	assert.NotNil(t, f)

	_, err = r.Evaluator("missing", nil)
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestRegistry_Names(t *testing.T) {
	r := NewWithBuiltins()
	names := r.Names()
	require.Len(t, names, 6)
	assert.Equal(t, "fs.file", names[0].Name)
	assert.Equal(t, "context", names[0].RoleName)
	assert.Equal(t, "fs.exists", names[3].Name)
	assert.Equal(t, "evaluator", names[3].RoleName)
}

func TestParams(t *testing.T) {
	p := Params{"points": "2.5", "min": "x", "empty": ""}
	assert.Equal(t, "def", p.Get("empty", "def"))

	f, err := p.Float("points", 1)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	_, err = p.Int("min", 1)
	assert.Error(t, err)

	_, err = p.Require("selector")
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestBuiltins_RejectBadParams(t *testing.T) {
	r := NewWithBuiltins()

	_, err := r.Evaluator("text.contains", Params{"from": "readme", "pattern": "("})
	assert.Error(t, err)

	_, err = r.Evaluator("html.selector", Params{"from": "page"})
	assert.ErrorIs(t, err, ErrMissingParam)

	_, err = r.Context("fs.tree", Params{})
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestBuiltins_GradeDirectory(t *testing.T) {
	r := NewWithBuiltins()
	ctxOf := func(name string, params Params) types.ContextFactory {
		f, err := r.Context(name, params)
		require.NoError(t, err)
		return f
	}
	evalOf := func(name string, params Params) types.Evaluator {
		e, err := r.Evaluator(name, params)
		require.NoError(t, err)
		return e
	}

	g, err := graph.NewBuilder("coffee").
		Input("repo").
		Context("dir", ctxOf("subject.dir", nil), "repo").
		Context("tree", ctxOf("fs.tree", Params{"from": "dir"}), "dir").
		Context("readme", ctxOf("fs.file", Params{"from": "dir", "path": "README.md"}), "dir").
		Context("page", ctxOf("fs.file", Params{"from": "dir", "path": "site/index.html"}), "dir").
		Evaluator("has-readme", evalOf("fs.exists", Params{"from": "tree", "path": "README*"}), "tree").
		Evaluator("no-git", evalOf("fs.exists", Params{"from": "tree", "path": ".git/*"}), "tree").
		Evaluator("title", evalOf("text.contains", Params{"from": "readme", "pattern": "(?i)coffee", "points": "2"}), "readme").
		Evaluator("menu", evalOf("html.selector", Params{"from": "page", "selector": "ul.menu li", "min": "3", "criterion": "menu items"}), "page").
		Evaluator("latte", evalOf("html.selector", Params{"from": "page", "selector": "li", "text": "Latte"}), "page").
		Build()
	require.NoError(t, err)
	s, err := dag.Compile(g)
	require.NoError(t, err)
	plan := executor.NewPlan(s, executor.WithComparator(executor.ByCriterion))

	records, err := plan.Grade(context.Background(), writeSubject(t))
	require.NoError(t, err)

	got := make(map[string]float64)
	for _, rec := range records {
		got[rec.Criterion] = rec.Value
	}
	assert.Equal(t, map[string]float64{
		"has-readme": 1,
		"no-git":     0,
		"title":      2,
		"menu items": 1,
		"latte":      1,
	}, got)
	assert.Equal(t, 5.0, types.TotalScore(records))
}

func TestBuiltins_MissingDirectoryFailsPass(t *testing.T) {
	r := NewWithBuiltins()
	dirCtx, err := r.Context("subject.dir", Params{"root": t.TempDir()})
	require.NoError(t, err)

	g, err := graph.NewBuilder("missing").
		Input("repo").
		Context("dir", dirCtx, "repo").
		Evaluator("noop", func(types.Pass) (types.ScoreRecord, error) { return types.ScoreRecord{}, nil }, "dir").
		Build()
	require.NoError(t, err)
	s, err := dag.Compile(g)
	require.NoError(t, err)

	_, err = executor.NewPlan(s).Grade(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, executor.ErrContextInit)
}

func TestBuiltins_OptionalFile(t *testing.T) {
	r := NewWithBuiltins()
	f, err := r.Context("fs.file", Params{"from": "dir", "path": "LICENSE", "optional": "true"})
	require.NoError(t, err)
	dirCtx, err := r.Context("subject.dir", nil)
	require.NoError(t, err)
	e, err := r.Evaluator("text.contains", Params{"from": "license", "pattern": "MIT"})
	require.NoError(t, err)

	g, err := graph.NewBuilder("optional").
		Input("repo").
		Context("dir", dirCtx, "repo").
		Context("license", f, "dir").
		Evaluator("mit", e, "license").
		Build()
	require.NoError(t, err)
	s, err := dag.Compile(g)
	require.NoError(t, err)

	records, err := executor.NewPlan(s).Grade(context.Background(), writeSubject(t))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0.0, records[0].Value)
}
