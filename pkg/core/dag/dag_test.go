package dag

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/LENAX/grade-engine/pkg/core/graph"
	"github.com/LENAX/grade-engine/pkg/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctxFn(types.Pass) (any, error) { return nil, nil }

func evalFn(types.Pass) (types.ScoreRecord, error) { return types.ScoreRecord{}, nil }

func requireInvalid(t *testing.T, err error, kind error, node types.NodeID) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraphInvalid)
	assert.ErrorIs(t, err, kind)

	var gi *GraphInvalidError
	require.True(t, errors.As(err, &gi), "期望 GraphInvalidError，实际: %v", err)
	assert.Equal(t, node, gi.Node)
}

func assertEdgesRespected(t *testing.T, g *graph.Graph, s *Schedule) {
	t.Helper()
	for _, e := range g.Edges() {
		assert.Less(t, s.Position(e[0]), s.Position(e[1]), "边 %s -> %s 顺序错误", e[0], e[1])
	}
}

func TestCompile_LinearChain(t *testing.T) {
	g, err := graph.NewBuilder("linear").
		Input("in").
		Context("a", ctxFn, "in").
		Evaluator("x", evalFn, "a").
		Build()
	require.NoError(t, err)

	s, err := Compile(g)
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{"in", "a", "x"}, s.Order())
	assert.Equal(t, types.NodeID("in"), s.Input())
	assert.Equal(t, []types.NodeID{"in"}, s.Roots())
	assert.Equal(t, []types.NodeID{"a"}, s.Contexts())
	assert.Equal(t, []types.NodeID{"x"}, s.Evaluators())
	assert.Equal(t, 2, s.EdgeCount())
}

func TestCompile_DiamondRespectsEdges(t *testing.T) {
	g, err := graph.NewBuilder("diamond").
		Input("in").
		Context("left", ctxFn, "in").
		Context("right", ctxFn, "in").
		Context("join", ctxFn, "left", "right").
		Evaluator("x", evalFn, "join", "left").
		Evaluator("y", evalFn, "right").
		Build()
	require.NoError(t, err)

	s, err := Compile(g)
	require.NoError(t, err)
	assertEdgesRespected(t, g, s)
	assert.Equal(t, []types.NodeID{"in", "left", "right", "join", "y", "x"}, s.Order())
	assert.Equal(t, []types.NodeID{"left", "join"}, s.Prerequisites("x"))
	assert.Equal(t, []types.NodeID{"join", "x"}, s.Dependents("left"))
}

func TestCompile_TiesBrokenByRegistrationOrder(t *testing.T) {
	// 后继按注册顺序入队，而不是按加边顺序
	g := graph.New("ties")
	require.NoError(t, g.AddNode("in", graph.Input()))
	require.NoError(t, g.AddNode("first", graph.Context(ctxFn)))
	require.NoError(t, g.AddNode("second", graph.Context(ctxFn)))
	require.NoError(t, g.AddEdge("in", "second"))
	require.NoError(t, g.AddEdge("in", "first"))

	s, err := Compile(g)
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{"in", "first", "second"}, s.Order())
}

func TestCompile_Deterministic(t *testing.T) {
	build := func() *graph.Graph {
		b := graph.NewBuilder("wide").Input("in")
		for i := 0; i < 20; i++ {
			id := types.NodeID(fmt.Sprintf("ctx-%02d", i))
			b.Context(id, ctxFn, "in")
			b.Evaluator(types.NodeID(fmt.Sprintf("eval-%02d", i)), evalFn, id)
		}
		g, err := b.Build()
		require.NoError(t, err)
		return g
	}

	first, err := Compile(build())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Compile(build())
		require.NoError(t, err)
		assert.Equal(t, first.Order(), again.Order())
	}
}

func TestCompile_CycleDetected(t *testing.T) {
	g, err := graph.NewBuilder("cycle").
		Input("in").
		Context("a", ctxFn, "in").
		Context("b", ctxFn, "a").
		Edge("b", "a").
		Evaluator("x", evalFn, "b").
		Build()
	require.NoError(t, err)

	_, err = Compile(g)
	requireInvalid(t, err, ErrCycleDetected, "a")
}

func TestCompile_SelfLoop(t *testing.T) {
	g, err := graph.NewBuilder("self").
		Input("in").
		Context("a", ctxFn, "in").
		Edge("a", "a").
		Build()
	require.NoError(t, err)

	_, err = Compile(g)
	requireInvalid(t, err, ErrCycleDetected, "a")
}

func TestCompile_UnreachableIsolatedNode(t *testing.T) {
	g, err := graph.NewBuilder("isolated").
		Input("in").
		Context("a", ctxFn, "in").
		Evaluator("x", evalFn, "a").
		Context("z", ctxFn).
		Build()
	require.NoError(t, err)

	_, err = Compile(g)
	requireInvalid(t, err, ErrUnreachableNode, "z")
}

func TestCompile_UnreachableCycleReportedAsUnreachable(t *testing.T) {
	g, err := graph.NewBuilder("island").
		Input("in").
		Evaluator("x", evalFn, "in").
		Context("p", ctxFn).
		Context("q", ctxFn, "p").
		Edge("q", "p").
		Build()
	require.NoError(t, err)

	_, err = Compile(g)
	requireInvalid(t, err, ErrUnreachableNode, "p")
}

func TestCompile_MissingRoot(t *testing.T) {
	g, err := graph.NewBuilder("no-input").
		Context("a", ctxFn).
		Evaluator("x", evalFn, "a").
		Build()
	require.NoError(t, err)

	_, err = Compile(g)
	requireInvalid(t, err, ErrMissingOrAmbiguousRoot, "")
}

func TestCompile_EmptyGraph(t *testing.T) {
	_, err := Compile(graph.New("empty"))
	requireInvalid(t, err, ErrMissingOrAmbiguousRoot, "")

	_, err = Compile(nil)
	assert.ErrorIs(t, err, ErrMissingOrAmbiguousRoot)
}

func TestCompile_AmbiguousRoot(t *testing.T) {
	g, err := graph.NewBuilder("two-inputs").
		Input("in").
		Input("other").
		Evaluator("x", evalFn, "in", "other").
		Build()
	require.NoError(t, err)

	_, err = Compile(g)
	requireInvalid(t, err, ErrMissingOrAmbiguousRoot, "other")
}

func TestCompile_InputWithPrerequisite(t *testing.T) {
	g, err := graph.NewBuilder("input-has-parent").
		Input("in").
		Context("a", ctxFn, "in").
		Edge("a", "in").
		Build()
	require.NoError(t, err)

	_, err = Compile(g)
	requireInvalid(t, err, ErrMissingOrAmbiguousRoot, "in")
}

func TestCompile_UnknownNodeKind(t *testing.T) {
	cases := map[string]graph.Node{
		"zero":          {},
		"nil-factory":   graph.Context(nil),
		"nil-evaluator": graph.Evaluator(nil),
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			g, err := graph.NewBuilder(name).
				Input("in").
				Node("bad", bad, "in").
				Build()
			require.NoError(t, err)

			_, err = Compile(g)
			requireInvalid(t, err, ErrUnknownNodeKind, "bad")
		})
	}
}

func TestCompile_DoesNotMutateGraph(t *testing.T) {
	g, err := graph.NewBuilder("pure").
		Input("in").
		Context("a", ctxFn, "in").
		Evaluator("x", evalFn, "a").
		Build()
	require.NoError(t, err)
	before := g.Edges()

	_, err = Compile(g)
	require.NoError(t, err)
	_, err = Compile(g)
	require.NoError(t, err)
	assert.Equal(t, before, g.Edges())
	assert.Equal(t, 1, g.InDegree("a"))
}

func TestCompile_InputRegisteredLast(t *testing.T) {
	g := graph.New("late-input")
	require.NoError(t, g.AddNode("c", graph.Context(ctxFn)))
	require.NoError(t, g.AddNode("e", graph.Evaluator(evalFn)))
	require.NoError(t, g.AddNode("in", graph.Input()))
	require.NoError(t, g.AddEdge("in", "c"))
	require.NoError(t, g.AddEdge("c", "e"))

	s, err := Compile(g)
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{"in", "c", "e"}, s.Order())
	assert.Equal(t, []types.NodeID{"in"}, s.Roots())
	assert.Equal(t, []types.NodeID{"c"}, s.Prerequisites("e"))
	assert.Equal(t, []types.NodeID{"e"}, s.Dependents("c"))
}

// randomGraph 按种子生成一个合法的图：节点 0 为输入，其余节点的前置均取自编号更小的节点，
// 注册顺序与加边顺序都被打乱
func randomGraph(t *testing.T, seed int64) *graph.Graph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	n := 2 + rng.Intn(24)
	id := func(i int) types.NodeID { return types.NodeID(fmt.Sprintf("n%02d", i)) }

	var edges [][2]int
	for i := 1; i < n; i++ {
		k := 1 + rng.Intn(3)
		if k > i {
			k = i
		}
		for _, p := range rng.Perm(i)[:k] {
			edges = append(edges, [2]int{p, i})
		}
	}

	g := graph.New(fmt.Sprintf("random-%d", seed))
	for _, i := range rng.Perm(n) {
		switch {
		case i == 0:
			require.NoError(t, g.AddNode(id(i), graph.Input()))
		case i%3 == 0:
			require.NoError(t, g.AddNode(id(i), graph.Evaluator(evalFn)))
		default:
			require.NoError(t, g.AddNode(id(i), graph.Context(ctxFn)))
		}
	}
	rng.Shuffle(len(edges), func(a, b int) { edges[a], edges[b] = edges[b], edges[a] })
	for _, e := range edges {
		require.NoError(t, g.AddEdge(id(e[0]), id(e[1])))
	}
	return g
}

func TestCompile_RandomGraphs(t *testing.T) {
	for seed := int64(1); seed <= 200; seed++ {
		g := randomGraph(t, seed)

		s, err := Compile(g)
		require.NoError(t, err, "seed=%d", seed)
		require.Equal(t, g.Len(), s.Len(), "seed=%d", seed)
		assert.Equal(t, types.NodeID("n00"), s.Order()[0], "seed=%d", seed)
		assert.Equal(t, []types.NodeID{"n00"}, s.Roots(), "seed=%d", seed)
		assertEdgesRespected(t, g, s)

		// go-dag 镜像中的前置关系与原图的边一致
		want := make(map[types.NodeID][]types.NodeID)
		for _, e := range g.Edges() {
			want[e[1]] = append(want[e[1]], e[0])
		}
		for _, id := range g.Nodes() {
			assert.ElementsMatch(t, want[id], s.Prerequisites(id), "seed=%d node=%s", seed, id)
		}

		again, err := Compile(randomGraph(t, seed))
		require.NoError(t, err, "seed=%d", seed)
		assert.Equal(t, s.Order(), again.Order(), "seed=%d", seed)
	}
}
