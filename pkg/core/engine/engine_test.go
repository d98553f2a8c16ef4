package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LENAX/grade-engine/pkg/core/dag"
	"github.com/LENAX/grade-engine/pkg/core/events"
	"github.com/LENAX/grade-engine/pkg/core/executor"
	"github.com/LENAX/grade-engine/pkg/core/graph"
	"github.com/LENAX/grade-engine/pkg/core/types"
	"github.com/LENAX/grade-engine/pkg/storage"
	"github.com/LENAX/grade-engine/pkg/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shoutGraph 大写化评分对象，按长度打分；空字符串在上下文阶段失败
func shoutGraph(t *testing.T, name string) *graph.Graph {
	t.Helper()
	g, err := graph.NewBuilder(name).
		Input("subject").
		Context("upper", func(p types.Pass) (any, error) {
			s, err := types.ValueAs[string](p, "subject")
			if err != nil {
				return nil, err
			}
			if s == "" {
				return nil, errors.New("评分对象为空")
			}
			return strings.ToUpper(s), nil
		}, "subject").
		Evaluator("length", func(p types.Pass) (types.ScoreRecord, error) {
			s, err := types.ValueAs[string](p, "upper")
			if err != nil {
				return types.ScoreRecord{}, err
			}
			return types.ScoreRecord{Criterion: "length", Value: float64(len(s)), Justification: s}, nil
		}, "upper").
		Evaluator("present", func(p types.Pass) (types.ScoreRecord, error) {
			return types.ScoreRecord{Criterion: "present", Value: 1}, nil
		}, "upper").
		Build()
	require.NoError(t, err)
	return g
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, storage.RunRepository, *events.Bus) {
	t.Helper()
	repo, err := sqlite.NewRunRepoFromDSN(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	bus := events.NewBus()

	opts = append([]Option{WithRunRepository(repo), WithEventBus(bus)}, opts...)
	eng := NewEngine(opts...)
	require.NoError(t, eng.RegisterPlan("shout", shoutGraph(t, "shout")))
	t.Cleanup(eng.Stop)
	return eng, repo, bus
}

func collect(t *testing.T, ch <-chan *events.GradeEvent, n int) []*events.GradeEvent {
	t.Helper()
	out := make([]*events.GradeEvent, 0, n)
	for len(out) < n {
		select {
		case e := <-ch:
			out = append(out, e)
		case <-time.After(2 * time.Second):
			t.Fatalf("等待事件超时: 已收到 %d/%d", len(out), n)
		}
	}
	return out
}

func eventTypes(es []*events.GradeEvent) []events.EventType {
	out := make([]events.EventType, len(es))
	for i, e := range es {
		out[i] = e.Type
	}
	return out
}

func TestEngine_RegisterPlan(t *testing.T) {
	eng := NewEngine()

	require.NoError(t, eng.RegisterPlan("", shoutGraph(t, "by-graph-name")))
	err := eng.RegisterPlan("by-graph-name", shoutGraph(t, "other"))
	assert.ErrorIs(t, err, ErrPlanExists)

	broken := graph.New("broken")
	require.NoError(t, broken.AddNode("a", graph.Input()))
	require.NoError(t, broken.AddNode("b", graph.Input()))
	err = eng.RegisterPlan("broken", broken)
	assert.ErrorIs(t, err, dag.ErrGraphInvalid)
	assert.ErrorIs(t, err, dag.ErrMissingOrAmbiguousRoot)

	infos := eng.Plans()
	require.Len(t, infos, 1)
	assert.Equal(t, "by-graph-name", infos[0].Name)
	assert.Equal(t, types.NodeID("subject"), infos[0].Input)
	assert.Equal(t, []types.NodeID{"subject", "upper", "length", "present"}, infos[0].Order)
	assert.Equal(t, 1, infos[0].Contexts)
	assert.Equal(t, 2, infos[0].Evaluators)
	assert.Equal(t, 3, infos[0].Edges)
}

func TestEngine_GradeSucceeded(t *testing.T) {
	eng, _, bus := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	run, err := eng.Grade(ctx, "shout", "abc")
	require.NoError(t, err)
	assert.Equal(t, storage.RunSucceeded, run.Status)
	assert.Equal(t, "abc", run.Subject)
	assert.Equal(t, 4.0, run.Total)
	assert.Equal(t, []types.ScoreRecord{
		{Criterion: "length", Value: 3, Justification: "ABC"},
		{Criterion: "present", Value: 1},
	}, run.Scores)

	stored, err := eng.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, run.Scores, stored.Scores)

	got := collect(t, ch, 2)
	assert.ElementsMatch(t, []events.EventType{events.EventPassStarted, events.EventPassSucceeded}, eventTypes(got))
	for _, e := range got {
		if e.Type == events.EventPassSucceeded {
			assert.Equal(t, run.ID, e.RunID)
		}
	}
}

func TestEngine_GradeFailed(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	run, err := eng.Grade(context.Background(), "shout", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, executor.ErrContextInit)

	require.NotNil(t, run)
	assert.Equal(t, storage.RunFailed, run.Status)
	assert.Equal(t, "upper", run.FailedNode)
	assert.Equal(t, "context_init", run.ErrorKind)
	assert.Empty(t, run.Scores)
	assert.Zero(t, run.Total)

	stored, err := eng.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunFailed, stored.Status)
	assert.Equal(t, "upper", stored.FailedNode)
}

func TestEngine_GradeUnknownPlan(t *testing.T) {
	eng := NewEngine()
	_, err := eng.Grade(context.Background(), "missing", "x")
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = eng.GradeBatch(context.Background(), "missing", []string{"x"})
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestEngine_GradeBatch(t *testing.T) {
	eng, _, bus := newTestEngine(t, WithWorkers(3))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finished, err := bus.Subscribe(ctx, events.EventBatchFinished)
	require.NoError(t, err)

	subjects := make([]string, 0, 10)
	for i := 0; i < 9; i++ {
		subjects = append(subjects, fmt.Sprintf("s%d", i))
	}
	subjects = append(subjects, "")

	result, err := eng.GradeBatch(ctx, "shout", subjects)
	require.NoError(t, err)
	assert.Equal(t, 9, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Runs, len(subjects))
	for i, run := range result.Runs {
		assert.Equal(t, subjects[i], run.Subject)
	}
	assert.Equal(t, storage.RunFailed, result.Runs[9].Status)

	runs, err := eng.ListRuns(ctx, "shout", 0)
	require.NoError(t, err)
	assert.Len(t, runs, len(subjects))

	got := collect(t, finished, 1)
	assert.Equal(t, events.EventBatchFinished, got[0].Type)
}

func TestEngine_SortScores(t *testing.T) {
	eng := NewEngine(WithSortScores(true))
	g, err := graph.NewBuilder("sorted").
		Input("in").
		Evaluator("z", func(types.Pass) (types.ScoreRecord, error) {
			return types.ScoreRecord{Criterion: "zeta", Value: 1}, nil
		}, "in").
		Evaluator("a", func(types.Pass) (types.ScoreRecord, error) {
			return types.ScoreRecord{Criterion: "alpha", Value: 2}, nil
		}, "in").
		Build()
	require.NoError(t, err)
	require.NoError(t, eng.RegisterPlan("sorted", g))

	run, err := eng.Grade(context.Background(), "sorted", "x")
	require.NoError(t, err)
	require.Len(t, run.Scores, 2)
	assert.Equal(t, "alpha", run.Scores[0].Criterion)
	assert.Equal(t, "zeta", run.Scores[1].Criterion)
}

func TestEngine_WithoutRepository(t *testing.T) {
	eng := NewEngine()
	require.NoError(t, eng.RegisterPlan("shout", shoutGraph(t, "shout")))

	run, err := eng.Grade(context.Background(), "shout", "a")
	require.NoError(t, err)

	stored, err := eng.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	runs, err := eng.ListRuns(context.Background(), "shout", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestEngine_StartStop(t *testing.T) {
	eng := NewEngine()
	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Start(context.Background()))
	assert.True(t, eng.IsRunning())

	eng.Stop()
	eng.Stop()
	assert.False(t, eng.IsRunning())
	assert.ErrorIs(t, eng.Start(context.Background()), ErrEngineStopped)
}

func TestEngine_GradeAfterStop(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	// 未 Start 的引擎可以直接评分
	run, err := eng.Grade(context.Background(), "shout", "ab")
	require.NoError(t, err)
	require.NotNil(t, run)

	eng.Stop()

	run, err = eng.Grade(context.Background(), "shout", "cd")
	assert.ErrorIs(t, err, ErrEngineStopped)
	assert.Nil(t, run)

	batch, err := eng.GradeBatch(context.Background(), "shout", []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEngineStopped)
	assert.Nil(t, batch)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "context_init", ErrorKind(&executor.EngineError{Kind: executor.ErrContextInit, Node: "a", Cause: errors.New("x")}))
	assert.Equal(t, "evaluator", ErrorKind(&executor.EngineError{Kind: executor.ErrEvaluator, Node: "a", Cause: errors.New("x")}))
	assert.Equal(t, "node_panic", ErrorKind(&executor.EngineError{Kind: executor.ErrEvaluator, Node: "a", Cause: executor.ErrNodePanic}))
	assert.Equal(t, "undeclared_prerequisite", ErrorKind(&executor.EngineError{Kind: executor.ErrEvaluator, Node: "a", Cause: executor.ErrUndeclaredPrerequisite}))
	assert.Equal(t, "unknown", ErrorKind(errors.New("other")))
}
