package executor

import (
	"context"
	"reflect"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

// Outcome 单个评分对象的结果（对外导出）
type Outcome struct {
	Input      any
	Scores     []types.ScoreRecord
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK 是否评分成功
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Total 总分，失败时为 0
func (o Outcome) Total() float64 {
	return types.TotalScore(o.Scores)
}

// Outcomes 批量结果，顺序与输入一致
type Outcomes []Outcome

// Lookup 按输入查找结果；输入不可比较时返回 false
func (os Outcomes) Lookup(input any) (Outcome, bool) {
	if input == nil || !reflect.TypeOf(input).Comparable() {
		return Outcome{}, false
	}
	for _, o := range os {
		if o.Input == nil || !reflect.TypeOf(o.Input).Comparable() {
			continue
		}
		if o.Input == input {
			return o, true
		}
	}
	return Outcome{}, false
}

// Succeeded 成功数量
func (os Outcomes) Succeeded() int {
	n := 0
	for _, o := range os {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed 失败的结果
func (os Outcomes) Failed() Outcomes {
	out := make(Outcomes, 0)
	for _, o := range os {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Inputs 把任意切片转为 GradeAll 的输入
func Inputs[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// GradeAll 在同一个 Plan 上顺序评分（对外导出）
// 每个输入的结果独立记录，单个失败不影响其余输入
func (p *Plan) GradeAll(ctx context.Context, inputs []any) Outcomes {
	out := make(Outcomes, len(inputs))
	for i, in := range inputs {
		out[i] = p.outcome(ctx, in)
	}
	return out
}

// GradeAllParallel 并行批量评分（对外导出）
// 每个 worker 持有一个独立的 Clone，结果顺序与输入一致
func (p *Plan) GradeAllParallel(ctx context.Context, inputs []any, workers int) Outcomes {
	if workers > len(inputs) {
		workers = len(inputs)
	}
	if workers <= 1 {
		return p.GradeAll(ctx, inputs)
	}

	out := make(Outcomes, len(inputs))
	jobs := make(chan int)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		worker := p.Clone()
		g.Go(func() error {
			for i := range jobs {
				out[i] = worker.outcome(ctx, inputs[i])
			}
			return nil
		})
	}
	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	_ = g.Wait()
	return out
}

func (p *Plan) outcome(ctx context.Context, input any) Outcome {
	started := time.Now()
	scores, err := p.Grade(ctx, input)
	return Outcome{Input: input, Scores: scores, Err: err, StartedAt: started, FinishedAt: time.Now()}
}
