package executor

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/LENAX/grade-engine/pkg/core/cache"
	"github.com/LENAX/grade-engine/pkg/core/dag"
	"github.com/LENAX/grade-engine/pkg/core/types"
)

// Plan 可重复执行的评分计划（对外导出）
// schedule 只读，可在多个 Plan 之间共享；memos 为本 Plan 私有的可变状态。
// 同一 Plan 上的 Grade 调用由互斥锁串行化；需要并行时使用 Clone。
type Plan struct {
	mu       sync.Mutex
	schedule *dag.Schedule
	prereqs  map[types.NodeID]map[types.NodeID]struct{}
	memos    map[types.NodeID]*cache.Memo
	opts     options
}

// NewPlan 基于编译结果创建 Plan（对外导出）
func NewPlan(s *dag.Schedule, opts ...Option) *Plan {
	if s == nil {
		panic("executor: schedule 不能为空")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	prereqs := make(map[types.NodeID]map[types.NodeID]struct{}, s.Len())
	for _, id := range s.Order() {
		set := make(map[types.NodeID]struct{})
		for _, dep := range s.Prerequisites(id) {
			set[dep] = struct{}{}
		}
		prereqs[id] = set
	}
	return newPlan(s, prereqs, o)
}

func newPlan(s *dag.Schedule, prereqs map[types.NodeID]map[types.NodeID]struct{}, o options) *Plan {
	memos := make(map[types.NodeID]*cache.Memo)
	for _, id := range s.Contexts() {
		n, _ := s.Node(id)
		memos[id] = cache.NewMemo(n.Factory())
	}
	return &Plan{
		schedule: s,
		prereqs:  prereqs,
		memos:    memos,
		opts:     o,
	}
}

// Clone 共享 schedule，创建一组全新的上下文缓存
func (p *Plan) Clone() *Plan {
	return newPlan(p.schedule, p.prereqs, p.opts)
}

// Name 计划名称（即图名称）
func (p *Plan) Name() string {
	return p.schedule.Name()
}

// Schedule 编译结果
func (p *Plan) Schedule() *dag.Schedule {
	return p.schedule
}

// ContextCalls 某个上下文节点的原始工厂累计调用次数，非上下文节点返回 0
func (p *Plan) ContextCalls(id types.NodeID) int {
	if m, ok := p.memos[id]; ok {
		return m.Calls()
	}
	return 0
}

// Grade 对一个评分对象执行完整的一轮评分（对外导出）
// 任意节点失败都会终止本轮并返回 *EngineError，不返回部分结果。
// 无论成功与否，返回前都会 Clear 全部上下文节点。
// ctx 仅透传给节点，引擎本身不做超时或取消控制。
func (p *Plan) Grade(ctx context.Context, input any) ([]types.ScoreRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.opts.hooks.start(ctx, p.Name(), input)
	records, err := p.replay(ctx, input)
	p.opts.hooks.end(ctx, p.Name(), input, records, err)
	return records, err
}

func (p *Plan) replay(ctx context.Context, input any) ([]types.ScoreRecord, error) {
	defer p.clearAll()

	r := &run{
		plan:     p,
		ctx:      ctx,
		subject:  input,
		produced: make(map[types.NodeID]types.ScoreRecord),
	}
	records := make([]types.ScoreRecord, 0, len(p.schedule.Evaluators()))

	for _, id := range p.schedule.Order() {
		if id == p.schedule.Input() {
			continue
		}
		node, _ := p.schedule.Node(id)
		ps := r.passFor(id)

		switch node.Role() {
		case types.RoleContext:
			memo := p.memos[id]
			if err := invoke(func() error { return memo.Init(ps) }); err != nil {
				return nil, &EngineError{Kind: ErrContextInit, Node: id, Cause: err}
			}
		case types.RoleEvaluator:
			var rec types.ScoreRecord
			err := invoke(func() (err error) {
				rec, err = node.EvaluatorFunc()(ps)
				return err
			})
			if err != nil {
				return nil, &EngineError{Kind: ErrEvaluator, Node: id, Cause: err}
			}
			if rec.Criterion == "" {
				rec.Criterion = string(id)
			}
			r.produced[id] = rec
			records = append(records, rec)
		default:
			// Compile 已拒绝其它角色
			panic(fmt.Sprintf("executor: 节点 %s 角色非法: %s", id, node.Role()))
		}
	}

	if p.opts.compare != nil {
		slices.SortStableFunc(records, p.opts.compare)
	}
	return records, nil
}

// clearAll 清理全部上下文节点，包括尚未初始化的（Clear 幂等）
func (p *Plan) clearAll() {
	for _, id := range p.schedule.Contexts() {
		p.memos[id].Clear()
	}
}

func (p *Plan) isPrerequisite(dep, id types.NodeID) bool {
	_, ok := p.prereqs[id][dep]
	return ok
}

// invoke 把节点函数的 panic 转换为错误
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrNodePanic, r)
		}
	}()
	return fn()
}
