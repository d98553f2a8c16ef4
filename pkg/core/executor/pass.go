package executor

import (
	"context"
	"fmt"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

// pass 单轮评分中某个节点看到的运行上下文
// 只在一次节点调用期间有效
type pass struct {
	ctx     context.Context
	subject any
	node    types.NodeID
	run     *run
}

func (p *pass) Context() context.Context { return p.ctx }

func (p *pass) Subject() any { return p.subject }

func (p *pass) Node() types.NodeID { return p.node }

// Value 读取直接前置节点的值
// 输入节点 -> 本轮评分对象；上下文节点 -> 缓存值；评分节点 -> 本轮产出的 ScoreRecord
func (p *pass) Value(id types.NodeID) (any, error) {
	if !p.run.plan.isPrerequisite(id, p.node) {
		return nil, fmt.Errorf("%w: %s 读取 %s", ErrUndeclaredPrerequisite, p.node, id)
	}
	switch p.run.plan.schedule.Role(id) {
	case types.RoleInput:
		return p.subject, nil
	case types.RoleContext:
		return p.run.plan.memos[id].Value(), nil
	case types.RoleEvaluator:
		rec, ok := p.run.produced[id]
		if !ok {
			return nil, fmt.Errorf("评分节点 %s 尚未产出结果", id)
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("未知的节点类型: %s", id)
	}
}

// run 一轮评分的可变状态
type run struct {
	plan     *Plan
	ctx      context.Context
	subject  any
	produced map[types.NodeID]types.ScoreRecord
}

func (r *run) passFor(id types.NodeID) *pass {
	return &pass{ctx: r.ctx, subject: r.subject, node: id, run: r}
}
