package types

import (
	"context"
	"fmt"
)

// NodeID 节点标识（对外导出）
// 仅用于区分节点，不携带任何结构含义
type NodeID string

// Role 节点角色（封闭集合，对外导出）
type Role int

const (
	// RoleUnknown 零值，仅用于让编译阶段识别非法节点
	RoleUnknown Role = iota
	// RoleInput 输入节点，每个图恰好一个，持有本轮评分对象
	RoleInput
	// RoleContext 上下文节点，带 init/clear 生命周期的中间数据
	RoleContext
	// RoleEvaluator 评分节点，产出一条 ScoreRecord
	RoleEvaluator
)

// String 返回角色名称
func (r Role) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleContext:
		return "context"
	case RoleEvaluator:
		return "evaluator"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	return r == RoleInput || r == RoleContext || r == RoleEvaluator
}

// ParseRole 从字符串解析角色（用于YAML清单）
func ParseRole(s string) (Role, error) {
	switch s {
	case "input":
		return RoleInput, nil
	case "context":
		return RoleContext, nil
	case "evaluator":
		return RoleEvaluator, nil
	default:
		return RoleUnknown, fmt.Errorf("未知的节点角色: %q", s)
	}
}

// ScoreRecord 单个评分项结果（对外导出）
type ScoreRecord struct {
	Criterion     string  `json:"criterion"`
	Value         float64 `json:"value"`
	Justification string  `json:"justification"`
}

// Pass 单轮评分的运行上下文（对外导出）
// 由执行器显式传入每个节点调用，仅在本轮内有效
type Pass interface {
	// Context 调用方传入的 context（引擎本身不做超时控制）
	Context() context.Context
	// Subject 本轮评分对象
	Subject() any
	// Node 当前正在执行的节点
	Node() NodeID
	// Value 读取已声明前置节点的当前值
	Value(id NodeID) (any, error)
}

// ContextFactory 上下文节点的原始工厂函数（可能昂贵、有副作用）
type ContextFactory func(p Pass) (any, error)

// Evaluator 评分函数
type Evaluator func(p Pass) (ScoreRecord, error)

// ValueAs 以指定类型读取前置节点的值
func ValueAs[T any](p Pass, id NodeID) (T, error) {
	var zero T
	raw, err := p.Value(id)
	if err != nil {
		return zero, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("节点 %s 的值类型为 %T，无法转换为 %T", id, raw, zero)
	}
	return v, nil
}

// TotalScore 汇总一组评分结果
func TotalScore(records []ScoreRecord) float64 {
	total := 0.0
	for _, r := range records {
		total += r.Value
	}
	return total
}
