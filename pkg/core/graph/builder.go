package graph

import (
	"github.com/LENAX/grade-engine/pkg/core/types"
)

// Builder 图构建器（链式构建，对外导出）
// 第一个错误会被记录，后续调用直接跳过，在 Build 时返回
type Builder struct {
	g   *Graph
	err error
}

// NewBuilder 创建构建器
func NewBuilder(name string) *Builder {
	return &Builder{g: New(name)}
}

// Input 注册输入节点
func (b *Builder) Input(id types.NodeID) *Builder {
	return b.add(id, Input(), nil)
}

// Context 注册上下文节点及其前置节点
func (b *Builder) Context(id types.NodeID, f types.ContextFactory, after ...types.NodeID) *Builder {
	return b.add(id, Context(f), after)
}

// Evaluator 注册评分节点及其前置节点
func (b *Builder) Evaluator(id types.NodeID, e types.Evaluator, after ...types.NodeID) *Builder {
	return b.add(id, Evaluator(e), after)
}

// Node 注册任意节点定义
func (b *Builder) Node(id types.NodeID, n Node, after ...types.NodeID) *Builder {
	return b.add(id, n, after)
}

// Edge 单独添加一条边
func (b *Builder) Edge(prerequisite, dependent types.NodeID) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.g.AddEdge(prerequisite, dependent)
	return b
}

// Build 返回构建好的图（未做结构校验，校验由 dag.Compile 完成）
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.g, nil
}

func (b *Builder) add(id types.NodeID, n Node, after []types.NodeID) *Builder {
	if b.err != nil {
		return b
	}
	if b.err = b.g.AddNode(id, n); b.err != nil {
		return b
	}
	for _, dep := range after {
		if b.err = b.g.AddEdge(dep, id); b.err != nil {
			return b
		}
	}
	return b
}
