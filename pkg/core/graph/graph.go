package graph

import (
	"errors"
	"fmt"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

// ErrNodeNotFound 边引用了未注册的节点
var ErrNodeNotFound = errors.New("节点未注册")

// DuplicateNodeError 同一ID以不同角色重复注册（对外导出）
type DuplicateNodeError struct {
	ID        types.NodeID
	Existing  types.Role
	Requested types.Role
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("节点 %s 已注册为 %s，不能再注册为 %s", e.ID, e.Existing, e.Requested)
}

// Node 节点定义（封闭变体，只能通过 Input/Context/Evaluator 构造）
type Node struct {
	role      types.Role
	factory   types.ContextFactory
	evaluator types.Evaluator
}

// Input 输入节点
func Input() Node {
	return Node{role: types.RoleInput}
}

// Context 上下文节点，f 为原始工厂函数
func Context(f types.ContextFactory) Node {
	return Node{role: types.RoleContext, factory: f}
}

// Evaluator 评分节点
func Evaluator(e types.Evaluator) Node {
	return Node{role: types.RoleEvaluator, evaluator: e}
}

// Role 节点角色
func (n Node) Role() types.Role {
	return n.role
}

// Factory 上下文工厂（仅 RoleContext 有值）
func (n Node) Factory() types.ContextFactory {
	return n.factory
}

// EvaluatorFunc 评分函数（仅 RoleEvaluator 有值）
func (n Node) EvaluatorFunc() types.Evaluator {
	return n.evaluator
}

// Complete 角色合法且携带了对应能力
func (n Node) Complete() bool {
	switch n.role {
	case types.RoleInput:
		return true
	case types.RoleContext:
		return n.factory != nil
	case types.RoleEvaluator:
		return n.evaluator != nil
	default:
		return false
	}
}

// Graph 节点注册表与有向边集合（对外导出）
// 边的含义为 "prerequisite -> dependent"。
// 在装配阶段一次性构建，非并发安全。
type Graph struct {
	name  string
	order []types.NodeID
	index map[types.NodeID]int
	nodes map[types.NodeID]Node
	succ  map[types.NodeID][]types.NodeID
	pred  map[types.NodeID][]types.NodeID
	edges map[[2]types.NodeID]struct{}
}

// New 创建空图
func New(name string) *Graph {
	return &Graph{
		name:  name,
		index: make(map[types.NodeID]int),
		nodes: make(map[types.NodeID]Node),
		succ:  make(map[types.NodeID][]types.NodeID),
		pred:  make(map[types.NodeID][]types.NodeID),
		edges: make(map[[2]types.NodeID]struct{}),
	}
}

// Name 图名称
func (g *Graph) Name() string {
	return g.name
}

// AddNode 注册节点
// 同一ID以相同角色重复注册时保留首次注册，不同角色返回 DuplicateNodeError
func (g *Graph) AddNode(id types.NodeID, n Node) error {
	if existing, ok := g.nodes[id]; ok {
		if existing.role != n.role {
			return &DuplicateNodeError{ID: id, Existing: existing.role, Requested: n.role}
		}
		return nil
	}
	g.index[id] = len(g.order)
	g.order = append(g.order, id)
	g.nodes[id] = n
	return nil
}

// AddEdge 注册有向边 prerequisite -> dependent，两端都必须已注册
func (g *Graph) AddEdge(prerequisite, dependent types.NodeID) error {
	if _, ok := g.nodes[prerequisite]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, prerequisite)
	}
	if _, ok := g.nodes[dependent]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, dependent)
	}
	key := [2]types.NodeID{prerequisite, dependent}
	if _, ok := g.edges[key]; ok {
		return nil
	}
	g.edges[key] = struct{}{}
	g.succ[prerequisite] = append(g.succ[prerequisite], dependent)
	g.pred[dependent] = append(g.pred[dependent], prerequisite)
	return nil
}

// Len 节点数量
func (g *Graph) Len() int {
	return len(g.order)
}

// Nodes 按注册顺序返回所有节点ID（副本）
func (g *Graph) Nodes() []types.NodeID {
	out := make([]types.NodeID, len(g.order))
	copy(out, g.order)
	return out
}

// Node 查询节点定义
func (g *Graph) Node(id types.NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Index 节点的注册序号，未注册返回 -1
func (g *Graph) Index(id types.NodeID) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// Successors 直接后继（按加边顺序，副本）
func (g *Graph) Successors(id types.NodeID) []types.NodeID {
	return append([]types.NodeID(nil), g.succ[id]...)
}

// Predecessors 直接前置（按加边顺序，副本）
func (g *Graph) Predecessors(id types.NodeID) []types.NodeID {
	return append([]types.NodeID(nil), g.pred[id]...)
}

// InDegree 入度
func (g *Graph) InDegree(id types.NodeID) int {
	return len(g.pred[id])
}

// Edges 按前置节点注册顺序返回全部边
func (g *Graph) Edges() [][2]types.NodeID {
	out := make([][2]types.NodeID, 0, len(g.edges))
	for _, from := range g.order {
		for _, to := range g.succ[from] {
			out = append(out, [2]types.NodeID{from, to})
		}
	}
	return out
}
