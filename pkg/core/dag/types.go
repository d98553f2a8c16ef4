package dag

import (
	"crypto/sha256"

	godag "github.com/begmaroman/go-dag"

	"github.com/LENAX/grade-engine/pkg/core/graph"
	"github.com/LENAX/grade-engine/pkg/core/types"
)

// vertex go-dag 中的顶点（实现 Identifiable 接口）
type vertex struct {
	id   types.NodeID
	role types.Role
}

// ID 实现 Identifiable 接口
func (v *vertex) ID() string {
	return string(v.id)
}

// Hash 实现 Hashable 接口，按节点ID计算
// 字段均未导出，默认的 JSON 哈希会让所有顶点相同
func (v *vertex) Hash() (godag.VHash, error) {
	return sha256.Sum256([]byte(v.id)), nil
}

// Schedule 编译结果：校验通过的图 + 确定性的执行顺序（对外导出）
// 编译后只读，可被多个 Plan 共享
type Schedule struct {
	name       string
	input      types.NodeID
	order      []types.NodeID
	position   map[types.NodeID]int
	nodes      map[types.NodeID]graph.Node
	prereqs    map[types.NodeID][]types.NodeID
	dependents map[types.NodeID][]types.NodeID
	topology   *godag.DAG[*vertex]
}

// Name 图名称
func (s *Schedule) Name() string {
	return s.name
}

// Input 输入节点
func (s *Schedule) Input() types.NodeID {
	return s.input
}

// Order 执行顺序（副本）
func (s *Schedule) Order() []types.NodeID {
	return append([]types.NodeID(nil), s.order...)
}

// Len 节点数量
func (s *Schedule) Len() int {
	return len(s.order)
}

// Position 节点在执行顺序中的下标，不存在返回 -1
func (s *Schedule) Position(id types.NodeID) int {
	if p, ok := s.position[id]; ok {
		return p
	}
	return -1
}

// Node 节点定义
func (s *Schedule) Node(id types.NodeID) (graph.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Role 节点角色
func (s *Schedule) Role(id types.NodeID) types.Role {
	return s.nodes[id].Role()
}

// Prerequisites 直接前置节点（按注册顺序）
func (s *Schedule) Prerequisites(id types.NodeID) []types.NodeID {
	return append([]types.NodeID(nil), s.prereqs[id]...)
}

// Dependents 直接后继节点（按注册顺序）
func (s *Schedule) Dependents(id types.NodeID) []types.NodeID {
	return append([]types.NodeID(nil), s.dependents[id]...)
}

// Contexts 所有上下文节点（按执行顺序）
func (s *Schedule) Contexts() []types.NodeID {
	return s.byRole(types.RoleContext)
}

// Evaluators 所有评分节点（按执行顺序）
func (s *Schedule) Evaluators() []types.NodeID {
	return s.byRole(types.RoleEvaluator)
}

// Roots 拓扑中入度为0的节点，合法计划中只有输入节点
func (s *Schedule) Roots() []types.NodeID {
	roots := s.topology.GetRoots()
	out := make([]types.NodeID, 0, len(roots))
	for _, id := range s.order {
		if _, ok := roots[string(id)]; ok {
			out = append(out, id)
		}
	}
	return out
}

// EdgeCount 边数量
func (s *Schedule) EdgeCount() int {
	total := 0
	for _, deps := range s.prereqs {
		total += len(deps)
	}
	return total
}

func (s *Schedule) byRole(role types.Role) []types.NodeID {
	out := make([]types.NodeID, 0)
	for _, id := range s.order {
		if s.nodes[id].Role() == role {
			out = append(out, id)
		}
	}
	return out
}
