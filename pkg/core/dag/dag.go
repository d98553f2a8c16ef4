package dag

import (
	"fmt"
	"sort"

	godag "github.com/begmaroman/go-dag"

	"github.com/LENAX/grade-engine/pkg/core/graph"
	"github.com/LENAX/grade-engine/pkg/core/types"
)

// Compile 校验图结构并计算确定性的执行顺序（对外导出）
// 无副作用：要么返回完整的 Schedule，要么返回 *GraphInvalidError
// 检查顺序：根节点 -> 可达性 -> 节点类型 -> 循环/排序
func Compile(g *graph.Graph) (*Schedule, error) {
	if g == nil || g.Len() == 0 {
		return nil, invalid(ErrMissingOrAmbiguousRoot, "", "图为空")
	}

	input, err := checkRoot(g)
	if err != nil {
		return nil, err
	}
	if err := checkReachable(g, input); err != nil {
		return nil, err
	}
	if err := checkRoles(g); err != nil {
		return nil, err
	}
	order, err := topologicalSort(g, input)
	if err != nil {
		return nil, err
	}
	return newSchedule(g, input, order)
}

// checkRoot 恰好一个输入节点，且没有前置节点
func checkRoot(g *graph.Graph) (types.NodeID, error) {
	var inputs []types.NodeID
	for _, id := range g.Nodes() {
		n, _ := g.Node(id)
		if n.Role() == types.RoleInput {
			inputs = append(inputs, id)
		}
	}
	switch len(inputs) {
	case 0:
		return "", invalid(ErrMissingOrAmbiguousRoot, "", "没有输入节点")
	case 1:
	default:
		return "", invalid(ErrMissingOrAmbiguousRoot, inputs[1], fmt.Sprintf("共有 %d 个输入节点", len(inputs)))
	}
	if g.InDegree(inputs[0]) > 0 {
		return "", invalid(ErrMissingOrAmbiguousRoot, inputs[0], "输入节点存在前置节点")
	}
	return inputs[0], nil
}

// checkReachable 从输入节点沿正向边做BFS，报告第一个（按注册顺序）不可达节点
func checkReachable(g *graph.Graph, input types.NodeID) error {
	visited := map[types.NodeID]bool{input: true}
	queue := []types.NodeID{input}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.Successors(cur) {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, id := range g.Nodes() {
		if !visited[id] {
			return invalid(ErrUnreachableNode, id, "")
		}
	}
	return nil
}

// checkRoles 所有节点必须属于封闭角色集合，且携带对应能力
func checkRoles(g *graph.Graph) error {
	for _, id := range g.Nodes() {
		n, _ := g.Node(id)
		if !n.Role().Valid() {
			return invalid(ErrUnknownNodeKind, id, n.Role().String())
		}
		if !n.Complete() {
			return invalid(ErrUnknownNodeKind, id, fmt.Sprintf("%s 节点缺少实现", n.Role()))
		}
	}
	return nil
}

// topologicalSort Kahn 算法，FIFO 队列，以输入节点为种子
// 同一节点弹出时同时入度归零的后继按注册顺序入队
func topologicalSort(g *graph.Graph, input types.NodeID) ([]types.NodeID, error) {
	inDegree := make(map[types.NodeID]int, g.Len())
	for _, id := range g.Nodes() {
		inDegree[id] = g.InDegree(id)
	}

	order := make([]types.NodeID, 0, g.Len())
	queue := []types.NodeID{input}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		order = append(order, cur)

		successors := g.Successors(cur)
		sort.SliceStable(successors, func(i, j int) bool {
			return g.Index(successors[i]) < g.Index(successors[j])
		})
		for _, next := range successors {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < g.Len() {
		scheduled := make(map[types.NodeID]bool, len(order))
		for _, id := range order {
			scheduled[id] = true
		}
		for _, id := range g.Nodes() {
			if !scheduled[id] {
				return nil, invalid(ErrCycleDetected, id, fmt.Sprintf("%d 个节点无法排序", g.Len()-len(order)))
			}
		}
	}
	return order, nil
}

// newSchedule 把已排序的图镜像到 go-dag，并固化前置/后继关系
func newSchedule(g *graph.Graph, input types.NodeID, order []types.NodeID) (*Schedule, error) {
	s := &Schedule{
		name:       g.Name(),
		input:      input,
		order:      order,
		position:   make(map[types.NodeID]int, len(order)),
		nodes:      make(map[types.NodeID]graph.Node, len(order)),
		prereqs:    make(map[types.NodeID][]types.NodeID, len(order)),
		dependents: make(map[types.NodeID][]types.NodeID, len(order)),
		topology:   godag.NewDAG[*vertex](),
	}

	for i, id := range order {
		n, _ := g.Node(id)
		s.position[id] = i
		s.nodes[id] = n
		if _, err := s.topology.AddVertex(&vertex{id: id, role: n.Role()}); err != nil {
			return nil, fmt.Errorf("添加节点失败: %s, Error=%w", id, err)
		}
	}
	// 按执行顺序加边，已确认无环，go-dag 的检查不会失败
	for _, id := range order {
		for _, next := range g.Successors(id) {
			if err := s.topology.AddEdge(string(id), string(next)); err != nil {
				return nil, fmt.Errorf("添加边失败: %s -> %s, Error=%w", id, next, err)
			}
		}
	}

	byRegistration := func(ids []types.NodeID) {
		sort.SliceStable(ids, func(i, j int) bool { return g.Index(ids[i]) < g.Index(ids[j]) })
	}
	for _, id := range order {
		parents, err := s.topology.GetParents(string(id))
		if err != nil {
			return nil, fmt.Errorf("查询前置节点失败: %s, Error=%w", id, err)
		}
		deps := make([]types.NodeID, 0, len(parents))
		for pid := range parents {
			deps = append(deps, types.NodeID(pid))
		}
		byRegistration(deps)
		s.prereqs[id] = deps

		children, err := s.topology.GetChildren(string(id))
		if err != nil {
			return nil, fmt.Errorf("查询后继节点失败: %s, Error=%w", id, err)
		}
		next := make([]types.NodeID, 0, len(children))
		for cid := range children {
			next = append(next, types.NodeID(cid))
		}
		byRegistration(next)
		s.dependents[id] = next
	}

	if s.topology.GetOrder() != len(order) {
		return nil, fmt.Errorf("拓扑节点数不一致: %d != %d", s.topology.GetOrder(), len(order))
	}
	return s, nil
}
