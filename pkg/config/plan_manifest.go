package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/LENAX/grade-engine/pkg/core/graph"
	"github.com/LENAX/grade-engine/pkg/core/registry"
	"github.com/LENAX/grade-engine/pkg/core/types"
)

// NodeDefinition 清单中的节点定义
type NodeDefinition struct {
	ID     string            `yaml:"id"`
	Role   string            `yaml:"role"`
	Func   string            `yaml:"func"`
	Params map[string]string `yaml:"params"`
	After  []string          `yaml:"after"`
}

// PlanManifest 评分计划清单（对外导出）
// 节点按清单顺序注册，注册顺序即调度的并列决胜顺序
type PlanManifest struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Input       string           `yaml:"input"`
	Nodes       []NodeDefinition `yaml:"nodes"`
}

// LoadPlanManifest 从文件加载清单
func LoadPlanManifest(path string) (*PlanManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取清单文件失败: %w", err)
	}
	m, err := ParsePlanManifest(data)
	if err != nil {
		return nil, fmt.Errorf("清单 %s: %w", path, err)
	}
	return m, nil
}

// ParsePlanManifest 解析清单内容并做基本校验
func ParsePlanManifest(data []byte) (*PlanManifest, error) {
	var m PlanManifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("解析清单失败: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate 字段级校验；结构校验（根、可达性、循环）由 dag.Compile 完成
func (m *PlanManifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("清单name不能为空")
	}
	if len(m.Nodes) == 0 {
		return fmt.Errorf("清单nodes不能为空")
	}
	for i, n := range m.Nodes {
		if n.ID == "" {
			return fmt.Errorf("nodes[%d].id不能为空", i)
		}
		role, err := types.ParseRole(n.Role)
		if err != nil {
			return fmt.Errorf("nodes[%d] (%s): %w", i, n.ID, err)
		}
		if role != types.RoleInput && n.Func == "" {
			return fmt.Errorf("nodes[%d] (%s): func不能为空", i, n.ID)
		}
	}
	return nil
}

// BuildGraph 通过注册中心把清单构建为图（对外导出）
// 先按清单顺序注册全部节点，再加边，after 可以引用后面定义的节点。
// 未指定 params.from 时默认读取第一个前置节点
func (m *PlanManifest) BuildGraph(reg *registry.Registry) (*graph.Graph, error) {
	if reg == nil {
		return nil, fmt.Errorf("函数注册中心未配置")
	}
	g := graph.New(m.Name)
	if m.Input != "" {
		if err := g.AddNode(types.NodeID(m.Input), graph.Input()); err != nil {
			return nil, fmt.Errorf("节点 %s: %w", m.Input, err)
		}
	}

	for _, def := range m.Nodes {
		n, err := buildNode(reg, def)
		if err != nil {
			return nil, fmt.Errorf("节点 %s: %w", def.ID, err)
		}
		if err := g.AddNode(types.NodeID(def.ID), n); err != nil {
			return nil, err
		}
	}
	for _, def := range m.Nodes {
		for _, dep := range def.After {
			if err := g.AddEdge(types.NodeID(dep), types.NodeID(def.ID)); err != nil {
				return nil, fmt.Errorf("节点 %s 的前置 %s: %w", def.ID, dep, err)
			}
		}
	}
	return g, nil
}

func buildNode(reg *registry.Registry, def NodeDefinition) (graph.Node, error) {
	role, err := types.ParseRole(def.Role)
	if err != nil {
		return graph.Node{}, err
	}
	params := registry.Params{}
	for k, v := range def.Params {
		params[k] = v
	}
	if _, ok := params[registry.ParamFrom]; !ok && len(def.After) > 0 {
		params[registry.ParamFrom] = def.After[0]
	}

	switch role {
	case types.RoleContext:
		f, err := reg.Context(def.Func, params)
		if err != nil {
			return graph.Node{}, err
		}
		return graph.Context(f), nil
	case types.RoleEvaluator:
		e, err := reg.Evaluator(def.Func, params)
		if err != nil {
			return graph.Node{}, err
		}
		return graph.Evaluator(e), nil
	default:
		return graph.Input(), nil
	}
}
