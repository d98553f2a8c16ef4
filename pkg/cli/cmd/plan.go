package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LENAX/grade-engine/pkg/cli/output"
	"github.com/LENAX/grade-engine/pkg/config"
	"github.com/LENAX/grade-engine/pkg/core/dag"
	"github.com/LENAX/grade-engine/pkg/core/registry"
)

// planCmd plan子命令
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "评分清单命令",
	Long:  `校验和查看评分清单，不需要连接评分服务。`,
}

// planValidateCmd 校验评分清单
var planValidateCmd = &cobra.Command{
	Use:   "validate <manifest>",
	Short: "校验评分清单并编译评分图",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, schedule, err := compileManifest(args[0])
		if err != nil {
			output.Error("校验失败: %v", err)
			return err
		}
		output.Success("评分清单有效: %s（%d 个节点，%d 个评分项）", m.Name, schedule.Len(), len(schedule.Evaluators()))
		return nil
	},
}

// planInspectCmd 查看评分图的执行顺序
var planInspectCmd = &cobra.Command{
	Use:   "inspect <manifest>",
	Short: "查看评分图的执行顺序和依赖",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, schedule, err := compileManifest(args[0])
		if err != nil {
			output.Error("编译失败: %v", err)
			return err
		}

		type nodeView struct {
			Position      int      `json:"position"`
			ID            string   `json:"id"`
			Role          string   `json:"role"`
			Prerequisites []string `json:"prerequisites"`
			Dependents    []string `json:"dependents"`
		}
		nodes := make([]nodeView, 0, schedule.Len())
		for i, id := range schedule.Order() {
			nodes = append(nodes, nodeView{
				Position:      i,
				ID:            string(id),
				Role:          schedule.Role(id).String(),
				Prerequisites: idStrings(schedule.Prerequisites(id)),
				Dependents:    idStrings(schedule.Dependents(id)),
			})
		}

		if outputJSON {
			return output.PrintJSON(map[string]interface{}{
				"name":        m.Name,
				"description": m.Description,
				"input":       schedule.Input(),
				"nodes":       nodes,
			})
		}

		output.Info("评分计划: %s", m.Name)
		if m.Description != "" {
			output.Info("说明: %s", m.Description)
		}
		table := output.NewTable([]string{"#", "NODE", "ROLE", "AFTER", "BEFORE"})
		for _, n := range nodes {
			table.AddRow([]string{
				fmt.Sprintf("%d", n.Position),
				n.ID,
				n.Role,
				joinOrDash(n.Prerequisites),
				joinOrDash(n.Dependents),
			})
		}
		table.Render()
		return nil
	},
}

// planFuncsCmd 列出可在清单中引用的函数
var planFuncsCmd = &cobra.Command{
	Use:   "funcs",
	Short: "列出内置的上下文函数和评分函数",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := registry.NewWithBuiltins().Names()
		if outputJSON {
			return output.PrintJSON(entries)
		}
		table := output.NewTable([]string{"FUNC", "ROLE", "DESCRIPTION"})
		for _, e := range entries {
			table.AddRow([]string{e.Name, e.RoleName, e.Description})
		}
		table.Render()
		return nil
	},
}

func init() {
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planInspectCmd)
	planCmd.AddCommand(planFuncsCmd)
}

// compileManifest 加载评分清单、构建并编译评分图
func compileManifest(path string) (*config.PlanManifest, *dag.Schedule, error) {
	m, err := config.LoadPlanManifest(path)
	if err != nil {
		return nil, nil, err
	}
	g, err := m.BuildGraph(registry.NewWithBuiltins())
	if err != nil {
		return nil, nil, err
	}
	schedule, err := dag.Compile(g)
	if err != nil {
		return nil, nil, err
	}
	return m, schedule, nil
}

func idStrings[T ~string](ids []T) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func joinOrDash(xs []string) string {
	if len(xs) == 0 {
		return "-"
	}
	return strings.Join(xs, ",")
}
