package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LENAX/grade-engine/pkg/api/dto"
	"github.com/LENAX/grade-engine/pkg/cli/gradeengine"
	"github.com/LENAX/grade-engine/pkg/cli/output"
)

var runsLimit int

// remoteCmd remote子命令
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "访问评分服务",
	Long:  `通过HTTP API访问运行中的评分服务（--server 指定地址）。`,
}

// remotePlansCmd 列出服务上的评分计划
var remotePlansCmd = &cobra.Command{
	Use:   "plans",
	Short: "列出评分计划",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := gradeengine.New(serverURL).ListPlans()
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}
		if outputJSON {
			return output.PrintJSON(result)
		}
		if len(result.Items) == 0 {
			output.Info("暂无评分计划")
			return nil
		}
		table := output.NewTable([]string{"PLAN", "INPUT", "CONTEXTS", "EVALUATORS", "EDGES"})
		for _, p := range result.Items {
			table.AddRow([]string{
				p.Name,
				p.Input,
				fmt.Sprintf("%d", p.Contexts),
				fmt.Sprintf("%d", p.Evaluators),
				fmt.Sprintf("%d", p.Edges),
			})
		}
		table.Render()
		return nil
	},
}

// remoteGradeCmd 在服务上评分
var remoteGradeCmd = &cobra.Command{
	Use:   "grade <plan> <subject>...",
	Short: "在评分服务上评分并保存记录",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := gradeengine.New(serverURL).GradeBatch(args[0], args[1:])
		if err != nil {
			output.Error("评分失败: %v", err)
			return err
		}
		if outputJSON {
			return output.PrintJSON(result)
		}
		printRuns(result.Runs)
		output.Info("%s: 成功 %d，失败 %d", result.Plan, result.Succeeded, result.Failed)
		return nil
	},
}

// remoteRunsCmd 查询评分记录
var remoteRunsCmd = &cobra.Command{
	Use:   "runs <plan>",
	Short: "查询评分计划的历史记录",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := gradeengine.New(serverURL).ListRuns(args[0], runsLimit, 0)
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}
		if outputJSON {
			return output.PrintJSON(result)
		}
		if len(result.Items) == 0 {
			output.Info("暂无评分记录")
			return nil
		}
		printRuns(result.Items)
		return nil
	},
}

// remoteRunCmd 查看评分记录详情
var remoteRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "查看评分记录详情",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := gradeengine.New(serverURL).GetRun(args[0])
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}
		if outputJSON {
			return output.PrintJSON(run)
		}

		fmt.Printf("Run:      %s\n", run.ID)
		fmt.Printf("Plan:     %s\n", run.Plan)
		fmt.Printf("Subject:  %s\n", run.Subject)
		fmt.Printf("Status:   %s\n", output.FormatStatus(run.Status))
		fmt.Printf("Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Duration: %s\n", run.Duration)
		if run.Status == "FAILED" {
			output.Error("失败节点 %s（%s）: %s", run.FailedNode, run.ErrorKind, run.ErrorMessage)
			return nil
		}
		fmt.Println()
		table := output.NewTable([]string{"CRITERION", "SCORE", "JUSTIFICATION"})
		for _, s := range run.Scores {
			table.AddRow([]string{s.Criterion, output.FormatScore(s.Value), s.Justification})
		}
		table.Render()
		output.Success("总分 %s", output.FormatScore(run.Total))
		return nil
	},
}

func init() {
	remoteRunsCmd.Flags().IntVarP(&runsLimit, "limit", "l", 20, "返回数量限制")

	remoteCmd.AddCommand(remotePlansCmd)
	remoteCmd.AddCommand(remoteGradeCmd)
	remoteCmd.AddCommand(remoteRunsCmd)
	remoteCmd.AddCommand(remoteRunCmd)
}

func printRuns(runs []dto.RunDetail) {
	table := output.NewTable([]string{"RUN_ID", "SUBJECT", "STATUS", "TOTAL", "STARTED", "DURATION"})
	for _, r := range runs {
		table.AddRow([]string{
			r.ID,
			r.Subject,
			output.FormatStatus(r.Status),
			output.FormatScore(r.Total),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Duration,
		})
	}
	table.Render()
}
