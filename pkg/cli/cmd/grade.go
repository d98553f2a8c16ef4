package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LENAX/grade-engine/pkg/cli/output"
	"github.com/LENAX/grade-engine/pkg/core/engine"
	"github.com/LENAX/grade-engine/pkg/core/executor"
	"github.com/LENAX/grade-engine/pkg/core/types"
)

var (
	gradeWorkers int
	gradeSort    bool
)

// gradeResult 本地评分结果（JSON输出）
type gradeResult struct {
	Subject    string              `json:"subject"`
	OK         bool                `json:"ok"`
	Total      float64             `json:"total"`
	Scores     []types.ScoreRecord `json:"scores"`
	FailedNode string              `json:"failed_node,omitempty"`
	ErrorKind  string              `json:"error_kind,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// gradeCmd 本地评分
var gradeCmd = &cobra.Command{
	Use:   "grade <manifest> <subject>...",
	Short: "按评分清单在本地对评分对象评分",
	Long: `按评分清单在本地对一个或多个评分对象评分，不保存记录。

示例：
  grade-engine grade ./plans/readme.yaml ./submissions/alice
  grade-engine grade ./plans/readme.yaml ./submissions/* --workers 4 --sort`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, schedule, err := compileManifest(args[0])
		if err != nil {
			output.Error("编译失败: %v", err)
			return err
		}

		var opts []executor.Option
		if gradeSort {
			opts = append(opts, executor.WithComparator(executor.ByCriterion))
		}
		plan := executor.NewPlan(schedule, opts...)

		subjects := args[1:]
		outcomes := plan.GradeAllParallel(context.Background(), executor.Inputs(subjects), gradeWorkers)

		results := make([]gradeResult, len(outcomes))
		for i, o := range outcomes {
			results[i] = toGradeResult(subjects[i], o)
		}

		if outputJSON {
			if err := output.PrintJSON(results); err != nil {
				return err
			}
		} else {
			printGradeResults(m.Name, results)
		}

		if failed := len(outcomes.Failed()); failed > 0 {
			return fmt.Errorf("%d 个评分对象评分失败", failed)
		}
		return nil
	},
}

func init() {
	gradeCmd.Flags().IntVarP(&gradeWorkers, "workers", "w", 1, "并行评分数")
	gradeCmd.Flags().BoolVar(&gradeSort, "sort", false, "按评分项名称排序")
}

func toGradeResult(subject string, o executor.Outcome) gradeResult {
	r := gradeResult{
		Subject: subject,
		OK:      o.OK(),
		Total:   o.Total(),
		Scores:  o.Scores,
	}
	if r.Scores == nil {
		r.Scores = make([]types.ScoreRecord, 0)
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
		r.ErrorKind = engine.ErrorKind(o.Err)
		if ee := executor.AsEngineError(o.Err); ee != nil {
			r.FailedNode = string(ee.Node)
		}
	}
	return r
}

func printGradeResults(plan string, results []gradeResult) {
	// 单个评分对象时展开评分项
	if len(results) == 1 {
		r := results[0]
		if !r.OK {
			output.Error("%s 评分失败: 节点=%s, 类别=%s, 原因=%s", r.Subject, r.FailedNode, r.ErrorKind, r.Error)
			return
		}
		table := output.NewTable([]string{"CRITERION", "SCORE", "JUSTIFICATION"})
		for _, s := range r.Scores {
			table.AddRow([]string{s.Criterion, output.FormatScore(s.Value), s.Justification})
		}
		table.Render()
		output.Success("%s: %s 总分 %s", plan, r.Subject, output.FormatScore(r.Total))
		return
	}

	table := output.NewTable([]string{"SUBJECT", "STATUS", "TOTAL", "DETAIL"})
	succeeded := 0
	for _, r := range results {
		status, detail := "SUCCEEDED", fmt.Sprintf("%d 项", len(r.Scores))
		if r.OK {
			succeeded++
		} else {
			status, detail = "FAILED", fmt.Sprintf("%s@%s", r.ErrorKind, r.FailedNode)
		}
		table.AddRow([]string{r.Subject, output.FormatStatus(status), output.FormatScore(r.Total), detail})
	}
	table.Render()
	output.Info("%s: 成功 %d，失败 %d", plan, succeeded, len(results)-succeeded)
}
