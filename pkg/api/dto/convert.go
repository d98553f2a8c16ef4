package dto

import (
	"fmt"
	"time"

	"github.com/LENAX/grade-engine/pkg/core/engine"
	"github.com/LENAX/grade-engine/pkg/storage"
)

// FromPlanInfo 转换评分计划摘要
func FromPlanInfo(info engine.PlanInfo) PlanSummary {
	order := make([]string, len(info.Order))
	for i, id := range info.Order {
		order[i] = string(id)
	}
	return PlanSummary{
		Name:       info.Name,
		Input:      string(info.Input),
		Order:      order,
		Contexts:   info.Contexts,
		Evaluators: info.Evaluators,
		Edges:      info.Edges,
	}
}

// FromGradeRun 转换评分记录
func FromGradeRun(run *storage.GradeRun) RunDetail {
	scores := make([]ScoreItem, len(run.Scores))
	for i, s := range run.Scores {
		scores[i] = ScoreItem{Criterion: s.Criterion, Value: s.Value, Justification: s.Justification}
	}
	return RunDetail{
		ID:           run.ID,
		Plan:         run.PlanName,
		Subject:      run.Subject,
		Status:       string(run.Status),
		Total:        run.Total,
		Scores:       scores,
		FailedNode:   run.FailedNode,
		ErrorKind:    run.ErrorKind,
		ErrorMessage: run.ErrorMessage,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Duration:     FormatDuration(run.Duration()),
	}
}

// FormatDuration 格式化耗时
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
