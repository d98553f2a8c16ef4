package storage

import (
	"context"
	"time"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

// RunStatus 评分记录状态
type RunStatus string

const (
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// GradeRun 一次评分的持久化记录（对外导出）
// 失败的评分没有 Scores，FailedNode/ErrorKind/ErrorMessage 记录失败原因
type GradeRun struct {
	ID           string              `json:"id"`
	PlanName     string              `json:"plan"`
	Subject      string              `json:"subject"`
	Status       RunStatus           `json:"status"`
	FailedNode   string              `json:"failed_node,omitempty"`
	ErrorKind    string              `json:"error_kind,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Total        float64             `json:"total"`
	Scores       []types.ScoreRecord `json:"scores"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
}

// Duration 评分耗时
func (r *GradeRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunRepository 评分记录存储接口（对外导出）
type RunRepository interface {
	// Save 保存评分记录及其评分项（创建或覆盖）
	Save(ctx context.Context, run *GradeRun) error
	// GetByID 根据ID查询，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*GradeRun, error)
	// ListByPlan 按开始时间倒序查询某个计划的评分记录，limit<=0 表示不限制
	ListByPlan(ctx context.Context, plan string, limit int) ([]*GradeRun, error)
	// Close 关闭数据库连接
	Close() error
}
