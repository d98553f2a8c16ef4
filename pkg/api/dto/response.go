package dto

import "time"

// APIResponse 通用API响应结构
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) APIResponse[any] {
	return APIResponse[any]{
		Code:    code,
		Message: message,
	}
}

// PlanSummary 评分计划摘要信息
type PlanSummary struct {
	Name       string   `json:"name"`
	Input      string   `json:"input"`
	Order      []string `json:"order"`
	Contexts   int      `json:"contexts"`
	Evaluators int      `json:"evaluators"`
	Edges      int      `json:"edges"`
}

// ScoreItem 单个评分项
type ScoreItem struct {
	Criterion     string  `json:"criterion"`
	Value         float64 `json:"value"`
	Justification string  `json:"justification,omitempty"`
}

// RunDetail 评分记录详细信息
type RunDetail struct {
	ID           string      `json:"id"`
	Plan         string      `json:"plan"`
	Subject      string      `json:"subject"`
	Status       string      `json:"status"`
	Total        float64     `json:"total"`
	Scores       []ScoreItem `json:"scores"`
	FailedNode   string      `json:"failed_node,omitempty"`
	ErrorKind    string      `json:"error_kind,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
	Duration     string      `json:"duration"`
}

// BatchResponse 批量评分响应
type BatchResponse struct {
	Plan      string      `json:"plan"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Runs      []RunDetail `json:"runs"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Plans     int    `json:"plans"`
	Timestamp string `json:"timestamp"`
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Total   int  `json:"total"`
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
}
