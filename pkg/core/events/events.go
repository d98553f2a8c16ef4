// Package events 提供评分生命周期事件及其事件总线
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	EventPassStarted   EventType = "pass.started"   // 单次评分开始
	EventPassSucceeded EventType = "pass.succeeded" // 单次评分成功
	EventPassFailed    EventType = "pass.failed"    // 单次评分失败
	EventBatchFinished EventType = "batch.finished" // 批量评分结束
)

// GradeEvent 评分事件
type GradeEvent struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Plan      string      `json:"plan"`
	Subject   string      `json:"subject,omitempty"`
	RunID     string      `json:"run_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewGradeEvent 创建评分事件
func NewGradeEvent(eventType EventType, plan, subject, runID string, payload interface{}) *GradeEvent {
	return &GradeEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Plan:      plan,
		Subject:   subject,
		RunID:     runID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// PassPayload 单次评分结束的事件负载
type PassPayload struct {
	Total      float64 `json:"total"`
	Scores     int     `json:"scores"`
	FailedNode string  `json:"failed_node,omitempty"`
	ErrorKind  string  `json:"error_kind,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMS int64   `json:"duration_ms"`
}

// BatchPayload 批量评分结束的事件负载
type BatchPayload struct {
	Subjects  int `json:"subjects"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Workers   int `json:"workers"`
}
