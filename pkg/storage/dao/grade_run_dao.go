package dao

import (
	"database/sql"
	"time"
)

// GradeRunDAO grade_run表的数据访问对象（内部使用）
type GradeRunDAO struct {
	ID           string         `db:"id"`
	PlanName     string         `db:"plan_name"`
	Subject      string         `db:"subject"`
	Status       string         `db:"status"`
	FailedNode   sql.NullString `db:"failed_node"`
	ErrorKind    sql.NullString `db:"error_kind"`
	ErrorMessage sql.NullString `db:"error_message"`
	Total        float64        `db:"total"`
	StartedAt    time.Time      `db:"started_at"`
	FinishedAt   time.Time      `db:"finished_at"`
}

// GradeScoreDAO grade_score表的数据访问对象（内部使用）
type GradeScoreDAO struct {
	RunID         string         `db:"run_id"`
	Seq           int            `db:"seq"`
	Criterion     string         `db:"criterion"`
	Value         float64        `db:"value"`
	Justification sql.NullString `db:"justification"`
}
