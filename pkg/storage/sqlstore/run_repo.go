package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/LENAX/grade-engine/pkg/core/types"
	"github.com/LENAX/grade-engine/pkg/storage"
	"github.com/LENAX/grade-engine/pkg/storage/dao"
)

// 表结构以 SQLite 语法书写，由方言转换
var schemaTables = []string{
	`CREATE TABLE IF NOT EXISTS grade_run (
		id VARCHAR(64) PRIMARY KEY,
		plan_name VARCHAR(255) NOT NULL,
		subject TEXT NOT NULL,
		status VARCHAR(32) NOT NULL,
		failed_node VARCHAR(255),
		error_kind VARCHAR(64),
		error_message TEXT,
		total REAL NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS grade_score (
		run_id VARCHAR(64) NOT NULL,
		seq INTEGER NOT NULL,
		criterion VARCHAR(255) NOT NULL,
		value REAL NOT NULL,
		justification TEXT,
		PRIMARY KEY (run_id, seq)
	)`,
}

// 部分数据库（MySQL）不支持 IF NOT EXISTS，重复创建的错误会被忽略
var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_grade_run_plan ON grade_run(plan_name, started_at)`,
}

var runColumns = []string{
	"id", "plan_name", "subject", "status", "failed_node", "error_kind",
	"error_message", "total", "started_at", "finished_at",
}

// RunRepo 基于 sqlx 的评分记录存储（对外导出）
// 三种数据库共用同一实现，差异由 Dialect 处理
type RunRepo struct {
	db      *sqlx.DB
	dialect storage.Dialect
	upsert  string
}

// NewRunRepo 创建存储实例并初始化表结构（对外导出）
func NewRunRepo(db *sqlx.DB, dialect storage.Dialect) (*RunRepo, error) {
	repo := &RunRepo{
		db:      db,
		dialect: dialect,
		upsert:  dialect.UpsertSQL("grade_run", runColumns, "id", runColumns[1:]),
	}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return repo, nil
}

// DBOption 连接建立前对连接池的设置
type DBOption func(db *sqlx.DB)

// WithPool 设置连接池参数，<=0 的值保持默认
func WithPool(maxOpen, maxIdle int, lifetime, idleTime time.Duration) DBOption {
	return func(db *sqlx.DB) {
		if maxOpen > 0 {
			db.SetMaxOpenConns(maxOpen)
		}
		if maxIdle > 0 {
			db.SetMaxIdleConns(maxIdle)
		}
		if lifetime > 0 {
			db.SetConnMaxLifetime(lifetime)
		}
		if idleTime > 0 {
			db.SetConnMaxIdleTime(idleTime)
		}
	}
}

// Open 打开数据库连接、执行方言配置并创建存储（对外导出）
func Open(dialect storage.Dialect, dsn string, opts ...DBOption) (*RunRepo, error) {
	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	for _, stmt := range dialect.ConfigureDB() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("配置%s失败: %w", dialect.Name(), err)
		}
	}
	repo, err := NewRunRepo(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// GetDB 获取底层数据库连接（对外导出）
func (r *RunRepo) GetDB() *sqlx.DB {
	return r.db
}

// Close 关闭数据库连接（对外导出）
func (r *RunRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *RunRepo) initSchema() error {
	for _, stmt := range schemaTables {
		if _, err := r.db.Exec(r.dialect.CreateTableSQL(stmt)); err != nil {
			return err
		}
	}
	for _, stmt := range schemaIndexes {
		if _, err := r.db.Exec(r.dialect.CreateTableSQL(stmt)); err != nil {
			log.Printf("⚠️ 创建索引失败（忽略）: dialect=%s, Error=%v", r.dialect.Name(), err)
		}
	}
	return nil
}

// Save 保存评分记录（事务：upsert grade_run，重写 grade_score）
func (r *RunRepo) Save(ctx context.Context, run *storage.GradeRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("评分记录ID不能为空")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, r.upsert, runToDAO(run)); err != nil {
		return fmt.Errorf("保存评分记录失败: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM grade_score WHERE run_id = ?`), run.ID); err != nil {
		return fmt.Errorf("删除旧评分项失败: %w", err)
	}
	insertSQL := `INSERT INTO grade_score (run_id, seq, criterion, value, justification)
	              VALUES (:run_id, :seq, :criterion, :value, :justification)`
	for i, s := range run.Scores {
		row := dao.GradeScoreDAO{
			RunID:         run.ID,
			Seq:           i,
			Criterion:     s.Criterion,
			Value:         s.Value,
			Justification: nullString(s.Justification),
		}
		if _, err := tx.NamedExecContext(ctx, insertSQL, row); err != nil {
			return fmt.Errorf("保存评分项失败: %s, Error=%w", s.Criterion, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// GetByID 根据ID查询评分记录
func (r *RunRepo) GetByID(ctx context.Context, id string) (*storage.GradeRun, error) {
	var row dao.GradeRunDAO
	query := r.db.Rebind(`SELECT ` + strings.Join(runColumns, ", ") + ` FROM grade_run WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询评分记录失败: %w", err)
	}

	runs := []*storage.GradeRun{daoToRun(&row)}
	if err := r.loadScores(ctx, runs); err != nil {
		return nil, err
	}
	return runs[0], nil
}

// ListByPlan 按开始时间倒序查询某个计划的评分记录
func (r *RunRepo) ListByPlan(ctx context.Context, plan string, limit int) ([]*storage.GradeRun, error) {
	query := `SELECT ` + strings.Join(runColumns, ", ") + ` FROM grade_run WHERE plan_name = ? ORDER BY started_at DESC, id`
	args := []interface{}{plan}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []dao.GradeRunDAO
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("查询评分记录列表失败: %w", err)
	}

	runs := make([]*storage.GradeRun, len(rows))
	for i := range rows {
		runs[i] = daoToRun(&rows[i])
	}
	if err := r.loadScores(ctx, runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// loadScores 一次查询加载多条记录的评分项
func (r *RunRepo) loadScores(ctx context.Context, runs []*storage.GradeRun) error {
	if len(runs) == 0 {
		return nil
	}
	ids := make([]string, len(runs))
	byID := make(map[string]*storage.GradeRun, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
		byID[run.ID] = run
	}

	query, args, err := sqlx.In(`SELECT run_id, seq, criterion, value, justification
	                             FROM grade_score WHERE run_id IN (?) ORDER BY run_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("构建查询失败: %w", err)
	}
	var rows []dao.GradeScoreDAO
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("查询评分项失败: %w", err)
	}
	for _, row := range rows {
		run := byID[row.RunID]
		run.Scores = append(run.Scores, types.ScoreRecord{
			Criterion:     row.Criterion,
			Value:         row.Value,
			Justification: row.Justification.String,
		})
	}
	return nil
}

func runToDAO(run *storage.GradeRun) *dao.GradeRunDAO {
	return &dao.GradeRunDAO{
		ID:           run.ID,
		PlanName:     run.PlanName,
		Subject:      run.Subject,
		Status:       string(run.Status),
		FailedNode:   nullString(run.FailedNode),
		ErrorKind:    nullString(run.ErrorKind),
		ErrorMessage: nullString(run.ErrorMessage),
		Total:        run.Total,
		StartedAt:    run.StartedAt.UTC(),
		FinishedAt:   run.FinishedAt.UTC(),
	}
}

func daoToRun(row *dao.GradeRunDAO) *storage.GradeRun {
	return &storage.GradeRun{
		ID:           row.ID,
		PlanName:     row.PlanName,
		Subject:      row.Subject,
		Status:       storage.RunStatus(row.Status),
		FailedNode:   row.FailedNode.String,
		ErrorKind:    row.ErrorKind.String,
		ErrorMessage: row.ErrorMessage.String,
		Total:        row.Total,
		Scores:       make([]types.ScoreRecord, 0),
		StartedAt:    row.StartedAt.UTC(),
		FinishedAt:   row.FinishedAt.UTC(),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// 确保实现接口
var _ storage.RunRepository = (*RunRepo)(nil)
