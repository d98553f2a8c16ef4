package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LENAX/grade-engine/pkg/core/dag"
	"github.com/LENAX/grade-engine/pkg/core/events"
	"github.com/LENAX/grade-engine/pkg/core/executor"
	"github.com/LENAX/grade-engine/pkg/core/graph"
	"github.com/LENAX/grade-engine/pkg/core/types"
	"github.com/LENAX/grade-engine/pkg/plugin"
	"github.com/LENAX/grade-engine/pkg/storage"
)

var (
	// ErrPlanNotFound 评分计划未注册
	ErrPlanNotFound = errors.New("评分计划不存在")
	// ErrPlanExists 评分计划重复注册
	ErrPlanExists = errors.New("评分计划已注册")
	// ErrEngineStopped 引擎已停止，存储和事件总线已关闭
	ErrEngineStopped = errors.New("引擎已停止")
)

// PlanInfo 已注册计划的概要信息
type PlanInfo struct {
	Name       string         `json:"name"`
	Input      types.NodeID   `json:"input"`
	Order      []types.NodeID `json:"order"`
	Contexts   int            `json:"contexts"`
	Evaluators int            `json:"evaluators"`
	Edges      int            `json:"edges"`
}

// BatchResult 批量评分结果，Runs 顺序与输入一致
type BatchResult struct {
	Plan      string              `json:"plan"`
	Runs      []*storage.GradeRun `json:"runs"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// Engine 评分引擎（对外导出）
// 持有已编译的评分计划、评分记录存储和事件总线
type Engine struct {
	plans         map[string]*executor.Plan
	repo          storage.RunRepository
	bus           *events.Bus
	workers       int
	sortScores    bool
	cronScheduler *CronScheduler
	plugins       plugin.PluginManager
	stopPlugins   context.CancelFunc
	running       bool
	stopped       bool
	closeOnce     sync.Once
	mu            sync.RWMutex
}

// Option 引擎配置项
type Option func(*Engine)

// WithRunRepository 评分记录持久化；未设置时不保存
func WithRunRepository(repo storage.RunRepository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

// WithEventBus 发布评分事件；未设置时不发布
func WithEventBus(bus *events.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithWorkers 批量评分并行度
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithSortScores 按评分项名称排序结果
func WithSortScores(enabled bool) Option {
	return func(e *Engine) {
		e.sortScores = enabled
	}
}

// WithPluginManager 启动时订阅事件总线并触发已绑定的插件
func WithPluginManager(pm plugin.PluginManager) Option {
	return func(e *Engine) {
		e.plugins = pm
	}
}

// NewEngine 创建评分引擎（对外导出）
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		plans:   make(map[string]*executor.Plan),
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	e.cronScheduler = NewCronScheduler(e)
	return e
}

// Start 启动引擎及定时调度器（对外导出）
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	if e.running {
		return nil
	}
	if e.plugins != nil && e.bus != nil {
		lctx, cancel := context.WithCancel(context.Background())
		if err := e.plugins.Listen(lctx, e.bus); err != nil {
			cancel()
			return fmt.Errorf("启动插件监听失败: %w", err)
		}
		e.stopPlugins = cancel
	}
	e.running = true
	e.cronScheduler.Start()
	log.Printf("✅ 评分引擎已启动: plans=%d, workers=%d", len(e.plans), e.workers)
	return nil
}

// Stop 停止引擎，关闭事件总线和存储（对外导出）
// Stop 之后引擎不可再次启动
func (e *Engine) Stop() {
	e.mu.Lock()
	wasRunning := e.running
	e.running = false
	e.stopped = true
	stopPlugins := e.stopPlugins
	e.stopPlugins = nil
	e.mu.Unlock()

	// 正在执行的定时评分需要读取计划，不能持锁等待
	if wasRunning {
		e.cronScheduler.Stop()
	}
	if stopPlugins != nil {
		stopPlugins()
	}

	e.closeOnce.Do(func() {
		if e.bus != nil {
			if err := e.bus.Close(); err != nil {
				log.Printf("⚠️ 关闭事件总线失败: %v", err)
			}
		}
		if e.repo != nil {
			if err := e.repo.Close(); err != nil {
				log.Printf("⚠️ 关闭评分记录存储失败: %v", err)
			}
		}
		log.Println("✅ 评分引擎已停止")
	})
}

func (e *Engine) isStopped() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopped
}

// IsRunning 引擎是否已启动
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// RegisterPlan 编译并注册评分计划（对外导出）
// name 为空时使用图名称
func (e *Engine) RegisterPlan(name string, g *graph.Graph) error {
	if g == nil {
		return fmt.Errorf("评分计划 %s 的图不能为空", name)
	}
	if name == "" {
		name = g.Name()
	}
	if name == "" {
		return fmt.Errorf("评分计划名称不能为空")
	}

	schedule, err := dag.Compile(g)
	if err != nil {
		return fmt.Errorf("编译评分计划 %s 失败: %w", name, err)
	}

	opts := []executor.Option{executor.WithHooks(e.hooks(name))}
	if e.sortScores {
		opts = append(opts, executor.WithComparator(executor.ByCriterion))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.plans[name]; exists {
		return fmt.Errorf("%w: %s", ErrPlanExists, name)
	}
	e.plans[name] = executor.NewPlan(schedule, opts...)
	log.Printf("✅ 已注册评分计划: Name=%s, Nodes=%d, Evaluators=%d", name, schedule.Len(), len(schedule.Evaluators()))
	return nil
}

// Plans 已注册计划的概要，按名称排序
func (e *Engine) Plans() []PlanInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]PlanInfo, 0, len(e.plans))
	for name, p := range e.plans {
		s := p.Schedule()
		infos = append(infos, PlanInfo{
			Name:       name,
			Input:      s.Input(),
			Order:      s.Order(),
			Contexts:   len(s.Contexts()),
			Evaluators: len(s.Evaluators()),
			Edges:      s.EdgeCount(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GetPlan 获取已注册计划
func (e *Engine) GetPlan(name string) (*executor.Plan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.plans[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, name)
	}
	return p, nil
}

// GetEventBus 获取事件总线，可能为 nil
func (e *Engine) GetEventBus() *events.Bus {
	return e.bus
}

// GetPluginManager 获取插件管理器，未配置时为 nil
func (e *Engine) GetPluginManager() plugin.PluginManager {
	return e.plugins
}

// GetCronScheduler 获取定时调度器
func (e *Engine) GetCronScheduler() *CronScheduler {
	return e.cronScheduler
}

// Grade 对单个评分对象评分并保存记录（对外导出）
// 评分失败时返回 Status=FAILED 的记录和 *executor.EngineError
// 未调用 Start 也可评分，Stop 之后返回 ErrEngineStopped
func (e *Engine) Grade(ctx context.Context, planName, subject string) (*storage.GradeRun, error) {
	if e.isStopped() {
		return nil, ErrEngineStopped
	}
	p, err := e.GetPlan(planName)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	scores, gradeErr := p.Grade(ctx, subject)
	run := e.record(ctx, planName, executor.Outcome{
		Input:      subject,
		Scores:     scores,
		Err:        gradeErr,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	return run, gradeErr
}

// GradeBatch 批量评分，workers>1 时在 Plan 的副本上并行执行（对外导出）
// 单个评分对象失败不影响其余对象
func (e *Engine) GradeBatch(ctx context.Context, planName string, subjects []string) (*BatchResult, error) {
	if e.isStopped() {
		return nil, ErrEngineStopped
	}
	p, err := e.GetPlan(planName)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	outcomes := p.GradeAllParallel(ctx, executor.Inputs(subjects), e.workers)

	result := &BatchResult{Plan: planName, Runs: make([]*storage.GradeRun, len(outcomes))}
	for i, o := range outcomes {
		result.Runs[i] = e.record(ctx, planName, o)
	}
	result.Succeeded = outcomes.Succeeded()
	result.Failed = len(outcomes) - result.Succeeded

	e.publish(ctx, events.NewGradeEvent(events.EventBatchFinished, planName, "", "", &events.BatchPayload{
		Subjects:  len(subjects),
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Workers:   e.workers,
	}))
	log.Printf("✅ 批量评分完成: Plan=%s, Subjects=%d, Succeeded=%d, Failed=%d", planName, len(subjects), result.Succeeded, result.Failed)
	return result, nil
}

// GetRun 查询评分记录，不存在时返回 nil, nil
func (e *Engine) GetRun(ctx context.Context, id string) (*storage.GradeRun, error) {
	if e.repo == nil {
		return nil, nil
	}
	return e.repo.GetByID(ctx, id)
}

// ListRuns 查询某个计划的评分记录
func (e *Engine) ListRuns(ctx context.Context, planName string, limit int) ([]*storage.GradeRun, error) {
	if e.repo == nil {
		return []*storage.GradeRun{}, nil
	}
	return e.repo.ListByPlan(ctx, planName, limit)
}

// record 把一次评分结果转为记录，保存并发布结束事件
func (e *Engine) record(ctx context.Context, planName string, o executor.Outcome) *storage.GradeRun {
	subject := fmt.Sprint(o.Input)
	run := &storage.GradeRun{
		ID:         uuid.NewString(),
		PlanName:   planName,
		Subject:    subject,
		Status:     storage.RunSucceeded,
		Total:      o.Total(),
		Scores:     o.Scores,
		StartedAt:  o.StartedAt.UTC(),
		FinishedAt: o.FinishedAt.UTC(),
	}
	if run.Scores == nil {
		run.Scores = make([]types.ScoreRecord, 0)
	}

	payload := &events.PassPayload{
		Total:      run.Total,
		Scores:     len(run.Scores),
		DurationMS: run.Duration().Milliseconds(),
	}
	eventType := events.EventPassSucceeded
	if o.Err != nil {
		run.Status = storage.RunFailed
		run.ErrorKind = ErrorKind(o.Err)
		run.ErrorMessage = o.Err.Error()
		if ee := executor.AsEngineError(o.Err); ee != nil {
			run.FailedNode = string(ee.Node)
		}
		payload.FailedNode = run.FailedNode
		payload.ErrorKind = run.ErrorKind
		payload.Error = run.ErrorMessage
		eventType = events.EventPassFailed
	}

	if e.repo != nil {
		if err := e.repo.Save(ctx, run); err != nil {
			log.Printf("⚠️ 保存评分记录失败: RunID=%s, Plan=%s, Error=%v", run.ID, planName, err)
		}
	}
	e.publish(ctx, events.NewGradeEvent(eventType, planName, subject, run.ID, payload))
	return run
}

// hooks 每轮评分开始时发布事件
func (e *Engine) hooks(planName string) executor.Hooks {
	return executor.Hooks{
		OnPassStart: func(ctx context.Context, _ string, input any) {
			e.publish(ctx, events.NewGradeEvent(events.EventPassStarted, planName, fmt.Sprint(input), "", nil))
		},
	}
}

func (e *Engine) publish(ctx context.Context, event *events.GradeEvent) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, event); err != nil && !errors.Is(err, events.ErrBusClosed) {
		log.Printf("⚠️ 发布评分事件失败: Type=%s, Plan=%s, Error=%v", event.Type, event.Plan, err)
	}
}

// ErrorKind 评分错误的类别名称
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, executor.ErrNodePanic):
		return "node_panic"
	case errors.Is(err, executor.ErrUndeclaredPrerequisite):
		return "undeclared_prerequisite"
	case errors.Is(err, executor.ErrContextInit):
		return "context_init"
	case errors.Is(err, executor.ErrEvaluator):
		return "evaluator"
	default:
		return "unknown"
	}
}
