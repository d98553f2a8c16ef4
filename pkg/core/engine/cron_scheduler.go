package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/LENAX/grade-engine/pkg/config"
)

// ScheduleEntry 已注册的定时批量评分
type ScheduleEntry struct {
	Plan     string   `json:"plan"`
	Cron     string   `json:"cron"`
	Subjects []string `json:"subjects"`
}

// CronScheduler 定时调度器（对外导出）
// 按 Cron 表达式周期性地对一组评分对象执行批量评分
type CronScheduler struct {
	cron      *cron.Cron
	engine    *Engine
	schedules map[string]ScheduleEntry // scheduleKey -> 定时配置
	entries   map[string]cron.EntryID  // scheduleKey -> cron.EntryID
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewCronScheduler 创建定时调度器（对外导出）
func NewCronScheduler(eng *Engine) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron:      cron.New(cron.WithParser(config.CronParser)),
		engine:    eng,
		schedules: make(map[string]ScheduleEntry),
		entries:   make(map[string]cron.EntryID),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func scheduleKey(plan, expr string) string {
	return plan + "@" + expr
}

// RegisterSchedule 注册定时批量评分（对外导出）
// 同一计划可以注册多个不同的 Cron 表达式
func (cs *CronScheduler) RegisterSchedule(entry ScheduleEntry) error {
	if entry.Plan == "" {
		return fmt.Errorf("定时评分的计划名称不能为空")
	}
	if len(entry.Subjects) == 0 {
		return fmt.Errorf("定时评分 %s 未设置评分对象", entry.Plan)
	}
	if _, err := cs.engine.GetPlan(entry.Plan); err != nil {
		return err
	}
	if _, err := config.CronParser.Parse(entry.Cron); err != nil {
		return fmt.Errorf("计划 %s 的Cron表达式无效: %w", entry.Plan, err)
	}

	key := scheduleKey(entry.Plan, entry.Cron)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.entries[key]; exists {
		return fmt.Errorf("定时评分 %s 已注册", key)
	}

	subjects := append([]string(nil), entry.Subjects...)
	entryID, err := cs.cron.AddFunc(entry.Cron, func() {
		cs.trigger(entry.Plan, subjects)
	})
	if err != nil {
		return fmt.Errorf("添加Cron任务失败: %w", err)
	}

	entry.Subjects = subjects
	cs.schedules[key] = entry
	cs.entries[key] = entryID

	log.Printf("✅ [Cron调度器] 已注册定时评分: Plan=%s, CronExpr=%s, Subjects=%d", entry.Plan, entry.Cron, len(subjects))
	return nil
}

// UnregisterSchedule 取消定时批量评分（对外导出）
func (cs *CronScheduler) UnregisterSchedule(plan, expr string) error {
	key := scheduleKey(plan, expr)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	entryID, exists := cs.entries[key]
	if !exists {
		return fmt.Errorf("定时评分 %s 未注册", key)
	}
	cs.cron.Remove(entryID)
	delete(cs.schedules, key)
	delete(cs.entries, key)

	log.Printf("✅ [Cron调度器] 已取消定时评分: Plan=%s, CronExpr=%s", plan, expr)
	return nil
}

// trigger 执行一次批量评分（内部方法）
func (cs *CronScheduler) trigger(plan string, subjects []string) {
	log.Printf("🕐 [Cron调度器] 触发批量评分: Plan=%s, Subjects=%d", plan, len(subjects))

	result, err := cs.engine.GradeBatch(cs.ctx, plan, subjects)
	if err != nil {
		log.Printf("❌ [Cron调度器] 批量评分失败: Plan=%s, Error=%v", plan, err)
		return
	}
	log.Printf("✅ [Cron调度器] 批量评分结束: Plan=%s, Succeeded=%d, Failed=%d", plan, result.Succeeded, result.Failed)
}

// Start 启动定时调度器（对外导出）
func (cs *CronScheduler) Start() {
	cs.cron.Start()
	log.Println("✅ [Cron调度器] 已启动")
}

// Stop 停止定时调度器并等待正在执行的评分结束（对外导出）
func (cs *CronScheduler) Stop() {
	<-cs.cron.Stop().Done()
	cs.cancel()
	log.Println("✅ [Cron调度器] 已停止")
}

// GetSchedules 获取已注册的定时评分，按计划名称和表达式排序（对外导出）
func (cs *CronScheduler) GetSchedules() []ScheduleEntry {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	out := make([]ScheduleEntry, 0, len(cs.schedules))
	for _, s := range cs.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plan != out[j].Plan {
			return out[i].Plan < out[j].Plan
		}
		return out[i].Cron < out[j].Cron
	})
	return out
}
