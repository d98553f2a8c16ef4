package executor

import (
	"context"
	"strings"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

// Comparator 评分结果排序函数，语义同 slices.SortStableFunc
type Comparator func(a, b types.ScoreRecord) int

// ByCriterion 按评分项名称排序
func ByCriterion(a, b types.ScoreRecord) int {
	return strings.Compare(a.Criterion, b.Criterion)
}

// Hooks 单轮评分的生命周期回调（对外导出）
// 回调在 Grade 持有的锁内同步执行，不应阻塞
type Hooks struct {
	OnPassStart func(ctx context.Context, plan string, input any)
	OnPassEnd   func(ctx context.Context, plan string, input any, records []types.ScoreRecord, err error)
}

func (h Hooks) start(ctx context.Context, plan string, input any) {
	if h.OnPassStart != nil {
		h.OnPassStart(ctx, plan, input)
	}
}

func (h Hooks) end(ctx context.Context, plan string, input any, records []types.ScoreRecord, err error) {
	if h.OnPassEnd != nil {
		h.OnPassEnd(ctx, plan, input, records, err)
	}
}

type options struct {
	compare Comparator
	hooks   Hooks
}

// Option Plan 配置项
type Option func(*options)

// WithComparator 成功时按比较函数稳定排序结果
func WithComparator(c Comparator) Option {
	return func(o *options) {
		o.compare = c
	}
}

// WithHooks 注册生命周期回调
func WithHooks(h Hooks) Option {
	return func(o *options) {
		o.hooks = h
	}
}
