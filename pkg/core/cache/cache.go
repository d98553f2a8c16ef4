package cache

import (
	"fmt"
	"sync"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

// Memo 带生命周期的上下文缓存（对外导出）
// 状态只有两种：UNSET / SET(value)
// UNSET -> SET 只能通过 Init，SET -> UNSET 只能通过 Clear
type Memo struct {
	mu           sync.RWMutex
	factory      types.ContextFactory
	set          bool
	initializing bool
	value        any
	calls        int
}

// NewMemo 包装一个原始工厂函数（对外导出）
func NewMemo(factory types.ContextFactory) *Memo {
	if factory == nil {
		panic("cache: 工厂函数不能为空")
	}
	return &Memo{factory: factory}
}

// Init 调用原始工厂并缓存结果
// 在 SET 状态或另一次 Init 尚未返回时再次调用属于调用方的逻辑错误，直接 panic
// 工厂在锁外执行，期间 IsSet/Calls 不会阻塞；工厂返回错误或 panic 时保持 UNSET
func (m *Memo) Init(p types.Pass) error {
	m.mu.Lock()
	if m.set || m.initializing {
		m.mu.Unlock()
		panic(fmt.Sprintf("cache: 节点 %s 在未 Clear 的情况下重复 Init", p.Node()))
	}
	m.initializing = true
	m.calls++
	m.mu.Unlock()

	ok := false
	var v any
	defer func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.initializing = false
		if ok {
			m.value = v
			m.set = true
		}
	}()

	v, err := m.factory(p)
	if err != nil {
		return err
	}
	ok = true
	return nil
}

// Value 读取缓存值，仅在 SET 状态下合法
func (m *Memo) Value() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.set {
		panic("cache: 在 UNSET 状态下读取上下文值")
	}
	return m.value
}

// Clear 丢弃缓存值，幂等
func (m *Memo) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.value = nil
	m.set = false
}

// IsSet 是否处于 SET 状态
func (m *Memo) IsSet() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set
}

// Calls 原始工厂累计调用次数（用于诊断与测试）
func (m *Memo) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
