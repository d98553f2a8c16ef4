package plugin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/LENAX/grade-engine/pkg/core/events"
)

// Plugin 评分事件插件接口（对外导出）
type Plugin interface {
	// Name 插件名称，在管理器内唯一
	Name() string
	// Init 使用配置参数初始化插件
	Init(params map[string]string) error
	// Execute 处理一个评分事件
	Execute(ctx context.Context, event *events.GradeEvent) error
}

// PluginBinding 插件绑定规则（对外导出）
type PluginBinding struct {
	PluginName string                              // 插件名称
	Event      events.EventType                    // 触发事件
	Condition  func(event *events.GradeEvent) bool // 可选：条件函数，满足条件才触发
}

// PluginManager 插件管理器接口（对外导出）
type PluginManager interface {
	// Register 注册插件
	Register(plugin Plugin) error
	// RegisterWithInit 注册并初始化插件
	RegisterWithInit(plugin Plugin, params map[string]string) error
	// Bind 绑定插件到事件
	Bind(binding PluginBinding) error
	// Trigger 触发绑定到事件类型的插件
	Trigger(ctx context.Context, event *events.GradeEvent) error
	// Listen 订阅事件总线，在后台触发插件，ctx 结束或总线关闭后退出
	Listen(ctx context.Context, bus *events.Bus) error
	// GetPlugin 获取已注册的插件
	GetPlugin(name string) (Plugin, bool)
	// ListPlugins 列出所有已注册的插件（按名称排序）
	ListPlugins() []string
	// Unregister 取消注册插件
	Unregister(name string) error
}

type pluginManagerImpl struct {
	plugins  map[string]Plugin                     // 已注册的插件（插件名称 -> 插件实例）
	bindings map[events.EventType][]PluginBinding // 事件绑定（事件类型 -> 绑定列表）
	mu       sync.RWMutex
}

// NewPluginManager 创建插件管理器（对外导出）
func NewPluginManager() PluginManager {
	return &pluginManagerImpl{
		plugins:  make(map[string]Plugin),
		bindings: make(map[events.EventType][]PluginBinding),
	}
}

// Register 注册插件（实现PluginManager接口）
func (pm *pluginManagerImpl) Register(plugin Plugin) error {
	if plugin == nil {
		return fmt.Errorf("插件不能为空")
	}

	name := plugin.Name()
	if name == "" {
		return fmt.Errorf("插件名称不能为空")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.plugins[name]; exists {
		return fmt.Errorf("插件 %s 已注册", name)
	}

	pm.plugins[name] = plugin
	return nil
}

// RegisterWithInit 注册并初始化插件（实现PluginManager接口）
func (pm *pluginManagerImpl) RegisterWithInit(plugin Plugin, params map[string]string) error {
	if err := pm.Register(plugin); err != nil {
		return err
	}

	if err := plugin.Init(params); err != nil {
		// 初始化失败，移除已注册的插件
		pm.mu.Lock()
		delete(pm.plugins, plugin.Name())
		pm.mu.Unlock()
		return fmt.Errorf("插件 %s 初始化失败: %w", plugin.Name(), err)
	}

	return nil
}

// Bind 绑定插件到事件（实现PluginManager接口）
func (pm *pluginManagerImpl) Bind(binding PluginBinding) error {
	if binding.PluginName == "" {
		return fmt.Errorf("插件名称不能为空")
	}
	if binding.Event == "" {
		return fmt.Errorf("触发事件不能为空")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.plugins[binding.PluginName]; !exists {
		return fmt.Errorf("插件 %s 未注册", binding.PluginName)
	}

	pm.bindings[binding.Event] = append(pm.bindings[binding.Event], binding)
	return nil
}

// Trigger 触发插件（实现PluginManager接口）
// 单个插件失败不影响其余插件，所有错误合并返回
func (pm *pluginManagerImpl) Trigger(ctx context.Context, event *events.GradeEvent) error {
	if event == nil {
		return nil
	}

	pm.mu.RLock()
	bindings := append([]PluginBinding(nil), pm.bindings[event.Type]...)
	pm.mu.RUnlock()

	var errs []error
	for _, binding := range bindings {
		if binding.Condition != nil && !binding.Condition(event) {
			continue
		}

		plugin, exists := pm.GetPlugin(binding.PluginName)
		if !exists {
			continue
		}

		if err := plugin.Execute(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("插件 %s 执行失败: %w", binding.PluginName, err))
		}
	}

	return errors.Join(errs...)
}

// Listen 订阅事件总线（实现PluginManager接口）
// 只订阅已绑定的事件类型；没有任何绑定时不订阅
func (pm *pluginManagerImpl) Listen(ctx context.Context, bus *events.Bus) error {
	if bus == nil {
		return fmt.Errorf("事件总线不能为空")
	}

	pm.mu.RLock()
	types := make([]events.EventType, 0, len(pm.bindings))
	for t, bs := range pm.bindings {
		if len(bs) > 0 {
			types = append(types, t)
		}
	}
	pm.mu.RUnlock()

	if len(types) == 0 {
		return nil
	}

	ch, err := bus.Subscribe(ctx, types...)
	if err != nil {
		return err
	}

	go func() {
		for event := range ch {
			if err := pm.Trigger(ctx, event); err != nil {
				log.Printf("⚠️ [插件] 事件处理失败: Type=%s, Plan=%s, Error=%v", event.Type, event.Plan, err)
			}
		}
	}()

	log.Printf("✅ [插件] 已订阅事件: %v", types)
	return nil
}

// GetPlugin 获取已注册的插件（实现PluginManager接口）
func (pm *pluginManagerImpl) GetPlugin(name string) (Plugin, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	plugin, exists := pm.plugins[name]
	return plugin, exists
}

// ListPlugins 列出所有已注册的插件（实现PluginManager接口）
func (pm *pluginManagerImpl) ListPlugins() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	names := make([]string, 0, len(pm.plugins))
	for name := range pm.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister 取消注册插件（实现PluginManager接口）
func (pm *pluginManagerImpl) Unregister(name string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.plugins[name]; !exists {
		return fmt.Errorf("插件 %s 未注册", name)
	}

	delete(pm.plugins, name)

	// 移除所有相关的绑定
	for event, bindings := range pm.bindings {
		filtered := make([]PluginBinding, 0, len(bindings))
		for _, binding := range bindings {
			if binding.PluginName != name {
				filtered = append(filtered, binding)
			}
		}
		pm.bindings[event] = filtered
	}

	return nil
}

// NewPlugin 按类型创建插件（配置文件使用），目前支持 webhook
func NewPlugin(kind, name string) (Plugin, error) {
	switch kind {
	case "webhook":
		return NewWebhookPlugin(name), nil
	default:
		return nil, fmt.Errorf("不支持的插件类型: %s", kind)
	}
}
