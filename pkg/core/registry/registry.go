package registry

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

var (
	// ErrFunctionNotFound 清单中引用了未注册的函数
	ErrFunctionNotFound = errors.New("函数未注册")
	// ErrAlreadyRegistered 同名函数重复注册
	ErrAlreadyRegistered = errors.New("函数已注册")
	// ErrMissingParam 缺少必填参数
	ErrMissingParam = errors.New("缺少必填参数")
)

// Params 节点参数（来自 YAML 清单）
type Params map[string]string

// Get 读取参数，不存在时返回默认值
func (p Params) Get(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// Require 读取必填参数
func (p Params) Require(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	return v, nil
}

// Float 读取浮点参数
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("参数 %s 不是合法数字: %q", key, v)
	}
	return f, nil
}

// Int 读取整数参数
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("参数 %s 不是合法整数: %q", key, v)
	}
	return n, nil
}

// ContextBuilder 根据参数构造上下文工厂
type ContextBuilder func(params Params) (types.ContextFactory, error)

// EvaluatorBuilder 根据参数构造评分函数
type EvaluatorBuilder func(params Params) (types.Evaluator, error)

// Entry 已注册函数的描述
type Entry struct {
	Name        string     `json:"name"`
	Role        types.Role `json:"-"`
	RoleName    string     `json:"role"`
	Description string     `json:"description"`
}

// Registry 具名函数注册中心（对外导出）
// YAML 清单通过名称引用这里注册的上下文/评分函数
type Registry struct {
	mu           sync.RWMutex
	contexts     map[string]ContextBuilder
	evaluators   map[string]EvaluatorBuilder
	descriptions map[string]string
}

// New 创建空注册中心
func New() *Registry {
	return &Registry{
		contexts:     make(map[string]ContextBuilder),
		evaluators:   make(map[string]EvaluatorBuilder),
		descriptions: make(map[string]string),
	}
}

// NewWithBuiltins 创建并注册内置函数
func NewWithBuiltins() *Registry {
	r := New()
	if err := RegisterBuiltins(r); err != nil {
		panic(err)
	}
	return r
}

// RegisterContext 注册上下文函数
func (r *Registry) RegisterContext(name, description string, b ContextBuilder) error {
	if name == "" || b == nil {
		return fmt.Errorf("上下文函数名称和实现不能为空")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.contexts[name]; exists {
		return fmt.Errorf("%w: context %s", ErrAlreadyRegistered, name)
	}
	r.contexts[name] = b
	r.descriptions["context:"+name] = description
	return nil
}

// RegisterEvaluator 注册评分函数
func (r *Registry) RegisterEvaluator(name, description string, b EvaluatorBuilder) error {
	if name == "" || b == nil {
		return fmt.Errorf("评分函数名称和实现不能为空")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.evaluators[name]; exists {
		return fmt.Errorf("%w: evaluator %s", ErrAlreadyRegistered, name)
	}
	r.evaluators[name] = b
	r.descriptions["evaluator:"+name] = description
	return nil
}

// Context 按名称构造上下文工厂
func (r *Registry) Context(name string, params Params) (types.ContextFactory, error) {
	r.mu.RLock()
	b, ok := r.contexts[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: context %s", ErrFunctionNotFound, name)
	}
	f, err := b(params)
	if err != nil {
		return nil, fmt.Errorf("构造上下文函数 %s 失败: %w", name, err)
	}
	return f, nil
}

// Evaluator 按名称构造评分函数
func (r *Registry) Evaluator(name string, params Params) (types.Evaluator, error) {
	r.mu.RLock()
	b, ok := r.evaluators[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: evaluator %s", ErrFunctionNotFound, name)
	}
	e, err := b(params)
	if err != nil {
		return nil, fmt.Errorf("构造评分函数 %s 失败: %w", name, err)
	}
	return e, nil
}

// Names 列出全部已注册函数，按角色、名称排序
func (r *Registry) Names() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.contexts)+len(r.evaluators))
	for name := range r.contexts {
		out = append(out, Entry{Name: name, Role: types.RoleContext, RoleName: types.RoleContext.String(), Description: r.descriptions["context:"+name]})
	}
	for name := range r.evaluators {
		out = append(out, Entry{Name: name, Role: types.RoleEvaluator, RoleName: types.RoleEvaluator.String(), Description: r.descriptions["evaluator:"+name]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Name < out[j].Name
	})
	return out
}
