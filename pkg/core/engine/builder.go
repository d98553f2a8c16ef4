package engine

import (
	"errors"
	"fmt"
	"log"

	internalstorage "github.com/LENAX/grade-engine/internal/storage"
	"github.com/LENAX/grade-engine/pkg/config"
	"github.com/LENAX/grade-engine/pkg/core/events"
	"github.com/LENAX/grade-engine/pkg/core/graph"
	"github.com/LENAX/grade-engine/pkg/core/registry"
	"github.com/LENAX/grade-engine/pkg/plugin"
	"github.com/LENAX/grade-engine/pkg/storage"
)

type namedGraph struct {
	name  string
	graph *graph.Graph
}

type pluginSpec struct {
	plugin plugin.Plugin
	params map[string]string
	events []events.EventType
}

// EngineBuilder 引擎构建器（链式调用）
type EngineBuilder struct {
	engineConfigPath string
	cfg              *config.EngineConfig
	registry         *registry.Registry
	contexts         map[string]registry.ContextBuilder
	evaluators       map[string]registry.EvaluatorBuilder
	graphs           []namedGraph
	plugins          []pluginSpec
	repo             storage.RunRepository
	bus              *events.Bus
	err              error
}

// NewEngineBuilder 创建引擎构建器（入口）
func NewEngineBuilder(engineConfigPath string) *EngineBuilder {
	return &EngineBuilder{
		engineConfigPath: engineConfigPath,
		contexts:         make(map[string]registry.ContextBuilder),
		evaluators:       make(map[string]registry.EvaluatorBuilder),
	}
}

// WithConfig 直接使用已加载的配置，忽略配置文件路径（链式）
func (b *EngineBuilder) WithConfig(cfg *config.EngineConfig) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if cfg == nil {
		b.err = errors.New("engine config is nil")
		return b
	}
	b.cfg = cfg
	return b
}

// WithRegistry 使用自定义函数注册表，默认为带内置函数的注册表（链式）
func (b *EngineBuilder) WithRegistry(reg *registry.Registry) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if reg == nil {
		b.err = errors.New("registry is nil")
		return b
	}
	b.registry = reg
	return b
}

// WithContextFunc 注册上下文函数，供评分清单引用（链式）
func (b *EngineBuilder) WithContextFunc(name string, fn registry.ContextBuilder) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if name == "" || fn == nil {
		b.err = errors.New("context func name or function is empty")
		return b
	}
	b.contexts[name] = fn
	return b
}

// WithEvaluatorFunc 注册评分函数，供评分清单引用（链式）
func (b *EngineBuilder) WithEvaluatorFunc(name string, fn registry.EvaluatorBuilder) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if name == "" || fn == nil {
		b.err = errors.New("evaluator func name or function is empty")
		return b
	}
	b.evaluators[name] = fn
	return b
}

// WithPlan 注册以代码构建的评分图（链式）
func (b *EngineBuilder) WithPlan(name string, g *graph.Graph) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if g == nil {
		b.err = fmt.Errorf("graph of plan %s is nil", name)
		return b
	}
	b.graphs = append(b.graphs, namedGraph{name: name, graph: g})
	return b
}

// WithPlugin 注册事件插件并绑定到事件类型（链式）
func (b *EngineBuilder) WithPlugin(p plugin.Plugin, params map[string]string, eventTypes ...events.EventType) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if p == nil || len(eventTypes) == 0 {
		b.err = errors.New("plugin or its event types is empty")
		return b
	}
	b.plugins = append(b.plugins, pluginSpec{plugin: p, params: params, events: eventTypes})
	return b
}

// WithRunRepository 使用指定的评分记录存储，不再按配置创建（链式）
func (b *EngineBuilder) WithRunRepository(repo storage.RunRepository) *EngineBuilder {
	if b.err != nil {
		return b
	}
	b.repo = repo
	return b
}

// WithEventBus 使用指定的事件总线（链式）
func (b *EngineBuilder) WithEventBus(bus *events.Bus) *EngineBuilder {
	if b.err != nil {
		return b
	}
	b.bus = bus
	return b
}

// Build 构建引擎
func (b *EngineBuilder) Build() (*Engine, error) {
	if b.err != nil {
		return nil, b.err
	}

	// 1. 加载并校验引擎配置
	cfg := b.cfg
	if cfg == nil {
		loaded, err := config.LoadFrameworkConfig(b.engineConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load engine config failed: %w", err)
		}
		cfg = loaded
	} else if err := config.ValidateFrameworkConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate engine config failed: %w", err)
	}

	// 2. 准备函数注册表
	reg, err := b.initRegistry()
	if err != nil {
		return nil, err
	}

	pm, err := b.initPlugins(cfg)
	if err != nil {
		return nil, err
	}

	// 3. 初始化存储层
	repo := b.repo
	if repo == nil {
		repo, err = initStorage(cfg)
		if err != nil {
			return nil, fmt.Errorf("init storage failed: %w", err)
		}
	}

	bus := b.bus
	if bus == nil {
		bus = events.NewBus()
	}

	eng := NewEngine(
		WithRunRepository(repo),
		WithEventBus(bus),
		WithWorkers(cfg.GetWorkers()),
		WithSortScores(cfg.GradeEngine.Execution.SortScores),
		WithPluginManager(pm),
	)

	// 4. 注册评分计划与定时评分，失败时释放已创建的资源
	if err := b.registerPlans(eng, cfg, reg); err != nil {
		eng.Stop()
		return nil, err
	}
	for _, s := range cfg.GradeEngine.Schedules {
		entry := ScheduleEntry{Plan: s.Plan, Cron: s.Cron, Subjects: s.Subjects}
		if err := eng.GetCronScheduler().RegisterSchedule(entry); err != nil {
			eng.Stop()
			return nil, fmt.Errorf("register schedule for plan %s failed: %w", s.Plan, err)
		}
	}

	log.Printf("📝 [EngineBuilder] 引擎已构建: Instance=%s, Database=%s, Plans=%d, Schedules=%d, Plugins=%d",
		cfg.GradeEngine.General.InstanceName, cfg.GetDatabaseType(), len(eng.Plans()), len(cfg.GradeEngine.Schedules),
		len(pm.ListPlugins()))
	return eng, nil
}

func (b *EngineBuilder) initRegistry() (*registry.Registry, error) {
	reg := b.registry
	if reg == nil {
		reg = registry.NewWithBuiltins()
	}
	for name, fn := range b.contexts {
		if err := reg.RegisterContext(name, "", fn); err != nil {
			return nil, fmt.Errorf("register context func %s failed: %w", name, err)
		}
	}
	for name, fn := range b.evaluators {
		if err := reg.RegisterEvaluator(name, "", fn); err != nil {
			return nil, fmt.Errorf("register evaluator func %s failed: %w", name, err)
		}
	}
	return reg, nil
}

// initPlugins 注册配置文件和代码中声明的插件
func (b *EngineBuilder) initPlugins(cfg *config.EngineConfig) (plugin.PluginManager, error) {
	pm := plugin.NewPluginManager()
	specs := make([]pluginSpec, 0, len(cfg.GradeEngine.Plugins)+len(b.plugins))
	for _, pc := range cfg.GradeEngine.Plugins {
		p, err := plugin.NewPlugin(pc.Type, pc.Name)
		if err != nil {
			return nil, err
		}
		eventTypes := make([]events.EventType, len(pc.Events))
		for i, t := range pc.Events {
			eventTypes[i] = events.EventType(t)
		}
		specs = append(specs, pluginSpec{plugin: p, params: pc.Params, events: eventTypes})
	}
	specs = append(specs, b.plugins...)

	for _, spec := range specs {
		if err := pm.RegisterWithInit(spec.plugin, spec.params); err != nil {
			return nil, fmt.Errorf("register plugin failed: %w", err)
		}
		for _, t := range spec.events {
			if err := pm.Bind(plugin.PluginBinding{PluginName: spec.plugin.Name(), Event: t}); err != nil {
				return nil, fmt.Errorf("bind plugin %s failed: %w", spec.plugin.Name(), err)
			}
		}
	}
	return pm, nil
}

func (b *EngineBuilder) registerPlans(eng *Engine, cfg *config.EngineConfig, reg *registry.Registry) error {
	for _, ref := range cfg.GradeEngine.Plans {
		m, err := config.LoadPlanManifest(ref.Manifest)
		if err != nil {
			return fmt.Errorf("load manifest of plan %s failed: %w", ref.Name, err)
		}
		g, err := m.BuildGraph(reg)
		if err != nil {
			return fmt.Errorf("build graph of plan %s failed: %w", ref.Name, err)
		}
		if err := eng.RegisterPlan(ref.Name, g); err != nil {
			return err
		}
	}
	for _, ng := range b.graphs {
		if err := eng.RegisterPlan(ng.name, ng.graph); err != nil {
			return err
		}
	}
	return nil
}

// initStorage 根据配置创建评分记录存储
func initStorage(cfg *config.EngineConfig) (storage.RunRepository, error) {
	db := cfg.GradeEngine.Storage.Database
	return internalstorage.NewRunRepository(internalstorage.DatabaseOptions{
		Type:            db.Type,
		DSN:             db.DSN,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		ConnMaxIdleTime: db.ConnMaxIdleTime,
	})
}
