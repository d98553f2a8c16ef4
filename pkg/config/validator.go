package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// CronParser cron 表达式解析规则，秒字段可选（CronScheduler 共用）
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateFrameworkConfig 校验框架配置合法性
func ValidateFrameworkConfig(cfg *EngineConfig) error {
	if cfg == nil {
		return fmt.Errorf("配置不能为空")
	}
	g := &cfg.GradeEngine

	// General
	if g.General.InstanceName == "" {
		return fmt.Errorf("instance_name不能为空")
	}
	if g.General.LogLevel != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[g.General.LogLevel] {
			return fmt.Errorf("log_level必须是debug/info/warn/error之一")
		}
	}

	// Storage.Database
	if g.Storage.Database.Type == "" {
		return fmt.Errorf("database.type不能为空")
	}
	validDBTypes := map[string]bool{
		"sqlite":     true,
		"postgres":   true,
		"postgresql": true,
		"mysql":      true,
	}
	if !validDBTypes[g.Storage.Database.Type] {
		return fmt.Errorf("database.type必须是sqlite/postgres/mysql之一")
	}
	if g.Storage.Database.DSN == "" {
		return fmt.Errorf("database.dsn不能为空")
	}
	if g.Storage.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns必须大于0")
	}
	if g.Storage.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns不能为负数")
	}

	// Execution
	if g.Execution.Workers <= 0 {
		return fmt.Errorf("execution.workers必须大于0")
	}

	// Server
	if g.Server.Port <= 0 || g.Server.Port > 65535 {
		return fmt.Errorf("server.port必须在1-65535之间")
	}

	// Plans
	plans := make(map[string]bool, len(g.Plans))
	for i, p := range g.Plans {
		if p.Name == "" {
			return fmt.Errorf("plans[%d].name不能为空", i)
		}
		if p.Manifest == "" {
			return fmt.Errorf("plans[%d].manifest不能为空", i)
		}
		if plans[p.Name] {
			return fmt.Errorf("plans[%d].name重复: %s", i, p.Name)
		}
		plans[p.Name] = true
	}

	// Schedules
	for i, s := range g.Schedules {
		if !plans[s.Plan] {
			return fmt.Errorf("schedules[%d].plan未在plans中定义: %s", i, s.Plan)
		}
		if _, err := CronParser.Parse(s.Cron); err != nil {
			return fmt.Errorf("schedules[%d].cron非法: %w", i, err)
		}
		if len(s.Subjects) == 0 {
			return fmt.Errorf("schedules[%d].subjects不能为空", i)
		}
	}

	// Plugins
	validEvents := map[string]bool{
		"pass.started":   true,
		"pass.succeeded": true,
		"pass.failed":    true,
		"batch.finished": true,
	}
	pluginNames := make(map[string]bool, len(g.Plugins))
	for i, p := range g.Plugins {
		if p.Name == "" {
			return fmt.Errorf("plugins[%d].name不能为空", i)
		}
		if pluginNames[p.Name] {
			return fmt.Errorf("plugins[%d].name重复: %s", i, p.Name)
		}
		pluginNames[p.Name] = true
		if p.Type != "webhook" {
			return fmt.Errorf("plugins[%d].type必须是webhook", i)
		}
		if len(p.Events) == 0 {
			return fmt.Errorf("plugins[%d].events不能为空", i)
		}
		for _, e := range p.Events {
			if !validEvents[e] {
				return fmt.Errorf("plugins[%d].events包含未知事件: %s", i, e)
			}
		}
	}

	return nil
}
