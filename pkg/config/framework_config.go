package config

import (
	"fmt"
	"time"
)

// PlanRef 配置中引用的评分计划
type PlanRef struct {
	Name     string `yaml:"name"`
	Manifest string `yaml:"manifest"`
}

// ScheduleConfig 定时批量评分
type ScheduleConfig struct {
	Plan     string   `yaml:"plan"`
	Cron     string   `yaml:"cron"`
	Subjects []string `yaml:"subjects"`
}

// PluginConfig 事件插件配置
type PluginConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Events []string          `yaml:"events"`
	Params map[string]string `yaml:"params"`
}

// EngineConfig 引擎框架配置（对外导出）
type EngineConfig struct {
	GradeEngine struct {
		General struct {
			InstanceName string `yaml:"instance_name"`
			LogLevel     string `yaml:"log_level"`
			Env          string `yaml:"env"`
		} `yaml:"general"`
		Storage struct {
			Database struct {
				Type            string        `yaml:"type"`
				DSN             string        `yaml:"dsn"`
				MaxOpenConns    int           `yaml:"max_open_conns"`
				MaxIdleConns    int           `yaml:"max_idle_conns"`
				ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
				ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
			} `yaml:"database"`
		} `yaml:"storage"`
		Execution struct {
			// Workers 批量评分并行度，1 表示在同一个 Plan 上顺序执行
			Workers    int  `yaml:"workers"`
			SortScores bool `yaml:"sort_scores"`
		} `yaml:"execution"`
		Server struct {
			Host string `yaml:"host"`
			Port int    `yaml:"port"`
		} `yaml:"server"`
		Plans     []PlanRef        `yaml:"plans"`
		Schedules []ScheduleConfig `yaml:"schedules"`
		Plugins   []PluginConfig   `yaml:"plugins"`
	} `yaml:"grade-engine"`
}

// GetDatabaseType 获取数据库类型
func (c *EngineConfig) GetDatabaseType() string {
	return c.GradeEngine.Storage.Database.Type
}

// GetDatabaseDSN 获取数据库DSN
func (c *EngineConfig) GetDatabaseDSN() string {
	return c.GradeEngine.Storage.Database.DSN
}

// GetWorkers 获取批量评分并行度
func (c *EngineConfig) GetWorkers() int {
	if c.GradeEngine.Execution.Workers <= 0 {
		return 1
	}
	return c.GradeEngine.Execution.Workers
}

// GetServerAddr 获取HTTP监听地址
func (c *EngineConfig) GetServerAddr() string {
	host := c.GradeEngine.Server.Host
	port := c.GradeEngine.Server.Port
	if port <= 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// ApplyDefaults 应用默认值
func (c *EngineConfig) ApplyDefaults() {
	g := &c.GradeEngine

	if g.General.InstanceName == "" {
		g.General.InstanceName = "grade-engine"
	}
	if g.General.LogLevel == "" {
		g.General.LogLevel = "info"
	}
	if g.General.Env == "" {
		g.General.Env = "dev"
	}

	if g.Storage.Database.Type == "" {
		g.Storage.Database.Type = "sqlite"
	}
	if g.Storage.Database.DSN == "" && g.Storage.Database.Type == "sqlite" {
		g.Storage.Database.DSN = "./data/grade-engine.db"
	}
	if g.Storage.Database.MaxOpenConns <= 0 {
		g.Storage.Database.MaxOpenConns = 10
	}
	if g.Storage.Database.MaxIdleConns <= 0 {
		g.Storage.Database.MaxIdleConns = 5
	}
	if g.Storage.Database.ConnMaxLifetime <= 0 {
		g.Storage.Database.ConnMaxLifetime = 2 * time.Hour
	}
	if g.Storage.Database.ConnMaxIdleTime <= 0 {
		g.Storage.Database.ConnMaxIdleTime = 1 * time.Hour
	}

	if g.Execution.Workers <= 0 {
		g.Execution.Workers = 1
	}

	if g.Server.Port <= 0 {
		g.Server.Port = 8080
	}
}
