package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFrameworkConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "grade-engine.yaml", `
grade-engine:
  general:
    instance_name: "test-engine"
    log_level: "debug"
    env: "test"
  storage:
    database:
      type: "sqlite"
      dsn: "./test.db"
      max_open_conns: 5
      max_idle_conns: 2
      conn_max_lifetime: "1h"
  execution:
    workers: 4
    sort_scores: true
  server:
    port: 9090
  plans:
    - name: coffee
      manifest: plans/coffee.yaml
  schedules:
    - plan: coffee
      cron: "0 0 2 * * *"
      subjects: ["./submissions/alice"]
  plugins:
    - name: notify
      type: webhook
      events: ["pass.failed", "batch.finished"]
      params:
        url: "http://localhost:9000/hook"
`)

	cfg, err := LoadFrameworkConfig(path)
	require.NoError(t, err)

	g := cfg.GradeEngine
	assert.Equal(t, "test-engine", g.General.InstanceName)
	assert.Equal(t, "sqlite", cfg.GetDatabaseType())
	assert.Equal(t, "./test.db", cfg.GetDatabaseDSN())
	assert.Equal(t, time.Hour, g.Storage.Database.ConnMaxLifetime)
	assert.Equal(t, time.Hour, g.Storage.Database.ConnMaxIdleTime, "未配置的字段使用默认值")
	assert.Equal(t, 4, cfg.GetWorkers())
	assert.True(t, g.Execution.SortScores)
	assert.Equal(t, ":9090", cfg.GetServerAddr())
	assert.Equal(t, filepath.Join(dir, "plans", "coffee.yaml"), g.Plans[0].Manifest)
	assert.Equal(t, []string{"./submissions/alice"}, g.Schedules[0].Subjects)
	require.Len(t, g.Plugins, 1)
	assert.Equal(t, []string{"pass.failed", "batch.finished"}, g.Plugins[0].Events)
	assert.Equal(t, "http://localhost:9000/hook", g.Plugins[0].Params["url"])
}

func TestLoadFrameworkConfig_Defaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "grade-engine: {}\n")

	cfg, err := LoadFrameworkConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "grade-engine", cfg.GradeEngine.General.InstanceName)
	assert.Equal(t, "info", cfg.GradeEngine.General.LogLevel)
	assert.Equal(t, "sqlite", cfg.GetDatabaseType())
	assert.Equal(t, "./data/grade-engine.db", cfg.GetDatabaseDSN())
	assert.Equal(t, 1, cfg.GetWorkers())
	assert.Equal(t, ":8080", cfg.GetServerAddr())
}

func TestLoadFrameworkConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFrameworkConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	unknown := writeFile(t, dir, "unknown.yaml", "grade-engine:\n  general:\n    colour: red\n")
	_, err = LoadFrameworkConfig(unknown)
	assert.Error(t, err)

	badCron := writeFile(t, dir, "cron.yaml", `
grade-engine:
  plans:
    - name: p
      manifest: p.yaml
  schedules:
    - plan: p
      cron: "not a cron"
      subjects: [a]
`)
	_, err = LoadFrameworkConfig(badCron)
	assert.ErrorContains(t, err, "cron")
}

func TestValidateFrameworkConfig(t *testing.T) {
	valid := func() *EngineConfig {
		cfg := &EngineConfig{}
		cfg.ApplyDefaults()
		return cfg
	}
	require.NoError(t, ValidateFrameworkConfig(valid()))
	assert.Error(t, ValidateFrameworkConfig(nil))

	cases := map[string]func(c *EngineConfig){
		"log level": func(c *EngineConfig) { c.GradeEngine.General.LogLevel = "verbose" },
		"db type":   func(c *EngineConfig) { c.GradeEngine.Storage.Database.Type = "oracle" },
		"dsn":       func(c *EngineConfig) { c.GradeEngine.Storage.Database.DSN = "" },
		"port":      func(c *EngineConfig) { c.GradeEngine.Server.Port = 70000 },
		"plan name": func(c *EngineConfig) { c.GradeEngine.Plans = []PlanRef{{Manifest: "x.yaml"}} },
		"dup plan": func(c *EngineConfig) {
			c.GradeEngine.Plans = []PlanRef{{Name: "a", Manifest: "a.yaml"}, {Name: "a", Manifest: "b.yaml"}}
		},
		"schedule plan": func(c *EngineConfig) {
			c.GradeEngine.Schedules = []ScheduleConfig{{Plan: "ghost", Cron: "@daily", Subjects: []string{"s"}}}
		},
		"schedule subjects": func(c *EngineConfig) {
			c.GradeEngine.Plans = []PlanRef{{Name: "a", Manifest: "a.yaml"}}
			c.GradeEngine.Schedules = []ScheduleConfig{{Plan: "a", Cron: "@daily"}}
		},
		"plugin type": func(c *EngineConfig) {
			c.GradeEngine.Plugins = []PluginConfig{{Name: "n", Type: "email", Events: []string{"pass.failed"}}}
		},
		"plugin events": func(c *EngineConfig) {
			c.GradeEngine.Plugins = []PluginConfig{{Name: "n", Type: "webhook", Events: []string{"task.failed"}}}
		},
		"plugin name": func(c *EngineConfig) {
			c.GradeEngine.Plugins = []PluginConfig{{Type: "webhook", Events: []string{"pass.failed"}}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, ValidateFrameworkConfig(cfg))
		})
	}
}
