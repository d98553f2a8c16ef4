package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFrameworkConfig 加载框架配置（对外导出）
// 依次执行：解析YAML -> 应用默认值 -> 解析清单相对路径 -> 校验
func LoadFrameworkConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg, err := ParseFrameworkConfig(data)
	if err != nil {
		return nil, err
	}

	// 清单路径相对于配置文件所在目录
	base := filepath.Dir(path)
	for i := range cfg.GradeEngine.Plans {
		m := cfg.GradeEngine.Plans[i].Manifest
		if m != "" && !filepath.IsAbs(m) {
			cfg.GradeEngine.Plans[i].Manifest = filepath.Join(base, m)
		}
	}

	if err := ValidateFrameworkConfig(cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return cfg, nil
}

// ParseFrameworkConfig 从YAML内容解析配置并应用默认值（不做校验）
func ParseFrameworkConfig(data []byte) (*EngineConfig, error) {
	var cfg EngineConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
