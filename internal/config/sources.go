package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/LJTian/NewsHub/internal/collector"
	"gopkg.in/yaml.v3"
)

// SourceSeed 是 sources.yaml 中的一条数据源定义，启动时确保其存在
type SourceSeed struct {
	Name            string              `yaml:"name"`
	BaseURL         string              `yaml:"base_url"`
	Selectors       collector.Selectors `yaml:"selectors"`
	DateFormat      string              `yaml:"date_format"`
	DefaultAuthor   string              `yaml:"default_author"`
	IntervalMinutes int                 `yaml:"interval_minutes"`
	Active          *bool               `yaml:"active"`
}

type sourcesFile struct {
	Sources []SourceSeed `yaml:"sources"`
}

// IsActive 未配置 active 时默认启用
func (s SourceSeed) IsActive() bool {
	return s.Active == nil || *s.Active
}

// LoadSources 读取数据源种子文件；文件不存在时返回空列表
func LoadSources(path string) ([]SourceSeed, error) {
	bs, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var f sourcesFile
	if err := yaml.Unmarshal(bs, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Sources))
	for i, s := range f.Sources {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.BaseURL) == "" {
			return nil, fmt.Errorf("%s: source #%d needs name and base_url", path, i+1)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return nil, fmt.Errorf("%s: duplicate source %q", path, s.Name)
		}
		seen[key] = true
	}
	return f.Sources, nil
}
