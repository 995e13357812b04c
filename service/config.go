package service

import (
	"fmt"
	"os"
	"runtime"

	"github.com/brimdata/sift/cache"
	"github.com/brimdata/sift/compiler/parser"
	"github.com/brimdata/sift/compiler/semantic"
	"gopkg.in/yaml.v3"
)

const DefaultGroupLimit = 1000000

type Config struct {
	GroupLimit int          `yaml:"group_limit"`
	Workers    int          `yaml:"workers"`
	Timezone   string       `yaml:"timezone"`
	Dialect    string       `yaml:"dialect"`
	Lenient    bool         `yaml:"lenient"`
	RowLimit   int          `yaml:"row_limit"`
	Cache      cache.Config `yaml:"cache"`
	// Catalog is the path of the field catalog.
	Catalog string `yaml:"catalog"`
	// Data is the path of the documents served by the memory backend.
	Data string    `yaml:"data"`
	Log  LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
	File     string `yaml:"file"`
}

func DefaultConfig() Config {
	return Config{
		GroupLimit: DefaultGroupLimit,
		Workers:    runtime.GOMAXPROCS(0),
		Timezone:   "UTC",
		Dialect:    parser.IQL2.String(),
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.GroupLimit < 0 {
		return fmt.Errorf("group_limit %d is negative", c.GroupLimit)
	}
	if c.RowLimit < 0 {
		return fmt.Errorf("row_limit %d is negative", c.RowLimit)
	}
	if _, err := semantic.ParseLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if _, err := parser.ParseDialect(c.Dialect); err != nil {
		return err
	}
	return nil
}
