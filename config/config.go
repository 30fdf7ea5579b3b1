// Package config provides the TEEM configuration, loadable from config.yml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teem-cpu/teem/bpu"
	"github.com/teem-cpu/teem/mem"
)

// EngineConfig sizes the out-of-order core. All structures are pre-sized;
// back-pressure propagates upstream by stalling fetch and dispatch.
type EngineConfig struct {
	// ROBSize is the depth of the reorder buffer.
	ROBSize int `yaml:"rob_size"`
	// TagPoolSize is the number of physical registers available for
	// renaming. Must be at least the ROB depth or dispatch can deadlock.
	TagPoolSize int `yaml:"tag_pool_size"`
	// LSQSize is the depth of the load-store queue.
	LSQSize int `yaml:"lsq_size"`
	// FetchQueueSize is the depth of the frontend instruction queue.
	FetchQueueSize int `yaml:"fetch_queue_size"`
	// RetireWidth is the number of instructions retired per cycle.
	RetireWidth int `yaml:"retire_width"`
	// StackPointer is the initial value of sp.
	StackPointer uint32 `yaml:"stack_pointer"`
}

// Config is the full emulator configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Memory    mem.MemConfig   `yaml:"memory"`
	Cache     mem.CacheConfig `yaml:"cache"`
	Predictor bpu.Config      `yaml:"predictor"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			ROBSize:        32,
			TagPoolSize:    48,
			LSQSize:        16,
			FetchQueueSize: 8,
			RetireWidth:    1,
			StackPointer:   0x10000000,
		},
		Memory:    mem.DefaultMemConfig(),
		Cache:     mem.DefaultCacheConfig(),
		Predictor: bpu.DefaultConfig(),
	}
}

// Load reads a YAML configuration file, applying it over the defaults so
// that partial files only override the keys they name.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would deadlock or misindex.
func (c *Config) Validate() error {
	if c.Engine.ROBSize <= 0 || c.Engine.LSQSize <= 0 || c.Engine.FetchQueueSize <= 0 {
		return fmt.Errorf("engine sizes must be positive")
	}
	if c.Engine.TagPoolSize < c.Engine.ROBSize {
		return fmt.Errorf("tag pool (%d) must be at least the ROB depth (%d)",
			c.Engine.TagPoolSize, c.Engine.ROBSize)
	}
	if c.Engine.RetireWidth <= 0 {
		return fmt.Errorf("retire width must be positive")
	}
	if c.Cache.Sets <= 0 || c.Cache.Ways <= 0 || c.Cache.LineSize <= 0 {
		return fmt.Errorf("cache geometry must be positive")
	}
	if c.Cache.Sets&(c.Cache.Sets-1) != 0 || c.Cache.LineSize&(c.Cache.LineSize-1) != 0 {
		return fmt.Errorf("cache sets and line size must be powers of two")
	}
	if c.Predictor.IndexBits <= 0 || c.Predictor.BTBIndexBits <= 0 || c.Predictor.RASDepth <= 0 {
		return fmt.Errorf("predictor geometry must be positive")
	}
	return nil
}
