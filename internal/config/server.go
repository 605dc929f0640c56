package config

import (
	"github.com/spf13/viper"
)

type ServerConfig struct {
	ListenAddr  string          `mapstructure:"listen_addr"`
	LogLevel    string          `mapstructure:"log_level"`
	ModulePaths []string        `mapstructure:"module_paths"`
	KVPath      string          `mapstructure:"kv_path"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Pool        PoolConfig      `mapstructure:"pool"`
	Limits      LimitsConfig    `mapstructure:"limits"`
}

// SchedulerConfig bounds request admission across all modules.
type SchedulerConfig struct {
	// Maximum simultaneously executing requests across all modules.
	GlobalConcurrency int `mapstructure:"global_concurrency"`
	// Requests allowed to wait for a global slot; beyond this the
	// runtime answers Overloaded instead of queuing further.
	QueueDepth int `mapstructure:"queue_depth"`
	// Deadline applied when a module manifest declares no time ceiling (ms).
	DefaultDeadlineMS int `mapstructure:"default_deadline_ms"`
}

// PoolConfig controls warm-instance retention per module.
type PoolConfig struct {
	// Idle instances kept per module for warm starts.
	MaxIdle int `mapstructure:"max_idle"`
	// Idle instances unused for longer than this are evicted (ms).
	IdleTimeoutMS int `mapstructure:"idle_timeout_ms"`
	// Interval of the background eviction sweep (ms).
	SweepIntervalMS int `mapstructure:"sweep_interval_ms"`
}

// LimitsConfig holds system maxima that module manifests may not exceed.
type LimitsConfig struct {
	// Memory ceiling per instance (pages, 64KB each).
	MaxMemoryPages uint32 `mapstructure:"max_memory_pages"`
	// Per-request time ceiling (ms).
	MaxTimeCeilingMS int `mapstructure:"max_time_ceiling_ms"`
	// Concurrent instances per module.
	MaxInstances int `mapstructure:"max_instances"`
}

func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("module_paths", []string{"./modules"})
	v.SetDefault("kv_path", "./data/kv.db")

	// Scheduler defaults
	v.SetDefault("scheduler.global_concurrency", 256)
	v.SetDefault("scheduler.queue_depth", 512)
	v.SetDefault("scheduler.default_deadline_ms", 30000)

	// Pool defaults
	v.SetDefault("pool.max_idle", 4)
	v.SetDefault("pool.idle_timeout_ms", 60000)
	v.SetDefault("pool.sweep_interval_ms", 10000)

	// System maxima defaults
	v.SetDefault("limits.max_memory_pages", 1024) // 64MB
	v.SetDefault("limits.max_time_ceiling_ms", 60000)
	v.SetDefault("limits.max_instances", 64)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
