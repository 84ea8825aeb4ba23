package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Daemon holds the perfwatchd configuration. Values resolve in the usual
// precedence order: flags override environment, environment overrides the
// config file, the config file overrides defaults.
type Daemon struct {
	// ListenAddr is the address the consumer HTTP surface binds to.
	ListenAddr string `mapstructure:"listen_addr"`

	// AllowedOrigins lists dashboard origins permitted by CORS. Empty
	// means same-origin only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// MaxCapacity bounds the sample store.
	MaxCapacity int `mapstructure:"max_capacity"`

	// AnomalyThresholdMs marks samples slower than this as anomalous.
	AnomalyThresholdMs float64 `mapstructure:"anomaly_threshold_ms"`

	// MemorySampleInterval is the period between memory readings.
	MemorySampleInterval time.Duration `mapstructure:"memory_sample_interval"`

	// MemoryHistoryCapacity bounds the memory reading history.
	MemoryHistoryCapacity int `mapstructure:"memory_history_capacity"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is json or console.
	LogFormat string `mapstructure:"log_format"`

	// CallTraceDepth is the number of stack frames captured for anomalous
	// samples. Zero disables call-context capture.
	CallTraceDepth int `mapstructure:"call_trace_depth"`
}

// DefaultDaemon returns the daemon defaults.
func DefaultDaemon() Daemon {
	return Daemon{
		ListenAddr:            ":9600",
		MaxCapacity:           500,
		AnomalyThresholdMs:    16,
		MemorySampleInterval:  10 * time.Second,
		MemoryHistoryCapacity: 50,
		LogLevel:              "info",
		LogFormat:             "json",
		CallTraceDepth:        8,
	}
}

// LoadDaemon reads the daemon configuration from an optional config file
// plus PERFWATCH_* environment variables.
func LoadDaemon(path string) (Daemon, error) {
	cfg := DefaultDaemon()

	v := viper.New()
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)
	v.SetDefault("max_capacity", cfg.MaxCapacity)
	v.SetDefault("anomaly_threshold_ms", cfg.AnomalyThresholdMs)
	v.SetDefault("memory_sample_interval", cfg.MemorySampleInterval)
	v.SetDefault("memory_history_capacity", cfg.MemoryHistoryCapacity)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("call_trace_depth", cfg.CallTraceDepth)

	v.SetEnvPrefix("PERFWATCH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
