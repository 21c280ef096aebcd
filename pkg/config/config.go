package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is absent from the config file
const (
	DefaultWorkerImage      = "burrow-executor:latest"
	DefaultWorkerPrefix     = "burrow-worker-"
	DefaultWorkerCount      = 2
	DefaultFunctionTimeout  = 30   // seconds
	DefaultPollInterval     = 100  // milliseconds
	DefaultMemoryLimit      = int64(1 << 30)   // 1 GiB
	DefaultTmpfsSize        = int64(100 << 20) // 100 MiB
	DefaultCPUCores         = int64(1)
	DefaultContainerdSocket = "/run/containerd/containerd.sock"
	DefaultNamespace        = "burrow"
	DefaultDataDir          = "/var/lib/burrow"
	DefaultAPIAddr          = ":8090"
)

// Config holds the full Burrow server configuration
type Config struct {
	// Worker pool
	WorkerImage            string `yaml:"worker_image"`
	WorkerPrefix           string `yaml:"worker_prefix"`
	WorkerCount            int    `yaml:"worker_count"`
	FunctionTimeoutSeconds int    `yaml:"function_timeout_seconds"`
	PollIntervalMS         int    `yaml:"poll_interval_ms"`

	// Per-worker resource ceiling
	MemoryLimitBytes int64 `yaml:"memory_limit_bytes"`
	CPUCores         int64 `yaml:"cpu_cores"`
	TmpfsSizeBytes   int64 `yaml:"tmpfs_size_bytes"`

	// Container runtime
	ContainerdSocket    string `yaml:"containerd_socket"`
	ContainerdNamespace string `yaml:"containerd_namespace"`

	// Server
	DataDir  string `yaml:"data_dir"`
	APIAddr  string `yaml:"api_addr"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		WorkerImage:            DefaultWorkerImage,
		WorkerPrefix:           DefaultWorkerPrefix,
		WorkerCount:            DefaultWorkerCount,
		FunctionTimeoutSeconds: DefaultFunctionTimeout,
		PollIntervalMS:         DefaultPollInterval,
		MemoryLimitBytes:       DefaultMemoryLimit,
		CPUCores:               DefaultCPUCores,
		TmpfsSizeBytes:         DefaultTmpfsSize,
		ContainerdSocket:       DefaultContainerdSocket,
		ContainerdNamespace:    DefaultNamespace,
		DataDir:                DefaultDataDir,
		APIAddr:                DefaultAPIAddr,
		LogLevel:               "info",
	}
}

// Load reads a YAML config file and merges it over the defaults.
// A missing path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FunctionTimeout returns the maximum wait for a function call
func (c *Config) FunctionTimeout() time.Duration {
	return time.Duration(c.FunctionTimeoutSeconds) * time.Second
}

// PollInterval returns the result-file polling interval
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Validate checks the configuration for values the pool cannot run with
func (c *Config) Validate() error {
	if c.WorkerCount < 0 {
		return fmt.Errorf("worker_count must be >= 0, got %d", c.WorkerCount)
	}
	if c.WorkerPrefix == "" {
		return fmt.Errorf("worker_prefix must not be empty")
	}
	if c.FunctionTimeoutSeconds <= 0 {
		return fmt.Errorf("function_timeout_seconds must be positive, got %d", c.FunctionTimeoutSeconds)
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMS)
	}
	if c.PollInterval() >= c.FunctionTimeout() {
		return fmt.Errorf("poll_interval_ms %d must be shorter than function_timeout_seconds %d",
			c.PollIntervalMS, c.FunctionTimeoutSeconds)
	}
	if c.CPUCores <= 0 {
		return fmt.Errorf("cpu_cores must be positive, got %d", c.CPUCores)
	}
	return nil
}
