package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "REACTOR"
	configDirName  = ".reactor"
	configFileName = "reactor.json"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file (JSON or YAML by extension) over the defaults
// and applies REACTOR_* environment overrides. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	// No default exists for temperature, so bind it explicitly.
	_ = v.BindEnv("temperature")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType(configType(configPath))
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.Memory.Path == "" {
		base := filepath.Join(cfg.DataDir, "memory")
		if cfg.Memory.Engine == "sqlite" {
			base += ".db"
		}
		cfg.Memory.Path = base
	}
	cfg.ApplyEnvCredentials()

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("enabled_tools", cfg.EnabledTools)
	v.SetDefault("max_tokens", cfg.MaxTokens)
	v.SetDefault("max_turns", cfg.MaxTurns)
	v.SetDefault("debug", cfg.Debug)
	v.SetDefault("parallel_steps", cfg.ParallelSteps)
	v.SetDefault("corrective_plans", cfg.CorrectivePlans)
	v.SetDefault("workspace", cfg.Workspace)
	v.SetDefault("data_dir", cfg.DataDir)

	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.requests_per_minute", cfg.AI.RequestsPerMinute)
	v.SetDefault("ai.profiles", cfg.AI.Profiles)

	v.SetDefault("memory.enabled", cfg.Memory.Enabled)
	v.SetDefault("memory.engine", cfg.Memory.Engine)
	v.SetDefault("memory.path", cfg.Memory.Path)
	v.SetDefault("memory.capacity", cfg.Memory.Capacity)
	v.SetDefault("memory.top_k", cfg.Memory.TopK)
	v.SetDefault("memory.knowledge_dir", cfg.Memory.KnowledgeDir)
	v.SetDefault("memory.embedding.provider", cfg.Memory.Embedding.Provider)
	v.SetDefault("memory.embedding.model", cfg.Memory.Embedding.Model)
	v.SetDefault("memory.embedding.dimension", cfg.Memory.Embedding.Dimension)
	v.SetDefault("memory.embedding.cache_size", cfg.Memory.Embedding.CacheSize)

	v.SetDefault("sandbox.backend", cfg.Sandbox.Backend)
	v.SetDefault("sandbox.interpreter", cfg.Sandbox.Interpreter)
	v.SetDefault("sandbox.image", cfg.Sandbox.Image)
	v.SetDefault("sandbox.timeout_seconds", cfg.Sandbox.TimeoutSeconds)
	v.SetDefault("sandbox.memory", cfg.Sandbox.Memory)
	v.SetDefault("sandbox.cpus", cfg.Sandbox.CPUs)

	v.SetDefault("web.user_agent", cfg.Web.UserAgent)
	v.SetDefault("web.timeout_seconds", cfg.Web.TimeoutSeconds)
	v.SetDefault("web.blocked_domains", cfg.Web.BlockedDomains)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)

	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", cfg.Tracing.Insecure)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// Save writes cfg as JSON to the config path
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to determine config path")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")

	v.Set("enabled_tools", cfg.EnabledTools)
	if cfg.Temperature != nil {
		v.Set("temperature", *cfg.Temperature)
	}
	v.Set("max_tokens", cfg.MaxTokens)
	v.Set("max_turns", cfg.MaxTurns)
	v.Set("debug", cfg.Debug)
	v.Set("parallel_steps", cfg.ParallelSteps)
	v.Set("corrective_plans", cfg.CorrectivePlans)
	v.Set("workspace", cfg.Workspace)
	v.Set("data_dir", cfg.DataDir)
	v.Set("ai", cfg.AI)
	v.Set("memory", cfg.Memory)
	v.Set("sandbox", cfg.Sandbox)
	v.Set("web", cfg.Web)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, configDirName, configFileName)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(home, configDirName)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
