package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Providers lists the supported model backends.
var Providers = []string{"anthropic", "openai", "gemini"}

// ProviderEnvKeys maps each provider to the environment variable its API key
// falls back to.
var ProviderEnvKeys = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Config represents the main reactor configuration
type Config struct {
	// EnabledTools limits the tools offered to the model. Empty enables all.
	EnabledTools []string `json:"enabled_tools" mapstructure:"enabled_tools"`

	// Temperature is left to the backend when nil.
	Temperature *float64 `json:"temperature,omitempty" mapstructure:"temperature"`

	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
	MaxTurns  int `json:"max_turns" mapstructure:"max_turns"`

	// Debug is the verbosity tier: 0 normal, 1 tool calls, 2 raw turns.
	Debug int `json:"debug" mapstructure:"debug"`

	ParallelSteps   bool `json:"parallel_steps" mapstructure:"parallel_steps"`
	CorrectivePlans bool `json:"corrective_plans" mapstructure:"corrective_plans"`

	// Workspace confines the file tools.
	Workspace string `json:"workspace" mapstructure:"workspace"`

	// DataDir holds the memory store and logs.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	AI      AIConfig      `json:"ai" mapstructure:"ai"`
	Memory  MemoryConfig  `json:"memory" mapstructure:"memory"`
	Sandbox SandboxConfig `json:"sandbox" mapstructure:"sandbox"`
	Web     WebConfig     `json:"web" mapstructure:"web"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	// Provider is preferred when profiles are derived from the environment.
	Provider string `json:"provider" mapstructure:"provider"`
	// Model overrides the provider default.
	Model string `json:"model" mapstructure:"model"`
	// RequestsPerMinute throttles model calls; 0 disables throttling.
	RequestsPerMinute int         `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	Profiles          []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai, gemini
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
	BaseURL  string `json:"base_url,omitempty" mapstructure:"base_url"`
}

// MemoryConfig holds long-term memory configuration
type MemoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Engine  string `json:"engine" mapstructure:"engine"` // sqlite, chromem
	// Path is the database file for sqlite or the artifact base path for chromem.
	Path     string `json:"path" mapstructure:"path"`
	Capacity int    `json:"capacity" mapstructure:"capacity"`
	TopK     int    `json:"top_k" mapstructure:"top_k"`
	// KnowledgeDir is watched and its markdown and text files ingested.
	KnowledgeDir string          `json:"knowledge_dir" mapstructure:"knowledge_dir"`
	Embedding    EmbeddingConfig `json:"embedding" mapstructure:"embedding"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // hash, openai
	Model     string `json:"model" mapstructure:"model"`
	Dimension int    `json:"dimension" mapstructure:"dimension"`
	CacheSize int    `json:"cache_size" mapstructure:"cache_size"`
}

// SandboxConfig defines code execution settings
type SandboxConfig struct {
	Backend        string `json:"backend" mapstructure:"backend"` // host, docker
	Interpreter    string `json:"interpreter" mapstructure:"interpreter"`
	Image          string `json:"image" mapstructure:"image"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Memory         string `json:"memory" mapstructure:"memory"`
	CPUs           string `json:"cpus" mapstructure:"cpus"`
}

// WebConfig holds web tool settings
type WebConfig struct {
	UserAgent      string   `json:"user_agent" mapstructure:"user_agent"`
	TimeoutSeconds int      `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	BlockedDomains []string `json:"blocked_domains" mapstructure:"blocked_domains"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	// AuditFile receives one JSON line per tool call when set.
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// MetricsConfig holds the metrics endpoint
type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `json:"addr" mapstructure:"addr"`
}

// TracingConfig exports spans over OTLP/HTTP when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint"` // host:port
	Insecure    bool    `json:"insecure" mapstructure:"insecure"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		EnabledTools:  []string{},
		MaxTokens:     1024,
		MaxTurns:      5,
		ParallelSteps: true,
		Workspace:     ".",
		AI: AIConfig{
			Provider: "anthropic",
			Profiles: []AIProfile{},
		},
		Memory: MemoryConfig{
			Enabled:  true,
			Engine:   "sqlite",
			Capacity: 10,
			TopK:     3,
			Embedding: EmbeddingConfig{
				Provider:  "hash",
				Dimension: 256,
				CacheSize: 10000,
			},
		},
		Sandbox: SandboxConfig{
			Backend:        "host",
			Interpreter:    "python3",
			Image:          "python:3.11-slim",
			TimeoutSeconds: 5,
			Memory:         "512m",
			CPUs:           "0.5",
		},
		Web: WebConfig{
			TimeoutSeconds: 10,
			BlockedDomains: []string{},
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config with API keys masked
func (c *Config) String() string {
	masked := *c
	masked.AI.Profiles = make([]AIProfile, len(c.AI.Profiles))
	for i, p := range c.AI.Profiles {
		if p.APIKey != "" {
			p.APIKey = "***"
		}
		masked.AI.Profiles[i] = p
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// ApplyEnvCredentials fills missing API keys from the provider environment
// variables. Without configured profiles, one profile is derived per key
// found, the configured provider first.
func (c *Config) ApplyEnvCredentials() {
	for i := range c.AI.Profiles {
		p := &c.AI.Profiles[i]
		if p.APIKey == "" {
			p.APIKey = os.Getenv(ProviderEnvKeys[p.Provider])
		}
	}
	if len(c.AI.Profiles) > 0 {
		return
	}

	order := []string{c.AI.Provider}
	for _, provider := range Providers {
		if provider != c.AI.Provider {
			order = append(order, provider)
		}
	}
	for _, provider := range order {
		key := os.Getenv(ProviderEnvKeys[provider])
		if key == "" {
			continue
		}
		c.AI.Profiles = append(c.AI.Profiles, AIProfile{
			ID:       provider + "-env",
			Provider: provider,
			APIKey:   key,
			Priority: len(c.AI.Profiles),
		})
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: set %s, %s or %s, or add an ai.profiles entry",
			ProviderEnvKeys["anthropic"], ProviderEnvKeys["openai"], ProviderEnvKeys["gemini"])
	}
	if c.AI.Provider != "" && !isProvider(c.AI.Provider) {
		return fmt.Errorf("invalid ai.provider %s (must be: %s)", c.AI.Provider, strings.Join(Providers, ", "))
	}
	if c.AI.RequestsPerMinute < 0 {
		return fmt.Errorf("ai.requests_per_minute must be >= 0")
	}

	seen := make(map[string]bool, len(c.AI.Profiles))
	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if seen[profile.ID] {
			return fmt.Errorf("AI profile %s: duplicate ID", profile.ID)
		}
		seen[profile.ID] = true
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		}
		if !isProvider(profile.Provider) {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: %s)", profile.ID, profile.Provider, strings.Join(Providers, ", "))
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required (or set %s)", profile.ID, ProviderEnvKeys[profile.Provider])
		}
	}

	if c.MaxTurns < 1 {
		return fmt.Errorf("max_turns must be at least 1, got %d", c.MaxTurns)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", *c.Temperature)
	}
	if c.Debug < 0 || c.Debug > 2 {
		return fmt.Errorf("debug must be 0, 1 or 2, got %d", c.Debug)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %g", c.Tracing.SampleRatio)
	}

	switch c.Memory.Engine {
	case "sqlite", "chromem":
	default:
		return fmt.Errorf("invalid memory.engine %s (must be: sqlite, chromem)", c.Memory.Engine)
	}
	switch c.Memory.Embedding.Provider {
	case "hash", "openai":
	default:
		return fmt.Errorf("invalid memory.embedding.provider %s (must be: hash, openai)", c.Memory.Embedding.Provider)
	}
	if c.Memory.Capacity < 1 {
		return fmt.Errorf("memory.capacity must be at least 1, got %d", c.Memory.Capacity)
	}
	if c.Memory.TopK < 0 || c.Memory.Embedding.Dimension < 0 || c.Memory.Embedding.CacheSize < 0 {
		return fmt.Errorf("memory.top_k, memory.embedding.dimension and memory.embedding.cache_size must be >= 0")
	}

	switch c.Sandbox.Backend {
	case "host", "docker":
	default:
		return fmt.Errorf("invalid sandbox.backend %s (must be: host, docker)", c.Sandbox.Backend)
	}
	if c.Sandbox.TimeoutSeconds < 0 || c.Web.TimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level %s: %w", c.Logging.Level, err)
	}

	return nil
}

func isProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}
