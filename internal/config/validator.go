package config

import (
	"fmt"
	"os"
	"strings"
)

// Validator performs advisory checks whose failures are reported but do not
// stop the process. Config.Validate holds the fatal checks.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Gemini API key format (should start with AIza)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateDirectory reports whether path exists and is a directory.
func (v *Validator) ValidateDirectory(name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", name, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s %s is not a directory", name, path)
	}
	return nil
}

// ValidateConfig returns every advisory problem found in cfg.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	for i, profile := range cfg.AI.Profiles {
		if profile.APIKey == "" {
			continue
		}
		if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
			errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
		}
	}

	if cfg.Temperature != nil {
		if err := v.ValidateTemperature(*cfg.Temperature); err != nil {
			errors = append(errors, err)
		}
	}
	if err := v.ValidateMaxTokens(cfg.MaxTokens); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateDirectory("workspace", cfg.Workspace); err != nil {
		errors = append(errors, err)
	}
	if cfg.Memory.Enabled && cfg.Memory.KnowledgeDir != "" {
		if err := v.ValidateDirectory("memory.knowledge_dir", cfg.Memory.KnowledgeDir); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Memory.Enabled && cfg.Memory.Embedding.Provider == "openai" && !hasProvider(cfg, "openai") {
		errors = append(errors, fmt.Errorf("memory.embedding.provider is openai but no openai credentials are configured"))
	}

	return errors
}

func hasProvider(cfg *Config, provider string) bool {
	for _, p := range cfg.AI.Profiles {
		if p.Provider == provider && p.APIKey != "" {
			return true
		}
	}
	return false
}
