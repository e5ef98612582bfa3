package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		key      string
		provider string
		wantErr  bool
	}{
		{"sk-ant-abc", "anthropic", false},
		{"sk-abc", "anthropic", true},
		{"sk-abc", "openai", false},
		{"abc", "openai", true},
		{"AIzaSy", "gemini", false},
		{"sk-abc", "gemini", true},
		{"", "openai", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.key, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatorValidateConfig(t *testing.T) {
	v := NewValidator()

	cfg := validConfig()
	cfg.Workspace = t.TempDir()
	assert.Empty(t, v.ValidateConfig(cfg))

	cfg.AI.Profiles[0].APIKey = "not-a-key"
	cfg.Workspace = "/definitely/not/here"
	cfg.Memory.Embedding.Provider = "openai"
	problems := v.ValidateConfig(cfg)
	assert.Len(t, problems, 3)
}

func TestWizardRun(t *testing.T) {
	input := strings.Join([]string{
		"bad-key",     // anthropic, rejected
		"sk-ant-good", // anthropic retry
		"",            // openai skipped
		"AIzaGemini",  // gemini
		"claude-3-5-haiku-latest",
		"chromem",
		"debug",
	}, "\n") + "\n"
	var out bytes.Buffer

	cfg, err := NewWizard(strings.NewReader(input), &out).Run(DefaultConfig())
	require.NoError(t, err)

	require.Len(t, cfg.AI.Profiles, 2)
	assert.Equal(t, AIProfile{ID: "anthropic", Provider: "anthropic", APIKey: "sk-ant-good", Priority: 0}, cfg.AI.Profiles[0])
	assert.Equal(t, "gemini", cfg.AI.Profiles[1].Provider)
	assert.Equal(t, 1, cfg.AI.Profiles[1].Priority)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.AI.Model)
	assert.Equal(t, "chromem", cfg.Memory.Engine)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Contains(t, out.String(), "Error: invalid Anthropic API key format")
}

func TestWizardRun_NoKeys(t *testing.T) {
	var out bytes.Buffer
	_, err := NewWizard(strings.NewReader("\n\n\n"), &out).Run(DefaultConfig())
	assert.Error(t, err)
}
