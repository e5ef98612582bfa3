package sandbox

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, BackendHost, cfg.Backend)
	assert.Equal(t, "python3", cfg.Interpreter)
	assert.Equal(t, "python:3.11-slim", cfg.Image)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "512m", cfg.Memory)
	assert.Equal(t, "0.5", cfg.CPUs)
	assert.Equal(t, 128, cfg.PidsLimit)
	require.NoError(t, ValidateConfig(cfg))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "vm" }, want: ErrInvalidBackend},
		{name: "host without interpreter", mutate: func(c *Config) { c.Interpreter = " " }, want: ErrInterpreterRequired},
		{name: "docker without image", mutate: func(c *Config) { c.Backend = BackendDocker; c.Image = "" }, want: ErrDockerImageRequired},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, want: ErrInvalidTimeout},
		{name: "negative pids limit", mutate: func(c *Config) { c.PidsLimit = -1 }, want: ErrInvalidProcessLimit},
		{name: "docker ignores interpreter", mutate: func(c *Config) { c.Backend = BackendDocker; c.Interpreter = "" }},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	cfg := DefaultConfig()
	r, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, BackendHost, r.Backend())

	cfg.Backend = BackendDocker
	r, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, BackendDocker, r.Backend())

	cfg.Backend = "vm"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestDedent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already flush", in: "x = 1\nprint(x)", want: "x = 1\nprint(x)"},
		{name: "common indent", in: "    x = 1\n    print(x)", want: "x = 1\nprint(x)"},
		{name: "nested block", in: "  if True:\n      print(1)\n", want: "if True:\n    print(1)\n"},
		{name: "blank lines ignored", in: "    a = 1\n\n    b = 2", want: "a = 1\n\nb = 2"},
		{name: "mixed indent keeps shortest", in: "    a\n  b", want: "  a\nb"},
		{name: "tabs", in: "\tprint(1)\n\tprint(2)", want: "print(1)\nprint(2)"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dedent(tt.in))
		})
	}
}
