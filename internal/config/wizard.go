package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard that prompts on out and reads answers from in.
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run walks through provider credentials, the model and memory settings,
// starting from base.
func (w *Wizard) Run(base *Config) (*Config, error) {
	w.println("=== reactor configuration ===")
	w.println()

	cfg := *base
	cfg.AI.Profiles = nil
	validator := NewValidator()

	w.println("API keys (at least one is required, press Enter to skip):")
	for _, provider := range Providers {
		for {
			w.printf("%s API key: ", provider)
			key, err := w.readLine()
			if err != nil {
				return nil, err
			}
			if key == "" {
				break
			}
			if err := validator.ValidateAPIKey(key, provider); err != nil {
				w.printf("Error: %v\n", err)
				continue
			}
			cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{
				ID:       provider,
				Provider: provider,
				APIKey:   key,
				Priority: len(cfg.AI.Profiles),
			})
			break
		}
	}
	if len(cfg.AI.Profiles) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}
	cfg.AI.Provider = cfg.AI.Profiles[0].Provider

	w.println()
	w.printf("Model name (empty for the %s default): ", cfg.AI.Provider)
	model, err := w.readLine()
	if err != nil {
		return nil, err
	}
	cfg.AI.Model = model

	w.println()
	w.printf("Memory engine (sqlite/chromem) [%s]: ", cfg.Memory.Engine)
	engine, err := w.readLine()
	if err != nil {
		return nil, err
	}
	switch engine {
	case "":
	case "sqlite", "chromem":
		if engine != cfg.Memory.Engine {
			cfg.Memory.Path = ""
		}
		cfg.Memory.Engine = engine
	default:
		w.printf("Warning: unknown engine %s, keeping %s\n", engine, cfg.Memory.Engine)
	}

	w.printf("Log level (trace/debug/info/warn/error) [%s]: ", cfg.Logging.Level)
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			w.printf("Warning: %v, keeping %s\n", err, cfg.Logging.Level)
		} else {
			cfg.Logging.Level = level
		}
	}

	w.println()
	w.println("Configuration complete!")

	return &cfg, nil
}

// readLine returns the next trimmed line. A final line without a newline is
// accepted; EOF before any input is an error.
func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (w *Wizard) println(a ...interface{}) {
	fmt.Fprintln(w.out, a...)
}

func (w *Wizard) printf(format string, a ...interface{}) {
	fmt.Fprintf(w.out, format, a...)
}
