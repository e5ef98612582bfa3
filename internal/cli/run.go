package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/reactor/internal/config"
	"github.com/spf13/cobra"
)

// runFlags are overrides applied on top of the loaded config.
type runFlags struct {
	maxTurns    int
	temperature float64
	maxTokens   int
	tools       []string
	debug       int
	provider    string
	model       string
	noMemory    bool
	corrective  bool
	jsonOutput  bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVar(&f.maxTurns, "max-turns", 0, "maximum model calls per run")
	flags.Float64Var(&f.temperature, "temperature", 0, "sampling temperature (0-2)")
	flags.IntVar(&f.maxTokens, "max-tokens", 0, "maximum tokens per model reply")
	flags.StringSliceVar(&f.tools, "tools", nil, "comma-separated tools to enable (default all)")
	flags.IntVar(&f.debug, "debug", 0, "verbosity: 1 logs tool calls, 2 logs prompts and raw replies")
	flags.StringVar(&f.provider, "provider", "", "preferred provider (anthropic, openai, gemini)")
	flags.StringVar(&f.model, "model", "", "model name")
	flags.BoolVar(&f.noMemory, "no-memory", false, "run without long-term memory")
	flags.BoolVar(&f.corrective, "corrective", false, "ask once for a corrected plan when a reply holds none")
}

// apply copies the flags the user set onto cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-turns") {
		cfg.MaxTurns = f.maxTurns
	}
	if flags.Changed("temperature") {
		t := f.temperature
		cfg.Temperature = &t
	}
	if flags.Changed("max-tokens") {
		cfg.MaxTokens = f.maxTokens
	}
	if flags.Changed("tools") {
		cfg.EnabledTools = f.tools
	}
	if flags.Changed("debug") {
		cfg.Debug = f.debug
	}
	if flags.Changed("provider") {
		cfg.AI.Provider = f.provider
		preferProvider(cfg, f.provider)
	}
	if flags.Changed("model") {
		cfg.AI.Model = f.model
	}
	if f.noMemory {
		cfg.Memory.Enabled = false
	}
	if f.corrective {
		cfg.CorrectivePlans = true
	}
}

// preferProvider moves the profiles of provider ahead of all others while
// keeping their relative order.
func preferProvider(cfg *config.Config, provider string) {
	profiles := cfg.AI.Profiles
	if len(profiles) == 0 {
		return
	}
	lowest, highest := profiles[0].Priority, profiles[0].Priority
	for _, p := range profiles[1:] {
		lowest = min(lowest, p.Priority)
		highest = max(highest, p.Priority)
	}
	offset := highest - lowest + 1
	for i := range profiles {
		if profiles[i].Provider == provider {
			profiles[i].Priority -= offset
		}
	}
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run one task and print the answer",
		Long: `Run one task through the reason-act loop and print the final answer.
A run that uses its whole turn budget prints "maximum turns reached" and
still exits successfully.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.ErrOrStderr(), appOptions{
				memory:   cfg.Memory.Enabled,
				provider: true,
				tools:    true,
			})
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.saveMemory(ctx)

			runner, err := a.newRunner()
			if err != nil {
				return err
			}

			result, err := runner.Run(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			_, err = fmt.Fprintln(out, result.Answer)
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "print the run result as JSON")

	return cmd
}
