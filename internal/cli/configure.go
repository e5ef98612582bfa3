package cli

import (
	"fmt"

	"github.com/harun/reactor/internal/config"
	"github.com/spf13/cobra"
)

func newConfigureCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Run interactive configuration wizard",
		Long: `Run an interactive configuration wizard to set up reactor.
The wizard will guide you through API keys, the model, the memory engine
and the log level, then write the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(opts.cfgFile)
			base, err := loader.Load()
			if err != nil {
				return err
			}

			wizard := config.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout())
			cfg, err := wizard.Run(base)
			if err != nil {
				return fmt.Errorf("configuration failed: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			for _, problem := range config.NewValidator().ValidateConfig(cfg) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", problem)
			}

			if err := loader.Save(cfg); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nConfiguration saved to: %s\n", loader.GetConfigPath())
			fmt.Fprintln(out, "\nYou can now run a task with: reactor run \"<prompt>\"")

			return nil
		},
	}
}
