package cli

import (
	"context"
	"fmt"

	"github.com/harun/reactor/internal/config"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	cfgFile  string
	logLevel string
}

// loadConfig reads the config file and applies the --log-level override.
// Callers apply their own flag overrides before validating.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "reactor",
		Short: "Reactor - reason-act agent runtime",
		Long: `Reactor drives a language model through a reason-act loop.
The model replies with a JSON plan of tool calls, reactor runs them
(file, web, sandboxed code and memory tools) and feeds the results back
until the model answers in plain text.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.reactor/reactor.json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error); overrides the config")

	// Version template
	cmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	cmd.AddCommand(
		newRunCmd(opts),
		newChatCmd(opts),
		newMemoryCmd(opts),
		newToolsCmd(opts),
		newConfigureCmd(opts),
	)

	return cmd
}

// Execute runs the root command. main prints the returned error and exits.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("reactor: %w", err)
	}
	return nil
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
