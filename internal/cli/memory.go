package cli

import (
	"fmt"
	"strings"

	"github.com/harun/reactor/internal/config"
	"github.com/harun/reactor/pkg/memory"
	"github.com/spf13/cobra"
)

func newMemoryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and feed long-term memory",
		Long:  `Ingest files into, query, and inspect the configured long-term memory store.`,
	}

	cmd.AddCommand(
		newMemoryIngestCmd(opts),
		newMemoryQueryCmd(opts),
		newMemoryStatsCmd(opts),
	)

	return cmd
}

// openMemoryApp loads the config and opens the store without tools or a provider.
func openMemoryApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := validateWithoutCredentials(cfg); err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, cmd.ErrOrStderr(), appOptions{memory: true})
}

// validateWithoutCredentials validates cfg as if a model profile existed, so
// commands that never call a model work without credentials.
func validateWithoutCredentials(cfg *config.Config) error {
	check := *cfg
	if len(check.AI.Profiles) == 0 {
		check.AI.Profiles = []config.AIProfile{{ID: "placeholder", Provider: check.AI.Provider, APIKey: "placeholder"}}
	}
	if err := check.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func newMemoryIngestCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file...>",
		Short: "Split files into paragraph chunks and store them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openMemoryApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			for _, path := range args {
				ids, err := memory.IngestFile(ctx, a.store, path)
				if err != nil {
					return fmt.Errorf("failed to ingest %s: %w", path, err)
				}
				fmt.Fprintf(out, "%s: %d chunks\n", path, len(ids))
			}
			a.saveMemory(ctx)
			fmt.Fprintf(out, "%d records in memory\n", a.store.Count())
			return nil
		},
	}
}

func newMemoryQueryCmd(opts *globalOptions) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Show the records nearest to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openMemoryApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("top-k") {
				k = a.cfg.Memory.TopK
			}
			hits, err := memory.Query(cmd.Context(), a.store, memory.QueryParams{
				Query: strings.Join(args, " "),
				K:     k,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "no records")
				return nil
			}
			for _, hit := range hits {
				role, _ := hit.Metadata["role"].(string)
				fmt.Fprintf(out, "[%d] %.4f %s: %s\n", hit.ID, hit.Distance, role, hit.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of results (default memory.top_k)")

	return cmd
}

func newMemoryStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the store engine, size and dimension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openMemoryApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "engine:    %s\n", a.cfg.Memory.Engine)
			fmt.Fprintf(out, "path:      %s\n", a.cfg.Memory.Path)
			fmt.Fprintf(out, "records:   %d\n", a.store.Count())
			fmt.Fprintf(out, "dimension: %d\n", a.store.Dimension())
			return nil
		},
	}
}
