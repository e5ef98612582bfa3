package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newToolsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		Long:  `List the enabled tools, with their arguments, in the order the model sees them.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := validateWithoutCredentials(cfg); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr(), appOptions{
				memory: cfg.Memory.Enabled,
				tools:  true,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, def := range a.tools.ListTools() {
				fmt.Fprintf(w, "%s\t%s\n", def.Name, def.Description)
				for _, arg := range def.ArgumentDocs() {
					fmt.Fprintf(w, "  %s\t%s\n", arg[0], arg[1])
				}
			}
			return w.Flush()
		},
	}
}
