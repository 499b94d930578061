// internal/cli/technicians.go
package cli

import (
	"github.com/spf13/cobra"

	resolvetechnicians "capacity-engine/internal/workers/capacity/resolve-technicians"
)

func newTechniciansCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "technicians",
		Short: "Inspect the configured technician roster",
	}

	resolve := &cobra.Command{
		Use:   "resolve",
		Short: "Match configured technicians to provider employees and print the mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(true)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := buildApp(contextOrBackground(cmd.Context()), cfg, log, buildOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.resolver.Execute(contextOrBackground(cmd.Context()), &resolvetechnicians.Input{ForceRefresh: true})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.AddCommand(resolve)
	return cmd
}
