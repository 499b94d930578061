// internal/cli/check.go
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"capacity-engine/internal/common/validation"
	calculatecapacity "capacity-engine/internal/workers/capacity/calculate-capacity"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		day  string
		date string
		zip  string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compute one capacity decision against the provider and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if zip != "" && !validation.ValidateZip(zip) {
				return fmt.Errorf("invalid --zip %q: expected 5 digits", zip)
			}

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

			if date == "" {
				switch day {
				case "today":
					date = a.calc.DateFor(0)
				case "tomorrow":
					date = a.calc.DateFor(1)
				default:
					return fmt.Errorf("invalid --day %q: expected today or tomorrow", day)
				}
			}

			resp, err := a.calc.Execute(contextOrBackground(cmd.Context()), &calculatecapacity.Input{Date: date, Zip: zip})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&day, "day", "today", "today or tomorrow")
	cmd.Flags().StringVar(&date, "date", "", "explicit YYYY-MM-DD date (overrides --day)")
	cmd.Flags().StringVar(&zip, "zip", "", "customer ZIP for express eligibility")
	return cmd
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
