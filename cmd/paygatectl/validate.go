package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
)

func validateConfigCmd(g *globalFlags) *cobra.Command {
	var (
		overrides string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Validate the gateway configuration resolved from the environment",
		Long: `Resolve the gateway configuration the service would start with
(environment defaults, credentials, overrides file and env overrides) and
print errors, warnings and informational notes. Exits non-zero on errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if overrides != "" {
				cfg.OverridesFile = overrides
			}
			mc, err := cfg.ManagerConfig()
			if err != nil {
				return err
			}

			report := config.ValidateConfig(mc)
			g.cliLogger(cmd).Debug("configuration validated",
				"environment", mc.Environment.String(),
				"errors", len(report.Errors),
			)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					Valid bool `json:"valid"`
					config.Report
				}{report.Valid(), report}); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}

			if !report.Valid() {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&overrides, "overrides", "", "YAML overrides file (defaults to PAYMENT_GATEWAY_OVERRIDES_FILE)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printReport(w io.Writer, r config.Report) {
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(w, "%s:\n", title)
		for _, l := range lines {
			fmt.Fprintf(w, "  - %s\n", l)
		}
	}
	section("Errors", r.Errors)
	section("Warnings", r.Warnings)
	section("Info", r.Info)
	if r.Valid() {
		fmt.Fprintln(w, "Configuration is valid.")
	} else {
		fmt.Fprintf(w, "Configuration has %d error(s).\n", len(r.Errors))
	}
}
