package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/manager"
	"github.com/c50bossio/6fb-booking-sub001/internal/registry"
)

type healthReport struct {
	Healthy  int                                         `json:"healthy"`
	Total    int                                         `json:"total"`
	Gateways map[domain.GatewayType]gateway.HealthStatus `json:"gateways"`
}

func healthCmd(g *globalFlags) *cobra.Command {
	var (
		fakes   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe every configured gateway and print the results as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			mc, err := cfg.ManagerConfig()
			if err != nil {
				return err
			}

			log := g.cliLogger(cmd)
			factory := registry.NewDefault(log)
			if fakes || cfg.UseFakeGateways {
				factory = registry.NewFake(log)
			}
			mgr, err := manager.NewFromFactory(config.NewStore(mc), factory, manager.WithLogger(log))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			report := probe(ctx, mgr)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if report.Healthy == 0 {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fakes, "fake", false, "Probe in-memory fake gateways")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall probe timeout")
	return cmd
}

func probe(ctx context.Context, mgr *manager.Manager) healthReport {
	results := mgr.HealthCheckAll(ctx)
	r := healthReport{Total: len(results), Gateways: results}
	for _, st := range results {
		if st.Healthy {
			r.Healthy++
		}
	}
	return r
}
