package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/event"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway/fake"
	"github.com/c50bossio/6fb-booking-sub001/internal/manager"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
)

type simOptions struct {
	Runs            int
	Strategy        string
	Amount          decimal.Decimal
	Currency        string
	FailureRates    map[domain.GatewayType]float64
	Fees            map[domain.GatewayType]config.Fees
	Disabled        []domain.GatewayType
	DisableFailover bool
}

type simReport struct {
	Runs         int                           `json:"runs"`
	Strategy     string                        `json:"strategy"`
	Succeeded    int                           `json:"succeeded"`
	Failed       int                           `json:"failed"`
	FailedOver   int                           `json:"failed_over"`
	Selected     map[domain.GatewayType]int64  `json:"selected"`
	Completed    map[domain.GatewayType]int    `json:"completed"`
	Failovers    map[string]int                `json:"failovers"`
	ErrorCodes   map[string]int                `json:"error_codes,omitempty"`
	TotalFees    map[domain.GatewayType]string `json:"total_fees"`
	FinalMetrics []selector.GatewayMetrics     `json:"final_metrics"`
}

func simulateCmd(g *globalFlags) *cobra.Command {
	var (
		runs            int
		strategy        string
		amount          string
		currency        string
		failures        map[string]string
		fees            map[string]string
		disabled        []string
		disableFailover bool
		asJSON          bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run payment intents against fake gateways and report routing outcomes",
		Long: `Create payment intents against in-memory fake gateways with the given
fees and failure rates, then report how the selector distributed traffic and
how often failover was needed.

Example:
  paygatectl simulate --runs 500 --strategy lowest_cost \
    --fail tilled=0.3 --fee square=0.05:2.4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseSimOptions(runs, strategy, amount, currency, failures, fees, disabled)
			if err != nil {
				return err
			}
			opts.DisableFailover = disableFailover

			report, err := simulate(cmd.Context(), opts, g.cliLogger(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printSimReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().IntVarP(&runs, "runs", "n", 100, "Number of payment intents to create")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Selection strategy ("+strings.Join(selector.StrategyNames(), ", ")+")")
	cmd.Flags().StringVar(&amount, "amount", "100.00", "Intent amount")
	cmd.Flags().StringVar(&currency, "currency", "USD", "Intent currency")
	cmd.Flags().StringToStringVar(&failures, "fail", nil, "Failure rate per gateway, e.g. tilled=0.25")
	cmd.Flags().StringToStringVar(&fees, "fee", nil, "Fee per gateway as fixed:percent, e.g. stripe=0.30:2.9")
	cmd.Flags().StringSliceVar(&disabled, "disable", nil, "Gateways to disable")
	cmd.Flags().BoolVar(&disableFailover, "no-failover", false, "Disable failover")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func parseSimOptions(runs int, strategy, amount, currency string, failures, fees map[string]string, disabled []string) (simOptions, error) {
	if runs < 1 {
		return simOptions{}, fmt.Errorf("--runs must be at least 1, got %d", runs)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return simOptions{}, fmt.Errorf("--amount: %w", err)
	}
	if strategy != "" {
		if _, err := selector.ParseStrategy(strategy); err != nil {
			return simOptions{}, err
		}
	}

	opts := simOptions{
		Runs:         runs,
		Strategy:     strategy,
		Amount:       amt,
		Currency:     currency,
		FailureRates: make(map[domain.GatewayType]float64, len(failures)),
		Fees:         make(map[domain.GatewayType]config.Fees, len(fees)),
	}
	for name, raw := range failures {
		gt, err := domain.ParseGatewayType(name)
		if err != nil {
			return simOptions{}, err
		}
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || rate < 0 || rate > 1 {
			return simOptions{}, fmt.Errorf("--fail %s: rate must be between 0 and 1, got %q", name, raw)
		}
		opts.FailureRates[gt] = rate
	}
	for name, raw := range fees {
		gt, err := domain.ParseGatewayType(name)
		if err != nil {
			return simOptions{}, err
		}
		fixed, pct, ok := strings.Cut(raw, ":")
		if !ok {
			return simOptions{}, fmt.Errorf("--fee %s: want fixed:percent, got %q", name, raw)
		}
		f, err := decimal.NewFromString(fixed)
		if err != nil {
			return simOptions{}, fmt.Errorf("--fee %s: %w", name, err)
		}
		p, err := decimal.NewFromString(pct)
		if err != nil {
			return simOptions{}, fmt.Errorf("--fee %s: %w", name, err)
		}
		opts.Fees[gt] = config.Fees{Fixed: f, Percentage: p}
	}
	for _, name := range disabled {
		gt, err := domain.ParseGatewayType(name)
		if err != nil {
			return simOptions{}, err
		}
		opts.Disabled = append(opts.Disabled, gt)
	}
	return opts, nil
}

// failoverRecorder counts failover hops and failed-over intents reported by
// the manager.
type failoverRecorder struct {
	event.Nop
	mu         sync.Mutex
	hops       map[string]int
	failedOver int
}

func (r *failoverRecorder) PublishIntentCreated(_ context.Context, d event.IntentCreatedData) error {
	if d.FailedOver {
		r.mu.Lock()
		r.failedOver++
		r.mu.Unlock()
	}
	return nil
}

func (r *failoverRecorder) PublishFailover(_ context.Context, d event.FailoverData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hops[d.FailedGateway.String()+"->"+d.NextGateway.String()]++
	return nil
}

func simulate(ctx context.Context, opts simOptions, log *slog.Logger) (*simReport, error) {
	mc := config.DefaultManagerConfig(config.Development)
	mc.FailoverEnabled = !opts.DisableFailover
	mc.HealthCheckInterval = 0
	if opts.Strategy != "" {
		mc.DefaultStrategy = opts.Strategy
	}
	for gt, f := range opts.Fees {
		gc := mc.Gateways[gt]
		gc.TransactionFee, gc.PercentageFee = f.Fixed, f.Percentage
		mc.Gateways[gt] = gc
	}
	for _, gt := range opts.Disabled {
		gc := mc.Gateways[gt]
		gc.Enabled = false
		mc.Gateways[gt] = gc
	}

	var adapters []gateway.Adapter
	for _, gt := range domain.SupportedGatewayTypes() {
		a := fake.New(mc.Gateways[gt], gateway.WithLogger(log))
		a.SetFailureRate(opts.FailureRates[gt])
		adapters = append(adapters, a)
	}

	sel := selector.New(selector.NewMetrics(nil),
		selector.WithFailoverOrder(mc.FailoverOrder...),
		selector.WithABTestGroups(mc.ABTestGroups),
	)
	rec := &failoverRecorder{hops: make(map[string]int)}
	mgr, err := manager.New(config.NewStore(mc), adapters,
		manager.WithLogger(log),
		manager.WithSelector(sel),
		manager.WithEvents(rec),
	)
	if err != nil {
		return nil, err
	}

	report := &simReport{
		Runs:       opts.Runs,
		Strategy:   mc.DefaultStrategy,
		Completed:  make(map[domain.GatewayType]int),
		ErrorCodes: make(map[string]int),
		TotalFees:  make(map[domain.GatewayType]string),
	}
	fees := make(map[domain.GatewayType]decimal.Decimal)

	for i := 0; i < opts.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pi, err := mgr.CreatePaymentIntent(ctx, manager.IntentRequest{
			Amount:   opts.Amount,
			Currency: opts.Currency,
			Metadata: map[string]string{"simulation_run": strconv.Itoa(i + 1)},
		})
		if err != nil {
			report.Failed++
			report.ErrorCodes[domain.ErrorCode(err)]++
			continue
		}
		report.Succeeded++
		report.Completed[pi.Gateway]++
		gc := mc.Gateways[pi.Gateway]
		fees[pi.Gateway] = fees[pi.Gateway].Add(gc.TransactionFee.Add(opts.Amount.Mul(gc.PercentageFee).Div(decimal.NewFromInt(100))))
	}

	for gt, total := range fees {
		report.TotalFees[gt] = total.StringFixed(2)
	}
	report.Selected = sel.SelectionCounts()
	report.Failovers = rec.hops
	report.FailedOver = rec.failedOver
	report.FinalMetrics = mgr.Metrics()
	return report, nil
}

func printSimReport(w io.Writer, r *simReport) {
	fmt.Fprintf(w, "Strategy:    %s\n", r.Strategy)
	fmt.Fprintf(w, "Runs:        %d\n", r.Runs)
	fmt.Fprintf(w, "Succeeded:   %d\n", r.Succeeded)
	fmt.Fprintf(w, "Failed:      %d\n", r.Failed)
	fmt.Fprintf(w, "Failed over: %d\n", r.FailedOver)

	fmt.Fprintln(w, "\nGateway     selected  completed  fees")
	for _, gt := range domain.SupportedGatewayTypes() {
		fee := r.TotalFees[gt]
		if fee == "" {
			fee = "0.00"
		}
		fmt.Fprintf(w, "%-10s  %8d  %9d  %s\n", gt, r.Selected[gt], r.Completed[gt], fee)
	}

	if len(r.Failovers) > 0 {
		fmt.Fprintln(w, "\nFailover hops:")
		hops := make([]string, 0, len(r.Failovers))
		for h := range r.Failovers {
			hops = append(hops, h)
		}
		sort.Strings(hops)
		for _, h := range hops {
			fmt.Fprintf(w, "  %-20s %d\n", h, r.Failovers[h])
		}
	}
	if len(r.ErrorCodes) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for code, n := range r.ErrorCodes {
			fmt.Fprintf(w, "  %-24s %d\n", code, n)
		}
	}
}
