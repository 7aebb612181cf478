package main

import (
	"fmt"

	"finpulse/pkg/core/calc"
	"finpulse/pkg/core/config"
	"finpulse/pkg/models"

	"github.com/spf13/cobra"
)

var (
	metricsPrincipal float64
	metricsScore     int
	metricsRange     string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute working-capital metrics and a tenure table locally",
	Long: `Compute the derived metrics for a snapshot without calling any remote
service. With --principal, also build the EMI table for the configured
tenures at the rate the rate policy assigns to --score or --range.`,
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().StringVarP(&input, "input", "i", "", "FinancialData JSON or statement file")
	metricsCmd.Flags().Float64Var(&metricsPrincipal, "principal", 0, "Loan principal for the tenure table")
	metricsCmd.Flags().IntVar(&metricsScore, "score", 0, "Credit score used to pick the rate band")
	metricsCmd.Flags().StringVar(&metricsRange, "range", "", `Quoted rate range, e.g. "11.5% - 14%"`)
}

type metricsReport struct {
	Data       models.FinancialData  `json:"data"`
	Metrics    calc.Snapshot         `json:"metrics"`
	Targets    *calc.SalesTargets    `json:"targets,omitempty"`
	RatePct    float64               `json:"annual_rate_pct,omitempty"`
	RateSource calc.RateSource       `json:"rate_source,omitempty"`
	Policy     string                `json:"rate_policy_version,omitempty"`
	Tenures    []models.TenureOption `json:"tenures,omitempty"`
	Savings    *calc.Ratio           `json:"tenure_savings_pct,omitempty"`
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	data, err := readFinancialData(input)
	if err != nil {
		return err
	}
	if err := models.ValidateFinancialData(data); err != nil {
		return err
	}

	out := metricsReport{Data: data, Metrics: calc.Metrics(data)}
	if metricsPrincipal > 0 {
		if metricsRange == "" && metricsScore == 0 {
			return fmt.Errorf("--principal needs --score or --range")
		}
		rates := cfg.Models.RatePolicy
		out.RatePct, out.RateSource = rates.AnnualRate(metricsRange, metricsScore)
		out.Policy = rates.Version
		out.Tenures = calc.BuildTenureTable(metricsPrincipal, out.RatePct, calc.CapacityOf(data), cfg.Models.TenurePolicy)
		savings := calc.TenureSavingsPct(out.Tenures)
		out.Savings = &savings
		targets := calc.TargetsFor(metricsPrincipal)
		out.Targets = &targets
	}
	return printJSON(cmd.OutOrStdout(), out)
}
