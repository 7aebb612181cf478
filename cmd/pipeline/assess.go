package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"finpulse/pkg/core/agent"
	"finpulse/pkg/core/assessor"
	"finpulse/pkg/core/config"
	"finpulse/pkg/core/pipeline"
	"finpulse/pkg/core/prompt"
	"finpulse/pkg/core/store"

	"github.com/spf13/cobra"
)

var (
	assessUser      string
	assessSimulated bool
	assessProvider  string
	assessQuiet     bool
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run one assessment and print the committed report",
	Long: `Run the full pipeline (validation, progress sequence, remote
assessment with retries, local cross-check) against an in-memory history
and print the committed report as JSON. Progress goes to stderr.`,
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().StringVarP(&input, "input", "i", "", "FinancialData JSON or statement file")
	assessCmd.Flags().StringVar(&assessUser, "user", "cli", "User id the report is filed under")
	assessCmd.Flags().BoolVar(&assessSimulated, "simulated", false, "Use the deterministic local assessor")
	assessCmd.Flags().StringVar(&assessProvider, "provider", "", "Override the active LLM provider")
	assessCmd.Flags().BoolVarP(&assessQuiet, "quiet", "q", false, "Suppress progress output")
}

func runAssess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	data, err := readFinancialData(input)
	if err != nil {
		return err
	}

	var a assessor.Assessor
	if assessSimulated || cfg.Assessor == config.AssessorSimulated {
		a = assessor.NewSimulated(cfg.Models.RatePolicy, cfg.Models.TenurePolicy)
	} else {
		mgr := agent.NewManager(cfg.Models.Config, nil)
		if assessProvider != "" {
			if err := mgr.SetGlobalProvider(assessProvider); err != nil {
				return err
			}
		}
		prompts := prompt.Get()
		if cfg.PromptsDir != "" {
			if err := prompt.LoadFromDirectory(prompts, cfg.PromptsDir); err != nil {
				return err
			}
		}
		a = assessor.NewLLMAssessor(mgr, assessor.WithPrompts(prompts), assessor.WithTenurePolicy(cfg.Models.TenurePolicy))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	orch := pipeline.New(a, store.NewMemoryStore(cfg.Limits()), cfg.Pipeline())
	if _, err := orch.Submit(ctx, assessUser, data, progressPrinter(cmd)); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), pipeline.UserMessage(err))
		return err
	}
	return printJSON(cmd.OutOrStdout(), orch.Current(assessUser))
}

func progressPrinter(cmd *cobra.Command) pipeline.Sink {
	if assessQuiet {
		return nil
	}
	w := cmd.ErrOrStderr()
	return func(e pipeline.Event) {
		switch e.Type {
		case pipeline.EventProgress:
			fmt.Fprintf(w, "[%2d/%d] %s\n", e.Step, e.Total, e.Label)
		case pipeline.EventRetry:
			fmt.Fprintf(w, "retry %d in %dms (%s)\n", e.Attempt, e.WaitMs, e.RetryKind)
		case pipeline.EventState:
			fmt.Fprintf(w, "state: %s\n", e.State)
		}
	}
}
