package pipeline

import (
	"context"
	"time"
)

// DefaultProgressLabels is the fixed sequence shown while an assessment runs.
var DefaultProgressLabels = []string{
	"Synchronizing with GSTN Repositories...",
	"Authenticating Institutional API Handshake...",
	"Applying Linear Regression Forecasting Models...",
	"Validating Industry Sector Benchmarks...",
	"Calculating Net Working Capital Ratios...",
	"Auditing Tax Integrity and Slabs...",
	"Generating Creditworthiness Scorecard...",
	"Optimizing Loan Propensity Algorithms...",
	"Finalizing Strategic Growth Insights...",
	"Synthesizing High-Performance Analysis Cycle...",
}

const (
	DefaultProgressCadence = 700 * time.Millisecond
	DefaultProgressHold    = 1200 * time.Millisecond
)

// Progress describes the cosmetic sequence. Labels are shown in order, one
// per Cadence, then the last label is held for Hold.
type Progress struct {
	Labels  []string
	Cadence time.Duration
	Hold    time.Duration
}

func DefaultProgress() Progress {
	return Progress{Labels: DefaultProgressLabels, Cadence: DefaultProgressCadence, Hold: DefaultProgressHold}
}

// Duration is the total cosmetic time of one run.
func (p Progress) Duration() time.Duration {
	if len(p.Labels) == 0 {
		return 0
	}
	return time.Duration(len(p.Labels)-1)*p.Cadence + p.Hold
}

// run emits every label and returns after the hold, or early with ctx's error.
func (p Progress) run(ctx context.Context, sleep func(context.Context, time.Duration) error, sink Sink) error {
	total := len(p.Labels)
	for i, label := range p.Labels {
		sink.emit(Event{Type: EventProgress, State: StatePreprocessing, Step: i + 1, Total: total, Label: label})
		wait := p.Cadence
		if i == total-1 {
			wait = p.Hold
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
