// Package assessor defines the remote assessment capability and its
// implementations: one backed by an LLM provider and a deterministic one
// built on local arithmetic.
package assessor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"finpulse/pkg/models"
)

// Assessor turns a financial snapshot into a full assessment. Implementations
// must return errors that resilience.Classify can tell apart: quota signals,
// transient remote failures, and permanent ones such as *ContractError.
type Assessor interface {
	Assess(ctx context.Context, data models.FinancialData, history HistorySummary) (models.AssessmentResult, error)
}

// HistorySummary is the trend context sent along with a new snapshot. Only
// the most recent report is summarized.
type HistorySummary struct {
	Reports             int       `json:"reports"`
	PreviousReportID    string    `json:"previous_report_id,omitempty"`
	PreviousTimestamp   time.Time `json:"previous_timestamp,omitempty"`
	PreviousRevenue     float64   `json:"previous_revenue,omitempty"`
	PreviousCreditScore int       `json:"previous_credit_score,omitempty"`
}

// Summarize builds the summary from a newest-first report history.
func Summarize(history []models.SavedReport) HistorySummary {
	if len(history) == 0 {
		return HistorySummary{}
	}
	last := history[0]
	return HistorySummary{
		Reports:             len(history),
		PreviousReportID:    last.ID,
		PreviousTimestamp:   last.Timestamp,
		PreviousRevenue:     last.Data.Revenue,
		PreviousCreditScore: last.Assessment.CreditScore,
	}
}

func (h HistorySummary) Initial() bool { return h.Reports == 0 }

// ContextLine is the one-line trend statement included in the prompt.
func (h HistorySummary) ContextLine() string {
	if h.Initial() {
		return "Historical Trend: Initial analysis cycle."
	}
	return "Historical Trend: Last analysis revenue was ₹" + strconv.FormatFloat(h.PreviousRevenue, 'f', -1, 64) + "."
}

// ContractError is a remote success payload that does not satisfy the
// assessment contract. It is never retried.
type ContractError struct {
	Missing []string // fields absent or null
	Invalid []string // fields present with an out-of-range or unknown value
	Err     error
}

func (e *ContractError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return fmt.Sprintf("assessment contract violated: %s", strings.Join(parts, "; "))
}

func (e *ContractError) Unwrap() error { return e.Err }

func (e *ContractError) Permanent() bool { return true }
