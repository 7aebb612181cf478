package models

import (
	"fmt"
	"time"
)

// SavedReport pairs an assessment with the input that produced it.
type SavedReport struct {
	ID         string           `json:"id"`
	Timestamp  time.Time        `json:"timestamp"`
	Data       FinancialData    `json:"data"`
	Assessment AssessmentResult `json:"assessment"`
}

func (r SavedReport) Clone() SavedReport {
	out := r
	out.Data = r.Data.Clone()
	out.Assessment = r.Assessment.Clone()
	return out
}

// SalesDateLayout is the calendar-day key of the sales ledger.
const SalesDateLayout = "2006-01-02"

type DailySalesEntry struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// Day parses the entry's calendar-day key.
func (e DailySalesEntry) Day() (time.Time, error) {
	t, err := time.Parse(SalesDateLayout, e.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sales date %q: %w", e.Date, err)
	}
	return t, nil
}

type LoginStatus string

const (
	LoginSuccess LoginStatus = "Success"
	LoginFailed  LoginStatus = "Failed"
)

type LoginSession struct {
	Timestamp time.Time   `json:"timestamp"`
	Status    LoginStatus `json:"status"`
	IP        string      `json:"ip,omitempty"`
}
