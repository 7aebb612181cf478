// Package store keeps each user's bounded assessment history, login audit
// trail and daily sales ledger. All backends honour the same contract:
// reports and logins are newest-first and capped, sales are keyed by date.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"finpulse/pkg/models"
)

const (
	DefaultReportCapacity = 10
	DefaultLoginCapacity  = 5
)

var (
	ErrInvalidUser   = errors.New("user id is required")
	ErrInvalidReport = errors.New("report id is required")
	ErrInvalidEntry  = errors.New("invalid sales entry")
	ErrInvalidLogin  = errors.New("invalid login session")
)

// HistoryStore is the per-user bounded store. Mutations on one user are
// serialized by every implementation; different users never contend.
type HistoryStore interface {
	// CommitReport prepends report and truncates to capacity, returning the new list.
	CommitReport(ctx context.Context, userID string, report models.SavedReport) ([]models.SavedReport, error)
	Reports(ctx context.Context, userID string) ([]models.SavedReport, error)

	// RecordLogin prepends session and truncates to capacity, returning the new list.
	RecordLogin(ctx context.Context, userID string, session models.LoginSession) ([]models.LoginSession, error)
	Logins(ctx context.Context, userID string) ([]models.LoginSession, error)

	// UpsertSalesEntry replaces the amount for entry.Date or adds the date.
	// The returned ledger is in calendar order.
	UpsertSalesEntry(ctx context.Context, userID string, entry models.DailySalesEntry) ([]models.DailySalesEntry, error)
	SalesEntries(ctx context.Context, userID string) ([]models.DailySalesEntry, error)

	// RemoveUser drops every collection of the user in one step.
	RemoveUser(ctx context.Context, userID string) error
}

// Limits are the per-user capacities of the bounded collections.
type Limits struct {
	Reports int
	Logins  int
}

func DefaultLimits() Limits {
	return Limits{Reports: DefaultReportCapacity, Logins: DefaultLoginCapacity}
}

func (l Limits) normalized() Limits {
	if l.Reports < 1 {
		l.Reports = DefaultReportCapacity
	}
	if l.Logins < 1 {
		l.Logins = DefaultLoginCapacity
	}
	return l
}

// FindReport returns the report with the given id from the user's history.
func FindReport(ctx context.Context, s HistoryStore, userID, reportID string) (models.SavedReport, bool, error) {
	reports, err := s.Reports(ctx, userID)
	if err != nil {
		return models.SavedReport{}, false, err
	}
	for _, r := range reports {
		if r.ID == reportID {
			return r, true, nil
		}
	}
	return models.SavedReport{}, false, nil
}

func checkUser(userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	return nil
}

func checkReport(userID string, r models.SavedReport) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if r.ID == "" {
		return ErrInvalidReport
	}
	return nil
}

func checkLogin(userID string, s models.LoginSession) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if s.Status != models.LoginSuccess && s.Status != models.LoginFailed {
		return fmt.Errorf("%w: status %q", ErrInvalidLogin, s.Status)
	}
	return nil
}

func checkEntry(userID string, e models.DailySalesEntry) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if _, err := e.Day(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if e.Amount < 0 || math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return fmt.Errorf("%w: amount %v", ErrInvalidEntry, e.Amount)
	}
	return nil
}

// prepend puts item first and drops whatever no longer fits.
func prepend[T any](list []T, item T, capacity int) []T {
	out := make([]T, 0, min(len(list)+1, capacity))
	out = append(out, item)
	out = append(out, list...)
	if len(out) > capacity {
		out = out[:capacity]
	}
	return out
}

func sortByDate(entries []models.DailySalesEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
}

func cloneReports(in []models.SavedReport) []models.SavedReport {
	out := make([]models.SavedReport, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
