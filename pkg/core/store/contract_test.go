package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finpulse/pkg/models"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleReport(i int) models.SavedReport {
	return models.SavedReport{
		ID:        fmt.Sprintf("r%02d", i),
		Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
		Data: models.FinancialData{
			Revenue:  float64(100000 * i),
			Industry: models.IndustryRetail,
		},
		Assessment: models.AssessmentResult{
			CreditScore: 600 + i,
			RiskRating:  models.RiskMedium,
			Insights:    []string{fmt.Sprintf("insight %d", i)},
			LoanEligibility: models.LoanEligibility{
				EligibleAmount: 250000.5,
				TenureOptions:  []models.TenureOption{{Label: "12 Months", Months: 12, IsEligible: true, EstimatedEMI: 22000.25}},
			},
		},
	}
}

// runContract exercises the HistoryStore contract against any backend.
func runContract(t *testing.T, newStore func(t *testing.T) HistoryStore) {
	ctx := context.Background()

	t.Run("reports are capped newest first", func(t *testing.T) {
		s := newStore(t)
		var last []models.SavedReport
		for i := 1; i <= 11; i++ {
			var err error
			last, err = s.CommitReport(ctx, "u1", sampleReport(i))
			require.NoError(t, err)
		}
		require.Len(t, last, DefaultReportCapacity)
		for i, r := range last {
			assert.Equal(t, fmt.Sprintf("r%02d", 11-i), r.ID)
		}

		stored, err := s.Reports(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, last, stored)
	})

	t.Run("stored assessment round-trips exactly", func(t *testing.T) {
		s := newStore(t)
		want := sampleReport(1)
		list, err := s.CommitReport(ctx, "u1", want)
		require.NoError(t, err)
		require.Len(t, list, 1)

		got, ok, err := FindReport(ctx, s, "u1", want.ID)
		require.NoError(t, err)
		require.True(t, ok)

		wantJSON, _ := json.Marshal(want.Assessment)
		gotJSON, _ := json.Marshal(got.Assessment)
		assert.Equal(t, string(wantJSON), string(gotJSON))
		assert.Equal(t, want.Data, got.Data)
		assert.True(t, want.Timestamp.Equal(got.Timestamp))

		_, ok, err = FindReport(ctx, s, "u1", "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("logins are capped at five", func(t *testing.T) {
		s := newStore(t)
		var last []models.LoginSession
		for i := 0; i < 7; i++ {
			var err error
			status := models.LoginSuccess
			if i%2 == 1 {
				status = models.LoginFailed
			}
			last, err = s.RecordLogin(ctx, "u1", models.LoginSession{
				Timestamp: baseTime.Add(time.Duration(i) * time.Hour),
				Status:    status,
				IP:        fmt.Sprintf("10.0.0.%d", i),
			})
			require.NoError(t, err)
		}
		require.Len(t, last, DefaultLoginCapacity)
		assert.Equal(t, "10.0.0.6", last[0].IP)
		assert.Equal(t, "10.0.0.2", last[4].IP)

		stored, err := s.Logins(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, stored, DefaultLoginCapacity)
	})

	t.Run("sales upsert replaces same date", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpsertSalesEntry(ctx, "u1", models.DailySalesEntry{Date: "2025-03-02", Amount: 100})
		require.NoError(t, err)
		_, err = s.UpsertSalesEntry(ctx, "u1", models.DailySalesEntry{Date: "2025-03-01", Amount: 40})
		require.NoError(t, err)
		ledger, err := s.UpsertSalesEntry(ctx, "u1", models.DailySalesEntry{Date: "2025-03-02", Amount: 250})
		require.NoError(t, err)

		require.Len(t, ledger, 2)
		assert.Equal(t, models.DailySalesEntry{Date: "2025-03-01", Amount: 40}, ledger[0])
		assert.Equal(t, models.DailySalesEntry{Date: "2025-03-02", Amount: 250}, ledger[1])
	})

	t.Run("amounts are stored to the paisa", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpsertSalesEntry(ctx, "u1", models.DailySalesEntry{Date: "2025-03-01", Amount: 100.005})
		require.NoError(t, err)
		ledger, err := s.UpsertSalesEntry(ctx, "u1", models.DailySalesEntry{Date: "2025-03-02", Amount: 99.994})
		require.NoError(t, err)
		require.Len(t, ledger, 2)
		assert.Equal(t, 100.01, ledger[0].Amount)
		assert.Equal(t, 99.99, ledger[1].Amount)

		stored, err := s.SalesEntries(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, ledger, stored)
	})

	t.Run("totals fold the ledger", func(t *testing.T) {
		s := newStore(t)
		for _, e := range []models.DailySalesEntry{
			{Date: "2025-02-28", Amount: 10.1},
			{Date: "2025-03-01", Amount: 20.2},
			{Date: "2025-03-31", Amount: 30.3},
			{Date: "2024-03-15", Amount: 1000},
		} {
			_, err := s.UpsertSalesEntry(ctx, "u1", e)
			require.NoError(t, err)
		}

		march, err := MonthlyTotal(ctx, s, "u1", 2025, time.March)
		require.NoError(t, err)
		assert.Equal(t, 50.5, march)

		all, err := AllTimeTotal(ctx, s, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1060.6, all)

		empty, err := MonthlyTotal(ctx, s, "nobody", 2025, time.March)
		require.NoError(t, err)
		assert.Zero(t, empty)
	})

	t.Run("remove user purges only that user", func(t *testing.T) {
		s := newStore(t)
		for _, u := range []string{"u1", "u2"} {
			_, err := s.CommitReport(ctx, u, sampleReport(1))
			require.NoError(t, err)
			_, err = s.RecordLogin(ctx, u, models.LoginSession{Timestamp: baseTime, Status: models.LoginSuccess})
			require.NoError(t, err)
			_, err = s.UpsertSalesEntry(ctx, u, models.DailySalesEntry{Date: "2025-03-01", Amount: 5})
			require.NoError(t, err)
		}

		require.NoError(t, s.RemoveUser(ctx, "u1"))

		reports, _ := s.Reports(ctx, "u1")
		logins, _ := s.Logins(ctx, "u1")
		sales, _ := s.SalesEntries(ctx, "u1")
		assert.Empty(t, reports)
		assert.Empty(t, logins)
		assert.Empty(t, sales)

		other, _ := s.Reports(ctx, "u2")
		assert.Len(t, other, 1)

		require.NoError(t, s.RemoveUser(ctx, "never-existed"))
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CommitReport(ctx, "", sampleReport(1))
		assert.ErrorIs(t, err, ErrInvalidUser)
		_, err = s.CommitReport(ctx, "u1", models.SavedReport{})
		assert.ErrorIs(t, err, ErrInvalidReport)
		_, err = s.UpsertSalesEntry(ctx, "u1", models.DailySalesEntry{Date: "03/01/2025", Amount: 1})
		assert.ErrorIs(t, err, ErrInvalidEntry)
		_, err = s.UpsertSalesEntry(ctx, "u1", models.DailySalesEntry{Date: "2025-03-01", Amount: -1})
		assert.ErrorIs(t, err, ErrInvalidEntry)
		_, err = s.RecordLogin(ctx, "u1", models.LoginSession{Status: "Maybe"})
		assert.ErrorIs(t, err, ErrInvalidLogin)
	})

	t.Run("concurrent commits keep the cap", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 1; i <= 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.CommitReport(ctx, "u1", sampleReport(i))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		reports, err := s.Reports(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, reports, DefaultReportCapacity)

		seen := map[string]bool{}
		for _, r := range reports {
			assert.False(t, seen[r.ID], "duplicate report %s", r.ID)
			seen[r.ID] = true
		}
	})
}
