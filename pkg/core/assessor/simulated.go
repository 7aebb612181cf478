package assessor

import (
	"context"
	"fmt"
	"math"
	"time"

	"finpulse/pkg/core/calc"
	"finpulse/pkg/models"
)

// industryNorms holds sector averages used for benchmarking, in percent.
var industryNorms = map[models.Industry]struct{ margin, expenseRatio float64 }{
	models.IndustryManufacturing: {12, 80},
	models.IndustryRetail:        {8, 88},
	models.IndustryAgriculture:   {10, 85},
	models.IndustryServices:      {18, 72},
	models.IndustryLogistics:     {9, 86},
	models.IndustryECommerce:     {7, 90},
}

// Simulated is a deterministic Assessor driven entirely by local arithmetic.
// It backs offline demos and tests; the same input always yields the same result.
type Simulated struct {
	Rates   calc.RatePolicy
	Tenures calc.TenurePolicy
	// Delay imitates remote latency and honours ctx.
	Delay time.Duration
}

func NewSimulated(rates calc.RatePolicy, tenures calc.TenurePolicy) *Simulated {
	return &Simulated{Rates: rates, Tenures: tenures}
}

func (s *Simulated) Assess(ctx context.Context, d models.FinancialData, history HistorySummary) (models.AssessmentResult, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return models.AssessmentResult{}, ctx.Err()
		case <-t.C:
		}
	}

	m := calc.Metrics(d)
	profit := d.Revenue - d.Expenses
	margin := calc.Div(profit, d.Revenue).Or(0) * 100
	dti := m.DebtToIncome.Or(0)
	burden := m.EMIBurden.Or(0)

	score := 600 + margin*5 - dti*120 - burden*2
	if m.WorkingCapital < 0 {
		score -= 60
	}
	switch d.GSTStatus {
	case models.GSTPending:
		score -= 15
	case models.GSTOverdue:
		score -= 40
	}
	credit := int(math.Round(clamp(score, 300, 900)))

	risk := models.RiskHigh
	switch {
	case credit >= 750:
		risk = models.RiskLow
	case credit >= 650:
		risk = models.RiskMedium
	}

	eligible := math.Max(0, math.Min(profit*1.5, d.Revenue*0.3)-d.Loans*0.5)
	eligible = math.Floor(eligible/1000) * 1000

	band, ok := s.Rates.BandFor(credit)
	rangeText := fmt.Sprintf("%g%%", s.Rates.FallbackPct)
	if ok {
		rangeText = fmt.Sprintf("%g%% - %g%%", band.LowPct, band.HighPct)
	}
	rate, _ := s.Rates.AnnualRate(rangeText, credit)

	out := models.AssessmentResult{
		CreditScore:          credit,
		RiskRating:           risk,
		ComplianceScore:      complianceFor(d.GSTStatus),
		WorkingCapitalStatus: workingCapitalStatus(m),
		WorkingCapitalMetrics: models.WorkingCapitalMetrics{
			WorkingCapital: calc.Round2(m.WorkingCapital),
			CurrentRatio:   calc.Round2(m.CurrentRatio.Or(0)),
			DebtToIncome:   calc.Round2(dti),
			EMIBurden:      calc.Round2(burden),
		},
		BookkeepingAdvice: []string{
			"Reconcile bank statements weekly against the sales register.",
			"Separate GST input credit from operating expenses in the ledger.",
			"Age receivables monthly and follow up on balances beyond 60 days.",
		},
		SuggestedLedgerEntries: []models.LedgerSuggestion{
			{Category: "Revenue", Description: fmt.Sprintf("%s sales receipts", d.Industry), SuggestedAccount: "Sales Account"},
			{Category: "Expense", Description: "Supplier invoices and purchases", SuggestedAccount: "Purchase Account"},
			{Category: "Liability", Description: "Loan instalments paid", SuggestedAccount: "Secured Loans"},
		},
		TaxComplianceNotes: taxNote(d.GSTStatus),
		TaxIntegrity:       taxIntegrity(profit, d.GSTStatus),
		Insights:           insights(d, m, margin, history),
		Recommendations:    recommendations(m, margin, d.GSTStatus),
		Benchmarks:         benchmarks(d, margin),
		Forecast:           forecast(d),
		FiveYearForecast:   fiveYear(d, m),
		RevenueBreakdown: []models.RevenueSlice{
			{Category: "Core sales", Amount: calc.Round2(d.Revenue * 0.8), Percentage: 80},
			{Category: "Services and other", Amount: calc.Round2(d.Revenue * 0.2), Percentage: 20},
		},
		LoanEligibility: models.LoanEligibility{
			EligibleAmount:    eligible,
			InterestRateRange: rangeText,
			PropensityScore:   calc.Round2(clamp(float64(credit-300)/6, 0, 100)),
			GrowthFactor:      calc.Round2(1 + clamp(margin, 0, 50)/100),
			TenureOptions:     calc.BuildTenureTable(eligible, rate, calc.CapacityOf(d), s.Tenures),
		},
		FinancialProducts: []models.FinancialProduct{
			{Provider: "SIDBI", Product: "Working Capital Term Loan", Rate: rangeText, Suitability: "Inventory and receivables financing"},
			{Provider: "CGTMSE", Product: "Collateral-free Credit Guarantee", Rate: "Guarantee fee 0.37% - 1.35%", Suitability: "Businesses without collateral"},
		},
		LongTermTips: []string{
			"Build a cash reserve covering three months of expenses.",
			"Refinance high-cost debt once the credit score improves.",
		},
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func complianceFor(s models.GSTStatus) float64 {
	switch s {
	case models.GSTFiled:
		return 95
	case models.GSTPending:
		return 70
	case models.GSTOverdue:
		return 40
	}
	return 80
}

func workingCapitalStatus(m calc.Snapshot) string {
	switch {
	case m.WorkingCapital < 0:
		return "Deficit"
	case m.CurrentRatio.Defined && m.CurrentRatio.Value < 1.2:
		return "Tight"
	}
	return "Healthy"
}

func taxNote(s models.GSTStatus) string {
	if s == models.GSTOverdue {
		return "GST returns are overdue; interest and late fees accrue until filed."
	}
	if s == models.GSTPending {
		return "GST return for the current period is pending."
	}
	return "GST filings are up to date."
}

// taxIntegrity applies a flat 25% presumptive rate to profit.
func taxIntegrity(profit float64, s models.GSTStatus) models.TaxIntegrity {
	expected := calc.Round2(math.Max(0, profit) * 0.25)
	ti := models.TaxIntegrity{ExpectedTax: expected, ActualPaid: expected, Status: models.TaxCompliant}
	switch s {
	case models.GSTPending:
		ti.ActualPaid = calc.Round2(expected * 0.5)
	case models.GSTOverdue:
		ti.ActualPaid = 0
	}
	if ti.ActualPaid < ti.ExpectedTax {
		ti.Status = models.TaxUnderpaid
	}
	return ti
}

func insights(d models.FinancialData, m calc.Snapshot, margin float64, h HistorySummary) []string {
	out := []string{
		fmt.Sprintf("Net margin is %.1f%%.", margin),
		fmt.Sprintf("Current ratio is %s.", m.CurrentRatio),
	}
	if !h.Initial() && h.PreviousRevenue > 0 {
		change := (d.Revenue - h.PreviousRevenue) / h.PreviousRevenue * 100
		out = append(out, fmt.Sprintf("Revenue changed %.1f%% since the previous assessment.", change))
	}
	return out
}

func recommendations(m calc.Snapshot, margin float64, s models.GSTStatus) []models.Recommendation {
	var out []models.Recommendation
	if s == models.GSTOverdue || s == models.GSTPending {
		out = append(out, models.Recommendation{Title: "File GST returns", Description: "Clear pending returns to protect input credit and the compliance score.", Impact: models.ImpactHigh})
	}
	if m.WorkingCapital < 0 {
		out = append(out, models.Recommendation{Title: "Close the working capital gap", Description: "Negotiate longer supplier terms or shorten receivable cycles.", Impact: models.ImpactHigh})
	}
	if margin < 10 {
		out = append(out, models.Recommendation{Title: "Review cost structure", Description: "Margins trail the sector; audit the largest expense heads.", Impact: models.ImpactMedium})
	}
	out = append(out, models.Recommendation{Title: "Digitize bookkeeping", Description: "Automated reconciliation shortens loan processing.", Impact: models.ImpactLow})
	return out
}

func benchmarks(d models.FinancialData, margin float64) []models.Benchmark {
	norm := industryNorms[d.Industry]
	expenseRatio := calc.Div(d.Expenses, d.Revenue).Or(0) * 100
	status := func(v, avg float64, higherIsBetter bool) models.BenchmarkStatus {
		switch {
		case math.Abs(v-avg) < 1:
			return models.BenchmarkPar
		case (v > avg) == higherIsBetter:
			return models.BenchmarkAbove
		}
		return models.BenchmarkBelow
	}
	return []models.Benchmark{
		{Metric: "Profit Margin", BusinessValue: calc.Round2(margin), IndustryAverage: norm.margin, Status: status(margin, norm.margin, true)},
		{Metric: "Expense Ratio", BusinessValue: calc.Round2(expenseRatio), IndustryAverage: norm.expenseRatio, Status: status(expenseRatio, norm.expenseRatio, false)},
	}
}

func forecast(d models.FinancialData) []models.MonthlyForecast {
	rev, exp := d.MonthlyRevenue(), d.Expenses/12
	out := make([]models.MonthlyForecast, 0, 3)
	for i := 1; i <= 3; i++ {
		g := math.Pow(1.02, float64(i))
		r, e := calc.Round2(rev*g), calc.Round2(exp*math.Pow(1.015, float64(i)))
		out = append(out, models.MonthlyForecast{
			Month: fmt.Sprintf("Month %d", i), ProjectedRevenue: r, ProjectedExpense: e, ProjectedProfit: calc.Round2(r - e),
		})
	}
	return out
}

func fiveYear(d models.FinancialData, m calc.Snapshot) []models.YearlyForecast {
	out := make([]models.YearlyForecast, 0, 5)
	for i := 1; i <= 5; i++ {
		g := math.Pow(1.1, float64(i))
		wc := calc.Round2(m.WorkingCapital * g)
		out = append(out, models.YearlyForecast{
			Year:           fmt.Sprintf("Year %d", i),
			Revenue:        calc.Round2(d.Revenue * g),
			Profit:         calc.Round2((d.Revenue - d.Expenses) * g),
			WorkingCapital: &wc,
		})
	}
	return out
}
