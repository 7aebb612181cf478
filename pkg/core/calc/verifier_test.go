package calc

import (
	"math"
	"strings"
	"testing"

	"finpulse/pkg/models"
)

func TestCrossCheckTolerance(t *testing.T) {
	d := models.FinancialData{
		Revenue: 1200000, AccountsReceivable: 100000, AccountsPayable: 50000,
		Loans: 600000, Industry: models.IndustryServices,
	}
	// local: wc 50000, cr 2, dti 0.5
	tests := []struct {
		name       string
		reported   models.WorkingCapitalMetrics
		tol        float64
		consistent bool
		metrics    []string
	}{
		{"exact", models.WorkingCapitalMetrics{WorkingCapital: 50000, CurrentRatio: 2, DebtToIncome: 0.5}, 1, true, nil},
		{"within 1%", models.WorkingCapitalMetrics{WorkingCapital: 50400, CurrentRatio: 2.01, DebtToIncome: 0.5}, 1, true, nil},
		{"outside 1%", models.WorkingCapitalMetrics{WorkingCapital: 51000, CurrentRatio: 2, DebtToIncome: 0.5}, 1, false, []string{"working_capital"}},
		{"zero tolerance keeps paisa floor", models.WorkingCapitalMetrics{WorkingCapital: 50000.005, CurrentRatio: 2, DebtToIncome: 0.5}, 0, true, nil},
		{"two off", models.WorkingCapitalMetrics{WorkingCapital: 50000, CurrentRatio: 3, DebtToIncome: 0.9}, 1, false, []string{"current_ratio", "debt_to_income"}},
	}

	for _, tc := range tests {
		res := CrossCheck(d, tc.reported, tc.tol)
		if res.Consistent != tc.consistent {
			t.Errorf("%s: consistent = %v, want %v (%+v)", tc.name, res.Consistent, tc.consistent, res.Discrepancies)
			continue
		}
		if len(res.Discrepancies) != len(tc.metrics) {
			t.Errorf("%s: got %d discrepancies, want %d", tc.name, len(res.Discrepancies), len(tc.metrics))
			continue
		}
		for i, m := range tc.metrics {
			if res.Discrepancies[i].Metric != m {
				t.Errorf("%s: discrepancy %d is %s, want %s", tc.name, i, res.Discrepancies[i].Metric, m)
			}
		}
	}
}

func TestCrossCheckUndefinedRatios(t *testing.T) {
	// no payables and no revenue: current ratio and DTI have no local value
	d := models.FinancialData{Inventory: 1000, CashInHand: 500, Industry: models.IndustryRetail}
	res := CrossCheck(d, models.WorkingCapitalMetrics{WorkingCapital: 1000, CurrentRatio: 4, DebtToIncome: 0.2}, 1)
	if !res.Consistent {
		t.Errorf("Undefined ratios should warn, not fail: %+v", res.Discrepancies)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("Expected 2 warnings, got %v", res.Warnings)
	}
	if !strings.HasPrefix(res.Warnings[0], "current_ratio") || !strings.HasPrefix(res.Warnings[1], "debt_to_income") {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}
}

func TestCrossCheckEMIBurden(t *testing.T) {
	d := models.FinancialData{Revenue: 1200000, AccountsReceivable: 1000, AccountsPayable: 500, Industry: models.IndustryRetail}
	reported := models.WorkingCapitalMetrics{WorkingCapital: 500, CurrentRatio: 2, EMIBurden: 35}

	// no declared EMIs: remote estimate is not checked
	res := CrossCheck(d, reported, 1)
	for _, w := range res.Warnings {
		if strings.HasPrefix(w, "emi_burden") {
			t.Errorf("EMI burden should be skipped without EMIs, got warning %q", w)
		}
	}
	for _, x := range res.Discrepancies {
		if x.Metric == "emi_burden" {
			t.Errorf("EMI burden should be skipped without EMIs")
		}
	}

	// 10000 against 100000 monthly revenue is 10%
	d.ExistingEMIs = []float64{6000, 4000}
	res = CrossCheck(d, reported, 1)
	found := false
	for _, x := range res.Discrepancies {
		if x.Metric == "emi_burden" {
			found = true
			if math.Abs(x.Computed-10) > 0.001 || x.Gap != 25 {
				t.Errorf("unexpected emi discrepancy %+v", x)
			}
		}
	}
	if !found {
		t.Errorf("Expected emi_burden discrepancy, got %+v", res)
	}
}

func TestVerifyTenuresFallbackRate(t *testing.T) {
	d := models.FinancialData{Revenue: 1200000, Industry: models.IndustryServices}
	result := models.AssessmentResult{
		CreditScore: 0,
		LoanEligibility: models.LoanEligibility{
			EligibleAmount:    200000,
			InterestRateRange: "ask your bank",
			TenureOptions: []models.TenureOption{
				{Months: 24, EstimatedEMI: 9000},
				{Months: 60, EstimatedEMI: 4000},
			},
		},
	}
	rates := DefaultRatePolicy()

	cmp, rate, source := VerifyTenures(d, result, rates, DefaultTenurePolicy())
	if source != RateFromFallback || rate != rates.FallbackPct {
		t.Errorf("Expected fallback %v, got %v from %s", rates.FallbackPct, rate, source)
	}
	if len(cmp) != 3 {
		t.Fatalf("Expected one row per policy tenure, got %d", len(cmp))
	}
	for _, c := range cmp {
		switch c.Months {
		case 24:
			if c.Reported == nil || c.EMIGap != Round2(9000-c.Computed.EstimatedEMI) {
				t.Errorf("24 months: unexpected comparison %+v", c)
			}
		default:
			if c.Reported != nil || c.EMIGap != 0 {
				t.Errorf("%d months: expected no reported option, got %+v", c.Months, c)
			}
		}
	}
}

func TestTargetsForNonPositive(t *testing.T) {
	for _, amt := range []float64{0, -5000} {
		if tg := TargetsFor(amt); tg != (SalesTargets{}) {
			t.Errorf("TargetsFor(%v) = %+v, want zero", amt, tg)
		}
	}
}

func TestDeriveUsesTolerance(t *testing.T) {
	d := models.FinancialData{
		Revenue: 1200000, AccountsReceivable: 100000, AccountsPayable: 50000,
		Loans: 600000, Industry: models.IndustryServices,
	}
	// working capital 52000 against 50000 locally: a 4% gap
	result := models.AssessmentResult{
		CreditScore: 700,
		WorkingCapitalMetrics: models.WorkingCapitalMetrics{
			WorkingCapital: 52000, CurrentRatio: 2, DebtToIncome: 0.5,
		},
	}

	tests := []struct {
		tol        float64
		consistent bool
	}{
		{1, false},
		{5, true},
	}
	for _, tc := range tests {
		got := Derive(d, result, DefaultRatePolicy(), DefaultTenurePolicy(), tc.tol)
		if got.Check.Consistent != tc.consistent {
			t.Errorf("Derive(tol %v): consistent = %v, want %v", tc.tol, got.Check.Consistent, tc.consistent)
		}
	}
}
