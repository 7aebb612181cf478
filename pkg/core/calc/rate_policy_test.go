package calc

import (
	"math"
	"testing"

	"finpulse/pkg/models"
)

func TestParseRateRange(t *testing.T) {
	tests := []struct {
		in     string
		lo, hi float64
		ok     bool
	}{
		{"11.5% - 14%", 11.5, 14, true},
		{"12-15% p.a.", 12, 15, true},
		{"13%", 13, 13, true},
		{"18% to 12%", 12, 18, true},
		{"market linked", 0, 0, false},
		{"", 0, 0, false},
		{"0% - 5%", 0, 0, false},
	}
	for _, tc := range tests {
		lo, hi, ok := ParseRateRange(tc.in)
		if ok != tc.ok || lo != tc.lo || hi != tc.hi {
			t.Errorf("ParseRateRange(%q) = %v, %v, %v; want %v, %v, %v", tc.in, lo, hi, ok, tc.lo, tc.hi, tc.ok)
		}
	}
}

func TestAnnualRate(t *testing.T) {
	p := DefaultRatePolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}

	rate, src := p.AnnualRate("11% - 13%", 700)
	if rate != 13 || src != RateFromAssessment {
		t.Errorf("Expected 13 from assessment range, got %v %s", rate, src)
	}

	rate, src = p.AnnualRate("n/a", 700)
	if rate != 14 || src != RateFromBand {
		t.Errorf("Expected 14 from score band, got %v %s", rate, src)
	}

	rate, src = p.AnnualRate("", 100)
	if rate != p.FallbackPct || src != RateFromFallback {
		t.Errorf("Expected fallback, got %v %s", rate, src)
	}

	p.Basis = RateMidpoint
	if rate, _ := p.AnnualRate("11% - 13%", 0); rate != 12 {
		t.Errorf("Expected midpoint 12, got %v", rate)
	}
	p.Basis = RateLower
	if rate, _ := p.AnnualRate("11% - 13%", 0); rate != 11 {
		t.Errorf("Expected lower 11, got %v", rate)
	}
}

func TestRatePolicyValidate(t *testing.T) {
	p := DefaultRatePolicy()
	p.Bands = append(p.Bands, RateBand{MinScore: 700, MaxScore: 720, LowPct: 10, HighPct: 12})
	if err := p.Validate(); err == nil {
		t.Errorf("Expected overlap error")
	}

	p = DefaultRatePolicy()
	p.Version = ""
	if err := p.Validate(); err == nil {
		t.Errorf("Expected missing version error")
	}
}

func TestDeriveAndCrossCheck(t *testing.T) {
	d := models.FinancialData{
		Revenue: 1200000, AccountsReceivable: 50000, Inventory: 100000, AccountsPayable: 20000,
		Loans: 480000, Industry: models.IndustryRetail,
	}
	result := models.AssessmentResult{
		CreditScore: 720,
		WorkingCapitalMetrics: models.WorkingCapitalMetrics{
			WorkingCapital: 130000, CurrentRatio: 7.5, DebtToIncome: 0.4,
		},
		LoanEligibility: models.LoanEligibility{
			EligibleAmount:    100000,
			InterestRateRange: "10% - 12%",
			TenureOptions:     []models.TenureOption{{Months: 12, EstimatedEMI: 8900}},
		},
	}

	got := Derive(d, result, DefaultRatePolicy(), DefaultTenurePolicy(), 1)
	if got.AnnualRatePct != 12 || got.RateSource != RateFromAssessment {
		t.Errorf("Expected 12%% from assessment, got %v %s", got.AnnualRatePct, got.RateSource)
	}
	if !got.Check.Consistent {
		t.Errorf("Expected consistent cross-check, got %+v", got.Check.Discrepancies)
	}
	if math.Abs(got.Targets.Daily-273.97) > 0.001 {
		t.Errorf("Expected daily target 273.97, got %f", got.Targets.Daily)
	}
	if len(got.Tenures) != 3 || got.Tenures[0].Reported == nil || got.Tenures[1].Reported != nil {
		t.Fatalf("unexpected tenure comparison: %+v", got.Tenures)
	}
	if math.Abs(got.Tenures[0].EMIGap-(8900-8884.88)) > 0.001 {
		t.Errorf("Expected EMI gap 15.12, got %f", got.Tenures[0].EMIGap)
	}

	result.WorkingCapitalMetrics.WorkingCapital = 90000
	check := CrossCheck(d, result.WorkingCapitalMetrics, 1)
	if check.Consistent || len(check.Discrepancies) != 1 || check.Discrepancies[0].Metric != "working_capital" {
		t.Errorf("Expected a working capital discrepancy, got %+v", check)
	}
}

func TestTargets(t *testing.T) {
	tg := TargetsFor(365000)
	if tg.Daily != 1000 || tg.Monthly != 30416.67 {
		t.Errorf("unexpected targets %+v", tg)
	}
	if p := Progress(500, 1000); p.Percent.Value != 50 {
		t.Errorf("Expected 50%%, got %+v", p.Percent)
	}
	if p := Progress(500, 0); p.Percent.Defined {
		t.Errorf("Expected undefined progress against zero target")
	}
}
