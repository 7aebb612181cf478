package calc

import (
	"fmt"
	"math"

	"finpulse/pkg/models"
)

// Discrepancy is a metric where the remote figure disagrees with local arithmetic.
type Discrepancy struct {
	Metric   string  `json:"metric"`
	Reported float64 `json:"reported"`
	Computed float64 `json:"computed"`
	Gap      float64 `json:"gap"`
}

// VerificationResult holds the status of integrity checks
type VerificationResult struct {
	Consistent    bool          `json:"consistent"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// CrossCheck compares the remote working-capital block against local
// computation. tolerancePct is relative; gaps under one paisa always pass.
// The result is informational, the assessment itself is never rewritten.
func CrossCheck(d models.FinancialData, reported models.WorkingCapitalMetrics, tolerancePct float64) VerificationResult {
	local := Metrics(d)
	res := VerificationResult{Consistent: true}

	check := func(name string, got float64, want Ratio) {
		if !want.Defined {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s is undefined locally, reported %.2f", name, got))
			return
		}
		gap := got - want.Value
		limit := math.Max(0.01, math.Abs(want.Value)*tolerancePct/100)
		if math.Abs(gap) > limit {
			res.Consistent = false
			res.Discrepancies = append(res.Discrepancies, Discrepancy{
				Metric: name, Reported: got, Computed: want.Value, Gap: Round2(gap),
			})
		}
	}

	check("working_capital", reported.WorkingCapital, Defined(local.WorkingCapital))
	check("current_ratio", reported.CurrentRatio, local.CurrentRatio)
	check("debt_to_income", reported.DebtToIncome, local.DebtToIncome)
	// without declared EMIs the remote burden is an estimate we cannot check
	if len(d.ExistingEMIs) > 0 {
		check("emi_burden", reported.EMIBurden, local.EMIBurden)
	}
	return res
}

// TenureComparison sets a reported tenure option beside the locally computed one.
type TenureComparison struct {
	Months   int                  `json:"months"`
	Reported *models.TenureOption `json:"reported,omitempty"`
	Computed models.TenureOption  `json:"computed"`
	EMIGap   float64              `json:"emi_gap"`
}

// VerifyTenures recomputes the tenure table under the rate policy.
func VerifyTenures(d models.FinancialData, result models.AssessmentResult, rates RatePolicy, tenures TenurePolicy) ([]TenureComparison, float64, RateSource) {
	rate, source := rates.AnnualRate(result.LoanEligibility.InterestRateRange, result.CreditScore)
	computed := BuildTenureTable(result.LoanEligibility.EligibleAmount, rate, CapacityOf(d), tenures)

	reported := make(map[int]models.TenureOption, len(result.LoanEligibility.TenureOptions))
	for _, opt := range result.LoanEligibility.TenureOptions {
		reported[opt.Months] = opt
	}

	out := make([]TenureComparison, 0, len(computed))
	for _, c := range computed {
		cmp := TenureComparison{Months: c.Months, Computed: c}
		if r, ok := reported[c.Months]; ok {
			r := r
			cmp.Reported = &r
			cmp.EMIGap = Round2(r.EstimatedEMI - c.EstimatedEMI)
		}
		out = append(out, cmp)
	}
	return out, rate, source
}

// Derived is everything computed locally at render time for one assessment.
type Derived struct {
	Metrics           Snapshot           `json:"metrics"`
	Check             VerificationResult `json:"check"`
	Targets           SalesTargets       `json:"targets"`
	Tenures           []TenureComparison `json:"tenures"`
	AnnualRatePct     float64            `json:"annual_rate_pct"`
	RateSource        RateSource         `json:"rate_source"`
	RatePolicyVersion string             `json:"rate_policy_version"`
	TenureSavingsPct  Ratio              `json:"tenure_savings_pct"`
}

// Derive computes everything shown beside a stored assessment. tolerancePct
// is passed to CrossCheck.
func Derive(d models.FinancialData, result models.AssessmentResult, rates RatePolicy, tenures TenurePolicy, tolerancePct float64) Derived {
	cmp, rate, source := VerifyTenures(d, result, rates, tenures)
	computed := make([]models.TenureOption, 0, len(cmp))
	for _, c := range cmp {
		computed = append(computed, c.Computed)
	}
	return Derived{
		Metrics:           Metrics(d),
		Check:             CrossCheck(d, result.WorkingCapitalMetrics, tolerancePct),
		Targets:           TargetsFor(result.LoanEligibility.EligibleAmount),
		Tenures:           cmp,
		AnnualRatePct:     rate,
		RateSource:        source,
		RatePolicyVersion: rates.Version,
		TenureSavingsPct:  TenureSavingsPct(computed),
	}
}
