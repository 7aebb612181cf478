package calc

import (
	"fmt"
	"math"
	"sort"

	"finpulse/pkg/models"
)

// =============================================================================
// REDUCING-BALANCE AMORTIZATION
// =============================================================================

// TenurePolicy lists the candidate tenures and the repayment ceiling applied to them.
type TenurePolicy struct {
	Months        []int   `yaml:"months" json:"months"`
	EMICeilingPct float64 `yaml:"emi_ceiling_pct" json:"emi_ceiling_pct"`
}

func DefaultTenurePolicy() TenurePolicy {
	return TenurePolicy{Months: []int{12, 24, 36}, EMICeilingPct: 50}
}

// Capacity is what a business can put towards repayments each month.
type Capacity struct {
	MonthlyRevenue float64
	ExistingEMI    float64
}

func CapacityOf(d models.FinancialData) Capacity {
	return Capacity{MonthlyRevenue: d.MonthlyRevenue(), ExistingEMI: Sum(d.ExistingEMIs...)}
}

// EMI returns the equated monthly instalment, rounded to paise:
//
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1), r = annual% / 12 / 100
//
// A zero rate degenerates to P/n. Non-positive principal or tenure yields 0.
func EMI(principal, annualRatePct float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	r := annualRatePct / 12 / 100
	if r <= 0 {
		return Round2(principal / float64(months))
	}
	growth := math.Pow(1+r, float64(months))
	return Round2(principal * r * growth / (growth - 1))
}

// TotalInterest = EMI * n - P, using the rounded EMI.
func TotalInterest(principal, emi float64, months int) float64 {
	if months <= 0 {
		return 0
	}
	return Round2(emi*float64(months) - principal)
}

// BuildTenureTable computes one option per candidate tenure. A tenure is
// ineligible when existing plus new EMI would exceed the ceiling share of
// monthly revenue.
func BuildTenureTable(principal, annualRatePct float64, capacity Capacity, policy TenurePolicy) []models.TenureOption {
	months := append([]int(nil), policy.Months...)
	sort.Ints(months)

	out := make([]models.TenureOption, 0, len(months))
	for _, n := range months {
		emi := EMI(principal, annualRatePct, n)
		opt := models.TenureOption{
			Label:         fmt.Sprintf("%d Months", n),
			Months:        n,
			IsEligible:    true,
			EstimatedEMI:  emi,
			TotalInterest: TotalInterest(principal, emi, n),
		}
		if reason := ineligibility(emi, capacity, policy.EMICeilingPct); reason != "" {
			opt.IsEligible = false
			opt.Reason = reason
		}
		out = append(out, opt)
	}
	return out
}

func ineligibility(emi float64, capacity Capacity, ceilingPct float64) string {
	if capacity.MonthlyRevenue <= 0 {
		return "monthly revenue unavailable to assess repayment capacity"
	}
	burden := (capacity.ExistingEMI + emi) / capacity.MonthlyRevenue * 100
	if burden <= ceilingPct {
		return ""
	}
	if capacity.ExistingEMI > 0 {
		return fmt.Sprintf("EMI of %.2f with existing EMIs of %.2f takes %.1f%% of monthly revenue, above the %.0f%% ceiling",
			emi, capacity.ExistingEMI, burden, ceilingPct)
	}
	return fmt.Sprintf("EMI of %.2f takes %.1f%% of monthly revenue, above the %.0f%% ceiling", emi, burden, ceilingPct)
}

// TenureSavingsPct is how much lower the longest tenure's EMI is than the
// shortest one's, in percent.
func TenureSavingsPct(options []models.TenureOption) Ratio {
	if len(options) < 2 {
		return Undefined
	}
	sorted := append([]models.TenureOption(nil), options...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Months < sorted[j].Months })

	first, last := sorted[0].EstimatedEMI, sorted[len(sorted)-1].EstimatedEMI
	r := Div(first-last, first)
	if !r.Defined {
		return r
	}
	return Defined(r.Value * 100)
}
