package models

type RiskRating string

const (
	RiskLow    RiskRating = "Low"
	RiskMedium RiskRating = "Medium"
	RiskHigh   RiskRating = "High"
)

type TaxStatus string

const (
	TaxCompliant TaxStatus = "Compliant"
	TaxUnderpaid TaxStatus = "Underpaid"
	TaxOverpaid  TaxStatus = "Overpaid"
)

type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

type BenchmarkStatus string

const (
	BenchmarkAbove BenchmarkStatus = "Above"
	BenchmarkBelow BenchmarkStatus = "Below"
	BenchmarkPar   BenchmarkStatus = "Par"
)

type WorkingCapitalMetrics struct {
	WorkingCapital float64 `json:"working_capital"`
	CurrentRatio   float64 `json:"current_ratio"`
	DebtToIncome   float64 `json:"debt_to_income"`
	EMIBurden      float64 `json:"emi_burden"`
}

type LedgerSuggestion struct {
	Category         string `json:"category"`
	Description      string `json:"description"`
	SuggestedAccount string `json:"suggested_account"`
}

type TaxIntegrity struct {
	ExpectedTax float64   `json:"expected_tax"`
	ActualPaid  float64   `json:"actual_paid"`
	Status      TaxStatus `json:"status"`
}

type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
}

type Benchmark struct {
	Metric          string          `json:"metric"`
	BusinessValue   float64         `json:"business_value"`
	IndustryAverage float64         `json:"industry_average"`
	Status          BenchmarkStatus `json:"status"`
}

// MonthlyForecast is one point of the short-term (three month) outlook.
type MonthlyForecast struct {
	Month            string  `json:"month"`
	ProjectedRevenue float64 `json:"projected_revenue"`
	ProjectedExpense float64 `json:"projected_expense"`
	ProjectedProfit  float64 `json:"projected_profit"`
}

type YearlyForecast struct {
	Year           string   `json:"year"`
	Revenue        float64  `json:"revenue"`
	Profit         float64  `json:"profit"`
	WorkingCapital *float64 `json:"working_capital,omitempty"`
}

type RevenueSlice struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type FinancialProduct struct {
	Provider    string `json:"provider"`
	Product     string `json:"product"`
	Rate        string `json:"rate"`
	Suitability string `json:"suitability"`
}

type TenureOption struct {
	Label         string  `json:"label"`
	Months        int     `json:"months"`
	IsEligible    bool    `json:"is_eligible"`
	Reason        string  `json:"reason,omitempty"`
	EstimatedEMI  float64 `json:"estimated_emi"`
	TotalInterest float64 `json:"total_interest"`
}

type LoanEligibility struct {
	EligibleAmount    float64        `json:"eligible_amount"`
	InterestRateRange string         `json:"interest_rate_range"`
	PropensityScore   float64        `json:"propensity_score"`
	GrowthFactor      float64        `json:"growth_factor"`
	TenureOptions     []TenureOption `json:"tenure_options"`
}

// AssessmentResult is produced once per successful pipeline run and never
// mutated afterwards. Stores hand out copies made with Clone.
type AssessmentResult struct {
	CreditScore            int                   `json:"credit_score"`
	RiskRating             RiskRating            `json:"risk_rating"`
	ComplianceScore        float64               `json:"compliance_score"`
	WorkingCapitalStatus   string                `json:"working_capital_status"`
	WorkingCapitalMetrics  WorkingCapitalMetrics `json:"working_capital_metrics"`
	BookkeepingAdvice      []string              `json:"bookkeeping_advice"`
	SuggestedLedgerEntries []LedgerSuggestion    `json:"suggested_ledger_entries"`
	TaxComplianceNotes     string                `json:"tax_compliance_notes"`
	TaxIntegrity           TaxIntegrity          `json:"tax_integrity"`
	Insights               []string              `json:"insights"`
	Recommendations        []Recommendation      `json:"recommendations"`
	Benchmarks             []Benchmark           `json:"benchmarks"`
	Forecast               []MonthlyForecast     `json:"forecast"`
	FiveYearForecast       []YearlyForecast      `json:"five_year_forecast"`
	RevenueBreakdown       []RevenueSlice        `json:"revenue_breakdown"`
	LoanEligibility        LoanEligibility       `json:"loan_eligibility"`
	FinancialProducts      []FinancialProduct    `json:"financial_products"`
	LongTermTips           []string              `json:"long_term_tips"`
}

func (r AssessmentResult) Clone() AssessmentResult {
	out := r
	out.BookkeepingAdvice = cloneSlice(r.BookkeepingAdvice)
	out.SuggestedLedgerEntries = cloneSlice(r.SuggestedLedgerEntries)
	out.Insights = cloneSlice(r.Insights)
	out.Recommendations = cloneSlice(r.Recommendations)
	out.Benchmarks = cloneSlice(r.Benchmarks)
	out.Forecast = cloneSlice(r.Forecast)
	out.RevenueBreakdown = cloneSlice(r.RevenueBreakdown)
	out.FinancialProducts = cloneSlice(r.FinancialProducts)
	out.LongTermTips = cloneSlice(r.LongTermTips)
	out.LoanEligibility.TenureOptions = cloneSlice(r.LoanEligibility.TenureOptions)
	if r.FiveYearForecast != nil {
		out.FiveYearForecast = make([]YearlyForecast, len(r.FiveYearForecast))
		for i, y := range r.FiveYearForecast {
			if y.WorkingCapital != nil {
				wc := *y.WorkingCapital
				y.WorkingCapital = &wc
			}
			out.FiveYearForecast[i] = y
		}
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}
