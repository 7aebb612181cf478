package assessor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"finpulse/pkg/core/llm"
	"finpulse/pkg/models"
)

// The wire types mirror the JSON the remote service is asked to produce.
// Every field is a pointer so an absent key can be told apart from a zero.

type wireMetrics struct {
	WorkingCapital *float64 `json:"workingCapital" validate:"required"`
	CurrentRatio   *float64 `json:"currentRatio" validate:"required"`
	DebtToIncome   *float64 `json:"debtToIncome" validate:"required"`
	EMIBurden      *float64 `json:"emiBurden" validate:"required"`
}

type wireLedger struct {
	Category         *string `json:"category" validate:"required"`
	Description      *string `json:"description" validate:"required"`
	SuggestedAccount *string `json:"suggestedAccount" validate:"required"`
}

type wireTax struct {
	ExpectedTax *float64 `json:"expectedTax" validate:"required"`
	ActualPaid  *float64 `json:"actualPaid" validate:"required"`
	Status      *string  `json:"status" validate:"required,oneof=Compliant Underpaid Overpaid"`
}

type wireRecommendation struct {
	Title       *string `json:"title" validate:"required"`
	Description *string `json:"description" validate:"required"`
	Impact      *string `json:"impact" validate:"required,oneof=High Medium Low"`
}

type wireBenchmark struct {
	Metric          *string  `json:"metric" validate:"required"`
	BusinessValue   *float64 `json:"businessValue" validate:"required"`
	IndustryAverage *float64 `json:"industryAverage" validate:"required"`
	Status          *string  `json:"status" validate:"required,oneof=Above Below Par"`
}

type wireMonth struct {
	Month            *string  `json:"month" validate:"required"`
	ProjectedRevenue *float64 `json:"projectedRevenue" validate:"required"`
	ProjectedExpense *float64 `json:"projectedExpense" validate:"required"`
	ProjectedProfit  *float64 `json:"projectedProfit" validate:"required"`
}

type wireYear struct {
	Year           *string  `json:"year" validate:"required"`
	Revenue        *float64 `json:"revenue" validate:"required"`
	Profit         *float64 `json:"profit" validate:"required"`
	WorkingCapital *float64 `json:"workingCapital,omitempty"`
}

type wireSlice struct {
	Category   *string  `json:"category" validate:"required"`
	Amount     *float64 `json:"amount" validate:"required"`
	Percentage *float64 `json:"percentage" validate:"required"`
}

type wireTenure struct {
	Label         *string  `json:"label" validate:"required"`
	Months        *float64 `json:"months" validate:"required,gt=0"`
	IsEligible    *bool    `json:"isEligible" validate:"required"`
	Reason        *string  `json:"reason,omitempty"`
	EstimatedEMI  *float64 `json:"estimatedEmi" validate:"required,gte=0"`
	TotalInterest *float64 `json:"totalInterest" validate:"required"`
}

type wireLoan struct {
	EligibleAmount    *float64     `json:"eligibleAmount" validate:"required,gte=0"`
	InterestRateRange *string      `json:"interestRateRange" validate:"required"`
	PropensityScore   *float64     `json:"propensityScore" validate:"required,gte=0,lte=100"`
	GrowthFactor      *float64     `json:"growthFactor" validate:"required"`
	TenureOptions     []wireTenure `json:"tenureOptions" validate:"required,dive"`
}

type wireProduct struct {
	Provider    *string `json:"provider" validate:"required"`
	Product     *string `json:"product" validate:"required"`
	Rate        *string `json:"rate" validate:"required"`
	Suitability *string `json:"suitability" validate:"required"`
}

type wireResult struct {
	CreditScore            *float64             `json:"creditScore" validate:"required,gte=0,lte=900"`
	RiskRating             *string              `json:"riskRating" validate:"required,oneof=Low Medium High"`
	ComplianceScore        *float64             `json:"complianceScore" validate:"required,gte=0,lte=100"`
	WorkingCapitalStatus   *string              `json:"workingCapitalStatus" validate:"required"`
	WorkingCapitalMetrics  *wireMetrics         `json:"workingCapitalMetrics" validate:"required"`
	BookkeepingAdvice      []string             `json:"bookkeepingAdvice" validate:"required"`
	SuggestedLedgerEntries []wireLedger         `json:"suggestedLedgerEntries" validate:"required,dive"`
	TaxComplianceNotes     *string              `json:"taxComplianceNotes" validate:"required"`
	TaxIntegrity           *wireTax             `json:"taxIntegrity" validate:"required"`
	Insights               []string             `json:"insights" validate:"required"`
	Recommendations        []wireRecommendation `json:"recommendations" validate:"required,dive"`
	Benchmarks             []wireBenchmark      `json:"benchmarks" validate:"required,dive"`
	Forecast               []wireMonth          `json:"forecast" validate:"required,dive"`
	FiveYearForecast       []wireYear           `json:"fiveYearForecast" validate:"required,dive"`
	RevenueBreakdown       []wireSlice          `json:"revenueBreakdown" validate:"required,dive"`
	LoanEligibility        *wireLoan            `json:"loanEligibility" validate:"required"`
	FinancialProducts      []wireProduct        `json:"financialProducts" validate:"required,dive"`
	LongTermTips           []string             `json:"longTermTips" validate:"required"`
}

// canonicalize rewrites enum values that differ only in case ("low" -> "Low").
func (w *wireResult) canonicalize() {
	fix := func(s *string, allowed ...string) {
		if s == nil {
			return
		}
		v := strings.TrimSpace(*s)
		for _, a := range allowed {
			if strings.EqualFold(v, a) {
				*s = a
				return
			}
		}
	}
	fix(w.RiskRating, "Low", "Medium", "High")
	if w.TaxIntegrity != nil {
		fix(w.TaxIntegrity.Status, "Compliant", "Underpaid", "Overpaid")
	}
	for i := range w.Recommendations {
		fix(w.Recommendations[i].Impact, "High", "Medium", "Low")
	}
	for i := range w.Benchmarks {
		fix(w.Benchmarks[i].Status, "Above", "Below", "Par")
	}
}

// check validates the decoded payload; any violation is a *ContractError.
func (w *wireResult) check() error {
	w.canonicalize()
	err := models.Validator().Struct(w)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ContractError{Err: err}
	}
	ce := &ContractError{}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Tag() == "required" {
			ce.Missing = append(ce.Missing, field)
		} else {
			ce.Invalid = append(ce.Invalid, fmt.Sprintf("%s (%s)", field, fe.Tag()))
		}
	}
	return ce
}

// model converts a checked payload. Call check first.
func (w *wireResult) model() models.AssessmentResult {
	out := models.AssessmentResult{
		CreditScore:          int(math.Round(*w.CreditScore)),
		RiskRating:           models.RiskRating(*w.RiskRating),
		ComplianceScore:      *w.ComplianceScore,
		WorkingCapitalStatus: *w.WorkingCapitalStatus,
		WorkingCapitalMetrics: models.WorkingCapitalMetrics{
			WorkingCapital: *w.WorkingCapitalMetrics.WorkingCapital,
			CurrentRatio:   *w.WorkingCapitalMetrics.CurrentRatio,
			DebtToIncome:   *w.WorkingCapitalMetrics.DebtToIncome,
			EMIBurden:      *w.WorkingCapitalMetrics.EMIBurden,
		},
		BookkeepingAdvice:  append([]string{}, w.BookkeepingAdvice...),
		TaxComplianceNotes: *w.TaxComplianceNotes,
		TaxIntegrity: models.TaxIntegrity{
			ExpectedTax: *w.TaxIntegrity.ExpectedTax,
			ActualPaid:  *w.TaxIntegrity.ActualPaid,
			Status:      models.TaxStatus(*w.TaxIntegrity.Status),
		},
		Insights:     append([]string{}, w.Insights...),
		LongTermTips: append([]string{}, w.LongTermTips...),
		LoanEligibility: models.LoanEligibility{
			EligibleAmount:    *w.LoanEligibility.EligibleAmount,
			InterestRateRange: *w.LoanEligibility.InterestRateRange,
			PropensityScore:   *w.LoanEligibility.PropensityScore,
			GrowthFactor:      *w.LoanEligibility.GrowthFactor,
			TenureOptions:     make([]models.TenureOption, 0, len(w.LoanEligibility.TenureOptions)),
		},
	}
	for _, e := range w.SuggestedLedgerEntries {
		out.SuggestedLedgerEntries = append(out.SuggestedLedgerEntries, models.LedgerSuggestion{
			Category: *e.Category, Description: *e.Description, SuggestedAccount: *e.SuggestedAccount,
		})
	}
	for _, r := range w.Recommendations {
		out.Recommendations = append(out.Recommendations, models.Recommendation{
			Title: *r.Title, Description: *r.Description, Impact: models.Impact(*r.Impact),
		})
	}
	for _, b := range w.Benchmarks {
		out.Benchmarks = append(out.Benchmarks, models.Benchmark{
			Metric: *b.Metric, BusinessValue: *b.BusinessValue, IndustryAverage: *b.IndustryAverage,
			Status: models.BenchmarkStatus(*b.Status),
		})
	}
	for _, m := range w.Forecast {
		out.Forecast = append(out.Forecast, models.MonthlyForecast{
			Month: *m.Month, ProjectedRevenue: *m.ProjectedRevenue,
			ProjectedExpense: *m.ProjectedExpense, ProjectedProfit: *m.ProjectedProfit,
		})
	}
	for _, y := range w.FiveYearForecast {
		out.FiveYearForecast = append(out.FiveYearForecast, models.YearlyForecast{
			Year: *y.Year, Revenue: *y.Revenue, Profit: *y.Profit, WorkingCapital: y.WorkingCapital,
		})
	}
	for _, s := range w.RevenueBreakdown {
		out.RevenueBreakdown = append(out.RevenueBreakdown, models.RevenueSlice{
			Category: *s.Category, Amount: *s.Amount, Percentage: *s.Percentage,
		})
	}
	for _, t := range w.LoanEligibility.TenureOptions {
		opt := models.TenureOption{
			Label:         *t.Label,
			Months:        int(math.Round(*t.Months)),
			IsEligible:    *t.IsEligible,
			EstimatedEMI:  *t.EstimatedEMI,
			TotalInterest: *t.TotalInterest,
		}
		if t.Reason != nil {
			opt.Reason = *t.Reason
		}
		out.LoanEligibility.TenureOptions = append(out.LoanEligibility.TenureOptions, opt)
	}
	for _, p := range w.FinancialProducts {
		out.FinancialProducts = append(out.FinancialProducts, models.FinancialProduct{
			Provider: *p.Provider, Product: *p.Product, Rate: *p.Rate, Suitability: *p.Suitability,
		})
	}
	// empty but present lists stay non-nil so they encode as []
	if out.SuggestedLedgerEntries == nil {
		out.SuggestedLedgerEntries = []models.LedgerSuggestion{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []models.Recommendation{}
	}
	if out.Benchmarks == nil {
		out.Benchmarks = []models.Benchmark{}
	}
	if out.Forecast == nil {
		out.Forecast = []models.MonthlyForecast{}
	}
	if out.FiveYearForecast == nil {
		out.FiveYearForecast = []models.YearlyForecast{}
	}
	if out.RevenueBreakdown == nil {
		out.RevenueBreakdown = []models.RevenueSlice{}
	}
	if out.FinancialProducts == nil {
		out.FinancialProducts = []models.FinancialProduct{}
	}
	return out
}

func obj(required []string, props map[string]*llm.Schema) *llm.Schema {
	return &llm.Schema{Type: llm.TypeObject, Properties: props, Required: required}
}

func arr(items *llm.Schema) *llm.Schema { return &llm.Schema{Type: llm.TypeArray, Items: items} }

func enum(values ...string) *llm.Schema { return &llm.Schema{Type: llm.TypeString, Enum: values} }

var (
	str  = &llm.Schema{Type: llm.TypeString}
	num  = &llm.Schema{Type: llm.TypeNumber}
	boo  = &llm.Schema{Type: llm.TypeBoolean}
	strs = arr(str)
)

// ResponseSchema describes wireResult for providers with structured output.
func ResponseSchema() *llm.Schema {
	return obj([]string{
		"creditScore", "riskRating", "complianceScore", "workingCapitalStatus", "workingCapitalMetrics",
		"bookkeepingAdvice", "suggestedLedgerEntries", "taxComplianceNotes", "taxIntegrity",
		"insights", "recommendations", "benchmarks", "forecast", "fiveYearForecast",
		"revenueBreakdown", "loanEligibility", "longTermTips", "financialProducts",
	}, map[string]*llm.Schema{
		"creditScore":          {Type: llm.TypeInteger},
		"riskRating":           enum("Low", "Medium", "High"),
		"complianceScore":      num,
		"workingCapitalStatus": str,
		"workingCapitalMetrics": obj([]string{"workingCapital", "currentRatio", "debtToIncome", "emiBurden"},
			map[string]*llm.Schema{"workingCapital": num, "currentRatio": num, "debtToIncome": num, "emiBurden": num}),
		"bookkeepingAdvice": strs,
		"suggestedLedgerEntries": arr(obj([]string{"category", "description", "suggestedAccount"},
			map[string]*llm.Schema{"category": str, "description": str, "suggestedAccount": str})),
		"taxComplianceNotes": str,
		"taxIntegrity": obj([]string{"expectedTax", "actualPaid", "status"},
			map[string]*llm.Schema{"expectedTax": num, "actualPaid": num, "status": enum("Compliant", "Underpaid", "Overpaid")}),
		"insights": strs,
		"recommendations": arr(obj([]string{"title", "description", "impact"},
			map[string]*llm.Schema{"title": str, "description": str, "impact": enum("High", "Medium", "Low")})),
		"benchmarks": arr(obj([]string{"metric", "businessValue", "industryAverage", "status"},
			map[string]*llm.Schema{"metric": str, "businessValue": num, "industryAverage": num, "status": enum("Above", "Below", "Par")})),
		"forecast": arr(obj([]string{"month", "projectedRevenue", "projectedExpense", "projectedProfit"},
			map[string]*llm.Schema{"month": str, "projectedRevenue": num, "projectedExpense": num, "projectedProfit": num})),
		"fiveYearForecast": arr(obj([]string{"year", "revenue", "profit"},
			map[string]*llm.Schema{"year": str, "revenue": num, "profit": num, "workingCapital": num})),
		"revenueBreakdown": arr(obj([]string{"category", "amount", "percentage"},
			map[string]*llm.Schema{"category": str, "amount": num, "percentage": num})),
		"loanEligibility": obj([]string{"eligibleAmount", "interestRateRange", "propensityScore", "growthFactor", "tenureOptions"},
			map[string]*llm.Schema{
				"eligibleAmount":    num,
				"interestRateRange": str,
				"propensityScore":   num,
				"growthFactor":      num,
				"tenureOptions": arr(obj([]string{"label", "months", "isEligible", "estimatedEmi", "totalInterest"},
					map[string]*llm.Schema{"label": str, "months": num, "isEligible": boo, "reason": str, "estimatedEmi": num, "totalInterest": num})),
			}),
		"financialProducts": arr(obj([]string{"provider", "product", "rate", "suitability"},
			map[string]*llm.Schema{"provider": str, "product": str, "rate": str, "suitability": str})),
		"longTermTips": strs,
	})
}
