package calc

import "finpulse/pkg/models"

// Snapshot holds the locally derived liquidity and leverage metrics.
type Snapshot struct {
	WorkingCapital float64 `json:"working_capital"`
	CurrentRatio   Ratio   `json:"current_ratio"`
	DebtToIncome   Ratio   `json:"debt_to_income"`
	EMIBurden      Ratio   `json:"emi_burden_pct"`
}

// WorkingCapital = Receivables + Inventory - Payables
func WorkingCapital(d models.FinancialData) float64 {
	return d.AccountsReceivable + d.Inventory - d.AccountsPayable
}

// CurrentRatio = (Receivables + Inventory) / Payables
func CurrentRatio(d models.FinancialData) Ratio {
	return Div(d.AccountsReceivable+d.Inventory, d.AccountsPayable)
}

// DebtToIncome = Outstanding Loans / Revenue
func DebtToIncome(d models.FinancialData) Ratio {
	return Div(d.Loans, d.Revenue)
}

// EMIBurden = (Sum of current EMIs / Monthly Revenue) * 100
func EMIBurden(emis []float64, monthlyRevenue float64) Ratio {
	r := Div(Sum(emis...), monthlyRevenue)
	if !r.Defined {
		return r
	}
	return Defined(r.Value * 100)
}

func Metrics(d models.FinancialData) Snapshot {
	return Snapshot{
		WorkingCapital: WorkingCapital(d),
		CurrentRatio:   CurrentRatio(d),
		DebtToIncome:   DebtToIncome(d),
		EMIBurden:      EMIBurden(d.ExistingEMIs, d.MonthlyRevenue()),
	}
}
