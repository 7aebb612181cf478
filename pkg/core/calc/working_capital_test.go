package calc

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"finpulse/pkg/models"
)

func TestMetricsScenario(t *testing.T) {
	d := models.FinancialData{
		Revenue:            500000,
		Expenses:           300000,
		AccountsReceivable: 50000,
		Inventory:          100000,
		AccountsPayable:    20000,
		Loans:              0,
		Industry:           models.IndustryRetail,
	}

	m := Metrics(d)
	if m.WorkingCapital != 130000 {
		t.Errorf("Expected working capital 130000, got %f", m.WorkingCapital)
	}
	if !m.DebtToIncome.Defined || m.DebtToIncome.Value != 0 {
		t.Errorf("Expected debt-to-income 0, got %+v", m.DebtToIncome)
	}
	if math.Abs(m.CurrentRatio.Value-7.5) > 0.0001 {
		t.Errorf("Expected current ratio 7.5, got %f", m.CurrentRatio.Value)
	}
	if !m.EMIBurden.Defined || m.EMIBurden.Value != 0 {
		t.Errorf("Expected EMI burden 0 without EMIs, got %+v", m.EMIBurden)
	}
}

func TestWorkingCapitalProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		d := models.FinancialData{
			AccountsReceivable: rng.Float64() * 1e7,
			Inventory:          rng.Float64() * 1e7,
			AccountsPayable:    rng.Float64() * 1e7,
		}
		want := d.AccountsReceivable + d.Inventory - d.AccountsPayable
		if got := WorkingCapital(d); got != want {
			t.Fatalf("case %d: working capital %f, want %f", i, got, want)
		}
	}
}

func TestSentinels(t *testing.T) {
	d := models.FinancialData{AccountsReceivable: 10, Inventory: 5, Loans: 1000}

	if r := CurrentRatio(d); r.Defined {
		t.Errorf("Expected undefined current ratio with zero payables, got %f", r.Value)
	}
	if r := DebtToIncome(d); r.Defined {
		t.Errorf("Expected undefined debt-to-income with zero revenue, got %f", r.Value)
	}
	if r := EMIBurden([]float64{100}, 0); r.Defined {
		t.Errorf("Expected undefined EMI burden with zero revenue, got %f", r.Value)
	}
	if s := CurrentRatio(d).String(); s != "N/A" {
		t.Errorf("Expected N/A, got %s", s)
	}

	b, err := json.Marshal(Metrics(d))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["current_ratio"] != nil {
		t.Errorf("Expected null current_ratio, got %v", raw["current_ratio"])
	}
}

func TestEMIBurden(t *testing.T) {
	// 5000 + 3000 against 40000 monthly revenue = 20%
	r := EMIBurden([]float64{5000, 3000}, 40000)
	if math.Abs(r.Value-20) > 0.0001 {
		t.Errorf("Expected EMI burden 20%%, got %f", r.Value)
	}
}
