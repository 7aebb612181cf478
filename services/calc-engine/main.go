package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"finpulse/pkg/core/calc"
	"finpulse/pkg/models"
)

// Payload is the -data argument: the owner snapshot plus, for check mode,
// the working-capital block an assessment reported for it.
type Payload struct {
	Data     models.FinancialData          `json:"data"`
	Reported *models.WorkingCapitalMetrics `json:"reported,omitempty"`
}

func main() {
	mode := flag.String("mode", "calculate", "Mode: check or calculate")
	dataStr := flag.String("data", "", "JSON data payload")
	tolerance := flag.Float64("tolerance", 1, "Relative tolerance in percent for check mode")
	flag.Parse()

	if *dataStr == "" {
		fmt.Println("Error: No data provided")
		os.Exit(1)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(*dataStr), &payload); err != nil {
		fmt.Printf("Error unmarshaling data: %v\n", err)
		os.Exit(1)
	}
	if err := models.ValidateFinancialData(payload.Data); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	switch *mode {
	case "check":
		if !runChecks(payload, *tolerance) {
			os.Exit(2)
		}
	case "calculate":
		runCalculations(payload.Data)
	default:
		fmt.Printf("Unknown mode: %s\n", *mode)
		os.Exit(1)
	}
}

func runChecks(p Payload, tolerancePct float64) bool {
	if p.Reported == nil {
		fmt.Println("Error: check mode needs a reported block")
		return false
	}
	res := calc.CrossCheck(p.Data, *p.Reported, tolerancePct)
	for _, w := range res.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	if res.Consistent {
		fmt.Println("Success: reported metrics match local computation")
		return true
	}
	for _, d := range res.Discrepancies {
		fmt.Printf("Error: %s reported %.2f, computed %.2f (gap %.2f)\n", d.Metric, d.Reported, d.Computed, d.Gap)
	}
	return false
}

func runCalculations(d models.FinancialData) {
	m := calc.Metrics(d)
	fmt.Printf("Working capital: %.2f\n", m.WorkingCapital)
	fmt.Printf("Current ratio:   %s\n", m.CurrentRatio)
	fmt.Printf("Debt to income:  %s\n", m.DebtToIncome)
	fmt.Printf("EMI burden (%%):  %s\n", m.EMIBurden)
	fmt.Println("Calculations complete.")
}
