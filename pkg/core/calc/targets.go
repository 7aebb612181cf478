package calc

// SalesTargets spreads the eligible loan amount over a year of trading. The
// dashboard shows these next to the owner's recorded sales.
type SalesTargets struct {
	Daily   float64 `json:"daily"`
	Monthly float64 `json:"monthly"`
}

func TargetsFor(eligibleAmount float64) SalesTargets {
	if eligibleAmount <= 0 {
		return SalesTargets{}
	}
	return SalesTargets{
		Daily:   Round2(eligibleAmount / 365),
		Monthly: Round2(eligibleAmount / 12),
	}
}

type TargetProgress struct {
	Target  float64 `json:"target"`
	Actual  float64 `json:"actual"`
	Percent Ratio   `json:"percent"`
}

func Progress(actual, target float64) TargetProgress {
	pct := Div(actual, target)
	if pct.Defined {
		pct = Defined(Round2(pct.Value * 100))
	}
	return TargetProgress{Target: target, Actual: actual, Percent: pct}
}
