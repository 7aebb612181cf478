package calc

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// RateBasis picks the point of an annual rate range used for EMI estimates.
type RateBasis string

const (
	RateUpper    RateBasis = "upper"
	RateMidpoint RateBasis = "midpoint"
	RateLower    RateBasis = "lower"
)

// RateBand maps a credit-score range (inclusive) to an annual rate range in percent.
type RateBand struct {
	MinScore int     `yaml:"min_score" json:"min_score"`
	MaxScore int     `yaml:"max_score" json:"max_score"`
	LowPct   float64 `yaml:"low_pct" json:"low_pct"`
	HighPct  float64 `yaml:"high_pct" json:"high_pct"`
}

// RatePolicy is the interest assumption behind locally computed EMIs. It is
// versioned so a stored tenure table can be traced to the policy that made it.
type RatePolicy struct {
	Version     string     `yaml:"version" json:"version"`
	Basis       RateBasis  `yaml:"basis" json:"basis"`
	Bands       []RateBand `yaml:"bands" json:"bands"`
	FallbackPct float64    `yaml:"fallback_pct" json:"fallback_pct"`
}

// RateSource says where an annual rate came from.
type RateSource string

const (
	RateFromAssessment RateSource = "assessment_range"
	RateFromBand       RateSource = "score_band"
	RateFromFallback   RateSource = "fallback"
)

func DefaultRatePolicy() RatePolicy {
	return RatePolicy{
		Version: "2024-10-sme-v1",
		Basis:   RateUpper,
		Bands: []RateBand{
			{MinScore: 750, MaxScore: 900, LowPct: 9, HighPct: 11.5},
			{MinScore: 650, MaxScore: 749, LowPct: 11.5, HighPct: 14},
			{MinScore: 550, MaxScore: 649, LowPct: 14, HighPct: 18},
			{MinScore: 300, MaxScore: 549, LowPct: 18, HighPct: 24},
		},
		FallbackPct: 24,
	}
}

func (p RatePolicy) Validate() error {
	if p.Version == "" {
		return errors.New("rate policy: version is required")
	}
	switch p.Basis {
	case RateUpper, RateMidpoint, RateLower:
	default:
		return fmt.Errorf("rate policy %s: unknown basis %q", p.Version, p.Basis)
	}
	bands := append([]RateBand(nil), p.Bands...)
	sort.Slice(bands, func(i, j int) bool { return bands[i].MinScore < bands[j].MinScore })
	for i, b := range bands {
		if b.MinScore > b.MaxScore || b.LowPct > b.HighPct || b.LowPct < 0 {
			return fmt.Errorf("rate policy %s: malformed band %d-%d", p.Version, b.MinScore, b.MaxScore)
		}
		if i > 0 && b.MinScore <= bands[i-1].MaxScore {
			return fmt.Errorf("rate policy %s: band %d-%d overlaps %d-%d",
				p.Version, b.MinScore, b.MaxScore, bands[i-1].MinScore, bands[i-1].MaxScore)
		}
	}
	if p.FallbackPct <= 0 {
		return fmt.Errorf("rate policy %s: fallback_pct must be positive", p.Version)
	}
	return nil
}

func (p RatePolicy) BandFor(score int) (RateBand, bool) {
	for _, b := range p.Bands {
		if score >= b.MinScore && score <= b.MaxScore {
			return b, true
		}
	}
	return RateBand{}, false
}

// AnnualRate resolves the annual rate (percent) for an assessment. The
// assessed range text wins when it parses; otherwise the credit-score band,
// otherwise the fallback.
func (p RatePolicy) AnnualRate(rangeText string, creditScore int) (float64, RateSource) {
	if lo, hi, ok := ParseRateRange(rangeText); ok {
		return p.pick(lo, hi), RateFromAssessment
	}
	if b, ok := p.BandFor(creditScore); ok {
		return p.pick(b.LowPct, b.HighPct), RateFromBand
	}
	return p.FallbackPct, RateFromFallback
}

func (p RatePolicy) pick(lo, hi float64) float64 {
	switch p.Basis {
	case RateLower:
		return lo
	case RateMidpoint:
		return Round2((lo + hi) / 2)
	default:
		return hi
	}
}

var ratePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseRateRange reads strings such as "11.5% - 14%", "12-15% p.a." or "13%".
func ParseRateRange(s string) (lo, hi float64, ok bool) {
	nums := ratePattern.FindAllString(s, 2)
	if len(nums) == 0 {
		return 0, 0, false
	}
	vals := make([]float64, 0, 2)
	for _, n := range nums {
		v, err := strconv.ParseFloat(n, 64)
		if err != nil || v <= 0 || v >= 100 {
			return 0, 0, false
		}
		vals = append(vals, v)
	}
	lo, hi = vals[0], vals[len(vals)-1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, true
}
