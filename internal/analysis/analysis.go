// Package analysis derives deterministic scores for a genetic record from
// whatever plaintext is available for it.
package analysis

import (
	"math"
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
)

const (
	defaultScore = 5
	monthLength  = 30 * 24 * time.Hour
)

// Analysis is the score card for one record
type Analysis struct {
	Uniqueness        int64              `json:"uniqueness"`
	ResearchPotential int64              `json:"research_potential"`
	Compatibility     int64              `json:"compatibility"`
	PrivacyRisk       float64            `json:"privacy_risk"`
	MarketValue       int64              `json:"market_value"`
	Source            genetic.Provenance `json:"source"` // provenance of the gene input
}

// Inputs returns the gene and research figures Analyze works from.
// The gene figure is the known plaintext or, failing that, the public score
// as a stand-in. A verified zero is kept; a zero local estimate falls back
// to the public score, and a zero public score becomes 5.
func Inputs(r genetic.Record, value genetic.RecordValue) (gene, research float64, source genetic.Provenance) {
	research = float64(r.PublicScore)
	if research == 0 {
		research = defaultScore
	}

	best := genetic.Best(r, value)
	if v, ok := best.Value(); ok && (v != 0 || best.Provenance() == genetic.Verified) {
		return float64(v), research, best.Provenance()
	}

	gene = float64(r.PublicScore)
	if gene == 0 {
		gene = defaultScore
	}
	return gene, research, genetic.Unknown
}

// Analyze scores r at time now. It is pure: equal inputs give equal output.
func Analyze(r genetic.Record, value genetic.RecordValue, now time.Time) Analysis {
	gene, research, source := Inputs(r, value)

	baseUniqueness := math.Min(100, round((gene*0.7+research*0.3)*10))

	ageInMonths := float64(now.Unix()-r.CreatedAt) / monthLength.Seconds()
	timeFactor := clamp(1-ageInMonths, 0.7, 1.3)

	return Analysis{
		Uniqueness:        int64(math.Min(100, round(baseUniqueness*timeFactor))),
		ResearchPotential: int64(round(gene*0.8 + research*0.2)),
		Compatibility:     int64(round(research*8 + math.Log(gene+1)*2)),
		PrivacyRisk:       clamp(100-(gene*0.1+research*5), 10, 90),
		MarketValue:       int64(math.Min(95, round((gene*0.4+research*0.6)*12))),
		Source:            source,
	}
}

// DisplayPercent clamps a score into 0..100 for progress bars
func DisplayPercent(score int64) int64 {
	return min(max(score, 0), 100)
}

// round is half-up rounding
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
