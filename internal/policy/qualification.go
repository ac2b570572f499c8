// Package policy turns attempt scores into qualification decisions.
package policy

import (
	"math"

	"season-quiz-service/internal/domain"
)

// DefaultThreshold applies to seasons without a configured minimum score.
const DefaultThreshold = 50

// Decision is the outcome of comparing a score to a threshold.
type Decision struct {
	Percentage int
	Qualifies  bool
}

// Decide computes round(score/total*100) and compares it to thresholdPercent.
// A zero total never qualifies.
func Decide(score, total, thresholdPercent int) Decision {
	if total <= 0 {
		return Decision{}
	}
	pct := Percentage(score, total)
	return Decision{Percentage: pct, Qualifies: pct >= thresholdPercent}
}

// Percentage rounds half away from zero and clamps to 0..100.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(score) * 100 / float64(total)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Policy resolves thresholds for seasons.
type Policy struct {
	defaultThreshold int
}

// New returns a policy that falls back to defaultThreshold, or DefaultThreshold
// when the value is outside 0..100.
func New(defaultThreshold int) Policy {
	if defaultThreshold < 0 || defaultThreshold > 100 {
		defaultThreshold = DefaultThreshold
	}
	return Policy{defaultThreshold: defaultThreshold}
}

// Threshold returns the season's configured minimum or the policy default.
func (p Policy) Threshold(season domain.Season) int {
	if season.MinimumScorePercentage != nil {
		return *season.MinimumScorePercentage
	}
	return p.defaultThreshold
}

// Decide scores an attempt of the given season.
func (p Policy) Decide(season domain.Season, score, total int) domain.Outcome {
	d := Decide(score, total, p.Threshold(season))
	return domain.Outcome{Score: score, Percentage: d.Percentage, Qualifies: d.Qualifies}
}
