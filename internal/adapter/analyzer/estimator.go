package analyzer

import (
	"math"
	"unicode/utf8"
)

// DefaultCharsPerToken is the characters-per-token ratio used when none is
// configured.
const DefaultCharsPerToken = 4.0

// Estimator approximates LLM token counts from text length. The zero value
// uses DefaultCharsPerToken. Counts are advisory, not exact.
type Estimator struct {
	charsPerToken float64
}

func NewEstimator(charsPerToken float64) Estimator {
	return Estimator{charsPerToken: charsPerToken}
}

// Estimate returns ceil(runes / charsPerToken).
func (e Estimator) Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return int(math.Ceil(float64(n) / e.ratio()))
}

func (e Estimator) ratio() float64 {
	if e.charsPerToken <= 0 {
		return DefaultCharsPerToken
	}
	return e.charsPerToken
}

// EstimateTokens estimates with the default ratio.
func EstimateTokens(text string) int {
	return Estimator{}.Estimate(text)
}
