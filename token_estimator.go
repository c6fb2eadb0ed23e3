package converse

import (
	"math"
)

// ImageTokenCost is the flat token estimate charged per image block.
const ImageTokenCost = 1600

// TokenEstimator provides configurable token estimation strategies
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// SimpleTokenEstimator - fast approximation of token usage for rate limiting
type SimpleTokenEstimator struct {
	SafetyMargin float64
}

func NewSimpleTokenEstimator() *SimpleTokenEstimator {
	return &SimpleTokenEstimator{
		SafetyMargin: 1.2,
	}
}

func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	charCount := len([]rune(text))
	tokenEstimate := float64(charCount) / 4.0
	tokenEstimate *= e.SafetyMargin

	return int(math.Ceil(tokenEstimate)) + 3
}

// EstimateTurnTokens sums the text estimate of every turn plus
// ImageTokenCost per image block.
func EstimateTurnTokens(e TokenEstimator, turns ...Turn) int {
	total := 0
	for _, t := range turns {
		total += e.EstimateTokens(t.Text())
		total += len(t.Images()) * ImageTokenCost
	}
	return total
}
