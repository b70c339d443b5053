package analysis

import (
	"math"

	"fh-draw-bot/internal/odds"
)

// Model constants for the first-half draw estimate.
const (
	// FirstHalfFactor scales full-match expected goals down to the first
	// half. Slightly under half of all goals are scored before the break.
	FirstHalfFactor = 0.45

	// DrawProbCap bounds the modeled first-half draw probability. The
	// Poisson approximation runs hot on low-scoring matchups, so estimates
	// above this are clamped.
	DrawProbCap = 0.55

	// DefaultMaxGoals is the per-side goal count the draw sum runs to.
	DefaultMaxGoals = 4
)

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// Poisson returns P(X = k) for a Poisson distribution with rate lambda.
func Poisson(k int, lambda float64) float64 {
	if k < 0 || lambda < 0 {
		return 0
	}
	return math.Pow(lambda, float64(k)) * math.Exp(-lambda) / factorial(k)
}

// ImpliedExpectedGoals converts market odds into per-side expected-goal
// rates. The de-vigged win probability is treated as the chance of scoring
// at least one goal, so xg = -ln(1 - prob). An approximation, not a full
// match model.
func ImpliedExpectedGoals(o odds.Odds) (homeXg, awayXg float64) {
	homeProb, _, awayProb := odds.RemoveVig(o)
	if homeProb >= 1 || awayProb >= 1 {
		return 0, 0
	}
	return -math.Log(1 - homeProb), -math.Log(1 - awayProb)
}

// DrawProbability sums the probability of both sides scoring the same
// number of goals, 0..maxGoals each, under independent Poisson rates.
// The result is capped at DrawProbCap regardless of the computed sum.
func DrawProbability(homeXg, awayXg float64, maxGoals int) float64 {
	prob := 0.0
	for i := 0; i <= maxGoals; i++ {
		prob += Poisson(i, homeXg) * Poisson(i, awayXg)
	}
	return math.Min(prob, DrawProbCap)
}
