package analysis

import (
	"math"

	"fh-draw-bot/internal/odds"
)

const (
	// evDamping shrinks the reported EV percentage to counter model
	// overconfidence. The raw Poisson estimate runs optimistic on
	// first-half draws, so the headline number is deliberately scaled down.
	evDamping = 0.1

	// EVPercentThreshold is the minimum damped EV percent a candidate
	// must clear to be considered actionable.
	EVPercentThreshold = 5.0
)

// Evaluation compares the model draw probability to the quoted price.
type Evaluation struct {
	FairDrawProb  float64 // odds-implied probability with the vig removed
	ModelDrawProb float64 // Poisson model estimate
	EVPerUnit     float64 // expected profit per unit staked
	EVPercent     float64 // damped EV, in percent
	DrawOdds      float64 // quoted decimal price
}

// Evaluate computes the expected value of backing the draw at the quoted
// price given the model's draw probability.
// EVPerUnit = p*(draw-1) - (1-p)
func Evaluate(o odds.Odds, modelDrawProb float64) Evaluation {
	fairDrawProb := odds.FairDrawProb(o)

	evPerUnit := modelDrawProb*(o.Draw-1) - (1 - modelDrawProb)
	evPercent := round2(evPerUnit * 100 * evDamping)

	return Evaluation{
		FairDrawProb:  round3(fairDrawProb),
		ModelDrawProb: round3(modelDrawProb),
		EVPerUnit:     round3(evPerUnit),
		EVPercent:     evPercent,
		DrawOdds:      o.Draw,
	}
}

// Actionable reports whether the evaluation clears the EV threshold.
func (e Evaluation) Actionable() bool {
	return e.EVPercent > EVPercentThreshold
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
