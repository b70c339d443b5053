package odds

// Odds holds decimal 1X2 prices for a single market.
type Odds struct {
	Home float64
	Draw float64
	Away float64
}

// Valid reports whether every leg is a real decimal price (> 1.0).
func (o Odds) Valid() bool {
	return o.Home > 1.0 && o.Draw > 1.0 && o.Away > 1.0
}

// Overround is the sum of reciprocal odds across all three outcomes.
// It exceeds 1 by the bookmaker's margin.
func (o Odds) Overround() float64 {
	return 1/o.Home + 1/o.Draw + 1/o.Away
}

// Implied returns the raw implied probabilities before vig removal.
func (o Odds) Implied() (home, draw, away float64) {
	return 1 / o.Home, 1 / o.Draw, 1 / o.Away
}

// RemoveVig removes the bookmaker margin from a three-way market.
// Returns the fair probabilities, normalized to sum to 1.0.
//
// Method: multiplicative vig removal (proportional)
// fairX = impliedX / (impliedHome + impliedDraw + impliedAway)
func RemoveVig(o Odds) (home, draw, away float64) {
	if !o.Valid() {
		return 0, 0, 0
	}

	h, d, a := o.Implied()
	total := h + d + a
	if total <= 0 {
		return 0, 0, 0
	}

	return h / total, d / total, a / total
}

// FairDrawProb is the odds-implied draw probability after vig removal.
func FairDrawProb(o Odds) float64 {
	_, draw, _ := RemoveVig(o)
	return draw
}
