package analysis

// StakeFraction is the hard ceiling on a single stake as a fraction of
// the bankroll snapshot it was sized against.
const StakeFraction = 0.02

// SizeStake converts EV strength and the current bankroll into a stake.
// The raw stake scales linearly with EV (an EV of 10% earns the full
// fraction) and is capped at StakeFraction of the bankroll. Rounded to
// two decimals; never negative.
func SizeStake(bankroll, evPercent float64) float64 {
	stake := bankroll * StakeFraction * (evPercent / 10)

	maxStake := bankroll * StakeFraction
	if stake > maxStake {
		stake = maxStake
	}
	if stake < 0 {
		stake = 0
	}

	return round2(stake)
}
