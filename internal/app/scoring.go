package app

import "time"

// BonusTier awards Points when the whole session took at most Within.
type BonusTier struct {
	Within time.Duration
	Points int
}

// ScoringPolicy converts verdicts and timings into points.
type ScoringPolicy struct {
	BasePoints  int
	QuickBonus  int
	QuickWindow time.Duration
	// Tiers must be ordered by Within ascending.
	Tiers []BonusTier
}

func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		BasePoints:  3,
		QuickBonus:  2,
		QuickWindow: 10 * time.Second,
		Tiers: []BonusTier{
			{Within: 30 * time.Minute, Points: 15},
			{Within: 45 * time.Minute, Points: 8},
			{Within: 60 * time.Minute, Points: 3},
		},
	}
}

// PointsForAnswer scores one answer. sinceCurrent is measured from the last
// state-changing activity, so the quick window restarts after every scored answer.
func (p ScoringPolicy) PointsForAnswer(correct bool, sinceCurrent time.Duration) int {
	if !correct {
		return 0
	}
	points := p.BasePoints
	if sinceCurrent >= 0 && sinceCurrent < p.QuickWindow {
		points += p.QuickBonus
	}
	return points
}

// EndOfSessionBonus returns the tier bonus for the total elapsed time.
func (p ScoringPolicy) EndOfSessionBonus(elapsed time.Duration) int {
	for _, tier := range p.Tiers {
		if elapsed <= tier.Within {
			return tier.Points
		}
	}
	return 0
}
