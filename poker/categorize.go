package poker

import "slices"

// StartingTier is a coarse strength bucket for a seat's hole cards before
// any board is dealt.
type StartingTier string

const (
	TierPremium StartingTier = "Premium"
	TierStrong  StartingTier = "Strong"
	TierMedium  StartingTier = "Medium"
	TierWeak    StartingTier = "Weak"
	TierTrash   StartingTier = "Trash"
	TierUnknown StartingTier = "Unknown"
)

// Rank orders tiers, Premium highest.
func (t StartingTier) Rank() int {
	switch t {
	case TierPremium:
		return 4
	case TierStrong:
		return 3
	case TierMedium:
		return 2
	case TierWeak:
		return 1
	}
	return 0
}

// CategorizeStart buckets hole cards for the given variant. Two-card games
// use the classic pair/broadway chart; Omaha hands are judged on their best
// two-card pairing plus suitedness and connectivity.
func CategorizeStart(hole []Card, v Variant) StartingTier {
	switch {
	case v == Omaha || v == OmahaHiLo:
		if len(hole) != 4 {
			return TierUnknown
		}
		return categorizeOmaha(hole, v)
	case len(hole) == 2:
		return categorizeTwo(hole[0], hole[1], v)
	}
	return TierUnknown
}

// categorizeTwo: Premium is JJ+ and AK, Strong is TT and AQ/AJ, Medium is
// 77+ and suited broadway, Weak is small pairs and suited connectors.
func categorizeTwo(c1, c2 Card, v Variant) StartingTier {
	if c1.Rank() > Ace || c2.Rank() > Ace {
		return TierUnknown
	}
	small, big := c1.Value(), c2.Value()
	if small > big {
		small, big = big, small
	}
	suited := c1.Suit() == c2.Suit()
	pair := small == big

	// short deck compresses the chart: with no deuces through fives every
	// pair below sevens is already the bottom of the deck
	floor := 2
	if v == ShortDeck {
		floor = 6
	}

	switch {
	case pair && small >= 11, small == 13 && big == 14:
		return TierPremium
	case pair && small == 10, big == 14 && (small == 12 || small == 11):
		return TierStrong
	case pair && small >= 7, suited && small >= 10:
		return TierMedium
	case pair && small >= floor, suited && big-small <= 2:
		return TierWeak
	}
	return TierTrash
}

func categorizeOmaha(hole []Card, v Variant) StartingTier {
	best := TierTrash
	for i := 0; i < len(hole); i++ {
		for j := i + 1; j < len(hole); j++ {
			if t := categorizeTwo(hole[i], hole[j], Holdem); t.Rank() > best.Rank() {
				best = t
			}
		}
	}

	suits := make(map[uint8]int, 4)
	values := make([]int, 0, len(hole))
	lowCards := 0
	for _, c := range hole {
		suits[c.Suit()]++
		values = append(values, c.Value())
		if c.Rank() == Ace || c.Value() <= 5 {
			lowCards++
		}
	}
	slices.Sort(values)
	doubleSuited := len(suits) == 2 && suits[hole[0].Suit()] == 2
	span := values[len(values)-1] - values[0]
	bonus := 0
	if doubleSuited {
		bonus++
	}
	if span <= 4 && len(slices.Compact(slices.Clone(values))) == 4 {
		bonus++
	}
	if v == OmahaHiLo && lowCards >= 2 && slices.Contains(values, 14) {
		bonus++
	}
	return promote(best, bonus)
}

func promote(t StartingTier, steps int) StartingTier {
	order := []StartingTier{TierTrash, TierWeak, TierMedium, TierStrong, TierPremium}
	i := min(t.Rank()+steps, len(order)-1)
	return order[i]
}
