package pot

import "slices"

// ClockwiseFrom orders seats by clockwise distance starting at the seat
// after from. The from seat itself, if present, sorts last.
func ClockwiseFrom(seats []int, from, tableSize int) []int {
	out := slices.Clone(seats)
	if tableSize <= 0 {
		return out
	}
	dist := func(s int) int {
		return ((s-from-1)%tableSize + tableSize) % tableSize
	}
	slices.SortStableFunc(out, func(a, b int) int { return dist(a) - dist(b) })
	return out
}

// Split divides amount evenly between winners. Odd chips go one at a time
// to the winners closest to the button in clockwise order.
func Split(amount int, winners []int, button, tableSize int) map[int]int {
	out := make(map[int]int, len(winners))
	if len(winners) == 0 || amount <= 0 {
		return out
	}
	share := amount / len(winners)
	odd := amount % len(winners)
	for i, seat := range ClockwiseFrom(winners, button, tableSize) {
		out[seat] = share
		if i < odd {
			out[seat]++
		}
	}
	return out
}

// SplitRuns divides a pot across n runouts. Odd chips go to the earliest runs.
func SplitRuns(amount, n int) []int {
	if n <= 1 {
		return []int{amount}
	}
	out := make([]int, n)
	for i := range out {
		out[i] = amount / n
		if i < amount%n {
			out[i]++
		}
	}
	return out
}

// SplitHiLo halves a pot between the high and low hands with the odd chip
// going high.
func SplitHiLo(amount int) (high, low int) {
	low = amount / 2
	return amount - low, low
}

// ShowdownOrder returns the order contenders turn over their cards. The last
// aggressor on the final round shows first; without one the first contender
// clockwise from the button starts. Pass -1 when nobody bet.
func ShowdownOrder(contenders []int, lastAggressor, button, tableSize int) []int {
	if tableSize <= 0 {
		return slices.Clone(contenders)
	}
	if slices.Contains(contenders, lastAggressor) {
		// start at the aggressor by ordering clockwise from the seat before it
		return ClockwiseFrom(contenders, (lastAggressor-1+tableSize)%tableSize, tableSize)
	}
	return ClockwiseFrom(contenders, button, tableSize)
}

// Ranker reports a seat's strength for one half of a pot; higher wins and
// zero means the seat has no qualifying hand for that half.
type Ranker func(seat int) uint64

// Reveals decides which contenders must table their hands. Seats are taken
// in showdown order and a seat shows only if it can still win or tie some
// pot it is eligible for, checked from the smallest side pot down to the main
// pot against the hands already shown. When forceAll is set every contender
// shows, as in an all-in runout.
func Reveals(order []int, pots []Pot, forceAll bool, rankers ...Ranker) map[int]bool {
	shown := make(map[int]bool, len(order))
	if forceAll {
		for _, seat := range order {
			shown[seat] = true
		}
		return shown
	}
	for _, seat := range order {
		for i := len(pots) - 1; i >= 0 && !shown[seat]; i-- {
			p := pots[i]
			if !p.IsEligible(seat) {
				continue
			}
			for _, rank := range rankers {
				if canWin(seat, p, shown, rank) {
					shown[seat] = true
					break
				}
			}
		}
	}
	return shown
}

func canWin(seat int, p Pot, shown map[int]bool, rank Ranker) bool {
	mine := rank(seat)
	if mine == 0 {
		return false
	}
	for _, other := range p.Eligible {
		if shown[other] && rank(other) > mine {
			return false
		}
	}
	return true
}
