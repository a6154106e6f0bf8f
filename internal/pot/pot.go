// Package pot divides hand contributions into a main pot and side pots and
// splits each pot between its winners.
package pot

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNegativeContribution is returned for a contribution below zero.
	ErrNegativeContribution = errors.New("pot: negative contribution")
	// ErrNoContenders is returned when chips were committed but no unfolded
	// seat can win them.
	ErrNoContenders = errors.New("pot: no eligible seats")
)

// Contribution is one seat's total commitment for the hand.
type Contribution struct {
	Seat   int
	Amount int
	Folded bool
	AllIn  bool
}

// Pot is one tier. Eligible seats are ascending by index.
type Pot struct {
	Amount    int
	Eligible  []int
	Threshold int
}

// IsEligible reports whether seat may win this pot.
func (p Pot) IsEligible(seat int) bool {
	_, ok := slices.BinarySearch(p.Eligible, seat)
	return ok
}

// Build groups contributions into ordered pots. Tier boundaries are the
// distinct all-in amounts of unfolded seats, ascending, topped by the largest
// contribution. Every seat pays the part of its contribution that falls inside
// a tier into that tier; only unfolded seats that reached the tier's threshold
// are eligible. A tier nobody can win is folded into the tier below it.
// The first pot returned is the main pot.
func Build(contribs []Contribution) ([]Pot, error) {
	var thresholds []int
	top := 0
	for _, c := range contribs {
		if c.Amount < 0 {
			return nil, fmt.Errorf("%w: seat %d has %d", ErrNegativeContribution, c.Seat, c.Amount)
		}
		if c.AllIn && !c.Folded && c.Amount > 0 {
			thresholds = append(thresholds, c.Amount)
		}
		top = max(top, c.Amount)
	}
	if top == 0 {
		return nil, nil
	}
	thresholds = append(thresholds, top)
	slices.Sort(thresholds)
	thresholds = slices.Compact(thresholds)

	var pots []Pot
	carry, prev := 0, 0
	for _, th := range thresholds {
		p := Pot{Threshold: th, Amount: carry}
		carry = 0
		for _, c := range contribs {
			if inc := min(c.Amount, th) - prev; inc > 0 {
				p.Amount += inc
			}
			if !c.Folded && c.Amount >= th {
				p.Eligible = append(p.Eligible, c.Seat)
			}
		}
		prev = th
		if len(p.Eligible) == 0 {
			if len(pots) > 0 {
				pots[len(pots)-1].Amount += p.Amount
			} else {
				carry = p.Amount
			}
			continue
		}
		slices.Sort(p.Eligible)
		pots = append(pots, p)
	}
	if len(pots) == 0 {
		return nil, ErrNoContenders
	}
	return pots, nil
}

// Total sums the pots.
func Total(pots []Pot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

// Uncalled finds the portion of the largest contribution that no other seat
// matched. It returns the seat to refund and the excess, or -1 and 0.
func Uncalled(contribs []Contribution) (int, int) {
	seat, first, second := -1, 0, 0
	for _, c := range contribs {
		switch {
		case c.Amount > first:
			second = first
			first = c.Amount
			seat = c.Seat
		case c.Amount > second:
			second = c.Amount
		}
	}
	if seat < 0 || first == second {
		return -1, 0
	}
	return seat, first - second
}
