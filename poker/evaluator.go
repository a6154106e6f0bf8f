package poker

import (
	"cmp"
	"errors"
	"fmt"
	"math/bits"
	"slices"
)

// Category enumerates hand categories ordered from weakest to strongest
// under standard ranking.
type Category uint8

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

var categoryNames = [...]string{
	"High Card", "Pair", "Two Pair", "Three of a Kind", "Straight",
	"Flush", "Full House", "Four of a Kind", "Straight Flush",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "Unknown"
}

// HandScore totally orders hands within a variant; higher is stronger and
// equal scores tie. Layout: variant weight in bits 24-27, category in bits
// 20-23 and five 4-bit rank values (2-14) most significant first.
type HandScore uint32

const (
	weightShift   = 24
	categoryShift = 20
)

// Category returns the hand category encoded in the score.
func (s HandScore) Category() Category {
	return Category((s >> categoryShift) & 0xF)
}

// Ranks returns the five tie-break rank values (2-14, 0 for unused slots).
func (s HandScore) Ranks() [5]int {
	var out [5]int
	for i := range out {
		out[i] = int((s >> (16 - 4*i)) & 0xF)
	}
	return out
}

// IsRoyal reports an ace-high straight flush.
func (s HandScore) IsRoyal() bool {
	return s.Category() == StraightFlush && s.Ranks()[0] == 14
}

func (s HandScore) String() string {
	if s == 0 {
		return "None"
	}
	if s.IsRoyal() {
		return "Royal Flush"
	}
	return s.Category().String()
}

var (
	// ErrCardCount is returned when a hand has the wrong number of cards.
	ErrCardCount = errors.New("poker: wrong number of cards")
	// ErrDuplicateCard is returned when the same card appears twice.
	ErrDuplicateCard = errors.New("poker: duplicate card")
)

func makeScore(v Variant, c Category, ranks ...int) HandScore {
	s := v.categoryWeight(c)<<weightShift | uint32(c)<<categoryShift
	for i, r := range ranks {
		if i >= 5 {
			break
		}
		s |= uint32(r) << (16 - 4*i)
	}
	return HandScore(s)
}

// Evaluate scores the best five-card hand that can be made from 5 to 7
// cards under the variant's ranking. Omaha variants must use EvaluateOmaha.
func Evaluate(cards []Card, v Variant) (HandScore, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return 0, fmt.Errorf("%w: got %d, want 5-7", ErrCardCount, len(cards))
	}
	h, err := distinct(cards)
	if err != nil {
		return 0, err
	}
	if v == Omaha || v == OmahaHiLo {
		v = Holdem
	}
	return scoreHand(h, v), nil
}

func distinct(cards []Card) (Hand, error) {
	h := NewHand(cards...)
	if h.CountCards() != len(cards) {
		return 0, ErrDuplicateCard
	}
	return h, nil
}

// scoreHand evaluates a set of at least three distinct cards and returns
// the strongest score over every category present.
func scoreHand(h Hand, v Variant) HandScore {
	var suitMasks [4]uint16
	var counts [13]uint8
	for suit := range uint8(4) {
		m := h.SuitMask(suit)
		suitMasks[suit] = m
		for r := m; r != 0; r &= r - 1 {
			counts[bits.TrailingZeros16(r)]++
		}
	}
	rankMask := h.RankMask()
	n := h.CountCards()

	var quads, trips, pairs, singles []int
	for r := 12; r >= 0; r-- {
		switch counts[r] {
		case 4:
			quads = append(quads, r+2)
		case 3:
			trips = append(trips, r+2)
		case 2:
			pairs = append(pairs, r+2)
		case 1:
			singles = append(singles, r+2)
		}
	}

	var best HandScore
	consider := func(s HandScore) {
		if s > best {
			best = s
		}
	}

	if n >= 5 {
		for _, m := range suitMasks {
			if bits.OnesCount16(m) < 5 {
				continue
			}
			if high := straightHigh(m, v); high > 0 {
				consider(makeScore(v, StraightFlush, high))
			}
			consider(makeScore(v, Flush, topRanks(m, 5)...))
		}
		if high := straightHigh(rankMask, v); high > 0 {
			consider(makeScore(v, Straight, high))
		}
	}

	if len(quads) > 0 {
		q := quads[0]
		consider(makeScore(v, FourOfAKind, q, highestExcept(rankMask, q)))
	}
	if len(trips) > 0 {
		t := trips[0]
		// a second set of trips plays as the pair
		pairCandidates := append(append([]int{}, trips[1:]...), pairs...)
		if len(quads) > 1 {
			pairCandidates = append(pairCandidates, quads[1:]...)
		}
		if len(pairCandidates) > 0 {
			consider(makeScore(v, FullHouse, t, slices.Max(pairCandidates)))
		}
		consider(makeScore(v, ThreeOfAKind, append([]int{t}, kickers(rankMask, 2, t)...)...))
	}
	if len(pairs) >= 2 {
		hi, lo := pairs[0], pairs[1]
		consider(makeScore(v, TwoPair, append([]int{hi, lo}, kickers(rankMask, 1, hi, lo)...)...))
	}
	if len(pairs) >= 1 {
		p := pairs[0]
		consider(makeScore(v, Pair, append([]int{p}, kickers(rankMask, 3, p)...)...))
	}
	consider(makeScore(v, HighCard, kickers(rankMask, 5)...))
	return best
}

// straightHigh returns the value (2-14) of the top card of the best
// straight in the mask, or 0 when there is none.
func straightHigh(mask uint16, v Variant) int {
	for high := 12; high >= 4; high-- {
		run := uint16(0x1F) << (high - 4)
		if mask&run == run {
			return high + 2
		}
	}
	switch v {
	case ShortDeck:
		// A-6-7-8-9
		wheel := uint16(1)<<Ace | uint16(0xF)<<Six
		if mask&wheel == wheel {
			return int(Nine) + 2
		}
	default:
		wheel := uint16(1)<<Ace | uint16(0xF)
		if mask&wheel == wheel {
			return int(Five) + 2
		}
	}
	return 0
}

// topRanks returns the n highest rank values in the mask.
func topRanks(mask uint16, n int) []int {
	out := make([]int, 0, n)
	for r := 12; r >= 0 && len(out) < n; r-- {
		if mask&(1<<r) != 0 {
			out = append(out, r+2)
		}
	}
	return out
}

// kickers returns the n highest rank values not in exclude.
func kickers(mask uint16, n int, exclude ...int) []int {
	for _, e := range exclude {
		mask &^= 1 << (e - 2)
	}
	return topRanks(mask, n)
}

func highestExcept(mask uint16, exclude int) int {
	k := kickers(mask, 1, exclude)
	if len(k) == 0 {
		return 0
	}
	return k[0]
}

// RankGroups partitions indexes into groups of equal score ordered from
// strongest to weakest. Ties share a group; indexes within a group keep
// their input order.
func RankGroups[S cmp.Ordered](scores []S) [][]int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	var groups [][]int
	for i, id := range idx {
		if i > 0 && scores[id] == scores[idx[i-1]] {
			groups[len(groups)-1] = append(groups[len(groups)-1], id)
			continue
		}
		groups = append(groups, []int{id})
	}
	return groups
}

// CompareHands returns 1 if a is stronger, -1 if b is stronger, 0 on a tie.
func CompareHands(a, b HandScore) int {
	return cmp.Compare(a, b)
}
