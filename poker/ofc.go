package poker

import "fmt"

// Row identifies one of the three open-face rows.
type Row uint8

const (
	TopRow Row = iota
	MiddleRow
	BottomRow
)

func (r Row) String() string {
	switch r {
	case TopRow:
		return "top"
	case MiddleRow:
		return "middle"
	case BottomRow:
		return "bottom"
	}
	return "unknown"
}

// RowSize is the number of cards each row holds.
func (r Row) RowSize() int {
	if r == TopRow {
		return 3
	}
	return 5
}

// RoyaltySchedule holds bonus points per row. Five-card rows are keyed by
// category with royal flushes listed separately. The top row is keyed by
// the value (2-14) of the pair or trips.
type RoyaltySchedule struct {
	Bottom      map[Category]int
	Middle      map[Category]int
	BottomRoyal int
	MiddleRoyal int
	TopPair     map[int]int
	TopTrips    map[int]int
}

// DefaultRoyalties returns the classic open-face bonus schedule.
func DefaultRoyalties() RoyaltySchedule {
	s := RoyaltySchedule{
		Bottom: map[Category]int{
			Straight: 2, Flush: 4, FullHouse: 6, FourOfAKind: 10, StraightFlush: 15,
		},
		Middle: map[Category]int{
			ThreeOfAKind: 2, Straight: 4, Flush: 8, FullHouse: 12, FourOfAKind: 20, StraightFlush: 30,
		},
		BottomRoyal: 25,
		MiddleRoyal: 50,
		TopPair:     make(map[int]int),
		TopTrips:    make(map[int]int),
	}
	for v := 6; v <= 14; v++ {
		s.TopPair[v] = v - 5
	}
	for v := 2; v <= 14; v++ {
		s.TopTrips[v] = v + 8
	}
	return s
}

// Royalty looks up the bonus for a scored row.
func (s RoyaltySchedule) Royalty(row Row, score HandScore) int {
	switch row {
	case TopRow:
		r := score.Ranks()[0]
		switch score.Category() {
		case Pair:
			return s.TopPair[r]
		case ThreeOfAKind:
			return s.TopTrips[r]
		}
		return 0
	case MiddleRow:
		if score.IsRoyal() && s.MiddleRoyal > 0 {
			return s.MiddleRoyal
		}
		return s.Middle[score.Category()]
	default:
		if score.IsRoyal() && s.BottomRoyal > 0 {
			return s.BottomRoyal
		}
		return s.Bottom[score.Category()]
	}
}

// OFCHand is a completed 13-card open-face arrangement.
type OFCHand struct {
	Top    []Card
	Middle []Card
	Bottom []Card
}

// SplitOFC arranges 13 cards as top (first 3), middle (next 5) and bottom.
func SplitOFC(cards []Card) (OFCHand, error) {
	if len(cards) != 13 {
		return OFCHand{}, fmt.Errorf("%w: open face needs 13 cards, got %d", ErrCardCount, len(cards))
	}
	return OFCHand{Top: cards[:3], Middle: cards[3:8], Bottom: cards[8:]}, nil
}

// OFCResult is the evaluated form of an arrangement. A fouled hand keeps
// its row scores for display but earns no royalties and loses every row.
type OFCResult struct {
	Rows      [3]HandScore
	Fouled    bool
	Royalties int
}

// EvaluateOFC scores each row independently and applies the foul rule:
// bottom must rank at least as high as middle and middle at least as high
// as top.
func EvaluateOFC(h OFCHand, schedule RoyaltySchedule) (OFCResult, error) {
	rows := [3][]Card{h.Top, h.Middle, h.Bottom}
	all := make([]Card, 0, 13)
	var res OFCResult
	for i, cards := range rows {
		row := Row(i)
		if len(cards) != row.RowSize() {
			return OFCResult{}, fmt.Errorf("%w: %s row needs %d cards, got %d",
				ErrCardCount, row, row.RowSize(), len(cards))
		}
		all = append(all, cards...)
		res.Rows[i] = scoreHand(NewHand(cards...), Holdem)
	}
	if _, err := distinct(all); err != nil {
		return OFCResult{}, err
	}

	if res.Rows[BottomRow] < res.Rows[MiddleRow] || res.Rows[MiddleRow] < res.Rows[TopRow] {
		res.Fouled = true
		return res, nil
	}
	for i, score := range res.Rows {
		res.Royalties += schedule.Royalty(Row(i), score)
	}
	return res, nil
}

// ScoreOFC returns the points a wins from b; b's result is the negation.
// Each row won is worth one point, winning all three adds a three point
// scoop bonus, and royalties are settled as a difference.
func ScoreOFC(a, b OFCResult) int {
	switch {
	case a.Fouled && b.Fouled:
		return 0
	case a.Fouled:
		return -(6 + b.Royalties)
	case b.Fouled:
		return 6 + a.Royalties
	}
	var rows, won, lost int
	for i := range a.Rows {
		switch CompareHands(a.Rows[i], b.Rows[i]) {
		case 1:
			rows++
			won++
		case -1:
			rows--
			lost++
		}
	}
	if won == 3 {
		rows += 3
	} else if lost == 3 {
		rows -= 3
	}
	return rows + a.Royalties - b.Royalties
}
