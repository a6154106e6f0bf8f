package poker

import "fmt"

// LowScore ranks an ace-to-five low hand. Higher is a better low and zero
// means no qualifying low exists.
type LowScore uint32

// Qualified reports whether the score represents an eight-or-better low.
func (l LowScore) Qualified() bool { return l != 0 }

const lowCeiling = 0xFFFFF

// Ranks returns the five low card values, highest first, with aces as 1.
func (l LowScore) Ranks() [5]int {
	var out [5]int
	if l == 0 {
		return out
	}
	packed := uint32(lowCeiling - l)
	for i := range out {
		out[i] = int((packed >> (16 - 4*i)) & 0xF)
	}
	return out
}

func (l LowScore) String() string {
	if l == 0 {
		return "No Low"
	}
	r := l.Ranks()
	const names = "A2345678"
	out := make([]byte, 0, 9)
	for i, v := range r {
		if i > 0 {
			out = append(out, '-')
		}
		out = append(out, names[v-1])
	}
	return string(out)
}

// EvaluateOmaha scores the best high hand using exactly two hole cards and
// three board cards.
func EvaluateOmaha(hole, board []Card) (HandScore, error) {
	if err := checkOmaha(hole, board); err != nil {
		return 0, err
	}
	var best HandScore
	eachOmahaFive(hole, board, func(five Hand) {
		if s := scoreHand(five, Holdem); s > best {
			best = s
		}
	})
	return best, nil
}

// EvaluateLow scores the best eight-or-better ace-to-five low using
// exactly two hole cards and three board cards. Straights and flushes do not
// count against a low. Returns zero when no low qualifies.
func EvaluateLow(hole, board []Card) (LowScore, error) {
	if err := checkOmaha(hole, board); err != nil {
		return 0, err
	}
	var best LowScore
	eachOmahaFive(hole, board, func(five Hand) {
		if s := lowScore(five); s > best {
			best = s
		}
	})
	return best, nil
}

func checkOmaha(hole, board []Card) error {
	if len(hole) < 4 {
		return fmt.Errorf("%w: omaha needs 4 hole cards, got %d", ErrCardCount, len(hole))
	}
	if len(board) < 3 || len(board) > 5 {
		return fmt.Errorf("%w: omaha board must have 3-5 cards, got %d", ErrCardCount, len(board))
	}
	all := append(append([]Card{}, hole...), board...)
	if _, err := distinct(all); err != nil {
		return err
	}
	return nil
}

func eachOmahaFive(hole, board []Card, fn func(Hand)) {
	for a := 0; a < len(hole); a++ {
		for b := a + 1; b < len(hole); b++ {
			pair := NewHand(hole[a], hole[b])
			for x := 0; x < len(board); x++ {
				for y := x + 1; y < len(board); y++ {
					for z := y + 1; z < len(board); z++ {
						fn(pair | NewHand(board[x], board[y], board[z]))
					}
				}
			}
		}
	}
}

// lowScore scores five cards as an ace-to-five low, requiring five distinct
// ranks of eight or lower.
func lowScore(five Hand) LowScore {
	var present [9]bool
	for _, c := range five.Cards() {
		v := lowValue(c)
		if v > 8 || present[v] {
			return 0
		}
		present[v] = true
	}
	var packed uint32
	i := 0
	for v := 8; v >= 1; v-- {
		if present[v] {
			packed |= uint32(v) << (16 - 4*i)
			i++
		}
	}
	return LowScore(lowCeiling - packed)
}

func lowValue(c Card) int {
	if c.Rank() == Ace {
		return 1
	}
	return c.Value()
}

// Evaluation is the variant-dispatched result for one seat.
type Evaluation struct {
	High HandScore
	Low  LowScore
}

// EvaluateSeat is the single entry point used at showdown. It selects the
// variant-specific routine for the given hole cards and board.
func EvaluateSeat(v Variant, hole, board []Card) (Evaluation, error) {
	switch v {
	case Holdem, ShortDeck:
		cards := append(append([]Card{}, hole...), board...)
		high, err := Evaluate(cards, v)
		return Evaluation{High: high}, err
	case Omaha:
		high, err := EvaluateOmaha(hole, board)
		return Evaluation{High: high}, err
	case OmahaHiLo:
		high, err := EvaluateOmaha(hole, board)
		if err != nil {
			return Evaluation{}, err
		}
		low, err := EvaluateLow(hole, board)
		return Evaluation{High: high, Low: low}, err
	default:
		return Evaluation{}, fmt.Errorf("poker: %s has no community showdown", v)
	}
}
