package game

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerfloor/poker"
)

// stackedDeck builds a deck that deals the given hole cards (listed in deal
// order, starting at the small blind) followed by the board cards. The rest
// of the variant's deck follows in canonical order.
func stackedDeck(t *testing.T, v poker.Variant, holes []string, board string) *poker.Deck {
	t.Helper()
	parsed := make([][]poker.Card, len(holes))
	for i, h := range holes {
		cards, err := poker.ParseCards(h)
		require.NoError(t, err)
		require.Len(t, cards, v.HoleCards())
		parsed[i] = cards
	}
	var order []poker.Card
	for c := range v.HoleCards() {
		for _, h := range parsed {
			order = append(order, h[c])
		}
	}
	if board != "" {
		cards, err := poker.ParseCards(board)
		require.NoError(t, err)
		order = append(order, cards...)
	}
	for _, c := range poker.OrderedCards(v) {
		if !slices.Contains(order, c) {
			order = append(order, c)
		}
	}
	require.Len(t, order, v.DeckSize(), "stacked deck has duplicate cards")
	return poker.NewDeckFromCards(order)
}

func shuffledDeck(rng *rand.Rand, v poker.Variant) *poker.Deck {
	cards := poker.OrderedCards(v)
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return poker.NewDeckFromCards(cards)
}

func seats(stacks ...int) []Participant {
	out := make([]Participant, len(stacks))
	for i, s := range stacks {
		out[i] = Participant{Seat: i, PlayerID: string(rune('a' + i)), Stack: s}
	}
	return out
}

func newTestHand(t *testing.T, cfg Config, players []Participant, deck *poker.Deck, opts ...HandOption) *Hand {
	t.Helper()
	if deck == nil {
		deck = poker.NewDeckFromCards(poker.OrderedCards(cfg.Variant))
	}
	opts = append([]HandOption{WithClock(quartz.NewMock(t))}, opts...)
	h, err := NewHand("hand-1", cfg, players, deck, opts...)
	require.NoError(t, err)
	return h
}

func mustApply(t *testing.T, h *Hand, seat int, action Action, amount int) {
	t.Helper()
	require.NoError(t, h.Apply(seat, action, amount), "seat %d %s %d", seat, action, amount)
}

func stacks(h *Hand) map[int]int {
	out := make(map[int]int)
	for _, p := range h.Players() {
		out[p.Seat] = p.Stack
	}
	return out
}
