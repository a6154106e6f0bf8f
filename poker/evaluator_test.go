package poker

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func mustEval(t *testing.T, cards string, v Variant) HandScore {
	t.Helper()
	s, err := Evaluate(MustParseCards(cards), v)
	if err != nil {
		t.Fatalf("Evaluate(%s): %v", cards, err)
	}
	return s
}

func TestEvaluateCategories(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cards string
		want  Category
		ranks [5]int
	}{
		{"As Ks Qs Js Ts 2c 3d", StraightFlush, [5]int{14}},
		{"5h 4h 3h 2h Ah Kd Kc", StraightFlush, [5]int{5}},
		{"9c 9d 9h 9s Kd 2c 3c", FourOfAKind, [5]int{9, 13}},
		{"Tc Td Th 4s 4d 4c 2h", FullHouse, [5]int{10, 4}},
		{"Ac 9c 7c 5c 2c Kd Qd", Flush, [5]int{14, 9, 7, 5, 2}},
		{"9c Td Jh Qs Kd 2c 2d", Straight, [5]int{13}},
		{"Ah 2c 3d 4s 5h 9c Kd", Straight, [5]int{5}},
		{"7c 7d 7h As Kd 2c 3d", ThreeOfAKind, [5]int{7, 14, 13}},
		{"Jc Jd 4h 4s Kd 2c 2d", TwoPair, [5]int{11, 4, 13}},
		{"8c 8d Ah Ks 2d 3c 4d", Pair, [5]int{8, 14, 13, 4}},
		{"Ac Jd 9h 7s 4d 3c 2d", HighCard, [5]int{14, 11, 9, 7, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.cards, func(t *testing.T) {
			t.Parallel()
			s := mustEval(t, tt.cards, Holdem)
			if s.Category() != tt.want {
				t.Fatalf("category = %s, want %s", s.Category(), tt.want)
			}
			if s.Ranks() != tt.ranks {
				t.Errorf("ranks = %v, want %v", s.Ranks(), tt.ranks)
			}
		})
	}
}

func TestEvaluateOrdering(t *testing.T) {
	t.Parallel()
	hands := []string{
		"Ac Jd 9h 7s 4d",
		"2c 2d 3h 4s 5d",
		"2c 2d 3h 3s 5d",
		"2c 2d 2h 4s 5d",
		"Ah 2c 3d 4s 5h",
		"2c 4c 6c 8c Tc",
		"2c 2d 2h 3s 3d",
		"2c 2d 2h 2s 3d",
		"Ah Kh Qh Jh Th",
	}
	prev := HandScore(0)
	for _, h := range hands {
		s := mustEval(t, h, Holdem)
		if s <= prev {
			t.Errorf("%s (%s) should beat previous hand", h, s)
		}
		prev = s
	}
}

func TestEvaluateKickers(t *testing.T) {
	t.Parallel()
	a := mustEval(t, "Ac Ad Kh 7s 4d 3c 2d", Holdem)
	b := mustEval(t, "Ac Ad Qh 7s 4d 3c 2d", Holdem)
	if CompareHands(a, b) != 1 {
		t.Errorf("king kicker should beat queen kicker")
	}
	// board plays: both players share the same best five
	c := mustEval(t, "Ah Kh Qh Jh 9c 2c 3d", Holdem)
	d := mustEval(t, "Ah Kh Qh Jh 9c 4s 5d", Holdem)
	if CompareHands(c, d) != 0 {
		t.Errorf("identical best five should tie: %v vs %v", c.Ranks(), d.Ranks())
	}
}

func TestEvaluateShortDeck(t *testing.T) {
	t.Parallel()
	flush := mustEval(t, "Ac 9c 8c 7c 6d Tc Kh", ShortDeck)
	boat := mustEval(t, "Tc Td Th 6s 6d Ac Kh", ShortDeck)
	if flush.Category() != Flush || boat.Category() != FullHouse {
		t.Fatalf("categories %s / %s", flush.Category(), boat.Category())
	}
	if CompareHands(flush, boat) != 1 {
		t.Error("flush should beat full house in short deck")
	}
	if CompareHands(mustEval(t, "Ac 9c 8c 7c Tc", Holdem), mustEval(t, "Tc Td Th 6s 6d", Holdem)) != -1 {
		t.Error("full house should beat flush in hold'em")
	}

	wheel := mustEval(t, "Ah 6c 7d 8s 9h Kd Kc", ShortDeck)
	if wheel.Category() != Straight || wheel.Ranks()[0] != 9 {
		t.Errorf("A6789 should be a nine-high straight, got %s %v", wheel, wheel.Ranks())
	}
	ten := mustEval(t, "6c 7d 8s 9h Td Kc Qs", ShortDeck)
	if CompareHands(ten, wheel) != 1 {
		t.Error("ten-high straight should beat the short deck wheel")
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()
	if _, err := Evaluate(MustParseCards("As Ks Qs Js"), Holdem); !errors.Is(err, ErrCardCount) {
		t.Errorf("4 cards: err = %v", err)
	}
	dup := []Card{NewCard(Ace, Spades), NewCard(Ace, Spades), NewCard(King, Spades), NewCard(Two, Clubs), NewCard(Three, Clubs)}
	if _, err := Evaluate(dup, Holdem); !errors.Is(err, ErrDuplicateCard) {
		t.Errorf("duplicate: err = %v", err)
	}
}

func TestRankGroups(t *testing.T) {
	t.Parallel()
	scores := []HandScore{
		mustEval(t, "2c 2d 3h 4s 5d", Holdem),
		mustEval(t, "Ah Kh Qh Jh Th", Holdem),
		mustEval(t, "2h 2s 3c 4d 5c", Holdem),
	}
	groups := RankGroups(scores)
	if len(groups) != 2 {
		t.Fatalf("groups = %v", groups)
	}
	if len(groups[0]) != 1 || groups[0][0] != 1 {
		t.Errorf("winner group = %v", groups[0])
	}
	if len(groups[1]) != 2 || groups[1][0] != 0 || groups[1][1] != 2 {
		t.Errorf("tie group = %v", groups[1])
	}
}

// Random seven-card hands must produce a consistent total order across
// repeated evaluation.
func TestEvaluateDeterministicTotalOrder(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))
	deck := OrderedCards(Holdem)
	const n = 300
	scores := make([]HandScore, n)
	hands := make([][]Card, n)
	for i := range hands {
		perm := rng.Perm(len(deck))
		hand := make([]Card, 7)
		for j := range hand {
			hand[j] = deck[perm[j]]
		}
		hands[i] = hand
		s, err := Evaluate(hand, Holdem)
		if err != nil {
			t.Fatal(err)
		}
		scores[i] = s
	}
	for i := range hands {
		again, _ := Evaluate(hands[i], Holdem)
		if again != scores[i] {
			t.Fatalf("non-deterministic score for %s", FormatCards(hands[i]))
		}
		for j := range hands {
			if CompareHands(scores[i], scores[j]) != -CompareHands(scores[j], scores[i]) {
				t.Fatalf("compare not antisymmetric for %d,%d", i, j)
			}
		}
	}
	for i := 0; i+2 < n; i += 3 {
		a, b, c := scores[i], scores[i+1], scores[i+2]
		if CompareHands(a, b) >= 0 && CompareHands(b, c) >= 0 && CompareHands(a, c) < 0 {
			t.Fatalf("compare not transitive")
		}
	}
}

func BenchmarkEvaluate7(b *testing.B) {
	cards := MustParseCards("As Kd Qh Js 9c 2d 2h")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Evaluate(cards, Holdem)
	}
}
