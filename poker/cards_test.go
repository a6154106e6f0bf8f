package poker

import (
	"math/bits"
	"testing"
)

func TestCardCreation(t *testing.T) {
	t.Parallel()
	aceSpades := NewCard(Ace, Spades)
	if aceSpades.Rank() != Ace {
		t.Errorf("Expected rank Ace, got %d", aceSpades.Rank())
	}
	if aceSpades.Suit() != Spades {
		t.Errorf("Expected suit Spades, got %d", aceSpades.Suit())
	}
	if aceSpades.Value() != 14 {
		t.Errorf("Expected value 14, got %d", aceSpades.Value())
	}
	if aceSpades.String() != "As" {
		t.Errorf("Expected 'As', got %s", aceSpades.String())
	}

	twoClubs := NewCard(Two, Clubs)
	if twoClubs.String() != "2c" {
		t.Errorf("Expected '2c', got %s", twoClubs.String())
	}
	if Card(0).String() != "??" {
		t.Errorf("zero card should render as ??, got %s", Card(0))
	}
}

func TestParseCard(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		wantCard Card
		wantErr  bool
	}{
		{name: "ace of spades", input: "As", wantCard: NewCard(Ace, Spades)},
		{name: "two of hearts", input: "2h", wantCard: NewCard(Two, Hearts)},
		{name: "lower case rank", input: "kd", wantCard: NewCard(King, Diamonds)},
		{name: "upper case suit", input: "TC", wantCard: NewCard(Ten, Clubs)},
		{name: "invalid rank", input: "Xs", wantErr: true},
		{name: "invalid suit", input: "Ax", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "too short", input: "A", wantErr: true},
		{name: "too long", input: "Asd", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			card, err := ParseCard(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseCard(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if card != tc.wantCard {
				t.Errorf("ParseCard(%q) = %v, want %v", tc.input, card, tc.wantCard)
			}
		})
	}
}

func TestParseCards(t *testing.T) {
	t.Parallel()
	cards, err := ParseCards("As Kd  Qh")
	if err != nil {
		t.Fatalf("ParseCards: %v", err)
	}
	if got := FormatCards(cards); got != "As Kd Qh" {
		t.Errorf("FormatCards = %q", got)
	}
	if _, err := ParseCards("AsAs"); err == nil {
		t.Error("duplicate cards should be rejected")
	}
	if _, err := ParseCards("AsK"); err == nil {
		t.Error("odd length input should be rejected")
	}
}

func TestAll52Cards(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for suit := uint8(0); suit < 4; suit++ {
		for rank := uint8(0); rank < 13; rank++ {
			card := NewCard(rank, suit)
			str := card.String()
			if seen[str] {
				t.Errorf("Duplicate card: %s", str)
			}
			seen[str] = true

			parsed, err := ParseCard(str)
			if err != nil {
				t.Errorf("Failed to parse %s: %v", str, err)
			}
			if parsed != card {
				t.Errorf("Round-trip failed for %s", str)
			}
		}
	}
	if len(seen) != 52 {
		t.Errorf("Expected 52 unique cards, got %d", len(seen))
	}
}

func TestHandBitset(t *testing.T) {
	t.Parallel()
	aceSpades := NewCard(Ace, Spades)
	aceHearts := NewCard(Ace, Hearts)
	twoClubs := NewCard(Two, Clubs)

	if bits.OnesCount64(uint64(aceSpades)) != 1 {
		t.Error("Card should be a single bit")
	}
	if aceSpades&aceHearts != 0 || aceSpades&twoClubs != 0 {
		t.Error("Different cards should not share bits")
	}

	hand := NewHand(aceSpades, aceHearts)
	hand.AddCard(twoClubs)
	if hand.CountCards() != 3 {
		t.Errorf("hand should have 3 cards, got %d", hand.CountCards())
	}
	if !hand.HasCard(twoClubs) || hand.HasCard(NewCard(King, Clubs)) {
		t.Error("HasCard mismatch")
	}
	if got := hand.RankMask(); got != 1<<Ace|1<<Two {
		t.Errorf("RankMask = %013b", got)
	}
	if len(hand.Cards()) != 3 {
		t.Errorf("Cards() returned %d cards", len(hand.Cards()))
	}
}

func TestSuitMask(t *testing.T) {
	t.Parallel()
	var cards []Card
	for rank := uint8(0); rank < 13; rank++ {
		cards = append(cards, NewCard(rank, Spades))
	}
	hand := NewHand(cards...)
	if hand.SuitMask(Spades) != 0x1FFF {
		t.Errorf("Expected all spades, got mask %016b", hand.SuitMask(Spades))
	}
	if hand.SuitMask(Hearts) != 0 {
		t.Error("Hearts should be empty")
	}
}

func TestDeckDealing(t *testing.T) {
	t.Parallel()
	deck := NewDeckFromCards(OrderedCards(Holdem))

	first := deck.Deal(2)
	second := deck.Deal(3)
	if len(first) != 2 || len(second) != 3 {
		t.Fatalf("unexpected deal sizes %d, %d", len(first), len(second))
	}
	for _, c1 := range first {
		for _, c2 := range second {
			if c1 == c2 {
				t.Error("Dealt same card twice")
			}
		}
	}
	if rest := deck.Deal(47); len(rest) != 47 {
		t.Errorf("Expected 47 remaining cards, got %d", len(rest))
	}
	if deck.Deal(1) != nil {
		t.Error("Should not be able to deal from empty deck")
	}
	if _, ok := deck.DealOne(); ok {
		t.Error("DealOne on empty deck should fail")
	}
	if deck.Size() != 52 || len(deck.Order()) != 52 {
		t.Error("deck should remember its full order")
	}
}

func TestShortDeckComposition(t *testing.T) {
	t.Parallel()
	cards := OrderedCards(ShortDeck)
	if len(cards) != 36 {
		t.Fatalf("short deck has %d cards", len(cards))
	}
	for _, c := range cards {
		if c.Value() < 6 {
			t.Errorf("short deck contains %s", c)
		}
	}
}

func BenchmarkParseCard(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = ParseCard("As")
	}
}

func BenchmarkHandOperations(b *testing.B) {
	c1 := NewCard(Ace, Spades)
	c2 := NewCard(King, Hearts)
	c3 := NewCard(Queen, Diamonds)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hand := NewHand(c1, c2)
		hand.AddCard(c3)
		_ = hand.CountCards()
		_ = hand.HasCard(c1)
	}
}
