package poker

// Deck is an ordered run of unique cards consumed front to back. Decks are
// never reshuffled; every hand receives a freshly permuted one.
type Deck struct {
	cards []Card
	next  int
}

// OrderedCards returns the working deck for a variant in canonical order
// (clubs through spades, low rank to high rank).
func OrderedCards(v Variant) []Card {
	low := v.LowestRank()
	cards := make([]Card, 0, v.DeckSize())
	for suit := range uint8(4) {
		for rank := low; rank <= Ace; rank++ {
			cards = append(cards, NewCard(rank, suit))
		}
	}
	return cards
}

// NewDeckFromCards wraps an already permuted card order. The slice is copied.
func NewDeckFromCards(cards []Card) *Deck {
	d := &Deck{cards: make([]Card, len(cards))}
	copy(d.cards, cards)
	return d
}

// Deal deals n cards from the deck, or nil if not enough remain.
func (d *Deck) Deal(n int) []Card {
	if n < 0 || d.next+n > len(d.cards) {
		return nil
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards
}

// DealOne deals a single card from the deck.
func (d *Deck) DealOne() (Card, bool) {
	if d.next >= len(d.cards) {
		return 0, false
	}
	card := d.cards[d.next]
	d.next++
	return card, true
}

// CardsRemaining returns the number of cards left in the deck.
func (d *Deck) CardsRemaining() int {
	return len(d.cards) - d.next
}

// Size returns the number of cards the deck started with.
func (d *Deck) Size() int {
	return len(d.cards)
}

// Order returns a copy of the full permutation, dealt cards included.
func (d *Deck) Order() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}
