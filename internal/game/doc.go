// Package game implements the rules of a single poker hand for the
// community-card variants.
//
// The main type is Hand, which owns the shuffled deck for one deal, the
// participants' hole cards and contributions, the betting rounds and the
// showdown. A Hand is driven by exactly one goroutine (the owning table) and
// is discarded once settled.
//
// # Basic Usage
//
//	h, err := game.NewHand(id, game.Config{
//	    Variant:    poker.Holdem,
//	    SmallBlind: 5,
//	    BigBlind:   10,
//	    Button:     0,
//	    TableSize:  6,
//	}, participants, deck)
//	// drive betting
//	err = h.Apply(h.ToAct(), game.Call, 0)
//	// once h.Phase() == game.PhaseShowdown
//	res, err := h.Settle()
//
// # Deterministic Testing
//
// Decks come from the shuffle package in production. Tests build decks with
// poker.NewDeckFromCards so every card is known in advance, and inject a
// quartz mock clock with WithClock to pin action timestamps.
//
// # Architecture
//
//   - betting: street state, minimum raises and action reopening
//   - Hand: dealing, action validation, street transitions and runouts
//   - showdown: evaluation, pot building and odd-chip distribution via the
//     pot package
//
// Settlement is a one-way transition. A second Settle returns
// ErrAlreadySettled and a chip count mismatch returns ErrInvariantViolation.
package game
