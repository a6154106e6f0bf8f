package poker

import (
	"fmt"
	"strings"
)

// Variant identifies the game being dealt. The set is closed; every
// variant-specific rule hangs off a switch on this value.
type Variant uint8

const (
	Holdem Variant = iota
	ShortDeck
	Omaha
	OmahaHiLo
	OpenFace
)

var variantNames = [...]string{"holdem", "shortdeck", "omaha", "omaha-hilo", "ofc"}

func (v Variant) String() string {
	if int(v) < len(variantNames) {
		return variantNames[v]
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// ParseVariant accepts the names produced by String plus a few common aliases.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "holdem", "hold'em", "nlhe", "texas":
		return Holdem, nil
	case "shortdeck", "short-deck", "6plus", "6+":
		return ShortDeck, nil
	case "omaha", "plo":
		return Omaha, nil
	case "omaha-hilo", "omaha8", "plo8", "hilo":
		return OmahaHiLo, nil
	case "ofc", "open-face", "openface":
		return OpenFace, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", s)
	}
}

// HoleCards is the number of private cards each seat receives.
func (v Variant) HoleCards() int {
	switch v {
	case Omaha, OmahaHiLo:
		return 4
	case OpenFace:
		return 13
	default:
		return 2
	}
}

// LowestRank is the lowest rank present in the working deck.
func (v Variant) LowestRank() uint8 {
	if v == ShortDeck {
		return Six
	}
	return Two
}

// DeckSize is the number of cards in a fresh deck for the variant.
func (v Variant) DeckSize() int {
	return 4 * int(13-v.LowestRank())
}

// SplitsLow reports whether pots are divided between high and low hands.
func (v Variant) SplitsLow() bool {
	return v == OmahaHiLo
}

// HasBettingRounds reports whether the variant is played with community
// streets and betting rounds.
func (v Variant) HasBettingRounds() bool {
	return v != OpenFace
}

// categoryWeight maps a category onto its position in the variant's
// ranking. Short deck swaps flush and full house.
func (v Variant) categoryWeight(c Category) uint32 {
	if v == ShortDeck {
		switch c {
		case Flush:
			return uint32(FullHouse)
		case FullHouse:
			return uint32(Flush)
		}
	}
	return uint32(c)
}
