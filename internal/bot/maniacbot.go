package bot

import (
	"math/rand/v2"
	"sync"

	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/table"
	"github.com/lox/pokerfloor/poker"
)

// ManiacBot is an extremely aggressive bot that shoves frequently
type ManiacBot struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewManiacBot creates a new ManiacBot instance
func NewManiacBot(rng *rand.Rand) *ManiacBot {
	return &ManiacBot{rng: rng}
}

func (m *ManiacBot) Decide(turn table.Turn) Decision {
	opts := turn.Options
	m.mu.Lock()
	roll := m.rng.Float64()
	m.mu.Unlock()

	// anything decent goes in
	if turn.Street == game.Preflop && poker.CategorizeStart(turn.Hole, turn.Variant).Rank() >= poker.TierMedium.Rank() {
		return pick(opts, "maniac shove with a playable hand", game.AllIn, game.Call, game.Check)
	}

	if hasAction(opts, game.Check) {
		switch {
		case roll < 0.3:
			return pick(opts, "maniac shove", game.AllIn, game.Check)
		case roll < 0.85 && hasAction(opts, game.Raise):
			amount := opts.MinRaiseTo + (opts.MaxRaiseTo-opts.MinRaiseTo)*3/4
			return Decision{Action: game.Raise, Amount: amount, Reasoning: "maniac big raise"}
		}
		return Decision{Action: game.Check, Reasoning: "maniac checking"}
	}

	// facing a bet
	switch {
	case roll < 0.4:
		return pick(opts, "maniac shove over bet", game.AllIn, game.Call)
	case roll < 0.8:
		return pick(opts, "maniac call", game.Call, game.AllIn)
	}
	return pick(opts, "maniac fold", game.Fold)
}
