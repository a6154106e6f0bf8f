package bot

import (
	"math/rand/v2"
	"sync"

	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/table"
)

// RandBot is a simple bot that makes uniform random legal actions
type RandBot struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandBot creates a new RandBot instance
func NewRandBot(rng *rand.Rand) *RandBot {
	return &RandBot{rng: rng}
}

func (r *RandBot) Decide(turn table.Turn) Decision {
	opts := turn.Options
	if len(opts.Actions) == 0 {
		return Decision{Action: game.Fold, Reasoning: "rand-bot no valid actions"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	action := opts.Actions[r.rng.IntN(len(opts.Actions))]
	amount := amountFor(opts, action)
	if action == game.Raise && opts.MaxRaiseTo > opts.MinRaiseTo {
		amount = opts.MinRaiseTo + r.rng.IntN(opts.MaxRaiseTo-opts.MinRaiseTo+1)
	}
	return Decision{Action: action, Amount: amount, Reasoning: "rand-bot random action"}
}

func (r *RandBot) ChooseRuns(offer table.RunoutOffer) int {
	if offer.MaxRuns <= 1 {
		return 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return 1 + r.rng.IntN(offer.MaxRuns)
}
