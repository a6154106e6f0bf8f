package bot

import (
	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/table"
	"github.com/lox/pokerfloor/poker"
)

// CallBot checks or calls to the river. It folds trash hands preflop when
// calling would cost more than a third of its stack, and shoves premium
// hands when it is short.
type CallBot struct{}

// NewCallBot creates a new CallBot instance
func NewCallBot() *CallBot { return &CallBot{} }

func (c *CallBot) Decide(turn table.Turn) Decision {
	opts := turn.Options
	if turn.Street == game.Preflop {
		tier := poker.CategorizeStart(turn.Hole, turn.Variant)
		if tier == poker.TierTrash && opts.ToCall*3 > turn.Stack {
			return pick(opts, "call-bot folding trash to a big bet", game.Fold)
		}
		if tier == poker.TierPremium && turn.Stack <= 10*max(opts.ToCall, 1) {
			return pick(opts, "call-bot shoving premium short stack", game.AllIn, game.Call)
		}
	}
	return pick(opts, "call-bot calling", game.Check, game.Call, game.AllIn, game.Fold)
}

// ChooseRuns asks to run it twice whenever the table allows it.
func (c *CallBot) ChooseRuns(offer table.RunoutOffer) int {
	return min(2, offer.MaxRuns)
}
