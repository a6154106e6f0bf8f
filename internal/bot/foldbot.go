package bot

import (
	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/table"
)

// FoldBot is a simple bot that always folds (or checks when possible)
type FoldBot struct{}

// NewFoldBot creates a new FoldBot instance
func NewFoldBot() *FoldBot { return &FoldBot{} }

func (f *FoldBot) Decide(turn table.Turn) Decision {
	return pick(turn.Options, "fold-bot", game.Check, game.Fold)
}
