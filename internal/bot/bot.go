// Package bot provides simple automated players for simulations and tests.
package bot

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"github.com/thoas/go-funk"

	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/table"
)

// Decision is a strategy's answer to a turn.
type Decision struct {
	Action    game.Action
	Amount    int
	Reasoning string
}

// Strategy chooses an action for a turn.
type Strategy interface {
	Decide(turn table.Turn) Decision
}

// RunChooser is implemented by strategies with an opinion on how many
// times to run out an all-in board. Other strategies ask for one run.
type RunChooser interface {
	ChooseRuns(offer table.RunoutOffer) int
}

// Player adapts a Strategy to table.Agent and table.RunVoter.
type Player struct {
	strategy Strategy
	logger   zerolog.Logger
}

// NewPlayer wraps strategy as an agent.
func NewPlayer(strategy Strategy, logger zerolog.Logger) *Player {
	return &Player{strategy: strategy, logger: logger.With().Str("component", "bot").Logger()}
}

// Prompt implements table.Agent. The decision is submitted from its own
// goroutine because the table is waiting on its mailbox.
func (p *Player) Prompt(turn table.Turn, respond table.Responder) {
	go func() {
		d := p.strategy.Decide(turn)
		p.logger.Debug().
			Str("table_id", turn.TableID).
			Int("seat", turn.Seat).
			Str("action", d.Action.String()).
			Int("amount", d.Amount).
			Str("reasoning", d.Reasoning).
			Msg("Bot decision made")
		if err := respond(context.Background(), d.Action, d.Amount); err != nil {
			p.logger.Warn().Err(err).Str("table_id", turn.TableID).Int("seat", turn.Seat).Msg("Bot action rejected")
		}
	}()
}

// OfferRuns implements table.RunVoter.
func (p *Player) OfferRuns(offer table.RunoutOffer, vote func(ctx context.Context, runs int) error) {
	go func() {
		runs := 1
		if c, ok := p.strategy.(RunChooser); ok {
			runs = max(1, min(c.ChooseRuns(offer), offer.MaxRuns))
		}
		p.logger.Debug().
			Str("table_id", offer.TableID).
			Int("seat", offer.Seat).
			Int("runs", runs).
			Msg("Bot runout vote")
		if err := vote(context.Background(), runs); err != nil {
			p.logger.Warn().Err(err).Str("table_id", offer.TableID).Int("seat", offer.Seat).Msg("Bot vote rejected")
		}
	}()
}

// ByName returns the strategy registered under name. rng seeds the
// strategies that need randomness.
func ByName(name string, rng *rand.Rand) (Strategy, error) {
	switch name {
	case "call":
		return NewCallBot(), nil
	case "fold":
		return NewFoldBot(), nil
	case "random":
		return NewRandBot(rng), nil
	case "allin":
		return NewManiacBot(rng), nil
	}
	return nil, fmt.Errorf("bot: unknown strategy %q", name)
}

func hasAction(opts game.Options, a game.Action) bool {
	return funk.Contains(opts.Actions, a)
}

// pick returns the first of preferred that is legal, falling back to the
// first legal action.
func pick(opts game.Options, reasoning string, preferred ...game.Action) Decision {
	for _, a := range preferred {
		if hasAction(opts, a) {
			return Decision{Action: a, Amount: amountFor(opts, a), Reasoning: reasoning}
		}
	}
	if len(opts.Actions) > 0 {
		a := opts.Actions[0]
		return Decision{Action: a, Amount: amountFor(opts, a), Reasoning: "fallback: " + reasoning}
	}
	return Decision{Action: game.Fold, Reasoning: "no legal action"}
}

func amountFor(opts game.Options, a game.Action) int {
	if a == game.Raise {
		return opts.MinRaiseTo
	}
	return 0
}
