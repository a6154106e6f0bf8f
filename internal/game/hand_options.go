package game

import (
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// MaxRuns caps run-it-multiple-times requests.
const MaxRuns = 3

// HandOption configures a Hand during creation.
type HandOption func(*handConfig)

type handConfig struct {
	clock        quartz.Clock
	logger       zerolog.Logger
	mandatedRuns int
	runoutVote   bool
}

func defaultHandConfig() *handConfig {
	return &handConfig{
		clock:        quartz.NewReal(),
		logger:       zerolog.Nop(),
		mandatedRuns: 1,
	}
}

// WithClock sets the clock used to timestamp actions.
func WithClock(c quartz.Clock) HandOption {
	return func(cfg *handConfig) { cfg.clock = c }
}

// WithLogger sets the hand's logger.
func WithLogger(l zerolog.Logger) HandOption {
	return func(cfg *handConfig) { cfg.logger = l }
}

// WithMandatedRuns deals every all-in runout n times without asking the
// players, as some tournament rules require. Values are clamped to
// [1, MaxRuns].
func WithMandatedRuns(n int) HandOption {
	return func(cfg *handConfig) { cfg.mandatedRuns = min(max(n, 1), MaxRuns) }
}

// WithRunoutVote pauses the hand in PhaseRunout when an all-in ends the
// betting early, so the contenders can agree on the number of runs before
// the board is dealt. Without it only votes cast during betting count.
func WithRunoutVote() HandOption {
	return func(cfg *handConfig) { cfg.runoutVote = true }
}
