package table

import (
	"errors"

	"github.com/lox/pokerfloor/internal/game"
)

var (
	// ErrStaleAction rejects an action whose turn token no longer matches
	// the decision the table is waiting on, typically because the clock
	// already expired and an automatic action was applied.
	ErrStaleAction = errors.New("table: stale action")
	// ErrClosed is returned by every command once the table stopped.
	ErrClosed = errors.New("table: closed")

	ErrSeatTaken     = errors.New("table: seat taken")
	ErrTableFull     = errors.New("table: no free seat")
	ErrAlreadySeated = errors.New("table: player already seated")
	ErrNotSeated     = errors.New("table: player not seated")
	ErrInvalidStack  = errors.New("table: stack must be positive")
	ErrNotFrozen     = errors.New("table: not frozen")
	ErrNoHand        = errors.New("table: no hand in progress")
)

// rejected reports whether err is a refused player input that left the
// hand untouched. Anything else from the hand is a fault.
func rejected(err error) bool {
	for _, target := range []error{
		game.ErrOutOfTurn,
		game.ErrInvalidAction,
		game.ErrExceedsStack,
		game.ErrRaiseTooSmall,
		game.ErrBettingClosed,
		game.ErrInvalidVote,
		game.ErrNoRunoutVote,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
