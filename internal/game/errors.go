package game

import "errors"

// Rejected input. The hand is unchanged and the caller may resubmit.
var (
	ErrOutOfTurn     = errors.New("game: action out of turn")
	ErrInvalidAction = errors.New("game: invalid action")
	ErrExceedsStack  = errors.New("game: amount exceeds stack")
	ErrRaiseTooSmall = errors.New("game: raise below minimum")
	ErrBettingClosed = errors.New("game: no betting in progress")
	ErrInvalidVote   = errors.New("game: invalid run vote")
	ErrNoRunoutVote  = errors.New("game: no runout vote open")
)

// Construction failures.
var (
	ErrNotEnoughPlayers = errors.New("game: at least two funded players required")
	ErrInvalidConfig    = errors.New("game: invalid hand configuration")
	ErrUnsupported      = errors.New("game: variant has no betting rounds")
	ErrDeckExhausted    = errors.New("game: deck exhausted")
)

// Settlement faults. Either one freezes the owning table.
var (
	ErrNotReady           = errors.New("game: hand not ready to settle")
	ErrAlreadySettled     = errors.New("game: hand already settled")
	ErrInvariantViolation = errors.New("game: invariant violation")
)
