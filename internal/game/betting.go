package game

import "fmt"

// Street represents the betting round
type Street int

const (
	Preflop Street = iota
	Flop
	Turn
	River
	Showdown
)

func (s Street) String() string {
	if s < Preflop || s > Showdown {
		return fmt.Sprintf("street(%d)", int(s))
	}
	return [...]string{"preflop", "flop", "turn", "river", "showdown"}[s]
}

// boardSize is the number of community cards visible once the street is dealt.
func (s Street) boardSize() int {
	switch s {
	case Preflop:
		return 0
	case Flop:
		return 3
	case Turn:
		return 4
	default:
		return 5
	}
}

// Action represents a player action
type Action int

const (
	Fold Action = iota
	Check
	Call
	Raise
	AllIn
)

func (a Action) String() string {
	if a < Fold || a > AllIn {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return [...]string{"fold", "check", "call", "raise", "allin"}[a]
}

// ParseAction accepts the names produced by String plus "bet".
func ParseAction(s string) (Action, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise", "bet":
		return Raise, nil
	case "allin", "all-in":
		return AllIn, nil
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, s)
}

// Options describes what the player to act may do. Raise amounts are
// totals for the street ("raise to").
type Options struct {
	Seat       int
	Actions    []Action
	ToCall     int
	MinRaiseTo int
	MaxRaiseTo int
}

// betting holds the state of one street. Indexes refer to Hand.players.
type betting struct {
	currentBet int
	// minRaise is the size of the last full bet or raise on this street.
	minRaise      int
	lastAggressor int
	// pending marks players who still owe a decision on this street.
	pending  []bool
	hasActed []bool
	// facedAt is the current bet each player last acted against. A player
	// who has acted may raise again only after a full raise on top of it.
	facedAt []int
}

func newBetting(players, bigBlind int) *betting {
	b := &betting{}
	b.reset(players, bigBlind)
	return b
}

func (b *betting) reset(players, bigBlind int) {
	b.currentBet = 0
	b.minRaise = bigBlind
	b.lastAggressor = -1
	b.pending = make([]bool, players)
	b.hasActed = make([]bool, players)
	b.facedAt = make([]int, players)
}

func (b *betting) canRaise(i int) bool {
	return !b.hasActed[i] || b.currentBet-b.facedAt[i] >= b.minRaise
}

// raiseTo records a bet or raise by player i to the given street total and
// puts everyone else back on the clock. Only a full raise grows minRaise,
// which is what reopens raising for players who already acted.
func (b *betting) raiseTo(i, total int, live func(int) bool) {
	if increase := total - b.currentBet; increase >= b.minRaise {
		b.minRaise = increase
	}
	b.currentBet = total
	b.lastAggressor = i
	for j := range b.pending {
		b.pending[j] = j != i && live(j)
	}
}

func (b *betting) markActed(i int) {
	b.pending[i] = false
	b.hasActed[i] = true
	b.facedAt[i] = b.currentBet
}
