package game

import (
	"slices"

	"github.com/lox/pokerfloor/poker"
)

// Status is a participant's standing within the hand.
type Status int

const (
	StatusActive Status = iota
	StatusFolded
	StatusAllIn
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusFolded:
		return "folded"
	case StatusAllIn:
		return "all-in"
	}
	return "unknown"
}

// Participant is a funded seat dealt into a hand.
type Participant struct {
	Seat     int
	PlayerID string
	Stack    int
}

// Player represents a player in a hand
type Player struct {
	Seat     int
	PlayerID string
	// StartStack is the stack before antes and blinds.
	StartStack int
	Stack      int
	Bet        int // Current bet in this round
	Total      int // Total committed this hand
	Status     Status
	Hole       []poker.Card
}

// InHand reports whether the player can still win a pot.
func (p *Player) InHand() bool {
	return p.Status != StatusFolded
}

// CanAct reports whether the player can still make betting decisions.
func (p *Player) CanAct() bool {
	return p.Status == StatusActive
}

func (p *Player) commit(amount int) int {
	amount = min(amount, p.Stack)
	p.Stack -= amount
	p.Bet += amount
	p.Total += amount
	if p.Stack == 0 {
		p.Status = StatusAllIn
	}
	return amount
}

func (p *Player) clone() Player {
	c := *p
	c.Hole = slices.Clone(p.Hole)
	return c
}
