package table

import (
	"slices"
	"time"

	"github.com/lox/pokerfloor/internal/game"
)

// Player is someone who can sit at a table. It is what Seat takes and what
// Release and Close hand back, so a player moved between tables keeps their
// stack and remaining time bank.
type Player struct {
	ID       string
	Stack    int
	TimeBank time.Duration
	// Agent is prompted for decisions. A nil agent only acts through Submit.
	Agent Agent
}

type seat struct {
	number       int
	player       Player
	sittingOut   bool
	disconnected bool
}

// dealable returns the seats that will be dealt into the next hand, in seat
// order.
func (t *Table) dealable() []*seat {
	var out []*seat
	for _, s := range t.seats {
		if s.player.Stack > 0 && !s.sittingOut {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b *seat) int { return a.number - b.number })
	return out
}

func (t *Table) findPlayer(id string) *seat {
	for _, s := range t.seats {
		if s.player.ID == id {
			return s
		}
	}
	return nil
}

func (t *Table) freeSeat() int {
	for n := range t.cfg.Seats {
		if _, ok := t.seats[n]; !ok {
			return n
		}
	}
	return -1
}

// nextButton is the first dealable seat clockwise after the previous button.
func nextButton(dealt []*seat, prev int) int {
	if len(dealt) == 0 {
		return -1
	}
	for _, s := range dealt {
		if s.number > prev {
			return s.number
		}
	}
	return dealt[0].number
}

// nextBigBlind returns the seat that will post the big blind next hand.
func (t *Table) nextBigBlind() *seat {
	dealt := t.dealable()
	switch len(dealt) {
	case 0:
		return nil
	case 1:
		return dealt[0]
	}
	button := nextButton(dealt, t.button)
	i := slices.IndexFunc(dealt, func(s *seat) bool { return s.number == button })
	if len(dealt) == 2 {
		return dealt[(i+1)%2]
	}
	return dealt[(i+2)%len(dealt)]
}

func (t *Table) participants(dealt []*seat) []game.Participant {
	out := make([]game.Participant, 0, len(dealt))
	for _, s := range dealt {
		out = append(out, game.Participant{Seat: s.number, PlayerID: s.player.ID, Stack: s.player.Stack})
	}
	return out
}

func (t *Table) chips() int {
	total := 0
	for _, s := range t.seats {
		total += s.player.Stack
	}
	return total
}
