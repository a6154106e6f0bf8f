// Package broadcast carries table and tournament state changes to viewers.
// Events for one table are delivered in the order they were published;
// delivery happens on a background goroutine so a slow or failing sink never
// holds up play.
package broadcast

import "time"

// Type names an event.
type Type string

const (
	HandStarted        Type = "hand_started"
	BlindPosted        Type = "blind_posted"
	ActionTaken        Type = "action"
	StreetDealt        Type = "street_dealt"
	RunoutOffered      Type = "runout_offered"
	RunoutVoted        Type = "runout_voted"
	ShowdownResult     Type = "showdown"
	SeatEliminated     Type = "seat_eliminated"
	PlayerSeated       Type = "player_seated"
	PlayerLeft         Type = "player_left"
	PlayerDisconnected Type = "player_disconnected"
	PlayerReconnected  Type = "player_reconnected"
	PlayerTimedOut     Type = "player_timed_out"
	TableHalted        Type = "table_halted"
	TableFrozen        Type = "table_frozen"
	LevelChanged       Type = "level_changed"
	PlayerMoved        Type = "player_moved"
	TableClosed        Type = "table_closed"
	StatusChanged      Type = "status_changed"
)

func (t Type) String() string { return string(t) }

// Event is one state change. Seat is -1 when the event is not about a seat.
type Event struct {
	Seq          uint64      `json:"seq"`
	Type         Type        `json:"type"`
	Time         time.Time   `json:"time"`
	TournamentID string      `json:"tournament_id,omitempty"`
	TableID      string      `json:"table_id,omitempty"`
	HandID       string      `json:"hand_id,omitempty"`
	Seat         int         `json:"seat"`
	Player       string      `json:"player,omitempty"`
	Action       string      `json:"action,omitempty"`
	Amount       int         `json:"amount,omitempty"`
	Street       string      `json:"street,omitempty"`
	Board        []string    `json:"board,omitempty"`
	Payouts      map[int]int `json:"payouts,omitempty"`
	Level        int         `json:"level,omitempty"`
	Reason       string      `json:"reason,omitempty"`
}

// Publisher accepts events for asynchronous delivery. Publish never blocks;
// it reports false when the event was dropped.
type Publisher interface {
	Publish(Event) bool
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) bool { return true }
