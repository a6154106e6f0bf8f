// Package handhistory records settled hands as TOML and verifies recorded
// hands offline by re-running evaluation and settlement.
package handhistory

import (
	"slices"
	"time"

	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/poker"
)

// Record is everything needed to replay a settled hand.
type Record struct {
	HandID     string     `toml:"hand"`
	TableID    string     `toml:"table"`
	Variant    string     `toml:"variant"`
	Level      int        `toml:"level"`
	SmallBlind int        `toml:"small_blind"`
	BigBlind   int        `toml:"big_blind"`
	Ante       int        `toml:"ante"`
	Button     int        `toml:"button"`
	TableSize  int        `toml:"table_size"`
	Time       time.Time  `toml:"time"`
	WonByFold  bool       `toml:"won_by_fold"`
	Boards     [][]string `toml:"boards"`
	Seats      []Seat     `toml:"seats"`
	Actions    []Action   `toml:"actions"`
	Pots       []Pot      `toml:"pots"`
}

// Seat is one participant. Hole cards are always stored; Revealed tells
// whether they were tabled at showdown.
type Seat struct {
	Seat        int      `toml:"seat"`
	Player      string   `toml:"player"`
	StartStack  int      `toml:"start_stack"`
	FinishStack int      `toml:"finish_stack"`
	Hole        []string `toml:"hole"`
	Revealed    bool     `toml:"revealed"`
	Won         int      `toml:"won"`
	Uncalled    int      `toml:"uncalled"`
}

// Action is one entry of the action log.
type Action struct {
	Type   string    `toml:"type"`
	Seat   int       `toml:"seat"`
	Amount int       `toml:"amount"`
	To     int       `toml:"to,omitempty"`
	Street string    `toml:"street"`
	Time   time.Time `toml:"time"`
	Auto   bool      `toml:"auto,omitempty"`
}

// Pot is one settled pot.
type Pot struct {
	Amount   int     `toml:"amount"`
	Eligible []int   `toml:"eligible"`
	Awards   []Award `toml:"awards"`
}

// Award is one payment from a pot.
type Award struct {
	Seat   int    `toml:"seat"`
	Amount int    `toml:"amount"`
	Run    int    `toml:"run"`
	Share  string `toml:"share"`
	Hand   string `toml:"hand,omitempty"`
}

// FromResult converts a settled hand into a record.
func FromResult(tableID string, level int, res *game.Result) Record {
	cfg := res.Config
	rec := Record{
		HandID:     res.HandID,
		TableID:    tableID,
		Variant:    cfg.Variant.String(),
		Level:      level,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
		Ante:       cfg.Ante,
		Button:     cfg.Button,
		TableSize:  cfg.TableSize,
		WonByFold:  res.WonByFold,
	}
	if len(res.Actions) > 0 {
		rec.Time = res.Actions[0].Time
	}
	for _, b := range res.Boards {
		rec.Boards = append(rec.Boards, poker.CardStrings(b))
	}

	seats := make([]int, 0, len(res.StartStacks))
	for seat := range res.StartStacks {
		seats = append(seats, seat)
	}
	slices.Sort(seats)
	for _, seat := range seats {
		rec.Seats = append(rec.Seats, Seat{
			Seat:        seat,
			Player:      res.PlayerIDs[seat],
			StartStack:  res.StartStacks[seat],
			FinishStack: res.FinalStacks[seat],
			Hole:        poker.CardStrings(res.Hole[seat]),
			Revealed:    res.Shown[seat],
			Won:         res.Payouts[seat],
			Uncalled:    res.Uncalled[seat],
		})
	}

	for _, a := range res.Actions {
		rec.Actions = append(rec.Actions, Action{
			Type:   a.Type,
			Seat:   a.Seat,
			Amount: a.Amount,
			To:     a.To,
			Street: a.Street.String(),
			Time:   a.Time,
			Auto:   a.Auto,
		})
	}

	for _, p := range res.Pots {
		rp := Pot{Amount: p.Amount, Eligible: slices.Clone(p.Eligible)}
		for _, aw := range p.Awards {
			ra := Award{Seat: aw.Seat, Amount: aw.Amount, Run: aw.Run, Share: aw.Share}
			if aw.Score != 0 {
				ra.Hand = aw.Score.String()
			}
			if aw.Share == game.ShareLow {
				ra.Hand = aw.Low.String()
			}
			rp.Awards = append(rp.Awards, ra)
		}
		rec.Pots = append(rec.Pots, rp)
	}
	return rec
}

// FindSeat returns the entry for a seat number.
func (r *Record) FindSeat(seat int) (Seat, bool) {
	i := slices.IndexFunc(r.Seats, func(s Seat) bool { return s.Seat == seat })
	if i < 0 {
		return Seat{}, false
	}
	return r.Seats[i], true
}
