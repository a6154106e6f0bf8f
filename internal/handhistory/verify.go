package handhistory

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/pot"
	"github.com/lox/pokerfloor/poker"
)

// ErrMismatch is returned when a recorded hand does not match what
// re-running settlement produces.
var ErrMismatch = errors.New("handhistory: record does not verify")

// Verify rebuilds the pots from the recorded actions, re-evaluates every
// contender on every board and checks the recorded pots, payouts and
// finishing stacks against the result.
func Verify(rec Record) error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	v, err := poker.ParseVariant(rec.Variant)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMismatch, err)
	}

	gross := make(map[int]int)
	folded := make(map[int]bool)
	for _, a := range rec.Actions {
		switch a.Type {
		case game.RecordUncalled:
		case game.Fold.String():
			folded[a.Seat] = true
		default:
			gross[a.Seat] += a.Amount
		}
	}

	start, finish := 0, 0
	var contribs []pot.Contribution
	holes := make(map[int][]poker.Card)
	for _, s := range rec.Seats {
		start += s.StartStack
		finish += s.FinishStack
		c := pot.Contribution{
			Seat:   s.Seat,
			Amount: gross[s.Seat] - s.Uncalled,
			Folded: folded[s.Seat],
			AllIn:  gross[s.Seat] == s.StartStack,
		}
		contribs = append(contribs, c)
		if want := s.StartStack - c.Amount + s.Won; want != s.FinishStack {
			fail("seat %d finished with %d, actions imply %d", s.Seat, s.FinishStack, want)
		}
		if c.Folded {
			continue
		}
		hole, err := poker.ParseCards(strings.Join(s.Hole, " "))
		if err != nil {
			return fmt.Errorf("%w: seat %d hole cards: %v", ErrMismatch, s.Seat, err)
		}
		holes[s.Seat] = hole
	}
	if start != finish {
		fail("stacks sum to %d after the hand, %d before", finish, start)
	}

	pots, err := pot.Build(contribs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	if len(pots) != len(rec.Pots) {
		fail("recorded %d pots, rebuilt %d", len(rec.Pots), len(pots))
		return mismatch(rec.HandID, problems)
	}
	for i, p := range pots {
		if p.Amount != rec.Pots[i].Amount || !slices.Equal(p.Eligible, rec.Pots[i].Eligible) {
			fail("pot %d recorded %d for %v, rebuilt %d for %v", i, rec.Pots[i].Amount, rec.Pots[i].Eligible, p.Amount, p.Eligible)
		}
	}

	var payouts map[int]int
	var results []game.PotResult
	if len(holes) == 1 {
		payouts = make(map[int]int)
		for seat := range holes {
			for _, p := range pots {
				payouts[seat] += p.Amount
				results = append(results, game.PotResult{Amount: p.Amount, Awards: []game.Award{{Seat: seat, Amount: p.Amount, Share: game.ShareAll}}})
			}
		}
	} else {
		boards := make([][]poker.Card, len(rec.Boards))
		for i, b := range rec.Boards {
			if boards[i], err = poker.ParseCards(strings.Join(b, " ")); err != nil {
				return fmt.Errorf("%w: board %d: %v", ErrMismatch, i, err)
			}
		}
		cfg := game.Config{Variant: v, Button: rec.Button, TableSize: rec.TableSize}
		results, payouts, err = game.Distribute(cfg, pots, boards, holes)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMismatch, err)
		}
	}

	for i, pr := range results {
		if !sameAwards(pr.Awards, rec.Pots[i].Awards) {
			fail("pot %d awards differ", i)
		}
	}
	for _, s := range rec.Seats {
		if payouts[s.Seat] != s.Won {
			fail("seat %d recorded winning %d, settlement pays %d", s.Seat, s.Won, payouts[s.Seat])
		}
	}
	return mismatch(rec.HandID, problems)
}

func sameAwards(got []game.Award, want []Award) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].Seat != want[i].Seat || got[i].Amount != want[i].Amount ||
			got[i].Run != want[i].Run || got[i].Share != want[i].Share {
			return false
		}
	}
	return true
}

func mismatch(handID string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: hand %s: %s", ErrMismatch, handID, strings.Join(problems, "; "))
}
