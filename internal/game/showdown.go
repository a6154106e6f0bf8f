package game

import (
	"fmt"
	"slices"

	"github.com/lox/pokerfloor/internal/pot"
	"github.com/lox/pokerfloor/poker"
)

// Pot shares.
const (
	ShareAll  = "all"
	ShareHigh = "high"
	ShareLow  = "low"
)

// Award is chips paid from one pot on one run.
type Award struct {
	Seat   int
	Amount int
	Run    int
	Share  string
	Score  poker.HandScore
	Low    poker.LowScore
}

// PotResult describes how a single pot was divided.
type PotResult struct {
	Amount   int
	Eligible []int
	Awards   []Award
}

// Result is the outcome of a settled hand.
type Result struct {
	HandID string
	// Config is the table configuration the hand was dealt with.
	Config   Config
	Boards   [][]poker.Card
	Pots     []PotResult
	Payouts  map[int]int
	Uncalled map[int]int
	// Shown marks the seats that tabled their cards at showdown.
	Shown       map[int]bool
	Hole        map[int][]poker.Card
	PlayerIDs   map[int]string
	StartStacks map[int]int
	FinalStacks map[int]int
	WonByFold   bool
	Actions     []ActionRecord
}

// Busted returns the seats that finished the hand with no chips, ascending.
func (r *Result) Busted() []int {
	var out []int
	for seat, stack := range r.FinalStacks {
		if stack == 0 {
			out = append(out, seat)
		}
	}
	slices.Sort(out)
	return out
}

// Settle returns uncalled bets, builds the pots and pays them out. It may be
// called once, after betting has finished.
func (h *Hand) Settle() (*Result, error) {
	switch h.phase {
	case PhaseSettled:
		return nil, ErrAlreadySettled
	case PhaseBetting, PhaseRunout:
		return nil, ErrNotReady
	}
	h.phase = PhaseSettled

	res := &Result{
		HandID:      h.id,
		Config:      h.cfg,
		Boards:      h.Runouts(),
		Payouts:     make(map[int]int),
		Uncalled:    make(map[int]int),
		Shown:       make(map[int]bool),
		Hole:        make(map[int][]poker.Card),
		PlayerIDs:   make(map[int]string),
		StartStacks: make(map[int]int),
		FinalStacks: make(map[int]int),
	}
	for _, p := range h.players {
		res.StartStacks[p.Seat] = p.StartStack
		res.Hole[p.Seat] = slices.Clone(p.Hole)
		res.PlayerIDs[p.Seat] = p.PlayerID
	}

	if seat, excess := pot.Uncalled(h.contributions()); excess > 0 {
		p := h.players[h.index(seat)]
		p.Total -= excess
		p.Stack += excess
		res.Uncalled[seat] = excess
		h.record(RecordUncalled, seat, excess, 0, false)
	}

	contribs := h.contributions()
	pots, err := pot.Build(contribs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	committed := 0
	for _, c := range contribs {
		committed += c.Amount
	}
	if pot.Total(pots) != committed {
		return nil, fmt.Errorf("%w: pots hold %d of %d committed", ErrInvariantViolation, pot.Total(pots), committed)
	}

	var contenders []int
	for _, p := range h.players {
		if p.InHand() {
			contenders = append(contenders, p.Seat)
		}
	}

	if len(contenders) == 1 {
		res.WonByFold = true
		winner := contenders[0]
		for _, pt := range pots {
			pr := PotResult{Amount: pt.Amount, Eligible: slices.Clone(pt.Eligible)}
			pr.Awards = append(pr.Awards, Award{Seat: winner, Amount: pt.Amount, Share: ShareAll})
			res.Payouts[winner] += pt.Amount
			res.Pots = append(res.Pots, pr)
		}
	} else if err := h.showdown(res, pots, contenders); err != nil {
		return nil, err
	}

	final := 0
	for _, p := range h.players {
		p.Stack += res.Payouts[p.Seat]
		p.Total = 0
		res.FinalStacks[p.Seat] = p.Stack
		final += p.Stack
	}
	if final != h.startTotal {
		return nil, fmt.Errorf("%w: settled %d chips, started with %d", ErrInvariantViolation, final, h.startTotal)
	}
	res.Actions = h.Actions()

	h.logger.Debug().
		Int("pots", len(res.Pots)).
		Bool("won_by_fold", res.WonByFold).
		Interface("payouts", res.Payouts).
		Msg("Hand settled")
	return res, nil
}

func (h *Hand) showdown(res *Result, pots []pot.Pot, contenders []int) error {
	holes := make(map[int][]poker.Card, len(contenders))
	for _, seat := range contenders {
		holes[seat] = h.players[h.index(seat)].Hole
	}
	evals, err := evaluateRuns(h.cfg.Variant, h.runouts, holes)
	if err != nil {
		return err
	}

	rankers := []pot.Ranker{func(seat int) uint64 { return uint64(evals[0][seat].High) }}
	if h.cfg.Variant.SplitsLow() {
		rankers = append(rankers, func(seat int) uint64 { return uint64(evals[0][seat].Low) })
	}
	order := pot.ShowdownOrder(contenders, h.finalAggressor, h.cfg.Button, h.cfg.TableSize)
	forceAll := len(h.runouts) > 1
	for _, seat := range contenders {
		if h.players[h.index(seat)].Status == StatusAllIn {
			forceAll = true
		}
	}
	res.Shown = pot.Reveals(order, pots, forceAll, rankers...)
	res.Pots = distribute(h.cfg, pots, evals, res.Payouts)
	return nil
}

// Distribute evaluates every eligible seat on each board and divides the
// pots between the winners. Pots are split evenly across boards, then
// between high and low halves when the variant splits, and finally between
// tied winners with odd chips going clockwise from the button.
func Distribute(cfg Config, pots []pot.Pot, boards [][]poker.Card, holes map[int][]poker.Card) ([]PotResult, map[int]int, error) {
	if len(boards) == 0 {
		return nil, nil, fmt.Errorf("%w: no board to settle on", ErrInvariantViolation)
	}
	evals, err := evaluateRuns(cfg.Variant, boards, holes)
	if err != nil {
		return nil, nil, err
	}
	payouts := make(map[int]int)
	return distribute(cfg, pots, evals, payouts), payouts, nil
}

func evaluateRuns(v poker.Variant, boards [][]poker.Card, holes map[int][]poker.Card) ([]map[int]poker.Evaluation, error) {
	evals := make([]map[int]poker.Evaluation, len(boards))
	for r, board := range boards {
		evals[r] = make(map[int]poker.Evaluation, len(holes))
		for seat, hole := range holes {
			ev, err := poker.EvaluateSeat(v, hole, board)
			if err != nil {
				return nil, fmt.Errorf("%w: evaluating seat %d: %v", ErrInvariantViolation, seat, err)
			}
			evals[r][seat] = ev
		}
	}
	return evals, nil
}

func distribute(cfg Config, pots []pot.Pot, evals []map[int]poker.Evaluation, payouts map[int]int) []PotResult {
	out := make([]PotResult, 0, len(pots))
	for _, pt := range pots {
		pr := PotResult{Amount: pt.Amount, Eligible: slices.Clone(pt.Eligible)}
		for r, amount := range pot.SplitRuns(pt.Amount, len(evals)) {
			ev := evals[r]
			highAmount, lowAmount := amount, 0
			var lowWinners []int
			if cfg.Variant.SplitsLow() {
				lowWinners = best(pt.Eligible, func(s int) poker.LowScore { return ev[s].Low })
				if len(lowWinners) > 0 {
					highAmount, lowAmount = pot.SplitHiLo(amount)
				}
			}
			share := ShareAll
			if len(lowWinners) > 0 {
				share = ShareHigh
			}
			highWinners := best(pt.Eligible, func(s int) poker.HandScore { return ev[s].High })
			pr.Awards = append(pr.Awards, pay(cfg, payouts, highAmount, highWinners, r, share, ev)...)
			if len(lowWinners) > 0 {
				pr.Awards = append(pr.Awards, pay(cfg, payouts, lowAmount, lowWinners, r, ShareLow, ev)...)
			}
		}
		out = append(out, pr)
	}
	return out
}

func pay(cfg Config, payouts map[int]int, amount int, winners []int, run int, share string, ev map[int]poker.Evaluation) []Award {
	split := pot.Split(amount, winners, cfg.Button, cfg.TableSize)
	awards := make([]Award, 0, len(winners))
	for _, seat := range pot.ClockwiseFrom(winners, cfg.Button, cfg.TableSize) {
		won := split[seat]
		payouts[seat] += won
		awards = append(awards, Award{
			Seat:   seat,
			Amount: won,
			Run:    run,
			Share:  share,
			Score:  ev[seat].High,
			Low:    ev[seat].Low,
		})
	}
	return awards
}

// best returns the seats holding the top non-zero score.
func best[S ~uint32](seats []int, score func(int) S) []int {
	scores := make([]S, len(seats))
	for i, s := range seats {
		scores[i] = score(s)
	}
	groups := poker.RankGroups(scores)
	if len(groups) == 0 || scores[groups[0][0]] == 0 {
		return nil
	}
	out := make([]int, len(groups[0]))
	for i, idx := range groups[0] {
		out[i] = seats[idx]
	}
	return out
}
