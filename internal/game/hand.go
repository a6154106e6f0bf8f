package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/thoas/go-funk"

	"github.com/lox/pokerfloor/internal/pot"
	"github.com/lox/pokerfloor/poker"
)

// Config holds the per-hand table settings.
type Config struct {
	Variant    poker.Variant
	SmallBlind int
	BigBlind   int
	Ante       int
	// Button is the dealer seat and must belong to a participant.
	Button int
	// TableSize is the number of seat positions, used for clockwise
	// ordering. Zero means one past the highest participating seat.
	TableSize int
}

// Phase is the hand's lifecycle position.
type Phase int

const (
	PhaseBetting Phase = iota
	// PhaseRunout means betting stopped with the board incomplete and the
	// contenders are agreeing how many times to run it.
	PhaseRunout
	// PhaseShowdown means betting is over and the hand awaits Settle.
	PhaseShowdown
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseBetting:
		return "betting"
	case PhaseRunout:
		return "runout"
	case PhaseShowdown:
		return "showdown"
	case PhaseSettled:
		return "settled"
	}
	return "unknown"
}

// Record types beyond the player actions.
const (
	RecordAnte       = "ante"
	RecordSmallBlind = "small_blind"
	RecordBigBlind   = "big_blind"
	RecordUncalled   = "uncalled"
)

// ActionRecord is one entry in the hand's ordered action log. Amount is the
// chips moved by the action; To is the street total after a raise.
type ActionRecord struct {
	Type   string    `toml:"type"`
	Seat   int       `toml:"seat"`
	Amount int       `toml:"amount"`
	To     int       `toml:"to,omitempty"`
	Street Street    `toml:"street"`
	Time   time.Time `toml:"time"`
	Auto   bool      `toml:"auto,omitempty"`
}

// Hand is a single deal. It is not safe for concurrent use; the owning table
// serialises every call.
type Hand struct {
	id      string
	cfg     Config
	players []*Player
	button  int // index into players
	sb, bb  int

	deck    *poker.Deck
	board   []poker.Card
	runouts [][]poker.Card

	street Street
	phase  Phase
	bet    *betting
	toAct  int
	seq    uint64

	finalAggressor int
	votes          map[int]int
	mandatedRuns   int
	runoutVote     bool
	startTotal     int

	actions []ActionRecord
	clock   quartz.Clock
	logger  zerolog.Logger
}

// NewHand deals a new hand: antes, blinds, then hole cards from deck.
// Participants with an empty stack are skipped.
func NewHand(id string, cfg Config, participants []Participant, deck *poker.Deck, opts ...HandOption) (*Hand, error) {
	hc := defaultHandConfig()
	for _, opt := range opts {
		opt(hc)
	}
	if !cfg.Variant.HasBettingRounds() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Variant)
	}
	if cfg.BigBlind <= 0 || cfg.SmallBlind < 0 || cfg.Ante < 0 || cfg.SmallBlind > cfg.BigBlind {
		return nil, fmt.Errorf("%w: blinds %d/%d ante %d", ErrInvalidConfig, cfg.SmallBlind, cfg.BigBlind, cfg.Ante)
	}
	if deck == nil {
		return nil, fmt.Errorf("%w: no deck", ErrInvalidConfig)
	}

	var players []*Player
	for _, p := range participants {
		if p.Stack <= 0 {
			continue
		}
		players = append(players, &Player{Seat: p.Seat, PlayerID: p.PlayerID, StartStack: p.Stack, Stack: p.Stack})
	}
	if len(players) < 2 {
		return nil, ErrNotEnoughPlayers
	}
	slices.SortFunc(players, func(a, b *Player) int { return a.Seat - b.Seat })
	for i := 1; i < len(players); i++ {
		if players[i].Seat == players[i-1].Seat {
			return nil, fmt.Errorf("%w: seat %d dealt twice", ErrInvalidConfig, players[i].Seat)
		}
	}
	if players[0].Seat < 0 {
		return nil, fmt.Errorf("%w: negative seat", ErrInvalidConfig)
	}
	if cfg.TableSize == 0 {
		cfg.TableSize = players[len(players)-1].Seat + 1
	}
	if players[len(players)-1].Seat >= cfg.TableSize {
		return nil, fmt.Errorf("%w: seat outside table of %d", ErrInvalidConfig, cfg.TableSize)
	}
	button := slices.IndexFunc(players, func(p *Player) bool { return p.Seat == cfg.Button })
	if button < 0 {
		return nil, fmt.Errorf("%w: button seat %d not dealt in", ErrInvalidConfig, cfg.Button)
	}
	need := len(players)*cfg.Variant.HoleCards() + 5
	if deck.CardsRemaining() < need {
		return nil, fmt.Errorf("%w: need %d cards, have %d", ErrDeckExhausted, need, deck.CardsRemaining())
	}

	h := &Hand{
		id:             id,
		cfg:            cfg,
		players:        players,
		button:         button,
		deck:           deck,
		street:         Preflop,
		bet:            newBetting(len(players), cfg.BigBlind),
		finalAggressor: -1,
		votes:          make(map[int]int),
		mandatedRuns:   hc.mandatedRuns,
		runoutVote:     hc.runoutVote,
		clock:          hc.clock,
		logger:         hc.logger.With().Str("hand_id", id).Logger(),
	}
	for _, p := range players {
		h.startTotal += p.Stack
	}

	n := len(players)
	if n == 2 {
		// heads-up: the button posts the small blind
		h.sb, h.bb = button, (button+1)%n
	} else {
		h.sb, h.bb = (button+1)%n, (button+2)%n
	}

	h.postAntes()
	h.post(h.sb, cfg.SmallBlind, RecordSmallBlind)
	h.post(h.bb, cfg.BigBlind, RecordBigBlind)
	h.bet.currentBet = cfg.BigBlind
	h.dealHoleCards()

	for i, p := range players {
		h.bet.pending[i] = p.CanAct()
	}
	first := (h.bb + 1) % n
	if n == 2 {
		// heads-up: the big blind acts first before the flop
		first = h.bb
	}
	h.toAct = first
	h.logger.Debug().Int("button", cfg.Button).Int("players", n).Msg("Hand dealt")
	if err := h.advance(first); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hand) postAntes() {
	if h.cfg.Ante == 0 {
		return
	}
	for k := range h.players {
		p := h.players[(h.sb+k)%len(h.players)]
		// antes are dead money and never count toward the current bet
		amount := min(h.cfg.Ante, p.Stack)
		p.Stack -= amount
		p.Total += amount
		if p.Stack == 0 {
			p.Status = StatusAllIn
		}
		h.record(RecordAnte, p.Seat, amount, 0, false)
	}
}

func (h *Hand) post(i, amount int, kind string) {
	p := h.players[i]
	if p.Stack == 0 {
		return
	}
	h.record(kind, p.Seat, p.commit(amount), 0, false)
}

func (h *Hand) dealHoleCards() {
	n := len(h.players)
	for range h.cfg.Variant.HoleCards() {
		for k := range n {
			p := h.players[(h.sb+k)%n]
			c, _ := h.deck.DealOne()
			p.Hole = append(p.Hole, c)
		}
	}
}

func (h *Hand) record(kind string, seat, amount, to int, auto bool) {
	h.actions = append(h.actions, ActionRecord{
		Type:   kind,
		Seat:   seat,
		Amount: amount,
		To:     to,
		Street: h.street,
		Time:   h.clock.Now(),
		Auto:   auto,
	})
}

// ID returns the hand identifier.
func (h *Hand) ID() string { return h.id }

// Config returns the settings the hand was dealt with.
func (h *Hand) Config() Config { return h.cfg }

// Phase returns the lifecycle phase.
func (h *Hand) Phase() Phase { return h.phase }

// Street returns the current betting round.
func (h *Hand) Street() Street { return h.street }

// Board returns the community cards dealt so far on the first run.
func (h *Hand) Board() []poker.Card {
	if len(h.runouts) > 0 {
		return slices.Clone(h.runouts[0])
	}
	return slices.Clone(h.board)
}

// Runouts returns every completed board. It is empty until betting ends.
func (h *Hand) Runouts() [][]poker.Card {
	out := make([][]poker.Card, len(h.runouts))
	for i, b := range h.runouts {
		out[i] = slices.Clone(b)
	}
	return out
}

// ToAct returns the seat due to act, or -1 when no decision is pending.
func (h *Hand) ToAct() int {
	if h.phase != PhaseBetting || h.toAct < 0 {
		return -1
	}
	return h.players[h.toAct].Seat
}

// Seq increments every time the action moves. Together with the hand id it
// identifies a single decision.
func (h *Hand) Seq() uint64 { return h.seq }

// Players returns a snapshot of every participant.
func (h *Hand) Players() []Player {
	out := make([]Player, len(h.players))
	for i, p := range h.players {
		out[i] = p.clone()
	}
	return out
}

// Actions returns the ordered action log.
func (h *Hand) Actions() []ActionRecord { return slices.Clone(h.actions) }

// Pots returns the pots built from the contributions so far.
func (h *Hand) Pots() []pot.Pot {
	pots, _ := pot.Build(h.contributions())
	return pots
}

func (h *Hand) contributions() []pot.Contribution {
	out := make([]pot.Contribution, len(h.players))
	for i, p := range h.players {
		out[i] = pot.Contribution{
			Seat:   p.Seat,
			Amount: p.Total,
			Folded: p.Status == StatusFolded,
			AllIn:  p.Status == StatusAllIn,
		}
	}
	return out
}

func (h *Hand) index(seat int) int {
	return slices.IndexFunc(h.players, func(p *Player) bool { return p.Seat == seat })
}

// Options returns the legal choices for the player to act.
func (h *Hand) Options() (Options, bool) {
	if h.ToAct() < 0 {
		return Options{}, false
	}
	return h.options(h.toAct), true
}

func (h *Hand) options(i int) Options {
	p := h.players[i]
	toCall := h.owed(i)
	o := Options{Seat: p.Seat, ToCall: min(toCall, p.Stack), Actions: []Action{Fold}}
	if toCall == 0 {
		o.Actions = append(o.Actions, Check)
	} else {
		o.Actions = append(o.Actions, Call)
	}
	maxTo := p.Bet + p.Stack
	if h.bet.canRaise(i) && maxTo > h.bet.currentBet && h.opponentsCanAct(i) {
		o.Actions = append(o.Actions, Raise)
		o.MinRaiseTo = min(h.bet.currentBet+h.bet.minRaise, maxTo)
		o.MaxRaiseTo = maxTo
	}
	if p.Stack > 0 && (p.Stack <= toCall || funk.Contains(o.Actions, Raise)) {
		o.Actions = append(o.Actions, AllIn)
	}
	return o
}

// owed is what player i must add to stay in. Facing only all-in opponents
// that is their largest bet, even when a short blind left it below the
// current bet.
func (h *Hand) owed(i int) int {
	target := h.bet.currentBet
	if !h.opponentsCanAct(i) {
		target = 0
		for j, p := range h.players {
			if j != i && p.InHand() {
				target = max(target, p.Bet)
			}
		}
	}
	return max(target-h.players[i].Bet, 0)
}

func (h *Hand) opponentsCanAct(i int) bool {
	for j, p := range h.players {
		if j != i && p.CanAct() {
			return true
		}
	}
	return false
}

// Apply performs an action for seat. For Raise, amount is the street total
// to raise to. Rejected actions leave the hand unchanged.
func (h *Hand) Apply(seat int, action Action, amount int) error {
	return h.apply(seat, action, amount, false)
}

// TimeoutAction is the automatic decision for a seat whose clock expired:
// check when nothing is owed, otherwise fold.
func (h *Hand) TimeoutAction(seat int) Action {
	i := h.index(seat)
	if i < 0 || h.owed(i) == 0 {
		return Check
	}
	return Fold
}

// ApplyTimeout applies the automatic decision for seat.
func (h *Hand) ApplyTimeout(seat int) (Action, error) {
	action := h.TimeoutAction(seat)
	return action, h.apply(seat, action, 0, true)
}

func (h *Hand) apply(seat int, action Action, amount int, auto bool) error {
	if h.phase != PhaseBetting {
		return ErrBettingClosed
	}
	if h.toAct < 0 || h.players[h.toAct].Seat != seat {
		return fmt.Errorf("%w: seat %d, waiting on %d", ErrOutOfTurn, seat, h.ToAct())
	}
	i := h.toAct
	p := h.players[i]
	opts := h.options(i)
	if !funk.Contains(opts.Actions, action) {
		return fmt.Errorf("%w: %s not allowed (to call %d)", ErrInvalidAction, action, opts.ToCall)
	}

	moved, to := 0, 0
	switch action {
	case Fold:
		p.Status = StatusFolded
	case Check:
	case Call:
		moved = p.commit(opts.ToCall)
	case Raise:
		maxTo := p.Bet + p.Stack
		if amount > maxTo {
			return fmt.Errorf("%w: raise to %d with %d behind", ErrExceedsStack, amount, maxTo)
		}
		if amount < opts.MinRaiseTo || amount <= h.bet.currentBet {
			return fmt.Errorf("%w: raise to %d, minimum %d", ErrRaiseTooSmall, amount, opts.MinRaiseTo)
		}
		moved = p.commit(amount - p.Bet)
		to = p.Bet
		h.bet.raiseTo(i, p.Bet, h.live)
	case AllIn:
		moved = p.commit(p.Stack)
		if p.Bet > h.bet.currentBet {
			to = p.Bet
			h.bet.raiseTo(i, p.Bet, h.live)
		}
	}
	h.bet.markActed(i)
	h.record(action.String(), seat, moved, to, auto)
	h.logger.Debug().
		Int("seat", seat).
		Str("action", action.String()).
		Int("amount", moved).
		Bool("auto", auto).
		Str("street", h.street.String()).
		Msg("Action applied")

	if err := h.verifyChips(); err != nil {
		return err
	}
	return h.advance((i + 1) % len(h.players))
}

func (h *Hand) live(i int) bool { return h.players[i].CanAct() }

// advance moves action to the next pending player at or after from, or ends
// the street.
func (h *Hand) advance(from int) error {
	if h.countInHand() == 1 {
		h.finishBetting()
		return nil
	}
	if !h.streetComplete() {
		n := len(h.players)
		for k := range n {
			i := (from + k) % n
			if h.players[i].CanAct() && h.bet.pending[i] {
				h.toAct = i
				h.seq++
				return nil
			}
		}
	}
	return h.endStreet()
}

// streetComplete reports whether every live player has matched the bet and
// nobody owes a decision. A lone live player facing only all-in opponents
// has nothing left to decide once the bet is matched.
func (h *Hand) streetComplete() bool {
	for i, p := range h.players {
		if !p.CanAct() {
			continue
		}
		if h.owed(i) > 0 {
			return false
		}
		if h.bet.pending[i] && h.opponentsCanAct(i) {
			return false
		}
	}
	return true
}

func (h *Hand) countInHand() int {
	n := 0
	for _, p := range h.players {
		if p.InHand() {
			n++
		}
	}
	return n
}

func (h *Hand) countCanAct() int {
	n := 0
	for _, p := range h.players {
		if p.CanAct() {
			n++
		}
	}
	return n
}

func (h *Hand) endStreet() error {
	if h.bet.lastAggressor >= 0 {
		h.finalAggressor = h.players[h.bet.lastAggressor].Seat
	} else {
		h.finalAggressor = -1
	}
	for _, p := range h.players {
		p.Bet = 0
	}
	if h.street == River {
		h.street = Showdown
		h.runouts = [][]poker.Card{slices.Clone(h.board)}
		h.finishBetting()
		return nil
	}
	if h.countCanAct() <= 1 {
		return h.runOut()
	}

	h.street++
	cards := h.deck.Deal(h.street.boardSize() - len(h.board))
	if cards == nil {
		return fmt.Errorf("%w: dealing %s", ErrDeckExhausted, h.street)
	}
	h.board = append(h.board, cards...)
	h.bet.reset(len(h.players), h.cfg.BigBlind)
	for i, p := range h.players {
		h.bet.pending[i] = p.CanAct()
	}
	h.logger.Debug().Str("street", h.street.String()).Str("board", poker.FormatCards(h.board)).Msg("Street dealt")
	// the small blind seat (the button when heads-up) opens every later street
	return h.advance(h.sb)
}

// runOut ends betting with the board incomplete. When a vote was asked for
// and someone has yet to choose, the hand waits in PhaseRunout; otherwise
// the board is dealt straight away.
func (h *Hand) runOut() error {
	if h.runoutVote && h.mandatedRuns <= 1 && h.RunoutLimit() > 1 && len(h.PendingVotes()) > 0 {
		h.phase = PhaseRunout
		h.toAct = -1
		h.seq++
		h.logger.Debug().Ints("voters", h.PendingVotes()).Msg("Runout vote opened")
		return nil
	}
	return h.dealRunouts()
}

// RunoutLimit is the most runs the undealt deck can supply for the rest of
// the board, capped at MaxRuns.
func (h *Hand) RunoutLimit() int {
	needed := 5 - len(h.board)
	if needed <= 0 {
		return 1
	}
	return max(1, min(MaxRuns, h.deck.CardsRemaining()/needed))
}

// dealRunouts deals the rest of the board once per agreed run, from the
// same undealt remainder of the deck.
func (h *Hand) dealRunouts() error {
	needed := 5 - len(h.board)
	runs := min(h.agreedRuns(), h.RunoutLimit())
	h.runouts = make([][]poker.Card, runs)
	for r := range runs {
		extra := h.deck.Deal(needed)
		if extra == nil && needed > 0 {
			return fmt.Errorf("%w: runout %d", ErrDeckExhausted, r+1)
		}
		h.runouts[r] = append(slices.Clone(h.board), extra...)
	}
	h.logger.Debug().Int("runs", runs).Msg("Board run out")
	h.street = Showdown
	h.finishBetting()
	return nil
}

func (h *Hand) finishBetting() {
	if len(h.runouts) == 0 {
		h.runouts = [][]poker.Card{slices.Clone(h.board)}
	}
	h.phase = PhaseShowdown
	h.toAct = -1
	h.seq++
}

// VoteRuns records a contender's request to run the board n times. The
// board is run n times only if every contender asks for the same n. Votes
// are taken while betting and during a runout vote; the last outstanding
// vote deals the board.
func (h *Hand) VoteRuns(seat, n int) error {
	if h.phase != PhaseBetting && h.phase != PhaseRunout {
		return ErrBettingClosed
	}
	i := h.index(seat)
	if i < 0 || !h.players[i].InHand() || n < 1 || n > MaxRuns {
		return fmt.Errorf("%w: seat %d asked for %d", ErrInvalidVote, seat, n)
	}
	h.votes[seat] = n
	if h.phase == PhaseRunout && len(h.PendingVotes()) == 0 {
		return h.dealRunouts()
	}
	return nil
}

// PendingVotes returns the contenders who have not said how many times to
// run the board, in seat order.
func (h *Hand) PendingVotes() []int {
	var out []int
	for _, p := range h.players {
		if _, ok := h.votes[p.Seat]; p.InHand() && !ok {
			out = append(out, p.Seat)
		}
	}
	return out
}

// CloseRunoutVote deals the board with the votes cast so far. A contender
// who never voted counts as asking for one run.
func (h *Hand) CloseRunoutVote() error {
	if h.phase != PhaseRunout {
		return ErrNoRunoutVote
	}
	return h.dealRunouts()
}

func (h *Hand) agreedRuns() int {
	if h.mandatedRuns > 1 {
		return h.mandatedRuns
	}
	agreed := 0
	for _, p := range h.players {
		if !p.InHand() {
			continue
		}
		v, ok := h.votes[p.Seat]
		if !ok || (agreed != 0 && v != agreed) {
			return 1
		}
		agreed = v
	}
	return max(agreed, 1)
}

func (h *Hand) verifyChips() error {
	total := 0
	for _, p := range h.players {
		if p.Stack < 0 || p.Total < 0 {
			return fmt.Errorf("%w: seat %d has stack %d committed %d", ErrInvariantViolation, p.Seat, p.Stack, p.Total)
		}
		total += p.Stack + p.Total
	}
	if total != h.startTotal {
		return fmt.Errorf("%w: %d chips in hand, started with %d", ErrInvariantViolation, total, h.startTotal)
	}
	return nil
}
