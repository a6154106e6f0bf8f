// Package table runs one poker table as an actor. A single goroutine owns
// the seats and the hand in progress; everything else talks to it through
// its mailbox, so no two operations ever touch the same hand at once.
package table

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/pokerfloor/internal/broadcast"
	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/gameid"
	"github.com/lox/pokerfloor/internal/handhistory"
	"github.com/lox/pokerfloor/internal/shuffle"
	"github.com/lox/pokerfloor/poker"
)

const (
	defaultSeats       = 9
	defaultActionClock = 30 * time.Second
	mailboxSize        = 64
)

// Phase is where the table is in its hand cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDealing
	PhaseBetting
	// PhaseRunout means the betting is over and the contenders are voting
	// on how many times to run the board.
	PhaseRunout
	PhaseShowdown
	PhaseSettling
	// PhaseHalted means the shuffle failed. No further hands are dealt.
	PhaseHalted
	// PhaseFrozen means settlement found an invariant violation. The hand
	// is kept for review until Unfreeze voids it.
	PhaseFrozen
	PhaseClosed
)

func (p Phase) String() string {
	return [...]string{"idle", "dealing", "betting", "runout", "showdown", "settling", "halted", "frozen", "closed"}[p]
}

// Level is a blind level.
type Level struct {
	Number     int
	SmallBlind int
	BigBlind   int
	Ante       int
}

// Config describes a table.
type Config struct {
	ID           string
	TournamentID string
	Variant      poker.Variant
	Seats        int
	Level        Level
	// ActionClock is the time each decision gets before the time bank is
	// drawn on.
	ActionClock time.Duration
	// MandatedRuns deals all-in runouts this many times without a vote.
	MandatedRuns int
	// RunoutVote is how long contenders get to agree on running an all-in
	// board more than once. Zero skips the vote, so only votes cast during
	// the betting count.
	RunoutVote time.Duration
	// Cash tables remove busted players instead of reporting eliminations.
	Cash bool
	// HandInterval pauses between hands.
	HandInterval time.Duration
	// MaxHands stops dealing after this many hands. Zero means no limit.
	MaxHands int
}

// Shuffler provides a freshly shuffled deck for every hand.
type Shuffler interface {
	Shuffle(ctx context.Context, req shuffle.Request) (*poker.Deck, error)
}

// Recorder persists settled hands and seat snapshots. Both calls must
// return without waiting on storage.
type Recorder interface {
	Record(handhistory.Record)
	Snapshot(handhistory.Snapshot)
}

// Observer is told about hand results and stopped tables. Calls are made
// from the table goroutine and must not block or call back into the table.
type Observer interface {
	HandSettled(Report)
	TableStopped(tableID string, phase Phase, err error)
}

// Report summarises a settled hand for the tournament.
type Report struct {
	TableID     string
	HandID      string
	HandsPlayed int
	Players     int
	Chips       int
	// SeatVersion counts every Seat and release so far. A report carrying
	// an older version than the caller's last move predates that move.
	SeatVersion uint64
	Eliminated  []Elimination
}

// Elimination is a player who lost their last chip.
type Elimination struct {
	PlayerID   string
	Seat       int
	StartStack int
}

// Token identifies one pending decision.
type Token struct {
	HandID string
	Seq    uint64
}

// Turn is what an agent is told when it must act.
type Turn struct {
	Token    Token
	TableID  string
	Seat     int
	Variant  poker.Variant
	Street   game.Street
	Hole     []poker.Card
	Board    []poker.Card
	Pot      int
	Stack    int
	Options  game.Options
	Deadline time.Time
}

// Responder submits the decision for the turn it was handed with.
type Responder func(ctx context.Context, action game.Action, amount int) error

// Agent makes decisions for a seat. Prompt is called on the table goroutine
// and must return immediately; the decision is sent later through respond.
type Agent interface {
	Prompt(turn Turn, respond Responder)
}

// RunoutOffer asks a contender how many times to run an all-in board.
type RunoutOffer struct {
	Token    Token
	TableID  string
	Seat     int
	Variant  poker.Variant
	Hole     []poker.Card
	Board    []poker.Card
	Pot      int
	MaxRuns  int
	Deadline time.Time
}

// RunVoter is implemented by agents that take part in runout votes. Like
// Prompt, OfferRuns is called on the table goroutine and must return
// immediately. A seat whose agent lacks it always runs the board once.
type RunVoter interface {
	OfferRuns(offer RunoutOffer, vote func(ctx context.Context, runs int) error)
}

// SeatState is one seat in a State.
type SeatState struct {
	Seat         int
	PlayerID     string
	Stack        int
	TimeBank     time.Duration
	SittingOut   bool
	Disconnected bool
}

// State is a point-in-time copy of the table.
type State struct {
	ID          string
	Phase       Phase
	Level       Level
	HandsPlayed int
	Button      int
	HandID      string
	// ToAct is the seat whose decision is pending, -1 if none.
	ToAct int
	Token Token
	Board []poker.Card
	Seats []SeatState
}

// Option configures a Table.
type Option func(*Table)

func WithClock(c quartz.Clock) Option { return func(t *Table) { t.clock = c } }

func WithLogger(l zerolog.Logger) Option { return func(t *Table) { t.logger = l } }

func WithShuffler(s Shuffler) Option { return func(t *Table) { t.shuffler = s } }

func WithPublisher(p broadcast.Publisher) Option { return func(t *Table) { t.events = p } }

func WithRecorder(r Recorder) Option { return func(t *Table) { t.recorder = r } }

func WithObserver(o Observer) Option { return func(t *Table) { t.observer = o } }

// WithHandIDs sets the generator used to name hands.
func WithHandIDs(g *gameid.Generator) Option { return func(t *Table) { t.handIDs = g } }

// Table is a single table actor. Create it with New, then call Run.
type Table struct {
	cfg      Config
	clock    quartz.Clock
	logger   zerolog.Logger
	shuffler Shuffler
	events   broadcast.Publisher
	recorder Recorder
	observer Observer
	handIDs  *gameid.Generator

	mailbox chan func()
	stopped chan struct{}

	// Everything below is owned by the Run goroutine.
	ctx          context.Context
	phase        Phase
	seats        map[int]*seat
	button       int
	level        Level
	pendingLevel *Level
	started      bool
	handsPlayed  int
	hand         *game.Hand
	turn         *turn
	ballot       *ballot
	published    int
	boardLen     int
	dealDue      bool
	dealTimer    *quartz.Timer
	deferred     []func()
	seatVersion  uint64
}

// New creates a table. It does nothing until Run is called.
func New(cfg Config, opts ...Option) *Table {
	if cfg.Seats <= 0 {
		cfg.Seats = defaultSeats
	}
	if cfg.ActionClock <= 0 {
		cfg.ActionClock = defaultActionClock
	}
	if cfg.ID == "" {
		cfg.ID = gameid.NewGenerator("table", nil).Generate()
	}
	t := &Table{
		cfg:     cfg,
		clock:   quartz.NewReal(),
		logger:  zerolog.Nop(),
		events:  broadcast.Discard{},
		mailbox: make(chan func(), mailboxSize),
		stopped: make(chan struct{}),
		seats:   make(map[int]*seat),
		button:  -1,
		level:   cfg.Level,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.shuffler == nil {
		t.shuffler = shuffle.New(shuffle.WithClock(t.clock), shuffle.WithLogger(t.logger))
	}
	if t.handIDs == nil {
		t.handIDs = gameid.NewGenerator("hand", nil)
	}
	t.logger = t.logger.With().Str("component", "table").Str("table_id", cfg.ID).Logger()
	return t
}

// ID returns the table's id.
func (t *Table) ID() string { return t.cfg.ID }

// Run processes the mailbox and deals hands until the context is cancelled
// or the table is closed.
func (t *Table) Run(ctx context.Context) error {
	t.ctx = ctx
	defer close(t.stopped)
	defer t.stopTimers()

	for {
		if t.readyToDeal() {
			// commands already queued go first
			select {
			case fn := <-t.mailbox:
				fn()
			default:
				t.deal()
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case fn := <-t.mailbox:
				fn()
			}
		}
		if t.phase == PhaseClosed {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// post queues fn on the table goroutine without waiting for it to run.
func (t *Table) post(fn func()) {
	select {
	case t.mailbox <- fn:
	case <-t.stopped:
	}
}

// do runs fn on the table goroutine and waits for it to finish.
func (t *Table) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case t.mailbox <- func() { fn(); close(done) }:
	case <-t.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-t.stopped:
		// fn may have been the command that closed the table
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// atBoundary runs fn now if no hand is in progress, otherwise once the
// current hand has settled.
func (t *Table) atBoundary(fn func()) {
	if t.hand == nil {
		fn()
		return
	}
	t.deferred = append(t.deferred, fn)
}

func (t *Table) runDeferred() {
	for len(t.deferred) > 0 && t.hand == nil {
		fn := t.deferred[0]
		t.deferred = t.deferred[1:]
		fn()
	}
}

type playerReply struct {
	player Player
	err    error
}

// waitBoundary posts fn to run at the next hand boundary and waits for its
// reply.
func (t *Table) waitBoundary(ctx context.Context, fn func() (Player, error)) (Player, error) {
	reply := make(chan playerReply, 1)
	err := t.do(ctx, func() {
		t.atBoundary(func() {
			p, err := fn()
			reply <- playerReply{p, err}
		})
	})
	if err != nil {
		return Player{}, err
	}
	select {
	case r := <-reply:
		return r.player, r.err
	case <-t.stopped:
		select {
		case r := <-reply:
			return r.player, r.err
		default:
			return Player{}, ErrClosed
		}
	case <-ctx.Done():
		return Player{}, ctx.Err()
	}
}

// Start allows the table to begin dealing.
func (t *Table) Start(ctx context.Context) error {
	return t.do(ctx, func() { t.started = true })
}

// Seat sits a player down. A negative seat picks the lowest free one. A
// player seated during a hand is dealt in from the next one.
func (t *Table) Seat(ctx context.Context, p Player, seatNo int) (int, error) {
	var err error
	if e := t.do(ctx, func() { seatNo, err = t.seat(p, seatNo) }); e != nil {
		return -1, e
	}
	return seatNo, err
}

func (t *Table) seat(p Player, n int) (int, error) {
	if p.Stack <= 0 {
		return -1, ErrInvalidStack
	}
	if t.findPlayer(p.ID) != nil {
		return -1, fmt.Errorf("%w: %s", ErrAlreadySeated, p.ID)
	}
	if n < 0 {
		if n = t.freeSeat(); n < 0 {
			return -1, ErrTableFull
		}
	}
	if n >= t.cfg.Seats {
		return -1, fmt.Errorf("%w: seat %d of %d", ErrTableFull, n, t.cfg.Seats)
	}
	if _, ok := t.seats[n]; ok {
		return -1, fmt.Errorf("%w: %d", ErrSeatTaken, n)
	}
	t.seats[n] = &seat{number: n, player: p}
	t.seatVersion++
	t.logger.Info().Str("player", p.ID).Int("seat", n).Int("stack", p.Stack).Msg("Player seated")
	t.publish(broadcast.Event{Type: broadcast.PlayerSeated, Seat: n, Player: p.ID, Amount: p.Stack})
	return n, nil
}

// Release removes a player at the next hand boundary and returns them with
// their stack.
func (t *Table) Release(ctx context.Context, playerID string) (Player, error) {
	return t.waitBoundary(ctx, func() (Player, error) {
		s := t.findPlayer(playerID)
		if s == nil {
			return Player{}, fmt.Errorf("%w: %s", ErrNotSeated, playerID)
		}
		return t.unseat(s, "released"), nil
	})
}

// ReleaseNextBigBlind removes, at the next hand boundary, the player who
// would have posted the next big blind.
func (t *Table) ReleaseNextBigBlind(ctx context.Context) (Player, error) {
	return t.waitBoundary(ctx, func() (Player, error) {
		s := t.nextBigBlind()
		if s == nil {
			return Player{}, ErrNotSeated
		}
		return t.unseat(s, "moved"), nil
	})
}

func (t *Table) unseat(s *seat, reason string) Player {
	delete(t.seats, s.number)
	t.seatVersion++
	t.logger.Info().Str("player", s.player.ID).Int("seat", s.number).Str("reason", reason).Msg("Player left")
	t.publish(broadcast.Event{Type: broadcast.PlayerLeft, Seat: s.number, Player: s.player.ID, Amount: s.player.Stack, Reason: reason})
	return s.player
}

// Disconnect marks a player as network-absent. Their clock keeps running
// and expiry is handled exactly as for a connected player.
func (t *Table) Disconnect(ctx context.Context, playerID string) error {
	return t.setConnected(ctx, playerID, false)
}

// Reconnect clears the disconnected flag and re-prompts the player if the
// table is waiting on them.
func (t *Table) Reconnect(ctx context.Context, playerID string) error {
	return t.setConnected(ctx, playerID, true)
}

func (t *Table) setConnected(ctx context.Context, playerID string, connected bool) error {
	var err error
	e := t.do(ctx, func() {
		s := t.findPlayer(playerID)
		if s == nil {
			err = fmt.Errorf("%w: %s", ErrNotSeated, playerID)
			return
		}
		if s.disconnected == !connected {
			return
		}
		s.disconnected = !connected
		typ := broadcast.PlayerReconnected
		if !connected {
			typ = broadcast.PlayerDisconnected
			t.logger.Warn().Str("player", playerID).Int("seat", s.number).Msg("Player disconnected")
		}
		t.publish(broadcast.Event{Type: typ, Seat: s.number, Player: playerID})
		if connected && t.turn != nil && t.turn.seat == s.number {
			t.promptAgent(s, t.turn)
		}
		if connected && t.ballot != nil && slices.Contains(t.hand.PendingVotes(), s.number) {
			t.offerRuns(s, t.ballot)
		}
	})
	if e != nil {
		return e
	}
	return err
}

// SitOut keeps a seated player out of (or back into) future hands.
func (t *Table) SitOut(ctx context.Context, playerID string, out bool) error {
	var err error
	if e := t.do(ctx, func() {
		s := t.findPlayer(playerID)
		if s == nil {
			err = fmt.Errorf("%w: %s", ErrNotSeated, playerID)
			return
		}
		s.sittingOut = out
	}); e != nil {
		return e
	}
	return err
}

// SetLevel schedules a blind level. It takes effect from the next hand
// dealt, never during one.
func (t *Table) SetLevel(ctx context.Context, l Level) error {
	return t.do(ctx, func() { t.pendingLevel = &l })
}

// Submit applies a decision for the turn identified by tok. Invalid
// decisions leave the turn open with its clock still running.
func (t *Table) Submit(ctx context.Context, tok Token, action game.Action, amount int) error {
	var err error
	if e := t.do(ctx, func() { err = t.submit(tok, action, amount) }); e != nil {
		return e
	}
	return err
}

// VoteRuns records a player's request to run an all-in board n times,
// either ahead of time while betting or during the runout vote.
func (t *Table) VoteRuns(ctx context.Context, playerID string, n int) error {
	var err error
	if e := t.do(ctx, func() {
		s := t.findPlayer(playerID)
		switch {
		case s == nil:
			err = fmt.Errorf("%w: %s", ErrNotSeated, playerID)
		case t.hand == nil || (t.phase != PhaseBetting && t.phase != PhaseRunout):
			err = ErrNoHand
		case t.phase == PhaseRunout:
			err = t.vote(s.number, n)
		default:
			err = t.hand.VoteRuns(s.number, n)
		}
	}); e != nil {
		return e
	}
	return err
}

// State returns a copy of the table's state.
func (t *Table) State(ctx context.Context) (State, error) {
	var st State
	if err := t.do(ctx, func() { st = t.state() }); err != nil {
		return State{}, err
	}
	return st, nil
}

func (t *Table) state() State {
	st := State{
		ID:          t.cfg.ID,
		Phase:       t.phase,
		Level:       t.level,
		HandsPlayed: t.handsPlayed,
		Button:      t.button,
		ToAct:       -1,
	}
	live := make(map[int]int)
	if t.hand != nil {
		st.HandID = t.hand.ID()
		st.Board = t.hand.Board()
		for _, p := range t.hand.Players() {
			live[p.Seat] = p.Stack
		}
	}
	if t.turn != nil {
		st.ToAct = t.turn.seat
		st.Token = t.turn.token
	}
	for _, s := range t.seats {
		ss := SeatState{
			Seat:         s.number,
			PlayerID:     s.player.ID,
			Stack:        s.player.Stack,
			TimeBank:     s.player.TimeBank,
			SittingOut:   s.sittingOut,
			Disconnected: s.disconnected,
		}
		if stack, ok := live[s.number]; ok && t.phase != PhaseFrozen {
			ss.Stack = stack
		}
		st.Seats = append(st.Seats, ss)
	}
	slices.SortFunc(st.Seats, func(a, b SeatState) int { return a.Seat - b.Seat })
	return st
}

// Unfreeze voids a frozen hand. Every seat keeps the stack it had before
// the hand was dealt.
func (t *Table) Unfreeze(ctx context.Context) error {
	var err error
	if e := t.do(ctx, func() {
		if t.phase != PhaseFrozen {
			err = ErrNotFrozen
			return
		}
		t.logger.Warn().Str("hand_id", t.hand.ID()).Msg("Frozen hand voided")
		t.hand, t.turn = nil, nil
		t.phase = PhaseIdle
		t.runDeferred()
	}); e != nil {
		return e
	}
	return err
}

// Close stops the table at the next hand boundary and returns the players
// still seated. A frozen hand is voided.
func (t *Table) Close(ctx context.Context) ([]Player, error) {
	reply := make(chan []Player, 1)
	closeNow := func() {
		var players []Player
		for _, s := range t.dealOrder() {
			players = append(players, s.player)
		}
		t.seats = make(map[int]*seat)
		t.stopTimers()
		t.phase = PhaseClosed
		t.logger.Info().Int("players", len(players)).Msg("Table closed")
		t.publish(broadcast.Event{Type: broadcast.TableClosed, Seat: -1})
		reply <- players
	}
	err := t.do(ctx, func() {
		if t.phase == PhaseFrozen {
			t.hand, t.turn = nil, nil
		}
		t.atBoundary(closeNow)
	})
	if err != nil {
		return nil, err
	}
	select {
	case players := <-reply:
		return players, nil
	case <-t.stopped:
		select {
		case players := <-reply:
			return players, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dealOrder is every seated player ordered by seat.
func (t *Table) dealOrder() []*seat {
	out := make([]*seat, 0, len(t.seats))
	for _, s := range t.seats {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *seat) int { return a.number - b.number })
	return out
}

// Done is closed when Run has returned.
func (t *Table) Done() <-chan struct{} { return t.stopped }
