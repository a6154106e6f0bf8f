package table

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thoas/go-funk"

	"github.com/lox/pokerfloor/internal/broadcast"
	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/gameid"
	"github.com/lox/pokerfloor/internal/handhistory"
	"github.com/lox/pokerfloor/internal/randutil"
	"github.com/lox/pokerfloor/internal/shuffle"
	"github.com/lox/pokerfloor/poker"
)

type shuffleFunc func(ctx context.Context, req shuffle.Request) (*poker.Deck, error)

func (f shuffleFunc) Shuffle(ctx context.Context, req shuffle.Request) (*poker.Deck, error) {
	return f(ctx, req)
}

// stacked deals the given cards first, then the rest of the deck in order.
func stacked(cards string) Shuffler {
	top := poker.MustParseCards(cards)
	return shuffleFunc(func(_ context.Context, req shuffle.Request) (*poker.Deck, error) {
		order := slices.Clone(top)
		for _, c := range poker.OrderedCards(req.Variant) {
			if !slices.Contains(order, c) {
				order = append(order, c)
			}
		}
		return poker.NewDeckFromCards(order), nil
	})
}

type eventLog struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (l *eventLog) Publish(ev broadcast.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return true
}

func (l *eventLog) ofType(typ broadcast.Type) []broadcast.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return funk.Filter(l.events, func(ev broadcast.Event) bool { return ev.Type == typ }).([]broadcast.Event)
}

type observerLog struct {
	mu      sync.Mutex
	reports []Report
	stopped []Phase
}

func (o *observerLog) HandSettled(r Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, r)
}

func (o *observerLog) TableStopped(_ string, phase Phase, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = append(o.stopped, phase)
}

func (o *observerLog) snapshot() ([]Report, []Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.reports), slices.Clone(o.stopped)
}

type recorderLog struct {
	mu        sync.Mutex
	records   []handhistory.Record
	snapshots []handhistory.Snapshot
}

func (r *recorderLog) Record(rec handhistory.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorderLog) Snapshot(s handhistory.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorderLog) recorded() []handhistory.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.records)
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	table    *Table
	clock    *quartz.Mock
	events   *eventLog
	observer *observerLog
	recorder *recorderLog
}

func newHarness(t *testing.T, cfg Config, shuffler Shuffler, players ...Player) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	h := &harness{
		t:        t,
		ctx:      ctx,
		clock:    quartz.NewMock(t),
		events:   &eventLog{},
		observer: &observerLog{},
		recorder: &recorderLog{},
	}
	if cfg.ID == "" {
		cfg.ID = "t1"
	}
	if cfg.Level == (Level{}) {
		cfg.Level = Level{Number: 1, SmallBlind: 5, BigBlind: 10}
	}
	if cfg.ActionClock == 0 {
		cfg.ActionClock = 10 * time.Second
	}
	h.table = New(cfg,
		WithClock(h.clock),
		WithShuffler(shuffler),
		WithPublisher(h.events),
		WithRecorder(h.recorder),
		WithObserver(h.observer),
		WithHandIDs(gameid.NewGenerator("hand", randutil.NewReader(1))),
	)
	done := make(chan error, 1)
	go func() { done <- h.table.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	for i, p := range players {
		_, err := h.table.Seat(ctx, p, i)
		require.NoError(t, err)
	}
	return h
}

func (h *harness) start() {
	require.NoError(h.t, h.table.Start(h.ctx))
}

func (h *harness) state() State {
	st, err := h.table.State(h.ctx)
	require.NoError(h.t, err)
	return st
}

// waitTurn waits until seat is asked to act and returns its token.
func (h *harness) waitTurn(seat int) Token {
	h.t.Helper()
	var tok Token
	require.Eventually(h.t, func() bool {
		st := h.state()
		tok = st.Token
		return st.ToAct == seat
	}, 5*time.Second, time.Millisecond, "waiting for seat %d", seat)
	return tok
}

func (h *harness) act(seat int, action game.Action, amount int) {
	h.t.Helper()
	require.NoError(h.t, h.table.Submit(h.ctx, h.waitTurn(seat), action, amount))
}

func chips(stacks ...int) []Player {
	players := make([]Player, len(stacks))
	for i, s := range stacks {
		players[i] = Player{ID: fmt.Sprintf("p%d", i), Stack: s}
	}
	return players
}

func TestFirstHandPostsBlindsAndPrompts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, stacked(""), chips(1000, 1000, 1000)...)
	h.start()
	h.waitTurn(0)

	st := h.state()
	assert.Equal(t, PhaseBetting, st.Phase)
	assert.Equal(t, 0, st.Button)
	assert.Equal(t, 1, st.HandsPlayed)
	assert.Equal(t, []int{1000, 995, 990}, funk.Map(st.Seats, func(s SeatState) int { return s.Stack }))

	blinds := h.events.ofType(broadcast.BlindPosted)
	require.Len(t, blinds, 2)
	assert.Equal(t, game.RecordSmallBlind, blinds[0].Action)
	assert.Equal(t, "p1", blinds[0].Player)
	assert.Equal(t, 10, blinds[1].Amount)
}

func TestActionAfterTimeoutIsStale(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, stacked(""), chips(1000, 1000, 1000)...)
	h.start()
	late := h.waitTurn(0)

	h.clock.Advance(10 * time.Second).MustWait(h.ctx)
	h.waitTurn(1)

	err := h.table.Submit(h.ctx, late, game.Call, 0)
	assert.ErrorIs(t, err, ErrStaleAction)

	timeouts := h.events.ofType(broadcast.PlayerTimedOut)
	require.Len(t, timeouts, 1)
	assert.Equal(t, 0, timeouts[0].Seat)
	assert.Equal(t, "fold", timeouts[0].Action)
	assert.Equal(t, "timeout", timeouts[0].Reason)
}

func TestTimeBank(t *testing.T) {
	t.Parallel()

	t.Run("charged for the time used", func(t *testing.T) {
		t.Parallel()
		players := chips(1000, 1000, 1000)
		players[0].TimeBank = 20 * time.Second
		h := newHarness(t, Config{}, stacked(""), players...)
		h.start()
		tok := h.waitTurn(0)

		h.clock.Advance(10 * time.Second).MustWait(h.ctx)
		assert.Equal(t, 0, h.state().ToAct, "time bank keeps the turn open")
		h.clock.Advance(5 * time.Second).MustWait(h.ctx)

		require.NoError(t, h.table.Submit(h.ctx, tok, game.Call, 0))
		assert.Equal(t, 15*time.Second, h.state().Seats[0].TimeBank)
	})

	t.Run("exhausted then timed out", func(t *testing.T) {
		t.Parallel()
		players := chips(1000, 1000, 1000)
		players[0].TimeBank = 20 * time.Second
		h := newHarness(t, Config{}, stacked(""), players...)
		h.start()
		h.waitTurn(0)

		h.clock.Advance(10 * time.Second).MustWait(h.ctx)
		h.state()
		h.clock.Advance(20 * time.Second).MustWait(h.ctx)
		h.waitTurn(1)

		st := h.state()
		assert.Zero(t, st.Seats[0].TimeBank)
		assert.Len(t, h.events.ofType(broadcast.PlayerTimedOut), 1)
	})
}

func TestInvalidActionKeepsTurn(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, stacked(""), chips(1000, 1000, 1000)...)
	h.start()
	tok := h.waitTurn(0)

	err := h.table.Submit(h.ctx, tok, game.Raise, 15)
	assert.ErrorIs(t, err, game.ErrRaiseTooSmall)
	err = h.table.Submit(h.ctx, tok, game.Check, 0)
	assert.ErrorIs(t, err, game.ErrInvalidAction)

	assert.Equal(t, tok, h.state().Token)
	require.NoError(t, h.table.Submit(h.ctx, tok, game.Raise, 30))
	h.waitTurn(1)
}

func TestLevelAppliesFromNextHand(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, stacked(""), chips(1000, 1000)...)
	h.start()
	// heads-up the big blind acts first before the flop
	h.waitTurn(1)

	require.NoError(t, h.table.SetLevel(h.ctx, Level{Number: 2, SmallBlind: 10, BigBlind: 20, Ante: 2}))
	assert.Equal(t, 1, h.state().Level.Number)

	h.act(1, game.Fold, 0)
	require.Eventually(t, func() bool {
		st := h.state()
		return st.HandsPlayed == 2 && st.ToAct >= 0
	}, 5*time.Second, time.Millisecond)

	assert.Equal(t, 2, h.state().Level.Number)
	levels := h.events.ofType(broadcast.LevelChanged)
	require.Len(t, levels, 1)
	assert.Equal(t, 2, levels[0].Level)
	blinds := h.events.ofType(broadcast.BlindPosted)
	assert.Equal(t, 20, blinds[len(blinds)-1].Amount)
}

func TestEliminationReported(t *testing.T) {
	t.Parallel()

	// seat 0 gets 2c 7d, seat 1 gets Ah As
	h := newHarness(t, Config{}, stacked("2c Ah 7d As Kc Qd 9s 5h 3c"), chips(100, 300)...)
	h.start()

	h.act(1, game.AllIn, 0)
	h.act(0, game.AllIn, 0)

	require.Eventually(t, func() bool {
		reports, _ := h.observer.snapshot()
		return len(reports) == 1
	}, 5*time.Second, time.Millisecond)

	reports, _ := h.observer.snapshot()
	assert.Equal(t, []Elimination{{PlayerID: "p0", Seat: 0, StartStack: 100}}, reports[0].Eliminated)
	assert.Equal(t, 1, reports[0].Players)
	assert.Equal(t, 400, reports[0].Chips)

	st := h.state()
	assert.Equal(t, PhaseIdle, st.Phase)
	require.Len(t, st.Seats, 1)
	assert.Equal(t, 400, st.Seats[0].Stack)

	recs := h.recorder.recorded()
	require.Len(t, recs, 1)
	assert.NoError(t, handhistory.Verify(recs[0]))
	assert.Len(t, h.events.ofType(broadcast.SeatEliminated), 1)
}

func TestCashTableRemovesBustedPlayers(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{Cash: true}, stacked("2c Ah 7d As Kc Qd 9s 5h 3c"), chips(100, 300)...)
	h.start()
	h.act(1, game.AllIn, 0)
	h.act(0, game.AllIn, 0)

	require.Eventually(t, func() bool { return len(h.state().Seats) == 1 }, 5*time.Second, time.Millisecond)
	reports, _ := h.observer.snapshot()
	assert.Empty(t, reports)
	left := h.events.ofType(broadcast.PlayerLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "busted", left[0].Reason)
}

func TestHaltsWhenShuffleFails(t *testing.T) {
	t.Parallel()

	broken := shuffleFunc(func(context.Context, shuffle.Request) (*poker.Deck, error) {
		return nil, fmt.Errorf("%w: device gone", shuffle.ErrEntropyUnavailable)
	})
	h := newHarness(t, Config{}, broken, chips(1000, 1000)...)
	h.start()

	require.Eventually(t, func() bool { return h.state().Phase == PhaseHalted }, 5*time.Second, time.Millisecond)
	_, stopped := h.observer.snapshot()
	assert.Equal(t, []Phase{PhaseHalted}, stopped)
	assert.Len(t, h.events.ofType(broadcast.TableHalted), 1)
	assert.Equal(t, 0, h.state().HandsPlayed)

	// players can still leave a halted table
	p, err := h.table.Release(h.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1000, p.Stack)
}

func TestFreezeAndUnfreeze(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, stacked(""), chips(1000, 1000)...)
	h.start()
	require.Eventually(t, func() bool { return h.state().ToAct >= 0 }, 5*time.Second, time.Millisecond)
	frozen := h.state().HandID

	// settlement is the only path to a freeze, so force one on the table goroutine
	require.NoError(t, h.table.do(h.ctx, func() { h.table.freeze(game.ErrInvariantViolation) }))

	st := h.state()
	assert.Equal(t, PhaseFrozen, st.Phase)
	assert.Equal(t, -1, st.ToAct)
	for _, s := range st.Seats {
		assert.Equal(t, 1000, s.Stack, "seat %d keeps its pre-hand stack", s.Seat)
	}
	_, stopped := h.observer.snapshot()
	assert.Equal(t, []Phase{PhaseFrozen}, stopped)
	assert.Len(t, h.events.ofType(broadcast.TableFrozen), 1)

	require.NoError(t, h.table.Unfreeze(h.ctx))
	require.Eventually(t, func() bool {
		st := h.state()
		return st.Phase != PhaseFrozen && st.HandID != "" && st.HandID != frozen
	}, 5*time.Second, time.Millisecond, "dealing resumes with a new hand")
	assert.ErrorIs(t, h.table.Unfreeze(h.ctx), ErrNotFrozen)
}

func TestReleaseNextBigBlindWaitsForHandBoundary(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, stacked(""), chips(1000, 1000, 1000)...)
	h.start()
	h.waitTurn(0)

	released := make(chan Player, 1)
	go func() {
		p, err := h.table.ReleaseNextBigBlind(h.ctx)
		if err == nil {
			released <- p
		}
	}()

	h.act(0, game.Fold, 0)
	select {
	case <-released:
		t.Fatal("player released mid-hand")
	case <-time.After(50 * time.Millisecond):
	}
	h.act(1, game.Fold, 0)

	select {
	case p := <-released:
		// button moves to seat 1, so seat 0 would post the next big blind
		assert.Equal(t, "p0", p.ID)
		assert.Equal(t, 1000, p.Stack)
	case <-h.ctx.Done():
		t.Fatal("release never completed")
	}
	require.Eventually(t, func() bool {
		st := h.state()
		return st.HandsPlayed == 2 && len(st.Seats) == 2
	}, 5*time.Second, time.Millisecond)
}

func TestSeatErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{Seats: 2}, stacked(""), chips(1000)...)
	tests := []struct {
		name   string
		player Player
		seat   int
		err    error
	}{
		{"seat taken", Player{ID: "x", Stack: 100}, 0, ErrSeatTaken},
		{"already seated", Player{ID: "p0", Stack: 100}, 1, ErrAlreadySeated},
		{"no chips", Player{ID: "x", Stack: 0}, 1, ErrInvalidStack},
		{"outside table", Player{ID: "x", Stack: 100}, 2, ErrTableFull},
	}
	for _, tt := range tests {
		_, err := h.table.Seat(h.ctx, tt.player, tt.seat)
		assert.ErrorIs(t, err, tt.err, tt.name)
	}

	n, err := h.table.Seat(h.ctx, Player{ID: "p1", Stack: 100}, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = h.table.Seat(h.ctx, Player{ID: "p2", Stack: 100}, -1)
	assert.ErrorIs(t, err, ErrTableFull)
	assert.ErrorIs(t, h.table.Unfreeze(h.ctx), ErrNotFrozen)
}

// passive checks when it can and folds otherwise.
type passive struct {
	mu      sync.Mutex
	prompts int
}

func (p *passive) Prompt(turn Turn, respond Responder) {
	p.mu.Lock()
	p.prompts++
	p.mu.Unlock()
	action := game.Fold
	if funk.Contains(turn.Options.Actions, game.Check) {
		action = game.Check
	}
	go func() { _ = respond(context.Background(), action, 0) }()
}

func (p *passive) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts
}

func TestAgentsPlayHand(t *testing.T) {
	t.Parallel()

	agent := &passive{}
	players := chips(1000, 1000, 1000)
	for i := range players {
		players[i].Agent = agent
	}
	h := newHarness(t, Config{MaxHands: 1}, stacked(""), players...)
	h.start()

	require.Eventually(t, func() bool { return len(h.recorder.recorded()) == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 2, agent.count())

	shown := h.events.ofType(broadcast.ShowdownResult)
	require.Len(t, shown, 1)
	// the big blind's unmatched 5 comes back before the pot is paid
	assert.Equal(t, map[int]int{2: 10}, shown[0].Payouts)
	assert.Equal(t, []int{1000, 995, 1005}, funk.Map(h.state().Seats, func(s SeatState) int { return s.Stack }))
}

func TestDisconnectedSeatTimesOut(t *testing.T) {
	t.Parallel()

	agent := &passive{}
	players := chips(1000, 1000, 1000)
	players[0].Agent = agent
	h := newHarness(t, Config{}, stacked(""), players...)
	require.NoError(t, h.table.Disconnect(h.ctx, "p0"))
	h.start()
	h.waitTurn(0)

	h.clock.Advance(10 * time.Second).MustWait(h.ctx)
	h.waitTurn(1)
	assert.Zero(t, agent.count())

	timeouts := h.events.ofType(broadcast.PlayerTimedOut)
	require.Len(t, timeouts, 1)
	assert.Equal(t, "disconnected", timeouts[0].Reason)
	assert.Len(t, h.events.ofType(broadcast.PlayerDisconnected), 1)
}

func TestCloseReturnsPlayers(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, stacked(""), chips(1000, 1000, 1000)...)
	h.start()
	h.waitTurn(0)

	closed := make(chan []Player, 1)
	go func() {
		players, err := h.table.Close(h.ctx)
		if err == nil {
			closed <- players
		}
	}()
	h.act(0, game.Fold, 0)
	h.act(1, game.Fold, 0)

	select {
	case players := <-closed:
		assert.Equal(t, []string{"p0", "p1", "p2"}, funk.Map(players, func(p Player) string { return p.ID }))
		assert.Equal(t, 1005, players[2].Stack)
	case <-h.ctx.Done():
		t.Fatal("close never completed")
	}
	<-h.table.Done()
	_, err := h.table.State(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

// shoveOnly moves all in whenever it can, otherwise calls.
type shoveOnly struct{}

func (shoveOnly) Prompt(turn Turn, respond Responder) {
	action := game.Call
	if funk.Contains(turn.Options.Actions, game.AllIn) {
		action = game.AllIn
	}
	go func() { _ = respond(context.Background(), action, 0) }()
}

// shoveAndRun also answers runout votes with a fixed number of runs.
type shoveAndRun struct {
	shoveOnly
	runs int

	mu     sync.Mutex
	offers []RunoutOffer
}

func (a *shoveAndRun) OfferRuns(offer RunoutOffer, vote func(context.Context, int) error) {
	a.mu.Lock()
	a.offers = append(a.offers, offer)
	a.mu.Unlock()
	go func() { _ = vote(context.Background(), a.runs) }()
}

func (a *shoveAndRun) offered() []RunoutOffer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.offers)
}

func (h *harness) waitRecords(n int) []handhistory.Record {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return len(h.recorder.recorded()) == n }, 5*time.Second, time.Millisecond)
	return h.recorder.recorded()
}

func TestAgentsAgreeToRunItTwice(t *testing.T) {
	t.Parallel()

	a, b := &shoveAndRun{runs: 2}, &shoveAndRun{runs: 2}
	players := chips(100, 100)
	players[0].Agent, players[1].Agent = a, b
	h := newHarness(t, Config{RunoutVote: 10 * time.Second, MaxHands: 1}, stacked(""), players...)
	h.start()

	rec := h.waitRecords(1)[0]
	require.Len(t, rec.Boards, 2)
	assert.NotEqual(t, rec.Boards[0], rec.Boards[1])
	assert.Len(t, h.events.ofType(broadcast.RunoutOffered), 1)
	assert.Len(t, h.events.ofType(broadcast.RunoutVoted), 2)

	for _, agent := range []*shoveAndRun{a, b} {
		offers := agent.offered()
		require.Len(t, offers, 1)
		assert.Equal(t, game.MaxRuns, offers[0].MaxRuns)
		assert.Len(t, offers[0].Hole, 2)
		assert.Equal(t, 200, offers[0].Pot)
	}
}

func TestRunoutVoteTimesOut(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{RunoutVote: 5 * time.Second, MaxHands: 1}, stacked(""), chips(100, 100)...)
	h.start()
	h.act(1, game.AllIn, 0)
	h.act(0, game.Call, 0)

	st := h.state()
	assert.Equal(t, PhaseRunout, st.Phase)
	assert.Equal(t, -1, st.ToAct)
	require.NoError(t, h.table.VoteRuns(h.ctx, "p0", 3))
	assert.ErrorIs(t, h.table.VoteRuns(h.ctx, "p1", 0), game.ErrInvalidVote)
	assert.ErrorIs(t, h.table.castVote(h.ctx, Token{HandID: st.HandID}, 1, 3), ErrStaleAction)
	assert.Empty(t, h.recorder.recorded(), "still waiting on seat 1")

	h.clock.Advance(5 * time.Second).MustWait(h.ctx)
	rec := h.waitRecords(1)[0]
	assert.Len(t, rec.Boards, 1, "a silent seat runs the board once")
	assert.Len(t, h.events.ofType(broadcast.RunoutVoted), 1)
}

func TestRunoutVoteSkippedWithoutVoters(t *testing.T) {
	t.Parallel()

	players := chips(100, 100)
	players[0].Agent = &shoveAndRun{runs: 2}
	players[1].Agent = shoveOnly{}
	h := newHarness(t, Config{RunoutVote: time.Hour, MaxHands: 1}, stacked(""), players...)
	h.start()

	rec := h.waitRecords(1)[0]
	assert.Len(t, rec.Boards, 1)
	assert.Empty(t, h.events.ofType(broadcast.RunoutOffered))
	assert.Empty(t, players[0].Agent.(*shoveAndRun).offered())
}
