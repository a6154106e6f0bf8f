package table

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/pokerfloor/internal/broadcast"
	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/handhistory"
	"github.com/lox/pokerfloor/internal/shuffle"
	"github.com/lox/pokerfloor/poker"
)

type clockStage int

const (
	stageClock clockStage = iota
	stageBank
)

// turn is the decision the table is waiting on.
type turn struct {
	token     Token
	seat      int
	stage     clockStage
	deadline  time.Time
	bankStart time.Time
	timer     *quartz.Timer
}

// ballot is an open runout vote.
type ballot struct {
	token    Token
	deadline time.Time
	timer    *quartz.Timer
}

func (t *Table) readyToDeal() bool {
	if !t.started || t.phase != PhaseIdle || t.hand != nil {
		return false
	}
	if t.cfg.MaxHands > 0 && t.handsPlayed >= t.cfg.MaxHands {
		return false
	}
	if len(t.dealable()) < 2 {
		return false
	}
	if t.cfg.HandInterval <= 0 || t.dealDue {
		return true
	}
	if t.dealTimer == nil {
		t.dealTimer = t.clock.AfterFunc(t.cfg.HandInterval, func() {
			t.post(func() {
				t.dealDue = true
				t.dealTimer = nil
			})
		}, "table", "deal")
	}
	return false
}

func (t *Table) deal() {
	t.dealDue = false
	if t.pendingLevel != nil {
		t.level = *t.pendingLevel
		t.pendingLevel = nil
		t.logger.Info().Int("level", t.level.Number).Int("small_blind", t.level.SmallBlind).
			Int("big_blind", t.level.BigBlind).Int("ante", t.level.Ante).Msg("Blind level applied")
		t.publish(broadcast.Event{Type: broadcast.LevelChanged, Seat: -1, Level: t.level.Number, Amount: t.level.BigBlind})
	}

	t.phase = PhaseDealing
	dealt := t.dealable()
	t.button = nextButton(dealt, t.button)
	handID := t.handIDs.Generate()

	deck, err := t.shuffler.Shuffle(t.ctx, shuffle.Request{TableID: t.cfg.ID, HandID: handID, Variant: t.cfg.Variant})
	if err != nil {
		t.halt(handID, err)
		return
	}
	cfg := game.Config{
		Variant:    t.cfg.Variant,
		SmallBlind: t.level.SmallBlind,
		BigBlind:   t.level.BigBlind,
		Ante:       t.level.Ante,
		Button:     t.button,
		TableSize:  t.cfg.Seats,
	}
	opts := []game.HandOption{
		game.WithClock(t.clock),
		game.WithLogger(t.logger),
		game.WithMandatedRuns(t.cfg.MandatedRuns),
	}
	if t.cfg.RunoutVote > 0 {
		opts = append(opts, game.WithRunoutVote())
	}
	h, err := game.NewHand(handID, cfg, t.participants(dealt), deck, opts...)
	if err != nil {
		t.halt(handID, err)
		return
	}

	t.hand = h
	t.handsPlayed++
	t.published, t.boardLen = 0, 0
	t.logger.Info().Str("hand_id", handID).Int("button", t.button).Int("players", len(dealt)).Msg("Hand started")
	t.publish(broadcast.Event{Type: broadcast.HandStarted, Seat: t.button, Level: t.level.Number})
	t.progress()
}

// progress publishes what the last step changed, then prompts the next
// seat or settles.
func (t *Table) progress() {
	h := t.hand
	t.publishActions()
	if board := h.Board(); h.Phase() == game.PhaseBetting && len(board) > t.boardLen {
		t.boardLen = len(board)
		t.publish(broadcast.Event{Type: broadcast.StreetDealt, Seat: -1, Street: h.Street().String(), Board: poker.CardStrings(board)})
	}

	switch h.Phase() {
	case game.PhaseBetting:
		t.phase = PhaseBetting
		t.prompt()
	case game.PhaseRunout:
		t.phase = PhaseRunout
		t.openBallot()
	case game.PhaseShowdown:
		t.phase = PhaseShowdown
		t.settle()
	}
}

func (t *Table) publishActions() {
	actions := t.hand.Actions()
	for _, a := range actions[t.published:] {
		typ := broadcast.ActionTaken
		switch a.Type {
		case game.RecordAnte, game.RecordSmallBlind, game.RecordBigBlind:
			typ = broadcast.BlindPosted
		}
		t.publish(broadcast.Event{
			Type:   typ,
			Seat:   a.Seat,
			Player: t.playerAt(a.Seat),
			Action: a.Type,
			Amount: a.Amount,
			Street: a.Street.String(),
		})
	}
	t.published = len(actions)
}

func (t *Table) playerAt(seatNo int) string {
	if s, ok := t.seats[seatNo]; ok {
		return s.player.ID
	}
	return ""
}

// prompt starts the clock for the seat to act and asks its agent.
func (t *Table) prompt() {
	h := t.hand
	tok := Token{HandID: h.ID(), Seq: h.Seq()}
	if t.turn != nil && t.turn.token == tok {
		return
	}
	t.stopTurn()
	s := t.seats[h.ToAct()]
	now := t.clock.Now()
	t.turn = &turn{token: tok, seat: s.number, stage: stageClock, deadline: now.Add(t.cfg.ActionClock + s.player.TimeBank)}
	t.turn.timer = t.clock.AfterFunc(t.cfg.ActionClock, func() {
		t.post(func() { t.expire(tok) })
	}, "table", "action")
	if !s.disconnected {
		t.promptAgent(s, t.turn)
	}
}

func (t *Table) promptAgent(s *seat, tn *turn) {
	if s.player.Agent == nil {
		return
	}
	h := t.hand
	opts, ok := h.Options()
	if !ok {
		return
	}
	turn := Turn{
		Token:    tn.token,
		TableID:  t.cfg.ID,
		Seat:     s.number,
		Variant:  t.cfg.Variant,
		Street:   h.Street(),
		Board:    h.Board(),
		Options:  opts,
		Deadline: tn.deadline,
	}
	for _, p := range h.Players() {
		turn.Pot += p.Total
		if p.Seat == s.number {
			turn.Hole = p.Hole
			turn.Stack = p.Stack
		}
	}
	tok := tn.token
	s.player.Agent.Prompt(turn, func(ctx context.Context, action game.Action, amount int) error {
		return t.Submit(ctx, tok, action, amount)
	})
}

func (t *Table) submit(tok Token, action game.Action, amount int) error {
	if t.hand == nil || t.turn == nil || t.turn.token != tok {
		t.logger.Warn().Str("hand_id", tok.HandID).Uint64("seq", tok.Seq).Str("action", action.String()).Msg("Stale action rejected")
		return fmt.Errorf("%w: hand %s seq %d", ErrStaleAction, tok.HandID, tok.Seq)
	}
	s := t.seats[t.turn.seat]
	if err := t.hand.Apply(s.number, action, amount); err != nil {
		if rejected(err) {
			t.logger.Debug().Err(err).Int("seat", s.number).Msg("Action rejected")
			return err
		}
		t.freeze(err)
		return err
	}
	if t.turn.stage == stageBank {
		s.player.TimeBank = max(s.player.TimeBank-t.clock.Now().Sub(t.turn.bankStart), 0)
	}
	t.stopTurn()
	t.progress()
	return nil
}

// expire handles the action clock and then the time bank running out.
func (t *Table) expire(tok Token) {
	if t.turn == nil || t.turn.token != tok || t.hand == nil {
		return
	}
	s := t.seats[t.turn.seat]
	if t.turn.stage == stageClock && s.player.TimeBank > 0 {
		t.turn.stage = stageBank
		t.turn.bankStart = t.clock.Now()
		t.turn.timer = t.clock.AfterFunc(s.player.TimeBank, func() {
			t.post(func() { t.expire(tok) })
		}, "table", "timebank")
		t.logger.Debug().Int("seat", s.number).Dur("bank", s.player.TimeBank).Msg("Time bank started")
		return
	}
	if t.turn.stage == stageBank {
		s.player.TimeBank = 0
	}

	reason := "timeout"
	if s.disconnected {
		reason = "disconnected"
	}
	t.turn = nil
	action, err := t.hand.ApplyTimeout(s.number)
	if err != nil {
		t.freeze(err)
		return
	}
	t.logger.Warn().Int("seat", s.number).Str("player", s.player.ID).Str("action", action.String()).
		Str("reason", reason).Msg("Player timed out")
	t.publish(broadcast.Event{Type: broadcast.PlayerTimedOut, Seat: s.number, Player: s.player.ID, Action: action.String(), Reason: reason})
	t.progress()
}

// openBallot asks the contenders how many times to run the board. The
// board is dealt once everyone has answered or the vote clock runs out.
func (t *Table) openBallot() {
	h := t.hand
	tok := Token{HandID: h.ID(), Seq: h.Seq()}
	if t.ballot != nil && t.ballot.token == tok {
		return
	}
	t.stopBallot()

	pending := h.PendingVotes()
	for _, seatNo := range pending {
		s, ok := t.seats[seatNo]
		if !ok || s.player.Agent == nil {
			continue
		}
		if _, ok := s.player.Agent.(RunVoter); !ok {
			// this seat always runs once, so no agreement is possible
			t.logger.Debug().Int("seat", seatNo).Msg("Runout vote skipped")
			t.finishBallot(h.CloseRunoutVote())
			return
		}
	}

	b := &ballot{token: tok, deadline: t.clock.Now().Add(t.cfg.RunoutVote)}
	b.timer = t.clock.AfterFunc(t.cfg.RunoutVote, func() {
		t.post(func() { t.closeBallot(tok) })
	}, "table", "runout")
	t.ballot = b
	t.publish(broadcast.Event{Type: broadcast.RunoutOffered, Seat: -1, Amount: h.RunoutLimit()})
	for _, seatNo := range pending {
		if s, ok := t.seats[seatNo]; ok && !s.disconnected {
			t.offerRuns(s, b)
		}
	}
}

func (t *Table) offerRuns(s *seat, b *ballot) {
	voter, ok := s.player.Agent.(RunVoter)
	if !ok {
		return
	}
	h := t.hand
	offer := RunoutOffer{
		Token:    b.token,
		TableID:  t.cfg.ID,
		Seat:     s.number,
		Variant:  t.cfg.Variant,
		Board:    h.Board(),
		MaxRuns:  h.RunoutLimit(),
		Deadline: b.deadline,
	}
	for _, p := range h.Players() {
		offer.Pot += p.Total
		if p.Seat == s.number {
			offer.Hole = p.Hole
		}
	}
	tok, seatNo := b.token, s.number
	voter.OfferRuns(offer, func(ctx context.Context, runs int) error {
		return t.castVote(ctx, tok, seatNo, runs)
	})
}

// castVote records an agent's vote for the ballot identified by tok.
func (t *Table) castVote(ctx context.Context, tok Token, seatNo, runs int) error {
	var err error
	if e := t.do(ctx, func() {
		if t.hand == nil || t.ballot == nil || t.ballot.token != tok {
			err = fmt.Errorf("%w: runout vote for hand %s seq %d", ErrStaleAction, tok.HandID, tok.Seq)
			return
		}
		err = t.vote(seatNo, runs)
	}); e != nil {
		return e
	}
	return err
}

// vote records a runout vote. The last outstanding vote deals the board.
func (t *Table) vote(seatNo, runs int) error {
	h := t.hand
	if err := h.VoteRuns(seatNo, runs); err != nil {
		if !rejected(err) {
			t.finishBallot(err)
		}
		return err
	}
	t.publish(broadcast.Event{Type: broadcast.RunoutVoted, Seat: seatNo, Player: t.playerAt(seatNo), Amount: runs})
	if h.Phase() != game.PhaseRunout {
		t.finishBallot(nil)
	}
	return nil
}

// closeBallot deals the board when the vote clock runs out. Silent seats
// count as asking for one run.
func (t *Table) closeBallot(tok Token) {
	if t.hand == nil || t.ballot == nil || t.ballot.token != tok {
		return
	}
	t.logger.Debug().Ints("silent", t.hand.PendingVotes()).Msg("Runout vote timed out")
	t.finishBallot(t.hand.CloseRunoutVote())
}

func (t *Table) finishBallot(err error) {
	t.stopBallot()
	if err != nil {
		t.freeze(err)
		return
	}
	t.progress()
}

func (t *Table) stopBallot() {
	if t.ballot != nil && t.ballot.timer != nil {
		t.ballot.timer.Stop()
	}
	t.ballot = nil
}

func (t *Table) stopTurn() {
	if t.turn != nil && t.turn.timer != nil {
		t.turn.timer.Stop()
	}
	t.turn = nil
}

func (t *Table) stopTimers() {
	t.stopTurn()
	t.stopBallot()
	if t.dealTimer != nil {
		t.dealTimer.Stop()
		t.dealTimer = nil
	}
}

func (t *Table) settle() {
	t.phase = PhaseSettling
	res, err := t.hand.Settle()
	if err != nil {
		t.freeze(err)
		return
	}
	t.publishActions()
	if len(res.Boards) > 1 {
		for i, b := range res.Boards {
			t.publish(broadcast.Event{Type: broadcast.StreetDealt, Seat: -1, Street: game.Showdown.String(),
				Board: poker.CardStrings(b), Reason: fmt.Sprintf("run %d", i+1)})
		}
	}
	ev := broadcast.Event{Type: broadcast.ShowdownResult, Seat: -1, Payouts: res.Payouts}
	if len(res.Boards) > 0 {
		ev.Board = poker.CardStrings(res.Boards[0])
	}
	t.publish(ev)

	for seatNo, stack := range res.FinalStacks {
		if s, ok := t.seats[seatNo]; ok {
			s.player.Stack = stack
		}
	}
	if t.recorder != nil {
		t.recorder.Record(handhistory.FromResult(t.cfg.ID, t.level.Number, res))
	}

	report := Report{TableID: t.cfg.ID, HandID: res.HandID, HandsPlayed: t.handsPlayed}
	for _, seatNo := range res.Busted() {
		s, ok := t.seats[seatNo]
		if !ok {
			continue
		}
		delete(t.seats, seatNo)
		if t.cfg.Cash {
			t.logger.Info().Str("player", s.player.ID).Int("seat", seatNo).Msg("Busted player removed")
			t.publish(broadcast.Event{Type: broadcast.PlayerLeft, Seat: seatNo, Player: s.player.ID, Reason: "busted"})
			continue
		}
		t.logger.Info().Str("player", s.player.ID).Int("seat", seatNo).Msg("Player eliminated")
		t.publish(broadcast.Event{Type: broadcast.SeatEliminated, Seat: seatNo, Player: s.player.ID})
		report.Eliminated = append(report.Eliminated, Elimination{PlayerID: s.player.ID, Seat: seatNo, StartStack: res.StartStacks[seatNo]})
	}
	report.Players = len(t.seats)
	report.Chips = t.chips()
	report.SeatVersion = t.seatVersion

	t.logger.Debug().Str("hand_id", res.HandID).Bool("won_by_fold", res.WonByFold).Msg("Hand settled")
	t.hand = nil
	t.phase = PhaseIdle
	if t.recorder != nil {
		t.recorder.Snapshot(t.snapshot())
	}
	if t.observer != nil && !t.cfg.Cash {
		t.observer.HandSettled(report)
	}
	t.runDeferred()
}

func (t *Table) snapshot() handhistory.Snapshot {
	snap := handhistory.Snapshot{
		TableID:     t.cfg.ID,
		Time:        t.clock.Now(),
		Variant:     t.cfg.Variant.String(),
		Level:       t.level.Number,
		SmallBlind:  t.level.SmallBlind,
		BigBlind:    t.level.BigBlind,
		Ante:        t.level.Ante,
		HandsPlayed: t.handsPlayed,
		Phase:       t.phase.String(),
	}
	for _, s := range t.dealOrder() {
		snap.Seats = append(snap.Seats, handhistory.SeatSnapshot{
			Seat:         s.number,
			Player:       s.player.ID,
			Stack:        s.player.Stack,
			SittingOut:   s.sittingOut,
			Disconnected: s.disconnected,
		})
	}
	return snap
}

// freeze stops play after an invariant violation. The hand stays attached
// for review and the seats keep their stacks from before it.
func (t *Table) freeze(err error) {
	t.stopTurn()
	t.stopBallot()
	t.phase = PhaseFrozen
	t.logger.Error().Err(err).Str("hand_id", t.hand.ID()).Msg("Hand frozen for review")
	t.publish(broadcast.Event{Type: broadcast.TableFrozen, Seat: -1, Reason: err.Error()})
	if t.observer != nil {
		t.observer.TableStopped(t.cfg.ID, t.phase, err)
	}
}

// halt stops dealing for good. Players can still be released or the table
// closed.
func (t *Table) halt(handID string, err error) {
	t.phase = PhaseHalted
	ev := t.logger.Error().Err(err).Str("hand_id", handID)
	if errors.Is(err, shuffle.ErrEntropyUnavailable) {
		ev.Msg("Entropy unavailable, table halted")
	} else {
		ev.Msg("Could not deal, table halted")
	}
	t.publish(broadcast.Event{Type: broadcast.TableHalted, Seat: -1, HandID: handID, Reason: err.Error()})
	if t.observer != nil {
		t.observer.TableStopped(t.cfg.ID, t.phase, err)
	}
	t.runDeferred()
}

func (t *Table) publish(ev broadcast.Event) {
	ev.Time = t.clock.Now()
	ev.TournamentID = t.cfg.TournamentID
	ev.TableID = t.cfg.ID
	if ev.HandID == "" && t.hand != nil {
		ev.HandID = t.hand.ID()
	}
	if !t.events.Publish(ev) {
		t.logger.Debug().Str("type", ev.Type.String()).Msg("Event dropped")
	}
}
