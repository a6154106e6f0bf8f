package tournament

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/lox/pokerfloor/internal/broadcast"
	"github.com/lox/pokerfloor/internal/table"
)

type message any

type levelUp struct{}

type stopped struct {
	tableID string
	phase   table.Phase
	err     error
}

type unfrozen struct{ tableID string }

// entry is the controller's view of one table. Counts change when the
// controller moves players and when reports arrive.
type entry struct {
	table   *table.Table
	players int
	chips   int
	// version mirrors the table's seat version after the controller's own
	// moves, so reports sent before a move can be recognised.
	version uint64
	frozen  bool
}

func (e *entry) seated(stack int) {
	e.players++
	e.chips += stack
	e.version++
}

func (e *entry) released(stack int) {
	e.players--
	e.chips -= stack
	e.version++
}

func (t *Tournament) enqueue(m message) {
	t.mu.Lock()
	t.inbox = append(t.inbox, m)
	t.mu.Unlock()
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

func (t *Tournament) drain() []message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.inbox
	t.inbox = nil
	return msgs
}

// Unfreeze voids the frozen hand on a table and lets it deal again.
func (t *Tournament) Unfreeze(ctx context.Context, tableID string) error {
	t.mu.Lock()
	tbl, ok := t.byID[tableID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown table %s", ErrInvalidConfig, tableID)
	}
	if err := tbl.Unfreeze(ctx); err != nil {
		return err
	}
	t.enqueue(unfrozen{tableID: tableID})
	return nil
}

// control is the single goroutine that owns seating decisions.
func (t *Tournament) control(ctx context.Context) error {
	defer func() {
		if t.lvlTimer != nil {
			t.lvlTimer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.notify:
		}
		for _, m := range t.drain() {
			if err := t.handle(ctx, m); err != nil {
				return err
			}
		}
		if t.remaining <= 1 {
			return t.finish(ctx)
		}
		if err := t.rebalance(ctx); err != nil {
			return err
		}
	}
}

func (t *Tournament) handle(ctx context.Context, m message) error {
	switch m := m.(type) {
	case table.Report:
		return t.handleReport(m)
	case levelUp:
		return t.nextLevel(ctx)
	case stopped:
		e := t.find(m.tableID)
		if e == nil {
			return nil
		}
		if m.phase == table.PhaseFrozen {
			e.frozen = true
			t.logger.Error().Err(m.err).Str("table_id", m.tableID).Msg("Table frozen, awaiting review")
			return nil
		}
		t.logger.Error().Err(m.err).Str("table_id", m.tableID).Msg("Table halted, moving its players")
		return t.closeTable(ctx, e)
	case unfrozen:
		if e := t.find(m.tableID); e != nil {
			e.frozen = false
		}
	}
	return nil
}

func (t *Tournament) handleReport(r table.Report) error {
	if len(r.Eliminated) > 0 {
		places := placeEliminations(t.remaining, r.Eliminated)
		t.remaining -= len(places)
		t.mu.Lock()
		t.standings = append(t.standings, places...)
		t.mu.Unlock()
		for _, p := range places {
			t.logger.Info().Str("player", p.PlayerID).Int("place", p.Place).Int("remaining", t.remaining).Msg("Player finished")
		}
	}
	e := t.find(r.TableID)
	if e == nil {
		return nil
	}
	e.players -= len(r.Eliminated)
	if r.SeatVersion != e.version {
		// sent before a move the controller has already accounted for
		return nil
	}
	e.players = r.Players
	if r.Chips != e.chips {
		t.logger.Error().Str("table_id", r.TableID).Int("reported", r.Chips).Int("expected", e.chips).Msg("Chip ledger mismatch")
		return fmt.Errorf("%w: table %s holds %d, ledger says %d", ErrChipLedger, r.TableID, r.Chips, e.chips)
	}
	return t.checkLedger()
}

// checkLedger verifies that table totals add up to every chip issued.
func (t *Tournament) checkLedger() error {
	sum := 0
	for _, e := range t.tables {
		sum += e.chips
	}
	if sum != t.total {
		t.logger.Error().Int("sum", sum).Int("total", t.total).Msg("Chip ledger mismatch")
		return fmt.Errorf("%w: tables hold %d of %d", ErrChipLedger, sum, t.total)
	}
	return nil
}

// placeEliminations ranks players knocked out in the same hand: the one who
// started the hand with fewer chips finishes lower.
func placeEliminations(remaining int, elims []table.Elimination) []Standing {
	sorted := slices.Clone(elims)
	slices.SortStableFunc(sorted, func(a, b table.Elimination) int {
		return cmp.Compare(a.StartStack, b.StartStack)
	})
	out := make([]Standing, len(sorted))
	for i, e := range sorted {
		out[i] = Standing{PlayerID: e.PlayerID, Place: remaining - i}
	}
	return out
}

func (t *Tournament) nextLevel(ctx context.Context) error {
	t.mu.Lock()
	if t.level+1 >= len(t.cfg.Levels) {
		t.mu.Unlock()
		return nil
	}
	t.level++
	i := t.level
	t.mu.Unlock()

	lvl := t.tableLevel(i)
	for _, e := range t.tables {
		if err := e.table.SetLevel(ctx, lvl); err != nil {
			return fmt.Errorf("set level on %s: %w", e.table.ID(), err)
		}
	}
	t.logger.Info().Int("level", lvl.Number).Int("small_blind", lvl.SmallBlind).Int("big_blind", lvl.BigBlind).
		Int("ante", lvl.Ante).Msg("Blind level raised")
	t.publish(broadcast.Event{Type: broadcast.LevelChanged, Seat: -1, Level: lvl.Number, Amount: lvl.BigBlind})
	t.armLevel()
	return nil
}

func (t *Tournament) find(tableID string) *entry {
	for _, e := range t.tables {
		if e.table.ID() == tableID {
			return e
		}
	}
	return nil
}

// rebalance closes surplus tables, then evens out table sizes one player
// at a time.
func (t *Tournament) rebalance(ctx context.Context) error {
	for {
		if e := t.surplusTable(); e != nil {
			if err := t.closeTable(ctx, e); err != nil {
				return err
			}
			continue
		}
		from, to, ok := planMove(t.tables)
		if !ok {
			break
		}
		if err := t.move(ctx, from, to); err != nil {
			return err
		}
	}
	if len(t.tables) == 1 && t.Status() == StatusRunning {
		t.setStatus(StatusFinalTable)
	}
	return nil
}

// surplusTable returns the highest-index table that can be closed because
// the remaining players fit on fewer tables.
func (t *Tournament) surplusTable() *entry {
	need := (t.remaining + t.cfg.SeatsPerTable - 1) / t.cfg.SeatsPerTable
	if len(t.tables) <= max(need, 1) {
		return nil
	}
	for i := len(t.tables) - 1; i >= 0; i-- {
		if !t.tables[i].frozen {
			return t.tables[i]
		}
	}
	return nil
}

// planMove picks the most and least populated tables when they differ by
// two or more players. Frozen tables take no part.
func planMove(tables []*entry) (from, to *entry, ok bool) {
	for _, e := range tables {
		if e.frozen {
			continue
		}
		if from == nil || e.players > from.players {
			from = e
		}
		if to == nil || e.players < to.players {
			to = e
		}
	}
	if from == nil || from.players-to.players < 2 {
		return nil, nil, false
	}
	return from, to, true
}

// move takes the player due the big blind next at from and seats them at to.
func (t *Tournament) move(ctx context.Context, from, to *entry) error {
	p, err := from.table.ReleaseNextBigBlind(ctx)
	if errors.Is(err, table.ErrNotSeated) {
		from.players = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("release from %s: %w", from.table.ID(), err)
	}
	from.released(p.Stack)
	if _, err := to.table.Seat(ctx, p, -1); err != nil {
		return fmt.Errorf("seat %s at %s: %w", p.ID, to.table.ID(), err)
	}
	to.seated(p.Stack)
	t.logger.Info().Str("player", p.ID).Str("from", from.table.ID()).Str("to", to.table.ID()).Msg("Player moved")
	t.publish(broadcast.Event{Type: broadcast.PlayerMoved, Seat: -1, TableID: to.table.ID(), Player: p.ID, Amount: p.Stack, Reason: from.table.ID()})
	return nil
}

// closeTable closes e at its next hand boundary and spreads its players,
// biggest stack first, over the least populated remaining tables.
func (t *Tournament) closeTable(ctx context.Context, e *entry) error {
	players, err := e.table.Close(ctx)
	if err != nil {
		return fmt.Errorf("close %s: %w", e.table.ID(), err)
	}
	t.tables = slices.DeleteFunc(t.tables, func(x *entry) bool { return x == e })
	t.logger.Info().Str("table_id", e.table.ID()).Int("players", len(players)).Msg("Table consolidated")

	slices.SortStableFunc(players, func(a, b table.Player) int { return cmp.Compare(b.Stack, a.Stack) })
	for _, p := range players {
		dst := leastPopulated(t.tables)
		if dst == nil {
			return fmt.Errorf("close %s: no table left for %s", e.table.ID(), p.ID)
		}
		if _, err := dst.table.Seat(ctx, p, -1); err != nil {
			return fmt.Errorf("seat %s at %s: %w", p.ID, dst.table.ID(), err)
		}
		dst.seated(p.Stack)
		t.publish(broadcast.Event{Type: broadcast.PlayerMoved, Seat: -1, TableID: dst.table.ID(), Player: p.ID, Amount: p.Stack, Reason: e.table.ID()})
	}
	return t.checkLedger()
}

func leastPopulated(tables []*entry) *entry {
	var best *entry
	for _, e := range tables {
		if e.frozen {
			continue
		}
		if best == nil || e.players < best.players {
			best = e
		}
	}
	return best
}

// finish closes the last tables and records the winner.
func (t *Tournament) finish(ctx context.Context) error {
	var winners []table.Player
	for _, e := range t.tables {
		players, err := e.table.Close(ctx)
		if err != nil {
			return fmt.Errorf("close %s: %w", e.table.ID(), err)
		}
		winners = append(winners, players...)
	}
	t.tables = nil
	winners = slices.DeleteFunc(winners, func(p table.Player) bool { return p.Stack == 0 })
	if len(winners) != 1 || winners[0].Stack != t.total {
		return fmt.Errorf("%w: %d players left holding chips at the end", ErrChipLedger, len(winners))
	}
	t.mu.Lock()
	t.standings = append(t.standings, Standing{PlayerID: winners[0].ID, Place: 1})
	t.mu.Unlock()
	t.logger.Info().Str("winner", winners[0].ID).Msg("Tournament complete")
	t.setStatus(StatusComplete)
	return nil
}
