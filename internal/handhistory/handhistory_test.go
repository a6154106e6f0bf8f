package handhistory

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/poker"
)

// playSidePotHand deals a three-way all-in with a main and a side pot.
func playSidePotHand(t *testing.T) *game.Result {
	t.Helper()
	// deal order starts at the small blind (seat 1)
	order := poker.MustParseCards("Kh Qh Ah Kd Qd Ad 2c 7d 9h Js 3c")
	for _, c := range poker.OrderedCards(poker.Holdem) {
		if !slices.Contains(order, c) {
			order = append(order, c)
		}
	}
	cfg := game.Config{Variant: poker.Holdem, SmallBlind: 5, BigBlind: 10, Button: 0, TableSize: 6}
	players := []game.Participant{
		{Seat: 0, PlayerID: "alice", Stack: 100},
		{Seat: 1, PlayerID: "bob", Stack: 200},
		{Seat: 2, PlayerID: "carol", Stack: 300},
	}
	h, err := game.NewHand("hand-1", cfg, players, poker.NewDeckFromCards(order), game.WithClock(quartz.NewMock(t)))
	require.NoError(t, err)
	require.NoError(t, h.Apply(0, game.AllIn, 0))
	require.NoError(t, h.Apply(1, game.AllIn, 0))
	require.NoError(t, h.Apply(2, game.Call, 0))
	res, err := h.Settle()
	require.NoError(t, err)
	return res
}

func playFoldedHand(t *testing.T) *game.Result {
	t.Helper()
	cfg := game.Config{Variant: poker.Omaha, SmallBlind: 5, BigBlind: 10, Ante: 1, Button: 2, TableSize: 6}
	players := []game.Participant{
		{Seat: 0, PlayerID: "alice", Stack: 500},
		{Seat: 2, PlayerID: "bob", Stack: 500},
		{Seat: 4, PlayerID: "carol", Stack: 500},
	}
	h, err := game.NewHand("hand-2", cfg, players, poker.NewDeckFromCards(poker.OrderedCards(poker.Omaha)), game.WithClock(quartz.NewMock(t)))
	require.NoError(t, err)
	require.NoError(t, h.Apply(2, game.Raise, 30))
	require.NoError(t, h.Apply(4, game.Fold, 0))
	require.NoError(t, h.Apply(0, game.Fold, 0))
	res, err := h.Settle()
	require.NoError(t, err)
	return res
}

func TestFromResult(t *testing.T) {
	t.Parallel()

	rec := FromResult("tbl-1", 3, playSidePotHand(t))

	assert.Equal(t, "hand-1", rec.HandID)
	assert.Equal(t, "tbl-1", rec.TableID)
	assert.Equal(t, "holdem", rec.Variant)
	assert.Equal(t, 3, rec.Level)
	assert.Equal(t, [][]string{{"2c", "7d", "9h", "Js", "3c"}}, rec.Boards)
	require.Len(t, rec.Seats, 3)

	alice, ok := rec.FindSeat(0)
	require.True(t, ok)
	assert.Equal(t, Seat{
		Seat: 0, Player: "alice", StartStack: 100, FinishStack: 300,
		Hole: []string{"Ah", "Ad"}, Revealed: true, Won: 300,
	}, alice)

	require.Len(t, rec.Pots, 2)
	assert.Equal(t, 300, rec.Pots[0].Amount)
	assert.Equal(t, "Pair", rec.Pots[0].Awards[0].Hand)
	assert.Equal(t, []int{1, 2}, rec.Pots[1].Eligible)
	assert.Equal(t, "small_blind", rec.Actions[0].Type)
	assert.Equal(t, "preflop", rec.Actions[0].Street)
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	recs := []Record{
		FromResult("tbl-1", 1, playSidePotHand(t)),
		FromResult("tbl-1", 1, playFoldedHand(t)),
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, recs[0]))
	require.NoError(t, Encode(&buf, recs[1]), "appending keeps the file valid")

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range recs {
		assert.Equal(t, recs[i].HandID, got[i].HandID)
		assert.Equal(t, recs[i].Seats, got[i].Seats)
		assert.Equal(t, recs[i].Pots, got[i].Pots)
		assert.Equal(t, recs[i].Boards, got[i].Boards)
		assert.Len(t, got[i].Actions, len(recs[i].Actions))
		assert.True(t, recs[i].Time.Equal(got[i].Time))
		assert.NoError(t, Verify(got[i]))
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result func(*testing.T) *game.Result
		tamper func(*Record)
	}{
		{"wrong winner", playSidePotHand, func(r *Record) {
			r.Seats[0].Won, r.Seats[1].Won = r.Seats[1].Won, r.Seats[0].Won
		}},
		{"chips created", playSidePotHand, func(r *Record) { r.Seats[2].FinishStack += 10 }},
		{"pot amount", playSidePotHand, func(r *Record) { r.Pots[1].Amount = 150 }},
		{"board changed", playSidePotHand, func(r *Record) { r.Boards[0][0] = "Kc" }},
		{"uncalled bet kept", playFoldedHand, func(r *Record) {
			for i := range r.Seats {
				r.Seats[i].Uncalled = 0
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := FromResult("tbl", 1, tt.result(t))
			require.NoError(t, Verify(rec))
			tt.tamper(&rec)
			assert.ErrorIs(t, Verify(rec), ErrMismatch)
		})
	}
}

func TestRecorderFlushesOnSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRecorder(RecorderConfig{Dir: dir, FlushHands: 2, Clock: quartz.NewMock(t)}, zerolog.Nop())
	t.Cleanup(func() { _ = r.Close() })

	rec := FromResult("tbl-1", 1, playSidePotHand(t))
	r.Record(rec)
	r.Record(rec)

	require.Eventually(t, func() bool {
		hands, err := ReadFile(r.HandsPath("tbl-1"))
		return err == nil && len(hands) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRecorderFlushesOnInterval(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dir := t.TempDir()
	clock := quartz.NewMock(t)
	r := NewRecorder(RecorderConfig{Dir: dir, FlushInterval: time.Second, Clock: clock}, zerolog.Nop())
	t.Cleanup(func() { _ = r.Close() })

	r.Record(FromResult("tbl-1", 1, playFoldedHand(t)))
	r.Snapshot(Snapshot{TableID: "tbl-1", Level: 1, Seats: []SeatSnapshot{{Seat: 0, Player: "alice", Stack: 500}}})

	clock.Advance(time.Second).MustWait(ctx)
	require.Eventually(t, func() bool {
		hands, err := ReadFile(r.HandsPath("tbl-1"))
		return err == nil && len(hands) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := os.Stat(r.SnapshotPath("tbl-1"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	var snap Snapshot
	_, err := toml.DecodeFile(r.SnapshotPath("tbl-1"), &snap)
	require.NoError(t, err)
	assert.Equal(t, "alice", snap.Seats[0].Player)
}

func TestRecorderDisablesAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	// a regular file where the directory should be makes every flush fail
	blocker := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	r := NewRecorder(RecorderConfig{Dir: blocker, MaxFailures: 3, Clock: quartz.NewMock(t)}, zerolog.Nop())
	t.Cleanup(func() { _ = r.Close() })

	rec := FromResult("tbl-1", 1, playFoldedHand(t))
	r.Record(rec)
	for range 2 {
		assert.Error(t, r.Flush())
		assert.False(t, r.Disabled("tbl-1"))
	}
	assert.Error(t, r.Flush())
	assert.True(t, r.Disabled("tbl-1"))

	r.Record(rec)
	assert.NoError(t, r.Flush(), "a disabled table has nothing to write")
}

func TestReadFileMissing(t *testing.T) {
	t.Parallel()

	hands, err := ReadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Empty(t, hands)
}
