package broadcast

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Deliver(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestQueuePreservesOrder(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	q := NewQueue(sink, 1024, zerolog.Nop())
	for i := range 500 {
		require.True(t, q.Publish(Event{Type: ActionTaken, TableID: "t1", Amount: i, Seat: -1}))
	}
	q.Close()

	got := sink.snapshot()
	require.Len(t, got, 500)
	for i, ev := range got {
		assert.Equal(t, i, ev.Amount)
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	sink := SinkFunc(func(Event) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})
	q := NewQueue(sink, 1, zerolog.Nop())

	require.True(t, q.Publish(Event{Type: HandStarted}))
	<-started
	require.True(t, q.Publish(Event{Type: ActionTaken}), "fills the buffer")
	assert.False(t, q.Publish(Event{Type: ActionTaken}), "publishing never blocks")
	assert.Equal(t, uint64(1), q.Dropped())

	close(release)
	q.Close()
	assert.False(t, q.Publish(Event{Type: ActionTaken}), "closed queue rejects events")
}

func TestQueueCountsSinkFailures(t *testing.T) {
	t.Parallel()

	q := NewQueue(SinkFunc(func(Event) error { return errors.New("viewer gone") }), 8, zerolog.Nop())
	q.Publish(Event{Type: HandStarted})
	q.Publish(Event{Type: ActionTaken})
	q.Close()
	assert.Equal(t, uint64(2), q.Failed())
}

func TestMultiSink(t *testing.T) {
	t.Parallel()

	a, b := &recordingSink{}, &recordingSink{}
	failing := SinkFunc(func(Event) error { return errors.New("boom") })

	err := Multi(a, nil, failing, b).Deliver(Event{Type: LevelChanged, Level: 3})
	assert.EqualError(t, err, "boom")
	assert.Len(t, a.snapshot(), 1)
	assert.Len(t, b.snapshot(), 1)

	assert.Same(t, a, Multi(nil, a))
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))
	require.NoError(t, sink.Deliver(Event{Type: SeatEliminated, TableID: "t1", Seat: 0, Reason: "busted"}))

	out := buf.String()
	assert.Contains(t, out, `"message":"seat_eliminated"`)
	assert.Contains(t, out, `"seat":0`)
	assert.Contains(t, out, `"reason":"busted"`)
}
