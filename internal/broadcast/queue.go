package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Sink receives delivered events. A Sink shared by several queues must be
// safe for concurrent use.
type Sink interface {
	Deliver(Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Deliver(ev Event) error { return f(ev) }

// Queue is an ordered, bounded, asynchronous event stream, normally one per
// table. When the buffer is full new events are dropped and counted.
type Queue struct {
	events chan Event
	sink   Sink
	logger zerolog.Logger
	done   chan struct{}

	seq     atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts a queue delivering to sink.
func NewQueue(sink Sink, size int, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	q := &Queue{
		events: make(chan Event, size),
		sink:   sink,
		logger: logger.With().Str("component", "broadcast").Logger(),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Publish stamps ev with the next sequence number and queues it.
func (q *Queue) Publish(ev Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	ev.Seq = q.seq.Add(1)
	select {
	case q.events <- ev:
		return true
	default:
		if q.dropped.Add(1) == 1 {
			q.logger.Warn().Str("table_id", ev.TableID).Msg("Broadcast queue full, dropping events")
		}
		return false
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Failed returns the number of events the sink rejected.
func (q *Queue) Failed() uint64 { return q.failed.Load() }

// Close stops accepting events and waits for queued ones to be delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.events)
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for ev := range q.events {
		if q.sink == nil {
			continue
		}
		if err := q.sink.Deliver(ev); err != nil {
			q.failed.Add(1)
			q.logger.Warn().Err(err).Str("type", ev.Type.String()).Uint64("seq", ev.Seq).Msg("Event delivery failed")
		}
	}
}
