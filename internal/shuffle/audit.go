package shuffle

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrAuditClosed is returned when appending to a closed audit log.
var ErrAuditClosed = errors.New("shuffle: audit log closed")

// Entry is one shuffle record. Entries are written once and never amended.
type Entry struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"ts"`
	TableID  string    `json:"table_id"`
	HandID   string    `json:"hand_id"`
	Variant  string    `json:"variant"`
	Sources  []string  `json:"sources"`
	Passes   int       `json:"passes"`
	Cut      int       `json:"cut"`
	DeckSize int       `json:"deck_size"`
}

// AuditLog is an append-only JSON-lines log. Appends enqueue onto a buffered
// channel and a single background writer drains it, so tables never contend
// on the underlying writer.
type AuditLog struct {
	out     zerolog.Logger
	entries chan Entry
	done    chan struct{}
	seq     atomic.Uint64
	written atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewAuditLog starts the background writer. A full buffer applies
// backpressure to Append rather than dropping records.
func NewAuditLog(w io.Writer, buffer int) *AuditLog {
	if buffer <= 0 {
		buffer = 1024
	}
	a := &AuditLog{
		out:     zerolog.New(w),
		entries: make(chan Entry, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Append enqueues an entry, assigning its sequence number.
func (a *AuditLog) Append(ctx context.Context, e Entry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrAuditClosed
	}
	e.Seq = a.seq.Add(1)
	select {
	case a.entries <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Written reports how many entries have reached the writer.
func (a *AuditLog) Written() uint64 {
	return a.written.Load()
}

// Close stops accepting entries and waits for the queue to drain.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.entries)
	a.mu.Unlock()
	<-a.done
	return nil
}

func (a *AuditLog) run() {
	defer close(a.done)
	for e := range a.entries {
		a.out.Log().
			Uint64("seq", e.Seq).
			Str("ts", e.Time.UTC().Format(time.RFC3339Nano)).
			Str("table_id", e.TableID).
			Str("hand_id", e.HandID).
			Str("variant", e.Variant).
			Strs("sources", e.Sources).
			Int("passes", e.Passes).
			Int("cut", e.Cut).
			Int("deck_size", e.DeckSize).
			Msg("shuffle")
		a.written.Add(1)
	}
}

// ReadAudit parses a JSON-lines audit stream for compliance review.
func ReadAudit(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("shuffle: audit line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}
