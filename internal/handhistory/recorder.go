package handhistory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/pokerfloor/internal/fileutil"
)

const (
	handsFilename    = "hands.toml"
	snapshotFilename = "seats.toml"
)

// Snapshot is the latest persisted state of a table's seats.
type Snapshot struct {
	TableID     string         `toml:"table"`
	Time        time.Time      `toml:"time"`
	Variant     string         `toml:"variant"`
	Level       int            `toml:"level"`
	SmallBlind  int            `toml:"small_blind"`
	BigBlind    int            `toml:"big_blind"`
	Ante        int            `toml:"ante"`
	HandsPlayed int            `toml:"hands_played"`
	Phase       string         `toml:"phase"`
	Seats       []SeatSnapshot `toml:"seats"`
}

// SeatSnapshot is one occupied seat.
type SeatSnapshot struct {
	Seat         int    `toml:"seat"`
	Player       string `toml:"player"`
	Stack        int    `toml:"stack"`
	SittingOut   bool   `toml:"sitting_out"`
	Disconnected bool   `toml:"disconnected"`
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Dir           string
	FlushHands    int
	FlushInterval time.Duration
	// MaxFailures is the number of consecutive failed flushes after which a
	// table's recording is disabled and its buffer dropped.
	MaxFailures int
	Clock       quartz.Clock
}

// Recorder buffers hand records per table and flushes them to
// <Dir>/table-<id>/hands.toml when enough hands accumulate or the flush
// interval passes. Record and Snapshot never block on disk.
type Recorder struct {
	cfg    RecorderConfig
	logger zerolog.Logger

	mu       sync.Mutex
	flushMu  sync.Mutex
	tables   map[string]*tableLog
	flushReq chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type tableLog struct {
	dir      string
	buffer   []Record
	snapshot *Snapshot
	failures int
	disabled bool
	dropped  int
}

// NewRecorder creates and starts a recorder.
func NewRecorder(cfg RecorderConfig, logger zerolog.Logger) *Recorder {
	if cfg.Dir == "" {
		cfg.Dir = "hands"
	}
	if cfg.FlushHands <= 0 {
		cfg.FlushHands = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	r := &Recorder{
		cfg:      cfg,
		logger:   logger.With().Str("component", "handhistory").Logger(),
		tables:   make(map[string]*tableLog),
		flushReq: make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	ticker := cfg.Clock.NewTicker(cfg.FlushInterval, "handhistory", "flush")
	r.wg.Add(1)
	go r.run(ticker)
	return r
}

// Record queues a settled hand.
func (r *Recorder) Record(rec Record) {
	r.mu.Lock()
	t := r.table(rec.TableID)
	if t.disabled {
		t.dropped++
		r.mu.Unlock()
		return
	}
	t.buffer = append(t.buffer, rec)
	full := len(t.buffer) >= r.cfg.FlushHands
	r.mu.Unlock()

	if full {
		r.requestFlush()
	}
}

// Snapshot replaces the table's pending seat snapshot.
func (r *Recorder) Snapshot(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(s.TableID)
	if !t.disabled {
		t.snapshot = &s
	}
}

// Disabled reports whether recording stopped for a table after repeated
// flush failures.
func (r *Recorder) Disabled(tableID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[tableID]
	return ok && t.disabled
}

// HandsPath is where a table's hands are written.
func (r *Recorder) HandsPath(tableID string) string {
	return filepath.Join(r.tableDir(tableID), handsFilename)
}

// SnapshotPath is where a table's seat snapshot is written.
func (r *Recorder) SnapshotPath(tableID string) string {
	return filepath.Join(r.tableDir(tableID), snapshotFilename)
}

func (r *Recorder) tableDir(tableID string) string {
	return filepath.Join(r.cfg.Dir, "table-"+tableID)
}

// table must be called with r.mu held.
func (r *Recorder) table(id string) *tableLog {
	t, ok := r.tables[id]
	if !ok {
		t = &tableLog{dir: r.tableDir(id)}
		r.tables[id] = t
	}
	return t
}

// Close stops the background flusher and writes whatever is buffered.
func (r *Recorder) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
	return r.Flush()
}

func (r *Recorder) run(ticker *quartz.Ticker) {
	defer r.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = r.Flush()
		case <-r.flushReq:
			_ = r.Flush()
		case <-r.stop:
			return
		}
	}
}

func (r *Recorder) requestFlush() {
	select {
	case r.flushReq <- struct{}{}:
	default:
	}
}

// Flush writes every table's buffered hands and pending snapshot.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	type pending struct {
		id       string
		dir      string
		hands    []Record
		snapshot *Snapshot
	}
	r.mu.Lock()
	var work []pending
	for id, t := range r.tables {
		if t.disabled || (len(t.buffer) == 0 && t.snapshot == nil) {
			continue
		}
		work = append(work, pending{id: id, dir: t.dir, hands: t.buffer, snapshot: t.snapshot})
		t.buffer, t.snapshot = nil, nil
	}
	r.mu.Unlock()

	var errs []error
	for _, w := range work {
		err := writeTable(w.dir, w.hands, w.snapshot)
		r.handleResult(w.id, w.hands, w.snapshot, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", w.id, err))
		}
	}
	return errors.Join(errs...)
}

// handleResult requeues a failed batch ahead of newer hands, or disables
// the table once it has failed too many times in a row.
func (r *Recorder) handleResult(id string, hands []Record, snap *Snapshot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tables[id]
	if err == nil {
		t.failures = 0
		return
	}
	t.failures++
	r.logger.Error().Err(err).Str("table_id", id).Int("failures", t.failures).Msg("Hand history flush failed")
	if t.failures >= r.cfg.MaxFailures {
		t.dropped += len(hands) + len(t.buffer)
		t.buffer, t.snapshot = nil, nil
		t.disabled = true
		r.logger.Error().Str("table_id", id).Int("dropped_hands", t.dropped).
			Msg("Hand history recording disabled after repeated failures")
		return
	}
	t.buffer = append(hands, t.buffer...)
	if t.snapshot == nil {
		t.snapshot = snap
	}
}

func writeTable(dir string, hands []Record, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if len(hands) > 0 {
		err := fileutil.AppendAtomic(filepath.Join(dir, handsFilename), 0o644, func(w io.Writer) error {
			return Encode(w, hands...)
		})
		if err != nil {
			return err
		}
	}
	if snap != nil {
		err := fileutil.WriteFileAtomic(filepath.Join(dir, snapshotFilename), 0o644, func(w io.Writer) error {
			if err := toml.NewEncoder(w).Encode(snap); err != nil {
				return fmt.Errorf("encode snapshot: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
