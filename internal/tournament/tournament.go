// Package tournament runs a multi-table tournament: it seats entrants,
// advances the blind clock, balances and consolidates tables between hands
// and keeps the chip ledger.
package tournament

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/pokerfloor/internal/broadcast"
	"github.com/lox/pokerfloor/internal/gameid"
	"github.com/lox/pokerfloor/internal/table"
	"github.com/lox/pokerfloor/poker"
)

var (
	ErrRegistrationClosed = errors.New("tournament: registration closed")
	ErrDuplicateEntrant   = errors.New("tournament: already registered")
	ErrNotEnoughEntrants  = errors.New("tournament: at least two entrants required")
	ErrInvalidConfig      = errors.New("tournament: invalid configuration")
	// ErrChipLedger means chips were created or destroyed somewhere.
	ErrChipLedger = errors.New("tournament: chip ledger mismatch")
)

// Status is the tournament's lifecycle stage.
type Status int

const (
	StatusRegistering Status = iota
	StatusRunning
	StatusFinalTable
	StatusComplete
)

func (s Status) String() string {
	return [...]string{"registering", "running", "final_table", "complete"}[s]
}

// Level is one step of the blind schedule.
type Level struct {
	SmallBlind int
	BigBlind   int
	Ante       int
	Duration   time.Duration
}

// Config is fixed when the tournament is created.
type Config struct {
	ID            string
	Variant       poker.Variant
	StartingStack int
	SeatsPerTable int
	Levels        []Level
	ActionClock   time.Duration
	TimeBank      time.Duration
	MandatedRuns  int
	// RunoutVote is how long contenders get to agree on running an all-in
	// board more than once. Zero always runs it once.
	RunoutVote   time.Duration
	HandInterval time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.StartingStack <= 0:
		return fmt.Errorf("%w: starting stack %d", ErrInvalidConfig, c.StartingStack)
	case c.SeatsPerTable < 2:
		return fmt.Errorf("%w: %d seats per table", ErrInvalidConfig, c.SeatsPerTable)
	case len(c.Levels) == 0:
		return fmt.Errorf("%w: no blind levels", ErrInvalidConfig)
	case !c.Variant.HasBettingRounds():
		return fmt.Errorf("%w: %s has no betting rounds", ErrInvalidConfig, c.Variant)
	}
	for i, l := range c.Levels {
		if l.BigBlind <= 0 || l.SmallBlind < 0 || l.SmallBlind > l.BigBlind || l.Ante < 0 || l.Duration <= 0 {
			return fmt.Errorf("%w: level %d", ErrInvalidConfig, i+1)
		}
	}
	return nil
}

// Entrant is a registered player.
type Entrant struct {
	ID    string
	Agent table.Agent
}

// Standing is a player's finishing place. Place 1 is the winner.
type Standing struct {
	PlayerID string
	Place    int
}

// Option configures a Tournament.
type Option func(*Tournament)

func WithClock(c quartz.Clock) Option { return func(t *Tournament) { t.clock = c } }

func WithLogger(l zerolog.Logger) Option { return func(t *Tournament) { t.logger = l } }

func WithShuffler(s table.Shuffler) Option { return func(t *Tournament) { t.shuffler = s } }

func WithPublisher(p broadcast.Publisher) Option { return func(t *Tournament) { t.events = p } }

func WithRecorder(r table.Recorder) Option { return func(t *Tournament) { t.recorder = r } }

// WithHandIDs sets the generator for hand ids.
func WithHandIDs(g *gameid.Generator) Option { return func(t *Tournament) { t.ids = g } }

// Tournament is created with New, filled with Register and played with Run.
type Tournament struct {
	cfg      Config
	clock    quartz.Clock
	logger   zerolog.Logger
	shuffler table.Shuffler
	events   broadcast.Publisher
	recorder table.Recorder
	ids      *gameid.Generator

	mu        sync.Mutex
	status    Status
	entrants  []Entrant
	level     int
	standings []Standing
	inbox     []message
	notify    chan struct{}
	byID      map[string]*table.Table

	// owned by the controller goroutine
	tables    []*entry
	remaining int
	total     int
	lvlTimer  *quartz.Timer
}

// New creates a tournament open for registration.
func New(cfg Config, opts ...Option) (*Tournament, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = gameid.NewGenerator("trn", nil).Generate()
	}
	t := &Tournament{
		cfg:    cfg,
		clock:  quartz.NewReal(),
		logger: zerolog.Nop(),
		events: broadcast.Discard{},
		notify: make(chan struct{}, 1),
		byID:   make(map[string]*table.Table),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.ids == nil {
		t.ids = gameid.NewGenerator("hand", nil)
	}
	t.logger = t.logger.With().Str("component", "tournament").Str("tournament_id", cfg.ID).Logger()
	return t, nil
}

// ID returns the tournament id.
func (t *Tournament) ID() string { return t.cfg.ID }

// Register adds an entrant. Registration closes when Run starts.
func (t *Tournament) Register(e Entrant) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusRegistering {
		return ErrRegistrationClosed
	}
	if slices.ContainsFunc(t.entrants, func(x Entrant) bool { return x.ID == e.ID }) {
		return fmt.Errorf("%w: %s", ErrDuplicateEntrant, e.ID)
	}
	t.entrants = append(t.entrants, e)
	return nil
}

// Status returns the current lifecycle stage.
func (t *Tournament) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Level returns the current blind level, numbered from 1.
func (t *Tournament) Level() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level + 1
}

// Standings returns finishing places decided so far, best first.
func (t *Tournament) Standings() []Standing {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := slices.Clone(t.standings)
	slices.SortFunc(out, func(a, b Standing) int { return a.Place - b.Place })
	return out
}

func (t *Tournament) setStatus(s Status) {
	t.mu.Lock()
	prev := t.status
	t.status = s
	t.mu.Unlock()
	if prev == s {
		return
	}
	t.logger.Info().Str("from", prev.String()).Str("to", s.String()).Msg("Tournament status changed")
	t.publish(broadcast.Event{Type: broadcast.StatusChanged, Seat: -1, Reason: s.String()})
}

func (t *Tournament) tableLevel(i int) table.Level {
	l := t.cfg.Levels[i]
	return table.Level{Number: i + 1, SmallBlind: l.SmallBlind, BigBlind: l.BigBlind, Ante: l.Ante}
}

// Run seats every entrant, plays until one player holds all the chips and
// returns nil. Tables run concurrently; the controller serializes every
// decision that moves players between them.
func (t *Tournament) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.status != StatusRegistering {
		t.mu.Unlock()
		return ErrRegistrationClosed
	}
	entrants := slices.Clone(t.entrants)
	t.mu.Unlock()
	if len(entrants) < 2 {
		return ErrNotEnoughEntrants
	}
	t.setStatus(StatusRunning)

	g, gctx := errgroup.WithContext(ctx)
	n := (len(entrants) + t.cfg.SeatsPerTable - 1) / t.cfg.SeatsPerTable
	for i := range n {
		e := &entry{table: t.newTable(i)}
		t.tables = append(t.tables, e)
		t.mu.Lock()
		t.byID[e.table.ID()] = e.table
		t.mu.Unlock()
		g.Go(func() error { return e.table.Run(gctx) })
	}
	t.remaining = len(entrants)
	t.total = len(entrants) * t.cfg.StartingStack

	g.Go(func() error {
		if err := t.seatEntrants(gctx, entrants); err != nil {
			return err
		}
		return t.control(gctx)
	})
	return g.Wait()
}

func (t *Tournament) newTable(i int) *table.Table {
	opts := []table.Option{
		table.WithClock(t.clock),
		table.WithLogger(t.logger),
		table.WithPublisher(t.events),
		table.WithObserver(t),
		table.WithHandIDs(t.ids),
	}
	if t.shuffler != nil {
		opts = append(opts, table.WithShuffler(t.shuffler))
	}
	if t.recorder != nil {
		opts = append(opts, table.WithRecorder(t.recorder))
	}
	return table.New(table.Config{
		ID:           fmt.Sprintf("%s-%d", t.cfg.ID, i+1),
		TournamentID: t.cfg.ID,
		Variant:      t.cfg.Variant,
		Seats:        t.cfg.SeatsPerTable,
		Level:        t.tableLevel(0),
		ActionClock:  t.cfg.ActionClock,
		MandatedRuns: t.cfg.MandatedRuns,
		RunoutVote:   t.cfg.RunoutVote,
		HandInterval: t.cfg.HandInterval,
	}, opts...)
}

// seatEntrants deals entrants round-robin so table sizes differ by at most
// one, then starts every table and the blind clock.
func (t *Tournament) seatEntrants(ctx context.Context, entrants []Entrant) error {
	for i, e := range entrants {
		dst := t.tables[i%len(t.tables)]
		p := table.Player{ID: e.ID, Stack: t.cfg.StartingStack, TimeBank: t.cfg.TimeBank, Agent: e.Agent}
		if _, err := dst.table.Seat(ctx, p, -1); err != nil {
			return fmt.Errorf("seat %s: %w", e.ID, err)
		}
		dst.seated(p.Stack)
	}
	for _, e := range t.tables {
		if err := e.table.Start(ctx); err != nil {
			return err
		}
	}
	if len(t.tables) == 1 {
		t.setStatus(StatusFinalTable)
	}
	t.armLevel()
	t.logger.Info().Int("entrants", len(entrants)).Int("tables", len(t.tables)).Msg("Tournament started")
	return nil
}

func (t *Tournament) armLevel() {
	t.mu.Lock()
	i := t.level
	t.mu.Unlock()
	if i+1 >= len(t.cfg.Levels) {
		return
	}
	t.lvlTimer = t.clock.AfterFunc(t.cfg.Levels[i].Duration, func() {
		t.enqueue(levelUp{})
	}, "tournament", "level")
}

// HandSettled implements table.Observer.
func (t *Tournament) HandSettled(r table.Report) { t.enqueue(r) }

// TableStopped implements table.Observer.
func (t *Tournament) TableStopped(tableID string, phase table.Phase, err error) {
	t.enqueue(stopped{tableID: tableID, phase: phase, err: err})
}

func (t *Tournament) publish(ev broadcast.Event) {
	ev.Time = t.clock.Now()
	ev.TournamentID = t.cfg.ID
	t.events.Publish(ev)
}
