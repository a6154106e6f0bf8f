// Package config loads tournament definitions from HCL.
//
//	tournament "sunday" {
//	  variant         = "omaha"
//	  starting_stack  = 1500
//	  seats_per_table = 6
//	  action_clock    = "20s"
//
//	  level {
//	    small_blind = 10
//	    big_blind   = 20
//	    duration    = "10m"
//	  }
//	}
//
//	bot "callers" {
//	  strategy = "call"
//	  count    = 4
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/pokerfloor/internal/game"
	"github.com/lox/pokerfloor/internal/tournament"
	"github.com/lox/pokerfloor/poker"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// File is the top level of a configuration file.
type File struct {
	Tournament Tournament `hcl:"tournament,block"`
	Bots       []Bot      `hcl:"bot,block"`
	Royalties  *Royalties `hcl:"royalties,block"`
}

// Tournament describes one tournament.
type Tournament struct {
	Name           string  `hcl:"name,label"`
	Variant        string  `hcl:"variant,optional"`
	Players        int     `hcl:"players,optional"`
	StartingStack  int     `hcl:"starting_stack,optional"`
	SeatsPerTable  int     `hcl:"seats_per_table,optional"`
	ActionClock    string  `hcl:"action_clock,optional"`
	TimeBank       string  `hcl:"time_bank,optional"`
	RunItTimes     int     `hcl:"run_it_times,optional"`
	RunoutVote     string  `hcl:"runout_vote,optional"`
	HandInterval   string  `hcl:"hand_interval,optional"`
	HandHistoryDir string  `hcl:"hand_history_dir,optional"`
	AuditLog       string  `hcl:"audit_log,optional"`
	Levels         []Level `hcl:"level,block"`
}

// Level is one step of the blind schedule.
type Level struct {
	SmallBlind int    `hcl:"small_blind"`
	BigBlind   int    `hcl:"big_blind"`
	Ante       int    `hcl:"ante,optional"`
	Duration   string `hcl:"duration"`
}

// Bot adds simulated entrants playing one strategy.
type Bot struct {
	Name     string `hcl:"name,label"`
	Strategy string `hcl:"strategy"`
	Count    int    `hcl:"count,optional"`
}

// Royalties overrides parts of the open-face bonus schedule. Five-card rows
// are keyed by category (straight, flush, full_house, quads,
// straight_flush); the top row by rank (6 through A for pairs).
type Royalties struct {
	Bottom      map[string]int `hcl:"bottom,optional"`
	Middle      map[string]int `hcl:"middle,optional"`
	BottomRoyal *int           `hcl:"bottom_royal,optional"`
	MiddleRoyal *int           `hcl:"middle_royal,optional"`
	TopPair     map[string]int `hcl:"top_pair,optional"`
	TopTrips    map[string]int `hcl:"top_trips,optional"`
}

// Strategies lists the bot strategy names the simulator knows.
var Strategies = []string{"call", "random", "fold", "allin"}

// DefaultLevels is used when a file has no level blocks.
func DefaultLevels() []Level {
	return []Level{
		{SmallBlind: 10, BigBlind: 20, Duration: "10m"},
		{SmallBlind: 15, BigBlind: 30, Duration: "10m"},
		{SmallBlind: 25, BigBlind: 50, Duration: "10m"},
		{SmallBlind: 50, BigBlind: 100, Duration: "10m"},
		{SmallBlind: 75, BigBlind: 150, Ante: 25, Duration: "10m"},
		{SmallBlind: 100, BigBlind: 200, Ante: 25, Duration: "10m"},
		{SmallBlind: 200, BigBlind: 400, Ante: 50, Duration: "10m"},
	}
}

// Default returns the configuration used when no file exists.
func Default() *File {
	f := &File{Tournament: Tournament{Name: "default"}}
	f.applyDefaults()
	return f
}

// Load reads path. A missing file yields Default.
func Load(path string) (*File, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(src, path)
}

// Parse decodes HCL source, applies defaults and validates the result.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}
	var f File
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) applyDefaults() {
	t := &f.Tournament
	if t.Variant == "" {
		t.Variant = "holdem"
	}
	if t.StartingStack == 0 {
		t.StartingStack = 1500
	}
	if t.SeatsPerTable == 0 {
		t.SeatsPerTable = 9
	}
	if t.ActionClock == "" {
		t.ActionClock = "30s"
	}
	if t.TimeBank == "" {
		t.TimeBank = "60s"
	}
	if t.RunItTimes == 0 {
		t.RunItTimes = 1
	}
	if t.RunoutVote == "" {
		t.RunoutVote = "10s"
	}
	if len(t.Levels) == 0 {
		t.Levels = DefaultLevels()
	}
	for i := range f.Bots {
		if f.Bots[i].Count == 0 {
			f.Bots[i].Count = 1
		}
	}
	if t.Players == 0 {
		for _, b := range f.Bots {
			t.Players += b.Count
		}
	}
	if t.Players == 0 {
		t.Players = t.SeatsPerTable
	}
}

// Validate checks everything Config would reject, with file-level context.
func (f *File) Validate() error {
	t := f.Tournament
	if _, err := poker.ParseVariant(t.Variant); err != nil {
		return fmt.Errorf("%w: tournament %s: %v", ErrInvalid, t.Name, err)
	}
	if t.Players < 2 {
		return fmt.Errorf("%w: tournament %s: at least two players required", ErrInvalid, t.Name)
	}
	if t.RunItTimes < 1 || t.RunItTimes > game.MaxRuns {
		return fmt.Errorf("%w: tournament %s: run_it_times must be between 1 and %d", ErrInvalid, t.Name, game.MaxRuns)
	}
	for _, d := range []struct{ name, value string }{
		{"action_clock", t.ActionClock},
		{"time_bank", t.TimeBank},
		{"runout_vote", t.RunoutVote},
		{"hand_interval", t.HandInterval},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%w: tournament %s: %s: %v", ErrInvalid, t.Name, d.name, err)
		}
	}
	bots := 0
	for _, b := range f.Bots {
		if !slices.Contains(Strategies, b.Strategy) {
			return fmt.Errorf("%w: bot %s: unknown strategy %q", ErrInvalid, b.Name, b.Strategy)
		}
		if b.Count < 0 {
			return fmt.Errorf("%w: bot %s: negative count", ErrInvalid, b.Name)
		}
		bots += b.Count
	}
	if bots > t.Players {
		return fmt.Errorf("%w: %d bots for %d players", ErrInvalid, bots, t.Players)
	}
	if _, err := f.Royalty(); err != nil {
		return err
	}
	cfg, err := f.TournamentConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: tournament %s: %w", ErrInvalid, t.Name, err)
	}
	return nil
}

// TournamentConfig converts the file into the controller's configuration.
func (f *File) TournamentConfig() (tournament.Config, error) {
	t := f.Tournament
	variant, err := poker.ParseVariant(t.Variant)
	if err != nil {
		return tournament.Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg := tournament.Config{
		ID:            t.Name,
		Variant:       variant,
		StartingStack: t.StartingStack,
		SeatsPerTable: t.SeatsPerTable,
	}
	if t.RunItTimes > 1 {
		cfg.MandatedRuns = t.RunItTimes
	}
	if cfg.ActionClock, err = parseDuration(t.ActionClock); err != nil {
		return cfg, err
	}
	if cfg.TimeBank, err = parseDuration(t.TimeBank); err != nil {
		return cfg, err
	}
	if cfg.RunoutVote, err = parseDuration(t.RunoutVote); err != nil {
		return cfg, err
	}
	if cfg.HandInterval, err = parseDuration(t.HandInterval); err != nil {
		return cfg, err
	}
	for i, l := range t.Levels {
		d, err := time.ParseDuration(l.Duration)
		if err != nil {
			return cfg, fmt.Errorf("%w: level %d: %v", ErrInvalid, i+1, err)
		}
		cfg.Levels = append(cfg.Levels, tournament.Level{
			SmallBlind: l.SmallBlind,
			BigBlind:   l.BigBlind,
			Ante:       l.Ante,
			Duration:   d,
		})
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return d, nil
}

var categories = map[string]poker.Category{
	"trips":           poker.ThreeOfAKind,
	"three_of_a_kind": poker.ThreeOfAKind,
	"straight":        poker.Straight,
	"flush":           poker.Flush,
	"full_house":      poker.FullHouse,
	"quads":           poker.FourOfAKind,
	"four_of_a_kind":  poker.FourOfAKind,
	"straight_flush":  poker.StraightFlush,
}

var rankValues = map[string]int{
	"2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8, "9": 9,
	"T": 10, "J": 11, "Q": 12, "K": 13, "A": 14,
}

// Royalty returns the default schedule with the file's overrides applied.
func (f *File) Royalty() (poker.RoyaltySchedule, error) {
	s := poker.DefaultRoyalties()
	r := f.Royalties
	if r == nil {
		return s, nil
	}
	for name, m := range map[string]struct {
		from map[string]int
		into map[poker.Category]int
	}{
		"bottom": {r.Bottom, s.Bottom},
		"middle": {r.Middle, s.Middle},
	} {
		for k, v := range m.from {
			c, ok := categories[strings.ToLower(k)]
			if !ok {
				return s, fmt.Errorf("%w: royalties %s: unknown category %q", ErrInvalid, name, k)
			}
			m.into[c] = v
		}
	}
	for name, m := range map[string]struct {
		from map[string]int
		into map[int]int
	}{
		"top_pair":  {r.TopPair, s.TopPair},
		"top_trips": {r.TopTrips, s.TopTrips},
	} {
		for k, v := range m.from {
			rank, ok := rankValues[strings.ToUpper(k)]
			if !ok {
				return s, fmt.Errorf("%w: royalties %s: unknown rank %q", ErrInvalid, name, k)
			}
			m.into[rank] = v
		}
	}
	if r.BottomRoyal != nil {
		s.BottomRoyal = *r.BottomRoyal
	}
	if r.MiddleRoyal != nil {
		s.MiddleRoyal = *r.MiddleRoyal
	}
	return s, nil
}
