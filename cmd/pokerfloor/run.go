package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/pokerfloor/internal/bot"
	"github.com/lox/pokerfloor/internal/broadcast"
	"github.com/lox/pokerfloor/internal/config"
	"github.com/lox/pokerfloor/internal/handhistory"
	"github.com/lox/pokerfloor/internal/randutil"
	"github.com/lox/pokerfloor/internal/shuffle"
	"github.com/lox/pokerfloor/internal/spectator"
	"github.com/lox/pokerfloor/internal/tournament"
)

type RunCmd struct {
	Config      string `arg:"" optional:"" default:"tournament.hcl" help:"Tournament configuration file (defaults apply when missing)"`
	Seed        int64  `help:"Seed the bots for a reproducible field (0 for random)"`
	HandHistory string `help:"Directory for hand histories, overrides hand_history_dir"`
	Spectate    string `help:"Serve a websocket event stream on this address (e.g. localhost:8081)"`
	Events      bool   `help:"Log every broadcast event"`
}

func (c *RunCmd) Run(g *Globals) error {
	logger := g.logger()
	ctx, cancel := signalContext(logger)
	defer cancel()

	file, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	cfg, err := file.TournamentConfig()
	if err != nil {
		return err
	}

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := randutil.New(seed)

	shufOpts := []shuffle.Option{shuffle.WithLogger(logger)}
	if path := file.Tournament.AuditLog; path != "" {
		f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer f.Close()
		audit := shuffle.NewAuditLog(f, 1024)
		defer func() {
			if err := audit.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close audit log")
			}
		}()
		shufOpts = append(shufOpts, shuffle.WithAuditLog(audit))
	}

	sinks := []broadcast.Sink{}
	if c.Events {
		sinks = append(sinks, broadcast.NewLogSink(logger))
	}
	if c.Spectate != "" {
		hub := spectator.NewHub(logger)
		defer hub.Close()
		stop, err := serveSpectators(c.Spectate, hub, logger)
		if err != nil {
			return err
		}
		defer stop()
		sinks = append(sinks, hub)
	}
	events := broadcast.NewQueue(broadcast.Multi(sinks...), 4096, logger)
	defer events.Close()

	opts := []tournament.Option{
		tournament.WithLogger(logger),
		tournament.WithShuffler(shuffle.New(shufOpts...)),
		tournament.WithPublisher(events),
	}
	dir := file.Tournament.HandHistoryDir
	if c.HandHistory != "" {
		dir = c.HandHistory
	}
	if dir != "" {
		rec := handhistory.NewRecorder(handhistory.RecorderConfig{Dir: dir}, logger)
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to flush hand histories")
			}
		}()
		opts = append(opts, tournament.WithRecorder(rec))
	}

	trn, err := tournament.New(cfg, opts...)
	if err != nil {
		return err
	}
	field, err := entrants(file, rng, logger)
	if err != nil {
		return err
	}
	for _, e := range field {
		if err := trn.Register(e); err != nil {
			return err
		}
	}

	logger.Info().Str("tournament_id", trn.ID()).Int("entrants", len(field)).Int64("seed", seed).
		Str("variant", cfg.Variant.String()).Msg("Starting tournament")
	start := time.Now()
	if err := trn.Run(ctx); err != nil {
		return err
	}
	fmt.Println(renderStandings(trn.ID(), trn.Standings(), time.Since(start)))
	return nil
}

// entrants builds the bot field: one entrant per configured bot, padded
// with calling bots up to the player count.
func entrants(file *config.File, rng *rand.Rand, logger zerolog.Logger) ([]tournament.Entrant, error) {
	var out []tournament.Entrant
	add := func(name, strategy string) error {
		s, err := bot.ByName(strategy, rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())))
		if err != nil {
			return err
		}
		out = append(out, tournament.Entrant{ID: name, Agent: bot.NewPlayer(s, logger.With().Str("player", name).Logger())})
		return nil
	}
	for _, b := range file.Bots {
		for i := range b.Count {
			name := b.Name
			if b.Count > 1 {
				name = fmt.Sprintf("%s-%d", b.Name, i+1)
			}
			if err := add(name, b.Strategy); err != nil {
				return nil, err
			}
		}
	}
	for i := len(out); i < file.Tournament.Players; i++ {
		if err := add(fmt.Sprintf("caller-%d", i+1), "call"); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func serveSpectators(addr string, hub *spectator.Hub, logger zerolog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("spectator listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Spectator server failed")
		}
	}()
	logger.Info().Str("addr", "ws://"+ln.Addr().String()+"/ws").Msg("Spectator stream listening")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func renderStandings(id string, standings []tournament.Standing, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Tournament %s complete", id)))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  (%s)", elapsed.Round(time.Millisecond))))
	b.WriteString("\n")
	for _, s := range standings {
		place := labelStyle.Render(fmt.Sprintf("%3d.", s.Place))
		name := s.PlayerID
		if s.Place == 1 {
			name = goodStyle.Render(name)
		}
		fmt.Fprintf(&b, "%s %s\n", place, name)
	}
	return b.String()
}
