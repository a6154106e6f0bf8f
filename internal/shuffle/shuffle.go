// Package shuffle produces audited, unbiased deck permutations.
package shuffle

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/pokerfloor/poker"
)

// ErrEntropyUnavailable is returned when the hardware source cannot be read.
// Callers must stop dealing; there is no fallback generator.
var ErrEntropyUnavailable = errors.New("shuffle: hardware entropy unavailable")

// MinPasses is the fewest Fisher-Yates passes applied before the cut.
const MinPasses = 2

// Source tags recorded in the audit log.
const (
	TagHardware = "hw:crypto/rand"
	TagClock    = "clock:monotonic"
	TagCounter  = "counter"
)

// Request identifies the hand a deck is shuffled for.
type Request struct {
	TableID string
	HandID  string
	Variant poker.Variant
}

// Shuffler is safe for concurrent use by many tables.
type Shuffler struct {
	hwMu    sync.Mutex
	hw      io.Reader
	hwTag   string
	clock   quartz.Clock
	counter atomic.Uint64
	passes  int
	audit   *AuditLog
	logger  zerolog.Logger
}

// Option configures a Shuffler.
type Option func(*Shuffler)

// WithEntropy replaces the hardware source. Tests and replay tooling use a
// deterministic reader here.
func WithEntropy(r io.Reader, tag string) Option {
	return func(s *Shuffler) {
		s.hw = r
		s.hwTag = tag
	}
}

// WithClock sets the timestamp source mixed into each block.
func WithClock(c quartz.Clock) Option {
	return func(s *Shuffler) { s.clock = c }
}

// WithPasses sets the number of passes; values below MinPasses are raised.
func WithPasses(n int) Option {
	return func(s *Shuffler) { s.passes = max(n, MinPasses) }
}

// WithAuditLog records every shuffle to the given log.
func WithAuditLog(a *AuditLog) Option {
	return func(s *Shuffler) { s.audit = a }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Shuffler) { s.logger = l }
}

// New creates a Shuffler backed by crypto/rand and the real clock.
func New(opts ...Option) *Shuffler {
	s := &Shuffler{
		hw:     rand.Reader,
		hwTag:  TagHardware,
		clock:  quartz.NewReal(),
		passes: MinPasses,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "shuffle").Logger()
	return s
}

// Shuffle returns a freshly permuted deck for the request's variant and
// appends an audit entry before returning it.
func (s *Shuffler) Shuffle(ctx context.Context, req Request) (*poker.Deck, error) {
	cards := poker.OrderedCards(req.Variant)
	res, err := s.Permute(cards)
	if err != nil {
		s.logger.Error().Err(err).Str("table_id", req.TableID).Str("hand_id", req.HandID).Msg("Shuffle failed")
		return nil, err
	}
	if s.audit != nil {
		entry := Entry{
			Time:     s.clock.Now(),
			TableID:  req.TableID,
			HandID:   req.HandID,
			Variant:  req.Variant.String(),
			Sources:  []string{s.hwTag, TagClock, TagCounter + ":" + strconv.FormatUint(res.Counter, 10)},
			Passes:   res.Passes,
			Cut:      res.Cut,
			DeckSize: len(cards),
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("shuffle: audit: %w", err)
		}
	}
	s.logger.Debug().
		Str("table_id", req.TableID).
		Str("hand_id", req.HandID).
		Int("cut", res.Cut).
		Int("rejections", res.Rejections).
		Msg("Deck shuffled")
	return poker.NewDeckFromCards(cards), nil
}

// Result describes one permutation.
type Result struct {
	Counter    uint64
	Passes     int
	Cut        int
	Rejections int
}

// Permute shuffles cards in place: the configured number of Fisher-Yates
// passes, last index to first, followed by a single cut at a uniformly
// chosen position in [1, n-1].
func (s *Shuffler) Permute(cards []poker.Card) (Result, error) {
	st := &stream{
		hw:      s.readHardware,
		clock:   s.clock,
		counter: s.counter.Add(1),
	}
	res := Result{Counter: st.counter, Passes: s.passes}
	n := len(cards)
	for range s.passes {
		for i := n - 1; i > 0; i-- {
			j, err := st.intn(i + 1)
			if err != nil {
				return res, err
			}
			cards[i], cards[j] = cards[j], cards[i]
		}
	}
	if n > 1 {
		cut, err := st.intn(n - 1)
		if err != nil {
			return res, err
		}
		res.Cut = cut + 1
		rotate(cards, res.Cut)
	}
	res.Rejections = st.rejections
	return res, nil
}

func (s *Shuffler) readHardware(p []byte) error {
	s.hwMu.Lock()
	defer s.hwMu.Unlock()
	if s.hw == nil {
		return ErrEntropyUnavailable
	}
	if _, err := io.ReadFull(s.hw, p); err != nil {
		return fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return nil
}

// rotate moves the first k cards to the bottom of the deck.
func rotate(cards []poker.Card, k int) {
	reverse(cards[:k])
	reverse(cards[k:])
	reverse(cards)
}

func reverse(cards []poker.Card) {
	for i, j := 0, len(cards)-1; i < j; i, j = i+1, j-1 {
		cards[i], cards[j] = cards[j], cards[i]
	}
}
