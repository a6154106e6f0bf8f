package broadcast

import (
	"errors"

	"github.com/rs/zerolog"
)

// LogSink writes every event to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a sink logging at info level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "events").Logger()}
}

func (s *LogSink) Deliver(ev Event) error {
	e := s.logger.Info().
		Uint64("seq", ev.Seq).
		Str("table_id", ev.TableID).
		Str("hand_id", ev.HandID)
	if ev.Seat >= 0 {
		e = e.Int("seat", ev.Seat)
	}
	if ev.Action != "" {
		e = e.Str("action", ev.Action).Int("amount", ev.Amount)
	}
	if len(ev.Board) > 0 {
		e = e.Strs("board", ev.Board)
	}
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	e.Msg(ev.Type.String())
	return nil
}

type multiSink []Sink

// Multi fans events out to several sinks, skipping nil entries. Every sink
// sees every event; their errors are joined.
func Multi(sinks ...Sink) Sink {
	filtered := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return filtered
}

func (m multiSink) Deliver(ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
