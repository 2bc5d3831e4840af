package csvio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/warp/payments-engine/ledger"
)

// Report summarises one replay.
type Report struct {
	Rows      int // rows that produced an event
	Malformed int // rows skipped by the reader
	Failed    int // events discarded on overflow/underflow
	Stats     ledger.Stats
}

// Replay feeds every event from r into e, in order.
//
// Malformed rows and arithmetic failures are logged and skipped; the run
// continues with the next row. Only a read failure of r itself, or ctx
// being cancelled, stops the replay early.
func Replay(ctx context.Context, r io.Reader, e *ledger.Engine, log zerolog.Logger) (Report, error) {
	var rep Report
	reader := NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			rep.Stats = e.Stats()
			return rep, err
		}

		evt, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				rep.Malformed++
				log.Warn().Int("line", rowErr.Line).Err(rowErr.Err).Msg("skipping malformed row")
				continue
			}
			rep.Stats = e.Stats()
			return rep, fmt.Errorf("read transactions: %w", err)
		}

		rep.Rows++
		if err := e.Apply(evt); err != nil {
			if !ledger.IsArithmetic(err) {
				rep.Stats = e.Stats()
				return rep, err
			}
			rep.Failed++
		}
	}

	rep.Stats = e.Stats()
	log.Info().
		Int("rows", rep.Rows).
		Int("malformed", rep.Malformed).
		Int("applied", rep.Stats.Applied).
		Int("rejected", rep.Stats.RejectedTotal()).
		Int("failed", rep.Failed).
		Msg("replay finished")
	return rep, nil
}
