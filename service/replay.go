package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
	"matchbook/infra/wal/entry"
	"matchbook/infra/wal/exit"
	"matchbook/snapshot"
)

// RestoreSnapshot installs the books of s and moves the sequencer to the
// snapshot's sequence. It must run before Start and before ReplayFromWAL.
func (e *Engine) RestoreSnapshot(s *snapshot.Snapshot) error {
	if e.started {
		return ErrEngineStarted
	}
	books, err := snapshot.Restore(s, e.pools, e.log, e.events)
	if err != nil {
		return fmt.Errorf("restore snapshot %d: %w", s.Seq, err)
	}
	for _, b := range books {
		if err := e.AddBook(b); err != nil {
			return err
		}
	}
	e.seq.Reset(s.Seq)
	e.log.Info("snapshot restored", zap.Uint64("seq", s.Seq), zap.Int("books", len(books)))
	return nil
}

/*
ReplayFromWAL rebuilds in-memory state from the entry journal in walDir.

- It MUST run before Start.
- Records at or below the current sequence are already in the books
  (restored from a snapshot) and are skipped.
- Outcomes missing from the outbox are stored again: the process stopped
  after journaling them but before the outbox writer ran, or the writer
  failed and halted the engine. Snapshots wait for the outbox, so nothing
  at or below the snapshot sequence can be missing.
*/
func ReplayFromWAL(walDir string, e *Engine) (int, error) {
	if e.started {
		return 0, ErrEngineStarted
	}
	from := e.seq.Current()

	var outboxLast uint64
	if e.outbox != nil {
		last, err := e.outbox.LastSeq()
		if err != nil {
			return 0, err
		}
		outboxLast = last
	}

	applied, restored := 0, 0
	var cmd orderbook.OrderCommand
	lastSeq, err := entry.Replay(walDir, func(rec *entry.Record) error {
		if rec.Seq <= from {
			return nil
		}
		if err := codec.DecodeCommand(rec.Data, &cmd); err != nil {
			return fmt.Errorf("journal seq %d: %w", rec.Seq, err)
		}
		if _, ok := e.books[cmd.Symbol]; !ok {
			return fmt.Errorf("journal seq %d: symbol %d: %w", rec.Seq, cmd.Symbol, ErrUnknownSymbol)
		}

		_, r := e.apply(rec.Seq, &cmd)
		applied++

		missing := rec.Seq > outboxLast
		if !missing {
			var err error
			if missing, err = e.outboxMissing(rec.Seq); err != nil {
				e.recycle(r)
				return err
			}
		}
		if !missing {
			e.recycle(r)
			return nil
		}
		restored++
		return e.storeNow(r)
	})
	if err != nil {
		return applied, err
	}

	// Resume sequencing AFTER replay
	e.seq.Advance(lastSeq)

	e.log.Info("journal replay completed",
		zap.Int("applied", applied),
		zap.Int("outboxRestored", restored),
		zap.Uint64("seq", e.seq.Current()))
	return applied, nil
}

// outboxMissing reports whether the outcome of seq was never stored.
func (e *Engine) outboxMissing(seq uint64) (bool, error) {
	if e.outbox == nil {
		return false, nil
	}
	_, err := e.outbox.Get(seq)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, exit.ErrNotFound):
		return true, nil
	default:
		return false, fmt.Errorf("outbox seq %d: %w", seq, err)
	}
}
