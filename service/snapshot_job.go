package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/snapshot"
)

// Validate checks the internal state of every book on the engine goroutine.
func (e *Engine) Validate(ctx context.Context) error {
	var err error
	doErr := e.Do(ctx, func() {
		for _, id := range e.symbols {
			if verr := e.books[id].ValidateInternalState(); verr != nil {
				err = fmt.Errorf("symbol %d: %w", id, verr)
				return
			}
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// TakeSnapshot captures every book, waits until the outbox holds every
// outcome the capture covers, writes the snapshot and drops the journal
// segments and delivered outbox entries it makes redundant. It returns the
// sequence the snapshot covers.
func (e *Engine) TakeSnapshot(ctx context.Context, w *snapshot.Writer) (uint64, error) {
	var (
		snap    *snapshot.Snapshot
		retired uint64
		pools   orderbook.PoolStats
		verr    error
	)
	err := e.Do(ctx, func() {
		books := make([]*orderbook.OrderBook, 0, len(e.symbols))
		for _, id := range e.symbols {
			if err := e.books[id].ValidateInternalState(); err != nil {
				verr = fmt.Errorf("symbol %d: %w", id, err)
				return
			}
			books = append(books, e.books[id])
		}
		snap = snapshot.Capture(e.seq.Current(), books)
		retired = e.lastRetired
		pools = e.pools.Stats()
	})
	if err != nil {
		return 0, err
	}
	if verr != nil {
		return 0, verr
	}
	// replay skips everything the snapshot covers, so those outcomes must
	// already be in the outbox
	if err := e.waitStored(ctx, retired); err != nil {
		return 0, fmt.Errorf("snapshot %d: outbox: %w", snap.Seq, err)
	}

	path, err := w.Write(snap)
	if err != nil {
		return 0, err
	}

	// Truncate ENTRY WAL after snapshot; the journal belongs to the engine
	// goroutine
	var terr error
	if e.journal != nil {
		if err := e.Do(ctx, func() { terr = e.journal.TruncateBefore(snap.Seq) }); err != nil {
			return snap.Seq, err
		}
		if terr != nil {
			return snap.Seq, fmt.Errorf("truncate journal: %w", terr)
		}
	}

	// GC EXIT WAL (acked only)
	dropped := 0
	if e.outbox != nil {
		if dropped, err = e.outbox.TruncateAckedUpTo(snap.Seq); err != nil {
			return snap.Seq, fmt.Errorf("truncate outbox: %w", err)
		}
	}

	e.log.Info("snapshot written",
		zap.Uint64("seq", snap.Seq),
		zap.String("path", path),
		zap.Int("outboxDropped", dropped),
		poolFields(pools))
	return snap.Seq, nil
}

// StartSnapshotJob takes a snapshot every interval until ctx ends. The
// returned channel is closed once the job has stopped; the journal and the
// outbox must stay open until then.
func (e *Engine) StartSnapshotJob(
	ctx context.Context,
	w *snapshot.Writer,
	interval time.Duration,
) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()

		var last uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if e.seq.Current() == last {
				continue
			}
			seq, err := e.TakeSnapshot(ctx, w)
			if err != nil {
				e.log.Error("snapshot failed", zap.Error(err))
				continue
			}
			last = seq
		}
	}()
	return done
}
