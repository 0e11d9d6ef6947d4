package sequence

import "sync/atomic"

// Sequencer hands out the global command sequence. Every command accepted by
// the engine gets exactly one number, and the same number keys its journal
// record and its outbox batch.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
// Fresh start: start = 0. After replay: start = last replayed seq.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next global sequence ID.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Advance moves the sequencer forward to v; it never moves it back. It is
// used when replay finds a journal that is further along than a snapshot.
func (s *Sequencer) Advance(v uint64) {
	for {
		cur := s.next.Load()
		if v <= cur || s.next.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Reset sets the sequencer to a specific value.
// Only used after snapshot load and journal replay.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
