package exit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"
)

var (
	ErrNotFound      = errors.New("exit record not found")
	ErrCorruptRecord = errors.New("corrupt exit record")
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// ExitRecord is the outbox entry of one processed command: the encoded
// event batch plus its delivery state.
type ExitRecord struct {
	Seq         uint64
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeader = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r *ExitRecord) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (*ExitRecord, error) {
	if len(b) < recordHeader {
		return nil, fmt.Errorf("seq %d: %d bytes: %w", seq, len(b), ErrCorruptRecord)
	}
	payload := make([]byte, len(b)-recordHeader)
	copy(payload, b[recordHeader:])
	return &ExitRecord{
		Seq:         seq,
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// -------------------- WAL --------------------

// ExitWAL is the durable outbox between the engine and the publishers,
// keyed by command sequence.
type ExitWAL struct {
	db   *pebble.DB
	sync bool
}

type Options struct {
	Dir string `mapstructure:"dir"`
	// NoSync skips fsync on writes; for tests and benchmarks.
	NoSync bool `mapstructure:"no_sync"`
}

func Open(opts Options) (*ExitWAL, error) {
	db, err := pebble.Open(opts.Dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &ExitWAL{db: db, sync: !opts.NoSync}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

func (w *ExitWAL) writeOpts() *pebble.WriteOptions {
	if w.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// -------------------- API --------------------

// PutBatch inserts a NEW outbox entry for the events of command seq.
func (w *ExitWAL) PutBatch(seq uint64, payload []byte) error {
	return w.db.Set(keyFor(seq), encodeRecord(&ExitRecord{State: StateNew, Payload: payload}), w.writeOpts())
}

// PutBatches inserts several NEW entries in one atomic write.
func (w *ExitWAL) PutBatches(recs []*ExitRecord) error {
	b := w.db.NewBatch()
	defer b.Close()
	for _, r := range recs {
		if err := b.Set(keyFor(r.Seq), encodeRecord(&ExitRecord{State: StateNew, Payload: r.Payload}), nil); err != nil {
			return err
		}
	}
	return b.Commit(w.writeOpts())
}

func (w *ExitWAL) MarkSent(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateSent
		r.LastAttempt = time.Now().UnixNano()
	})
}

func (w *ExitWAL) MarkAcked(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateAcked
	})
}

// MarkFailed records a failed delivery; the entry stays pending.
func (w *ExitWAL) MarkFailed(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateFailed
		r.Retries++
		r.LastAttempt = time.Now().UnixNano()
	})
}

func (w *ExitWAL) update(seq uint64, fn func(*ExitRecord)) error {
	rec, err := w.Get(seq)
	if err != nil {
		return err
	}
	fn(rec)
	return w.db.Set(keyFor(seq), encodeRecord(rec), w.writeOpts())
}

// Get returns the current record for a sequence.
func (w *ExitWAL) Get(seq uint64) (*ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("seq %d: %w", seq, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

// LastSeq returns the highest sequence held, or 0 when empty.
func (w *ExitWAL) LastSeq() (uint64, error) {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// -------------------- Scan --------------------

// ScanByState iterates all records in the given state in sequence order.
func (w *ExitWAL) ScanByState(state ExitState, fn func(rec *ExitRecord) error) error {
	return w.scan(func(rec *ExitRecord) bool { return rec.State == state }, fn)
}

// ScanPending iterates the records that still need delivery: NEW, FAILED and
// SENT without an acknowledgement (a crash between send and ack).
// This is used by the Broadcaster.
func (w *ExitWAL) ScanPending(fn func(rec *ExitRecord) error) error {
	return w.scan(func(rec *ExitRecord) bool { return rec.State != StateAcked }, fn)
}

func (w *ExitWAL) scan(match func(*ExitRecord) bool, fn func(*ExitRecord) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if !match(rec) {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// TruncateAckedUpTo deletes ACKED records with a sequence of at most seq
// and returns how many were removed.
func (w *ExitWAL) TruncateAckedUpTo(seq uint64) (int, error) {
	var acked []uint64
	err := w.ScanByState(StateAcked, func(rec *ExitRecord) error {
		if rec.Seq > seq {
			return errStopScan
		}
		acked = append(acked, rec.Seq)
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return 0, err
	}
	if len(acked) == 0 {
		return 0, nil
	}

	b := w.db.NewBatch()
	defer b.Close()
	for _, s := range acked {
		if err := b.Delete(keyFor(s), nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(w.writeOpts()); err != nil {
		return 0, err
	}
	return len(acked), nil
}

var errStopScan = errors.New("stop scan")

// -------------------- Helpers --------------------

const (
	keyPrefix = "batch/"
	keyUpper  = "batch/~"
)

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	if len(b) <= len(keyPrefix) {
		return 0, fmt.Errorf("key %q: %w", b, ErrCorruptRecord)
	}
	return strconv.ParseUint(string(b[len(keyPrefix):]), 10, 64)
}
