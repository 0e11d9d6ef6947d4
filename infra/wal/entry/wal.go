package entry

import (
	"encoding/binary"
	"errors"
	"os"
	"time"
)

var ErrClosed = errors.New("entry wal closed")

type Config struct {
	Dir             string        `mapstructure:"dir"`
	SegmentSize     int64         `mapstructure:"segment_size"`
	SegmentDuration time.Duration `mapstructure:"segment_duration"`

	// SyncEveryWrite fsyncs after each append.
	SyncEveryWrite bool `mapstructure:"sync_every_write"`
}

// WAL journals commands before they are applied. It is written by the
// engine goroutine only.
type WAL struct {
	dir            string
	segSize        int64
	segDuration    time.Duration
	syncEveryWrite bool
	current        *segment
	segIndex       int
	lastRotate     time.Time
	buf            []byte
}

// Open starts a new segment after the last one found in cfg.Dir. A record
// torn by a crash at the end of that segment is cut off first.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	files, err := segmentFiles(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(files) > 0 {
		lastPath := files[len(files)-1]
		if err := repairTail(lastPath); err != nil {
			return nil, err
		}
		last, err := segmentIndex(lastPath)
		if err != nil {
			return nil, err
		}
		index = last + 1
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:            cfg.Dir,
		segSize:        cfg.SegmentSize,
		segDuration:    cfg.SegmentDuration,
		syncEveryWrite: cfg.SyncEveryWrite,
		current:        seg,
		segIndex:       index,
		lastRotate:     time.Now(),
	}, nil
}

func (w *WAL) Append(r *Record) error {
	if w.current == nil {
		return ErrClosed
	}
	payloadLen := uint32(len(r.Data))

	size := headerSize + int(payloadLen) + crcSize
	if cap(w.buf) < size {
		w.buf = make([]byte, size)
	}
	buf := w.buf[:size]

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+payloadLen:], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}
	if w.syncEveryWrite {
		if err := w.current.sync(); err != nil {
			return err
		}
	}

	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) shouldRotate() bool {
	if w.segSize > 0 && w.current.offset >= w.segSize {
		return true
	}
	return w.segDuration > 0 && time.Since(w.lastRotate) >= w.segDuration
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		w.current = nil
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// Sync flushes the current segment to stable storage.
func (w *WAL) Sync() error {
	if w.current == nil {
		return ErrClosed
	}
	return w.current.sync()
}

// TruncateBefore deletes closed segments whose records all have a sequence
// of at most seq.
func (w *WAL) TruncateBefore(seq uint64) error {
	files, err := segmentFiles(w.dir)
	if err != nil {
		return err
	}

	current := segmentPath(w.dir, w.segIndex)
	for _, path := range files {
		if path == current {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *WAL) Close() error {
	if w.current == nil {
		return nil
	}
	err := w.current.sync()
	if cerr := w.current.close(); err == nil {
		err = cerr
	}
	w.current = nil
	return err
}
