package entry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrCRCMismatch   = errors.New("crc mismatch")
	ErrCorruptRecord = errors.New("corrupt record")
)

type ReplayHandler func(*Record) error

// Replay feeds every record of dir to fn in write order and returns the
// last sequence seen. A record cut short at the end of the last segment is
// the trace of an interrupted append and ends the replay; anywhere else it
// is corruption.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := segmentFiles(dir)
	if err != nil {
		return 0, err
	}

	for i, path := range files {
		lastSeq, err = replaySegment(path, lastSeq, i == len(files)-1, fn)
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, lastSeq uint64, tail bool, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lastSeq, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) && tail {
				return lastSeq, nil
			}
			return lastSeq, fmt.Errorf("%s: %w", path, err)
		}

		if rec.Seq <= lastSeq {
			return lastSeq, fmt.Errorf("%s: non-monotonic seq %d after %d: %w", path, rec.Seq, lastSeq, ErrCorruptRecord)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])

	data := make([]byte, headerSize+int(l)+crcSize)
	copy(data, header)
	if _, err := io.ReadFull(r, data[headerSize:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	body := data[:headerSize+int(l)]
	crc := binary.BigEndian.Uint32(data[headerSize+int(l):])
	if !CRC32Valid(body, crc) {
		return nil, fmt.Errorf("record seq %d: %w", seq, ErrCRCMismatch)
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: body[headerSize:],
	}, nil
}
