package entry

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// maxSeqInSegment scans a WAL segment and returns the maximum sequence ID found.
// It is used ONLY for snapshot-based truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var maxSeq uint64
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return maxSeq, nil
			}
			return maxSeq, err
		}

		maxSeq = max(maxSeq, binary.BigEndian.Uint64(header[1:9]))

		// Skip payload + CRC
		payloadLen := binary.BigEndian.Uint32(header[17:21])
		if _, err := f.Seek(int64(payloadLen)+crcSize, io.SeekCurrent); err != nil {
			return maxSeq, err
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// repairTail cuts a record torn by an interrupted append off the end of a
// segment. Checksum failures are left in place for Replay to report.
func repairTail(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	r := &countingReader{r: bufio.NewReader(f)}
	var good int64
	for {
		_, err := readRecord(r)
		switch {
		case err == nil:
			good = r.n
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return f.Truncate(good)
		default:
			return nil
		}
	}
}
