package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

const (
	filePrefix = "snapshot-"
	fileSuffix = ".bin"
	magic      = "MBSNAP01"
	digestSize = 32
)

// Writer stores snapshots in Dir and keeps the newest Keep of them.
type Writer struct {
	Dir  string
	Keep int
}

func fileName(seq uint64) string {
	return fmt.Sprintf("%s%020d%s", filePrefix, seq, fileSuffix)
}

// Write stores s atomically: the file appears under its final name only
// once it is complete and synced.
func (w *Writer) Write(s *Snapshot) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", err
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(s); err != nil {
		return "", fmt.Errorf("snapshot %d: encode: %w", s.Seq, err)
	}
	digest := blake3.Sum256(body.Bytes())

	path := filepath.Join(w.Dir, fileName(s.Seq))
	tmp, err := os.CreateTemp(w.Dir, filePrefix+"*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	bw.WriteString(magic)
	bw.Write(digest[:])
	bw.Write(body.Bytes())
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}

	if w.Keep > 0 {
		if err := w.prune(); err != nil {
			return path, err
		}
	}
	return path, nil
}

func (w *Writer) prune() error {
	files, err := list(w.Dir)
	if err != nil {
		return err
	}
	for len(files) > w.Keep {
		if err := os.Remove(files[0]); err != nil {
			return err
		}
		files = files[1:]
	}
	return nil
}
