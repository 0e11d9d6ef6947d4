package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

var ErrCorrupt = errors.New("corrupt snapshot")

// Load reads and verifies one snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < len(magic)+digestSize || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%s: bad header: %w", path, ErrCorrupt)
	}
	digest := data[len(magic) : len(magic)+digestSize]
	body := data[len(magic)+digestSize:]
	if sum := blake3.Sum256(body); !bytes.Equal(sum[:], digest) {
		return nil, fmt.Errorf("%s: digest mismatch: %w", path, ErrCorrupt)
	}

	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", path, err)
	}
	return &s, nil
}

// LoadLatest loads the newest snapshot in dir. It returns nil without an
// error when there is none.
func LoadLatest(dir string) (*Snapshot, error) {
	files, err := list(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return Load(files[len(files)-1])
}

// list returns the snapshot files of dir, oldest first. Zero padded
// sequence numbers make name order sequence order.
func list(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
