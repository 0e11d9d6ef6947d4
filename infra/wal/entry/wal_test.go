package entry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(t *testing.T, w *WAL, from, to uint64) {
	t.Helper()
	for seq := from; seq <= to; seq++ {
		require.NoError(t, w.Append(NewRecord(RecordPlace, seq, []byte(fmt.Sprintf("cmd-%d", seq%10)))))
	}
}

func replayAll(t *testing.T, dir string) ([]uint64, uint64, error) {
	t.Helper()
	var seqs []uint64
	last, err := Replay(dir, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	return seqs, last, err
}

func TestWAL_AppendReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)

	require.NoError(t, w.Append(NewRecord(RecordCancel, 1, []byte("abc"))))
	require.NoError(t, w.Append(NewRecord(RecordMove, 2, nil)))
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Append(NewRecord(RecordPlace, 3, nil)), ErrClosed)

	var got []*Record
	last, err := Replay(dir, func(r *Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last)
	require.Len(t, got, 2)
	assert.Equal(t, RecordCancel, got[0].Type)
	assert.Equal(t, []byte("abc"), got[0].Data)
	assert.NotZero(t, got[0].Time)
	assert.Equal(t, RecordMove, got[1].Type)
	assert.Empty(t, got[1].Data)
}

func TestWAL_RotateAndTruncate(t *testing.T) {
	dir := t.TempDir()
	// every record is 30 bytes, three fit before the size is exceeded
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	appendN(t, w, 1, 7)

	files, err := segmentFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	require.NoError(t, w.TruncateBefore(5))
	files, err = segmentFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{segmentPath(dir, 1), segmentPath(dir, 2)}, files)

	require.NoError(t, w.Close())
	seqs, last, err := replayAll(t, dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5, 6, 7}, seqs)
	assert.Equal(t, uint64(7), last)
}

func TestWAL_ReopenRepairsTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 2)
	require.NoError(t, w.Close())

	f, err := os.OpenFile(segmentPath(dir, 0), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{byte(RecordPlace), 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	seqs, _, err := replayAll(t, dir)
	require.NoError(t, err, "a torn tail on the last segment is tolerated")
	assert.Equal(t, []uint64{1, 2}, seqs)

	w, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 3, 3)
	require.NoError(t, w.Close())

	st, err := os.Stat(segmentPath(dir, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(60), st.Size())

	seqs, last, err := replayAll(t, dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
	assert.Equal(t, uint64(3), last)
}

func TestWAL_DetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 1)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[headerSize+1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, _, err = replayAll(t, dir)
	assert.ErrorIs(t, err, ErrCRCMismatch)
}

func TestWAL_RejectsNonMonotonicSequence(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordPlace, 5, nil)))
	require.NoError(t, w.Append(NewRecord(RecordPlace, 4, nil)))
	require.NoError(t, w.Close())

	_, last, err := replayAll(t, dir)
	assert.ErrorIs(t, err, ErrCorruptRecord)
	assert.Equal(t, uint64(5), last)
}

func TestWAL_HandlerErrorStopsReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	boom := errors.New("boom")
	calls := 0
	_, err = Replay(dir, func(r *Record) error {
		calls++
		if r.Seq == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestSegmentIndex(t *testing.T) {
	idx, err := segmentIndex(filepath.Join("x", "segment-000042.wal"))
	require.NoError(t, err)
	assert.Equal(t, 42, idx)

	_, err = segmentIndex("segment-abc.wal")
	assert.Error(t, err)
}
