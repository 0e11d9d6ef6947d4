package exit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *ExitWAL {
	t.Helper()
	w, err := Open(Options{Dir: t.TempDir(), NoSync: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func pendingSeqs(t *testing.T, w *ExitWAL) []uint64 {
	t.Helper()
	var seqs []uint64
	require.NoError(t, w.ScanPending(func(rec *ExitRecord) error {
		seqs = append(seqs, rec.Seq)
		return nil
	}))
	return seqs
}

func TestExitWAL_Lifecycle(t *testing.T) {
	w := openTest(t)

	require.NoError(t, w.PutBatch(2, []byte("two")))
	require.NoError(t, w.PutBatches([]*ExitRecord{
		{Seq: 1, Payload: []byte("one")},
		{Seq: 10, Payload: []byte("ten")},
	}))
	assert.Equal(t, []uint64{1, 2, 10}, pendingSeqs(t, w))

	rec, err := w.Get(2)
	require.NoError(t, err)
	assert.Equal(t, StateNew, rec.State)
	assert.Equal(t, []byte("two"), rec.Payload)

	require.NoError(t, w.MarkSent(1))
	require.NoError(t, w.MarkAcked(1))
	require.NoError(t, w.MarkSent(2))
	require.NoError(t, w.MarkFailed(2))
	require.NoError(t, w.MarkFailed(2))

	rec, err = w.Get(2)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, uint32(2), rec.Retries)
	assert.NotZero(t, rec.LastAttempt)
	assert.Equal(t, []byte("two"), rec.Payload, "state changes keep the payload")

	assert.Equal(t, []uint64{2, 10}, pendingSeqs(t, w))

	var acked []uint64
	require.NoError(t, w.ScanByState(StateAcked, func(rec *ExitRecord) error {
		acked = append(acked, rec.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1}, acked)
}

func TestExitWAL_SentWithoutAckStaysPending(t *testing.T) {
	w := openTest(t)
	require.NoError(t, w.PutBatch(5, nil))
	require.NoError(t, w.MarkSent(5))
	assert.Equal(t, []uint64{5}, pendingSeqs(t, w))
}

func TestExitWAL_TruncateAckedUpTo(t *testing.T) {
	w := openTest(t)
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, w.PutBatch(seq, []byte{byte(seq)}))
	}
	for _, seq := range []uint64{1, 2, 4, 5} {
		require.NoError(t, w.MarkAcked(seq))
	}

	n, err := w.TruncateAckedUpTo(4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = w.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
	rec, err := w.Get(3)
	require.NoError(t, err)
	assert.Equal(t, StateNew, rec.State)
	rec, err = w.Get(5)
	require.NoError(t, err)
	assert.Equal(t, StateAcked, rec.State)

	n, err = w.TruncateAckedUpTo(4)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExitWAL_LastSeq(t *testing.T) {
	w := openTest(t)
	last, err := w.LastSeq()
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, w.PutBatch(9, nil))
	require.NoError(t, w.PutBatch(100, nil))
	require.NoError(t, w.PutBatch(42, nil))
	last, err = w.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), last)
}

func TestExitWAL_MarkUnknown(t *testing.T) {
	w := openTest(t)
	assert.ErrorIs(t, w.MarkAcked(77), ErrNotFound)
}

func TestExitWAL_Reopen(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.PutBatch(3, []byte("x")))
	require.NoError(t, w.Close())

	w, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	defer w.Close()
	rec, err := w.Get(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), rec.Payload)
}
