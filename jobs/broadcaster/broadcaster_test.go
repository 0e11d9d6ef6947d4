package broadcaster

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
	exitwal "matchbook/infra/wal/exit"
)

func openOutbox(t *testing.T) *exitwal.ExitWAL {
	t.Helper()
	w, err := exitwal.Open(exitwal.Options{Dir: t.TempDir(), NoSync: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func putBatch(t *testing.T, w *exitwal.ExitWAL, seq uint64, symbol int32) {
	t.Helper()
	cmd := &orderbook.OrderCommand{
		Command:    orderbook.PlaceOrder,
		Symbol:     symbol,
		OrderID:    int64(seq),
		ResultCode: orderbook.ResultSuccess,
	}
	require.NoError(t, w.PutBatch(seq, codec.AppendBatch(nil, seq, cmd)))
}

func state(t *testing.T, w *exitwal.ExitWAL, seq uint64) exitwal.ExitState {
	t.Helper()
	rec, err := w.Get(seq)
	require.NoError(t, err)
	return rec.State
}

func TestReplayOnce_PublishesInOrder(t *testing.T) {
	outbox := openOutbox(t)
	putBatch(t, outbox, 1, 7)
	putBatch(t, outbox, 2, 8)

	producer := mocks.NewSyncProducer(t, nil)
	var keys []string
	checker := func(msg *sarama.ProducerMessage) error {
		k, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		keys = append(keys, string(k))
		if msg.Topic != "events" || len(msg.Headers) != 1 {
			return errors.New("unexpected topic or headers")
		}
		return nil
	}
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(checker)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(checker)

	b := New(outbox, producer, "events", 0, zaptest.NewLogger(t))
	n, err := b.ReplayOnce()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"7", "8"}, keys)
	assert.Equal(t, exitwal.StateAcked, state(t, outbox, 1))
	assert.Equal(t, exitwal.StateAcked, state(t, outbox, 2))

	n, err = b.ReplayOnce()
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, b.Close())
}

func TestReplayOnce_FailureStopsPassAndRetries(t *testing.T) {
	outbox := openOutbox(t)
	putBatch(t, outbox, 1, 1)
	putBatch(t, outbox, 2, 1)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	b := New(outbox, producer, "events", 0, zaptest.NewLogger(t))

	n, err := b.ReplayOnce()
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Zero(t, n)

	rec, err := outbox.Get(1)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)
	assert.Equal(t, exitwal.StateNew, state(t, outbox, 2), "later batches wait")

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()
	n, err = b.ReplayOnce()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, exitwal.StateAcked, state(t, outbox, 1))
	require.NoError(t, b.Close())
}
