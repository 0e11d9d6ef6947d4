package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, m ...kafka.Message) error {
	f.msgs = append(f.msgs, m...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestProducer_Send(t *testing.T) {
	fw := &fakeWriter{}
	p := NewProducerWithWriter(fw)

	require.NoError(t, p.Send(context.Background(), []byte("k"), []byte("v")))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, []byte("k"), fw.msgs[0].Key)
	assert.Equal(t, []byte("v"), fw.msgs[0].Value)

	fw.err = errors.New("broker down")
	assert.EqualError(t, p.Send(context.Background(), nil, []byte("x")), "broker down")

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}
