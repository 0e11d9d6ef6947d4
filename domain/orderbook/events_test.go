package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/infra/memory"
)

func TestEventsHelper_PooledChains(t *testing.T) {
	chains := memory.NewChainPool(4, 1, NewEventChain(2))
	b := New(testSpec, nil, nil, NewEventsHelper(chains))

	for i := int64(1); i <= 5; i++ {
		b.ProcessCommand(placeCmd(i, 1, Ask, GTC, 100+i, 1))
	}
	cmd := placeCmd(10, 2, Bid, IOC, 200, 6)
	b.ProcessCommand(cmd)
	require.NoError(t, b.ValidateInternalState())

	evs := eventsOf(cmd)
	require.Len(t, evs, 6)
	assert.Equal(t, EventReject, evs[0].Type)
	assert.Equal(t, int64(1), evs[0].Size)
	for i, ev := range evs[1:] {
		assert.Equal(t, EventTrade, ev.Type)
		assert.Equal(t, int64(i+1), ev.MatchedOrderID)
		assert.Equal(t, int64(101+i), ev.Price)
		assert.Equal(t, int64(200), ev.BidderHoldPrice)
	}
	assert.Equal(t, 0, chains.Len())

	assert.True(t, chains.Put(cmd.Events))
	assert.Equal(t, 1, chains.Len())
}

func TestEventsHelper_PooledEventsAreReset(t *testing.T) {
	chains := memory.NewChainPool(1, 0, NewEventChain(1))
	h := NewEventsHelper(chains)

	stale := &Event{Type: EventTrade, Size: 99, MatchedOrderID: 5}
	require.True(t, chains.Put(stale))

	cmd := &OrderCommand{Price: 10, Size: 3}
	h.attachRejectEvent(cmd, 3)
	require.Same(t, stale, cmd.Events)
	assert.Equal(t, Event{Type: EventReject, ActiveOrderCompleted: true, Price: 10, Size: 3}, *cmd.Events)
}

func TestBinaryEvents(t *testing.T) {
	h := NonPooledEventsHelper()
	payload := []byte("a report result that spans several events")

	chain := h.CreateBinaryEventsChain(3, payload)
	n := 0
	for ev := chain; ev != nil; ev = ev.Next {
		assert.Equal(t, EventBinary, ev.Type)
		assert.Equal(t, int32(3), ev.Section)
		n++
	}
	// 1 length word + 6 payload words, padded to 10
	assert.Equal(t, 2, n)

	cmd := &OrderCommand{}
	cmd.appendEvents(&Event{Type: EventTrade, Size: 1})
	cmd.appendEvents(chain)
	cmd.appendEvents(h.CreateBinaryEventsChain(9, nil))

	got, err := DeserializeBinaryEvents(cmd.Events)
	require.NoError(t, err)
	assert.Equal(t, map[int32][]byte{3: payload, 9: {}}, got)
}

func TestBinaryEvents_CorruptLength(t *testing.T) {
	chain := NonPooledEventsHelper().CreateBinaryEventsChain(1, []byte{1, 2, 3})
	chain.MatchedOrderID = 100
	_, err := DeserializeBinaryEvents(chain)
	assert.ErrorIs(t, err, ErrCorruptBinaryEvent)
}
