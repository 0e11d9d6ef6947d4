package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"pgregory.net/rapid"

	"matchbook/domain/orderbook"
)

func TestCommand_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := orderbook.OrderCommand{
			Command:         orderbook.CommandType(rapid.IntRange(1, 5).Draw(t, "command")),
			OrderID:         rapid.Int64().Draw(t, "orderId"),
			Symbol:          rapid.Int32().Draw(t, "symbol"),
			Price:           rapid.Int64().Draw(t, "price"),
			Size:            rapid.Int64().Draw(t, "size"),
			ReserveBidPrice: rapid.Int64().Draw(t, "reserve"),
			Action:          orderbook.Action(rapid.IntRange(0, 1).Draw(t, "action")),
			OrderType:       orderbook.OrderType(rapid.IntRange(0, 4).Draw(t, "type")),
			UID:             rapid.Int64().Draw(t, "uid"),
			Timestamp:       rapid.Int64().Draw(t, "ts"),
		}

		var out orderbook.OrderCommand
		out.ResultCode = orderbook.ResultSuccess
		if err := DecodeCommand(AppendCommand(nil, &in), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out != in {
			t.Fatalf("got %+v, want %+v", out, in)
		}
	})
}

func TestBatch_FromProcessedCommand(t *testing.T) {
	book := orderbook.New(orderbook.SymbolSpec{SymbolID: 3}, nil, nil, nil)
	for i, cmd := range []*orderbook.OrderCommand{
		{Command: orderbook.PlaceOrder, OrderID: 1, UID: 10, Action: orderbook.Ask, Price: 1600, Size: 7},
		{Command: orderbook.PlaceOrder, OrderID: 2, UID: 11, Action: orderbook.Ask, Price: 1610, Size: 1},
	} {
		cmd.ResultCode = orderbook.ResultValidForMatchingEngine
		require.Equal(t, orderbook.ResultSuccess, book.ProcessCommand(cmd), "order %d", i)
	}

	taker := &orderbook.OrderCommand{
		Command: orderbook.PlaceOrder, OrderID: 3, UID: 12, Symbol: 3,
		Action: orderbook.Bid, OrderType: orderbook.IOC,
		Price: 1700, ReserveBidPrice: 1700, Size: 10, Timestamp: 99,
		ResultCode: orderbook.ResultValidForMatchingEngine,
	}
	taker.ResultCode = book.ProcessCommand(taker)
	require.Equal(t, 3, taker.EventCount())

	batch, err := DecodeBatch(AppendBatch(nil, 42, taker))
	require.NoError(t, err)

	assert.Equal(t, uint64(42), batch.Seq)
	assert.Equal(t, orderbook.PlaceOrder, batch.Command)
	assert.Equal(t, int32(3), batch.Symbol)
	assert.Equal(t, int64(3), batch.OrderID)
	assert.Equal(t, int64(12), batch.UID)
	assert.Equal(t, orderbook.Bid, batch.Action)
	assert.Equal(t, int64(99), batch.Timestamp)
	assert.Equal(t, orderbook.ResultSuccess, batch.ResultCode)

	require.Len(t, batch.Events, 3)
	var i int
	taker.ForEachEvent(func(ev *orderbook.Event) {
		want := *ev
		want.Next = nil
		assert.Equal(t, want, batch.Events[i], "event %d", i)
		i++
	})
	assert.Equal(t, orderbook.EventReject, batch.Events[0].Type)
	assert.Equal(t, int64(2), batch.Events[0].Size)
	assert.Equal(t, orderbook.EventTrade, batch.Events[2].Type)

	head := batch.Chain()
	n := 0
	for ev := head; ev != nil; ev = ev.Next {
		n++
	}
	assert.Equal(t, 3, n)
}

func TestBatch_LargeEventList(t *testing.T) {
	cmd := &orderbook.OrderCommand{Command: orderbook.PlaceOrder, OrderID: 1}
	// opaque payloads travel through the outbox as binary events
	h := orderbook.NonPooledEventsHelper()
	payload := make([]byte, 600)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	cmd.Events = h.CreateBinaryEventsChain(5, payload)

	batch, err := DecodeBatch(AppendBatch(nil, 1, cmd))
	require.NoError(t, err)
	sections, err := orderbook.DeserializeBinaryEvents(batch.Chain())
	require.NoError(t, err)
	assert.Equal(t, payload, sections[5])
}

func TestAppendMessage_LongBody(t *testing.T) {
	body := make([]byte, 300)
	for i := range body {
		body[i] = byte(i)
	}
	b := AppendMessage([]byte{0xAA}, 4, func(b []byte) []byte { return append(b, body...) })
	assert.Equal(t, byte(0xAA), b[0])

	var got []byte
	require.NoError(t, Walk(b[1:], func(f Field) error {
		assert.Equal(t, protowire.Number(4), f.Num)
		got = f.B
		return nil
	}))
	assert.Equal(t, body, got)
}

func TestL2_RoundTrip(t *testing.T) {
	in := &orderbook.L2MarketData{
		AskPrices:  []int64{1600, 1610},
		AskVolumes: []int64{5, 1},
		AskOrders:  []int64{1, 1},
		BidPrices:  []int64{1550},
		BidVolumes: []int64{4},
		BidOrders:  []int64{1},
		Timestamp:  -5,
		Seq:        9,
	}
	out, err := DecodeL2(AppendL2(nil, in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWalk_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = AppendInt(b, cmdPrice, 1500)
	b = protowire.AppendTag(b, 99, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 123)
	b = AppendString(b, 100, "ignored")
	b = AppendInt(b, cmdSize, 3)

	var cmd orderbook.OrderCommand
	require.NoError(t, DecodeCommand(b, &cmd))
	assert.Equal(t, int64(1500), cmd.Price)
	assert.Equal(t, int64(3), cmd.Size)
}

func TestWalk_Malformed(t *testing.T) {
	b := AppendInt(nil, cmdPrice, 1500)
	var cmd orderbook.OrderCommand
	assert.ErrorIs(t, DecodeCommand(b[:len(b)-1], &cmd), ErrMalformed)

	_, err := DecodeBatch([]byte{byte(batchEvent<<3 | 2), 10, 1})
	assert.ErrorIs(t, err, ErrMalformed)
}
