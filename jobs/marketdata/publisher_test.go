package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/domain/orderbook"
)

type fakeSource struct {
	books map[int32]*orderbook.OrderBook
	seq   uint64
}

func (f *fakeSource) Symbols() []int32 { return []int32{1, 2} }

func (f *fakeSource) L2(ctx context.Context, symbol int32, depth int) (*orderbook.L2MarketData, error) {
	b, ok := f.books[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	f.seq++
	d := b.L2MarketDataSnapshot(depth)
	d.Seq = f.seq
	return d, nil
}

type sent struct {
	key, value []byte
}

type fakeSender struct {
	msgs []sent
	err  error
}

func (f *fakeSender) Send(ctx context.Context, key, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, sent{key, value})
	return nil
}

func gtc(t *testing.T, b *orderbook.OrderBook, id int64, action orderbook.Action, price, size int64) {
	t.Helper()
	cmd := &orderbook.OrderCommand{
		Command: orderbook.PlaceOrder, OrderID: id, UID: 1, Action: action,
		OrderType: orderbook.GTC, Price: price, ReserveBidPrice: price, Size: size,
		ResultCode: orderbook.ResultValidForMatchingEngine,
	}
	require.Equal(t, orderbook.ResultSuccess, b.ProcessCommand(cmd))
}

func newSource(t *testing.T) *fakeSource {
	one := orderbook.New(orderbook.SymbolSpec{SymbolID: 1}, nil, nil, nil)
	gtc(t, one, 1, orderbook.Ask, 160050, 7)
	gtc(t, one, 2, orderbook.Ask, 160050, 3)
	gtc(t, one, 3, orderbook.Bid, 155000, 125)
	two := orderbook.New(orderbook.SymbolSpec{SymbolID: 2}, nil, nil, nil)
	return &fakeSource{books: map[int32]*orderbook.OrderBook{1: one, 2: two}}
}

func TestPublishOnce_RendersDecimals(t *testing.T) {
	src := newSource(t)
	out := &fakeSender{}
	p := New(Config{Depth: 5, PriceDecimals: 2, SizeDecimals: 1}, src, out, nil)

	n, err := p.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, out.msgs, 2)
	assert.Equal(t, "1", string(out.msgs[0].key))

	var msg map[string]any
	require.NoError(t, json.Unmarshal(out.msgs[0].value, &msg))
	assert.Equal(t, float64(1), msg["symbol"])
	asks := msg["asks"].([]any)
	require.Len(t, asks, 1)
	assert.Equal(t, "1600.5", asks[0].(map[string]any)["price"])
	assert.Equal(t, "1", asks[0].(map[string]any)["volume"])
	assert.Equal(t, float64(2), asks[0].(map[string]any)["orders"])
	bids := msg["bids"].([]any)
	assert.Equal(t, "1550", bids[0].(map[string]any)["price"])
	assert.Equal(t, "12.5", bids[0].(map[string]any)["volume"])
}

func TestPublishOnce_SkipsUnchangedBooks(t *testing.T) {
	src := newSource(t)
	out := &fakeSender{}
	p := New(Config{Depth: 5}, src, out, nil)

	_, err := p.PublishOnce(context.Background())
	require.NoError(t, err)
	n, err := p.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	gtc(t, src.books[2], 9, orderbook.Bid, 10, 1)
	n, err = p.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "2", string(out.msgs[len(out.msgs)-1].key))
}

func TestPublishOnce_SendFailureIsRetried(t *testing.T) {
	src := newSource(t)
	out := &fakeSender{err: errors.New("broker down")}
	p := New(Config{Depth: 5}, src, out, nil)

	_, err := p.PublishOnce(context.Background())
	assert.EqualError(t, err, "broker down")

	out.err = nil
	n, err := p.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
