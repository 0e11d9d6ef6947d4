package orderbook

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/zeebo/blake3"
)

var (
	ErrDuplicateOrder = errors.New("duplicate order id")
	ErrInvalidOrder   = errors.New("invalid order")
)

// L2MarketDataSnapshot aggregates up to depth levels per side; a negative
// depth means all levels.
func (b *OrderBook) L2MarketDataSnapshot(depth int) *L2MarketData {
	if depth < 0 {
		depth = math.MaxInt
	}
	data := NewL2MarketData(b.TotalAskBuckets(depth), b.TotalBidBuckets(depth))
	b.FillAsks(data.AskSize(), data)
	b.FillBids(data.BidSize(), data)
	return data
}

// FillAsks writes up to n ask levels, lowest price first, and trims data's
// ask slices to the number written.
func (b *OrderBook) FillAsks(n int, data *L2MarketData) {
	data.AskPrices, data.AskVolumes, data.AskOrders = fillLevels(b.askBuckets.ForEach, n,
		data.AskPrices[:0], data.AskVolumes[:0], data.AskOrders[:0])
}

// FillBids is FillAsks for the bid side, highest price first.
func (b *OrderBook) FillBids(n int, data *L2MarketData) {
	data.BidPrices, data.BidVolumes, data.BidOrders = fillLevels(b.bidBuckets.ForEachDesc, n,
		data.BidPrices[:0], data.BidVolumes[:0], data.BidOrders[:0])
}

func fillLevels(walk func(func(int64, *Bucket), int) int, n int, prices, volumes, orders []int64) ([]int64, []int64, []int64) {
	walk(func(price int64, bk *Bucket) {
		prices = append(prices, price)
		volumes = append(volumes, bk.volume)
		orders = append(orders, int64(bk.numOrders))
	}, n)
	return prices, volumes, orders
}

// TotalAskBuckets counts ask levels up to limit.
func (b *OrderBook) TotalAskBuckets(limit int) int { return b.askBuckets.Size(limit) }

func (b *OrderBook) TotalBidBuckets(limit int) int { return b.bidBuckets.Size(limit) }

// OrdersNum is the number of resting orders on one side.
func (b *OrderBook) OrdersNum(action Action) int {
	n := 0
	b.sideBuckets(action).ForEach(func(_ int64, bk *Bucket) {
		n += int(bk.numOrders)
	}, math.MaxInt)
	return n
}

// TotalOrdersVolume is the unfilled size resting on one side.
func (b *OrderBook) TotalOrdersVolume(action Action) int64 {
	var v int64
	b.sideBuckets(action).ForEach(func(_ int64, bk *Bucket) {
		v += bk.volume
	}, math.MaxInt)
	return v
}

func (b *OrderBook) OrderByID(orderID int64) (*DirectOrder, bool) {
	return b.orderIndex.Get(orderID)
}

// FindUserOrders lists the resting orders of uid ordered by order id.
func (b *OrderBook) FindUserOrders(uid int64) []*DirectOrder {
	var out []*DirectOrder
	b.orderIndex.ForEach(func(_ int64, o *DirectOrder) {
		if o.UID == uid {
			out = append(out, o)
		}
	}, math.MaxInt)
	return out
}

func (b *OrderBook) BestAsk() *DirectOrder { return b.bestAsk }
func (b *OrderBook) BestBid() *DirectOrder { return b.bestBid }

// ---- traversal helpers ----

// AsksWalk visits ask orders in matching priority until fn returns false.
func (b *OrderBook) AsksWalk(fn func(*DirectOrder) bool) {
	walkChain(b.bestAsk, fn)
}

func (b *OrderBook) BidsWalk(fn func(*DirectOrder) bool) {
	walkChain(b.bestBid, fn)
}

func walkChain(best *DirectOrder, fn func(*DirectOrder) bool) {
	for o := best; o != nil; o = o.prev {
		if !fn(o) {
			return
		}
	}
}

// StateHash fingerprints both sides in priority order together with the
// symbol spec. Books holding the same orders in the same priority hash
// equal.
func (b *OrderBook) StateHash() uint64 {
	h := blake3.New()
	var buf [8*6 + 1]byte
	writeOrder := func(o *DirectOrder) bool {
		binary.BigEndian.PutUint64(buf[0:], uint64(o.OrderID))
		buf[8] = byte(o.Action)
		binary.BigEndian.PutUint64(buf[9:], uint64(o.Price))
		binary.BigEndian.PutUint64(buf[17:], uint64(o.Size))
		binary.BigEndian.PutUint64(buf[25:], uint64(o.ReserveBidPrice))
		binary.BigEndian.PutUint64(buf[33:], uint64(o.Filled))
		binary.BigEndian.PutUint64(buf[41:], uint64(o.UID))
		h.Write(buf[:])
		return true
	}
	b.AsksWalk(writeOrder)
	h.Write([]byte{0xFF})
	b.BidsWalk(writeOrder)
	h.Write([]byte{0xFF})
	b.spec.writeTo(h)
	return binary.BigEndian.Uint64(h.Sum(nil))
}

// RestoreOrder queues a resting order without matching it. Orders of one
// level must be restored oldest first to keep their priority.
func (b *OrderBook) RestoreOrder(o DirectOrder) error {
	if o.Size <= 0 || o.Filled < 0 || o.Filled >= o.Size {
		return fmt.Errorf("order %d size %d filled %d: %w", o.OrderID, o.Size, o.Filled, ErrInvalidOrder)
	}
	if _, dup := b.orderIndex.Get(o.OrderID); dup {
		return fmt.Errorf("order %d: %w", o.OrderID, ErrDuplicateOrder)
	}
	if best := b.bestOpposite(o.Action); best != nil && crosses(o.Action, o.Price, best.Price) {
		return fmt.Errorf("order %d at %d crosses the book at %d: %w", o.OrderID, o.Price, best.Price, ErrInvalidOrder)
	}

	order := b.pools.orders.Get()
	*order = o
	order.parent, order.next, order.prev = nil, nil, nil
	b.orderIndex.Put(order.OrderID, order)
	b.insertOrder(order, nil)
	return nil
}

func (b *OrderBook) bestOpposite(a Action) *DirectOrder {
	if a == Bid {
		return b.bestAsk
	}
	return b.bestBid
}

func crosses(a Action, price, opposite int64) bool {
	if a == Bid {
		return price >= opposite
	}
	return price <= opposite
}
