package orderbook

import (
	"go.uber.org/zap"

	"matchbook/domain/art"
	"matchbook/infra/memory"
)

// PoolConfig bounds the recycled objects kept by a Pools instance.
type PoolConfig struct {
	Nodes   art.PoolConfig `mapstructure:"nodes"`
	Orders  int            `mapstructure:"orders"`
	Buckets int            `mapstructure:"buckets"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Nodes:   art.DefaultPoolConfig(),
		Orders:  8192,
		Buckets: 1024,
	}
}

// Pools holds the free lists shared by every book of one engine goroutine.
type Pools struct {
	BucketNodes *art.NodePool[*Bucket]
	OrderNodes  *art.NodePool[*DirectOrder]

	orders  *memory.FreeList[DirectOrder]
	buckets *memory.FreeList[Bucket]
}

func NewPools(cfg PoolConfig) *Pools {
	return &Pools{
		BucketNodes: art.NewNodePool[*Bucket](cfg.Nodes),
		OrderNodes:  art.NewNodePool[*DirectOrder](cfg.Nodes),
		orders:      memory.NewFreeList(cfg.Orders, func() *DirectOrder { return new(DirectOrder) }),
		buckets:     memory.NewFreeList(cfg.Buckets, func() *Bucket { return new(Bucket) }),
	}
}

// PoolStats counts how the free lists of a Pools served their Gets.
type PoolStats struct {
	OrdersAllocated  uint64
	OrdersReused     uint64
	BucketsAllocated uint64
	BucketsReused    uint64
}

// Stats reads the free list counters. It must run on the goroutine that owns
// the books.
func (p *Pools) Stats() PoolStats {
	return PoolStats{
		OrdersAllocated:  p.orders.Allocated(),
		OrdersReused:     p.orders.Reused(),
		BucketsAllocated: p.buckets.Allocated(),
		BucketsReused:    p.buckets.Reused(),
	}
}

// OrderBook is the price-time priority book of one symbol. Price levels of
// each side live in an adaptive radix tree keyed by price; all resting
// orders of a side are also linked into one chain ordered best first, so
// matching walks pointers instead of searching trees.
//
// An OrderBook is single-writer and deterministic.
type OrderBook struct {
	spec SymbolSpec

	askBuckets *art.Tree[*Bucket]
	bidBuckets *art.Tree[*Bucket]
	orderIndex *art.Tree[*DirectOrder]

	bestAsk *DirectOrder
	bestBid *DirectOrder

	pools  *Pools
	events *EventsHelper
	log    *zap.Logger
}

// New creates an empty book. A nil pools, events or log gets a private
// default.
func New(spec SymbolSpec, pools *Pools, log *zap.Logger, events *EventsHelper) *OrderBook {
	if pools == nil {
		pools = NewPools(DefaultPoolConfig())
	}
	if events == nil {
		events = NonPooledEventsHelper()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderBook{
		spec:       spec,
		askBuckets: art.New(pools.BucketNodes),
		bidBuckets: art.New(pools.BucketNodes),
		orderIndex: art.New(pools.OrderNodes),
		pools:      pools,
		events:     events,
		log:        log.With(zap.Int32("symbol", spec.SymbolID)),
	}
}

func (b *OrderBook) Spec() SymbolSpec { return b.spec }

// ProcessCommand applies cmd to the book and returns its result code.
// Outcomes are reported through the code and the events attached to cmd.
func (b *OrderBook) ProcessCommand(cmd *OrderCommand) ResultCode {
	switch cmd.Command {
	case MoveOrder:
		return b.MoveOrder(cmd)
	case CancelOrder:
		return b.CancelOrder(cmd)
	case ReduceOrder:
		return b.ReduceOrder(cmd)
	case PlaceOrder:
		if cmd.ResultCode != ResultValidForMatchingEngine {
			return cmd.ResultCode
		}
		b.NewOrder(cmd)
		return ResultSuccess
	case OrderBookRequest:
		cmd.MarketData = b.L2MarketDataSnapshot(int(cmd.Size))
		return ResultSuccess
	default:
		return ResultMatchingUnsupportedCommand
	}
}

// NewOrder places the order carried by cmd.
func (b *OrderBook) NewOrder(cmd *OrderCommand) {
	switch cmd.OrderType {
	case GTC:
		b.placeGTC(cmd)
	case IOC:
		b.matchIOC(cmd)
	case FOKBudget:
		b.matchFOKBudget(cmd)
	default:
		b.log.Warn("unsupported order type",
			zap.Int64("orderId", cmd.OrderID),
			zap.Stringer("type", cmd.OrderType))
		b.events.attachRejectEvent(cmd, cmd.Size)
	}
}

func (b *OrderBook) placeGTC(cmd *OrderCommand) {
	filled := b.tryMatchInstantly(cmd, cmd)
	if filled == cmd.Size {
		return
	}

	if _, dup := b.orderIndex.Get(cmd.OrderID); dup {
		b.events.attachRejectEvent(cmd, cmd.Size-filled)
		b.log.Warn("duplicate order id, remainder rejected",
			zap.Int64("orderId", cmd.OrderID),
			zap.Int64("uid", cmd.UID),
			zap.Int64("rejected", cmd.Size-filled))
		return
	}

	order := b.pools.orders.Get()
	order.OrderID = cmd.OrderID
	order.Price = cmd.Price
	order.Size = cmd.Size
	order.Filled = filled
	order.ReserveBidPrice = cmd.ReserveBidPrice
	order.Action = cmd.Action
	order.UID = cmd.UID
	order.Timestamp = cmd.Timestamp

	b.orderIndex.Put(order.OrderID, order)
	b.insertOrder(order, nil)
}

func (b *OrderBook) matchIOC(cmd *OrderCommand) {
	filled := b.tryMatchInstantly(cmd, cmd)
	if rejected := cmd.Size - filled; rejected != 0 {
		b.events.attachRejectEvent(cmd, rejected)
	}
}

func (b *OrderBook) matchFOKBudget(cmd *OrderCommand) {
	budget := b.checkBudgetToFill(cmd.Action, cmd.Size)
	if isBudgetLimitSatisfied(cmd.Action, budget, cmd.Price) {
		b.tryMatchInstantly(cmd, cmd)
		return
	}
	b.events.attachRejectEvent(cmd, cmd.Size)
}

// CancelOrder removes a resting order of cmd.UID.
func (b *OrderBook) CancelOrder(cmd *OrderCommand) ResultCode {
	order, ok := b.orderIndex.Get(cmd.OrderID)
	if !ok || order.UID != cmd.UID {
		return ResultMatchingUnknownOrderID
	}

	b.orderIndex.Remove(cmd.OrderID)
	if freed := b.removeOrder(order); freed != nil {
		b.releaseBucket(freed)
	}

	cmd.Action = order.Action
	cmd.Events = b.events.sendReduceEvent(order, order.Remaining(), true)
	b.releaseOrder(order)
	return ResultSuccess
}

// ReduceOrder shrinks a resting order by up to cmd.Size, removing it once
// nothing remains.
func (b *OrderBook) ReduceOrder(cmd *OrderCommand) ResultCode {
	if cmd.Size <= 0 {
		return ResultMatchingReduceFailedWrongSize
	}
	order, ok := b.orderIndex.Get(cmd.OrderID)
	if !ok || order.UID != cmd.UID {
		return ResultMatchingUnknownOrderID
	}

	remaining := order.Remaining()
	reduceBy := min(remaining, cmd.Size)
	canRemove := reduceBy == remaining

	if canRemove {
		b.orderIndex.Remove(cmd.OrderID)
		if freed := b.removeOrder(order); freed != nil {
			b.releaseBucket(freed)
		}
	} else {
		order.Size -= reduceBy
		order.parent.volume -= reduceBy
	}

	cmd.Events = b.events.sendReduceEvent(order, reduceBy, canRemove)
	cmd.Action = order.Action
	if canRemove {
		b.releaseOrder(order)
	}
	return ResultSuccess
}

// MoveOrder re-prices a resting order. The order loses its time priority and
// may match at the new price like a fresh order.
func (b *OrderBook) MoveOrder(cmd *OrderCommand) ResultCode {
	order, ok := b.orderIndex.Get(cmd.OrderID)
	if !ok || order.UID != cmd.UID {
		return ResultMatchingUnknownOrderID
	}

	if b.spec.Type == ExchangePair && order.Action == Bid && cmd.Price > order.ReserveBidPrice {
		return ResultMatchingMoveFailedPriceOverRiskLimit
	}

	freed := b.removeOrder(order)
	order.Price = cmd.Price
	cmd.Action = order.Action

	filled := b.tryMatchInstantly(order, cmd)
	if filled == order.Size {
		b.orderIndex.Remove(cmd.OrderID)
		b.releaseOrder(order)
		if freed != nil {
			b.releaseBucket(freed)
		}
		return ResultSuccess
	}

	order.Filled = filled
	b.insertOrder(order, freed)
	return ResultSuccess
}

// ---- chain maintenance ----

func (b *OrderBook) sideBuckets(a Action) *art.Tree[*Bucket] {
	if a == Ask {
		return b.askBuckets
	}
	return b.bidBuckets
}

// insertOrder queues order at its price, reusing freeBucket when a new
// level is needed.
func (b *OrderBook) insertOrder(order *DirectOrder, freeBucket *Bucket) {
	isAsk := order.Action == Ask
	buckets := b.sideBuckets(order.Action)

	if to, ok := buckets.Get(order.Price); ok {
		if freeBucket != nil {
			b.releaseBucket(freeBucket)
		}
		to.volume += order.Remaining()
		to.numOrders++

		oldTail := to.tail
		prevOrder := oldTail.prev

		to.tail = order
		oldTail.prev = order
		if prevOrder != nil {
			prevOrder.next = order
		}
		order.next = oldTail
		order.prev = prevOrder
		order.parent = to
		return
	}

	bucket := freeBucket
	if bucket == nil {
		bucket = b.pools.buckets.Get()
	}
	bucket.tail = order
	bucket.volume = order.Remaining()
	bucket.numOrders = 1
	order.parent = bucket
	buckets.Put(order.Price, bucket)

	var better *Bucket
	var found bool
	if isAsk {
		better, found = buckets.Lower(order.Price)
	} else {
		better, found = buckets.Higher(order.Price)
	}

	if found {
		betterTail := better.tail
		prevOrder := betterTail.prev

		betterTail.prev = order
		if prevOrder != nil {
			prevOrder.next = order
		}
		order.next = betterTail
		order.prev = prevOrder
		return
	}

	oldBest := b.bestAsk
	if !isAsk {
		oldBest = b.bestBid
	}
	if oldBest != nil {
		oldBest.next = order
	}
	if isAsk {
		b.bestAsk = order
	} else {
		b.bestBid = order
	}
	order.next = nil
	order.prev = oldBest
}

// removeOrder unlinks order from its side. When it was the last order of its
// level the bucket leaves the price tree and is returned for reuse or
// release by the caller.
func (b *OrderBook) removeOrder(order *DirectOrder) *Bucket {
	bucket := order.parent
	bucket.volume -= order.Remaining()
	bucket.numOrders--

	var removed *Bucket
	if bucket.tail == order {
		if order.next == nil || order.next.parent != bucket {
			b.sideBuckets(order.Action).Remove(order.Price)
			removed = bucket
		} else {
			bucket.tail = order.next
		}
	}

	if order.next != nil {
		order.next.prev = order.prev
	}
	if order.prev != nil {
		order.prev.next = order.next
	}

	if order == b.bestAsk {
		b.bestAsk = order.prev
	} else if order == b.bestBid {
		b.bestBid = order.prev
	}

	order.next, order.prev, order.parent = nil, nil, nil
	return removed
}

func (b *OrderBook) releaseOrder(o *DirectOrder) {
	*o = DirectOrder{}
	b.pools.orders.Put(o)
}

func (b *OrderBook) releaseBucket(bk *Bucket) {
	*bk = Bucket{}
	b.pools.buckets.Put(bk)
}
