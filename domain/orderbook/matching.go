package orderbook

import "math"

// tryMatchInstantly matches taker against the opposite side while prices
// cross and returns the taker's total filled size. Trade events are appended
// to cmd.
func (b *OrderBook) tryMatchInstantly(taker takerOrder, cmd *OrderCommand) int64 {
	isBid := taker.action() == Bid

	// a budget ask has already been checked against the whole side
	limitPrice := taker.price()
	if cmd.Command == PlaceOrder && cmd.OrderType == FOKBudget && !isBid {
		limitPrice = 0
	}

	var maker *DirectOrder
	if isBid {
		maker = b.bestAsk
		if maker == nil || maker.Price > limitPrice {
			return taker.filled()
		}
	} else {
		maker = b.bestBid
		if maker == nil || maker.Price < limitPrice {
			return taker.filled()
		}
	}

	remaining := taker.size() - taker.filled()
	if remaining == 0 {
		return taker.filled()
	}

	bucketTail := maker.parent.tail
	takerReserve := taker.reserveBidPrice()
	makerBuckets := b.sideBuckets(taker.action().Opposite())

	var head, tail *Event
	for {
		tradeSize := min(remaining, maker.Remaining())
		maker.Filled += tradeSize
		maker.parent.volume -= tradeSize
		remaining -= tradeSize

		makerCompleted := maker.Size == maker.Filled
		if makerCompleted {
			maker.parent.numOrders--
		}

		holdPrice := maker.ReserveBidPrice
		if isBid {
			holdPrice = takerReserve
		}
		ev := b.events.sendTradeEvent(maker, makerCompleted, remaining == 0, tradeSize, holdPrice)
		if tail == nil {
			head = ev
		} else {
			tail.Next = ev
		}
		tail = ev

		if !makerCompleted {
			// the taker is exhausted, the maker stays at the front
			break
		}

		prev := maker.prev
		b.orderIndex.Remove(maker.OrderID)
		if maker == bucketTail {
			makerBuckets.Remove(maker.Price)
			b.releaseBucket(maker.parent)
			if prev != nil {
				bucketTail = prev.parent.tail
			}
		}
		b.releaseOrder(maker)
		maker = prev

		if maker == nil || remaining == 0 {
			break
		}
		if isBid && maker.Price > limitPrice || !isBid && maker.Price < limitPrice {
			break
		}
	}

	if maker != nil {
		maker.next = nil
	}
	if isBid {
		b.bestAsk = maker
	} else {
		b.bestBid = maker
	}

	cmd.appendEvents(head)
	return taker.size() - remaining
}

// checkBudgetToFill returns the total price of buying (or selling) size from
// the best levels of the opposite side, or math.MaxInt64 when the side
// cannot fill it.
func (b *OrderBook) checkBudgetToFill(action Action, size int64) int64 {
	maker := b.bestBid
	if action == Bid {
		maker = b.bestAsk
	}

	var budget int64
	for maker != nil {
		bucket := maker.parent
		available := bucket.volume
		if size <= available {
			return budget + size*maker.Price
		}
		size -= available
		budget += available * maker.Price
		maker = bucket.tail.prev
	}
	return math.MaxInt64
}

// isBudgetLimitSatisfied accepts a bid whose cost does not exceed its limit
// and an ask whose proceeds reach it.
func isBudgetLimitSatisfied(action Action, calculated, limit int64) bool {
	return calculated != math.MaxInt64 &&
		(calculated == limit || (action == Bid) != (calculated > limit))
}
