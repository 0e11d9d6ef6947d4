package orderbook

import (
	"errors"
	"fmt"
	"math"
)

// ValidateInternalState cross-checks the price trees, the order chains and
// the order index. Any error means the book is corrupt.
func (b *OrderBook) ValidateInternalState() error {
	if err := b.orderIndex.ValidateInternalState(); err != nil {
		return fmt.Errorf("order index: %w", err)
	}
	inChains := map[int64]*DirectOrder{}
	if err := b.validateChain(Ask, inChains); err != nil {
		return fmt.Errorf("asks: %w", err)
	}
	if err := b.validateChain(Bid, inChains); err != nil {
		return fmt.Errorf("bids: %w", err)
	}

	var err error
	b.orderIndex.ForEach(func(id int64, o *DirectOrder) {
		if err != nil {
			return
		}
		if inChains[id] != o {
			err = fmt.Errorf("indexed order %d is not in its chain", id)
			return
		}
		delete(inChains, id)
	}, math.MaxInt)
	if err != nil {
		return err
	}
	if len(inChains) != 0 {
		return fmt.Errorf("%d chained orders are missing from the order index", len(inChains))
	}
	return nil
}

func (b *OrderBook) validateChain(action Action, inChains map[int64]*DirectOrder) error {
	buckets := b.sideBuckets(action)
	if err := buckets.ValidateInternalState(); err != nil {
		return fmt.Errorf("price tree: %w", err)
	}

	best := b.bestAsk
	if action == Bid {
		best = b.bestBid
	}
	if best != nil && best.next != nil {
		return fmt.Errorf("best order %d has a next reference", best.OrderID)
	}

	seenBuckets := map[*Bucket]int64{}
	var (
		lastPrice      int64
		first          = true
		expectedVolume int64
		expectedOrders int32
		visited        *DirectOrder
	)
	for o := best; o != nil; o = o.prev {
		if o.next != visited {
			return fmt.Errorf("order %d is not linked back to its predecessor", o.OrderID)
		}
		visited = o
		if _, dup := inChains[o.OrderID]; dup {
			return fmt.Errorf("order %d appears twice", o.OrderID)
		}
		inChains[o.OrderID] = o

		if o.Action != action {
			return fmt.Errorf("order %d has action %s", o.OrderID, o.Action)
		}
		if o.Size <= 0 || o.Filled < 0 || o.Filled >= o.Size {
			return fmt.Errorf("order %d has size %d filled %d", o.OrderID, o.Size, o.Filled)
		}
		if o.parent == nil {
			return fmt.Errorf("order %d has no bucket", o.OrderID)
		}
		if !first && o.Price != lastPrice {
			if (action == Ask) != (o.Price > lastPrice) {
				return fmt.Errorf("price moves the wrong way at order %d (%d after %d)", o.OrderID, o.Price, lastPrice)
			}
			if o.next.parent == o.parent {
				return fmt.Errorf("price changes inside a bucket at order %d", o.OrderID)
			}
		}
		if o.parent.tail == o {
			if o.parent.volume != expectedVolume+o.Remaining() {
				return fmt.Errorf("bucket %d volume %d, orders hold %d", o.Price, o.parent.volume, expectedVolume+o.Remaining())
			}
			if o.parent.numOrders != expectedOrders+1 {
				return fmt.Errorf("bucket %d counts %d orders, chain holds %d", o.Price, o.parent.numOrders, expectedOrders+1)
			}
			if o.prev != nil && o.prev.Price == o.Price {
				return fmt.Errorf("two buckets at price %d", o.Price)
			}
			if _, dup := seenBuckets[o.parent]; dup {
				return fmt.Errorf("bucket %d reached twice", o.Price)
			}
			seenBuckets[o.parent] = o.Price
			expectedVolume, expectedOrders = 0, 0
		} else {
			expectedVolume += o.Remaining()
			expectedOrders++
		}

		lastPrice = o.Price
		first = false
	}
	if expectedOrders != 0 {
		return errors.New("chain ends inside a bucket")
	}

	var err error
	count := 0
	buckets.ForEach(func(price int64, bk *Bucket) {
		if err != nil {
			return
		}
		count++
		chainPrice, ok := seenBuckets[bk]
		switch {
		case !ok:
			err = fmt.Errorf("bucket %d is not reachable from the chain", price)
		case chainPrice != price:
			err = fmt.Errorf("bucket keyed %d holds orders at %d", price, chainPrice)
		}
	}, math.MaxInt)
	if err != nil {
		return err
	}
	if count != len(seenBuckets) {
		return fmt.Errorf("chain holds %d buckets, price tree %d", len(seenBuckets), count)
	}
	return nil
}
