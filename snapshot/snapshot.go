package snapshot

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"matchbook/domain/orderbook"
)

type Snapshot struct {
	Seq     uint64
	Created time.Time
	Books   []BookEntry
}

// BookEntry holds one book: asks then bids, each best first and oldest
// first within a price, which is the order RestoreOrder needs.
type BookEntry struct {
	Spec      orderbook.SymbolSpec
	Asks      []OrderEntry
	Bids      []OrderEntry
	StateHash uint64
}

type OrderEntry struct {
	ID              int64
	UID             int64
	Price           int64
	Size            int64
	Filled          int64
	ReserveBidPrice int64
	Timestamp       int64
}

// Capture copies the books as of seq. It must run on the goroutine that
// owns the books.
func Capture(seq uint64, books []*orderbook.OrderBook) *Snapshot {
	s := &Snapshot{
		Seq:     seq,
		Created: time.Now(),
		Books:   make([]BookEntry, 0, len(books)),
	}
	for _, b := range books {
		e := BookEntry{
			Spec:      b.Spec(),
			Asks:      make([]OrderEntry, 0, b.OrdersNum(orderbook.Ask)),
			Bids:      make([]OrderEntry, 0, b.OrdersNum(orderbook.Bid)),
			StateHash: b.StateHash(),
		}
		b.AsksWalk(func(o *orderbook.DirectOrder) bool {
			e.Asks = append(e.Asks, entryOf(o))
			return true
		})
		b.BidsWalk(func(o *orderbook.DirectOrder) bool {
			e.Bids = append(e.Bids, entryOf(o))
			return true
		})
		s.Books = append(s.Books, e)
	}
	return s
}

func entryOf(o *orderbook.DirectOrder) OrderEntry {
	return OrderEntry{
		ID:              o.OrderID,
		UID:             o.UID,
		Price:           o.Price,
		Size:            o.Size,
		Filled:          o.Filled,
		ReserveBidPrice: o.ReserveBidPrice,
		Timestamp:       o.Timestamp,
	}
}

// Restore rebuilds the books of s on pools. Every rebuilt book must hash to
// the value recorded at capture time.
func Restore(
	s *Snapshot,
	pools *orderbook.Pools,
	log *zap.Logger,
	events *orderbook.EventsHelper,
) ([]*orderbook.OrderBook, error) {
	books := make([]*orderbook.OrderBook, 0, len(s.Books))
	for _, e := range s.Books {
		book := orderbook.New(e.Spec, pools, log, events)
		if err := restoreSide(book, orderbook.Ask, e.Asks); err != nil {
			return nil, fmt.Errorf("symbol %d: %w", e.Spec.SymbolID, err)
		}
		if err := restoreSide(book, orderbook.Bid, e.Bids); err != nil {
			return nil, fmt.Errorf("symbol %d: %w", e.Spec.SymbolID, err)
		}
		if got := book.StateHash(); got != e.StateHash {
			return nil, fmt.Errorf("symbol %d: state hash %016x, snapshot says %016x",
				e.Spec.SymbolID, got, e.StateHash)
		}
		books = append(books, book)
	}
	return books, nil
}

func restoreSide(book *orderbook.OrderBook, action orderbook.Action, orders []OrderEntry) error {
	for _, o := range orders {
		err := book.RestoreOrder(orderbook.DirectOrder{
			OrderID:         o.ID,
			UID:             o.UID,
			Action:          action,
			Price:           o.Price,
			Size:            o.Size,
			Filled:          o.Filled,
			ReserveBidPrice: o.ReserveBidPrice,
			Timestamp:       o.Timestamp,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
