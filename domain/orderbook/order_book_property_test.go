package orderbook

import (
	"testing"

	"pgregory.net/rapid"
)

type opResult struct {
	traded   int64
	rejected int64
}

func tally(cmd *OrderCommand) opResult {
	var r opResult
	cmd.ForEachEvent(func(ev *Event) {
		switch ev.Type {
		case EventTrade:
			r.traded += ev.Size
		case EventReject:
			r.rejected += ev.Size
		}
	})
	return r
}

func totalVolume(b *OrderBook) int64 {
	return b.TotalOrdersVolume(Ask) + b.TotalOrdersVolume(Bid)
}

func randomPlace(t *rapid.T, id int64) *OrderCommand {
	action := Action(rapid.IntRange(0, 1).Draw(t, "action"))
	typ := rapid.SampledFrom([]OrderType{GTC, GTC, GTC, IOC, FOKBudget, FOK}).Draw(t, "type")
	price := rapid.Int64Range(95, 105).Draw(t, "price")
	size := rapid.Int64Range(1, 20).Draw(t, "size")
	if typ == FOKBudget {
		price *= size
	}
	cmd := placeCmd(id, id%3+1, action, typ, price, size)
	cmd.ReserveBidPrice = 1_000_000
	return cmd
}

func TestProperty_BookInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := New(testSpec, nil, nil, nil)
		var ids []int64
		nextID := int64(1)

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			op := rapid.IntRange(0, 9).Draw(t, "op")
			var existing *DirectOrder
			if op >= 6 && len(ids) > 0 {
				id := rapid.SampledFrom(ids).Draw(t, "target")
				existing, _ = b.OrderByID(id)
			}

			before := totalVolume(b)
			switch {
			case existing == nil:
				cmd := randomPlace(t, nextID)
				nextID++
				if cmd.ResultCode = b.ProcessCommand(cmd); cmd.ResultCode != ResultSuccess {
					t.Fatalf("place returned %s", cmd.ResultCode)
				}
				r := tally(cmd)
				rested := int64(0)
				if o, ok := b.OrderByID(cmd.OrderID); ok {
					rested = o.Remaining()
					ids = append(ids, cmd.OrderID)
				}
				if cmd.Size != r.traded+r.rejected+rested {
					t.Fatalf("size %d != traded %d + rejected %d + rested %d", cmd.Size, r.traded, r.rejected, rested)
				}
				if after := totalVolume(b); after != before+cmd.Size-2*r.traded-r.rejected {
					t.Fatalf("volume %d after %d, placed %d traded %d rejected %d", after, before, cmd.Size, r.traded, r.rejected)
				}
			case op < 8:
				remaining := existing.Remaining()
				cmd := &OrderCommand{Command: CancelOrder, OrderID: existing.OrderID, UID: existing.UID}
				if b.ProcessCommand(cmd) != ResultSuccess {
					t.Fatalf("cancel of resting order failed")
				}
				if after := totalVolume(b); after != before-remaining {
					t.Fatalf("cancel left volume %d, want %d", after, before-remaining)
				}
			case op == 8:
				by := rapid.Int64Range(1, 10).Draw(t, "reduceBy")
				cmd := &OrderCommand{Command: ReduceOrder, OrderID: existing.OrderID, UID: existing.UID, Size: by}
				reduced := min(by, existing.Remaining())
				if b.ProcessCommand(cmd) != ResultSuccess {
					t.Fatalf("reduce of resting order failed")
				}
				if after := totalVolume(b); after != before-reduced {
					t.Fatalf("reduce left volume %d, want %d", after, before-reduced)
				}
			default:
				price := rapid.Int64Range(95, 105).Draw(t, "movePrice")
				cmd := &OrderCommand{Command: MoveOrder, OrderID: existing.OrderID, UID: existing.UID, Price: price}
				if b.ProcessCommand(cmd) != ResultSuccess {
					t.Fatalf("move of resting order failed")
				}
				if after := totalVolume(b); after != before-2*tally(cmd).traded {
					t.Fatalf("move left volume %d, want %d", after, before-2*tally(cmd).traded)
				}
			}

			if err := b.ValidateInternalState(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			if ask, bid := b.BestAsk(), b.BestBid(); ask != nil && bid != nil && bid.Price >= ask.Price {
				t.Fatalf("crossed book: bid %d >= ask %d", bid.Price, ask.Price)
			}
		}
	})
}

// Moving an order matches exactly like cancelling it and placing its
// remainder at the new price.
func TestProperty_MoveMatchesCancelAndPlace(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		moved := New(testSpec, nil, nil, nil)
		replaced := New(testSpec, nil, nil, nil)

		n := rapid.IntRange(1, 30).Draw(t, "orders")
		for id := int64(1); id <= int64(n); id++ {
			cmd := randomPlace(t, id)
			cmd.OrderType = GTC
			if cmd.Action == Bid {
				cmd.Price = rapid.Int64Range(90, 100).Draw(t, "bidPrice")
			} else {
				cmd.Price = rapid.Int64Range(101, 110).Draw(t, "askPrice")
			}
			twin := *cmd
			moved.ProcessCommand(cmd)
			replaced.ProcessCommand(&twin)
		}

		var ids []int64
		moved.AsksWalk(func(o *DirectOrder) bool { ids = append(ids, o.OrderID); return true })
		moved.BidsWalk(func(o *DirectOrder) bool { ids = append(ids, o.OrderID); return true })
		target, _ := moved.OrderByID(rapid.SampledFrom(ids).Draw(t, "target"))
		newPrice := rapid.Int64Range(88, 112).Draw(t, "newPrice")

		move := &OrderCommand{Command: MoveOrder, OrderID: target.OrderID, UID: target.UID, Price: newPrice}
		remaining, action, uid, id := target.Remaining(), target.Action, target.UID, target.OrderID
		moved.ProcessCommand(move)

		replaced.ProcessCommand(&OrderCommand{Command: CancelOrder, OrderID: id, UID: uid})
		place := placeCmd(id, uid, action, GTC, newPrice, remaining)
		place.ReserveBidPrice = 1_000_000
		replaced.ProcessCommand(place)

		a, b := eventsOf(move), eventsOf(place)
		if len(a) != len(b) {
			t.Fatalf("move produced %d events, place %d", len(a), len(b))
		}
		for i := range a {
			if a[i].MatchedOrderID != b[i].MatchedOrderID || a[i].Price != b[i].Price || a[i].Size != b[i].Size {
				t.Fatalf("event %d differs: %+v vs %+v", i, a[i], b[i])
			}
		}
		la, lb := moved.L2MarketDataSnapshot(-1), replaced.L2MarketDataSnapshot(-1)
		if !equalLevels(la, lb) {
			t.Fatalf("books differ:\n%+v\n%+v", la, lb)
		}
	})
}

func equalLevels(a, b *L2MarketData) bool {
	eq := func(x, y []int64) bool {
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	}
	return eq(a.AskPrices, b.AskPrices) && eq(a.AskVolumes, b.AskVolumes) && eq(a.AskOrders, b.AskOrders) &&
		eq(a.BidPrices, b.BidPrices) && eq(a.BidVolumes, b.BidVolumes) && eq(a.BidOrders, b.BidOrders)
}
