package codec

import (
	"fmt"

	"matchbook/domain/orderbook"
)

// Batch is the decoded outbox payload of one command: who asked for what,
// how it ended and the events it produced.
type Batch struct {
	Seq        uint64
	Command    orderbook.CommandType
	Symbol     int32
	OrderID    int64
	UID        int64
	Action     orderbook.Action
	Timestamp  int64
	ResultCode orderbook.ResultCode
	Events     []orderbook.Event
}

const (
	batchSeq = iota + 1
	batchCommand
	batchSymbol
	batchOrderID
	batchUID
	batchAction
	batchTimestamp
	batchResultCode
	batchEvent
)

const (
	evType = iota + 1
	evSection
	evActiveCompleted
	evMatchedOrderID
	evMatchedUID
	evMatchedCompleted
	evPrice
	evSize
	evBidderHoldPrice
)

// AppendBatch encodes the outcome of cmd processed under seq.
func AppendBatch(b []byte, seq uint64, cmd *orderbook.OrderCommand) []byte {
	b = AppendUint(b, batchSeq, seq)
	b = AppendUint(b, batchCommand, uint64(cmd.Command))
	b = AppendInt(b, batchSymbol, int64(cmd.Symbol))
	b = AppendInt(b, batchOrderID, cmd.OrderID)
	b = AppendInt(b, batchUID, cmd.UID)
	b = AppendUint(b, batchAction, uint64(cmd.Action))
	b = AppendInt(b, batchTimestamp, cmd.Timestamp)
	b = AppendInt(b, batchResultCode, int64(cmd.ResultCode))
	for ev := cmd.Events; ev != nil; ev = ev.Next {
		b = AppendMessage(b, batchEvent, func(b []byte) []byte {
			return appendEvent(b, ev)
		})
	}
	return b
}

func appendEvent(b []byte, ev *orderbook.Event) []byte {
	b = AppendUint(b, evType, uint64(ev.Type))
	b = AppendInt(b, evSection, int64(ev.Section))
	b = AppendBool(b, evActiveCompleted, ev.ActiveOrderCompleted)
	b = AppendInt(b, evMatchedOrderID, ev.MatchedOrderID)
	b = AppendInt(b, evMatchedUID, ev.MatchedOrderUID)
	b = AppendBool(b, evMatchedCompleted, ev.MatchedOrderCompleted)
	b = AppendInt(b, evPrice, ev.Price)
	b = AppendInt(b, evSize, ev.Size)
	b = AppendInt(b, evBidderHoldPrice, ev.BidderHoldPrice)
	return b
}

func DecodeBatch(b []byte) (*Batch, error) {
	out := &Batch{}
	err := Walk(b, func(f Field) error {
		switch f.Num {
		case batchSeq:
			out.Seq = f.U
		case batchCommand:
			out.Command = orderbook.CommandType(f.U)
		case batchSymbol:
			out.Symbol = int32(f.Int())
		case batchOrderID:
			out.OrderID = f.Int()
		case batchUID:
			out.UID = f.Int()
		case batchAction:
			out.Action = orderbook.Action(f.U)
		case batchTimestamp:
			out.Timestamp = f.Int()
		case batchResultCode:
			out.ResultCode = orderbook.ResultCode(f.Int())
		case batchEvent:
			ev, err := decodeEvent(f.B)
			if err != nil {
				return fmt.Errorf("event %d: %w", len(out.Events), err)
			}
			out.Events = append(out.Events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeEvent(b []byte) (orderbook.Event, error) {
	var ev orderbook.Event
	err := Walk(b, func(f Field) error {
		switch f.Num {
		case evType:
			ev.Type = orderbook.EventType(f.U)
		case evSection:
			ev.Section = int32(f.Int())
		case evActiveCompleted:
			ev.ActiveOrderCompleted = f.Bool()
		case evMatchedOrderID:
			ev.MatchedOrderID = f.Int()
		case evMatchedUID:
			ev.MatchedOrderUID = f.Int()
		case evMatchedCompleted:
			ev.MatchedOrderCompleted = f.Bool()
		case evPrice:
			ev.Price = f.Int()
		case evSize:
			ev.Size = f.Int()
		case evBidderHoldPrice:
			ev.BidderHoldPrice = f.Int()
		}
		return nil
	})
	return ev, err
}

// Chain links the decoded events the way the engine attached them.
func (b *Batch) Chain() *orderbook.Event {
	var head *orderbook.Event
	for i := len(b.Events) - 1; i >= 0; i-- {
		ev := b.Events[i]
		ev.Next = head
		head = &ev
	}
	return head
}
