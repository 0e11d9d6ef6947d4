package pb

import (
	"fmt"

	"matchbook/infra/codec"
)

type Action int32

const (
	Action_ASK Action = 0
	Action_BID Action = 1
)

type OrderType int32

const (
	OrderType_GTC        OrderType = 0
	OrderType_IOC        OrderType = 1
	OrderType_IOC_BUDGET OrderType = 2
	OrderType_FOK        OrderType = 3
	OrderType_FOK_BUDGET OrderType = 4
)

type EventType int32

const (
	EventType_TRADE  EventType = 0
	EventType_REDUCE EventType = 1
	EventType_REJECT EventType = 2
	EventType_BINARY EventType = 3
)

// -------------------- Requests --------------------

type PlaceOrderRequest struct {
	OrderId         int64
	Uid             int64
	Symbol          int32
	Action          Action
	Type            OrderType
	Price           int64
	Size            int64
	ReserveBidPrice int64
}

func (m *PlaceOrderRequest) MarshalWire(b []byte) []byte {
	b = codec.AppendInt(b, 1, m.OrderId)
	b = codec.AppendInt(b, 2, m.Uid)
	b = codec.AppendInt(b, 3, int64(m.Symbol))
	b = codec.AppendUint(b, 4, uint64(m.Action))
	b = codec.AppendUint(b, 5, uint64(m.Type))
	b = codec.AppendInt(b, 6, m.Price)
	b = codec.AppendInt(b, 7, m.Size)
	b = codec.AppendInt(b, 8, m.ReserveBidPrice)
	return b
}

func (m *PlaceOrderRequest) UnmarshalWire(b []byte) error {
	*m = PlaceOrderRequest{}
	return codec.Walk(b, func(f codec.Field) error {
		switch f.Num {
		case 1:
			m.OrderId = f.Int()
		case 2:
			m.Uid = f.Int()
		case 3:
			m.Symbol = int32(f.Int())
		case 4:
			m.Action = Action(f.U)
		case 5:
			m.Type = OrderType(f.U)
		case 6:
			m.Price = f.Int()
		case 7:
			m.Size = f.Int()
		case 8:
			m.ReserveBidPrice = f.Int()
		}
		return nil
	})
}

// OrderRef addresses a resting order.
type OrderRef struct {
	OrderId int64
	Uid     int64
	Symbol  int32
}

func (r *OrderRef) appendWire(b []byte) []byte {
	b = codec.AppendInt(b, 1, r.OrderId)
	b = codec.AppendInt(b, 2, r.Uid)
	return codec.AppendInt(b, 3, int64(r.Symbol))
}

// field reports whether f belonged to the reference.
func (r *OrderRef) field(f codec.Field) bool {
	switch f.Num {
	case 1:
		r.OrderId = f.Int()
	case 2:
		r.Uid = f.Int()
	case 3:
		r.Symbol = int32(f.Int())
	default:
		return false
	}
	return true
}

type CancelOrderRequest struct {
	OrderRef
}

func (m *CancelOrderRequest) MarshalWire(b []byte) []byte { return m.appendWire(b) }

func (m *CancelOrderRequest) UnmarshalWire(b []byte) error {
	*m = CancelOrderRequest{}
	return codec.Walk(b, func(f codec.Field) error {
		m.field(f)
		return nil
	})
}

type MoveOrderRequest struct {
	OrderRef
	NewPrice int64
}

func (m *MoveOrderRequest) MarshalWire(b []byte) []byte {
	return codec.AppendInt(m.appendWire(b), 4, m.NewPrice)
}

func (m *MoveOrderRequest) UnmarshalWire(b []byte) error {
	*m = MoveOrderRequest{}
	return codec.Walk(b, func(f codec.Field) error {
		if !m.field(f) && f.Num == 4 {
			m.NewPrice = f.Int()
		}
		return nil
	})
}

type ReduceOrderRequest struct {
	OrderRef
	ReduceSize int64
}

func (m *ReduceOrderRequest) MarshalWire(b []byte) []byte {
	return codec.AppendInt(m.appendWire(b), 4, m.ReduceSize)
}

func (m *ReduceOrderRequest) UnmarshalWire(b []byte) error {
	*m = ReduceOrderRequest{}
	return codec.Walk(b, func(f codec.Field) error {
		if !m.field(f) && f.Num == 4 {
			m.ReduceSize = f.Int()
		}
		return nil
	})
}

type OrderBookRequest struct {
	Symbol int32
	Depth  int32
}

func (m *OrderBookRequest) MarshalWire(b []byte) []byte {
	b = codec.AppendInt(b, 1, int64(m.Symbol))
	return codec.AppendInt(b, 2, int64(m.Depth))
}

func (m *OrderBookRequest) UnmarshalWire(b []byte) error {
	*m = OrderBookRequest{}
	return codec.Walk(b, func(f codec.Field) error {
		switch f.Num {
		case 1:
			m.Symbol = int32(f.Int())
		case 2:
			m.Depth = int32(f.Int())
		}
		return nil
	})
}

// -------------------- Responses --------------------

type Event struct {
	Type                  EventType
	ActiveOrderCompleted  bool
	MatchedOrderId        int64
	MatchedOrderUid       int64
	MatchedOrderCompleted bool
	Price                 int64
	Size                  int64
	BidderHoldPrice       int64
	Section               int32
}

func (m *Event) MarshalWire(b []byte) []byte {
	b = codec.AppendUint(b, 1, uint64(m.Type))
	b = codec.AppendBool(b, 2, m.ActiveOrderCompleted)
	b = codec.AppendInt(b, 3, m.MatchedOrderId)
	b = codec.AppendInt(b, 4, m.MatchedOrderUid)
	b = codec.AppendBool(b, 5, m.MatchedOrderCompleted)
	b = codec.AppendInt(b, 6, m.Price)
	b = codec.AppendInt(b, 7, m.Size)
	b = codec.AppendInt(b, 8, m.BidderHoldPrice)
	b = codec.AppendInt(b, 9, int64(m.Section))
	return b
}

func (m *Event) UnmarshalWire(b []byte) error {
	*m = Event{}
	return codec.Walk(b, func(f codec.Field) error {
		switch f.Num {
		case 1:
			m.Type = EventType(f.U)
		case 2:
			m.ActiveOrderCompleted = f.Bool()
		case 3:
			m.MatchedOrderId = f.Int()
		case 4:
			m.MatchedOrderUid = f.Int()
		case 5:
			m.MatchedOrderCompleted = f.Bool()
		case 6:
			m.Price = f.Int()
		case 7:
			m.Size = f.Int()
		case 8:
			m.BidderHoldPrice = f.Int()
		case 9:
			m.Section = int32(f.Int())
		}
		return nil
	})
}

// CommandResponse reports the outcome of a mutating command. ResultCode
// carries business outcomes; transport failures are gRPC statuses.
type CommandResponse struct {
	Seq        uint64
	ResultCode int32
	Result     string
	Events     []*Event
}

func (m *CommandResponse) MarshalWire(b []byte) []byte {
	b = codec.AppendUint(b, 1, m.Seq)
	b = codec.AppendInt(b, 2, int64(m.ResultCode))
	b = codec.AppendString(b, 3, m.Result)
	for _, ev := range m.Events {
		b = codec.AppendMessage(b, 4, ev.MarshalWire)
	}
	return b
}

func (m *CommandResponse) UnmarshalWire(b []byte) error {
	*m = CommandResponse{}
	return codec.Walk(b, func(f codec.Field) error {
		switch f.Num {
		case 1:
			m.Seq = f.U
		case 2:
			m.ResultCode = int32(f.Int())
		case 3:
			m.Result = string(f.B)
		case 4:
			ev := &Event{}
			if err := ev.UnmarshalWire(f.B); err != nil {
				return fmt.Errorf("event %d: %w", len(m.Events), err)
			}
			m.Events = append(m.Events, ev)
		}
		return nil
	})
}

type Level struct {
	Price  int64
	Volume int64
	Orders int64
}

func (m *Level) MarshalWire(b []byte) []byte {
	b = codec.AppendInt(b, 1, m.Price)
	b = codec.AppendInt(b, 2, m.Volume)
	return codec.AppendInt(b, 3, m.Orders)
}

func (m *Level) UnmarshalWire(b []byte) error {
	*m = Level{}
	return codec.Walk(b, func(f codec.Field) error {
		switch f.Num {
		case 1:
			m.Price = f.Int()
		case 2:
			m.Volume = f.Int()
		case 3:
			m.Orders = f.Int()
		}
		return nil
	})
}

// OrderBookResponse lists price levels best first on both sides.
type OrderBookResponse struct {
	ResultCode int32
	Seq        uint64
	Timestamp  int64
	Asks       []*Level
	Bids       []*Level
}

func (m *OrderBookResponse) MarshalWire(b []byte) []byte {
	b = codec.AppendInt(b, 1, int64(m.ResultCode))
	b = codec.AppendUint(b, 2, m.Seq)
	b = codec.AppendInt(b, 3, m.Timestamp)
	for _, l := range m.Asks {
		b = codec.AppendMessage(b, 4, l.MarshalWire)
	}
	for _, l := range m.Bids {
		b = codec.AppendMessage(b, 5, l.MarshalWire)
	}
	return b
}

func (m *OrderBookResponse) UnmarshalWire(b []byte) error {
	*m = OrderBookResponse{}
	return codec.Walk(b, func(f codec.Field) error {
		switch f.Num {
		case 1:
			m.ResultCode = int32(f.Int())
		case 2:
			m.Seq = f.U
		case 3:
			m.Timestamp = f.Int()
		case 4, 5:
			l := &Level{}
			if err := l.UnmarshalWire(f.B); err != nil {
				return err
			}
			if f.Num == 4 {
				m.Asks = append(m.Asks, l)
			} else {
				m.Bids = append(m.Bids, l)
			}
		}
		return nil
	})
}
