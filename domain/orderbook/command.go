package orderbook

type EventType uint8

const (
	EventTrade EventType = iota
	EventReduce
	EventReject
	EventBinary
)

func (t EventType) String() string {
	switch t {
	case EventTrade:
		return "TRADE"
	case EventReduce:
		return "REDUCE"
	case EventReject:
		return "REJECT"
	case EventBinary:
		return "BINARY_EVENT"
	default:
		return "UNKNOWN"
	}
}

// Event is one matcher outcome attached to the command that caused it.
// Events form a singly linked chain through Next.
//
// For binary events the five int64 fields MatchedOrderID, MatchedOrderUID,
// Price, Size and BidderHoldPrice carry payload words instead.
type Event struct {
	Type    EventType
	Section int32

	ActiveOrderCompleted bool

	MatchedOrderID        int64
	MatchedOrderUID       int64
	MatchedOrderCompleted bool

	Price int64
	Size  int64

	// BidderHoldPrice is the price the bid side reserved funds at; the
	// difference to Price is released back to the bidder.
	BidderHoldPrice int64

	Next *Event
}

// L2MarketData holds aggregated price levels, best first on both sides.
type L2MarketData struct {
	AskPrices  []int64
	AskVolumes []int64
	AskOrders  []int64
	BidPrices  []int64
	BidVolumes []int64
	BidOrders  []int64

	Timestamp int64
	Seq       uint64
}

func NewL2MarketData(askSize, bidSize int) *L2MarketData {
	return &L2MarketData{
		AskPrices:  make([]int64, askSize),
		AskVolumes: make([]int64, askSize),
		AskOrders:  make([]int64, askSize),
		BidPrices:  make([]int64, bidSize),
		BidVolumes: make([]int64, bidSize),
		BidOrders:  make([]int64, bidSize),
	}
}

func (d *L2MarketData) AskSize() int { return len(d.AskPrices) }
func (d *L2MarketData) BidSize() int { return len(d.BidPrices) }

// OrderCommand is the unit of work applied to a book. Request fields are set
// by the caller; ResultCode, Events and MarketData are filled in by
// processing.
type OrderCommand struct {
	Command CommandType

	OrderID         int64
	Symbol          int32
	Price           int64
	Size            int64
	ReserveBidPrice int64
	Action          Action
	OrderType       OrderType
	UID             int64
	Timestamp       int64

	ResultCode ResultCode
	Events     *Event
	MarketData *L2MarketData
}

// ForEachEvent walks the event chain in order.
func (c *OrderCommand) ForEachEvent(fn func(*Event)) {
	for ev := c.Events; ev != nil; ev = ev.Next {
		fn(ev)
	}
}

func (c *OrderCommand) EventCount() int {
	n := 0
	for ev := c.Events; ev != nil; ev = ev.Next {
		n++
	}
	return n
}

// appendEvents links chain after the last event of the command.
func (c *OrderCommand) appendEvents(chain *Event) {
	if c.Events == nil {
		c.Events = chain
		return
	}
	tail := c.Events
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = chain
}

// takerOrder is the view of the aggressive side that matching needs: a new
// order carried by a command or a resting order being moved.
type takerOrder interface {
	action() Action
	price() int64
	size() int64
	filled() int64
	reserveBidPrice() int64
}

func (c *OrderCommand) action() Action         { return c.Action }
func (c *OrderCommand) price() int64           { return c.Price }
func (c *OrderCommand) size() int64            { return c.Size }
func (c *OrderCommand) filled() int64          { return 0 }
func (c *OrderCommand) reserveBidPrice() int64 { return c.ReserveBidPrice }
