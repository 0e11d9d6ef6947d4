package orderbook

import (
	"encoding/binary"
	"errors"
	"fmt"

	"matchbook/infra/memory"
)

// EventsHelper creates matcher events. A pooled helper takes events one at a
// time from chains supplied by a shared ChainPool; whoever consumes the
// events returns their chains to the same pool.
type EventsHelper struct {
	chains *memory.ChainPool[Event]
	cached *Event
}

func NewEventsHelper(chains *memory.ChainPool[Event]) *EventsHelper {
	return &EventsHelper{chains: chains}
}

// NonPooledEventsHelper allocates every event.
func NonPooledEventsHelper() *EventsHelper {
	return &EventsHelper{}
}

// NewEventChain builds a chain of n zeroed events, for use as the chain
// constructor of a ChainPool.
func NewEventChain(n int) func() *Event {
	return func() *Event {
		var head *Event
		for i := 0; i < n; i++ {
			head = &Event{Next: head}
		}
		return head
	}
}

func (h *EventsHelper) newEvent() *Event {
	if h.chains == nil {
		return &Event{}
	}
	if h.cached == nil {
		h.cached = h.chains.Get()
	}
	ev := h.cached
	h.cached = ev.Next
	*ev = Event{}
	return ev
}

func (h *EventsHelper) sendTradeEvent(maker *DirectOrder, makerCompleted, takerCompleted bool, size, bidderHoldPrice int64) *Event {
	ev := h.newEvent()
	ev.Type = EventTrade
	ev.ActiveOrderCompleted = takerCompleted
	ev.MatchedOrderID = maker.OrderID
	ev.MatchedOrderUID = maker.UID
	ev.MatchedOrderCompleted = makerCompleted
	ev.Price = maker.Price
	ev.Size = size
	ev.BidderHoldPrice = bidderHoldPrice
	return ev
}

func (h *EventsHelper) sendReduceEvent(order *DirectOrder, reduceSize int64, completed bool) *Event {
	ev := h.newEvent()
	ev.Type = EventReduce
	ev.ActiveOrderCompleted = completed
	ev.Price = order.Price
	ev.Size = reduceSize
	ev.BidderHoldPrice = order.ReserveBidPrice
	return ev
}

// attachRejectEvent puts a reject event for rejectedSize at the head of the
// command's event chain.
func (h *EventsHelper) attachRejectEvent(cmd *OrderCommand, rejectedSize int64) {
	ev := h.newEvent()
	ev.Type = EventReject
	ev.ActiveOrderCompleted = true
	ev.Price = cmd.Price
	ev.Size = rejectedSize
	ev.BidderHoldPrice = cmd.ReserveBidPrice
	ev.Next = cmd.Events
	cmd.Events = ev
}

const binaryEventWords = 5

var ErrCorruptBinaryEvent = errors.New("corrupt binary event chain")

// CreateBinaryEventsChain packs payload into a chain of binary events tagged
// with section. The first word holds the payload length; the last event is
// zero padded.
func (h *EventsHelper) CreateBinaryEventsChain(section int32, payload []byte) *Event {
	words := make([]int64, 1, 1+(len(payload)+7)/8)
	words[0] = int64(len(payload))
	for off := 0; off < len(payload); off += 8 {
		var w [8]byte
		copy(w[:], payload[off:])
		words = append(words, int64(binary.BigEndian.Uint64(w[:])))
	}
	for len(words)%binaryEventWords != 0 {
		words = append(words, 0)
	}

	var head, tail *Event
	for i := 0; i < len(words); i += binaryEventWords {
		ev := h.newEvent()
		ev.Type = EventBinary
		ev.Section = section
		ev.MatchedOrderID = words[i]
		ev.MatchedOrderUID = words[i+1]
		ev.Price = words[i+2]
		ev.Size = words[i+3]
		ev.BidderHoldPrice = words[i+4]
		if tail == nil {
			head = ev
		} else {
			tail.Next = ev
		}
		tail = ev
	}
	return head
}

// DeserializeBinaryEvents reassembles the payloads of every binary event
// chain found in the chain starting at head, keyed by section. Other event
// types are skipped.
func DeserializeBinaryEvents(head *Event) (map[int32][]byte, error) {
	words := map[int32][]int64{}
	for ev := head; ev != nil; ev = ev.Next {
		if ev.Type != EventBinary {
			continue
		}
		words[ev.Section] = append(words[ev.Section],
			ev.MatchedOrderID, ev.MatchedOrderUID, ev.Price, ev.Size, ev.BidderHoldPrice)
	}

	out := make(map[int32][]byte, len(words))
	for s, w := range words {
		n := w[0]
		if n < 0 || n > int64(len(w)-1)*8 {
			return nil, fmt.Errorf("section %d declares %d bytes: %w", s, n, ErrCorruptBinaryEvent)
		}
		buf := make([]byte, (len(w)-1)*8)
		for i, v := range w[1:] {
			binary.BigEndian.PutUint64(buf[i*8:], uint64(v))
		}
		out[s] = buf[:n]
	}
	return out, nil
}
