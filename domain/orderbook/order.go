package orderbook

// DirectOrder is a resting order. The orders of one side form a chain: the
// best order has no next, and prev walks towards worse prices and, within a
// price, towards later arrivals.
type DirectOrder struct {
	OrderID         int64
	Price           int64
	Size            int64
	Filled          int64
	ReserveBidPrice int64
	Action          Action
	UID             int64
	Timestamp       int64

	parent *Bucket
	next   *DirectOrder
	prev   *DirectOrder
}

func (o *DirectOrder) Remaining() int64 {
	return o.Size - o.Filled
}

// Read-only traversal helpers
func (o *DirectOrder) Next() *DirectOrder {
	return o.next
}

func (o *DirectOrder) Prev() *DirectOrder {
	return o.prev
}

// A moved order is matched again as a taker; these satisfy takerOrder the
// same way OrderCommand does.
func (o *DirectOrder) action() Action         { return o.Action }
func (o *DirectOrder) price() int64           { return o.Price }
func (o *DirectOrder) size() int64            { return o.Size }
func (o *DirectOrder) filled() int64          { return o.Filled }
func (o *DirectOrder) reserveBidPrice() int64 { return o.ReserveBidPrice }
