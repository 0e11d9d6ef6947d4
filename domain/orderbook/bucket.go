package orderbook

// Bucket aggregates the resting orders at one price. Its orders are the
// contiguous run of the side chain ending at tail, the most recently
// queued order of the level.
type Bucket struct {
	volume    int64
	numOrders int32
	tail      *DirectOrder
}

// Volume is the unfilled size resting at this price.
func (b *Bucket) Volume() int64 { return b.volume }

func (b *Bucket) NumOrders() int32 { return b.numOrders }

func (b *Bucket) Price() int64 { return b.tail.Price }
