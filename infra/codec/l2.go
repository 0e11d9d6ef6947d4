package codec

import "matchbook/domain/orderbook"

const (
	l2AskPrices = iota + 1
	l2AskVolumes
	l2AskOrders
	l2BidPrices
	l2BidVolumes
	l2BidOrders
	l2Timestamp
	l2Seq
)

func AppendL2(b []byte, d *orderbook.L2MarketData) []byte {
	b = AppendPacked(b, l2AskPrices, d.AskPrices)
	b = AppendPacked(b, l2AskVolumes, d.AskVolumes)
	b = AppendPacked(b, l2AskOrders, d.AskOrders)
	b = AppendPacked(b, l2BidPrices, d.BidPrices)
	b = AppendPacked(b, l2BidVolumes, d.BidVolumes)
	b = AppendPacked(b, l2BidOrders, d.BidOrders)
	b = AppendInt(b, l2Timestamp, d.Timestamp)
	b = AppendUint(b, l2Seq, d.Seq)
	return b
}

func DecodeL2(b []byte) (*orderbook.L2MarketData, error) {
	d := &orderbook.L2MarketData{}
	err := Walk(b, func(f Field) error {
		var err error
		switch f.Num {
		case l2AskPrices:
			d.AskPrices, err = DecodePacked(d.AskPrices, f.B)
		case l2AskVolumes:
			d.AskVolumes, err = DecodePacked(d.AskVolumes, f.B)
		case l2AskOrders:
			d.AskOrders, err = DecodePacked(d.AskOrders, f.B)
		case l2BidPrices:
			d.BidPrices, err = DecodePacked(d.BidPrices, f.B)
		case l2BidVolumes:
			d.BidVolumes, err = DecodePacked(d.BidVolumes, f.B)
		case l2BidOrders:
			d.BidOrders, err = DecodePacked(d.BidOrders, f.B)
		case l2Timestamp:
			d.Timestamp = f.Int()
		case l2Seq:
			d.Seq = f.U
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
