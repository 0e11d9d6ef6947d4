package codec

import (
	"matchbook/domain/orderbook"
)

// OrderCommand field numbers.
const (
	cmdCommand = iota + 1
	cmdOrderID
	cmdSymbol
	cmdPrice
	cmdSize
	cmdReserveBidPrice
	cmdAction
	cmdOrderType
	cmdUID
	cmdTimestamp
)

// AppendCommand encodes the request fields of cmd. Results and events are
// not part of the encoding.
func AppendCommand(b []byte, cmd *orderbook.OrderCommand) []byte {
	b = AppendUint(b, cmdCommand, uint64(cmd.Command))
	b = AppendInt(b, cmdOrderID, cmd.OrderID)
	b = AppendInt(b, cmdSymbol, int64(cmd.Symbol))
	b = AppendInt(b, cmdPrice, cmd.Price)
	b = AppendInt(b, cmdSize, cmd.Size)
	b = AppendInt(b, cmdReserveBidPrice, cmd.ReserveBidPrice)
	b = AppendUint(b, cmdAction, uint64(cmd.Action))
	b = AppendUint(b, cmdOrderType, uint64(cmd.OrderType))
	b = AppendInt(b, cmdUID, cmd.UID)
	b = AppendInt(b, cmdTimestamp, cmd.Timestamp)
	return b
}

// DecodeCommand overwrites cmd with the command encoded in b.
func DecodeCommand(b []byte, cmd *orderbook.OrderCommand) error {
	*cmd = orderbook.OrderCommand{}
	return Walk(b, func(f Field) error {
		switch f.Num {
		case cmdCommand:
			cmd.Command = orderbook.CommandType(f.U)
		case cmdOrderID:
			cmd.OrderID = f.Int()
		case cmdSymbol:
			cmd.Symbol = int32(f.Int())
		case cmdPrice:
			cmd.Price = f.Int()
		case cmdSize:
			cmd.Size = f.Int()
		case cmdReserveBidPrice:
			cmd.ReserveBidPrice = f.Int()
		case cmdAction:
			cmd.Action = orderbook.Action(f.U)
		case cmdOrderType:
			cmd.OrderType = orderbook.OrderType(f.U)
		case cmdUID:
			cmd.UID = f.Int()
		case cmdTimestamp:
			cmd.Timestamp = f.Int()
		}
		return nil
	})
}
