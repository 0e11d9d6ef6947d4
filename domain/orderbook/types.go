package orderbook

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

type Action uint8
type OrderType uint8
type CommandType uint8
type SymbolType uint8

const (
	Ask Action = iota
	Bid
)

func (a Action) Opposite() Action {
	if a == Ask {
		return Bid
	}
	return Ask
}

func (a Action) String() string {
	if a == Bid {
		return "BID"
	}
	return "ASK"
}

const (
	GTC OrderType = iota // good till cancel, rests after matching
	IOC                  // immediate or cancel
	IOCBudget
	FOK
	FOKBudget // fill or kill against a total price budget
)

func (t OrderType) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case IOCBudget:
		return "IOC_BUDGET"
	case FOK:
		return "FOK"
	case FOKBudget:
		return "FOK_BUDGET"
	default:
		return "UNKNOWN"
	}
}

const (
	PlaceOrder CommandType = iota + 1
	CancelOrder
	MoveOrder
	ReduceOrder
	OrderBookRequest
)

func (c CommandType) String() string {
	switch c {
	case PlaceOrder:
		return "PLACE_ORDER"
	case CancelOrder:
		return "CANCEL_ORDER"
	case MoveOrder:
		return "MOVE_ORDER"
	case ReduceOrder:
		return "REDUCE_ORDER"
	case OrderBookRequest:
		return "ORDER_BOOK_REQUEST"
	default:
		return "UNKNOWN"
	}
}

const (
	ExchangePair SymbolType = iota
	FuturesContract
)

// ResultCode is the outcome of a command. Values are stable and travel on
// the wire.
type ResultCode int32

const (
	ResultNew                    ResultCode = 0
	ResultValidForMatchingEngine ResultCode = 1
	ResultSuccess                ResultCode = 100

	ResultMatchingUnknownOrderID               ResultCode = -3002
	ResultMatchingUnsupportedCommand           ResultCode = -3004
	ResultMatchingInvalidOrderBookID           ResultCode = -3005
	ResultMatchingMoveFailedPriceOverRiskLimit ResultCode = -3041
	ResultMatchingReduceFailedWrongSize        ResultCode = -3051
)

func (r ResultCode) String() string {
	switch r {
	case ResultNew:
		return "NEW"
	case ResultValidForMatchingEngine:
		return "VALID_FOR_MATCHING_ENGINE"
	case ResultSuccess:
		return "SUCCESS"
	case ResultMatchingUnknownOrderID:
		return "MATCHING_UNKNOWN_ORDER_ID"
	case ResultMatchingUnsupportedCommand:
		return "MATCHING_UNSUPPORTED_COMMAND"
	case ResultMatchingInvalidOrderBookID:
		return "MATCHING_INVALID_ORDER_BOOK_ID"
	case ResultMatchingMoveFailedPriceOverRiskLimit:
		return "MATCHING_MOVE_FAILED_PRICE_OVER_RISK_LIMIT"
	case ResultMatchingReduceFailedWrongSize:
		return "MATCHING_REDUCE_FAILED_WRONG_SIZE"
	default:
		return "UNKNOWN"
	}
}

// SymbolSpec describes the instrument a book trades.
type SymbolSpec struct {
	SymbolID int32      `mapstructure:"id"`
	Type     SymbolType `mapstructure:"type"`

	BaseCurrency  int32 `mapstructure:"base_currency"`
	QuoteCurrency int32 `mapstructure:"quote_currency"`
	BaseScaleK    int64 `mapstructure:"base_scale_k"`
	QuoteScaleK   int64 `mapstructure:"quote_scale_k"`

	TakerFee int64 `mapstructure:"taker_fee"`
	MakerFee int64 `mapstructure:"maker_fee"`

	MarginBuy  int64 `mapstructure:"margin_buy"`
	MarginSell int64 `mapstructure:"margin_sell"`
}

func (s SymbolSpec) writeTo(h *blake3.Hasher) {
	var buf [4 + 1 + 4 + 4 + 8*6]byte
	binary.BigEndian.PutUint32(buf[0:], uint32(s.SymbolID))
	buf[4] = byte(s.Type)
	binary.BigEndian.PutUint32(buf[5:], uint32(s.BaseCurrency))
	binary.BigEndian.PutUint32(buf[9:], uint32(s.QuoteCurrency))
	for i, v := range []int64{s.BaseScaleK, s.QuoteScaleK, s.TakerFee, s.MakerFee, s.MarginBuy, s.MarginSell} {
		binary.BigEndian.PutUint64(buf[13+8*i:], uint64(v))
	}
	h.Write(buf[:])
}

// StateHash fingerprints every field of the symbol description.
func (s SymbolSpec) StateHash() uint64 {
	h := blake3.New()
	s.writeTo(h)
	return binary.BigEndian.Uint64(h.Sum(nil))
}
