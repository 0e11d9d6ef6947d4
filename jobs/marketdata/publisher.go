// Package marketdata publishes periodic L2 book views to Kafka as JSON,
// with prices and volumes rendered as decimals.
package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/domain/orderbook"
)

// Source answers L2 queries; the engine implements it.
type Source interface {
	Symbols() []int32
	L2(ctx context.Context, symbol int32, depth int) (*orderbook.L2MarketData, error)
}

// Sender delivers one keyed message; *kafka.Producer implements it.
type Sender interface {
	Send(ctx context.Context, key, value []byte) error
}

type Config struct {
	Interval time.Duration
	Depth    int

	// PriceDecimals and SizeDecimals place the decimal point of the
	// integer prices and volumes kept by the books.
	PriceDecimals int32
	SizeDecimals  int32
}

type Level struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	Orders int64           `json:"orders"`
}

type Message struct {
	Symbol    int32   `json:"symbol"`
	Seq       uint64  `json:"seq"`
	Timestamp int64   `json:"ts"`
	Asks      []Level `json:"asks"`
	Bids      []Level `json:"bids"`
}

type Publisher struct {
	cfg    Config
	source Source
	sender Sender
	log    *zap.Logger

	last map[int32][]byte
}

func New(cfg Config, source Source, sender Sender, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Publisher{
		cfg:    cfg,
		source: source,
		sender: sender,
		log:    log.Named("marketdata"),
		last:   make(map[int32][]byte),
	}
}

// Render converts a book view into its published form.
func (p *Publisher) Render(symbol int32, d *orderbook.L2MarketData) Message {
	return Message{
		Symbol:    symbol,
		Seq:       d.Seq,
		Timestamp: d.Timestamp,
		Asks:      p.levels(d.AskPrices, d.AskVolumes, d.AskOrders),
		Bids:      p.levels(d.BidPrices, d.BidVolumes, d.BidOrders),
	}
}

func (p *Publisher) levels(prices, volumes, orders []int64) []Level {
	out := make([]Level, len(prices))
	for i := range prices {
		out[i] = Level{
			Price:  decimal.New(prices[i], -p.cfg.PriceDecimals),
			Volume: decimal.New(volumes[i], -p.cfg.SizeDecimals),
			Orders: orders[i],
		}
	}
	return out
}

// PublishOnce sends the view of every symbol whose levels changed since the
// last published one and returns how many were sent.
func (p *Publisher) PublishOnce(ctx context.Context) (int, error) {
	sent := 0
	for _, symbol := range p.source.Symbols() {
		d, err := p.source.L2(ctx, symbol, p.cfg.Depth)
		if err != nil {
			return sent, err
		}
		msg := p.Render(symbol, d)

		// seq and ts change with every command on any symbol
		levels, err := json.Marshal([2][]Level{msg.Asks, msg.Bids})
		if err != nil {
			return sent, err
		}
		if prev, ok := p.last[symbol]; ok && bytes.Equal(prev, levels) {
			continue
		}

		value, err := json.Marshal(msg)
		if err != nil {
			return sent, err
		}
		if err := p.sender.Send(ctx, []byte(strconv.FormatInt(int64(symbol), 10)), value); err != nil {
			return sent, err
		}
		p.last[symbol] = levels
		sent++
	}
	return sent, nil
}

// Run publishes every Interval until ctx ends.
func (p *Publisher) Run(ctx context.Context) {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := p.PublishOnce(ctx); err != nil && ctx.Err() == nil {
				p.log.Warn("market data publish failed", zap.Error(err))
			}
		}
	}
}
