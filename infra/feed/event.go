package feed

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"apexlob/domain/book"
)

// TradeEvent is one validated tape event, already scaled to the book's
// integer units. The feed rejects malformed events; the core never
// revalidates.
type TradeEvent struct {
	ID    uint64
	Price int64 // ticks
	Qty   int64 // units
	Side  book.Side
}

var (
	ErrMissingField = errors.New("feed: missing required field")
	ErrBadValue     = errors.New("feed: non-positive price or quantity")
)

// binanceTrade mirrors the aggTrade payload: p=price, q=quantity,
// m=isBuyerMaker, a=aggregate trade id.
type binanceTrade struct {
	Price    string `json:"p"`
	Quantity string `json:"q"`
	IsMaker  bool   `json:"m"`
	TradeID  uint64 `json:"a"`
}

// ParseTrade validates and scales one raw aggTrade message. The buyer-
// is-maker flag means the aggressor sold.
func ParseTrade(raw []byte) (TradeEvent, error) {
	var m binanceTrade
	if err := json.Unmarshal(raw, &m); err != nil {
		return TradeEvent{}, fmt.Errorf("feed: decode trade: %w", err)
	}
	if m.Price == "" || m.Quantity == "" {
		return TradeEvent{}, ErrMissingField
	}

	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		return TradeEvent{}, fmt.Errorf("feed: bad price %q: %w", m.Price, err)
	}
	qty, err := decimal.NewFromString(m.Quantity)
	if err != nil {
		return TradeEvent{}, fmt.Errorf("feed: bad quantity %q: %w", m.Quantity, err)
	}

	ticks := price.Mul(decimal.NewFromInt(book.PriceScale)).IntPart()
	units := qty.Mul(decimal.NewFromInt(book.QtyScale)).IntPart()
	if ticks <= 0 || units <= 0 {
		// Trades below one unit are dropped, not rounded up.
		return TradeEvent{}, ErrBadValue
	}

	side := book.Buy
	if m.IsMaker {
		side = book.Sell
	}

	return TradeEvent{
		ID:    m.TradeID,
		Price: ticks,
		Qty:   units,
		Side:  side,
	}, nil
}

const encodedLen = 8 + 8 + 8 + 1

// Encode packs the event for journal and outbox payloads.
func (e TradeEvent) Encode() []byte {
	buf := make([]byte, encodedLen)
	binary.BigEndian.PutUint64(buf[0:8], e.ID)
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.Price))
	binary.BigEndian.PutUint64(buf[16:24], uint64(e.Qty))
	buf[24] = byte(e.Side)
	return buf
}

func DecodeTradeEvent(b []byte) (TradeEvent, error) {
	if len(b) != encodedLen {
		return TradeEvent{}, fmt.Errorf("feed: bad event length %d", len(b))
	}
	return TradeEvent{
		ID:    binary.BigEndian.Uint64(b[0:8]),
		Price: int64(binary.BigEndian.Uint64(b[8:16])),
		Qty:   int64(binary.BigEndian.Uint64(b[16:24])),
		Side:  book.Side(b[24]),
	}, nil
}
