package book

// Side of an order. The feed maps the aggressor flag to a side:
// buyer-is-maker means the aggressor sold.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Fixed-point scales. Prices are held as int64 ticks and quantities as
// int64 units so the stats accumulators never drift; conversion back to
// floats happens only when a snapshot is taken.
//
// One tick is 0.01 quote currency, one unit is 0.001 base currency (the
// upstream feed scales quantity by 1000 before it reaches the book).
const (
	PriceScale = 100
	QtyScale   = 1000
)

// Order is a pure domain entity. Quantity semantics follow Filled:
// Remaining() is the live quantity, and it only ever decreases.
type Order struct {
	ID     uint64
	Price  int64 // ticks
	Qty    int64 // units, as submitted
	Filled int64 // units
	SeqID  uint64

	Side      Side
	EntryTime int64 // monotonic nanos, latency accounting only

	next *Order
	prev *Order
}

func (o *Order) Remaining() int64 {
	return o.Qty - o.Filled
}

// Reset clears the order for pool reuse.
func (o *Order) Reset() { *o = Order{} }

// Next allows read-only FIFO traversal from a level head.
func (o *Order) Next() *Order {
	return o.next
}
