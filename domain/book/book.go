package book

import (
	"fmt"
	"sync"
	"time"
)

// OrderBook holds both sides of a synthetic limit book plus the running
// trade statistics. Every incoming tape event is treated as an aggressive
// order and matched against resting liquidity before any remainder rests.
//
// Submit is the single mutator and takes the write lock for the whole
// match-then-rest sequence, so a reader can never observe quantity that
// has left the opposite side but not yet rested. Stats and Depth take the
// read lock and may run concurrently with each other.
type OrderBook struct {
	mu sync.RWMutex

	bids *RBTree
	asks *RBTree

	lastTradeTicks int64
	volumeUnits    int64
	notional       int64 // tick·units, feeds VWAP
	messages       uint64
	processing     time.Duration
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: NewRBTree(),
		asks: NewRBTree(),
	}
}

// Submit matches o against the opposite side in price-time priority and
// rests any unfilled remainder on its own side. Resting orders that fill
// completely are unlinked and handed to retired for recycling; retired
// may be nil.
//
// Events must arrive from a single logical stream; Submit serializes
// them but does not reorder.
func (b *OrderBook) Submit(o *Order, retired func(*Order)) {
	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	if o.Side == Buy {
		b.match(o, b.asks, retired)
		if o.Remaining() > 0 {
			b.bids.GetOrCreate(o.Price).Enqueue(o)
		}
	} else {
		b.match(o, b.bids, retired)
		if o.Remaining() > 0 {
			b.asks.GetOrCreate(o.Price).Enqueue(o)
		}
	}

	if bb, ba := b.bids.Max(), b.asks.Min(); bb != nil && ba != nil && bb.Price >= ba.Price {
		panic(fmt.Sprintf("book: crossed after submit, bid %d >= ask %d", bb.Price, ba.Price))
	}

	b.messages++
	b.processing += time.Since(start)
}

func (b *OrderBook) match(o *Order, opposite *RBTree, retired func(*Order)) {
	for o.Remaining() > 0 {
		var best *PriceLevel
		if o.Side == Buy {
			best = opposite.Min()
		} else {
			best = opposite.Max()
		}
		if best == nil {
			return
		}
		// Levels are price-ordered, so the first non-crossing level ends
		// the scan for good.
		if o.Side == Buy && best.Price > o.Price {
			return
		}
		if o.Side == Sell && best.Price < o.Price {
			return
		}

		for o.Remaining() > 0 && !best.Empty() {
			head := best.Head()
			trade := min(o.Remaining(), head.Remaining())
			if trade <= 0 {
				panic(fmt.Sprintf("book: non-positive fill %d at %d", trade, best.Price))
			}

			o.Filled += trade
			head.Filled += trade
			best.TotalQty -= trade

			b.lastTradeTicks = best.Price
			b.volumeUnits += trade
			b.notional += trade * best.Price

			if o.Remaining() < 0 || head.Remaining() < 0 || best.TotalQty < 0 {
				panic(fmt.Sprintf("book: negative quantity after fill at %d", best.Price))
			}

			if head.Remaining() == 0 {
				best.PopHead()
				if retired != nil {
					retired(head)
				}
			}
		}

		if best.Empty() {
			opposite.Delete(best.Price)
		}
	}
}

// Stats is a point-in-time view of the trade statistics. Scaled integers
// convert to floats here and nowhere else.
type Stats struct {
	LastTradePrice float64
	VWAP           float64
	TotalVolume    float64 // base units
	Messages       uint64
	AvgProcessing  time.Duration
	BestBid        float64 // 0 when the side is empty
	BestAsk        float64
}

func (b *OrderBook) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{
		LastTradePrice: float64(b.lastTradeTicks) / PriceScale,
		TotalVolume:    float64(b.volumeUnits) / QtyScale,
		Messages:       b.messages,
	}
	if b.volumeUnits > 0 {
		s.VWAP = float64(b.notional) / float64(b.volumeUnits) / PriceScale
	}
	if b.messages > 0 {
		s.AvgProcessing = b.processing / time.Duration(b.messages)
	}
	if bb := b.bids.Max(); bb != nil {
		s.BestBid = float64(bb.Price) / PriceScale
	}
	if ba := b.asks.Min(); ba != nil {
		s.BestAsk = float64(ba.Price) / PriceScale
	}
	return s
}

// LevelView is a read-only copy of one price level for depth snapshots.
type LevelView struct {
	Price  float64
	Qty    float64
	Orders int
}

// Depth copies up to maxLevels levels per side, best-first. maxLevels <= 0
// means all levels.
func (b *OrderBook) Depth(maxLevels int) (bids, asks []LevelView) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	collect := func(lvl *PriceLevel, out *[]LevelView) bool {
		*out = append(*out, LevelView{
			Price:  float64(lvl.Price) / PriceScale,
			Qty:    float64(lvl.TotalQty) / QtyScale,
			Orders: lvl.OrderCount,
		})
		return maxLevels <= 0 || len(*out) < maxLevels
	}
	b.bids.walkDesc(func(lvl *PriceLevel) bool { return collect(lvl, &bids) })
	b.asks.walkAsc(func(lvl *PriceLevel) bool { return collect(lvl, &asks) })
	return bids, asks
}

// BidsWalk visits bid levels best-first. Callers must not race Submit;
// tests and the ingest service hold their own coordination.
func (b *OrderBook) BidsWalk(fn func(*PriceLevel) bool) {
	b.bids.walkDesc(fn)
}

// AsksWalk visits ask levels best-first.
func (b *OrderBook) AsksWalk(fn func(*PriceLevel) bool) {
	b.asks.walkAsc(fn)
}

// BidLevels and AskLevels report the live level counts for tests and
// telemetry.
func (b *OrderBook) BidLevels() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.Size()
}

func (b *OrderBook) AskLevels() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.asks.Size()
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
