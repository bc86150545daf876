package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"apexlob/domain/book"
	"apexlob/infra/feed"
	"apexlob/infra/journal"
	"apexlob/infra/memory"
	"apexlob/infra/outbox"
	"apexlob/infra/sequence"
)

// IngestService is the ONLY write entry point into the system. All
// coordination between the feed, the journal, the book, the outbox, and
// order memory happens here, on one goroutine.
type IngestService struct {
	book    *book.OrderBook
	pool    *memory.Pool[book.Order]
	ring    *memory.RetireRing
	reader  *memory.ReaderEpoch
	seq     *sequence.Sequencer
	journal *journal.Journal
	outbox  *outbox.Outbox
	logger  *zap.Logger
}

// NewIngestService wires all dependencies. No globals.
func NewIngestService(
	b *book.OrderBook,
	pool *memory.Pool[book.Order],
	ring *memory.RetireRing,
	reader *memory.ReaderEpoch,
	seq *sequence.Sequencer,
	j *journal.Journal,
	ob *outbox.Outbox,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		book:    b,
		pool:    pool,
		ring:    ring,
		reader:  reader,
		seq:     seq,
		journal: j,
		outbox:  ob,
		logger:  logger.Named("ingest"),
	}
}

// Run consumes the feed until the channel closes or ctx is cancelled.
// Events are applied strictly in arrival order.
func (s *IngestService) Run(ctx context.Context, events <-chan feed.TradeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Ingest(ev)
		}
	}
}

// Ingest applies one tape event: journal it, match it, and queue any
// resulting fill for broadcast. Returns the filled quantity in units.
func (s *IngestService) Ingest(ev feed.TradeEvent) int64 {
	seq := s.seq.Next()

	// Tape record first; the journal is an audit trail, so a write
	// failure is logged but never blocks matching.
	if s.journal != nil {
		if err := s.journal.Append(journal.NewRecord(journal.RecordTrade, seq, ev.Encode())); err != nil {
			s.logger.Warn("journal append failed", zap.Uint64("seq", seq), zap.Error(err))
		}
	}

	o := s.pool.Get()
	*o = book.Order{
		ID:        ev.ID,
		Price:     ev.Price,
		Qty:       ev.Qty,
		SeqID:     seq,
		Side:      ev.Side,
		EntryTime: time.Now().UnixNano(),
	}

	s.book.Submit(o, s.retire)

	filled := o.Filled
	if o.Remaining() == 0 {
		s.retire(o)
	}

	if filled > 0 && s.outbox != nil {
		fill := feed.TradeEvent{ID: ev.ID, Price: ev.Price, Qty: filled, Side: ev.Side}
		if err := s.outbox.Put(seq, fill.Encode()); err != nil {
			s.logger.Warn("outbox put failed", zap.Uint64("seq", seq), zap.Error(err))
		}
	}

	return filled
}

// Stats is a consistent point-in-time view of the trade statistics.
func (s *IngestService) Stats() book.Stats {
	return s.book.Stats()
}

// Depth copies the top of both sides under a reader epoch so reclaimed
// orders can never be observed mid-recycle.
func (s *IngestService) Depth(maxLevels int) (bids, asks []book.LevelView) {
	s.reader.Enter()
	defer s.reader.Exit()
	return s.book.Depth(maxLevels)
}

// AdvanceEpoch performs safe reclamation of retired orders. Called
// periodically by a background job.
func (s *IngestService) AdvanceEpoch() {
	memory.AdvanceEpochAndReclaim(s.ring, s.pool, s.reader)
}

func (s *IngestService) retire(o *book.Order) {
	if !s.ring.Enqueue(o) {
		// Ring backpressure: the order is already unlinked under the
		// book's write lock, so recycling it directly is safe.
		s.pool.Put(o)
	}
}
