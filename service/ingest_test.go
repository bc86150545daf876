package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"apexlob/domain/book"
	"apexlob/infra/feed"
	"apexlob/infra/journal"
	"apexlob/infra/memory"
	"apexlob/infra/outbox"
	"apexlob/infra/sequence"
)

func newTestService(t *testing.T) (*IngestService, *outbox.Outbox, string) {
	t.Helper()

	journalDir := t.TempDir()
	j, err := journal.Open(journal.Config{Dir: journalDir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	ob, err := outbox.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ob.Close() })

	svc := NewIngestService(
		book.NewOrderBook(),
		memory.NewPool(func() *book.Order { return &book.Order{} }),
		memory.NewRetireRing(1<<10),
		memory.NewReaderEpoch(),
		sequence.New(0),
		j,
		ob,
		zap.NewNop(),
	)
	return svc, ob, journalDir
}

func ev(id uint64, side book.Side, price, qty int64) feed.TradeEvent {
	return feed.TradeEvent{
		ID:    id,
		Side:  side,
		Price: price * book.PriceScale,
		Qty:   qty * book.QtyScale,
	}
}

func TestIngestRestThenMatch(t *testing.T) {
	svc, ob, _ := newTestService(t)

	filled := svc.Ingest(ev(1, book.Sell, 100, 3))
	assert.Zero(t, filled, "first event has nothing to match")

	filled = svc.Ingest(ev(2, book.Buy, 100, 5))
	assert.Equal(t, int64(3*book.QtyScale), filled)

	s := svc.Stats()
	assert.Equal(t, 100.0, s.LastTradePrice)
	assert.Equal(t, 3.0, s.TotalVolume)
	assert.Equal(t, uint64(2), s.Messages)

	// Only the trading event produced an outbox record.
	var fills []feed.TradeEvent
	err := ob.ScanByState(outbox.StateNew, func(seq uint64, rec outbox.Record) error {
		f, err := feed.DecodeTradeEvent(rec.Payload)
		if err != nil {
			return err
		}
		fills = append(fills, f)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, uint64(2), fills[0].ID)
	assert.Equal(t, int64(3*book.QtyScale), fills[0].Qty)
}

func TestIngestJournalsEveryEvent(t *testing.T) {
	svc, _, journalDir := newTestService(t)

	svc.Ingest(ev(1, book.Sell, 100, 1))
	svc.Ingest(ev(2, book.Buy, 100, 1))

	var seqs []uint64
	last, err := journal.Scan(journalDir, func(r *journal.Record) error {
		tr, err := feed.DecodeTradeEvent(r.Data)
		if err != nil {
			return err
		}
		assert.NotZero(t, tr.ID)
		seqs = append(seqs, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, seqs)
	assert.Equal(t, uint64(2), last)
}

func TestDepthSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)

	svc.Ingest(ev(1, book.Buy, 99, 2))
	svc.Ingest(ev(2, book.Buy, 98, 1))
	svc.Ingest(ev(3, book.Sell, 101, 4))

	bids, asks := svc.Depth(10)
	require.Len(t, bids, 2)
	require.Len(t, asks, 1)
	assert.Equal(t, 99.0, bids[0].Price)
	assert.Equal(t, 2.0, bids[0].Qty)
	assert.Equal(t, 101.0, asks[0].Price)
}

func TestEpochReclaimAfterFills(t *testing.T) {
	svc, _, _ := newTestService(t)

	svc.Ingest(ev(1, book.Sell, 100, 1))
	svc.Ingest(ev(2, book.Buy, 100, 1)) // both orders fully fill and retire

	assert.Equal(t, 2, svc.ring.Len())
	svc.AdvanceEpoch()
	assert.Zero(t, svc.ring.Len(), "no active readers, ring should drain")
}

func TestRunConsumesUntilClose(t *testing.T) {
	svc, _, _ := newTestService(t)

	events := make(chan feed.TradeEvent, 4)
	events <- ev(1, book.Sell, 100, 2)
	events <- ev(2, book.Buy, 100, 2)
	close(events)

	svc.Run(context.Background(), events)

	s := svc.Stats()
	assert.Equal(t, uint64(2), s.Messages)
	assert.Equal(t, 2.0, s.TotalVolume)
}
