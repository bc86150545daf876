package telemetry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"apexlob/domain/book"
)

type fakeSender struct {
	payloads [][]byte
}

func (f *fakeSender) Send(_ context.Context, _, value []byte) error {
	f.payloads = append(f.payloads, value)
	return nil
}

type fixedStats struct {
	st   book.Stats
	bids []book.LevelView
	asks []book.LevelView

	depthCalls int
	depthArg   int
}

func (f *fixedStats) Stats() book.Stats { return f.st }

func (f *fixedStats) Depth(maxLevels int) (bids, asks []book.LevelView) {
	f.depthCalls++
	f.depthArg = maxLevels
	return f.bids, f.asks
}

func TestPublishOnce(t *testing.T) {
	fs := &fakeSender{}
	src := &fixedStats{
		st: book.Stats{
			LastTradePrice: 117234.56,
			VWAP:           117001.12,
			TotalVolume:    42.5,
			Messages:       1000,
			AvgProcessing:  1500 * time.Nanosecond,
			BestBid:        117234.55,
			BestAsk:        117234.60,
		},
		bids: []book.LevelView{{Price: 117234.55, Qty: 0.5, Orders: 2}},
		asks: []book.LevelView{{Price: 117234.60, Qty: 1.25, Orders: 1}},
	}

	p := New(src, fs, time.Second, 10, zap.NewNop())
	p.publishOnce(context.Background())

	require.Len(t, fs.payloads, 1)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(fs.payloads[0], &snap))
	assert.Equal(t, 117234.56, snap.LastPrice)
	assert.Equal(t, 117001.12, snap.VWAP)
	assert.Equal(t, 42.5, snap.Volume)
	assert.Equal(t, uint64(1000), snap.Messages)
	assert.Equal(t, 1.5, snap.AvgProcessUs)
	assert.Positive(t, snap.Timestamp)

	assert.Equal(t, 1, src.depthCalls)
	assert.Equal(t, 10, src.depthArg)
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, DepthLevel{Price: 117234.55, Qty: 0.5, Orders: 2}, snap.Bids[0])
	assert.Equal(t, DepthLevel{Price: 117234.60, Qty: 1.25, Orders: 1}, snap.Asks[0])
}

func TestRunStopsOnCancel(t *testing.T) {
	fs := &fakeSender{}
	p := New(&fixedStats{}, fs, time.Millisecond, 10, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
	assert.NotEmpty(t, fs.payloads)
}
