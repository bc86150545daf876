// Package telemetry periodically publishes book statistics as JSON to a
// Kafka topic for external dashboards. Delivery is best effort; a missed
// snapshot is superseded by the next one anyway.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"apexlob/domain/book"
)

// Sender abstracts the Kafka producer so tests can capture payloads.
type Sender interface {
	Send(ctx context.Context, key, value []byte) error
}

// StatsSource is the engine-facing surface the snapshot is built from.
// Depth runs under a reader epoch on the real service.
type StatsSource interface {
	Stats() book.Stats
	Depth(maxLevels int) (bids, asks []book.LevelView)
}

type DepthLevel struct {
	Price  float64 `json:"price"`
	Qty    float64 `json:"qty"`
	Orders int     `json:"orders"`
}

type Snapshot struct {
	Timestamp    int64   `json:"ts"`
	LastPrice    float64 `json:"last_price"`
	VWAP         float64 `json:"vwap"`
	Volume       float64 `json:"volume"`
	Messages     uint64  `json:"messages"`
	AvgProcessUs float64 `json:"avg_process_us"`
	BestBid      float64 `json:"best_bid"`
	BestAsk      float64 `json:"best_ask"`

	Bids []DepthLevel `json:"bids"`
	Asks []DepthLevel `json:"asks"`
}

type Publisher struct {
	src         StatsSource
	sender      Sender
	interval    time.Duration
	depthLevels int
	logger      *zap.Logger
}

func New(src StatsSource, sender Sender, interval time.Duration, depthLevels int, logger *zap.Logger) *Publisher {
	return &Publisher{
		src:         src,
		sender:      sender,
		interval:    interval,
		depthLevels: depthLevels,
		logger:      logger.Named("telemetry"),
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	st := p.src.Stats()
	bids, asks := p.src.Depth(p.depthLevels)
	snap := Snapshot{
		Timestamp:    time.Now().UnixNano(),
		LastPrice:    st.LastTradePrice,
		VWAP:         st.VWAP,
		Volume:       st.TotalVolume,
		Messages:     st.Messages,
		AvgProcessUs: float64(st.AvgProcessing.Nanoseconds()) / 1e3,
		BestBid:      st.BestBid,
		BestAsk:      st.BestAsk,
		Bids:         depthLevels(bids),
		Asks:         depthLevels(asks),
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		p.logger.Error("marshal snapshot", zap.Error(err))
		return
	}

	if err := p.sender.Send(ctx, []byte("stats"), payload); err != nil {
		p.logger.Warn("publish snapshot", zap.Error(err))
	}
}

func depthLevels(views []book.LevelView) []DepthLevel {
	out := make([]DepthLevel, len(views))
	for i, v := range views {
		out[i] = DepthLevel{Price: v.Price, Qty: v.Qty, Orders: v.Orders}
	}
	return out
}
