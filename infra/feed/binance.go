// Package feed connects to the Binance aggTrade stream and turns raw
// websocket messages into validated TradeEvents. It owns reconnection;
// the book only ever sees well-formed events on a single channel.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultEndpoint  = "wss://stream.binance.com:443/ws"
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	initialBackoff   = time.Second
	maxBackoff       = 30 * time.Second
)

type Feed struct {
	url    string
	logger *zap.Logger
	events chan TradeEvent
}

// New builds a feed for one symbol (e.g. "btcusdt").
func New(symbol string, logger *zap.Logger) *Feed {
	return &Feed{
		url:    fmt.Sprintf("%s/%s@aggTrade", defaultEndpoint, strings.ToLower(symbol)),
		logger: logger.Named("feed"),
		events: make(chan TradeEvent, 1024),
	}
}

// Events is the single submission stream. Closed when Run returns.
func (f *Feed) Events() <-chan TradeEvent {
	return f.events
}

// Run connects and pumps events until ctx is cancelled, reconnecting
// with capped exponential backoff on any read failure.
func (f *Feed) Run(ctx context.Context) {
	defer close(f.events)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		conn, err := f.dial(ctx)
		if err != nil {
			f.logger.Warn("connect failed",
				zap.String("url", f.url),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		f.logger.Info("connected",
			zap.String("url", f.url),
			zap.Duration("took", time.Since(start)))
		backoff = initialBackoff

		err = f.pump(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("stream closed, reconnecting", zap.Error(err))
	}
}

func (f *Feed) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	return conn, err
}

func (f *Feed) pump(ctx context.Context, conn *websocket.Conn) error {
	// Binance pings every ~20s; answering keeps the read deadline fresh.
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		ev, err := ParseTrade(raw)
		if err != nil {
			// Malformed events stop here, per the feed/core contract.
			f.logger.Warn("dropping malformed trade", zap.Error(err), zap.ByteString("raw", raw))
			continue
		}

		select {
		case f.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
