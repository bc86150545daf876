// Package book implements the synthetic limit order book driven by
// executed-trade events. Each tape event becomes an aggressive order that
// is matched against resting liquidity in price-time priority; unfilled
// remainder rests on its own side. The book also owns the cumulative
// trade statistics (last price, volume, VWAP) and per-event processing
// latency accounting.
//
// Both sides are red-black trees of FIFO price levels. All quantities and
// prices are scaled integers on the hot path.
package book
