// Package renderer polls the book's statistics at a fixed cadence and
// rewrites a single console status line, feeding each snapshot to the
// alpha signal generator along the way.
package renderer

import (
	"context"
	"fmt"
	"io"
	"time"

	"apexlob/domain/book"
	"apexlob/domain/signal"
)

type StatsSource interface {
	Stats() book.Stats
}

type Renderer struct {
	src      StatsSource
	gen      *signal.Generator
	interval time.Duration
	out      io.Writer
}

func New(src StatsSource, gen *signal.Generator, interval time.Duration, out io.Writer) *Renderer {
	return &Renderer{
		src:      src,
		gen:      gen,
		interval: interval,
		out:      out,
	}
}

func (r *Renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return
		case <-ticker.C:
			r.renderOnce()
		}
	}
}

func (r *Renderer) renderOnce() {
	s := r.src.Stats()

	if s.LastTradePrice > 0 {
		r.gen.Update(s.LastTradePrice, s.TotalVolume, s.VWAP)
	}

	fmt.Fprintf(r.out, "\r[LOB] Last: %.2f | VWAP: %.2f | Vol: %.3f",
		s.LastTradePrice, s.VWAP, s.TotalVolume)
	if s.Messages > 0 {
		fmt.Fprintf(r.out, " | Msg: %d | AvgProc: %.3fms",
			s.Messages, float64(s.AvgProcessing.Nanoseconds())/1e6)
	}

	if r.gen.HistorySize() >= signal.MinSamples {
		sig := r.gen.Generate()
		fmt.Fprintf(r.out, " | [ALPHA] %s (%.1f%%) | RSI: %.1f | Mom: %.2f%% | %s",
			sig.Type, sig.Strength*100, sig.RSI, sig.Momentum, sig.Reason)
	} else {
		fmt.Fprintf(r.out, " | [ALPHA] Collecting data... (%d/%d)",
			r.gen.HistorySize(), signal.MinSamples)
	}
}
