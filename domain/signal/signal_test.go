package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(g *Generator, prices ...float64) {
	for _, p := range prices {
		g.Update(p, 1, p)
	}
}

func TestHoldUntilWarm(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < MinSamples-1; i++ {
		g.Update(100, 1, 100)
		s := g.Generate()
		assert.Equal(t, Hold, s.Type)
		assert.Equal(t, "insufficient data", s.Reason)
	}
}

func TestUptrendGeneratesBuy(t *testing.T) {
	g := NewGenerator()
	// Zigzag upward: net gain with enough pullbacks to keep RSI out of
	// the overbought band while momentum stays above the +2% trigger.
	price := 100.0
	for i := 0; i < 60; i++ {
		if i%2 == 0 {
			price += 2.0
		} else {
			price -= 1.4
		}
		g.Update(price, 1, price)
	}

	s := g.Generate()
	require.GreaterOrEqual(t, g.HistorySize(), MinSamples)
	assert.True(t, s.Type == Buy || s.Type == StrongBuy, "got %v", s.Type)
	assert.Greater(t, s.SMAShort, s.SMALong)
	assert.Greater(t, s.Momentum, 2.0)
	assert.InDelta(t, price, s.Price, 1e-9)
}

func TestDowntrendGeneratesSell(t *testing.T) {
	g := NewGenerator()
	price := 130.0
	for i := 0; i < 60; i++ {
		if i%2 == 0 {
			price -= 2.0
		} else {
			price += 1.4
		}
		g.Update(price, 1, price)
	}

	s := g.Generate()
	assert.True(t, s.Type == Sell || s.Type == StrongSell, "got %v", s.Type)
	assert.Less(t, s.SMAShort, s.SMALong)
	assert.Less(t, s.Momentum, -2.0)
}

func TestFlatMarketHolds(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 60; i++ {
		// Alternate around a flat mean so no indicator trips.
		p := 100.0
		if i%2 == 0 {
			p = 100.01
		}
		g.Update(p, 1, p)
	}

	s := g.Generate()
	assert.Equal(t, Hold, s.Type)
}

func TestChoppyMarketStaysNeutral(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 40; i++ {
		// Big symmetric swings: every directional indicator nets out
		// while volatility runs hot. The damper must not turn a neutral
		// score into a lean either way.
		p := 90.0
		if i%2 == 1 {
			p = 110.0
		}
		g.Update(p, 1, 100)
	}

	s := g.Generate()
	assert.Equal(t, Hold, s.Type)
	assert.Greater(t, s.Volatility, 5.0)
	assert.InDelta(t, 50.0, s.RSI, 0.001)
	assert.InDelta(t, 0.0, s.Momentum, 0.001)
}

func TestRSIBounds(t *testing.T) {
	up := make([]float64, 40)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, rsi(up, rsiPeriod))

	down := make([]float64, 40)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	v := rsi(down, rsiPeriod)
	assert.InDelta(t, 0, v, 1e-9)

	short := []float64{100, 101}
	assert.Equal(t, 50.0, rsi(short, rsiPeriod))
}

func TestHistoryCapped(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < maxHistory+500; i++ {
		g.Update(float64(i), 1, float64(i))
	}
	assert.Equal(t, maxHistory, g.HistorySize())
}

func TestStrengthBounded(t *testing.T) {
	g := NewGenerator()
	price := 100.0
	for i := 0; i < 200; i++ {
		price *= 1.01
		g.Update(price, 1, price)
	}
	s := g.Generate()
	assert.GreaterOrEqual(t, s.Strength, 0.0)
	assert.LessOrEqual(t, s.Strength, 1.0)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "STRONG_BUY", StrongBuy.String())
	assert.Equal(t, "HOLD", Hold.String())
	assert.Equal(t, "STRONG_SELL", StrongSell.String())
}
