// Package signal derives simple trading signals from the stream of book
// statistics: SMA crossover, RSI, momentum, and a volatility filter over
// a rolling price history.
package signal

import (
	"math"
	"strings"
	"sync"
)

type Type int

const (
	StrongSell Type = -2
	Sell       Type = -1
	Hold       Type = 0
	Buy        Type = 1
	StrongBuy  Type = 2
)

func (t Type) String() string {
	switch t {
	case StrongBuy:
		return "STRONG_BUY"
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case StrongSell:
		return "STRONG_SELL"
	default:
		return "HOLD"
	}
}

// Signal is one generated recommendation with the indicator values that
// produced it.
type Signal struct {
	Type       Type
	Strength   float64 // 0..1
	Reason     string
	Price      float64
	SMAShort   float64
	SMALong    float64
	RSI        float64
	Momentum   float64 // percent
	Volatility float64 // coefficient of variation, percent
}

const (
	shortMAPeriod    = 10
	longMAPeriod     = 30
	rsiPeriod        = 14
	momentumPeriod   = 10
	volatilityPeriod = 20
	maxHistory       = 1000

	// MinSamples is how many prices Generate needs before it emits
	// anything other than Hold.
	MinSamples = longMAPeriod + 1
)

// Generator accumulates price/volume/VWAP history and scores signals.
// Safe for concurrent Update and Generate.
type Generator struct {
	mu sync.Mutex

	prices  []float64
	volumes []float64
	vwaps   []float64
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Update appends one observation, dropping the oldest past maxHistory.
func (g *Generator) Update(price, volume, vwap float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prices = append(g.prices, price)
	g.volumes = append(g.volumes, volume)
	g.vwaps = append(g.vwaps, vwap)

	if len(g.prices) > maxHistory {
		g.prices = g.prices[1:]
		g.volumes = g.volumes[1:]
		g.vwaps = g.vwaps[1:]
	}
}

func (g *Generator) HistorySize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prices)
}

func (g *Generator) Generate() Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.prices) < MinSamples {
		return Signal{Type: Hold, Reason: "insufficient data"}
	}

	smaShort := sma(g.prices, shortMAPeriod)
	smaLong := sma(g.prices, longMAPeriod)
	rsi := rsi(g.prices, rsiPeriod)
	mom := momentum(g.prices, momentumPeriod)
	vol := volatility(g.prices, volatilityPeriod)

	typ := score(smaShort, smaLong, rsi, mom, vol)
	return Signal{
		Type:       typ,
		Strength:   strength(typ, mom),
		Reason:     reason(smaShort, smaLong, rsi, mom),
		Price:      g.prices[len(g.prices)-1],
		SMAShort:   smaShort,
		SMALong:    smaLong,
		RSI:        rsi,
		Momentum:   mom,
		Volatility: vol,
	}
}

func sma(data []float64, period int) float64 {
	if len(data) < period {
		return 0
	}
	sum := 0.0
	for _, v := range data[len(data)-period:] {
		sum += v
	}
	return sum / float64(period)
}

func rsi(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50 // neutral
	}
	var gain, loss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func momentum(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 0
	}
	current := prices[len(prices)-1]
	past := prices[len(prices)-period-1]
	return (current - past) / past * 100
}

func volatility(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 0
	}
	mean := sma(prices, period)
	variance := 0.0
	for _, v := range prices[len(prices)-period:] {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(period)
	return math.Sqrt(variance) / mean * 100
}

func score(smaShort, smaLong, rsi, mom, vol float64) Type {
	s := 0

	if smaShort > smaLong {
		s++
	} else if smaShort < smaLong {
		s--
	}

	switch {
	case rsi < 30: // oversold
		s += 2
	case rsi < 40:
		s++
	case rsi > 70: // overbought
		s -= 2
	case rsi > 60:
		s--
	}

	if mom > 2 {
		s++
	} else if mom < -2 {
		s--
	}

	// High volatility weakens whatever the score says.
	if vol > 5 {
		if s > 0 {
			s--
		} else if s < 0 {
			s++
		}
	}

	switch {
	case s >= 3:
		return StrongBuy
	case s >= 1:
		return Buy
	case s <= -3:
		return StrongSell
	case s <= -1:
		return Sell
	default:
		return Hold
	}
}

func strength(typ Type, mom float64) float64 {
	s := 0.5
	switch typ {
	case StrongBuy, StrongSell:
		s += 0.3
	case Buy, Sell:
		s += 0.2
	}
	s += math.Min(math.Abs(mom)/5, 0.2)
	return math.Min(s, 1)
}

func reason(smaShort, smaLong, rsi, mom float64) string {
	var parts []string

	if smaShort > smaLong {
		parts = append(parts, "MA+")
	} else if smaShort < smaLong {
		parts = append(parts, "MA-")
	}

	switch {
	case rsi < 30:
		parts = append(parts, "RSI_OS")
	case rsi > 70:
		parts = append(parts, "RSI_OB")
	case rsi < 50:
		parts = append(parts, "RSI-")
	default:
		parts = append(parts, "RSI+")
	}

	if mom > 2 {
		parts = append(parts, "MOM+")
	} else if mom < -2 {
		parts = append(parts, "MOM-")
	}

	return strings.Join(parts, " ")
}
