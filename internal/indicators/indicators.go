// Package indicators computes technical indicators over a symbol's OHLCV
// history (spec §4.5). SMA/EMA/RSI/MACD/Bollinger Bands are delegated to
// go-talib; Ichimoku, Supertrend, VWAP, StochasticRSI, and Fibonacci
// retracement have no talib equivalent and are hand-computed here.
package indicators

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/kinggekko/core/internal/domain"
)

func isNaN(f float64) bool { return f != f }

func last(series []float64) (float64, bool) {
	if len(series) == 0 || isNaN(series[len(series)-1]) {
		return 0, false
	}
	return series[len(series)-1], true
}

// SMA computes the simple moving average over the given period.
func SMA(closes []float64, period int) (domain.IndicatorResult, error) {
	if len(closes) < period {
		return domain.IndicatorResult{}, fmt.Errorf("sma: need %d closes, have %d", period, len(closes))
	}
	v, ok := last(talib.Sma(closes, period))
	if !ok {
		return domain.IndicatorResult{}, fmt.Errorf("sma: insufficient data")
	}
	current := closes[len(closes)-1]
	return domain.IndicatorResult{Value: v, Signal: trendSignal(current, v), Strength: distanceStrength(current, v)}, nil
}

// EMA computes the exponential moving average, falling back to a plain
// mean of the available window when there isn't enough history for a
// proper EMA yet (matches the reference implementation's fallback).
func EMA(closes []float64, period int) (domain.IndicatorResult, error) {
	if len(closes) == 0 {
		return domain.IndicatorResult{}, fmt.Errorf("ema: no data")
	}
	if len(closes) < period {
		v := mean(closes)
		return domain.IndicatorResult{Value: v, Signal: domain.SignalNeutral, Strength: 0}, nil
	}
	v, ok := last(talib.Ema(closes, period))
	if !ok {
		v = mean(closes[len(closes)-period:])
	}
	current := closes[len(closes)-1]
	return domain.IndicatorResult{Value: v, Signal: trendSignal(current, v), Strength: distanceStrength(current, v)}, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func trendSignal(current, reference float64) domain.SignalClass {
	if reference == 0 {
		return domain.SignalNeutral
	}
	switch {
	case current > reference*1.02:
		return domain.SignalStrongBuy
	case current > reference:
		return domain.SignalBuy
	case current < reference*0.98:
		return domain.SignalStrongSell
	case current < reference:
		return domain.SignalSell
	default:
		return domain.SignalNeutral
	}
}

func distanceStrength(current, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	s := math.Abs(current-reference) / reference
	if s > 1 {
		s = 1
	}
	return s
}

// RSI computes the Relative Strength Index over the given period (typically 14).
func RSI(closes []float64, period int) (domain.IndicatorResult, error) {
	if len(closes) < period+1 {
		return domain.IndicatorResult{}, fmt.Errorf("rsi: need %d closes, have %d", period+1, len(closes))
	}
	v, ok := last(talib.Rsi(closes, period))
	if !ok {
		return domain.IndicatorResult{}, fmt.Errorf("rsi: insufficient data")
	}
	var signal domain.SignalClass
	switch {
	case v >= 70:
		signal = domain.SignalStrongSell
	case v >= 60:
		signal = domain.SignalSell
	case v <= 30:
		signal = domain.SignalStrongBuy
	case v <= 40:
		signal = domain.SignalBuy
	default:
		signal = domain.SignalNeutral
	}
	strength := math.Abs(v-50) / 50
	return domain.IndicatorResult{Value: v, Signal: signal, Strength: strength}, nil
}

// MACD computes the MACD line, signal line, and histogram using talib's
// standard 12/26/9 parameterisation.
func MACD(closes []float64, fast, slow, signalPeriod int) (domain.IndicatorResult, error) {
	if len(closes) < slow+signalPeriod {
		return domain.IndicatorResult{}, fmt.Errorf("macd: need %d closes, have %d", slow+signalPeriod, len(closes))
	}
	macdLine, signalLine, hist := talib.Macd(closes, fast, slow, signalPeriod)
	m, ok := last(macdLine)
	if !ok {
		return domain.IndicatorResult{}, fmt.Errorf("macd: insufficient data")
	}
	s, _ := last(signalLine)
	h, _ := last(hist)

	signal := domain.SignalNeutral
	switch {
	case h > 0 && m > 0:
		signal = domain.SignalBuy
	case h < 0 && m < 0:
		signal = domain.SignalSell
	}
	return domain.IndicatorResult{
		Value:    m,
		Extra:    map[string]float64{"signal_line": s, "histogram": h},
		Signal:   signal,
		Strength: math.Min(math.Abs(h), 1),
	}, nil
}

// BollingerBands computes the upper/middle/lower bands over the given
// period and standard deviation multiplier (typically 20, 2).
func BollingerBands(closes []float64, period int, stdDevMultiplier float64) (domain.IndicatorResult, error) {
	if len(closes) < period {
		return domain.IndicatorResult{}, fmt.Errorf("bbands: need %d closes, have %d", period, len(closes))
	}
	upper, middle, lower := talib.BBands(closes, period, stdDevMultiplier, stdDevMultiplier, 0)
	u, ok := last(upper)
	if !ok {
		return domain.IndicatorResult{}, fmt.Errorf("bbands: insufficient data")
	}
	m, _ := last(middle)
	l, _ := last(lower)

	current := closes[len(closes)-1]
	width := u - l
	position := 0.5
	if width != 0 {
		position = clamp((current-l)/width, 0, 1)
	}

	signal := domain.SignalNeutral
	switch {
	case position > 0.9:
		signal = domain.SignalStrongSell
	case position > 0.7:
		signal = domain.SignalSell
	case position < 0.1:
		signal = domain.SignalStrongBuy
	case position < 0.3:
		signal = domain.SignalBuy
	}

	return domain.IndicatorResult{
		Value:    position,
		Extra:    map[string]float64{"upper": u, "middle": m, "lower": l},
		Signal:   signal,
		Strength: math.Abs(position - 0.5) * 2,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
