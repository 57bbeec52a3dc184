package indicators

import (
	"fmt"

	"github.com/kinggekko/core/internal/domain"
)

// ATR computes the Average True Range over the given period using a
// simplified true-range (absolute close-to-close move), matching the
// reference implementation's own simplification rather than the textbook
// high/low/prior-close formula — OHLCVBar.Close history is what's
// available at the call sites that need ATR (Supertrend).
func ATR(closes []float64, period int) (float64, error) {
	if len(closes) < 2 {
		return 0, fmt.Errorf("atr: need at least 2 closes")
	}
	trueRanges := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr := closes[i] - closes[i-1]
		if tr < 0 {
			tr = -tr
		}
		trueRanges = append(trueRanges, tr)
	}
	window := trueRanges
	if len(trueRanges) >= period {
		window = trueRanges[len(trueRanges)-period:]
	}
	return mean(window), nil
}

// VWAP computes the volume-weighted average price over the given window
// and classifies the current price's deviation from it.
func VWAP(prices, volumes []float64) (domain.IndicatorResult, error) {
	if len(prices) != len(volumes) || len(prices) < 10 {
		return domain.IndicatorResult{}, fmt.Errorf("vwap: need aligned price/volume series of length >= 10")
	}

	var totalValue, totalVolume float64
	for i := range prices {
		totalValue += prices[i] * volumes[i]
		totalVolume += volumes[i]
	}
	if totalVolume == 0 {
		return domain.IndicatorResult{}, fmt.Errorf("vwap: zero total volume")
	}
	vwap := totalValue / totalVolume
	current := prices[len(prices)-1]

	var signal domain.SignalClass
	switch {
	case current > vwap*1.02:
		signal = domain.SignalStrongBuy
	case current > vwap:
		signal = domain.SignalBuy
	case current < vwap*0.98:
		signal = domain.SignalStrongSell
	case current < vwap:
		signal = domain.SignalSell
	default:
		signal = domain.SignalNeutral
	}

	return domain.IndicatorResult{
		Value:    vwap,
		Extra:    map[string]float64{"price_vs_vwap_pct": (current - vwap) / vwap * 100},
		Signal:   signal,
		Strength: distanceStrength(current, vwap),
	}, nil
}

// Ichimoku computes a simplified Ichimoku Cloud: Tenkan-sen (9-period),
// Kijun-sen (26-period), and Senkou Span A/B, classifying the current
// price's position relative to the cloud.
func Ichimoku(closes []float64) (domain.IndicatorResult, error) {
	if len(closes) < 52 {
		return domain.IndicatorResult{}, fmt.Errorf("ichimoku: need 52 closes, have %d", len(closes))
	}
	current := closes[len(closes)-1]
	tenkan := midpoint(closes[len(closes)-9:])
	kijun := midpoint(closes[len(closes)-26:])
	spanA := (tenkan + kijun) / 2
	spanB := midpoint(closes[len(closes)-52:])

	var signal domain.SignalClass
	var strength float64
	switch {
	case current > spanA && current > spanB:
		signal = domain.SignalStrongBuy
		strength = minF((current-spanA)/spanA, 1)
	case current > tenkan && current > kijun:
		signal = domain.SignalBuy
		strength = 0.5
	case current < spanA && current < spanB:
		signal = domain.SignalStrongSell
		strength = minF((spanA-current)/spanA, 1)
	case current < tenkan && current < kijun:
		signal = domain.SignalSell
		strength = 0.5
	default:
		signal = domain.SignalNeutral
		strength = 0.5
	}

	return domain.IndicatorResult{
		Value: current,
		Extra: map[string]float64{
			"tenkan_sen":     tenkan,
			"kijun_sen":      kijun,
			"senkou_span_a":  spanA,
			"senkou_span_b":  spanB,
		},
		Signal:   signal,
		Strength: strength,
	}, nil
}

func midpoint(xs []float64) float64 {
	hi, lo := xs[0], xs[0]
	for _, x := range xs {
		if x > hi {
			hi = x
		}
		if x < lo {
			lo = x
		}
	}
	return (hi + lo) / 2
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Supertrend computes a simplified Supertrend band using ATR(10) and a
// 3x multiplier, classifying price relative to the bands.
func Supertrend(closes []float64) (domain.IndicatorResult, error) {
	const period = 10
	const multiplier = 3.0
	if len(closes) < 20 {
		return domain.IndicatorResult{}, fmt.Errorf("supertrend: need 20 closes, have %d", len(closes))
	}
	current := closes[len(closes)-1]
	atr, err := ATR(closes, period)
	if err != nil {
		return domain.IndicatorResult{}, err
	}
	hl2 := (closes[len(closes)-1] + closes[len(closes)-2]) / 2
	upper := hl2 + multiplier*atr
	lower := hl2 - multiplier*atr

	var signal domain.SignalClass
	switch {
	case current > upper:
		signal = domain.SignalStrongBuy
	case current > lower:
		signal = domain.SignalBuy
	case current < lower:
		signal = domain.SignalStrongSell
	default:
		signal = domain.SignalSell
	}

	return domain.IndicatorResult{
		Value:    hl2,
		Extra:    map[string]float64{"upper_band": upper, "lower_band": lower, "atr": atr},
		Signal:   signal,
		Strength: distanceStrength(current, hl2),
	}, nil
}

// StochasticRSI rescales a 14-period RSI into the 20-80 range and clamps
// to [0,1], matching the reference implementation's normalisation rather
// than the textbook rolling-min/max-of-RSI formula.
func StochasticRSI(closes []float64) (domain.IndicatorResult, error) {
	const period = 14
	if len(closes) < period+7 {
		return domain.IndicatorResult{}, fmt.Errorf("stochastic rsi: need %d closes, have %d", period+7, len(closes))
	}

	var gains, losses []float64
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain := windowMean(gains, period)
	avgLoss := windowMean(losses, period)

	rs := 100.0
	if avgLoss != 0 {
		rs = avgGain / avgLoss
	}
	rsi := 100 - (100 / (1 + rs))
	stochRSI := clamp((rsi-20)/(80-20), 0, 1)

	var signal domain.SignalClass
	switch {
	case stochRSI > 0.8:
		signal = domain.SignalStrongBuy
	case stochRSI > 0.6:
		signal = domain.SignalBuy
	case stochRSI < 0.2:
		signal = domain.SignalStrongSell
	case stochRSI < 0.4:
		signal = domain.SignalSell
	default:
		signal = domain.SignalNeutral
	}

	return domain.IndicatorResult{
		Value:    stochRSI,
		Extra:    map[string]float64{"rsi": rsi},
		Signal:   signal,
		Strength: stochRSI,
	}, nil
}

func windowMean(xs []float64, period int) float64 {
	if len(xs) >= period {
		return mean(xs[len(xs)-period:])
	}
	return mean(xs)
}

// FibonacciRetracement finds the 20-period high/low and returns the
// standard retracement levels (23.6/38.2/50/61.8/78.6%), classifying the
// current price's position among them.
func FibonacciRetracement(closes []float64) (domain.IndicatorResult, error) {
	if len(closes) < 20 {
		return domain.IndicatorResult{}, fmt.Errorf("fibonacci: need 20 closes, have %d", len(closes))
	}
	window := closes[len(closes)-20:]
	hi, lo := window[0], window[0]
	for _, x := range window {
		if x > hi {
			hi = x
		}
		if x < lo {
			lo = x
		}
	}
	rng := hi - lo
	current := closes[len(closes)-1]

	levels := map[string]float64{
		"fib_236": hi - rng*0.236,
		"fib_382": hi - rng*0.382,
		"fib_500": hi - rng*0.500,
		"fib_618": hi - rng*0.618,
		"fib_786": hi - rng*0.786,
	}

	closest := levels["fib_236"]
	bestDist := absF(current - closest)
	for _, v := range levels {
		if d := absF(current - v); d < bestDist {
			closest = v
			bestDist = d
		}
	}

	var signal domain.SignalClass
	switch {
	case current > levels["fib_382"]:
		signal = domain.SignalStrongBuy
	case current > levels["fib_500"]:
		signal = domain.SignalBuy
	case current < levels["fib_618"]:
		signal = domain.SignalStrongSell
	case current < levels["fib_500"]:
		signal = domain.SignalSell
	default:
		signal = domain.SignalNeutral
	}

	strength := 1.0
	if rng != 0 {
		strength = 1 - minF(bestDist/rng, 1)
	}

	levels["recent_high"] = hi
	levels["recent_low"] = lo

	return domain.IndicatorResult{
		Value:    closest,
		Extra:    levels,
		Signal:   signal,
		Strength: strength,
	}, nil
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
