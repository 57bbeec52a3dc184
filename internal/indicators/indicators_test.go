package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingSeries(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMA_InsufficientData(t *testing.T) {
	_, err := SMA([]float64{1, 2, 3}, 10)
	assert.Error(t, err)
}

func TestSMA_RisingSeriesSignalsBuy(t *testing.T) {
	closes := risingSeries(30, 100, 1)
	res, err := SMA(closes, 20)
	require.NoError(t, err)
	assert.Contains(t, []string{"Buy", "StrongBuy"}, string(res.Signal))
}

func TestRSI_OverboughtOnStrongUptrend(t *testing.T) {
	closes := risingSeries(30, 100, 2)
	res, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Value, 50.0)
}

func TestBollingerBands_FlatSeriesPositionMid(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	res, err := BollingerBands(closes, 20, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Value, 0.01)
}

func TestVWAP_RejectsMismatchedLengths(t *testing.T) {
	_, err := VWAP([]float64{1, 2, 3}, []float64{1, 2})
	assert.Error(t, err)
}

func TestVWAP_ComputesWeightedAverage(t *testing.T) {
	prices := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 20}
	volumes := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	res, err := VWAP(prices, volumes)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, res.Value, 0.01)
}

func TestIchimoku_InsufficientData(t *testing.T) {
	_, err := Ichimoku(risingSeries(10, 100, 1))
	assert.Error(t, err)
}

func TestIchimoku_StrongUptrendSignalsBuy(t *testing.T) {
	closes := risingSeries(60, 100, 1)
	res, err := Ichimoku(closes)
	require.NoError(t, err)
	assert.Equal(t, "StrongBuy", string(res.Signal))
}

func TestSupertrend_FlatSeriesNeverErrors(t *testing.T) {
	closes := risingSeries(25, 100, 0)
	_, err := Supertrend(closes)
	require.NoError(t, err)
}

func TestStochasticRSI_ClampsToUnitRange(t *testing.T) {
	closes := risingSeries(30, 100, 3)
	res, err := StochasticRSI(closes)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Value, 0.0)
	assert.LessOrEqual(t, res.Value, 1.0)
}

func TestFibonacciRetracement_LevelsOrdered(t *testing.T) {
	closes := risingSeries(25, 100, 1)
	res, err := FibonacciRetracement(closes)
	require.NoError(t, err)
	assert.Less(t, res.Extra["fib_786"], res.Extra["fib_236"])
}
