// Package regime classifies the current market regime from a small set of
// scalar indicators using an ordered rule table (spec §4.7): the first
// matching rule wins, in the order below, mirroring the reference
// implementation's own cascade rather than a scored multi-factor model.
package regime

import (
	"math"

	"github.com/kinggekko/core/internal/domain"
)

// Indicators is the scalar input to the classifier.
type Indicators struct {
	MarketTrend          float64 // e.g. SPY trailing return, signed
	VolatilityIndexLevel float64 // e.g. VIX-equivalent level
	MomentumScore        float64 // signed, roughly [-1,1]
	VolatilityScore      float64 // [0,1]
	TrendStrength        float64 // [0,1]
	AverageCorrelation   float64 // [0,1]
}

// Classify applies the ordered rule table and returns the matched regime
// with its confidence. Exactly one rule fires; the final else-branch
// (Consolidation) always matches, so Classify never fails.
func Classify(ind Indicators) domain.MarketRegime {
	kind, confidence := classify(ind)

	indicatorMap := map[string]float64{
		"market_trend":        ind.MarketTrend,
		"volatility_index":    ind.VolatilityIndexLevel,
		"momentum_score":      ind.MomentumScore,
		"volatility_score":    ind.VolatilityScore,
		"trend_strength":      ind.TrendStrength,
		"average_correlation": ind.AverageCorrelation,
	}

	return domain.MarketRegime{
		Kind:           kind,
		Confidence:     confidence,
		DurationDays:   0, // filled in by Tracker.Observe when history is tracked
		Indicators:     indicatorMap,
		RecommendedMix: recommendedMix(kind),
	}
}

func classify(ind Indicators) (domain.RegimeKind, float64) {
	switch {
	case ind.VolatilityIndexLevel > 35.0:
		return domain.RegimeCrisis, 0.9
	case ind.VolatilityIndexLevel > 25.0 && ind.MarketTrend < -0.1:
		return domain.RegimeBear, 0.8
	case ind.VolatilityIndexLevel > 25.0 && ind.MarketTrend > 0.1:
		return domain.RegimeHighVolatility, 0.7
	case ind.MarketTrend > 0.15 && ind.MomentumScore > 0.1:
		return domain.RegimeBull, 0.8
	case ind.MarketTrend < -0.15 && ind.MomentumScore < -0.1:
		return domain.RegimeBear, 0.8
	case ind.VolatilityScore < 0.3 && ind.TrendStrength < 0.3:
		return domain.RegimeSideways, 0.7
	case ind.VolatilityScore < 0.3:
		return domain.RegimeLowVolatility, 0.6
	case math.Abs(ind.MomentumScore) > 0.2:
		return domain.RegimeMomentum, 0.7
	case ind.AverageCorrelation > 0.8:
		return domain.RegimeCrisis, 0.6
	default:
		return domain.RegimeConsolidation, 0.5
	}
}

// recommendedMix gives a starting-point asset-class allocation for the
// regime; the optimizer (C8) treats this as a prior, not a mandate.
func recommendedMix(kind domain.RegimeKind) map[string]float64 {
	switch kind {
	case domain.RegimeBull, domain.RegimeMomentum:
		return map[string]float64{"equity": 0.8, "cash": 0.1, "defensive": 0.1}
	case domain.RegimeBear, domain.RegimeCrisis:
		return map[string]float64{"equity": 0.3, "cash": 0.5, "defensive": 0.2}
	case domain.RegimeHighVolatility:
		return map[string]float64{"equity": 0.5, "cash": 0.3, "defensive": 0.2}
	case domain.RegimeLowVolatility, domain.RegimeSideways, domain.RegimeConsolidation:
		return map[string]float64{"equity": 0.6, "cash": 0.2, "defensive": 0.2}
	case domain.RegimeRecovery:
		return map[string]float64{"equity": 0.7, "cash": 0.2, "defensive": 0.1}
	case domain.RegimeMeanReversion:
		return map[string]float64{"equity": 0.5, "cash": 0.3, "defensive": 0.2}
	default:
		return map[string]float64{"equity": 0.5, "cash": 0.3, "defensive": 0.2}
	}
}
