package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kinggekko/core/internal/domain"
)

func TestClassify_Crisis_HighVix(t *testing.T) {
	r := Classify(Indicators{VolatilityIndexLevel: 40})
	assert.Equal(t, domain.RegimeCrisis, r.Kind)
	assert.Equal(t, 0.9, r.Confidence)
}

func TestClassify_Bear_VixAndNegativeTrend(t *testing.T) {
	r := Classify(Indicators{VolatilityIndexLevel: 30, MarketTrend: -0.2})
	assert.Equal(t, domain.RegimeBear, r.Kind)
	assert.Equal(t, 0.8, r.Confidence)
}

func TestClassify_HighVolatility_VixAndPositiveTrend(t *testing.T) {
	r := Classify(Indicators{VolatilityIndexLevel: 30, MarketTrend: 0.2})
	assert.Equal(t, domain.RegimeHighVolatility, r.Kind)
}

func TestClassify_Bull_StrongTrendAndMomentum(t *testing.T) {
	r := Classify(Indicators{MarketTrend: 0.2, MomentumScore: 0.15})
	assert.Equal(t, domain.RegimeBull, r.Kind)
}

func TestClassify_Bear_StrongNegativeTrendAndMomentum(t *testing.T) {
	r := Classify(Indicators{MarketTrend: -0.2, MomentumScore: -0.15})
	assert.Equal(t, domain.RegimeBear, r.Kind)
}

func TestClassify_Sideways_LowVolatilityLowTrendStrength(t *testing.T) {
	r := Classify(Indicators{VolatilityScore: 0.1, TrendStrength: 0.1})
	assert.Equal(t, domain.RegimeSideways, r.Kind)
}

func TestClassify_LowVolatility_LowVolatilityOnly(t *testing.T) {
	r := Classify(Indicators{VolatilityScore: 0.1, TrendStrength: 0.5})
	assert.Equal(t, domain.RegimeLowVolatility, r.Kind)
}

func TestClassify_Momentum_HighAbsMomentum(t *testing.T) {
	r := Classify(Indicators{VolatilityScore: 0.5, TrendStrength: 0.5, MomentumScore: 0.3})
	assert.Equal(t, domain.RegimeMomentum, r.Kind)
}

func TestClassify_Crisis_HighCorrelation(t *testing.T) {
	r := Classify(Indicators{VolatilityScore: 0.5, TrendStrength: 0.5, MomentumScore: 0.05, AverageCorrelation: 0.9})
	assert.Equal(t, domain.RegimeCrisis, r.Kind)
	assert.Equal(t, 0.6, r.Confidence)
}

func TestClassify_Consolidation_Default(t *testing.T) {
	r := Classify(Indicators{VolatilityScore: 0.5, TrendStrength: 0.5, MomentumScore: 0.05, AverageCorrelation: 0.1})
	assert.Equal(t, domain.RegimeConsolidation, r.Kind)
	assert.Equal(t, 0.5, r.Confidence)
}

func TestClassify_IndicatorsPopulated(t *testing.T) {
	r := Classify(Indicators{MarketTrend: 0.01, VolatilityIndexLevel: 12})
	assert.Equal(t, 0.01, r.Indicators["market_trend"])
	assert.Equal(t, 12.0, r.Indicators["volatility_index"])
	assert.NotNil(t, r.RecommendedMix)
}

func TestProbability_AppliesMomentumAdjustmentAndCaps(t *testing.T) {
	p := Probability(domain.RegimeBull, 0.5)
	assert.InDelta(t, 0.45, p, 1e-9)

	capped := Probability(domain.RegimeBull, 10)
	assert.Equal(t, 1.0, capped)
}

func TestProbability_UnknownKindUsesDefaultBase(t *testing.T) {
	p := Probability(domain.RegimeUnknown, 0)
	assert.InDelta(t, 0.1, p, 1e-9)
}

func TestTracker_DurationGrowsWhileRegimeStable(t *testing.T) {
	tr := NewTracker()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r1 := tr.Observe(Indicators{VolatilityIndexLevel: 40}, t0)
	assert.Equal(t, 0, r1.DurationDays)

	r2 := tr.Observe(Indicators{VolatilityIndexLevel: 40}, t0.Add(72*time.Hour))
	assert.Equal(t, 3, r2.DurationDays)
	assert.Len(t, tr.History(), 2)
}

func TestTracker_DurationResetsOnRegimeChange(t *testing.T) {
	tr := NewTracker()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.Observe(Indicators{VolatilityIndexLevel: 40}, t0)
	r2 := tr.Observe(Indicators{VolatilityIndexLevel: 5, VolatilityScore: 0.1, TrendStrength: 0.1}, t0.Add(72*time.Hour))
	assert.Equal(t, domain.RegimeSideways, r2.Kind)
	assert.Equal(t, 0, r2.DurationDays)
}
