package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/optimizer"
)

func baseAllocation() optimizer.Allocation {
	return optimizer.Allocation{
		Symbol:         "AAPL",
		Weight:         0.1,
		ExpectedReturn: 0.08,
		Volatility:     0.02,
		Sharpe:         2.0,
		KellyFraction:  0.15,
		StopLoss:       140,
		TakeProfit:     160,
	}
}

func TestAssembleOne_NewLongPosition_AgreeingAdvisorBoostsConfidence(t *testing.T) {
	in := Input{
		Allocation: baseAllocation(),
		CurrentQty: 0,
		Regime:     domain.RegimeBull,
		Advisor:    domain.AdvisorResponse{Decision: domain.AdvisorBuy, Confidence: 0.8},
	}
	decisions := Assemble([]Input{in})
	d := decisions[0]

	assert.Equal(t, domain.ActionOpenLong, d.Action)
	assert.Equal(t, 1.0, float64(domain.ActionSign(d.Action)))
	assert.Greater(t, d.PositionValueSigned, 0.0)
	// mathConf = 2/(2+1) = 0.6667; boost = 0.8*0.1 = 0.08
	assert.InDelta(t, 0.7467, d.Confidence, 1e-3)
}

func TestAssembleOne_AlreadyHeld_ActionIsHold(t *testing.T) {
	in := Input{
		Allocation: baseAllocation(),
		CurrentQty: 10,
		Regime:     domain.RegimeBull,
		Advisor:    domain.AdvisorResponse{Decision: domain.AdvisorBuy, Confidence: 0.5},
	}
	decisions := Assemble([]Input{in})
	assert.Equal(t, domain.ActionHold, decisions[0].Action)
	assert.Equal(t, 0.0, decisions[0].PositionValueSigned)
}

func TestAssembleOne_ZeroWeight_ActionIsHold(t *testing.T) {
	alloc := baseAllocation()
	alloc.Weight = 0
	in := Input{Allocation: alloc, CurrentQty: 0, Regime: domain.RegimeBull, Advisor: domain.AdvisorResponse{Decision: domain.AdvisorHold, Confidence: 0.5}}
	decisions := Assemble([]Input{in})
	assert.Equal(t, domain.ActionHold, decisions[0].Action)
}

func TestAssembleOne_DowngradesToHold_WhenAdvisorAndRegimeBothDisagree(t *testing.T) {
	in := Input{
		Allocation: baseAllocation(),
		CurrentQty: 0,
		Regime:     domain.RegimeBear, // disagrees with OpenLong
		Advisor:    domain.AdvisorResponse{Decision: domain.AdvisorSell, Confidence: 0.85}, // disagrees, conf > 0.7
	}
	decisions := Assemble([]Input{in})
	d := decisions[0]
	assert.Equal(t, domain.ActionHold, d.Action)
	assert.Equal(t, 0.0, d.PositionValueSigned)
}

func TestAssembleOne_NoDowngrade_WhenOnlyAdvisorDisagrees(t *testing.T) {
	in := Input{
		Allocation: baseAllocation(),
		CurrentQty: 0,
		Regime:     domain.RegimeBull, // agrees with OpenLong, so no regime disagreement
		Advisor:    domain.AdvisorResponse{Decision: domain.AdvisorSell, Confidence: 0.9},
	}
	decisions := Assemble([]Input{in})
	assert.Equal(t, domain.ActionOpenLong, decisions[0].Action)
}

func TestAssembleOne_NoDowngrade_WhenAdvisorConfidenceAtOrBelowThreshold(t *testing.T) {
	in := Input{
		Allocation: baseAllocation(),
		CurrentQty: 0,
		Regime:     domain.RegimeBear,
		Advisor:    domain.AdvisorResponse{Decision: domain.AdvisorSell, Confidence: 0.7},
	}
	decisions := Assemble([]Input{in})
	assert.Equal(t, domain.ActionOpenLong, decisions[0].Action)
}

func TestAssembleOne_PositionValueScaledDown_OnHighRisk(t *testing.T) {
	in := Input{
		Allocation: baseAllocation(),
		CurrentQty: 0,
		Regime:     domain.RegimeBull,
		Advisor:    domain.AdvisorResponse{Decision: domain.AdvisorSell, Confidence: 0.9}, // aiRisk = 0.9 >= 0.7
	}
	decisions := Assemble([]Input{in})
	assert.InDelta(t, 0.1*0.8, decisions[0].PositionValueSigned, 1e-9)
}

func TestAssembleOne_PositionValueScaledUp_OnLowRisk(t *testing.T) {
	in := Input{
		Allocation: baseAllocation(),
		CurrentQty: 0,
		Regime:     domain.RegimeBull,
		Advisor:    domain.AdvisorResponse{Decision: domain.AdvisorBuy, Confidence: 0.9}, // aiRisk = 1-0.9 = 0.1 <= 0.3
	}
	decisions := Assemble([]Input{in})
	assert.InDelta(t, 0.1*1.2, decisions[0].PositionValueSigned, 1e-9)
}

func TestAssembleOne_VolatilityRegimeLabel(t *testing.T) {
	high := baseAllocation()
	high.Volatility = 0.05
	low := baseAllocation()
	low.Symbol = "LOW"
	low.Volatility = 0.005

	decisions := Assemble([]Input{
		{Allocation: high, Regime: domain.RegimeBull, Advisor: domain.AdvisorResponse{Decision: domain.AdvisorHold, Confidence: 0.5}},
		{Allocation: low, Regime: domain.RegimeBull, Advisor: domain.AdvisorResponse{Decision: domain.AdvisorHold, Confidence: 0.5}},
	})
	for _, d := range decisions {
		if d.Symbol == "AAPL" {
			assert.Equal(t, "high", d.VolatilityRegime)
		} else {
			assert.Equal(t, "low", d.VolatilityRegime)
		}
	}
}

func TestAssemble_RanksByConfidenceDescendingThenExpectedReturn(t *testing.T) {
	highConf := baseAllocation()
	highConf.Symbol = "HIGH"
	highConf.Sharpe = 5.0
	highConf.ExpectedReturn = 0.05

	lowConf := baseAllocation()
	lowConf.Symbol = "LOW"
	lowConf.Sharpe = 1.01
	lowConf.ExpectedReturn = 0.20

	decisions := Assemble([]Input{
		{Allocation: lowConf, Regime: domain.RegimeBull, Advisor: domain.AdvisorResponse{Decision: domain.AdvisorHold, Confidence: 0}},
		{Allocation: highConf, Regime: domain.RegimeBull, Advisor: domain.AdvisorResponse{Decision: domain.AdvisorHold, Confidence: 0}},
	})

	assert.Equal(t, "HIGH", decisions[0].Symbol)
	assert.Equal(t, "LOW", decisions[1].Symbol)
}

func TestAssemble_TiebreakByExpectedReturnDescending(t *testing.T) {
	a := baseAllocation()
	a.Symbol = "A"
	a.Sharpe = 2.0
	a.ExpectedReturn = 0.05

	b := baseAllocation()
	b.Symbol = "B"
	b.Sharpe = 2.0
	b.ExpectedReturn = 0.10

	decisions := Assemble([]Input{
		{Allocation: a, Regime: domain.RegimeBull, Advisor: domain.AdvisorResponse{Decision: domain.AdvisorHold, Confidence: 0}},
		{Allocation: b, Regime: domain.RegimeBull, Advisor: domain.AdvisorResponse{Decision: domain.AdvisorHold, Confidence: 0}},
	})

	assert.Equal(t, "B", decisions[0].Symbol)
	assert.Equal(t, "A", decisions[1].Symbol)
}
