// Package decision implements the Decision Assembler (C11): it merges one
// mathematical decision per symbol (from internal/optimizer) with an
// advisor opinion (from internal/consensus or a direct internal/advisor
// call) into a ranked, actionable domain.TradingDecision.
package decision

import (
	"fmt"
	"math"
	"sort"

	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/optimizer"
)

const (
	highVolatilityThreshold = 0.03
	lowVolatilityThreshold  = 0.01
	highRiskThreshold       = 0.7
	lowRiskThreshold        = 0.3
	highRiskScale           = 0.8
	lowRiskScale            = 1.2
)

// Input is everything the assembler needs for one symbol: the optimizer's
// allocation, the position already held (0 if flat), the prevailing
// regime, and the advisor's opinion on this symbol.
type Input struct {
	Allocation optimizer.Allocation
	CurrentQty float64
	Regime     domain.RegimeKind
	Advisor    domain.AdvisorResponse
}

// Assemble merges every Input into a ranked slice of TradingDecisions,
// sorted by combined confidence descending, tiebreak by expected return
// descending, per spec.md §4.11.
func Assemble(inputs []Input) []domain.TradingDecision {
	decisions := make([]domain.TradingDecision, 0, len(inputs))
	for _, in := range inputs {
		decisions = append(decisions, assembleOne(in))
	}

	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].Confidence != decisions[j].Confidence {
			return decisions[i].Confidence > decisions[j].Confidence
		}
		return decisions[i].ExpectedReturn > decisions[j].ExpectedReturn
	})

	return decisions
}

func assembleOne(in Input) domain.TradingDecision {
	action := mathAction(in.Allocation.Weight, in.CurrentQty)
	mathConf := mathConfidence(in.Allocation.Sharpe)
	boost := advisorBoost(action, in.Advisor)
	combinedConfidence := clamp01(mathConf + boost)

	positionValue := scalePositionValue(in.Allocation.Weight, aiRisk(in.Advisor))

	downgraded := false
	if action != domain.ActionHold &&
		advisorDisagrees(action, in.Advisor.Decision) &&
		regimeDisagrees(in.Regime, action) &&
		in.Advisor.Confidence > 0.7 {
		action = domain.ActionHold
		positionValue = 0
		downgraded = true
	}

	sign := float64(domain.ActionSign(action))

	return domain.TradingDecision{
		Symbol:              in.Allocation.Symbol,
		Action:              action,
		PositionValueSigned: sign * math.Abs(positionValue),
		ExpectedReturn:      in.Allocation.ExpectedReturn,
		Confidence:          combinedConfidence,
		StopLossPrice:       in.Allocation.StopLoss,
		TakeProfitPrice:     in.Allocation.TakeProfit,
		Reasoning:           reasoning(in, action, mathConf, boost, downgraded),
		Regime:              in.Regime,
		VolatilityRegime:    volatilityRegimeLabel(in.Allocation.Volatility),
	}
}

// mathAction derives a direction from the optimizer's weight: a new long
// position when there is none yet, Hold when already held (this is a
// rebalance signal, not a fresh order) or when the optimizer assigned no
// weight at all. The optimizer is long-only (see internal/optimizer's
// Kelly-fraction floor at zero), so OpenShort/CloseShort never arise here.
func mathAction(weight, currentQty float64) domain.DecisionAction {
	if weight <= 0 {
		return domain.ActionHold
	}
	if currentQty == 0 {
		return domain.ActionOpenLong
	}
	return domain.ActionHold
}

// mathConfidence normalizes an unbounded Sharpe ratio into [0,1] via
// sharpe/(sharpe+1); allocations reaching this package have already passed
// the optimizer's SharpeThreshold filter, so sharpe is always positive in
// practice, but the result is clamped regardless.
func mathConfidence(sharpe float64) float64 {
	return clamp01(sharpe / (sharpe + 1))
}

// advisorBoost is the confidence contribution from the advisor's opinion.
// A Hold math action has no direction to agree or disagree with, so it
// always earns the small "hold" boost; otherwise agreement earns the full
// boost, a HOLD opinion earns the small boost, and disagreement earns
// none.
func advisorBoost(action domain.DecisionAction, resp domain.AdvisorResponse) float64 {
	if action == domain.ActionHold {
		return resp.Confidence * 0.05
	}
	switch {
	case agreesDirection(action, resp.Decision):
		return resp.Confidence * 0.1
	case resp.Decision == domain.AdvisorHold:
		return resp.Confidence * 0.05
	default:
		return 0.0
	}
}

func agreesDirection(action domain.DecisionAction, decision domain.AdvisorDecision) bool {
	switch action {
	case domain.ActionOpenLong, domain.ActionCloseShort:
		return decision == domain.AdvisorBuy
	case domain.ActionOpenShort, domain.ActionCloseLong:
		return decision == domain.AdvisorSell
	default:
		return false
	}
}

func advisorDisagrees(action domain.DecisionAction, decision domain.AdvisorDecision) bool {
	switch action {
	case domain.ActionOpenLong, domain.ActionCloseShort:
		return decision == domain.AdvisorSell
	case domain.ActionOpenShort, domain.ActionCloseLong:
		return decision == domain.AdvisorBuy
	default:
		return false
	}
}

// regimeDisagrees reports whether the prevailing regime opposes action's
// direction, using the same Bull/Bear/Crisis directional bias as the Order
// Gateway's regime-compatibility table (internal/orders); duplicated here
// rather than imported so internal/decision does not depend on
// internal/orders.
func regimeDisagrees(regime domain.RegimeKind, action domain.DecisionAction) bool {
	switch regime {
	case domain.RegimeBull:
		return action == domain.ActionOpenShort || action == domain.ActionCloseLong
	case domain.RegimeBear, domain.RegimeCrisis:
		return action == domain.ActionOpenLong || action == domain.ActionCloseShort
	default:
		return false
	}
}

// aiRisk reads a risk-assessment signal out of the same advisor response
// used for the confidence boost: a confident SELL reads as high perceived
// risk to a long position, a confident BUY reads as low risk, and HOLD is
// neutral.
func aiRisk(resp domain.AdvisorResponse) float64 {
	switch resp.Decision {
	case domain.AdvisorSell:
		return resp.Confidence
	case domain.AdvisorBuy:
		return 1 - resp.Confidence
	default:
		return 0.5
	}
}

func scalePositionValue(value, risk float64) float64 {
	switch {
	case risk >= highRiskThreshold:
		return value * highRiskScale
	case risk <= lowRiskThreshold:
		return value * lowRiskScale
	default:
		return value
	}
}

func volatilityRegimeLabel(volatility float64) string {
	switch {
	case volatility > highVolatilityThreshold:
		return "high"
	case volatility < lowVolatilityThreshold:
		return "low"
	default:
		return "normal"
	}
}

func reasoning(in Input, action domain.DecisionAction, mathConf, boost float64, downgraded bool) string {
	base := fmt.Sprintf(
		"math: sharpe=%.2f kelly=%.2f conf=%.2f; advisor: %s (%.0f%% conf, boost=%.2f)",
		in.Allocation.Sharpe, in.Allocation.KellyFraction, mathConf,
		in.Advisor.Decision, in.Advisor.Confidence*100, boost,
	)
	if downgraded {
		base += "; downgraded to Hold: advisor and regime both disagree with math direction"
	}
	return base
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
