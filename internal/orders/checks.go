package orders

import (
	"context"

	"github.com/kinggekko/core/internal/domain"
)

// checkPreSubmission runs checks 1-4 of spec.md §4.13 in order, short
// circuiting on the first failure. The funds check (step 5) runs
// separately in sizeOrder since it also determines the share count.
// Liquidation intents skip the confidence floor and regime-compatibility
// checks: an exit is not a discretionary new position, so neither a low
// advisor confidence nor a regime bias should block it.
func (g *Gateway) checkPreSubmission(ctx context.Context, intent Intent, account domain.AccountState) SkipReason {
	clock, err := g.broker.GetClock(ctx)
	if err != nil || !clock.IsOpen {
		return SkipMarketClosed
	}

	if !hasPermission(intent.Action, g.currentCapability()) {
		return SkipNoPermission
	}

	if intent.Kind == IntentStrategy {
		if intent.Confidence < g.cfg.ConfidenceFloor {
			return SkipLowConfidence
		}
		if !RegimeCompatible(intent.Regime, intent.Action) {
			return SkipRegimeIncompatible
		}
	}

	return SkipNone
}

// hasPermission checks the trading permission flags: stock trading must
// be enabled outright, and opening a short additionally requires the
// short-selling capability.
func hasPermission(action domain.DecisionAction, cap domain.AccountCapability) bool {
	if !cap.CanTradeStocks {
		return false
	}
	if action == domain.ActionOpenShort {
		return cap.CanShort
	}
	return true
}

// RegimeCompatible implements the restrictive {action x regime} table:
// Bull permits buy-direction actions only, Bear and Crisis permit
// sell-direction actions only, Sideways permits both, and every other
// regime is permissive by omission.
func RegimeCompatible(regime domain.RegimeKind, action domain.DecisionAction) bool {
	side := sideFor(action)
	switch regime {
	case domain.RegimeBull:
		return side == domain.SideBuy
	case domain.RegimeBear, domain.RegimeCrisis:
		return side == domain.SideSell
	default:
		return true
	}
}
