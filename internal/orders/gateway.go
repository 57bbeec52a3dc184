// Package orders implements the Order Gateway (C13): it converts a
// TradingDecision or a LiquidationTrigger into a broker order, running a
// fixed sequence of pre-submission checks and recording every outcome
// (submitted or skipped) to the append journal.
package orders

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/alpaca"
	"github.com/kinggekko/core/internal/domain"
)

const (
	defaultConfidenceFloor = 0.7
	defaultSubmitTimeout   = 15 * time.Second
)

// Config holds the tunables the gateway checks against.
type Config struct {
	ConfidenceFloor float64
	SubmitTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConfidenceFloor == 0 {
		c.ConfidenceFloor = defaultConfidenceFloor
	}
	if c.SubmitTimeout == 0 {
		c.SubmitTimeout = defaultSubmitTimeout
	}
	return c
}

// Broker is the subset of alpaca.Client the gateway depends on, narrowed
// to an interface so tests can supply a fake instead of a real client.
type Broker interface {
	GetClock(ctx context.Context) (*alpaca.Clock, error)
	SubmitOrder(ctx context.Context, p alpaca.SubmitOrderParams) (*alpaca.OrderResponse, error)
}

// IntentKind distinguishes a strategy-originated order from a
// liquidation-originated one; it controls which checks apply and the
// client_order_id prefix stamped at submission.
type IntentKind string

const (
	IntentStrategy    IntentKind = "STRATEGY"
	IntentLiquidation IntentKind = "LIQUIDATION"
)

// SkipReason names why an order was not submitted.
type SkipReason string

const (
	SkipNone               SkipReason = ""
	SkipMarketClosed       SkipReason = "MarketClosed"
	SkipNoPermission       SkipReason = "NoPermission"
	SkipLowConfidence      SkipReason = "LowConfidence"
	SkipRegimeIncompatible SkipReason = "RegimeIncompatible"
	SkipInsufficientFunds  SkipReason = "InsufficientFunds"
)

// Intent is everything the gateway needs to evaluate and, if the checks
// pass, submit one order. A strategy intent carries an allocation value
// in dollars to size into; a liquidation intent closes the full existing
// quantity and bypasses the confidence floor and regime-compatibility
// checks, since an exit is not a discretionary new position.
type Intent struct {
	Kind            IntentKind
	Symbol          string
	Action          domain.DecisionAction
	Confidence      float64
	Regime          domain.RegimeKind
	AllocationValue float64
	ExistingQty     float64
	CurrentPrice    float64
}

// Gateway converts Intents into broker orders.
type Gateway struct {
	broker  Broker
	journal Journal
	cfg     Config
	log     zerolog.Logger

	capMu      sync.RWMutex
	capability domain.AccountCapability
}

// New builds a Gateway. Zero-valued Config fields fall back to spec
// defaults (confidence floor 0.7, 15s submit timeout).
func New(broker Broker, capability domain.AccountCapability, journal Journal, cfg Config, log zerolog.Logger) *Gateway {
	return &Gateway{
		broker:     broker,
		capability: capability,
		journal:    journal,
		cfg:        cfg.withDefaults(),
		log:        log.With().Str("component", "orders").Logger(),
	}
}

// UpdateCapability replaces the capability profile the permission check
// evaluates against. Called by the orchestrator whenever the Capability
// Negotiator re-resolves the account (e.g. after a 401/403 from the
// broker), so a mid-process permission change takes effect without
// rebuilding the Gateway.
func (g *Gateway) UpdateCapability(capability domain.AccountCapability) {
	g.capMu.Lock()
	defer g.capMu.Unlock()
	g.capability = capability
}

func (g *Gateway) currentCapability() domain.AccountCapability {
	g.capMu.RLock()
	defer g.capMu.RUnlock()
	return g.capability
}

// Submit runs the pre-submission checks in spec.md §4.13 order and, if
// all pass, submits the order. Every outcome, submitted or skipped, is
// recorded to the journal before Submit returns.
func (g *Gateway) Submit(ctx context.Context, intent Intent, account domain.AccountState, now time.Time) domain.OrderResult {
	if reason := g.checkPreSubmission(ctx, intent, account); reason != SkipNone {
		g.log.Info().Str("symbol", intent.Symbol).Str("reason", string(reason)).Msg("order skipped")
		result := domain.OrderResult{Success: false, Error: string(reason), SubmittedAt: now}
		g.record(intent, result, reason, now)
		return result
	}

	shares, reason := g.sizeOrder(intent, account)
	if reason != SkipNone {
		g.log.Info().Str("symbol", intent.Symbol).Str("reason", string(reason)).Msg("order skipped")
		result := domain.OrderResult{Success: false, Error: string(reason), SubmittedAt: now}
		g.record(intent, result, reason, now)
		return result
	}

	side := sideFor(intent.Action)
	clientOrderID := clientOrderID(intent.Kind, intent.Symbol, now)

	submitCtx, cancel := context.WithTimeout(ctx, g.cfg.SubmitTimeout)
	defer cancel()

	resp, err := g.broker.SubmitOrder(submitCtx, alpaca.SubmitOrderParams{
		Symbol:        intent.Symbol,
		Qty:           &shares,
		Side:          string(side),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: clientOrderID,
	})

	result := buildResult(resp, err, now)
	if result.Success {
		g.log.Info().Str("symbol", intent.Symbol).Str("order_id", result.OrderID).Msg("order submitted")
	} else {
		g.log.Warn().Str("symbol", intent.Symbol).Str("error", result.Error).Msg("order submission failed")
	}
	g.record(intent, result, SkipNone, now)
	return result
}

func buildResult(resp *alpaca.OrderResponse, err error, now time.Time) domain.OrderResult {
	if err != nil {
		return domain.OrderResult{Success: false, Error: err.Error(), SubmittedAt: now}
	}
	return domain.OrderResult{
		Success:        true,
		OrderID:        resp.ID,
		BrokerResponse: resp.Status,
		SubmittedAt:    now,
	}
}

func (g *Gateway) record(intent Intent, result domain.OrderResult, reason SkipReason, now time.Time) {
	if g.journal == nil {
		return
	}
	if err := g.journal.AppendOrderOutcome(OrderOutcome{
		Symbol:      intent.Symbol,
		Kind:        intent.Kind,
		Action:      intent.Action,
		SkipReason:  reason,
		Result:      result,
		SubmittedAt: now,
	}); err != nil {
		g.log.Error().Err(err).Str("symbol", intent.Symbol).Msg("failed to append order outcome to journal")
	}
}

func sideFor(action domain.DecisionAction) domain.OrderSide {
	switch action {
	case domain.ActionOpenShort, domain.ActionCloseLong:
		return domain.SideSell
	default:
		return domain.SideBuy
	}
}

func clientOrderID(kind IntentKind, symbol string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", kind, symbol, now.Unix())
}

// sizeOrder computes the share count for an intent. A liquidation closes
// the existing position outright; a strategy order sizes into the
// allocation dollar value via the funds check (step 5).
func (g *Gateway) sizeOrder(intent Intent, account domain.AccountState) (float64, SkipReason) {
	if intent.Kind == IntentLiquidation {
		shares := math.Abs(intent.ExistingQty)
		if shares < 1 {
			shares = 1
		}
		return shares, SkipNone
	}

	if intent.CurrentPrice <= 0 {
		return 0, SkipInsufficientFunds
	}
	available := math.Max(account.Cash, account.BuyingPower)
	if intent.AllocationValue > available {
		return 0, SkipInsufficientFunds
	}
	shares := math.Floor(intent.AllocationValue / intent.CurrentPrice)
	if shares < 1 {
		shares = 1
	}
	if shares*intent.CurrentPrice > available {
		return 0, SkipInsufficientFunds
	}
	return shares, SkipNone
}
