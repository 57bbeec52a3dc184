package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/kinggekko/core/internal/consensus"
	"github.com/kinggekko/core/internal/decision"
	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/indicators"
	"github.com/kinggekko/core/internal/optimizer"
	"github.com/kinggekko/core/internal/orders"
	"github.com/kinggekko/core/internal/regime"
)

const defaultOllamaModel = "llama3"

// evaluationLoop runs the full math-to-order pipeline on a fixed tick:
// classify the regime, optimize the universe, consult the advisor
// consensus for each symbol, assemble decisions, and submit the
// non-Hold ones.
func (o *Orchestrator) evaluationLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(evaluationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.runEvaluationCycle(ctx)
		}
	}
}

func (o *Orchestrator) runEvaluationCycle(ctx context.Context) {
	decisions := o.buildDecisions(ctx)
	if decisions == nil {
		return
	}
	o.submitDecisions(ctx, decisions)
}

// buildDecisions runs regime classification, the optimizer, advisor
// consensus, and the decision assembler over every symbol currently held
// in the store, recording the result as the latest decisions for the
// admin surface. Returns nil if there is nothing to evaluate yet.
func (o *Orchestrator) buildDecisions(ctx context.Context) []domain.TradingDecision {
	snapshots := o.store.AllSnapshots()
	if len(snapshots) == 0 {
		return nil
	}

	inputs, agg := o.buildSymbolInputs(snapshots)
	if len(inputs) == 0 {
		return nil
	}

	regimeResult := o.classifyRegime(snapshots, agg)

	account := o.store.Account()
	allocations := optimizer.Optimize(inputs, account.PortfolioValue, account.StartingPortfolioValue, optimizer.Config{})

	decisionInputs := make([]decision.Input, 0, len(allocations))
	for _, alloc := range allocations {
		pos, _ := o.store.Position(alloc.Symbol)
		advisorResp := o.consultAdvisor(ctx, alloc.Symbol, regimeResult.Kind)
		decisionInputs = append(decisionInputs, decision.Input{
			Allocation: alloc,
			CurrentQty: pos.Qty,
			Regime:     regimeResult.Kind,
			Advisor:    advisorResp,
		})
	}

	decisions := decision.Assemble(decisionInputs)
	o.setLatestDecisions(decisions)
	return decisions
}

// submitDecisions submits every non-Hold decision through the Order
// Gateway.
func (o *Orchestrator) submitDecisions(ctx context.Context, decisions []domain.TradingDecision) {
	account := o.store.Account()
	now := time.Now()
	for _, d := range decisions {
		if d.Action == "" || isHold(d) {
			continue
		}
		snap, ok := o.store.Snapshot(d.Symbol)
		if !ok {
			continue
		}
		intent := orders.Intent{
			Kind:            orders.IntentStrategy,
			Symbol:          d.Symbol,
			Action:          d.Action,
			Confidence:      d.Confidence,
			Regime:          d.Regime,
			AllocationValue: allocationValueFor(d, account.PortfolioValue),
			CurrentPrice:    snap.Price,
		}
		result := o.orderGW.Submit(ctx, intent, account, now)
		if !result.Success {
			o.log.Debug().Str("symbol", d.Symbol).Str("reason", result.Error).Msg("strategy order not submitted")
		}
	}
}

// RunEvaluationOnly runs one evaluation cycle without submitting orders —
// the "enhanced-strategy" CLI mode.
func (o *Orchestrator) RunEvaluationOnly(ctx context.Context) []domain.TradingDecision {
	return o.buildDecisions(ctx)
}

// RunEvaluationAndSubmit runs one evaluation cycle and submits every
// non-Hold decision — the "execute-orders" CLI mode.
func (o *Orchestrator) RunEvaluationAndSubmit(ctx context.Context) []domain.TradingDecision {
	decisions := o.buildDecisions(ctx)
	if decisions != nil {
		o.submitDecisions(ctx, decisions)
	}
	return decisions
}

// RunOptimizerOnly runs only the portfolio optimizer stage — the
// "portfolio-analysis" CLI mode — and returns the
// resulting allocations without consulting the advisor or submitting
// orders.
func (o *Orchestrator) RunOptimizerOnly(ctx context.Context) []optimizer.Allocation {
	snapshots := o.store.AllSnapshots()
	if len(snapshots) == 0 {
		return nil
	}

	inputs, _ := o.buildSymbolInputs(snapshots)
	if len(inputs) == 0 {
		return nil
	}

	account := o.store.Account()
	allocations := optimizer.Optimize(inputs, account.PortfolioValue, account.StartingPortfolioValue, optimizer.Config{})
	for _, alloc := range allocations {
		o.log.Info().Str("symbol", alloc.Symbol).Float64("weight", alloc.Weight).
			Float64("expected_return", alloc.ExpectedReturn).Float64("sharpe", alloc.Sharpe).
			Msg("portfolio analysis")
	}
	return allocations
}

// RunRegimeOnly runs only the regime classifier — the "regime-analysis"
// CLI mode.
func (o *Orchestrator) RunRegimeOnly(ctx context.Context) domain.MarketRegime {
	snapshots := o.store.AllSnapshots()
	_, agg := o.buildSymbolInputs(snapshots)
	result := o.classifyRegime(snapshots, agg)
	o.log.Info().Str("regime", string(result.Kind)).Float64("confidence", result.Confidence).
		Msg("regime analysis")
	return result
}

// symbolSignal bundles the per-symbol indicator readings fed into both the
// optimizer's momentum input and the regime classifier's aggregate
// indicators.
type symbolSignal struct {
	momentum   float64
	volatility float64
	trend      float64
}

// computeSymbolSignal derives momentum, volatility, and trend strength from
// the technical indicator engine (RSI, Bollinger Bands, EMA) rather than a
// raw price delta, falling back to the naive pct-change momentum when a
// symbol's bar history is too short for RSI's 15-close window.
func computeSymbolSignal(closes []float64) symbolSignal {
	sig := symbolSignal{momentum: momentum(closes)}
	if rsi, err := indicators.RSI(closes, 14); err == nil {
		sig.momentum = clampUnit((rsi.Value - 50) / 50)
	}
	if bb, err := indicators.BollingerBands(closes, 20, 2); err == nil {
		sig.volatility = bb.Strength
	}
	if ema, err := indicators.EMA(closes, 20); err == nil {
		sig.trend = ema.Strength
	}
	return sig
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// aggregateIndicators averages symbolSignal across every symbol with enough
// history to feed the regime classifier's MomentumScore/VolatilityScore/
// TrendStrength inputs (spec.md §4.7's table reads these, not per-symbol
// values).
type aggregateIndicators struct {
	momentum   float64
	volatility float64
	trend      float64
	n          int
}

func (a *aggregateIndicators) add(sig symbolSignal) {
	a.momentum += sig.momentum
	a.volatility += sig.volatility
	a.trend += sig.trend
	a.n++
}

func (a aggregateIndicators) averages() (momentum, volatility, trend float64) {
	if a.n == 0 {
		return 0, 0, 0
	}
	return a.momentum / float64(a.n), a.volatility / float64(a.n), a.trend / float64(a.n)
}

// buildSymbolInputs builds the optimizer's per-symbol inputs from each
// symbol's bar history, skipping symbols with fewer than two bars, and
// accumulates the indicator aggregate the regime classifier reads.
func (o *Orchestrator) buildSymbolInputs(snapshots map[string]domain.MarketSnapshot) ([]optimizer.SymbolInput, aggregateIndicators) {
	var agg aggregateIndicators
	inputs := make([]optimizer.SymbolInput, 0, len(snapshots))
	for symbol, snap := range snapshots {
		bars := o.store.Bars(symbol)
		if len(bars) < 2 {
			continue
		}
		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}
		sig := computeSymbolSignal(closes)
		agg.add(sig)
		o.store.SetIndicators(symbol, map[string]float64{
			"momentum":   sig.momentum,
			"volatility": sig.volatility,
			"trend":      sig.trend,
		})
		inputs = append(inputs, optimizer.SymbolInput{
			Symbol:       symbol,
			Closes:       closes,
			Momentum:     sig.momentum,
			CurrentPrice: snap.Price,
		})
	}
	return inputs, agg
}

func isHold(d domain.TradingDecision) bool {
	return d.Action != domain.ActionOpenLong && d.Action != domain.ActionOpenShort &&
		d.Action != domain.ActionCloseLong && d.Action != domain.ActionCloseShort
}

// allocationValueFor converts a signed position-value target (a fraction of
// the portfolio) into the unsigned dollar allocation the Order Gateway
// sizes into.
func allocationValueFor(d domain.TradingDecision, portfolioValue float64) float64 {
	v := d.PositionValueSigned * portfolioValue
	if v < 0 {
		v = -v
	}
	if v == 0 {
		v = defaultAllocationUSD
	}
	return v
}

func (o *Orchestrator) classifyRegime(snapshots map[string]domain.MarketSnapshot, agg aggregateIndicators) domain.MarketRegime {
	momentumScore, volatilityScore, trendStrength := agg.averages()
	ind := regime.Indicators{
		MarketTrend:     marketTrend(snapshots),
		MomentumScore:   momentumScore,
		VolatilityScore: volatilityScore,
		TrendStrength:   trendStrength,
	}
	return o.tracker.Observe(ind, time.Now())
}

func marketTrend(snapshots map[string]domain.MarketSnapshot) float64 {
	var total float64
	var n int
	for _, snap := range snapshots {
		if snap.Open == 0 {
			continue
		}
		total += (snap.Price - snap.Open) / snap.Open
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func momentum(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	first, last := closes[0], closes[len(closes)-1]
	if first == 0 {
		return 0
	}
	m := (last - first) / first
	if m > 1 {
		m = 1
	}
	if m < -1 {
		m = -1
	}
	return m
}

// consultAdvisor asks the consensus engine for one symbol's opinion,
// honoring an operator-set model override (C15) by seeding the registry
// with it on first use.
func (o *Orchestrator) consultAdvisor(ctx context.Context, symbol string, regimeKind domain.RegimeKind) domain.AdvisorResponse {
	model := o.models.Current()
	if model == "" {
		model = o.cfg.OllamaModel
	}
	if model == "" || model == "auto" {
		model = defaultOllamaModel
	}
	if len(o.registry.EnabledModels()) == 0 {
		o.registry.AutoAssignRoles([]string{model})
	}

	snap, _ := o.store.Snapshot(symbol)
	account := o.store.Account()

	marketData := fmt.Sprintf("symbol=%s price=%.2f regime=%s", symbol, snap.Price, regimeKind)
	if bars := o.store.Bars(symbol); len(bars) >= 15 {
		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}
		if rsi, err := indicators.RSI(closes, 14); err == nil {
			marketData = fmt.Sprintf("%s rsi=%.1f rsi_signal=%s", marketData, rsi.Value, rsi.Signal)
		}
	}

	result := o.consensus.GetConsensus(ctx, consensus.ConsensusRequest{
		MarketData:     marketData,
		PortfolioData:  fmt.Sprintf("equity=%.2f cash=%.2f", account.Equity, account.Cash),
		TradingContext: fmt.Sprintf("regime=%s", regimeKind),
		AnalysisType:   domain.AnalysisBuySignal,
		Symbols:        []string{symbol},
		Urgency:        domain.UrgencyMedium,
	})

	return domain.AdvisorResponse{
		Decision:   result.FinalDecision,
		Confidence: result.Confidence,
		Role:       domain.RoleGeneralPurpose,
	}
}

// liquidationLoop scans every held position for a stop-loss/profit-target
// breach on a tighter tick than the strategy loop, since an exit should
// not wait on the full evaluation cycle.
func (o *Orchestrator) liquidationLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(liquidationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.runLiquidationScan(ctx)
		}
	}
}

func (o *Orchestrator) runLiquidationScan(ctx context.Context) {
	now := time.Now()
	triggers := o.liquidation.Scan(now)
	if len(triggers) == 0 {
		return
	}
	account := o.store.Account()
	for _, trig := range triggers {
		pos, ok := o.store.Position(trig.Symbol)
		if !ok {
			continue
		}
		action := domain.ActionCloseLong
		if pos.IsShort() {
			action = domain.ActionCloseShort
		}
		intent := orders.Intent{
			Kind:         orders.IntentLiquidation,
			Symbol:       trig.Symbol,
			Action:       action,
			ExistingQty:  pos.Qty,
			CurrentPrice: trig.CurrentPrice,
		}
		result := o.orderGW.Submit(ctx, intent, account, now)
		if result.Success {
			o.log.Info().Str("symbol", trig.Symbol).Str("trigger", trig.Reason).Msg("liquidation order submitted")
		} else {
			o.log.Warn().Str("symbol", trig.Symbol).Str("error", result.Error).Msg("liquidation order failed")
		}
	}
}
