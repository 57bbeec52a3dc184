// Package liquidation implements the Liquidation Monitor (C12): a ticking
// scanner that compares current positions and account state against
// protective thresholds and emits LiquidationTriggers, independent of
// strategy rank, debounced per (symbol, kind).
package liquidation

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/domain"
)

const (
	defaultStopLossPct     = 5.0
	defaultProfitTargetPct = 5.0
	defaultDebounceWindow  = 2 * time.Second
)

// Config holds the percentage thresholds the monitor scans against.
type Config struct {
	StopLossPct     float64
	ProfitTargetPct float64
	DebounceWindow  time.Duration
}

func (c Config) withDefaults() Config {
	if c.StopLossPct == 0 {
		c.StopLossPct = defaultStopLossPct
	}
	if c.ProfitTargetPct == 0 {
		c.ProfitTargetPct = defaultProfitTargetPct
	}
	if c.DebounceWindow == 0 {
		c.DebounceWindow = defaultDebounceWindow
	}
	return c
}

// PositionSource is the subset of internal/store's Store the monitor
// reads from; narrowed to an interface so it can be driven by fixtures
// in tests without a real Store.
type PositionSource interface {
	AllPositions() []domain.Position
	Snapshot(symbol string) (domain.MarketSnapshot, bool)
	Account() domain.AccountState
}

type triggerKey struct {
	symbol string
	kind   domain.LiquidationKind
}

// Monitor scans positions against current snapshots on each Scan call.
type Monitor struct {
	source PositionSource
	cfg    Config
	log    zerolog.Logger

	mu        sync.Mutex
	lastFired map[triggerKey]time.Time
}

// New builds a Monitor. Zero-valued Config fields fall back to spec
// defaults (5% stop-loss, 5% profit target, 2s debounce).
func New(source PositionSource, cfg Config, log zerolog.Logger) *Monitor {
	return &Monitor{
		source:    source,
		cfg:       cfg.withDefaults(),
		log:       log.With().Str("component", "liquidation").Logger(),
		lastFired: make(map[triggerKey]time.Time),
	}
}

// Config returns the monitor's effective thresholds (after defaulting),
// for components that need to report them (e.g. the consolidated export).
func (m *Monitor) Config() Config {
	return m.cfg
}

// Scan evaluates every held position against the stop-loss and
// profit-target rules in spec.md §4.12 and returns the triggers that
// fired. At most one trigger per (symbol, kind) is returned per call, and
// triggers repeated within the debounce window of a prior call are
// suppressed.
func (m *Monitor) Scan(now time.Time) []domain.LiquidationTrigger {
	account := m.source.Account()
	positions := m.source.AllPositions()

	portfolioBreached := account.StartingPortfolioValue > 0 &&
		account.PortfolioValue < account.StartingPortfolioValue*(1-m.cfg.StopLossPct/100)

	var triggers []domain.LiquidationTrigger
	firedThisCycle := make(map[triggerKey]bool)

	emit := func(symbol string, kind domain.LiquidationKind, price, profitPct float64, reason string) {
		key := triggerKey{symbol, kind}
		if firedThisCycle[key] {
			return
		}
		if !m.allow(now, key) {
			return
		}
		firedThisCycle[key] = true
		triggers = append(triggers, domain.LiquidationTrigger{
			Symbol:       symbol,
			Kind:         kind,
			CurrentPrice: price,
			ProfitPct:    profitPct,
			Reason:       reason,
		})
	}

	for _, pos := range positions {
		if pos.Qty == 0 {
			continue
		}
		snap, ok := m.source.Snapshot(pos.Symbol)
		if !ok {
			continue
		}
		price := snap.Price

		if portfolioBreached && pos.IsLong() {
			emit(pos.Symbol, domain.LiquidationStopLoss, price, 0, "portfolio drawdown below stop-loss threshold")
		}

		if pos.IsLong() && pos.AvgEntryPrice > 0 {
			profitPct := (price - pos.AvgEntryPrice) / pos.AvgEntryPrice * 100
			if profitPct >= m.cfg.ProfitTargetPct {
				emit(pos.Symbol, domain.LiquidationProfitTarget, price, profitPct, "profit target reached")
			}
		}

		if loss, ok := lossPercent(pos, price); ok && loss >= m.cfg.StopLossPct {
			emit(pos.Symbol, domain.LiquidationStopLoss, price, -loss, "per-position stop-loss breached")
		}
	}

	return triggers
}

// lossPercent returns the percentage loss of a position at price,
// direction-aware: a long loses when price falls below AvgEntryPrice, a
// short loses when price rises above it.
func lossPercent(pos domain.Position, price float64) (float64, bool) {
	if pos.AvgEntryPrice == 0 {
		return 0, false
	}
	switch {
	case pos.IsLong():
		return (pos.AvgEntryPrice - price) / pos.AvgEntryPrice * 100, true
	case pos.IsShort():
		return (price - pos.AvgEntryPrice) / pos.AvgEntryPrice * 100, true
	default:
		return 0, false
	}
}

func (m *Monitor) allow(now time.Time, key triggerKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastFired[key]; ok && now.Sub(last) < m.cfg.DebounceWindow {
		return false
	}
	m.lastFired[key] = now
	return true
}
