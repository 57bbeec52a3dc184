package liquidation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinggekko/core/internal/domain"
)

type fakeSource struct {
	positions []domain.Position
	snapshots map[string]domain.MarketSnapshot
	account   domain.AccountState
}

func (f *fakeSource) AllPositions() []domain.Position { return f.positions }
func (f *fakeSource) Snapshot(symbol string) (domain.MarketSnapshot, bool) {
	s, ok := f.snapshots[symbol]
	return s, ok
}
func (f *fakeSource) Account() domain.AccountState { return f.account }

func TestScan_ProfitTargetTrigger_OnLongGain(t *testing.T) {
	src := &fakeSource{
		positions: []domain.Position{{Symbol: "AAPL", Qty: 10, AvgEntryPrice: 100}},
		snapshots: map[string]domain.MarketSnapshot{"AAPL": {Symbol: "AAPL", Price: 106}},
		account:   domain.AccountState{PortfolioValue: 10000, StartingPortfolioValue: 10000},
	}
	mon := New(src, Config{}, zerolog.Nop())
	triggers := mon.Scan(time.Now())

	require.Len(t, triggers, 1)
	assert.Equal(t, domain.LiquidationProfitTarget, triggers[0].Kind)
	assert.InDelta(t, 6.0, triggers[0].ProfitPct, 1e-9)
}

func TestScan_StopLossTrigger_OnPortfolioDrawdown(t *testing.T) {
	src := &fakeSource{
		positions: []domain.Position{{Symbol: "AAPL", Qty: 10, AvgEntryPrice: 100}},
		snapshots: map[string]domain.MarketSnapshot{"AAPL": {Symbol: "AAPL", Price: 100}},
		account:   domain.AccountState{PortfolioValue: 9000, StartingPortfolioValue: 10000}, // 10% drawdown
	}
	mon := New(src, Config{StopLossPct: 5}, zerolog.Nop())
	triggers := mon.Scan(time.Now())

	require.Len(t, triggers, 1)
	assert.Equal(t, domain.LiquidationStopLoss, triggers[0].Kind)
}

func TestScan_StopLossTrigger_OnPerPositionLoss(t *testing.T) {
	src := &fakeSource{
		positions: []domain.Position{{Symbol: "AAPL", Qty: 10, AvgEntryPrice: 100}},
		snapshots: map[string]domain.MarketSnapshot{"AAPL": {Symbol: "AAPL", Price: 94}}, // 6% loss
		account:   domain.AccountState{PortfolioValue: 10000, StartingPortfolioValue: 10000},
	}
	mon := New(src, Config{StopLossPct: 5}, zerolog.Nop())
	triggers := mon.Scan(time.Now())

	require.Len(t, triggers, 1)
	assert.Equal(t, domain.LiquidationStopLoss, triggers[0].Kind)
}

func TestScan_ShortPosition_LossOnPriceRise(t *testing.T) {
	src := &fakeSource{
		positions: []domain.Position{{Symbol: "TSLA", Qty: -10, AvgEntryPrice: 100}},
		snapshots: map[string]domain.MarketSnapshot{"TSLA": {Symbol: "TSLA", Price: 110}}, // 10% adverse move
		account:   domain.AccountState{PortfolioValue: 10000, StartingPortfolioValue: 10000},
	}
	mon := New(src, Config{StopLossPct: 5}, zerolog.Nop())
	triggers := mon.Scan(time.Now())

	require.Len(t, triggers, 1)
	assert.Equal(t, domain.LiquidationStopLoss, triggers[0].Kind)
}

func TestScan_NoTrigger_WhenWithinThresholds(t *testing.T) {
	src := &fakeSource{
		positions: []domain.Position{{Symbol: "AAPL", Qty: 10, AvgEntryPrice: 100}},
		snapshots: map[string]domain.MarketSnapshot{"AAPL": {Symbol: "AAPL", Price: 101}},
		account:   domain.AccountState{PortfolioValue: 10000, StartingPortfolioValue: 10000},
	}
	mon := New(src, Config{}, zerolog.Nop())
	assert.Empty(t, mon.Scan(time.Now()))
}

func TestScan_DebounceSuppressesDuplicateWithinWindow(t *testing.T) {
	src := &fakeSource{
		positions: []domain.Position{{Symbol: "AAPL", Qty: 10, AvgEntryPrice: 100}},
		snapshots: map[string]domain.MarketSnapshot{"AAPL": {Symbol: "AAPL", Price: 94}},
		account:   domain.AccountState{PortfolioValue: 10000, StartingPortfolioValue: 10000},
	}
	mon := New(src, Config{StopLossPct: 5, DebounceWindow: 2 * time.Second}, zerolog.Nop())

	start := time.Now()
	first := mon.Scan(start)
	second := mon.Scan(start.Add(500 * time.Millisecond))
	third := mon.Scan(start.Add(3 * time.Second))

	assert.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Len(t, third, 1)
}

func TestScan_SameSymbolDoesNotDoubleFireStopLossInOneCycle(t *testing.T) {
	// Portfolio drawdown AND per-position loss both qualify as StopLoss for
	// the same symbol in the same cycle; only one trigger should be emitted.
	src := &fakeSource{
		positions: []domain.Position{{Symbol: "AAPL", Qty: 10, AvgEntryPrice: 100}},
		snapshots: map[string]domain.MarketSnapshot{"AAPL": {Symbol: "AAPL", Price: 94}},
		account:   domain.AccountState{PortfolioValue: 9000, StartingPortfolioValue: 10000},
	}
	mon := New(src, Config{StopLossPct: 5}, zerolog.Nop())
	triggers := mon.Scan(time.Now())
	assert.Len(t, triggers, 1)
}

func TestScan_ZeroQtyPosition_Skipped(t *testing.T) {
	src := &fakeSource{
		positions: []domain.Position{{Symbol: "AAPL", Qty: 0, AvgEntryPrice: 100}},
		snapshots: map[string]domain.MarketSnapshot{"AAPL": {Symbol: "AAPL", Price: 50}},
		account:   domain.AccountState{PortfolioValue: 10000, StartingPortfolioValue: 10000},
	}
	mon := New(src, Config{}, zerolog.Nop())
	assert.Empty(t, mon.Scan(time.Now()))
}
