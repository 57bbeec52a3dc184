// Package store holds the Snapshot Store (C4): the last-known
// MarketSnapshot, AccountState, and Position set for every tracked symbol.
// It is the only writer of this state; every other component reads a
// point-in-time copy and is notified of changes via the event bus.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/events"
)

// Store is safe for concurrent use. Per-symbol state is guarded by a
// per-symbol mutex so that a flush of one symbol never blocks an update to
// another.
type Store struct {
	mu       sync.RWMutex
	symbols  map[string]*symbolEntry
	account  domain.AccountState
	accountMu sync.RWMutex

	universeMu   sync.RWMutex
	marketStatus domain.MarketStatus
	assetUniverse []domain.AssetInfo
	capability    domain.AccountCapability
	riskParams    domain.RiskParameters

	indicatorsMu sync.RWMutex
	indicators   map[string]map[string]float64

	dirty atomic.Bool

	bus         *events.Bus
	log         zerolog.Logger
	snapshotDir string
}

type symbolEntry struct {
	mu       sync.RWMutex
	snapshot domain.MarketSnapshot
	position *domain.Position
	bars     []domain.OHLCVBar
}

const maxBarsPerSymbol = 500

// New creates an empty Snapshot Store. snapshotDir, when non-empty, is
// where consolidated JSON snapshots are flushed on demand (admin surface
// export, graceful shutdown).
func New(snapshotDir string, bus *events.Bus, log zerolog.Logger) *Store {
	return &Store{
		symbols:     make(map[string]*symbolEntry),
		indicators:  make(map[string]map[string]float64),
		bus:         bus,
		log:         log.With().Str("component", "store").Logger(),
		snapshotDir: snapshotDir,
	}
}

func (s *Store) entry(symbol string) *symbolEntry {
	s.mu.RLock()
	e, ok := s.symbols[symbol]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.symbols[symbol]; ok {
		return e
	}
	e = &symbolEntry{}
	s.symbols[symbol] = e
	return e
}

// UpdateSnapshot applies a new MarketSnapshot for a symbol, rejecting it if
// it violates the Low<=Price<=High invariant, and broadcasts the change.
func (s *Store) UpdateSnapshot(snap domain.MarketSnapshot) error {
	if !snap.Valid() {
		return fmt.Errorf("invalid snapshot for %s: low=%v price=%v high=%v", snap.Symbol, snap.Low, snap.Price, snap.High)
	}

	e := s.entry(snap.Symbol)
	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()
	s.dirty.Store(true)

	if s.bus != nil {
		s.bus.Emit(events.SnapshotUpdated, "store", map[string]interface{}{
			"symbol": snap.Symbol,
			"price":  snap.Price,
			"source": string(snap.Source),
		})
	}
	return nil
}

// AppendBar records a completed OHLCV bar for a symbol, retaining only the
// most recent maxBarsPerSymbol entries (the indicator engine never needs
// more than that for any of its lookback windows).
func (s *Store) AppendBar(symbol string, bar domain.OHLCVBar) {
	e := s.entry(symbol)
	e.mu.Lock()
	e.bars = append(e.bars, bar)
	if len(e.bars) > maxBarsPerSymbol {
		e.bars = e.bars[len(e.bars)-maxBarsPerSymbol:]
	}
	e.mu.Unlock()
	s.dirty.Store(true)
}

// Bars returns a copy of the retained bar history for a symbol, oldest
// first.
func (s *Store) Bars(symbol string) []domain.OHLCVBar {
	e := s.entry(symbol)
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.OHLCVBar, len(e.bars))
	copy(out, e.bars)
	return out
}

// Snapshot returns the last-known MarketSnapshot for a symbol and whether
// one has ever been recorded.
func (s *Store) Snapshot(symbol string) (domain.MarketSnapshot, bool) {
	s.mu.RLock()
	e, ok := s.symbols[symbol]
	s.mu.RUnlock()
	if !ok {
		return domain.MarketSnapshot{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snapshot.Symbol == "" {
		return domain.MarketSnapshot{}, false
	}
	return e.snapshot, true
}

// AllSnapshots returns a consistent point-in-time copy of every tracked
// symbol's snapshot.
func (s *Store) AllSnapshots() map[string]domain.MarketSnapshot {
	s.mu.RLock()
	symbols := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		symbols = append(symbols, sym)
	}
	s.mu.RUnlock()

	out := make(map[string]domain.MarketSnapshot, len(symbols))
	for _, sym := range symbols {
		if snap, ok := s.Snapshot(sym); ok {
			out[sym] = snap
		}
	}
	return out
}

// SetPosition replaces the recorded position for a symbol. Passing a
// position whose Qty is zero removes it, honouring the domain invariant
// that a Position is present iff Qty != 0.
func (s *Store) SetPosition(pos domain.Position) {
	e := s.entry(pos.Symbol)
	e.mu.Lock()
	if pos.Qty == 0 {
		e.position = nil
	} else {
		p := pos
		e.position = &p
	}
	e.mu.Unlock()
	s.dirty.Store(true)

	if s.bus != nil {
		s.bus.Emit(events.PositionsReplaced, "store", map[string]interface{}{"symbol": pos.Symbol})
	}
}

// Position returns the recorded position for a symbol, if any.
func (s *Store) Position(symbol string) (domain.Position, bool) {
	e := s.entry(symbol)
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.position == nil {
		return domain.Position{}, false
	}
	return *e.position, true
}

// AllPositions returns every currently open position.
func (s *Store) AllPositions() []domain.Position {
	s.mu.RLock()
	entries := make([]*symbolEntry, 0, len(s.symbols))
	for _, e := range s.symbols {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]domain.Position, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		if e.position != nil {
			out = append(out, *e.position)
		}
		e.mu.RUnlock()
	}
	return out
}

// SetAccount replaces the recorded account state wholesale (the account
// endpoint is a single-row resource, unlike per-symbol snapshots).
func (s *Store) SetAccount(account domain.AccountState) {
	s.accountMu.Lock()
	s.account = account
	s.accountMu.Unlock()
	s.dirty.Store(true)

	if s.bus != nil {
		s.bus.Emit(events.AccountUpdated, "store", map[string]interface{}{"equity": account.Equity})
	}
}

// Account returns the last-known account state.
func (s *Store) Account() domain.AccountState {
	s.accountMu.RLock()
	defer s.accountMu.RUnlock()
	return s.account
}

// SetMarketStatus records the broker's market clock, polled periodically by
// the universe refresher.
func (s *Store) SetMarketStatus(status domain.MarketStatus) {
	s.universeMu.Lock()
	s.marketStatus = status
	s.universeMu.Unlock()
	s.dirty.Store(true)
}

// MarketStatus returns the last-known market clock.
func (s *Store) MarketStatus() domain.MarketStatus {
	s.universeMu.RLock()
	defer s.universeMu.RUnlock()
	return s.marketStatus
}

// SetAssetUniverse replaces the cached tradable asset universe.
func (s *Store) SetAssetUniverse(assets []domain.AssetInfo) {
	cp := make([]domain.AssetInfo, len(assets))
	copy(cp, assets)
	s.universeMu.Lock()
	s.assetUniverse = cp
	s.universeMu.Unlock()
	s.dirty.Store(true)
}

// AssetUniverse returns the cached tradable asset universe.
func (s *Store) AssetUniverse() []domain.AssetInfo {
	s.universeMu.RLock()
	defer s.universeMu.RUnlock()
	out := make([]domain.AssetInfo, len(s.assetUniverse))
	copy(out, s.assetUniverse)
	return out
}

// SetCapability records the negotiated account capability, which doubles as
// the consolidated export's trading_permissions section.
func (s *Store) SetCapability(capability domain.AccountCapability) {
	s.universeMu.Lock()
	s.capability = capability
	s.universeMu.Unlock()
	s.dirty.Store(true)
}

// Capability returns the last-negotiated account capability.
func (s *Store) Capability() domain.AccountCapability {
	s.universeMu.RLock()
	defer s.universeMu.RUnlock()
	return s.capability
}

// SetRiskParameters records the Liquidation Monitor's effective thresholds.
func (s *Store) SetRiskParameters(params domain.RiskParameters) {
	s.universeMu.Lock()
	s.riskParams = params
	s.universeMu.Unlock()
	s.dirty.Store(true)
}

// RiskParameters returns the last-recorded liquidation thresholds.
func (s *Store) RiskParameters() domain.RiskParameters {
	s.universeMu.RLock()
	defer s.universeMu.RUnlock()
	return s.riskParams
}

// SetIndicators records the latest named technical-indicator readings for a
// symbol (e.g. momentum, volatility, trend), as computed by the evaluation
// cycle.
func (s *Store) SetIndicators(symbol string, values map[string]float64) {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	s.indicatorsMu.Lock()
	s.indicators[symbol] = cp
	s.indicatorsMu.Unlock()
	s.dirty.Store(true)
}

// AllIndicators returns a copy of every symbol's latest indicator readings.
func (s *Store) AllIndicators() map[string]map[string]float64 {
	s.indicatorsMu.RLock()
	defer s.indicatorsMu.RUnlock()
	out := make(map[string]map[string]float64, len(s.indicators))
	for sym, vals := range s.indicators {
		cp := make(map[string]float64, len(vals))
		for k, v := range vals {
			cp[k] = v
		}
		out[sym] = cp
	}
	return out
}

// symbolMarketData is the slim per-symbol shape the consolidated export's
// market_data.symbols section uses, distinct from the fuller MarketSnapshot
// kept in memory.
type symbolMarketData struct {
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Open      float64   `json:"open"`
	Timestamp time.Time `json:"timestamp"`
}

type tradingAccountExport struct {
	AccountInfo        domain.AccountState      `json:"account_info"`
	MarketStatus       domain.MarketStatus      `json:"market_status"`
	TradingPermissions domain.AccountCapability `json:"trading_permissions"`
	RiskManagement     domain.RiskParameters    `json:"risk_management"`
}

type marketDataExport struct {
	Symbols map[string]symbolMarketData `json:"symbols"`
}

// consolidatedExport is the on-disk JSON shape written by Flush: the
// out-of-process broadcast channel watched by filesystem notification.
type consolidatedExport struct {
	Timestamp           time.Time                      `json:"timestamp"`
	DataSource          string                         `json:"data_source"`
	TradingAccount      tradingAccountExport           `json:"trading_account"`
	MarketData          marketDataExport               `json:"market_data"`
	CurrentPositions    []domain.Position              `json:"current_positions"`
	AssetUniverse       []domain.AssetInfo             `json:"asset_universe"`
	TechnicalIndicators map[string]map[string]float64  `json:"technical_indicators"`
}

// FlushIfDirty writes the consolidated export only if state has changed
// since the last flush, clearing the dirty flag first so a concurrent
// update during the write is captured by the next tick rather than lost.
func (s *Store) FlushIfDirty() error {
	if !s.dirty.CompareAndSwap(true, false) {
		return nil
	}
	return s.Flush()
}

// Flush writes a consolidated JSON export of the current store state to
// snapshotDir/snapshot.json, via a temp-file-then-rename so readers never
// observe a partially written file.
func (s *Store) Flush() error {
	if s.snapshotDir == "" {
		return nil
	}

	snapshots := s.AllSnapshots()
	symbols := make(map[string]symbolMarketData, len(snapshots))
	for sym, snap := range snapshots {
		symbols[sym] = symbolMarketData{
			Price:     snap.Price,
			Volume:    snap.Volume,
			High:      snap.High,
			Low:       snap.Low,
			Open:      snap.Open,
			Timestamp: snap.Timestamp,
		}
	}

	export := consolidatedExport{
		Timestamp:  time.Now(),
		DataSource: "alpaca",
		TradingAccount: tradingAccountExport{
			AccountInfo:        s.Account(),
			MarketStatus:       s.MarketStatus(),
			TradingPermissions: s.Capability(),
			RiskManagement:     s.RiskParameters(),
		},
		MarketData:          marketDataExport{Symbols: symbols},
		CurrentPositions:    s.AllPositions(),
		AssetUniverse:       s.AssetUniverse(),
		TechnicalIndicators: s.AllIndicators(),
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot export: %w", err)
	}

	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	target := filepath.Join(s.snapshotDir, "snapshot.json")
	tmp, err := os.CreateTemp(s.snapshotDir, "snapshot-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("rename snapshot file into place: %w", err)
	}

	s.log.Debug().Str("path", target).Int("symbols", len(symbols)).Msg("snapshot flushed")
	return nil
}
