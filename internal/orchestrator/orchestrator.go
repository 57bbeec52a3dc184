// Package orchestrator wires C1-C16 together into one running process: it
// builds every component from config, starts the broker streams and
// periodic refreshers, runs the evaluation loop that turns market data into
// trading decisions and orders, and coordinates graceful shutdown.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/advisor"
	"github.com/kinggekko/core/internal/alpaca"
	"github.com/kinggekko/core/internal/backup"
	"github.com/kinggekko/core/internal/capability"
	"github.com/kinggekko/core/internal/config"
	"github.com/kinggekko/core/internal/consensus"
	"github.com/kinggekko/core/internal/decoder"
	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/events"
	"github.com/kinggekko/core/internal/journal"
	"github.com/kinggekko/core/internal/liquidation"
	"github.com/kinggekko/core/internal/orders"
	"github.com/kinggekko/core/internal/regime"
	"github.com/kinggekko/core/internal/server"
	"github.com/kinggekko/core/internal/statecache"
	"github.com/kinggekko/core/internal/store"
	"github.com/kinggekko/core/internal/transport"
	"github.com/kinggekko/core/internal/universe"
)

const (
	evaluationInterval   = 30 * time.Second
	liquidationInterval  = 5 * time.Second
	backupInterval       = 6 * time.Hour
	backupRetentionDays  = 30
	backupMinKeep        = 5
	defaultAllocationUSD = 1000.0

	// flushInterval is the consolidated export's bounded write rate (spec
	// §4.4's default 5 Hz). The flusher only writes when the store is dirty.
	flushInterval = 200 * time.Millisecond
)

// Orchestrator owns every long-lived component and the goroutines that
// drive the main evaluation loop.
type Orchestrator struct {
	cfg *config.Config
	log zerolog.Logger

	// StreamsEnabled controls whether Run dials the market-data/trade-
	// updates WebSocket sessions ("stream" CLI mode) or relies solely on
	// the universe refresher's periodic REST polling ("rest" CLI mode).
	StreamsEnabled bool

	bus        *events.Bus
	broker     *alpaca.Client
	negotiator *capability.Negotiator
	store      *store.Store
	refresher  *universe.Refresher
	tracker    *regime.Tracker

	advisorGW  *advisor.Gateway
	registry   *consensus.Registry
	consensus  *consensus.Engine

	liquidation *liquidation.Monitor
	orderGW     *orders.Gateway
	journal     *journal.Journal
	stateDB     *statecache.DB
	exporter    *backup.Exporter
	admin       *server.Server
	models      *server.ModelOverride

	marketData    *transport.Session
	tradeUpdates  *transport.Session

	decisionsMu sync.RWMutex
	decisions   []domain.TradingDecision

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds every component from cfg but does not start anything.
func New(cfg *config.Config, log zerolog.Logger) (*Orchestrator, error) {
	warnOnModeDisagreement(cfg, log)

	bus := events.NewBus()
	broker := alpaca.New(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey, cfg.AlpacaBaseURL, log)
	negotiator := capability.New(broker, log)
	st := store.New(cfg.DataDir, bus, log)

	stateDB, err := statecache.Open(cfg.DataDir + "/state.db")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open state cache: %w", err)
	}

	jrnl, err := journal.Open(cfg.DataDir+"/journal.bin", log)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open journal: %w", err)
	}

	tracker := regime.NewTracker()

	advisorGW := advisor.New(cfg.OllamaBaseURL, 20, log)
	registry := consensus.NewRegistry()
	if cfg.OllamaModel != "" && cfg.OllamaModel != "auto" {
		registry.AutoAssignRoles([]string{cfg.OllamaModel})
	}
	consensusEngine := consensus.New(registry, advisorGW, log)

	liqMonitor := liquidation.New(st, liquidation.Config{}, log)
	effectiveRisk := liqMonitor.Config()
	st.SetRiskParameters(domain.RiskParameters{
		StopLossPct:     effectiveRisk.StopLossPct,
		ProfitTargetPct: effectiveRisk.ProfitTargetPct,
	})

	orderJournal := journal.NewOrderJournal(jrnl)
	orderGW := orders.New(broker, domain.AccountCapability{}, orderJournal, orders.Config{}, log)

	models := server.NewModelOverride()

	o := &Orchestrator{
		cfg:            cfg,
		log:            log.With().Str("component", "orchestrator").Logger(),
		StreamsEnabled: true,
		bus:         bus,
		broker:      broker,
		negotiator:  negotiator,
		store:       st,
		tracker:     tracker,
		advisorGW:   advisorGW,
		registry:    registry,
		consensus:   consensusEngine,
		liquidation: liqMonitor,
		orderGW:     orderGW,
		journal:     jrnl,
		stateDB:     stateDB,
		models:      models,
		stopCh:      make(chan struct{}),
	}

	o.refresher = universe.New(broker, negotiator, st, o.onCapabilityChanged, log)

	bus.Subscribe(events.ErrorOccurred, o.onFatalSessionError)

	o.admin = server.New(server.Config{
		Port: cfg.APIPort,
		Log:  log,
		Deps: server.Dependencies{
			Snapshot:        o.snapshotView,
			JournalStats:    jrnl.Stats,
			ExportJournal:   o.exportJournal,
			LatestDecisions: o.latestDecisions,
			Models:          models,
		},
		DevMode: cfg.Pretty,
	})

	return o, nil
}

// SetExporter wires the S3/R2 journal exporter. Optional: if the bucket
// is not configured, "export journal" requests fail with a clear error
// instead of the process failing to start.
func (o *Orchestrator) SetExporter(exp *backup.Exporter) {
	o.exporter = exp
}

// Run negotiates capability, starts every background component, and blocks
// running the evaluation loop until ctx is cancelled or Shutdown is called.
func (o *Orchestrator) Run(ctx context.Context) error {
	capabilitySnapshot, err := o.resolveCapability(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: initial capability negotiation: %w", err)
	}
	o.onCapabilityChanged(capabilitySnapshot)

	if err := o.refresher.Start(ctx, ""); err != nil {
		return fmt.Errorf("orchestrator: start universe refresher: %w", err)
	}

	if o.StreamsEnabled {
		o.startStreams(capabilitySnapshot)
	} else {
		o.log.Info().Msg("streams disabled, relying on REST polling only")
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.admin.Start(); err != nil {
			o.log.Error().Err(err).Msg("admin surface stopped")
		}
	}()

	o.wg.Add(1)
	go o.evaluationLoop(ctx)

	o.wg.Add(1)
	go o.liquidationLoop(ctx)

	o.wg.Add(1)
	go o.flusherLoop(ctx)

	if o.exporter != nil {
		o.wg.Add(1)
		go o.backupLoop(ctx)
	}

	select {
	case <-ctx.Done():
	case <-o.stopCh:
	}
	return nil
}

// resolveCapability loads and logs the cached capability and subscription
// state (C16), then always negotiates against the live account; the cache
// never replaces the REST round trip.
func (o *Orchestrator) resolveCapability(ctx context.Context) (domain.AccountCapability, error) {
	if cached, ok, err := o.stateDB.LoadCapability(); err != nil {
		o.log.Warn().Err(err).Msg("failed to load cached capability, negotiating fresh")
	} else if ok {
		o.log.Info().Str("tier", string(cached.Tier)).Msg("loaded cached capability, will re-negotiate")
	}

	if cached, err := o.stateDB.LoadSubscriptions(); err != nil {
		o.log.Warn().Err(err).Msg("failed to load cached subscription state")
	} else {
		for _, sub := range cached {
			o.log.Info().Str("stream", string(sub.Kind)).Str("status", string(sub.Status)).
				Msg("cached subscription state from previous run")
		}
	}

	capability, err := o.negotiator.Negotiate(ctx)
	if err != nil {
		return domain.AccountCapability{}, err
	}
	if err := o.stateDB.SaveCapability(capability); err != nil {
		o.log.Warn().Err(err).Msg("failed to persist negotiated capability")
	}
	return capability, nil
}

// NegotiateAndPrime resolves account capability and pushes it into the
// Order Gateway, without starting streams, refreshers, or the admin
// surface. Used by the one-shot CLI modes, which need a live capability
// profile but run no background loop.
func (o *Orchestrator) NegotiateAndPrime(ctx context.Context) error {
	capabilitySnapshot, err := o.resolveCapability(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: capability negotiation: %w", err)
	}
	o.onCapabilityChanged(capabilitySnapshot)
	o.refresher.RefreshOnce(ctx)
	return nil
}

// ScanJournal returns every journal record matching filter (nil for
// everything) — the "view journal" CLI mode.
func (o *Orchestrator) ScanJournal(filter func(domain.JournalTag) bool) ([]domain.JournalRecord, error) {
	return o.journal.Scan(filter)
}

// JournalStats returns per-tag journal statistics — the "statistics" CLI
// mode.
func (o *Orchestrator) JournalStats() (map[domain.JournalTag]domain.JournalStats, error) {
	return o.journal.Stats()
}

// warnOnModeDisagreement logs when the legacy ALPACA_PAPER_TRADING flag
// disagrees with OPERATION_MODE, which config.Load resolves silently
// since it has no logger at load time.
func warnOnModeDisagreement(cfg *config.Config, log zerolog.Logger) {
	paperMode := cfg.OperationMode == config.ModePaper
	if paperMode != cfg.AlpacaPaperTrading {
		log.Warn().
			Str("operation_mode", string(cfg.OperationMode)).
			Bool("alpaca_paper_trading", cfg.AlpacaPaperTrading).
			Msg("OPERATION_MODE and ALPACA_PAPER_TRADING disagree; OPERATION_MODE wins")
	}
}

func (o *Orchestrator) onCapabilityChanged(capability domain.AccountCapability) {
	o.orderGW.UpdateCapability(capability)
	o.store.SetCapability(capability)
	if err := o.stateDB.SaveCapability(capability); err != nil {
		o.log.Warn().Err(err).Msg("failed to persist capability snapshot")
	}
}

// onFatalSessionError reacts to a transport.Session giving up after
// max_reconnect_attempts: the failure is logged at error level so it is
// escalated to whatever observes process logs (spec §4.2/§7). A single
// stream's fatal failure does not by itself stop the other stream or the
// evaluation loop, which can keep operating on REST-polled data.
func (o *Orchestrator) onFatalSessionError(ev events.Event) {
	fatal, _ := ev.Data["fatal"].(bool)
	if !fatal {
		return
	}
	stream, _ := ev.Data["stream"].(string)
	errMsg, _ := ev.Data["error"].(string)
	o.log.Error().Str("stream", stream).Str("error", errMsg).
		Msg("stream session terminated permanently, will not reconnect")
}

func (o *Orchestrator) startStreams(capability domain.AccountCapability) {
	marketDataURL := fmt.Sprintf("wss://stream.data.alpaca.markets/v2/%s", capability.Feed)
	o.trackSubscription(domain.StreamMarketData, marketDataURL, nil)
	o.marketData = transport.NewSession(
		domain.StreamMarketData,
		marketDataURL,
		nil,
		transport.MarketDataAuth(o.cfg.AlpacaAPIKey, o.cfg.AlpacaSecretKey),
		transport.MarketDataSubscribe(),
		o.handleMarketDataFrame,
		o.bus,
		o.log,
	)
	if err := o.marketData.Start(); err != nil {
		o.log.Warn().Err(err).Msg("market data session failed initial connect, reconnecting in background")
	}

	tradeUpdatesURL := "wss://paper-api.alpaca.markets/stream"
	o.trackSubscription(domain.StreamTradeUpdates, tradeUpdatesURL, nil)
	o.tradeUpdates = transport.NewSession(
		domain.StreamTradeUpdates,
		tradeUpdatesURL,
		nil,
		transport.TradeUpdatesAuth(o.cfg.AlpacaAPIKey, o.cfg.AlpacaSecretKey),
		transport.TradeUpdatesListen(),
		o.handleTradeUpdateFrame,
		o.bus,
		o.log,
	)
	if err := o.tradeUpdates.Start(); err != nil {
		o.log.Warn().Err(err).Msg("trade updates session failed initial connect, reconnecting in background")
	}
}

// trackSubscription persists a stream's connection state (C16) to the state
// cache every time transport.Session emits a SessionStatusChanged event for
// it, so a warm restart can report what was subscribed before shutdown.
func (o *Orchestrator) trackSubscription(kind domain.StreamKind, endpointURL string, symbols []string) {
	o.bus.Subscribe(events.SessionStatusChanged, func(ev events.Event) {
		stream, _ := ev.Data["stream"].(string)
		if stream != string(kind) {
			return
		}
		status, _ := ev.Data["status"].(string)
		sub := domain.StreamSubscription{
			Kind:        kind,
			Symbols:     symbols,
			EndpointURL: endpointURL,
			Status:      domain.SessionStatus(status),
		}
		if err := o.stateDB.SaveSubscription(sub); err != nil {
			o.log.Warn().Err(err).Str("stream", string(kind)).Msg("failed to persist subscription state")
		}
	})
}

// flusherLoop is the consolidated export's background flusher (spec §4.4):
// a dedicated goroutine, ticking at flushInterval, that writes the
// snapshot file only when the store has been marked dirty since the last
// write, coalescing bursts of updates into one bounded-rate write.
func (o *Orchestrator) flusherLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			if err := o.store.FlushIfDirty(); err != nil {
				o.log.Warn().Err(err).Msg("failed to flush snapshot store")
			}
		}
	}
}

func (o *Orchestrator) handleMarketDataFrame(raw []byte) {
	decoded, skipped, err := decoder.DecodeFrame(raw)
	if err != nil {
		o.log.Warn().Err(err).Msg("failed to decode market data frame")
		return
	}
	if skipped > 0 {
		o.log.Warn().Int("skipped", skipped).Msg("market data frame had malformed entries, skipped")
	}
	for _, d := range decoded {
		switch {
		case d.Quote != nil:
			if snap, err := d.Quote.ToSnapshot(); err == nil {
				_ = o.store.UpdateSnapshot(snap)
			}
		case d.Trade != nil:
			if snap, err := d.Trade.ToSnapshot(); err == nil {
				_ = o.store.UpdateSnapshot(snap)
			}
		case d.Bar != nil:
			if snap, bar, err := d.Bar.ToSnapshot(); err == nil {
				_ = o.store.UpdateSnapshot(snap)
				o.store.AppendBar(snap.Symbol, bar)
			}
		}
	}
}

func (o *Orchestrator) handleTradeUpdateFrame(raw []byte) {
	decoded, skipped, err := decoder.DecodeFrame(raw)
	if err != nil {
		o.log.Warn().Err(err).Msg("failed to decode trade update frame")
		return
	}
	if skipped > 0 {
		o.log.Warn().Int("skipped", skipped).Msg("trade update frame had malformed entries, skipped")
	}
	for _, d := range decoded {
		if d.TradeUpdate != nil {
			o.log.Info().
				Str("symbol", d.TradeUpdate.Symbol).
				Str("event", d.TradeUpdate.Event).
				Str("status", d.TradeUpdate.Status).
				Msg("trade update received")
		}
	}
}

// Shutdown stops every background component and closes owned resources.
// Safe to call multiple times.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stopOnce.Do(func() { close(o.stopCh) })

	if o.marketData != nil {
		o.marketData.Stop()
	}
	if o.tradeUpdates != nil {
		o.tradeUpdates.Stop()
	}
	o.refresher.Stop()

	if err := o.admin.Shutdown(ctx); err != nil {
		o.log.Warn().Err(err).Msg("admin surface shutdown error")
	}

	o.wg.Wait()

	if err := o.store.Flush(); err != nil {
		o.log.Warn().Err(err).Msg("failed to flush snapshot store")
	}
	if err := o.journal.Close(); err != nil {
		o.log.Warn().Err(err).Msg("failed to close journal")
	}
	if err := o.stateDB.Close(); err != nil {
		o.log.Warn().Err(err).Msg("failed to close state cache")
	}
	return nil
}

func (o *Orchestrator) snapshotView() server.SnapshotView {
	return server.SnapshotView{
		Account:   o.store.Account(),
		Snapshots: o.store.AllSnapshots(),
		Positions: o.store.AllPositions(),
	}
}

func (o *Orchestrator) exportJournal(ctx context.Context) (string, error) {
	if o.exporter == nil {
		return "", fmt.Errorf("orchestrator: no backup exporter configured")
	}
	return o.exporter.Export(ctx, o.cfg.DataDir+"/journal.bin")
}

func (o *Orchestrator) latestDecisions() []domain.TradingDecision {
	o.decisionsMu.RLock()
	defer o.decisionsMu.RUnlock()
	out := make([]domain.TradingDecision, len(o.decisions))
	copy(out, o.decisions)
	return out
}

func (o *Orchestrator) setLatestDecisions(decisions []domain.TradingDecision) {
	o.decisionsMu.Lock()
	defer o.decisionsMu.Unlock()
	o.decisions = decisions
}

func (o *Orchestrator) backupLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(backupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			if _, err := o.exporter.Export(ctx, o.cfg.DataDir+"/journal.bin"); err != nil {
				o.log.Error().Err(err).Msg("scheduled journal export failed")
				continue
			}
			if err := o.exporter.Rotate(ctx, backupRetentionDays, backupMinKeep); err != nil {
				o.log.Error().Err(err).Msg("journal export rotation failed")
			}
		}
	}
}
