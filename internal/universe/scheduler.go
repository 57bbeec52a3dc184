// Package universe periodically refreshes the tradable asset universe and
// open positions from the broker's REST API (spec §4.6), feeding the
// results into the Snapshot Store. A 401/403 response triggers capability
// re-negotiation; a 5xx response is counted and logged, and the refresh
// runs again on the next scheduled tick rather than treating the whole
// process as failed. The tick interval does not grow after a 5xx.
package universe

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/alpaca"
	"github.com/kinggekko/core/internal/capability"
	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/store"
)

// Refresher periodically pulls the broker's asset/position/account state
// into the Snapshot Store on a cron schedule.
type Refresher struct {
	client      *alpaca.Client
	negotiator  *capability.Negotiator
	store       *store.Store
	cron        *cron.Cron
	log         zerolog.Logger
	onCapability func(domain.AccountCapability)

	consecutive5xx int
}

// New creates a universe refresher.
func New(client *alpaca.Client, negotiator *capability.Negotiator, st *store.Store, onCapability func(domain.AccountCapability), log zerolog.Logger) *Refresher {
	return &Refresher{
		client:      client,
		negotiator:  negotiator,
		store:       st,
		cron:        cron.New(),
		log:         log.With().Str("component", "universe").Logger(),
		onCapability: onCapability,
	}
}

// Start schedules the periodic refresh (default every minute during market
// hours checks are the orchestrator's concern, not this package's) and
// runs one refresh immediately.
func (r *Refresher) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = "@every 1m"
	}
	_, err := r.cron.AddFunc(schedule, func() { r.refresh(ctx) })
	if err != nil {
		return err
	}
	r.cron.Start()
	r.refresh(ctx)
	return nil
}

// RefreshOnce runs a single refresh (account, positions, market clock, asset
// universe) without starting the cron scheduler. Used by one-shot CLI modes that need a primed store but
// run no background loop.
func (r *Refresher) RefreshOnce(ctx context.Context) {
	r.refresh(ctx)
}

// Stop halts the scheduler, waiting for any in-flight refresh to finish.
func (r *Refresher) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.refreshAccount(ctx); err != nil {
		r.handleError(ctx, "account", err)
		return
	}
	if err := r.refreshPositions(ctx); err != nil {
		r.handleError(ctx, "positions", err)
		return
	}
	if err := r.refreshMarketStatus(ctx); err != nil {
		r.handleError(ctx, "market_status", err)
		return
	}
	if err := r.refreshAssetUniverse(ctx); err != nil {
		r.handleError(ctx, "asset_universe", err)
		return
	}
	r.consecutive5xx = 0
}

func (r *Refresher) refreshAccount(ctx context.Context) error {
	account, err := r.client.GetAccount(ctx)
	if err != nil {
		return err
	}
	r.store.SetAccount(domain.AccountState{
		Cash:                   account.Cash,
		Equity:                 account.Equity,
		BuyingPower:            account.BuyingPower,
		PortfolioValue:         account.PortfolioValue,
		StartingPortfolioValue: account.StartingEquity,
		MarginMultiplier:       account.Multiplier,
		ShortingEnabled:        account.ShortingEnabled,
		PatternDayTrader:       account.PatternDayTrader,
		DaytradeCount:          account.DaytradeCount,
	})
	return nil
}

func (r *Refresher) refreshPositions(ctx context.Context) error {
	positions, err := r.client.ListPositions(ctx)
	if err != nil {
		return err
	}
	for _, p := range positions {
		r.store.SetPosition(domain.Position{
			Symbol:        p.Symbol,
			Qty:           parseFloatOrZero(p.Qty),
			AvgEntryPrice: parseFloatOrZero(p.AvgEntryPrice),
			MarketValue:   parseFloatOrZero(p.MarketValue),
			UnrealizedPL:  parseFloatOrZero(p.UnrealizedPL),
		})
	}
	return nil
}

func (r *Refresher) refreshMarketStatus(ctx context.Context) error {
	clock, err := r.client.GetClock(ctx)
	if err != nil {
		return err
	}
	r.store.SetMarketStatus(domain.MarketStatus{
		IsOpen:    clock.IsOpen,
		NextOpen:  parseAlpacaTimeOrZero(clock.NextOpen),
		NextClose: parseAlpacaTimeOrZero(clock.NextClose),
	})
	return nil
}

func (r *Refresher) refreshAssetUniverse(ctx context.Context) error {
	assets, err := r.client.ListAssets(ctx, "active")
	if err != nil {
		return err
	}
	out := make([]domain.AssetInfo, 0, len(assets))
	for _, a := range assets {
		out = append(out, domain.AssetInfo{
			Symbol:       a.Symbol,
			Exchange:     a.Exchange,
			Class:        a.Class,
			Status:       a.Status,
			Tradable:     a.Tradable,
			Marginable:   a.Marginable,
			Shortable:    a.Shortable,
			Fractionable: a.Fractionable,
		})
	}
	r.store.SetAssetUniverse(out)
	return nil
}

func parseAlpacaTimeOrZero(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r *Refresher) handleError(ctx context.Context, stage string, err error) {
	var se *alpaca.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == 401 || se.Status == 403:
			r.log.Warn().Str("stage", stage).Msg("capability rejected, re-negotiating")
			cap, negErr := r.negotiator.Negotiate(ctx)
			if negErr != nil {
				r.log.Error().Err(negErr).Msg("re-negotiation failed")
				return
			}
			if r.onCapability != nil {
				r.onCapability(cap)
			}
			return
		case se.Status >= 500:
			r.consecutive5xx++
			r.log.Warn().Str("stage", stage).Int("consecutive_5xx", r.consecutive5xx).Msg("broker server error, will retry next tick")
			return
		}
	}
	r.log.Error().Err(err).Str("stage", stage).Msg("universe refresh failed")
}

func parseFloatOrZero(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
