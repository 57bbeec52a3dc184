// Package capability negotiates what the connected Alpaca account is
// actually allowed to do: its tier, trading permissions, and data feed
// entitlement. Every downstream component (stream transport, order
// gateway) asks this package before acting rather than assuming full
// access — the account drives behaviour, not the config file.
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/alpaca"
	"github.com/kinggekko/core/internal/domain"
	"github.com/kinggekko/core/internal/errs"
)

// Negotiator determines AccountCapability from a live Alpaca account.
type Negotiator struct {
	client *alpaca.Client
	log    zerolog.Logger
}

// New creates a capability negotiator over an already-constructed broker
// client.
func New(client *alpaca.Client, log zerolog.Logger) *Negotiator {
	return &Negotiator{client: client, log: log.With().Str("component", "capability").Logger()}
}

// Negotiate fetches the account and derives its capability profile. A
// blocked or trading-blocked account surfaces as ErrAccountBlocked; a
// rejected credential surfaces as ErrAuthFailure; any other transport
// failure surfaces as ErrUnreachable, per the error taxonomy.
func (n *Negotiator) Negotiate(ctx context.Context) (domain.AccountCapability, error) {
	account, err := n.client.GetAccount(ctx)
	if err != nil {
		var se *alpaca.StatusError
		if errors.As(err, &se) && (se.Status == 401 || se.Status == 403) {
			return domain.AccountCapability{}, fmt.Errorf("%w: %v", errs.ErrAuthFailure, err)
		}
		return domain.AccountCapability{}, fmt.Errorf("%w: %v", errs.ErrUnreachable, err)
	}

	if account.AccountBlocked || account.TradingBlocked {
		return domain.AccountCapability{}, fmt.Errorf("%w: account_blocked=%v trading_blocked=%v",
			errs.ErrAccountBlocked, account.AccountBlocked, account.TradingBlocked)
	}

	tier := determineTier(account)
	capability := domain.AccountCapability{
		Tier:            tier,
		CanTradeStocks:  true,
		CanTradeCrypto:  account.CryptoStatus != nil,
		CanTradeOptions: account.OptionsApprovedLvl != nil,
		CanShort:        account.ShortingEnabled,
		CanMargin:       account.Multiplier > 1,
		CanAfterHours:   tier != domain.TierBasic,
		CanPreMarket:    tier != domain.TierBasic,
		Feed:            dataFeedForTier(tier),
		NegotiatedAt:    time.Now(),
	}

	switch tier {
	case domain.TierPremium, domain.TierEnterprise:
		capability.CanTradeForex = true
	}
	if tier == domain.TierEnterprise {
		capability.CanTradeFutures = true
	}
	if tier != domain.TierBasic {
		capability.CanMargin = true
	}

	n.log.Info().
		Str("tier", string(capability.Tier)).
		Str("feed", string(capability.Feed)).
		Bool("can_short", capability.CanShort).
		Bool("can_margin", capability.CanMargin).
		Msg("account capability negotiated")

	return capability, nil
}

// determineTier classifies the account tier the same way the reference
// account verifier does: prefer the explicit account_type field, fall
// back to inference from options/crypto entitlement, default to Basic.
func determineTier(account *alpaca.Account) domain.AccountTier {
	if account.AccountType != nil {
		switch *account.AccountType {
		case "basic":
			return domain.TierBasic
		case "full":
			return domain.TierFull
		case "premium":
			return domain.TierPremium
		case "enterprise":
			return domain.TierEnterprise
		}
	}

	if account.OptionsApprovedLvl != nil && account.OptionsTradingLvl != nil {
		return domain.TierFull
	}
	return domain.TierBasic
}

func dataFeedForTier(tier domain.AccountTier) domain.Feed {
	if tier == domain.TierBasic {
		return domain.FeedIEX
	}
	return domain.FeedSIP
}
