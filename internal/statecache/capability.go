package statecache

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kinggekko/core/internal/domain"
)

// SaveCapability upserts the single negotiated capability row. Only one
// row ever exists (id=1): a fresh negotiation replaces the prior one
// outright, it is never merged.
func (db *DB) SaveCapability(cap domain.AccountCapability) error {
	_, err := db.conn.Exec(`
		INSERT INTO capability_snapshot (
			id, tier, can_trade_stocks, can_trade_crypto, can_trade_options,
			can_trade_forex, can_trade_futures, can_short, can_margin,
			can_after_hours, can_pre_market, feed, data_flags, negotiated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tier=excluded.tier,
			can_trade_stocks=excluded.can_trade_stocks,
			can_trade_crypto=excluded.can_trade_crypto,
			can_trade_options=excluded.can_trade_options,
			can_trade_forex=excluded.can_trade_forex,
			can_trade_futures=excluded.can_trade_futures,
			can_short=excluded.can_short,
			can_margin=excluded.can_margin,
			can_after_hours=excluded.can_after_hours,
			can_pre_market=excluded.can_pre_market,
			feed=excluded.feed,
			data_flags=excluded.data_flags,
			negotiated_at=excluded.negotiated_at
	`,
		string(cap.Tier), cap.CanTradeStocks, cap.CanTradeCrypto, cap.CanTradeOptions,
		cap.CanTradeForex, cap.CanTradeFutures, cap.CanShort, cap.CanMargin,
		cap.CanAfterHours, cap.CanPreMarket, string(cap.Feed),
		strings.Join(cap.DataFlags, ","), cap.NegotiatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("statecache: save capability: %w", err)
	}
	return nil
}

// LoadCapability returns the cached capability snapshot, if any. ok is
// false when no negotiation has ever been cached.
func (db *DB) LoadCapability() (domain.AccountCapability, bool, error) {
	row := db.conn.QueryRow(`
		SELECT tier, can_trade_stocks, can_trade_crypto, can_trade_options,
			can_trade_forex, can_trade_futures, can_short, can_margin,
			can_after_hours, can_pre_market, feed, data_flags, negotiated_at
		FROM capability_snapshot WHERE id = 1
	`)

	var (
		tier, feed, dataFlags, negotiatedAt string
		cap                                 domain.AccountCapability
	)
	err := row.Scan(
		&tier, &cap.CanTradeStocks, &cap.CanTradeCrypto, &cap.CanTradeOptions,
		&cap.CanTradeForex, &cap.CanTradeFutures, &cap.CanShort, &cap.CanMargin,
		&cap.CanAfterHours, &cap.CanPreMarket, &feed, &dataFlags, &negotiatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.AccountCapability{}, false, nil
	}
	if err != nil {
		return domain.AccountCapability{}, false, fmt.Errorf("statecache: load capability: %w", err)
	}

	cap.Tier = domain.AccountTier(tier)
	cap.Feed = domain.Feed(feed)
	if dataFlags != "" {
		cap.DataFlags = strings.Split(dataFlags, ",")
	}
	cap.NegotiatedAt, _ = time.Parse(time.RFC3339Nano, negotiatedAt)

	return cap, true, nil
}
