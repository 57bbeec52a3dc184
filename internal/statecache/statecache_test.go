package statecache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinggekko/core/internal/domain"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadCapability_EmptyWhenNeverSaved(t *testing.T) {
	db := openTemp(t)
	_, ok, err := db.LoadCapability()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveCapability_RoundTrips(t *testing.T) {
	db := openTemp(t)
	now := time.Now().Round(time.Millisecond)
	cap := domain.AccountCapability{
		Tier:            domain.TierFull,
		CanTradeStocks:  true,
		CanTradeOptions: true,
		CanShort:        true,
		Feed:            domain.FeedSIP,
		DataFlags:       []string{"level2", "greeks"},
		NegotiatedAt:    now,
	}
	require.NoError(t, db.SaveCapability(cap))

	loaded, ok, err := db.LoadCapability()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.TierFull, loaded.Tier)
	assert.True(t, loaded.CanTradeStocks)
	assert.True(t, loaded.CanTradeOptions)
	assert.True(t, loaded.CanShort)
	assert.False(t, loaded.CanTradeCrypto)
	assert.Equal(t, domain.FeedSIP, loaded.Feed)
	assert.Equal(t, []string{"level2", "greeks"}, loaded.DataFlags)
	assert.WithinDuration(t, now, loaded.NegotiatedAt, time.Millisecond)
}

func TestSaveCapability_OverwritesPriorSnapshot(t *testing.T) {
	db := openTemp(t)
	require.NoError(t, db.SaveCapability(domain.AccountCapability{Tier: domain.TierBasic}))
	require.NoError(t, db.SaveCapability(domain.AccountCapability{Tier: domain.TierPremium, CanShort: true}))

	loaded, ok, err := db.LoadCapability()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.TierPremium, loaded.Tier)
	assert.True(t, loaded.CanShort)
}

func TestSaveSubscription_RoundTrips(t *testing.T) {
	db := openTemp(t)
	sub := domain.StreamSubscription{
		Kind:        domain.StreamMarketData,
		Symbols:     []string{"AAPL", "MSFT"},
		EndpointURL: "wss://example/v2/iex",
		Status:      domain.StatusSubscribed,
	}
	require.NoError(t, db.SaveSubscription(sub))

	subs, err := db.LoadSubscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, domain.StreamMarketData, subs[0].Kind)
	assert.Equal(t, []string{"AAPL", "MSFT"}, subs[0].Symbols)
	assert.Equal(t, domain.StatusSubscribed, subs[0].Status)
}

func TestSaveSubscription_UpsertsByKindAndEndpoint(t *testing.T) {
	db := openTemp(t)
	base := domain.StreamSubscription{
		Kind:        domain.StreamTradeUpdates,
		EndpointURL: "wss://example/stream",
		Status:      domain.StatusConnecting,
	}
	require.NoError(t, db.SaveSubscription(base))

	updated := base
	updated.Status = domain.StatusSubscribed
	updated.Symbols = []string{"AAPL"}
	require.NoError(t, db.SaveSubscription(updated))

	subs, err := db.LoadSubscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 1, "same kind+endpoint must update in place, not duplicate")
	assert.Equal(t, domain.StatusSubscribed, subs[0].Status)
}
