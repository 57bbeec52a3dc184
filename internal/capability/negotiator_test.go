package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kinggekko/core/internal/alpaca"
	"github.com/kinggekko/core/internal/domain"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestDetermineTier_ExplicitAccountType(t *testing.T) {
	acc := &alpaca.Account{AccountType: strPtr("premium")}
	assert.Equal(t, domain.TierPremium, determineTier(acc))
}

func TestDetermineTier_InfersFullFromOptionsApproval(t *testing.T) {
	acc := &alpaca.Account{OptionsApprovedLvl: intPtr(2), OptionsTradingLvl: intPtr(2)}
	assert.Equal(t, domain.TierFull, determineTier(acc))
}

func TestDetermineTier_DefaultsToBasic(t *testing.T) {
	acc := &alpaca.Account{}
	assert.Equal(t, domain.TierBasic, determineTier(acc))
}

func TestDataFeedForTier(t *testing.T) {
	assert.Equal(t, domain.FeedIEX, dataFeedForTier(domain.TierBasic))
	assert.Equal(t, domain.FeedSIP, dataFeedForTier(domain.TierFull))
	assert.Equal(t, domain.FeedSIP, dataFeedForTier(domain.TierEnterprise))
}
