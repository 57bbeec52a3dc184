package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kinggekko/core/internal/domain"
)

func newPopulatedRegistry() *Registry {
	r := NewRegistry()
	r.AddModel(ModelConfig{Name: "risk-1", Role: domain.RoleRiskManagement, Priority: 10, Weight: 0.3, Enabled: true})
	r.AddModel(ModelConfig{Name: "risk-2", Role: domain.RoleRiskManagement, Priority: 9, Weight: 0.3, Enabled: true})
	r.AddModel(ModelConfig{Name: "tech-1", Role: domain.RoleTechnicalAnalysis, Priority: 8, Weight: 0.25, Enabled: true})
	r.AddModel(ModelConfig{Name: "tech-2", Role: domain.RoleTechnicalAnalysis, Priority: 7, Weight: 0.25, Enabled: true})
	r.AddModel(ModelConfig{Name: "sentiment-1", Role: domain.RoleSentimentAnalysis, Priority: 6, Weight: 0.2, Enabled: true})
	r.AddModel(ModelConfig{Name: "momentum-1", Role: domain.RoleMomentumAnalysis, Priority: 5, Weight: 0.1, Enabled: true})
	return r
}

func TestSelectModels_Critical_TopPriorityPerCriticalRoleOnly(t *testing.T) {
	r := newPopulatedRegistry()
	models := r.SelectModels(domain.UrgencyCritical, domain.AnalysisBuySignal)
	assert.Equal(t, []string{"risk-1", "tech-1"}, namesOf(models))
}

func TestSelectModels_High_TopTwoPerRelevantRole(t *testing.T) {
	r := newPopulatedRegistry()
	models := r.SelectModels(domain.UrgencyHigh, domain.AnalysisBuySignal)
	// BuySignal relevant roles: Technical, Sentiment, Risk, Momentum
	assert.Equal(t, []string{"tech-1", "tech-2", "sentiment-1", "risk-1", "risk-2", "momentum-1"}, namesOf(models))
}

func TestSelectModels_Medium_TopThreePerRelevantRole(t *testing.T) {
	r := newPopulatedRegistry()
	models := r.SelectModels(domain.UrgencyMedium, domain.AnalysisHoldSignal)
	// HoldSignal relevant roles: Technical, MarketRegime, Risk -- only Technical and Risk populated
	assert.Equal(t, []string{"tech-1", "tech-2", "risk-1", "risk-2"}, namesOf(models))
}

func TestSelectModels_Low_EveryEnabledModel(t *testing.T) {
	r := newPopulatedRegistry()
	r.SetEnabled("momentum-1", false)
	models := r.SelectModels(domain.UrgencyLow, domain.AnalysisPortfolioReview)
	assert.Len(t, models, 5) // every model except the disabled one
}

func TestSelectModels_Critical_SkipsRoleWithNoModels(t *testing.T) {
	r := NewRegistry()
	r.AddModel(ModelConfig{Name: "risk-1", Role: domain.RoleRiskManagement, Priority: 10, Enabled: true})
	models := r.SelectModels(domain.UrgencyCritical, domain.AnalysisBuySignal)
	assert.Equal(t, []string{"risk-1"}, namesOf(models))
}
