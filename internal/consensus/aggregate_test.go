package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kinggekko/core/internal/domain"
)

func TestAggregate_NoResponses_ReturnsHoldZeroConfidence(t *testing.T) {
	result := aggregate(nil)
	assert.Equal(t, domain.AdvisorHold, result.FinalDecision)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Individual)
}

func TestAggregate_PicksArgmaxWeightedAction(t *testing.T) {
	responses := []ModelResponse{
		{ModelName: "a", Role: domain.RoleTechnicalAnalysis, Decision: domain.AdvisorBuy, Confidence: 0.9, Weight: 0.3},
		{ModelName: "b", Role: domain.RoleRiskManagement, Decision: domain.AdvisorBuy, Confidence: 0.8, Weight: 0.3},
		{ModelName: "c", Role: domain.RoleSentimentAnalysis, Decision: domain.AdvisorSell, Confidence: 0.5, Weight: 0.2},
	}
	result := aggregate(responses)
	assert.Equal(t, domain.AdvisorBuy, result.FinalDecision)
}

func TestAggregate_OverallConfidenceIsWeightedAverage(t *testing.T) {
	responses := []ModelResponse{
		{ModelName: "a", Role: domain.RoleTechnicalAnalysis, Decision: domain.AdvisorBuy, Confidence: 1.0, Weight: 0.5},
		{ModelName: "b", Role: domain.RoleRiskManagement, Decision: domain.AdvisorBuy, Confidence: 0.0, Weight: 0.5},
	}
	result := aggregate(responses)
	// (0.5*1.0 + 0.5*0.0) / (0.5+0.5) = 0.5
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
}

func TestAggregate_BreakdownIsAgreementRatioPerRole(t *testing.T) {
	responses := []ModelResponse{
		{ModelName: "a", Role: domain.RoleTechnicalAnalysis, Decision: domain.AdvisorBuy, Confidence: 0.6, Weight: 0.2},
		{ModelName: "b", Role: domain.RoleTechnicalAnalysis, Decision: domain.AdvisorBuy, Confidence: 0.6, Weight: 0.2},
		{ModelName: "c", Role: domain.RoleTechnicalAnalysis, Decision: domain.AdvisorSell, Confidence: 0.6, Weight: 0.2},
	}
	result := aggregate(responses)
	assert.InDelta(t, 2.0/3.0, result.Breakdown[domain.RoleTechnicalAnalysis], 1e-9)
}

func TestAggregate_AllZeroWeight_ReturnsHoldZeroConfidence(t *testing.T) {
	responses := []ModelResponse{
		{ModelName: "a", Role: domain.RoleTechnicalAnalysis, Decision: domain.AdvisorBuy, Confidence: 0.9, Weight: 0},
	}
	result := aggregate(responses)
	assert.Equal(t, domain.AdvisorHold, result.FinalDecision)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestAggregate_TieGoesToHold(t *testing.T) {
	responses := []ModelResponse{
		{ModelName: "a", Role: domain.RoleTechnicalAnalysis, Decision: domain.AdvisorBuy, Confidence: 0.5, Weight: 0.5},
		{ModelName: "b", Role: domain.RoleRiskManagement, Decision: domain.AdvisorSell, Confidence: 0.5, Weight: 0.5},
	}
	result := aggregate(responses)
	assert.Equal(t, domain.AdvisorHold, result.FinalDecision)
}
