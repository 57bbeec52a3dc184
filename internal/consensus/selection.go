package consensus

import "github.com/kinggekko/core/internal/domain"

// relevantRoles maps an analysis type to the advisor roles whose opinion
// bears on it, per spec.md §4.10.
var relevantRoles = map[domain.AnalysisType][]domain.AdvisorRole{
	domain.AnalysisBuySignal: {
		domain.RoleTechnicalAnalysis, domain.RoleSentimentAnalysis,
		domain.RoleRiskManagement, domain.RoleMomentumAnalysis,
	},
	domain.AnalysisSellSignal: {
		domain.RoleTechnicalAnalysis, domain.RoleSentimentAnalysis,
		domain.RoleRiskManagement, domain.RoleMomentumAnalysis,
	},
	domain.AnalysisHoldSignal: {
		domain.RoleTechnicalAnalysis, domain.RoleMarketRegime, domain.RoleRiskManagement,
	},
	domain.AnalysisRiskAssessment: {
		domain.RoleRiskManagement, domain.RoleMarketRegime, domain.RoleTechnicalAnalysis,
	},
	domain.AnalysisMarketRegime: {
		domain.RoleMarketRegime, domain.RoleTechnicalAnalysis, domain.RoleSentimentAnalysis,
	},
	domain.AnalysisPositionSizing: {
		domain.RoleRiskManagement, domain.RoleTechnicalAnalysis, domain.RoleMomentumAnalysis,
	},
	domain.AnalysisPortfolioReview: {
		domain.RoleRiskManagement, domain.RoleMarketRegime, domain.RoleGeneralPurpose,
	},
}

func relevantRolesFor(t domain.AnalysisType) []domain.AdvisorRole {
	return relevantRoles[t]
}

// SelectModels picks the models to consult for a request, per the urgency
// table in spec.md §4.10.
func (r *Registry) SelectModels(urgency domain.UrgencyLevel, analysisType domain.AnalysisType) []ModelConfig {
	switch urgency {
	case domain.UrgencyCritical:
		var selected []ModelConfig
		for _, role := range [...]domain.AdvisorRole{domain.RoleRiskManagement, domain.RoleTechnicalAnalysis} {
			if models := r.ModelsForRole(role); len(models) > 0 {
				selected = append(selected, models[0])
			}
		}
		return selected
	case domain.UrgencyHigh:
		return r.topNPerRole(analysisType, 2)
	case domain.UrgencyMedium:
		return r.topNPerRole(analysisType, 3)
	case domain.UrgencyLow:
		return r.EnabledModels()
	default:
		return r.topNPerRole(analysisType, 3)
	}
}

func (r *Registry) topNPerRole(analysisType domain.AnalysisType, n int) []ModelConfig {
	var selected []ModelConfig
	for _, role := range relevantRolesFor(analysisType) {
		models := r.ModelsForRole(role)
		if len(models) > n {
			models = models[:n]
		}
		selected = append(selected, models...)
	}
	return selected
}
