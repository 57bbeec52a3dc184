package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kinggekko/core/internal/domain"
)

func TestRegistry_AutoAssignRoles_DetectsRoleFromName(t *testing.T) {
	r := NewRegistry()
	r.AutoAssignRoles([]string{"llama3-8b", "mistral-7b", "llama2-13b", "tinyllama"})

	assert.Len(t, r.ModelsForRole(domain.RoleTechnicalAnalysis), 1)
	assert.Len(t, r.ModelsForRole(domain.RoleSentimentAnalysis), 1)
	assert.Len(t, r.ModelsForRole(domain.RoleRiskManagement), 1)
	assert.Len(t, r.ModelsForRole(domain.RoleGeneralPurpose), 1)
}

func TestRegistry_ModelsForRole_SortedByPriorityDescending(t *testing.T) {
	r := NewRegistry()
	r.AddModel(ModelConfig{Name: "low-pri", Role: domain.RoleTechnicalAnalysis, Priority: 2, Enabled: true})
	r.AddModel(ModelConfig{Name: "high-pri", Role: domain.RoleTechnicalAnalysis, Priority: 9, Enabled: true})
	r.AddModel(ModelConfig{Name: "mid-pri", Role: domain.RoleTechnicalAnalysis, Priority: 5, Enabled: true})

	models := r.ModelsForRole(domain.RoleTechnicalAnalysis)
	assert.Equal(t, []string{"high-pri", "mid-pri", "low-pri"}, namesOf(models))
}

func TestRegistry_ModelsForRole_CapsAtMaxAndSkipsDisabled(t *testing.T) {
	r := NewRegistry()
	r.AddModel(ModelConfig{Name: "a", Role: domain.RoleTechnicalAnalysis, Priority: 4, Enabled: true})
	r.AddModel(ModelConfig{Name: "b", Role: domain.RoleTechnicalAnalysis, Priority: 3, Enabled: false})
	r.AddModel(ModelConfig{Name: "c", Role: domain.RoleTechnicalAnalysis, Priority: 2, Enabled: true})
	r.AddModel(ModelConfig{Name: "d", Role: domain.RoleTechnicalAnalysis, Priority: 1, Enabled: true})

	models := r.ModelsForRole(domain.RoleTechnicalAnalysis)
	assert.Len(t, models, 3) // a, c, d -- b skipped for disabled
	assert.Equal(t, []string{"a", "c", "d"}, namesOf(models))
}

func TestRegistry_SetEnabled_TogglesEligibility(t *testing.T) {
	r := NewRegistry()
	r.AddModel(ModelConfig{Name: "a", Role: domain.RoleGeneralPurpose, Priority: 1, Enabled: true})
	r.SetEnabled("a", false)
	assert.Empty(t, r.ModelsForRole(domain.RoleGeneralPurpose))
}

func TestRegistry_EnabledModels_ExcludesDisabled(t *testing.T) {
	r := NewRegistry()
	r.AddModel(ModelConfig{Name: "a", Role: domain.RoleGeneralPurpose, Enabled: true})
	r.AddModel(ModelConfig{Name: "b", Role: domain.RoleTechnicalAnalysis, Enabled: false})
	assert.Equal(t, []string{"a"}, namesOf(r.EnabledModels()))
}

func namesOf(models []ModelConfig) []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names
}
