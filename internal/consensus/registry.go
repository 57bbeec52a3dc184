// Package consensus implements the Consensus Engine (C10): it selects a
// subset of registered advisor models based on request urgency, asks each
// one through internal/advisor, and aggregates their replies into a single
// weighted decision.
package consensus

import (
	"sort"
	"strings"
	"sync"

	"github.com/kinggekko/core/internal/domain"
)

const maxModelsPerRole = 3

// ModelConfig is one registered advisor model: its role, its weight in
// consensus aggregation, and its priority for role-assignment ordering.
type ModelConfig struct {
	Name        string
	Role        domain.AdvisorRole
	Weight      float64
	Temperature float64
	MaxTokens   int
	Enabled     bool
	Priority    int
}

// Registry tracks registered models and their role assignments.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelConfig
	byRole map[domain.AdvisorRole][]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]ModelConfig),
		byRole: make(map[domain.AdvisorRole][]string),
	}
}

// AddModel registers or replaces a model and re-sorts its role's
// assignment list by priority.
func (r *Registry) AddModel(cfg ModelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[cfg.Name]; !exists {
		r.byRole[cfg.Role] = append(r.byRole[cfg.Role], cfg.Name)
	}
	r.models[cfg.Name] = cfg
	r.sortRoleLocked(cfg.Role)
}

// AutoAssignRoles detects a role for each model name from its name and
// registers it with role-appropriate defaults, mirroring the heuristic
// used by the reference implementation's model manager.
func (r *Registry) AutoAssignRoles(names []string) {
	for _, name := range names {
		role := detectRole(name)
		r.AddModel(ModelConfig{
			Name:        name,
			Role:        role,
			Weight:      defaultWeight(role),
			Temperature: defaultTemperature(role),
			MaxTokens:   defaultMaxTokens(role),
			Enabled:     true,
			Priority:    defaultPriority(role),
		})
	}
}

// SetEnabled flips a model's enabled flag; absent names are a no-op.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg, ok := r.models[name]; ok {
		cfg.Enabled = enabled
		r.models[name] = cfg
	}
}

// ModelsForRole returns the enabled models assigned to role, sorted by
// descending priority and capped at maxModelsPerRole.
func (r *Registry) ModelsForRole(role domain.AdvisorRole) []ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ModelConfig
	for _, name := range r.byRole[role] {
		cfg := r.models[name]
		if !cfg.Enabled {
			continue
		}
		out = append(out, cfg)
		if len(out) == maxModelsPerRole {
			break
		}
	}
	return out
}

// EnabledModels returns every enabled model, regardless of role.
func (r *Registry) EnabledModels() []ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ModelConfig
	for _, cfg := range r.models {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) sortRoleLocked(role domain.AdvisorRole) {
	names := r.byRole[role]
	sort.SliceStable(names, func(i, j int) bool {
		a, b := r.models[names[i]], r.models[names[j]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Name < b.Name
	})
}

func detectRole(name string) domain.AdvisorRole {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "qwen"), strings.Contains(lower, "llama3"), strings.Contains(lower, "gemma"):
		return domain.RoleTechnicalAnalysis
	case strings.Contains(lower, "phi"), strings.Contains(lower, "mistral"):
		return domain.RoleSentimentAnalysis
	case strings.Contains(lower, "llama2"), strings.Contains(lower, "codellama"):
		return domain.RoleRiskManagement
	case strings.Contains(lower, "tinyllama"), strings.Contains(lower, "llama"):
		return domain.RoleGeneralPurpose
	default:
		return domain.RoleGeneralPurpose
	}
}

func defaultWeight(role domain.AdvisorRole) float64 {
	switch role {
	case domain.RoleTechnicalAnalysis:
		return 0.25
	case domain.RoleSentimentAnalysis:
		return 0.20
	case domain.RoleRiskManagement:
		return 0.30
	case domain.RoleMarketRegime:
		return 0.15
	case domain.RoleMomentumAnalysis:
		return 0.10
	default:
		return 0.20
	}
}

func defaultTemperature(role domain.AdvisorRole) float64 {
	switch role {
	case domain.RoleTechnicalAnalysis:
		return 0.1
	case domain.RoleSentimentAnalysis:
		return 0.3
	case domain.RoleRiskManagement:
		return 0.05
	case domain.RoleMarketRegime:
		return 0.2
	case domain.RoleMomentumAnalysis:
		return 0.15
	default:
		return 0.4
	}
}

func defaultMaxTokens(role domain.AdvisorRole) int {
	switch role {
	case domain.RoleTechnicalAnalysis:
		return 200
	case domain.RoleSentimentAnalysis:
		return 150
	case domain.RoleRiskManagement:
		return 100
	case domain.RoleMarketRegime:
		return 120
	case domain.RoleMomentumAnalysis:
		return 100
	default:
		return 300
	}
}

func defaultPriority(role domain.AdvisorRole) int {
	switch role {
	case domain.RoleRiskManagement:
		return 10
	case domain.RoleTechnicalAnalysis:
		return 8
	case domain.RoleMarketRegime:
		return 7
	case domain.RoleSentimentAnalysis:
		return 6
	case domain.RoleMomentumAnalysis:
		return 5
	default:
		return 4
	}
}
