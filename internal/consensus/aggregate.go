package consensus

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kinggekko/core/internal/domain"
)

// ModelResponse is one model's contribution to a ConsensusResult.
type ModelResponse struct {
	ModelName  string
	Role       domain.AdvisorRole
	Decision   domain.AdvisorDecision
	Confidence float64
	Reasoning  string
	Weight     float64
}

// ConsensusBreakdown is the per-role agreement ratio (max(buy,sell,hold)
// count over total responses for that role), carried for auditability.
type ConsensusBreakdown map[domain.AdvisorRole]float64

// ConsensusResult is the output of one Consensus Engine (C10) call.
type ConsensusResult struct {
	FinalDecision domain.AdvisorDecision
	Confidence    float64
	Individual    map[string]ModelResponse
	Breakdown     ConsensusBreakdown
	Reasoning     string
}

func aggregate(responses []ModelResponse) ConsensusResult {
	if len(responses) == 0 {
		return ConsensusResult{
			FinalDecision: domain.AdvisorHold,
			Confidence:    0,
			Individual:    map[string]ModelResponse{},
			Breakdown:     ConsensusBreakdown{},
			Reasoning:     "no models responded",
		}
	}

	byRole := make(map[domain.AdvisorRole][]ModelResponse)
	for _, r := range responses {
		byRole[r.Role] = append(byRole[r.Role], r)
	}
	breakdown := make(ConsensusBreakdown, len(byRole))
	for role, rs := range byRole {
		breakdown[role] = agreementRatio(rs)
	}

	decision, confidence := weightedDecision(responses)

	individual := make(map[string]ModelResponse, len(responses))
	for _, r := range responses {
		individual[r.ModelName] = r
	}

	return ConsensusResult{
		FinalDecision: decision,
		Confidence:    confidence,
		Individual:    individual,
		Breakdown:     breakdown,
		Reasoning:     buildReasoning(breakdown, responses),
	}
}

// agreementRatio is the fraction of responses in rs that share the most
// common decision: max(buy_n, sell_n, hold_n) / total, per spec.md §4.10.
func agreementRatio(rs []ModelResponse) float64 {
	if len(rs) == 0 {
		return 0
	}
	var buy, sell, hold int
	for _, r := range rs {
		switch r.Decision {
		case domain.AdvisorBuy:
			buy++
		case domain.AdvisorSell:
			sell++
		case domain.AdvisorHold:
			hold++
		}
	}
	max := buy
	if sell > max {
		max = sell
	}
	if hold > max {
		max = hold
	}
	return float64(max) / float64(len(rs))
}

// weightedDecision picks argmax_action Σ(w_i·confidence_i) and computes the
// overall confidence as Σ(w_i·confidence_i) / Σw_i, per spec.md §4.10.
func weightedDecision(responses []ModelResponse) (domain.AdvisorDecision, float64) {
	var buyWeight, sellWeight, holdWeight, totalWeight, weightedConfidence float64

	for _, r := range responses {
		contribution := r.Weight * r.Confidence
		totalWeight += r.Weight
		weightedConfidence += contribution

		switch r.Decision {
		case domain.AdvisorBuy:
			buyWeight += contribution
		case domain.AdvisorSell:
			sellWeight += contribution
		case domain.AdvisorHold:
			holdWeight += contribution
		}
	}

	if totalWeight == 0 {
		return domain.AdvisorHold, 0
	}

	decision := domain.AdvisorHold
	switch {
	case buyWeight > sellWeight && buyWeight > holdWeight:
		decision = domain.AdvisorBuy
	case sellWeight > buyWeight && sellWeight > holdWeight:
		decision = domain.AdvisorSell
	}

	return decision, weightedConfidence / totalWeight
}

func buildReasoning(breakdown ConsensusBreakdown, responses []ModelResponse) string {
	roles := make([]string, 0, len(breakdown))
	for role := range breakdown {
		roles = append(roles, string(role))
	}
	sort.Strings(roles)

	var b strings.Builder
	b.WriteString("Consensus Analysis:\n")
	for _, role := range roles {
		fmt.Fprintf(&b, "  %s: %.1f%%\n", role, breakdown[domain.AdvisorRole(role)]*100)
	}

	b.WriteString("\nModel Contributions:\n")
	for _, r := range responses {
		fmt.Fprintf(&b, "  %s (%s): %s (conf: %.1f%%)\n", r.ModelName, r.Role, r.Decision, r.Confidence*100)
	}

	return b.String()
}
