package consensus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/kinggekko/core/internal/advisor"
	"github.com/kinggekko/core/internal/domain"
)

// chatReply is the minimal shape the stub Ollama server returns; it must
// match internal/advisor's unexported chatResponse wire shape.
type chatReply struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func stubOllamaServer(t *testing.T, contentByModel map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		content := contentByModel[req.Model]
		if content == "" {
			content = "decision: hold\nconfidence: 0.5"
		}
		reply := chatReply{Done: true}
		reply.Message.Role = "assistant"
		reply.Message.Content = content
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}))
}

func TestEngine_GetConsensus_NoModelsSelected_ReturnsHold(t *testing.T) {
	server := stubOllamaServer(t, nil)
	defer server.Close()

	registry := NewRegistry()
	gateway := advisor.New(server.URL, 20, zerolog.Nop())
	engine := New(registry, gateway, zerolog.Nop())

	result := engine.GetConsensus(context.Background(), ConsensusRequest{
		AnalysisType: domain.AnalysisBuySignal,
		Urgency:      domain.UrgencyCritical,
	})
	assert.Equal(t, domain.AdvisorHold, result.FinalDecision)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestEngine_GetConsensus_AggregatesAcrossModels(t *testing.T) {
	server := stubOllamaServer(t, map[string]string{
		"risk-1": "decision: buy\nconfidence: 0.9",
		"tech-1": "decision: buy\nconfidence: 0.8",
	})
	defer server.Close()

	registry := NewRegistry()
	registry.AddModel(ModelConfig{Name: "risk-1", Role: domain.RoleRiskManagement, Priority: 10, Weight: 0.5, Enabled: true})
	registry.AddModel(ModelConfig{Name: "tech-1", Role: domain.RoleTechnicalAnalysis, Priority: 8, Weight: 0.5, Enabled: true})

	gateway := advisor.New(server.URL, 20, zerolog.Nop())
	engine := New(registry, gateway, zerolog.Nop())

	result := engine.GetConsensus(context.Background(), ConsensusRequest{
		AnalysisType: domain.AnalysisBuySignal,
		Urgency:      domain.UrgencyCritical,
	})
	assert.Equal(t, domain.AdvisorBuy, result.FinalDecision)
	assert.Len(t, result.Individual, 2)
}

func TestEngine_GetConsensus_RecordsHistory(t *testing.T) {
	server := stubOllamaServer(t, nil)
	defer server.Close()

	registry := NewRegistry()
	registry.AddModel(ModelConfig{Name: "risk-1", Role: domain.RoleRiskManagement, Priority: 10, Weight: 1, Enabled: true})
	gateway := advisor.New(server.URL, 20, zerolog.Nop())
	engine := New(registry, gateway, zerolog.Nop())

	engine.GetConsensus(context.Background(), ConsensusRequest{AnalysisType: domain.AnalysisBuySignal, Urgency: domain.UrgencyCritical})
	assert.Len(t, engine.History(), 1)
}
