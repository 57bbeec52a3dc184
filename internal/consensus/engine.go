package consensus

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/advisor"
	"github.com/kinggekko/core/internal/domain"
)

const defaultMaxHistory = 100

// ConsensusRequest asks the engine to resolve a trading question across
// whichever models the urgency level selects, per spec.md §4.10.
type ConsensusRequest struct {
	MarketData     string
	PortfolioData  string
	TradingContext string
	AnalysisType   domain.AnalysisType
	Symbols        []string
	Urgency        domain.UrgencyLevel
}

// Engine is the Consensus Engine (C10): it selects models via a Registry,
// asks each through a Gateway, and aggregates the replies.
type Engine struct {
	registry *Registry
	gateway  *advisor.Gateway
	log      zerolog.Logger

	mu      sync.Mutex
	history []ConsensusResult
}

// New builds an Engine over an already-populated Registry and Gateway.
func New(registry *Registry, gateway *advisor.Gateway, log zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		gateway:  gateway,
		log:      log.With().Str("component", "consensus").Logger(),
	}
}

// GetConsensus selects models for req and aggregates their responses. If
// no models are selected or all time out to a synthetic HOLD, the final
// decision is still HOLD with confidence 0 is returned when there truly
// were no responses at all — per spec.md §4.10, a single timed-out
// advisor still contributes its HOLD/0.0 response to the aggregate.
func (e *Engine) GetConsensus(ctx context.Context, req ConsensusRequest) ConsensusResult {
	models := e.registry.SelectModels(req.Urgency, req.AnalysisType)
	if len(models) == 0 {
		e.log.Warn().Str("analysis_type", string(req.AnalysisType)).Msg("no models available for consensus")
		return aggregate(nil)
	}

	advCtx := advisor.Context{
		MarketData:     req.MarketData,
		Portfolio:      req.PortfolioData,
		TradingContext: req.TradingContext,
		Symbols:        strings.Join(req.Symbols, ","),
		AnalysisType:   string(req.AnalysisType),
	}

	responses := make([]ModelResponse, 0, len(models))
	for _, m := range models {
		resp := e.gateway.Ask(ctx, m.Name, m.Role, advCtx)
		responses = append(responses, ModelResponse{
			ModelName:  m.Name,
			Role:       m.Role,
			Decision:   resp.Decision,
			Confidence: resp.Confidence,
			Reasoning:  resp.Reasoning,
			Weight:     m.Weight,
		})
	}

	result := aggregate(responses)
	e.recordHistory(result)

	e.log.Info().
		Str("decision", string(result.FinalDecision)).
		Float64("confidence", result.Confidence).
		Int("models_consulted", len(responses)).
		Msg("consensus reached")

	return result
}

func (e *Engine) recordHistory(result ConsensusResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, result)
	if len(e.history) > defaultMaxHistory {
		e.history = e.history[1:]
	}
}

// History returns a defensive copy of recorded consensus results, oldest
// first.
func (e *Engine) History() []ConsensusResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ConsensusResult, len(e.history))
	copy(out, e.history)
	return out
}
