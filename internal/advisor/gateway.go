// Package advisor implements the LLM Advisor Gateway (C9): a chat-style
// client against an Ollama-compatible endpoint that anchors each call to
// a role-specific perspective, parses its free-text reply for a decision
// and confidence, and applies per-role calibration.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Context carries the labelled sections the gateway places in the user
// message (spec §4.9: MarketData, Portfolio, Symbols, AnalysisType).
type Context struct {
	MarketData     string
	Portfolio      string
	TradingContext string
	Symbols        string
	AnalysisType   string
}

func (c Context) render() string {
	return fmt.Sprintf(
		"MarketData:\n%s\n\nPortfolio:\n%s\n\nContext:\n%s\n\nSymbols:\n%s\n\nAnalysisType:\n%s\n\n"+
			"Respond with a line starting \"decision:\" (BUY, SELL, or HOLD) and a line "+
			"starting \"confidence:\" (a number between 0 and 1).",
		c.MarketData, c.Portfolio, c.TradingContext, c.Symbols, c.AnalysisType,
	)
}

// Gateway is the advisor client. One Gateway instance is shared across
// all (model, role) pairs; conversation history is tracked internally.
type Gateway struct {
	http *httpClient
	log  zerolog.Logger

	mu    sync.Mutex
	convs *conversationStore
}

// New creates a Gateway against baseURL (e.g. http://localhost:11434).
func New(baseURL string, maxHistory int, log zerolog.Logger) *Gateway {
	return &Gateway{
		http:  newHTTPClient(baseURL, defaultTimeout),
		log:   log.With().Str("component", "advisor").Logger(),
		convs: newConversationStore(maxHistory),
	}
}

// Ask issues one advisor call for (model, role) with the given context.
// On context deadline/cancellation, returns a synthetic HOLD/0.0 response
// with TimedOut set rather than propagating the error, per spec §4.9.
func (g *Gateway) Ask(ctx context.Context, model string, role domain.AdvisorRole, c Context) domain.AdvisorResponse {
	userMsg := c.render()

	g.mu.Lock()
	history := append([]chatMessage(nil), g.convs.messagesFor(model, role)...)
	g.mu.Unlock()
	history = append(history, chatMessage{Role: "user", Content: userMsg})

	reply, err := g.http.chat(ctx, model, history)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.log.Warn().Str("model", model).Str("role", string(role)).Msg("advisor call timed out")
			return domain.AdvisorResponse{Decision: domain.AdvisorHold, Confidence: 0.0, Role: role, TimedOut: true}
		}
		g.log.Error().Err(err).Str("model", model).Str("role", string(role)).Msg("advisor call failed")
		return domain.AdvisorResponse{Decision: domain.AdvisorHold, Confidence: 0.0, Role: role, TimedOut: true}
	}

	g.mu.Lock()
	g.convs.append(model, role, userMsg, reply)
	g.mu.Unlock()

	decision, confidence := parseResponse(reply)
	confidence = clamp01(confidence * calibrationFor(role))

	return domain.AdvisorResponse{
		Decision:   decision,
		Confidence: confidence,
		Reasoning:  reply,
		Role:       role,
	}
}
