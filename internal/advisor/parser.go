package advisor

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/kinggekko/core/internal/domain"
)

// parseResponse scans free text for "decision:" and "confidence:" lines
// (spec §4.9). A missing decision defaults to HOLD; a missing or
// unparsable confidence defaults to 0.5.
func parseResponse(text string) (domain.AdvisorDecision, float64) {
	decision := domain.AdvisorHold
	confidence := 0.5
	foundDecision := false
	foundConfidence := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))

		if !foundDecision {
			if d, ok := extractDecision(line); ok {
				decision = d
				foundDecision = true
			}
		}
		if !foundConfidence {
			if c, ok := extractConfidence(line); ok {
				confidence = c
				foundConfidence = true
			}
		}
	}

	return decision, clamp01(confidence)
}

func extractDecision(line string) (domain.AdvisorDecision, bool) {
	idx := strings.Index(line, "decision:")
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimSpace(line[idx+len("decision:"):])
	switch {
	case strings.HasPrefix(rest, "buy"):
		return domain.AdvisorBuy, true
	case strings.HasPrefix(rest, "sell"):
		return domain.AdvisorSell, true
	case strings.HasPrefix(rest, "hold"):
		return domain.AdvisorHold, true
	default:
		return "", false
	}
}

func extractConfidence(line string) (float64, bool) {
	idx := strings.Index(line, "confidence:")
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[idx+len("confidence:"):])
	fields := strings.FieldsFunc(rest, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r == '.' || r == '-')
	})
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
