package regime

import "github.com/kinggekko/core/internal/domain"

// baseProbability is the prior weight assigned to each regime kind before
// the momentum adjustment, carried over from the reference classifier's
// own lookup table.
var baseProbability = map[domain.RegimeKind]float64{
	domain.RegimeBull:           0.3,
	domain.RegimeBear:           0.2,
	domain.RegimeSideways:       0.2,
	domain.RegimeHighVolatility: 0.1,
	domain.RegimeLowVolatility:  0.1,
	domain.RegimeCrisis:         0.05,
	domain.RegimeRecovery:       0.05,
	domain.RegimeConsolidation:  0.1,
	domain.RegimeMomentum:       0.1,
	domain.RegimeMeanReversion:  0.1,
}

// Probability returns the regime-likelihood estimate for kind given a
// momentum score: base prior scaled up by (1 + |momentum|), capped at 1.0.
func Probability(kind domain.RegimeKind, momentumScore float64) float64 {
	base, ok := baseProbability[kind]
	if !ok {
		base = 0.1
	}
	adj := momentumScore
	if adj < 0 {
		adj = -adj
	}
	p := base * (1.0 + adj)
	if p > 1.0 {
		p = 1.0
	}
	return p
}
