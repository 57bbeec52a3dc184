// Package optimizer implements the Portfolio Optimizer (C8): a CAPM
// expected-return estimate, a volatility-floored Sharpe filter, Sharpe-
// proportional weighting, a Kelly-fraction cap, and portfolio-protection
// damping, producing one Allocation per eligible symbol.
package optimizer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	defaultMarketReturn    = 0.08
	defaultSharpeThreshold = 1.0
	defaultKellyCap        = 0.25
	defaultProtectionRatio = 1.0
	defaultProfitTarget    = 0.05
	minVolatilityFloor     = 0.01
	defaultMaxOptionsAlloc = 0.30
)

// Config holds the optimizer's tunable thresholds. Zero values fall back
// to the defaults listed above.
type Config struct {
	RiskFreeRate         float64
	MarketReturn         float64
	SharpeThreshold      float64
	KellyCap             float64
	ProtectionRatio      float64
	ProfitTarget         float64
	MaxOptionsAllocation float64
}

func (c Config) withDefaults() Config {
	if c.MarketReturn == 0 {
		c.MarketReturn = defaultMarketReturn
	}
	if c.SharpeThreshold == 0 {
		c.SharpeThreshold = defaultSharpeThreshold
	}
	if c.KellyCap == 0 {
		c.KellyCap = defaultKellyCap
	}
	if c.ProtectionRatio == 0 {
		c.ProtectionRatio = defaultProtectionRatio
	}
	if c.ProfitTarget == 0 {
		c.ProfitTarget = defaultProfitTarget
	}
	if c.MaxOptionsAllocation == 0 {
		c.MaxOptionsAllocation = defaultMaxOptionsAlloc
	}
	return c
}

// SymbolInput is one symbol's pricing/asset-class context fed into the
// optimizer.
type SymbolInput struct {
	Symbol       string
	Closes       []float64 // period closes, oldest first
	Beta         *float64  // per-symbol override; defaults to 1.0
	Momentum     float64   // momentum score, roughly [-1,1]
	CurrentPrice float64
	IsOption     bool
}

// Allocation is one symbol's proposed weight and derived order bounds,
// the "math decision" the Decision Assembler (C11) merges with advisor
// output.
type Allocation struct {
	Symbol         string
	Weight         float64
	ExpectedReturn float64
	Volatility     float64
	Sharpe         float64
	KellyFraction  float64
	StopLoss       float64
	TakeProfit     float64
}

// Optimize runs the pipeline in spec order: CAPM return, volatility floor,
// Sharpe filter, Sharpe-proportional weights, Kelly cap, protection
// damping, stop/take-profit derivation.
func Optimize(inputs []SymbolInput, currentPortfolioValue, startingPortfolioValue float64, cfg Config) []Allocation {
	cfg = cfg.withDefaults()

	type scored struct {
		in      SymbolInput
		mu      float64
		sigma   float64
		sharpe  float64
	}

	var candidates []scored
	for _, in := range inputs {
		beta := 1.0
		if in.Beta != nil {
			beta = *in.Beta
		}
		mu := cfg.RiskFreeRate + beta*(cfg.MarketReturn-cfg.RiskFreeRate) + in.Momentum*0.1

		sigma := periodReturnsStdDev(in.Closes)
		if sigma < minVolatilityFloor {
			sigma = minVolatilityFloor
		}

		sharpe := (mu - cfg.RiskFreeRate) / sigma
		if sharpe < cfg.SharpeThreshold {
			continue
		}

		candidates = append(candidates, scored{in: in, mu: mu, sigma: sigma, sharpe: sharpe})
	}

	if len(candidates) == 0 {
		return nil
	}

	sharpeSum := 0.0
	for _, c := range candidates {
		sharpeSum += c.sharpe
	}

	allocations := make([]Allocation, 0, len(candidates))
	for _, c := range candidates {
		weight := c.sharpe / sharpeSum

		p := 0.5 + 0.5*c.mu
		q := 1 - p
		kelly := math.Max(0, math.Min(cfg.KellyCap, p-q))
		weight *= kelly

		allocations = append(allocations, Allocation{
			Symbol:         c.in.Symbol,
			Weight:         weight,
			ExpectedReturn: c.mu,
			Volatility:     c.sigma,
			Sharpe:         c.sharpe,
			KellyFraction:  kelly,
		})
	}

	applyProtectionDamping(allocations, currentPortfolioValue, startingPortfolioValue, cfg.ProtectionRatio)
	applyOptionsCap(allocations, inputs, cfg.MaxOptionsAllocation)

	for i := range allocations {
		in := findInput(inputs, allocations[i].Symbol)
		if in == nil || in.CurrentPrice <= 0 {
			continue
		}
		allocations[i].StopLoss = in.CurrentPrice * (1 - 2*allocations[i].Volatility)
		allocations[i].TakeProfit = in.CurrentPrice * (1 + cfg.ProfitTarget)
	}

	sort.Slice(allocations, func(i, j int) bool { return allocations[i].Weight > allocations[j].Weight })
	return allocations
}

// applyProtectionDamping implements spec §4.8 step 6: when the portfolio
// has drawn down below protectionRatio of its starting value, every
// weight is scaled by current/starting, and symbols with negative
// expected return are halved again.
func applyProtectionDamping(allocations []Allocation, current, starting, protectionRatio float64) {
	if starting <= 0 || current >= starting*protectionRatio {
		return
	}
	scale := current / starting
	for i := range allocations {
		allocations[i].Weight *= scale
		if allocations[i].ExpectedReturn < 0 {
			allocations[i].Weight *= 0.5
		}
	}
}

// applyOptionsCap scales down options-class allocations in aggregate so
// their combined weight never exceeds maxOptionsAllocation.
func applyOptionsCap(allocations []Allocation, inputs []SymbolInput, maxOptionsAllocation float64) {
	optionsWeight := 0.0
	for _, a := range allocations {
		if in := findInput(inputs, a.Symbol); in != nil && in.IsOption {
			optionsWeight += a.Weight
		}
	}
	if optionsWeight <= maxOptionsAllocation || optionsWeight == 0 {
		return
	}
	scale := maxOptionsAllocation / optionsWeight
	for i := range allocations {
		if in := findInput(inputs, allocations[i].Symbol); in != nil && in.IsOption {
			allocations[i].Weight *= scale
		}
	}
}

func findInput(inputs []SymbolInput, symbol string) *SymbolInput {
	for i := range inputs {
		if inputs[i].Symbol == symbol {
			return &inputs[i]
		}
	}
	return nil
}

// periodReturnsStdDev computes the standard deviation of simple period
// returns derived from a close-price series.
func periodReturnsStdDev(closes []float64) float64 {
	if len(closes) < 2 {
		return minVolatilityFloor
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) < 2 {
		return minVolatilityFloor
	}
	return stat.StdDev(returns, nil)
}
