// Package cost tracks observation spend against the per-run cap.
package cost

import (
	"sync"

	"go.uber.org/zap"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	PerQuery  float64              `yaml:"per_query" mapstructure:"per_query"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {Input: 1.00, Output: 5.00},
		},
		PerQuery: 0.01,
	}
}

// Calculator computes per-call observation costs.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return c.rates.PerQuery
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Query returns the flat fallback cost per observation query.
func (c *Calculator) Query() float64 {
	return c.rates.PerQuery
}

// Tracker accumulates a run's observation spend and enforces its cap.
// Safe for concurrent use by parallel observation calls.
type Tracker struct {
	capUSD float64

	mu    sync.Mutex
	spent float64
}

// NewTracker creates a Tracker with the given cap. A zero or negative
// cap means unlimited.
func NewTracker(capUSD float64) *Tracker {
	return &Tracker{capUSD: capUSD}
}

// Spend records a cost. Returns false when the cap was already reached
// and the call should be skipped; the cost is still recorded when the
// charge was incurred before the check.
func (t *Tracker) Spend(usd float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capUSD > 0 && t.spent >= t.capUSD {
		return false
	}
	t.spent += usd
	if t.capUSD > 0 && t.spent >= t.capUSD {
		zap.L().Warn("cost: observation cap reached",
			zap.Float64("spent_usd", t.spent),
			zap.Float64("cap_usd", t.capUSD),
		)
	}
	return true
}

// Allow reports whether another observation call fits under the cap.
func (t *Tracker) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.capUSD <= 0 || t.spent < t.capUSD
}

// Spent returns the accumulated spend.
func (t *Tracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}
