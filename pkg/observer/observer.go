// Package observer queries live AI systems about an audited site to
// collect ground truth for the calibration loop: does the AI actually
// cite, mention, or omit the site when asked the suite's questions?
package observer

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/findable-hq/findable/internal/model"
)

// Observation is one AI system's answer to one question, classified
// against the audited domain.
type Observation struct {
	Provider     string                `json:"provider"`
	QuestionID   string                `json:"question_id"`
	Outcome      model.ObservedOutcome `json:"outcome"`
	ResponseText string                `json:"response_text,omitempty"`
	CostUSD      float64               `json:"cost_usd"`
}

// Observer queries one AI system.
type Observer interface {
	// QueryAI asks the question and classifies the answer against the
	// site's domain and brand.
	QueryAI(ctx context.Context, question model.Question, domain, brand string) (*Observation, error)
	Name() string
}

// Chain tries observers in order, returning the first success. Providers
// later in the chain are fallbacks for outages or missing credentials.
type Chain struct {
	observers []Observer
}

// NewChain builds a Chain; nil entries are skipped.
func NewChain(observers ...Observer) *Chain {
	var filtered []Observer
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	return &Chain{observers: filtered}
}

func (c *Chain) Name() string { return "chain" }

// QueryAI delegates to the first observer that succeeds.
func (c *Chain) QueryAI(ctx context.Context, question model.Question, domain, brand string) (*Observation, error) {
	if len(c.observers) == 0 {
		return nil, eris.New("observer: no providers configured")
	}
	var lastErr error
	for _, o := range c.observers {
		obs, err := o.QueryAI(ctx, question, domain, brand)
		if err == nil {
			return obs, nil
		}
		lastErr = eris.Wrapf(err, "observer: %s", o.Name())
	}
	return nil, lastErr
}

// ClassifyResponse maps a raw AI answer to an outcome: cited when the
// domain itself appears, mentioned when the brand appears without the
// domain, omitted otherwise.
func ClassifyResponse(response, domain, brand string) model.ObservedOutcome {
	lower := strings.ToLower(response)
	if domain != "" && strings.Contains(lower, strings.ToLower(domain)) {
		return model.OutcomeCited
	}
	if brand != "" && strings.Contains(lower, strings.ToLower(brand)) {
		return model.OutcomeMentioned
	}
	return model.OutcomeOmitted
}
