package observer

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/cost"
	"github.com/findable-hq/findable/internal/model"
	"github.com/findable-hq/findable/internal/resilience"
)

// AnthropicObserver asks Claude the suite's questions with web knowledge
// it already has; no tools, no retrieval. The point is to measure what
// the model says unprompted, not to feed it the site.
type AnthropicObserver struct {
	client sdk.Client
	model  string
	calc   *cost.Calculator
}

// NewAnthropic creates an AnthropicObserver.
func NewAnthropic(apiKey, modelID string, calc *cost.Calculator) *AnthropicObserver {
	return &AnthropicObserver{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  modelID,
		calc:   calc,
	}
}

func (a *AnthropicObserver) Name() string { return "anthropic" }

// QueryAI asks the question verbatim and classifies the answer.
func (a *AnthropicObserver) QueryAI(ctx context.Context, question model.Question, domain, brand string) (*Observation, error) {
	retryCfg := resilience.RetryConfig{
		MaxAttempts: 3,
		OnRetry:     resilience.RetryLogger("observer", "anthropic"),
	}

	msg, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*sdk.Message, error) {
		m, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
			Model:     sdk.Model(a.model),
			MaxTokens: 1024,
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(sdk.NewTextBlock(question.Text)),
			},
		})
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		return m, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "observer: anthropic query")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	response := sb.String()

	obs := &Observation{
		Provider:     a.Name(),
		QuestionID:   question.ID,
		Outcome:      ClassifyResponse(response, domain, brand),
		ResponseText: response,
		CostUSD:      a.calc.Claude(a.model, int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)),
	}

	zap.L().Debug("observer: query complete",
		zap.String("question_id", question.ID),
		zap.String("outcome", string(obs.Outcome)),
		zap.Float64("cost_usd", obs.CostUSD),
	)
	return obs, nil
}
