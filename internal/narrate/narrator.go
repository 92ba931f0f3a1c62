// Package narrate turns stage results into user-visible replies,
// delegating data-bearing stages to a language-model completion
// service and passing canned tutorial text through untouched.
package narrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gridlens/outage-insight/internal/domain"
	"github.com/gridlens/outage-insight/internal/llm"
	"github.com/gridlens/outage-insight/internal/observability"
)

// systemPrompt biases the model toward analysis over recitation.
const systemPrompt = `You are a data analyst helping non-technical users understand patterns, trends, and anomalies in power outage, socioeconomic, and weather data.
Given the following JSON metrics for selected ZIP codes, explain clearly and concisely what patterns you see, what stands out, and what might be actionable.
If some values seem unusually high or low, call them out.
Do not just repeat the numbers - analyze them and provide insight.`

// CompletionClient is the slice of the LLM client the narrator needs.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
}

// Narrator produces the final reply text for a chat turn.
type Narrator struct {
	client  CompletionClient
	model   string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Narrator calling the given completion model.
func New(client CompletionClient, model string, logger *slog.Logger, metrics *observability.Metrics) *Narrator {
	return &Narrator{client: client, model: model, logger: logger, metrics: metrics}
}

// Narrate returns the reply for a stage result. Results without
// metrics return their seed text verbatim; the model is never invoked
// for pure tutorial steps. A failed completion is a turn-level
// failure: there is no canned fallback that preserves the analysis
// semantics, so the error propagates as domain.ErrNarration.
func (n *Narrator) Narrate(ctx context.Context, stage domain.Stage, result domain.StageResult) (string, error) {
	if !result.HasMetrics() {
		return result.Seed, nil
	}

	payload, err := json.Marshal(struct {
		Stage   domain.Stage         `json:"stage"`
		Metrics *domain.ChartMetrics `json:"metrics"`
	}{Stage: stage, Metrics: result.Metrics})
	if err != nil {
		return "", fmt.Errorf("%w: failed to serialize metrics: %v", domain.ErrNarration, err)
	}

	if tokens, err := llm.CountTextTokens(n.model, systemPrompt+string(payload)); err == nil {
		n.metrics.PromptTokens.Observe(float64(tokens))
		n.logger.Debug("narration prompt prepared",
			slog.String("stage", string(stage)),
			slog.Int("prompt_tokens", tokens),
		)
	}

	start := time.Now()
	resp, err := n.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: n.model,
		Messages: []llm.ChatCompletionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
	})
	n.metrics.LLMRequestTime.Observe(time.Since(start).Seconds())

	if err != nil {
		n.metrics.LLMRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", domain.ErrNarration, err)
	}
	n.metrics.LLMRequests.WithLabelValues("success").Inc()

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", domain.ErrNarration)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
