package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dshills/collabbridge/internal/collab"
)

// ErrEmptyResponse indicates the model returned no usable content.
var ErrEmptyResponse = errors.New("model returned no content")

const analyzeSystemPrompt = `You are a merge assistant for a collaborative code editor.
You receive a JSON payload with the current document content and a list of
edit operations from two diverged views of the document. Respond with a JSON
object: {"summary": string, "strategy": string, "confidence": number,
"regions": [{"start_line": int, "end_line": int, "reason": string}]}.`

const resolveSystemPrompt = `You are a merge assistant for a collaborative code editor.
You receive a JSON payload with the current document content and a conflict
analysis. Respond with a JSON object {"operations": [...]} where each
operation is {"kind": "insert"|"delete", "position": int, "content": string,
"length": int}. Positions are byte offsets into the given content. Applying
the operations in order must yield the merged document.`

// OpenAIResolver resolves conflicts through the OpenAI chat-completions API.
type OpenAIResolver struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// Option configures an OpenAIResolver.
type Option func(*OpenAIResolver)

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(r *OpenAIResolver) { r.model = model }
}

// WithMaxTokens bounds completion size.
func WithMaxTokens(n int) Option {
	return func(r *OpenAIResolver) { r.maxTokens = n }
}

// WithTemperature sets sampling temperature.
func WithTemperature(t float32) Option {
	return func(r *OpenAIResolver) { r.temperature = t }
}

// WithRequestsPerMinute rate-limits calls to the provider.
func WithRequestsPerMinute(n int) Option {
	return func(r *OpenAIResolver) {
		if n > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), 1)
		}
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *OpenAIResolver) { r.logger = logger }
}

// NewOpenAIResolver creates a resolver authenticated with apiKey.
func NewOpenAIResolver(apiKey string, opts ...Option) (*OpenAIResolver, error) {
	if apiKey == "" {
		return nil, errors.New("openai resolver requires an API key")
	}

	r := &OpenAIResolver{
		client:      openai.NewClient(apiKey),
		model:       "gpt-4o-mini",
		maxTokens:   4096,
		temperature: 0.2,
		limiter:     rate.NewLimiter(rate.Limit(0.5), 1),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// AnalyzeConflicts implements Resolver.
func (r *OpenAIResolver) AnalyzeConflicts(ctx context.Context, ops []collab.Operation, content string) (*Analysis, error) {
	payload, err := buildAnalyzePayload(ops, content)
	if err != nil {
		return nil, err
	}

	raw, err := r.complete(ctx, analyzeSystemPrompt, payload)
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("conflict analysis",
		zap.String("strategy", analysis.Strategy),
		zap.Float64("confidence", analysis.Confidence),
		zap.Int("regions", len(analysis.Regions)))
	return analysis, nil
}

// ResolveConflicts implements Resolver.
func (r *OpenAIResolver) ResolveConflicts(ctx context.Context, analysis *Analysis, content string) ([]collab.Operation, error) {
	payload, err := buildResolvePayload(analysis, content)
	if err != nil {
		return nil, err
	}

	raw, err := r.complete(ctx, resolveSystemPrompt, payload)
	if err != nil {
		return nil, err
	}

	ops, err := parseOperations(raw)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("conflict resolution", zap.Int("operations", len(ops)))
	return ops, nil
}

// complete sends one chat completion request under the rate limit.
func (r *OpenAIResolver) complete(ctx context.Context, system, user string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// buildAnalyzePayload encodes content plus operations as a JSON document.
func buildAnalyzePayload(ops []collab.Operation, content string) (string, error) {
	payload, err := sjson.Set("", "content", content)
	if err != nil {
		return "", err
	}
	for i, op := range ops {
		prefix := fmt.Sprintf("operations.%d.", i)
		if payload, err = sjson.Set(payload, prefix+"kind", op.Kind.String()); err != nil {
			return "", err
		}
		if payload, err = sjson.Set(payload, prefix+"position", op.Position); err != nil {
			return "", err
		}
		if payload, err = sjson.Set(payload, prefix+"content", op.Content); err != nil {
			return "", err
		}
		if payload, err = sjson.Set(payload, prefix+"length", op.Length); err != nil {
			return "", err
		}
		if payload, err = sjson.Set(payload, prefix+"clock", op.Clock); err != nil {
			return "", err
		}
		if payload, err = sjson.Set(payload, prefix+"user", op.UserID); err != nil {
			return "", err
		}
	}
	return payload, nil
}

// buildResolvePayload encodes content plus a prior analysis as a JSON
// document.
func buildResolvePayload(analysis *Analysis, content string) (string, error) {
	payload, err := sjson.Set("", "content", content)
	if err != nil {
		return "", err
	}
	if payload, err = sjson.Set(payload, "analysis.summary", analysis.Summary); err != nil {
		return "", err
	}
	if payload, err = sjson.Set(payload, "analysis.strategy", analysis.Strategy); err != nil {
		return "", err
	}
	for i, region := range analysis.Regions {
		prefix := fmt.Sprintf("analysis.regions.%d.", i)
		if payload, err = sjson.Set(payload, prefix+"start_line", region.StartLine); err != nil {
			return "", err
		}
		if payload, err = sjson.Set(payload, prefix+"end_line", region.EndLine); err != nil {
			return "", err
		}
		if payload, err = sjson.Set(payload, prefix+"reason", region.Reason); err != nil {
			return "", err
		}
	}
	return payload, nil
}

// parseAnalysis extracts an Analysis from the model's JSON response.
func parseAnalysis(raw string) (*Analysis, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("analysis response is not valid JSON")
	}

	analysis := &Analysis{
		Summary:    gjson.Get(raw, "summary").String(),
		Strategy:   gjson.Get(raw, "strategy").String(),
		Confidence: gjson.Get(raw, "confidence").Float(),
	}
	if analysis.Confidence < 0 {
		analysis.Confidence = 0
	}
	if analysis.Confidence > 1 {
		analysis.Confidence = 1
	}

	for _, region := range gjson.Get(raw, "regions").Array() {
		analysis.Regions = append(analysis.Regions, ConflictRegion{
			StartLine: int(region.Get("start_line").Int()),
			EndLine:   int(region.Get("end_line").Int()),
			Reason:    region.Get("reason").String(),
		})
	}
	return analysis, nil
}

// parseOperations extracts resolved operations from the model's JSON
// response. Malformed entries fail the whole parse; a half-applied
// resolution is worse than none.
func parseOperations(raw string) ([]collab.Operation, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("resolution response is not valid JSON")
	}

	var ops []collab.Operation
	for i, item := range gjson.Get(raw, "operations").Array() {
		var op collab.Operation
		switch kind := item.Get("kind").String(); kind {
		case "insert":
			op = collab.NewInsert(int(item.Get("position").Int()), item.Get("content").String(), 0, "ai-resolver")
		case "delete":
			op = collab.NewDelete(int(item.Get("position").Int()), int(item.Get("length").Int()), 0, "ai-resolver")
		default:
			return nil, fmt.Errorf("operation %d: unknown kind %q", i, kind)
		}
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
