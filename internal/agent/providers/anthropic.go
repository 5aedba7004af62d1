package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// AnthropicProvider implements engine.LLMClient against Anthropic's
// Messages API. Retries go through BaseProvider.Retry with this
// provider's own isRetryableError classifier, since Anthropic error
// classification needs the SDK's typed *anthropic.Error.
type AnthropicProvider struct {
	base         BaseProvider
	client       anthropic.Client
	defaultModel string
	maxTokens    int
}

// AnthropicConfig holds the connection settings for AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	MaxRetries   int
	RetryDelay   time.Duration
}

// NewAnthropicProvider builds an engine.LLMClient backed by Claude.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		base:         NewBaseProvider("anthropic", cfg.MaxRetries, cfg.RetryDelay),
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

// Complete implements engine.LLMClient.
func (p *AnthropicProvider) Complete(ctx context.Context, req engine.Request) (*engine.Response, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	var msg *anthropic.Message
	err = p.base.Retry(ctx, p.isRetryableError, func() error {
		var callErr error
		msg, callErr = p.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: completion failed: %w", err)
	}

	return p.toResponse(msg), nil
}

// Stream implements engine.LLMClient by consuming Anthropic's SSE
// stream and emitting text deltas, then a Done chunk. Tool calls are
// not streamed; they are only available via Complete.
func (p *AnthropicProvider) Stream(ctx context.Context, req engine.Request) (<-chan engine.StreamChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	out := make(chan engine.StreamChunk)
	go func() {
		defer close(out)
		stream := p.client.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			event := stream.Current()
			if event.Type == "content_block_delta" {
				delta := event.AsContentBlockDelta()
				if delta.Delta.Type == "text_delta" && delta.Delta.Text != "" {
					out <- engine.StreamChunk{Delta: delta.Delta.Text}
				}
			}
		}
		out <- engine.StreamChunk{Done: true}
	}()
	return out, nil
}

func (p *AnthropicProvider) buildParams(req engine.Request) (anthropic.MessageNewParams, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(p.maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
		switch req.ToolChoice {
		case engine.ToolChoiceRequired:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
		case engine.ToolChoiceNone:
			// Callers are expected to omit Tools for "none"; leave the
			// default auto choice if they didn't.
		default:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		}
	}

	return params, nil
}

func (p *AnthropicProvider) convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			continue
		case models.RoleTool:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case models.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input map[string]any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						return nil, err
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.CallID, input, tc.ToolName))
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return result, nil
}

func (p *AnthropicProvider) convertTools(tools []engine.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		schemaBytes, err := json.Marshal(tool.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(schemaBytes, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(tool.Description)
		}
		result = append(result, toolParam)
	}
	return result, nil
}

func (p *AnthropicProvider) toResponse(msg *anthropic.Message) *engine.Response {
	resp := &engine.Response{}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(variant.Input)
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
				CallID:    variant.ID,
				ToolName:  variant.Name,
				Arguments: args,
			})
		}
	}
	return resp
}

func (p *AnthropicProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused")
}
