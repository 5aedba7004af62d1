package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// OpenAIProvider implements engine.LLMClient against the Chat
// Completions API, used as the fallback/secondary provider in a role's
// candidate chain.
type OpenAIProvider struct {
	base         BaseProvider
	client       *openai.Client
	defaultModel string
	maxTokens    int
}

// OpenAIConfig holds the connection settings for OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	MaxRetries   int
	RetryDelay   time.Duration
}

// NewOpenAIProvider builds an engine.LLMClient backed by OpenAI.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		base:         NewBaseProvider("openai", cfg.MaxRetries, cfg.RetryDelay),
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

// Complete implements engine.LLMClient.
func (p *OpenAIProvider) Complete(ctx context.Context, req engine.Request) (*engine.Response, error) {
	chatReq := p.buildRequest(req)

	var resp openai.ChatCompletionResponse
	err := p.base.Retry(ctx, p.isRetryableError, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, chatReq)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("openai: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &engine.Response{}, nil
	}
	return p.toResponse(resp.Choices[0].Message), nil
}

// Stream implements engine.LLMClient using OpenAI's chunked SSE
// protocol. Like the Anthropic adapter, streaming here is text-delta
// only: tool-call deltas are ignored, and tool calls are only available
// via Complete.
func (p *OpenAIProvider) Stream(ctx context.Context, req engine.Request) (<-chan engine.StreamChunk, error) {
	chatReq := p.buildRequest(req)
	chatReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: stream create failed: %w", err)
	}

	out := make(chan engine.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					out <- engine.StreamChunk{Done: true}
				} else {
					out <- engine.StreamChunk{Done: true}
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				out <- engine.StreamChunk{Delta: delta}
			}
		}
	}()
	return out, nil
}

func (p *OpenAIProvider) buildRequest(req engine.Request) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  p.convertMessages(req.Messages, req.System),
		MaxTokens: p.maxTokens,
	}

	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
		switch req.ToolChoice {
		case engine.ToolChoiceRequired:
			chatReq.ToolChoice = "required"
		case engine.ToolChoiceNone:
			// Callers omit Tools for "none"; default left unset otherwise.
		default:
			chatReq.ToolChoice = "auto"
		}
	}
	return chatReq
}

func (p *OpenAIProvider) convertMessages(messages []models.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		case models.RoleUser:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.CallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.ToolName,
						Arguments: string(tc.Arguments),
					},
				})
			}
			result = append(result, oaiMsg)
		case models.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return result
}

func (p *OpenAIProvider) convertTools(tools []engine.ToolSchema) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		}
	}
	return result
}

func (p *OpenAIProvider) toResponse(msg openai.ChatCompletionMessage) *engine.Response {
	resp := &engine.Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
			CallID:    tc.ID,
			ToolName:  tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return resp
}

func (p *OpenAIProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
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
