package llm

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/telemetry"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/narrative"
)

const serviceName = "llm"

// Client adapts an OpenAI-compatible chat completion API to the narrative
// orchestrator.
type Client struct {
	api    *openai.Client
	model  string
	logger *zap.Logger
	tracer trace.Tracer
}

var _ narrative.ChatProvider = (*Client)(nil)

func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:    openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger,
		tracer: telemetry.Tracer("llm"),
	}
}

func (c *Client) Complete(ctx context.Context, req narrative.ChatRequest) (*narrative.ChatResponse, error) {
	ctx, span := c.tracer.Start(ctx, "llm.Complete", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(req.Messages)),
	))
	defer span.End()

	resp, err := c.api.CreateChatCompletion(ctx, c.request(req, false))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, domainerrors.NewExternalError(serviceName, "chat completion failed").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		err := domainerrors.NewMalformedResponseError(serviceName, "chat completion returned no choices")
		telemetry.RecordError(span, err)
		return nil, err
	}

	message := resp.Choices[0].Message
	out := &narrative.ChatResponse{Content: message.Content}
	for i, call := range message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, toDelta(i, call))
	}

	span.SetAttributes(
		attribute.Int("llm.tool_calls", len(out.ToolCalls)),
		attribute.Int("llm.total_tokens", resp.Usage.TotalTokens),
	)
	c.logger.Debug("chat completion finished",
		zap.String("model", c.model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("tool_calls", len(out.ToolCalls)))
	return out, nil
}

func (c *Client) Stream(ctx context.Context, req narrative.ChatRequest) (narrative.ChunkStream, error) {
	ctx, span := c.tracer.Start(ctx, "llm.Stream", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(req.Messages)),
	))

	stream, err := c.api.CreateChatCompletionStream(ctx, c.request(req, true))
	if err != nil {
		telemetry.RecordError(span, err)
		span.End()
		return nil, domainerrors.NewExternalError(serviceName, "opening chat stream failed").WithCause(err)
	}
	return &chunkStream{stream: stream, span: span}, nil
}

func (c *Client) request(req narrative.ChatRequest, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}

	for _, msg := range req.Messages {
		m := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: argumentsOf(call),
				},
			})
		}
		out.Messages = append(out.Messages, m)
	}

	for _, def := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return out
}

// argumentsOf returns the arguments exactly as the model sent them when
// available so the follow-up echoes the original request.
func argumentsOf(call narrative.ToolCall) string {
	if call.RawArguments != "" {
		return call.RawArguments
	}
	return "{}"
}

func toDelta(position int, call openai.ToolCall) narrative.ToolCallDelta {
	index := position
	if call.Index != nil {
		index = *call.Index
	}
	return narrative.ToolCallDelta{
		Index:     index,
		ID:        call.ID,
		Name:      call.Function.Name,
		Arguments: call.Function.Arguments,
	}
}

type chunkStream struct {
	stream *openai.ChatCompletionStream
	span   trace.Span
	chunks int
}

func (s *chunkStream) Recv() (narrative.Chunk, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return narrative.Chunk{}, err
	}
	s.chunks++

	if len(resp.Choices) == 0 {
		return narrative.Chunk{}, nil
	}

	delta := resp.Choices[0].Delta
	chunk := narrative.Chunk{Content: delta.Content}
	for i, call := range delta.ToolCalls {
		chunk.ToolCalls = append(chunk.ToolCalls, toDelta(i, call))
	}
	return chunk, nil
}

func (s *chunkStream) Close() error {
	s.stream.Close()
	s.span.SetAttributes(attribute.Int("llm.chunks", s.chunks))
	s.span.End()
	return nil
}
