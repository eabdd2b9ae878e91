package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/telemetry"
	"github.com/shadowscope/shadow-ai-assessor/internal/metrics"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/tools"
)

const (
	// SystemPrompt is the fixed preamble for every exchange.
	SystemPrompt = "You are a security analyst reviewing shadow AI usage for an organization. " +
		"Answer with a single JSON object of the form " +
		`{"summary": string, "recommendations": [{"title": string, "description": string, "type": "critical"|"policy"|"optimization"}]}. ` +
		"Use the available tools when they help."

	followupHistoryTurns = 3
	defaultSinkTimeout   = 2 * time.Second
)

// Sink receives streamed content as it arrives.
type Sink func(content string)

type exchangeOptions struct {
	sink        Sink
	sinkTimeout time.Duration
	stream      *bool
}

type Option func(*exchangeOptions)

// WithSink forwards streamed content to sink. A sink that panics or blocks
// past the timeout stops receiving content for the rest of the exchange.
func WithSink(sink Sink) Option {
	return func(o *exchangeOptions) { o.sink = sink }
}

func WithSinkTimeout(d time.Duration) Option {
	return func(o *exchangeOptions) { o.sinkTimeout = d }
}

// WithStream overrides the configured stream mode for one exchange.
func WithStream(stream bool) Option {
	return func(o *exchangeOptions) { o.stream = &stream }
}

// Orchestrator drives one model exchange including tool calls.
type Orchestrator struct {
	provider     ChatProvider
	executor     ToolExecutor
	logger       *zap.Logger
	metrics      *metrics.Registry
	tracer       trace.Tracer
	stream       bool
	maxTokens    int
	historyTurns int
	now          func() time.Time
}

// NewOrchestrator creates an orchestrator. executor may be nil, in which
// case no tools are offered to the model.
func NewOrchestrator(provider ChatProvider, executor ToolExecutor, cfg config.LLMConfig, logger *zap.Logger, m *metrics.Registry) *Orchestrator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 16000
	}
	return &Orchestrator{
		provider:     provider,
		executor:     executor,
		logger:       logger,
		metrics:      m,
		tracer:       telemetry.Tracer("narrative"),
		stream:       cfg.Stream,
		maxTokens:    cfg.MaxTokens,
		historyTurns: cfg.HistoryTurns,
		now:          time.Now,
	}
}

// GenerateInsights runs one exchange and always returns a result. Any
// failure yields the fixed fallback payload with State FALLBACK.
func (o *Orchestrator) GenerateInsights(ctx context.Context, prompt string, history []Message, opts ...Option) (result *Result) {
	options := exchangeOptions{sinkTimeout: defaultSinkTimeout, stream: &o.stream}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := o.tracer.Start(ctx, "narrative.GenerateInsights")
	start := o.now()

	defer func() {
		if r := recover(); r != nil {
			result = o.fallback(ctx, result, domainerrors.NewNarrativeError(fmt.Sprintf("exchange panicked: %v", r)))
		}
		span.SetAttributes(
			attribute.String("narrative.state", string(result.State)),
			attribute.Int("narrative.tool_calls", len(result.ToolCalls)),
		)
		if result.Err != nil {
			telemetry.RecordError(span, result.Err)
		}
		span.End()
		o.metrics.RecordNarrative(ctx, o.now().Sub(start), result.Fallback)
	}()

	result = &Result{State: StateDispatched}
	if o.provider == nil {
		return o.fallback(ctx, result, domainerrors.NewNarrativeError("no chat provider configured"))
	}

	var defs []tools.Definition
	if o.executor != nil {
		defs = o.executor.Definitions(ctx)
	}

	req := ChatRequest{
		Messages:  o.initialMessages(prompt, history),
		Tools:     defs,
		MaxTokens: o.maxTokens,
	}

	acc := NewAccumulator()
	acc.now = o.now

	var err error
	if *options.stream {
		result.State = StateStreaming
		result.Content, err = o.consumeStream(ctx, req, acc, options)
	} else {
		var resp *ChatResponse
		resp, err = o.provider.Complete(ctx, req)
		if err == nil {
			result.Content = resp.Content
			for _, delta := range resp.ToolCalls {
				acc.Add(delta)
			}
		}
	}
	if err != nil {
		return o.fallback(ctx, result, err)
	}

	if acc.Len() == 0 {
		result.State = StateDone
		return result
	}

	result.State = StateToolsPending
	result.ToolCalls = o.dispatch(ctx, acc.Finalize())

	result.State = StateFollowup
	followup, err := o.provider.Complete(ctx, ChatRequest{
		Messages:  o.followupMessages(prompt, history, result.Content, result.ToolCalls),
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return o.fallback(ctx, result, err)
	}

	result.Content = followup.Content
	result.State = StateDone
	return result
}

func (o *Orchestrator) initialMessages(prompt string, history []Message) []Message {
	messages := []Message{{Role: RoleSystem, Content: SystemPrompt}}
	messages = append(messages, lastTurns(history, o.historyTurns)...)
	return append(messages, Message{Role: RoleUser, Content: prompt})
}

func (o *Orchestrator) followupMessages(prompt string, history []Message, content string, calls []ToolCall) []Message {
	messages := []Message{{Role: RoleSystem, Content: SystemPrompt}}
	messages = append(messages, lastTurns(history, followupHistoryTurns)...)
	messages = append(messages,
		Message{Role: RoleUser, Content: prompt},
		Message{Role: RoleAssistant, Content: content, ToolCalls: calls},
	)
	for _, call := range calls {
		messages = append(messages, Message{
			Role:       RoleTool,
			ToolCallID: call.ID,
			Content:    encodeResult(call.Result),
		})
	}
	return messages
}

func (o *Orchestrator) consumeStream(ctx context.Context, req ChatRequest, acc *Accumulator, options exchangeOptions) (string, error) {
	stream, err := o.provider.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	sink := options.sink
	var content string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return content, nil
		}
		if err != nil {
			return content, err
		}

		if chunk.Content != "" {
			content += chunk.Content
			if sink != nil && !o.forward(sink, chunk.Content, options.sinkTimeout) {
				sink = nil
			}
		}
		for _, delta := range chunk.ToolCalls {
			acc.Add(delta)
		}
	}
}

// forward delivers content to the sink within timeout. It reports false if
// the sink panicked or did not return in time.
func (o *Orchestrator) forward(sink Sink, content string, timeout time.Duration) bool {
	done := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Warn("stream sink panicked", zap.Any("panic", r))
				done <- false
			}
		}()
		sink(content)
		done <- true
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ok := <-done:
		return ok
	case <-timer.C:
		o.logger.Warn("stream sink stalled, forwarding disabled", zap.Duration("timeout", timeout))
		return false
	}
}

// dispatch executes all calls concurrently and returns them in request
// order with results attached.
func (o *Orchestrator) dispatch(ctx context.Context, calls []ToolCall) []ToolCall {
	g, gctx := errgroup.WithContext(ctx)
	for i := range calls {
		g.Go(func() error {
			if o.executor == nil {
				calls[i].Result = tools.ErrorResult{Error: fmt.Sprintf("%s: %s", tools.ErrUnknownTool, calls[i].Name)}
				return nil
			}
			calls[i].Result = o.executor.Execute(gctx, calls[i].Name, calls[i].Arguments)
			return nil
		})
	}
	_ = g.Wait()

	for _, call := range calls {
		o.logger.Debug("tool call completed", append(telemetry.TraceFields(ctx),
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID))...)
	}
	return calls
}

func (o *Orchestrator) fallback(ctx context.Context, result *Result, cause error) *Result {
	if result == nil {
		result = &Result{}
	}
	if !domainerrors.IsType(cause, domainerrors.ErrorTypeNarrative) {
		cause = domainerrors.NewNarrativeError("model exchange failed in state " + string(result.State)).WithCause(cause)
	}
	o.logger.Warn("narrative generation failed, using fallback insights",
		append(telemetry.TraceFields(ctx),
			zap.String("state", string(result.State)),
			zap.Error(cause))...)

	result.Content = FallbackContent()
	result.State = StateFallback
	result.Fallback = true
	result.Err = cause
	return result
}

// FallbackContent is the fixed insights payload encoded as JSON.
func FallbackContent() string {
	b, _ := json.Marshal(assessment.FallbackInsights())
	return string(b)
}

func lastTurns(history []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return append([]Message(nil), history...)
}

func encodeResult(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(tools.ErrorResult{Error: "unserializable tool result: " + err.Error()})
	}
	return string(b)
}
