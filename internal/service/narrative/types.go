package narrative

import (
	"context"

	"github.com/shadowscope/shadow-ai-assessor/internal/service/tools"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one chat turn sent to or received from the model.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model. It lives for
// one exchange and is never persisted.
type ToolCall struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Arguments    map[string]interface{} `json:"arguments"`
	RawArguments string                 `json:"-"`
	Result       interface{}            `json:"result,omitempty"`
}

// ToolCallDelta is a partial tool call as delivered by a streamed or
// non-streamed response. Fields other than Index may be empty.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Chunk is one streamed increment.
type Chunk struct {
	Content   string
	ToolCalls []ToolCallDelta
}

type ChatRequest struct {
	Messages  []Message
	Tools     []tools.Definition
	MaxTokens int
}

type ChatResponse struct {
	Content   string
	ToolCalls []ToolCallDelta
}

// ChatProvider is an OpenAI-compatible chat completion backend.
type ChatProvider interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Stream(ctx context.Context, req ChatRequest) (ChunkStream, error)
}

// ChunkStream yields chunks until Recv returns io.EOF.
type ChunkStream interface {
	Recv() (Chunk, error)
	Close() error
}

// ToolExecutor runs tool calls. Execute never fails; errors are folded into
// the returned value.
type ToolExecutor interface {
	Definitions(ctx context.Context) []tools.Definition
	Execute(ctx context.Context, name string, args map[string]interface{}) interface{}
}

// State is the position of one exchange in the orchestration.
type State string

const (
	StateDispatched   State = "DISPATCHED"
	StateStreaming    State = "STREAMING"
	StateToolsPending State = "TOOLS_PENDING"
	StateFollowup     State = "FOLLOWUP"
	StateDone         State = "DONE"
	StateFallback     State = "FALLBACK"
)

// Result is the outcome of GenerateInsights.
type Result struct {
	Content   string
	ToolCalls []ToolCall
	State     State
	Fallback  bool
	Err       error
}
