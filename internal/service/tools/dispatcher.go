package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/metrics"
)

// ErrUnknownTool is returned when no built-in or registered tool matches.
var ErrUnknownTool = errors.New("unknown tool")

// Definition describes a callable tool to the model. Parameters is a JSON
// schema object.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Tool is a built-in tool.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Provider supplies additional tools from outside the process.
type Provider interface {
	Definitions(ctx context.Context) ([]Definition, error)
	Execute(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

// ErrorResult is the structured result of a failed tool call.
type ErrorResult struct {
	Error string `json:"error"`
}

// Dispatcher runs built-in tools and delegates everything else to the
// provider registry. Execute never returns an error: failures become an
// ErrorResult that can be fed back to the model.
type Dispatcher struct {
	builtins map[string]Tool
	registry Provider
	logger   *zap.Logger
	metrics  *metrics.Registry
}

// NewDispatcher creates a dispatcher. registry may be nil.
func NewDispatcher(registry Provider, logger *zap.Logger, m *metrics.Registry, builtins ...Tool) *Dispatcher {
	d := &Dispatcher{
		builtins: make(map[string]Tool, len(builtins)),
		registry: registry,
		logger:   logger,
		metrics:  m,
	}
	for _, tool := range builtins {
		d.builtins[tool.Definition().Name] = tool
	}
	return d
}

// Definitions lists built-in tools sorted by name followed by registry
// tools. Registry tools shadowed by a built-in are dropped.
func (d *Dispatcher) Definitions(ctx context.Context) []Definition {
	defs := make([]Definition, 0, len(d.builtins))
	for _, tool := range d.builtins {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	if d.registry == nil {
		return defs
	}

	external, err := d.registry.Definitions(ctx)
	if err != nil {
		d.logger.Warn("tool registry unavailable", zap.Error(err))
		return defs
	}
	for _, def := range external {
		if _, shadowed := d.builtins[def.Name]; shadowed {
			continue
		}
		defs = append(defs, def)
	}
	return defs
}

// Execute runs the named tool. The returned value is either the tool's
// JSON-serializable result or an ErrorResult.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]interface{}) (result interface{}) {
	if args == nil {
		args = map[string]interface{}{}
	}

	defer func() {
		if r := recover(); r != nil {
			err := domainerrors.NewToolExecutionError(name, fmt.Sprintf("tool panicked: %v", r))
			d.logger.Error("tool execution panicked", zap.String("tool", name), zap.Error(err))
			d.metrics.RecordToolCall(ctx, name, false)
			result = ErrorResult{Error: err.Error()}
		}
	}()

	out, err := d.execute(ctx, name, args)
	if err != nil {
		d.logger.Warn("tool execution failed", zap.String("tool", name), zap.Error(err))
		d.metrics.RecordToolCall(ctx, name, false)
		return ErrorResult{Error: err.Error()}
	}

	d.metrics.RecordToolCall(ctx, name, true)
	return out
}

func (d *Dispatcher) execute(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	if tool, ok := d.builtins[name]; ok {
		return tool.Execute(ctx, args)
	}

	if d.registry == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return d.registry.Execute(ctx, name, args)
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
