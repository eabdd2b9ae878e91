package narrative

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type pendingCall struct {
	id        string
	synthetic bool
	name      string
	arguments string
}

// Accumulator merges tool-call deltas by position. Argument fragments are
// concatenated as they arrive and parsed once in Finalize.
type Accumulator struct {
	calls map[int]*pendingCall
	now   func() time.Time
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		calls: make(map[int]*pendingCall),
		now:   time.Now,
	}
}

// Add merges one delta. The first delta at an index creates the call; later
// ones append arguments and replace the name only when they carry one. A
// missing id is synthesized from the index and receipt time and is replaced
// if a real id shows up later.
func (a *Accumulator) Add(delta ToolCallDelta) {
	call, ok := a.calls[delta.Index]
	if !ok {
		call = &pendingCall{}
		a.calls[delta.Index] = call
		if delta.ID == "" {
			call.id = fmt.Sprintf("call_%d_%d", delta.Index, a.now().UnixMilli())
			call.synthetic = true
		}
	}

	if delta.ID != "" && (call.id == "" || call.synthetic) {
		call.id = delta.ID
		call.synthetic = false
	}
	if delta.Name != "" {
		call.name = delta.Name
	}
	call.arguments += delta.Arguments
}

func (a *Accumulator) Len() int {
	return len(a.calls)
}

// Finalize returns the accumulated calls ordered by index. Arguments that
// are not a JSON object parse to an empty map.
func (a *Accumulator) Finalize() []ToolCall {
	indexes := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		call := a.calls[idx]
		out = append(out, ToolCall{
			ID:           call.id,
			Name:         call.name,
			Arguments:    parseArguments(call.arguments),
			RawArguments: call.arguments,
		})
	}
	return out
}

func parseArguments(raw string) map[string]interface{} {
	args := map[string]interface{}{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]interface{}{}
	}
	return args
}
