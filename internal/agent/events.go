// Package agent drives a loaded inference engine through a bounded
// ReAct-style loop: stream text, detect tool calls, dispatch them against a
// tool registry, fold results back into the conversation, and repeat until
// the model replies without requesting a tool or the iteration cap is hit.
package agent

// EventKind discriminates AgentEvent's payload. String-valued so the NDJSON
// wire form is self-describing without a side lookup table.
type EventKind string

const (
	EventText            EventKind = "text"
	EventToolCallStarted EventKind = "tool_call_started"
	EventToolExecuting   EventKind = "tool_executing"
	EventToolResult      EventKind = "tool_result"
	EventCompleted       EventKind = "completed"
)

// AgentEvent is the coordinator's unit of streamed output. Seq increases
// monotonically within one Process call, giving an observer an ordering
// guarantee independent of how events interleave across goroutines. Err is
// populated only on the terminal event of a non-cancellation error path.
type AgentEvent struct {
	Seq      uint64    `json:"seq"`
	Kind     EventKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	ToolName string    `json:"tool_name,omitempty"`
	Err      *string   `json:"error,omitempty"`
}

func textEvent(seq uint64, text string) AgentEvent {
	return AgentEvent{Seq: seq, Kind: EventText, Text: text}
}

func toolCallStartedEvent(seq uint64, name string) AgentEvent {
	return AgentEvent{Seq: seq, Kind: EventToolCallStarted, ToolName: name}
}

func toolExecutingEvent(seq uint64, name string) AgentEvent {
	return AgentEvent{Seq: seq, Kind: EventToolExecuting, ToolName: name}
}

func toolResultEvent(seq uint64, name, content string) AgentEvent {
	return AgentEvent{Seq: seq, Kind: EventToolResult, ToolName: name, Text: content}
}

func completedEvent(seq uint64) AgentEvent {
	return AgentEvent{Seq: seq, Kind: EventCompleted}
}

func errorEvent(seq uint64, err error) AgentEvent {
	msg := err.Error()
	return AgentEvent{Seq: seq, Kind: EventCompleted, Err: &msg}
}
