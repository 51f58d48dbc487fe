package engine

import "modeld/pkg/types"

// EventKind discriminates TokenEvent's payload.
type EventKind int

const (
	EventToken EventKind = iota
	EventToolCall
	EventDone
	EventError
)

// TokenEvent is the engine's unit of streamed output: a decoded text
// fragment, a parsed tool call, a terminal finish marker, or a terminal
// error. Exactly one of Text/ToolCall/Finish/Err is meaningful, selected by
// Kind. An EventError is always the last event on the channel, the same way
// EventDone is.
type TokenEvent struct {
	Kind     EventKind
	Text     string
	ToolCall types.ToolCall
	Finish   types.FinishReason
	Err      error
}

func tokenEvent(text string) TokenEvent { return TokenEvent{Kind: EventToken, Text: text} }

func toolCallEvent(tc types.ToolCall) TokenEvent { return TokenEvent{Kind: EventToolCall, ToolCall: tc} }

func doneEvent(reason types.FinishReason) TokenEvent {
	return TokenEvent{Kind: EventDone, Finish: reason}
}

func errorEvent(err error) TokenEvent { return TokenEvent{Kind: EventError, Err: err} }
