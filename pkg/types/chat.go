package types

import "time"

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation passed to the inference engine.
// Messages are immutable once appended to a conversation slice; callers
// build a new slice rather than mutating one in place.
type Message struct {
	// example: 3fa85f64-5717-4562-b3fc-2c963f66afa6
	ID string `json:"id"`
	// example: user
	Role Role `json:"role"`
	// example: What's the weather like?
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolResult is set on messages with Role == RoleTool.
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ToolCall names a registered tool and the JSON-encoded arguments the model
// wants it invoked with. Arguments is kept as a string (rather than
// json.RawMessage) because it must survive round-tripping through the
// token stream verbatim.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is the structured record of a tool dispatch, retained on the
// conversation for auditing. Only its Content is re-serialized into the
// next prompt; ToolResult itself never crosses back over the wire to the model.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// FinishReason explains why a generation stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolUse   FinishReason = "tool_use"
	FinishCancelled FinishReason = "cancelled"
)

// GenerationParameters controls sampling for a single generation call.
// All numeric fields are clamped by Clamp before use; nothing downstream
// may observe an out-of-range value.
type GenerationParameters struct {
	Temperature   float64  `json:"temperature,omitempty" example:"0.8"`
	TopP          float64  `json:"top_p,omitempty" example:"0.95"`
	TopK          int      `json:"top_k,omitempty" example:"40"`
	MaxTokens     int      `json:"max_tokens,omitempty" example:"512"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty" example:"1.1"`
	StopSequences []string `json:"stop_sequences,omitempty"`
	Seed          int64    `json:"seed,omitempty"`
}

// DefaultGenerationParameters mirrors the values a caller gets by sending
// an empty GenerationParameters object.
func DefaultGenerationParameters() GenerationParameters {
	return GenerationParameters{
		Temperature:   0.8,
		TopP:          0.95,
		TopK:          40,
		MaxTokens:     512,
		RepeatPenalty: 1.1,
	}
}

// Clamp returns params with every numeric field forced into its documented
// range, substituting defaults for zero-valued fields left unset by callers.
func (p GenerationParameters) Clamp() GenerationParameters {
	out := p
	if out.Temperature == 0 {
		out.Temperature = 0.8
	}
	if out.Temperature < 0.01 {
		out.Temperature = 0.01
	}
	if out.Temperature > 2.0 {
		out.Temperature = 2.0
	}
	if out.TopP == 0 {
		out.TopP = 0.95
	}
	if out.TopP < 0 {
		out.TopP = 0
	}
	if out.TopP > 1 {
		out.TopP = 1
	}
	if out.TopK <= 0 {
		out.TopK = 40
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = 512
	}
	if out.RepeatPenalty == 0 {
		out.RepeatPenalty = 1.1
	}
	if out.RepeatPenalty < 1.0 {
		out.RepeatPenalty = 1.0
	}
	if out.RepeatPenalty > 2.0 {
		out.RepeatPenalty = 2.0
	}
	return out
}

// EngineConfiguration describes how to load a model into an inference engine.
type EngineConfiguration struct {
	ModelPath        string
	ContextSize      int
	GPUOffloadLayers int
	Temperature      float64
	TopP             float64
	Seed             int64
}
