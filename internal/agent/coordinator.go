package agent

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"modeld/internal/engine"
	"modeld/internal/prompt"
	"modeld/internal/tool"
	"modeld/pkg/types"
)

// maxIterations bounds the ReAct loop: the model gets this many chances to
// either answer directly or chain a tool call before the coordinator gives
// up and reports the depth cap.
const maxIterations = 5

// Config carries everything Process needs beyond the conversation itself.
type Config struct {
	Identity string
	Persona  string
	Registry *tool.Registry
}

// Driver is the slice of *engine.Engine the coordinator depends on. Engine
// satisfies it directly; tests supply a fake to drive the loop through
// specific token sequences without a loaded model.
type Driver interface {
	Generate(ctx context.Context, messages []types.Message, params types.GenerationParameters) (<-chan engine.TokenEvent, error)
	CancelGeneration()
}

// Coordinator drives one Engine through the bounded tool-use loop described
// in Process. It is not safe for concurrent Process calls on the same
// Coordinator; pair one Coordinator with one Engine, the same way the
// engine itself rejects concurrent Generate calls.
type Coordinator struct {
	eng Driver
	cfg Config

	processing atomic.Bool
	cancel     atomic.Bool
}

// New returns a Coordinator driving eng.
func New(eng Driver, cfg Config) *Coordinator {
	if cfg.Registry == nil {
		cfg.Registry = tool.NewRegistry()
	}
	return &Coordinator{eng: eng, cfg: cfg}
}

// Cancel cancels the driving loop and the underlying engine's in-flight
// generation, then resets local processing state. Idempotent: calls after
// the first are no-ops.
func (c *Coordinator) Cancel() {
	if !c.cancel.CompareAndSwap(false, true) {
		return
	}
	c.eng.CancelGeneration()
	c.processing.Store(false)
}

// Process drives the bounded ReAct loop described in package agent's doc
// comment and returns a lazy stream of AgentEvents. Only one Process call
// may run at a time on a given Coordinator.
func (c *Coordinator) Process(ctx context.Context, messages []types.Message, params types.GenerationParameters) (<-chan AgentEvent, error) {
	if !c.processing.CompareAndSwap(false, true) {
		return nil, AlreadyProcessingError{}
	}
	c.cancel.Store(false)

	out := make(chan AgentEvent, 16)
	go func() {
		defer close(out)
		defer c.processing.Store(false)
		c.run(ctx, messages, params, out)
	}()
	return out, nil
}

func (c *Coordinator) run(ctx context.Context, messages []types.Message, params types.GenerationParameters, out chan<- AgentEvent) {
	var seq uint64
	next := func() uint64 { seq++; return seq }

	conv := withSystemPrompt(messages, c.cfg.Identity, c.cfg.Persona, c.cfg.Registry)

	for iteration := 0; iteration < maxIterations; iteration++ {
		if c.cancelled(ctx) {
			return
		}

		stream, err := c.eng.Generate(ctx, conv, params)
		if err != nil {
			out <- errorEvent(next(), err)
			return
		}

		var accumulated string
		var pending []types.ToolCall
		var finish types.FinishReason
		var genErr error

		for ev := range stream {
			switch ev.Kind {
			case engine.EventToken:
				accumulated += ev.Text
				out <- textEvent(next(), ev.Text)
			case engine.EventToolCall:
				pending = append(pending, ev.ToolCall)
				out <- toolCallStartedEvent(next(), ev.ToolCall.Name)
			case engine.EventDone:
				finish = ev.Finish
			case engine.EventError:
				genErr = ev.Err
			}
		}

		if finish == types.FinishCancelled {
			return
		}
		if genErr != nil {
			out <- errorEvent(next(), genErr)
			return
		}

		if len(pending) == 0 {
			out <- completedEvent(next())
			return
		}

		conv = append(conv, types.Message{
			Role:      types.RoleAssistant,
			Content:   accumulated,
			Timestamp: stamp(),
			ToolCalls: pending,
		})

		lastIteration := iteration == maxIterations-1

		for _, tc := range pending {
			if c.cancelled(ctx) {
				return
			}
			out <- toolExecutingEvent(next(), tc.Name)

			args := parseArguments(tc.Arguments)
			result, dispatchErr := c.cfg.Registry.ExecuteByName(ctx, tc.Name, args)

			content := result.Content
			isError := result.IsError
			if dispatchErr != nil {
				content = toolFailureError{name: tc.Name, msg: dispatchErr.Error()}.Error()
				isError = true
			}

			out <- toolResultEvent(next(), tc.Name, content)

			conv = append(conv, types.Message{
				Role:      types.RoleTool,
				Content:   content,
				Timestamp: stamp(),
				ToolResult: &types.ToolResult{
					ToolCallID: tc.ID,
					Content:    content,
					IsError:    isError,
				},
			})
		}

		if lastIteration {
			out <- textEvent(next(), DepthCapNotice)
			out <- completedEvent(next())
			return
		}
	}
}

func (c *Coordinator) cancelled(ctx context.Context) bool {
	if c.cancel.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// withSystemPrompt prepends a system message built from identity, persona
// and the tool registry's catalog when messages does not already start with
// one.
func withSystemPrompt(messages []types.Message, identity, persona string, registry *tool.Registry) []types.Message {
	if len(messages) > 0 && messages[0].Role == types.RoleSystem {
		return messages
	}
	sys := types.Message{
		Role:      types.RoleSystem,
		Content:   prompt.BuildSystemPrompt(identity, persona, registry),
		Timestamp: stamp(),
	}
	out := make([]types.Message, 0, len(messages)+1)
	out = append(out, sys)
	out = append(out, messages...)
	return out
}

// parseArguments parses a tool call's arguments string as a JSON object,
// defaulting to an empty object on any parse failure so a malformed payload
// never blocks dispatch.
func parseArguments(raw string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func stamp() time.Time { return time.Now().UTC() }
