package manager

import (
	"context"
	"encoding/json"
	"io"

	"modeld/internal/agent"
	"modeld/pkg/types"
)

// Chat resolves/ensures the requested model, admits the call through the
// single-in-flight queue, and drives the model's agent Coordinator over
// req.Messages. Each AgentEvent is NDJSON-encoded to w and flusher is called
// after every line so callers see partial output as it streams, mirroring
// the teacher's Infer behavior but carrying agent events instead of raw
// tokens.
func (m *Manager) Chat(ctx context.Context, req types.ChatRequest, w io.Writer, flusher func()) error {
	modelID := req.Model
	if modelID == "" {
		modelID = m.defaultModel
	}
	if len(req.Messages) == 0 {
		return ErrDependencyUnavailable("chat request must contain at least one message")
	}

	if err := m.EnsureInstance(ctx, modelID); err != nil {
		return err
	}

	m.mu.RLock()
	inst := m.instances[modelID]
	m.mu.RUnlock()
	if inst == nil {
		return ErrModelNotFound(modelID)
	}

	release, err := m.beginGeneration(ctx, modelID)
	if err != nil {
		return err
	}
	defer release()

	if inst.Engine == nil || inst.Coordinator == nil {
		return ErrDependencyUnavailable("model instance has no loaded engine")
	}

	params := types.DefaultGenerationParameters()
	if req.Parameters != nil {
		params = req.Parameters.Clamp()
	}
	if len(params.StopSequences) == 0 && len(m.defaultStopSequences) > 0 {
		params.StopSequences = m.defaultStopSequences
	}

	events, err := inst.Coordinator.Process(ctx, req.Messages, params)
	if err != nil {
		if agent.IsAlreadyProcessing(err) {
			return tooBusyError{modelID: modelID}
		}
		return err
	}

	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher()
		}
	}
	return nil
}
