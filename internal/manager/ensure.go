package manager

import (
	"context"
	"log"
	"time"

	"modeld/internal/agent"
	"modeld/internal/engine"
	"modeld/pkg/types"
)

// EnsureInstance resolves modelID against the registry, evicts LRU idle
// instances until it fits the VRAM budget, loads an Engine for it, and
// marks the instance ready. A second call on an already-ready instance is a
// cheap no-op that only refreshes LastUsed.
func (m *Manager) EnsureInstance(ctx context.Context, modelID string) error {
	startTs := time.Now()
	if modelID == "" {
		modelID = m.defaultModel
		if modelID == "" {
			return nil
		}
	}
	log.Printf("manager event=ensure_start model=%q", modelID)
	m.publisher.Publish(Event{Name: "ensure_start", ModelID: modelID, Fields: map[string]any{}})

	m.mu.RLock()
	inst, ok := m.instances[modelID]
	ready := ok && inst != nil && inst.State == StateReady
	m.mu.RUnlock()
	if ready {
		m.mu.Lock()
		if inst2, ok2 := m.instances[modelID]; ok2 && inst2 != nil && inst2.State == StateReady {
			inst2.LastUsed = time.Now()
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()
	}

	mdl, ok := m.getModelByID(modelID)
	if !ok {
		log.Printf("manager event=ensure_model_not_found model=%q", modelID)
		m.publisher.Publish(Event{Name: "ensure_model_not_found", ModelID: modelID, Fields: map[string]any{}})
		return ErrModelNotFound(modelID)
	}
	reqMB := m.estimateVRAMMB(mdl)

	if m.budgetMB > 0 {
		if err := m.evictUntilFits(reqMB); err != nil {
			log.Printf("manager event=ensure_budget_fail model=%q err=%v", modelID, err)
			m.publisher.Publish(Event{Name: "ensure_budget_fail", ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
			return err
		}
	}

	m.mu.Lock()
	m.state = StateLoading
	m.err = ""
	if m.instances == nil {
		m.instances = make(map[string]*Instance)
	}
	inst, existed := m.instances[modelID]
	addedNow := false
	if !existed || inst == nil {
		inst = &Instance{
			ID:        modelID,
			State:     StateLoading,
			LastUsed:  time.Now(),
			EstVRAMMB: reqMB,
			genCh:     make(chan struct{}, 1),
			queueCh:   make(chan struct{}, m.maxQueueDepth),
		}
		m.instances[modelID] = inst
		addedNow = true
	} else {
		inst.State = StateLoading
		inst.EstVRAMMB = reqMB
		inst.LastUsed = time.Now()
	}
	m.mu.Unlock()

	eng := engine.New(types.EngineConfiguration{
		ModelPath:        mdl.Path,
		ContextSize:      m.contextSize,
		GPUOffloadLayers: m.gpuOffloadLayers,
	})
	if err := eng.Load(ctx); err != nil {
		m.mu.Lock()
		m.state = StateError
		m.err = err.Error()
		inst.State = StateError
		m.mu.Unlock()
		log.Printf("manager event=ensure_load_error model=%q err=%v", modelID, err)
		m.publisher.Publish(Event{Name: "ensure_load_error", ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
		return err
	}

	m.mu.Lock()
	if addedNow {
		m.usedEstMB += reqMB
	}
	inst.Engine = eng
	inst.Coordinator = agent.New(eng, agent.Config{
		Identity: m.identity,
		Persona:  m.persona,
		Registry: m.tools,
	})
	inst.State = StateReady
	inst.LastUsed = time.Now()
	m.cur = &ModelInfo{ID: modelID}
	m.state = StateReady
	m.err = ""
	m.loadsTotal++
	m.mu.Unlock()
	log.Printf("manager event=ensure_ready model=%q dur_ms=%d", modelID, time.Since(startTs)/time.Millisecond)
	m.publisher.Publish(Event{Name: "ensure_ready", ModelID: modelID, Fields: map[string]any{"dur_ms": int(time.Since(startTs) / time.Millisecond)}})
	return nil
}

// EnsureModel is a thin alias for EnsureInstance: it ensures the named model
// and, on success, makes it the current model.
func (m *Manager) EnsureModel(ctx context.Context, modelID string) error {
	return m.EnsureInstance(ctx, modelID)
}
