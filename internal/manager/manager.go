package manager

import (
	"sync"
	"time"

	"modeld/internal/tool"
	"modeld/pkg/types"
)

type Manager struct {
	mu           sync.RWMutex
	state        State
	cur          *ModelInfo
	err          string
	lastErr      string
	registry     []types.Model
	budgetMB     int
	marginMB     int
	defaultModel string
	// Multi-instance fields
	instances map[string]*Instance
	usedEstMB int

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	// Engine configuration shared by every instance this manager loads.
	contextSize      int
	gpuOffloadLayers int

	// Agent configuration shared by every instance's Coordinator.
	identity string
	persona  string
	tools    *tool.Registry

	// defaultStopSequences fills GenerationParameters.StopSequences on any
	// chat request that doesn't specify its own.
	defaultStopSequences []string

	publisher EventPublisher

	lruPath string
	lruMeta map[string]lruRecord

	startTime time.Time

	evictionsTotal uint64
	loadsTotal     uint64
}

func New(reg []types.Model, budgetMB, marginMB int, defaultModel string) *Manager {
	return NewWithConfig(ManagerConfig{
		Registry:     reg,
		BudgetMB:     budgetMB,
		MarginMB:     marginMB,
		DefaultModel: defaultModel,
	})
}

func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateError {
		return false
	}
	for _, inst := range m.instances {
		if inst.State == StateReady {
			return true
		}
	}
	return m.state == StateReady && m.cur != nil
}

func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// Tools returns the registry shared by every instance's agent coordinator,
// for the /tools HTTP surface.
func (m *Manager) Tools() *tool.Registry { return m.tools }

