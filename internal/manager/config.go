package manager

import (
	"time"

	"modeld/internal/tool"
	"modeld/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 10 * time.Second
	defaultContextSize   = 4096
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry      []types.Model
	BudgetMB      int
	MarginMB      int
	DefaultModel  string
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration

	// Engine configuration applied to every instance's EngineConfiguration.
	ContextSize      int
	GPUOffloadLayers int

	// Agent configuration applied to every instance's Coordinator.
	Identity string
	Persona  string
	Tools    *tool.Registry

	// DefaultStopSequences fills GenerationParameters.StopSequences for chat
	// requests that don't specify their own.
	DefaultStopSequences []string

	Publisher EventPublisher
	LRUPath   string
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:            StateLoading,
		registry:         cfg.Registry,
		budgetMB:         cfg.BudgetMB,
		marginMB:         cfg.MarginMB,
		defaultModel:     cfg.DefaultModel,
		instances:        make(map[string]*Instance),
		contextSize:      cfg.ContextSize,
		gpuOffloadLayers: cfg.GPUOffloadLayers,
		identity:         cfg.Identity,
		persona:          cfg.Persona,
		tools:            cfg.Tools,
		defaultStopSequences: append([]string(nil), cfg.DefaultStopSequences...),
		lruPath:          cfg.LRUPath,
		startTime:        time.Now(),
	}
	if m.contextSize <= 0 {
		m.contextSize = defaultContextSize
	}
	if m.tools == nil {
		m.tools = tool.NewDefaultRegistry()
	}
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if cfg.Publisher != nil {
		m.publisher = cfg.Publisher
	} else {
		m.publisher = noopPublisher{}
	}
	m.loadLRUMetadata()
	return m
}
