// Package manager provides lifecycle, admission, and agent-chat coordination for
// model instances. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: internal state types (State, ModelInfo, Instance, Snapshot).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, IsDependencyUnavailable).
//   - helpers.go: small utilities (model lookup, VRAM estimation).
//   - queue_admission.go: per-instance queueing and generation admission.
//   - ensure.go: EnsureInstance/EnsureModel lifecycle, engine loading, and agent wiring.
//   - evict.go: eviction logic to fit within VRAM budget.
//   - unload.go: graceful drain and engine teardown for a single instance.
//   - chat.go: conversational API entry point; drives the agent Coordinator and
//     streams AgentEvents as NDJSON.
//   - status_report.go: Status/Snapshot reporting helpers.
//   - events.go: EventPublisher interface and the noop default.
//   - eventpub_memory.go: in-memory EventPublisher that keeps every published event.
//   - lru_persist.go: load/save helpers for an LRU metadata file; the file is
//     loaded at construction, but the loaded data is not consulted and nothing
//     calls the save helper.
//
// Every instance owns exactly one internal/engine.Engine (the loaded model and
// context) and one internal/agent.Coordinator (the bounded tool-dispatch loop
// over that engine). The three in-process/HTTP/subprocess llama adapters the
// teacher carried are superseded entirely by internal/llamacpp + internal/engine,
// which expose the manual batched-prefill/logits access the agent loop needs;
// see DESIGN.md for the itemized justification.
//
// External packages should treat this package as the orchestration layer and use
// public methods only (e.g., New/NewWithConfig, Ready, ListModels, Status, Chat,
// Tools, EnsureInstance, Unload). Internal types are subject to change.
package manager
