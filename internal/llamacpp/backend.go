// Package llamacpp is the thin boundary between the inference engine and
// the native llama.cpp library. Two build-tag-selected implementations
// satisfy the same interfaces: a real cgo binding (build tag "llama") and
// a deterministic in-process stub (default build) used for tests and for
// deployments without the native library linked.
//
// The process-wide backend init/free pair is not thread-safe in the native
// library, so it is guarded here by a refcount under a lock; init/free are
// never called from within a lock held across other work.
package llamacpp

import "sync"

// Model is a loaded set of weights, able to create contexts against them
// and, since vocabulary is a property of the model rather than any one
// context, to tokenize text in and out of its own token id space.
type Model interface {
	NewContext(cfg ContextConfig) (Context, error)
	Tokenize(text string) ([]int32, error)
	TokenToPiece(tok int32) (string, error)
	IsEndOfGeneration(tok int32) bool
	VocabSize() int
	Close() error
}

// ContextConfig mirrors the inference engine's load-time decisions about
// context size, batching and threading.
type ContextConfig struct {
	NCtx           int
	NBatch         int
	NThreads       int
	FlashAttention bool
}

// Context owns the KV cache for one generation lineage.
type Context interface {
	// Decode evaluates tokens starting at position pos. needLogits controls
	// whether logits are computed and returned for the LAST token only (the
	// engine only ever asks for the final token's logits, per the prefill
	// batching rule); it returns nil, nil when needLogits is false.
	Decode(tokens []int32, pos int, needLogits bool) ([]float32, error)
	// ClearKV resets the KV cache so a fresh generation can begin without
	// reloading the model.
	ClearKV()
	// NCtx returns the context window size this Context was created with.
	NCtx() int
	Close() error
}

var (
	backendMu  sync.Mutex
	backendRef int

	// backendInit/backendFree are installed by the build-tag-selected
	// implementation file (stub.go or real.go) via their init().
	backendInit func() error
	backendFree func()

	// loadModel is installed the same way; LoadModel below just forwards.
	loadModel func(path string, gpuOffloadLayers int) (Model, error)
)

// AcquireBackend increments the process-wide refcount, initializing the
// native backend on the 0->1 transition. The returned release func must be
// called exactly once to decrement the refcount, freeing the backend on
// 1->0.
func AcquireBackend() (release func(), err error) {
	backendMu.Lock()
	defer backendMu.Unlock()
	if backendRef == 0 {
		if backendInit != nil {
			if err := backendInit(); err != nil {
				return nil, err
			}
		}
	}
	backendRef++
	return releaseOnce(), nil
}

func releaseOnce() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			backendMu.Lock()
			defer backendMu.Unlock()
			backendRef--
			if backendRef <= 0 {
				backendRef = 0
				if backendFree != nil {
					backendFree()
				}
			}
		})
	}
}

// RefCount reports the current backend refcount; exposed for tests.
func RefCount() int {
	backendMu.Lock()
	defer backendMu.Unlock()
	return backendRef
}

// LoadModel loads a model file with the given GPU offload layer count.
func LoadModel(path string, gpuOffloadLayers int) (Model, error) {
	return loadModel(path, gpuOffloadLayers)
}
