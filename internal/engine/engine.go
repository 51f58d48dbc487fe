// Package engine owns a loaded model and context, runs prefill and
// autoregressive decode, and yields a lazy stream of TokenEvents while
// detecting embedded tool-call markers and honoring cancellation at token
// granularity.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"modeld/internal/llamacpp"
	"modeld/internal/prompt"
	"modeld/internal/sampler"
	"modeld/internal/tokenize"
	"modeld/pkg/types"
)

const (
	minContextSize = 512
	batchSize      = 512
)

// Engine owns a model handle and a context handle; neither outlives the
// Engine. Construct with New, then Load before any Generate call; Unload
// releases resources in reverse-acquire order (context, then model, then
// the process-wide backend refcount).
type Engine struct {
	cfg types.EngineConfiguration

	releaseBackend func()
	model          llamacpp.Model
	ctx            llamacpp.Context
	tokenizer      tokenize.Tokenizer

	generating atomic.Bool
	cancelFlag atomic.Bool

	loaded atomic.Bool
}

// New constructs an idle Engine from cfg. Load must be called before use.
func New(cfg types.EngineConfiguration) *Engine {
	return &Engine{cfg: cfg}
}

// Load verifies the model file exists, acquires the process-wide backend,
// loads the model, and creates a context. Heavy work runs on a background
// executor via errgroup, which also propagates the first error and is
// cancellation-aware through ctx. Failure at any step releases all earlier
// acquisitions (backend last).
func (e *Engine) Load(ctx context.Context) error {
	if _, err := os.Stat(e.cfg.ModelPath); err != nil {
		return newErr(KindModelNotFound, e.cfg.ModelPath)
	}

	release, err := llamacpp.AcquireBackend()
	if err != nil {
		return newErr(KindFailedToLoad, err.Error())
	}

	g, _ := errgroup.WithContext(ctx)
	var model llamacpp.Model
	var llmCtx llamacpp.Context
	g.Go(func() error {
		m, err := llamacpp.LoadModel(e.cfg.ModelPath, e.cfg.GPUOffloadLayers)
		if err != nil {
			return newErr(KindFailedToLoad, err.Error())
		}
		model = m

		nCtx := e.cfg.ContextSize
		if nCtx < minContextSize {
			nCtx = minContextSize
		}
		nThreads := runtime.NumCPU() - 2
		if nThreads < 1 {
			nThreads = 1
		}
		c, err := m.NewContext(llamacpp.ContextConfig{
			NCtx:           nCtx,
			NBatch:         batchSize,
			NThreads:       nThreads,
			FlashAttention: true,
		})
		if err != nil {
			model.Close()
			model = nil
			return newErr(KindContextCreateFailed, err.Error())
		}
		llmCtx = c
		return nil
	})
	if err := g.Wait(); err != nil {
		release()
		return err
	}
	if ctx.Err() != nil {
		if llmCtx != nil {
			llmCtx.Close()
		}
		if model != nil {
			model.Close()
		}
		release()
		return ctx.Err()
	}

	e.releaseBackend = release
	e.model = model
	e.ctx = llmCtx
	e.tokenizer = newEngineTokenizer(model)
	e.loaded.Store(true)
	return nil
}

// Unload releases the context, then the model, then decrements the
// process-wide backend refcount (freeing the backend at refcount zero).
func (e *Engine) Unload(context.Context) error {
	if !e.loaded.Load() {
		return nil
	}
	if e.ctx != nil {
		e.ctx.Close()
		e.ctx = nil
	}
	if e.model != nil {
		e.model.Close()
		e.model = nil
	}
	if e.releaseBackend != nil {
		e.releaseBackend()
		e.releaseBackend = nil
	}
	e.loaded.Store(false)
	return nil
}

// CancelGeneration sets the shared atomic cancel flag. It is the stream's
// termination hook: called by an observer dropping the stream, or by the
// coordinator's cancel(). It never raises; the flag is merely polled by the
// decode loop, which transitions cleanly to done(cancelled).
func (e *Engine) CancelGeneration() {
	e.cancelFlag.Store(true)
}

// Generate returns a lazy stream of TokenEvents. Exactly one generation may
// be in flight on a given Engine; a concurrent call fails fast. The
// producer runs detached on its own goroutine so the caller only awaits
// receives on the returned channel.
func (e *Engine) Generate(ctx context.Context, messages []types.Message, params types.GenerationParameters) (<-chan TokenEvent, error) {
	if !e.loaded.Load() {
		return nil, newErr(KindModelNotLoaded, "")
	}
	if !e.generating.CompareAndSwap(false, true) {
		return nil, newErr(KindGenerationFailed, "already in progress")
	}

	params = params.Clamp()
	e.cancelFlag.Store(false)

	out := make(chan TokenEvent, 16)
	go func() {
		defer close(out)
		defer e.generating.Store(false)
		e.run(ctx, messages, params, out)
	}()
	return out, nil
}

func (e *Engine) run(ctx context.Context, messages []types.Message, params types.GenerationParameters, out chan<- TokenEvent) {
	e.ctx.ClearKV()

	text := prompt.FormatChatML(messages)
	ids := e.tokenizer.Encode(text)
	if len(ids) == 0 {
		out <- errorEvent(newErr(KindGenerationFailed, "empty tokenization"))
		return
	}
	nCtx := e.ctx.NCtx()
	if len(ids) >= nCtx {
		out <- errorEvent(newErr(KindGenerationFailed,
			fmt.Sprintf("prompt has %d tokens, context size is %d", len(ids), nCtx)))
		return
	}

	history := append([]int32(nil), ids...)

	var logits []float32
	for i := 0; i < len(ids); i += batchSize {
		if e.cancelled(ctx) {
			out <- doneEvent(types.FinishCancelled)
			return
		}
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		isLastBatch := end == len(ids)
		l, err := e.ctx.Decode(ids[i:end], i, isLastBatch)
		if err != nil {
			out <- errorEvent(newErr(KindGenerationFailed, err.Error()))
			return
		}
		if isLastBatch {
			logits = l
		}
	}

	seed := params.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	chain := sampler.New(params, seed)
	detector := newToolCallDetector()
	pos := len(ids)
	generated := 0

	for generated < params.MaxTokens {
		if e.cancelled(ctx) {
			out <- doneEvent(types.FinishCancelled)
			return
		}

		tok := chain.Sample(logits, history)

		if e.tokenizer.IsEndOfGeneration(tok) {
			if tc, ok := detector.FlushAtEndOfGeneration(); ok {
				out <- toolCallEvent(*tc)
				out <- doneEvent(types.FinishToolUse)
				return
			}
			out <- doneEvent(types.FinishStop)
			return
		}

		piece := e.tokenizer.TokenToPiece(tok)
		res := detector.Feed(piece)
		if res.forwardText != "" {
			out <- tokenEvent(res.forwardText)
		}
		if res.closedCall != nil {
			out <- toolCallEvent(*res.closedCall)
		}

		history = append(history, tok)
		l, err := e.ctx.Decode([]int32{tok}, pos, true)
		if err != nil {
			out <- errorEvent(newErr(KindGenerationFailed, err.Error()))
			return
		}
		logits = l
		pos++
		generated++
	}

	if trailing := detector.FlushTrailingText(); trailing != "" {
		out <- tokenEvent(trailing)
	}
	out <- doneEvent(types.FinishLength)
}

func (e *Engine) cancelled(ctx context.Context) bool {
	if e.cancelFlag.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

