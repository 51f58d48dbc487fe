//go:build !llama

package llamacpp

import (
	"errors"
	"math/rand"
	"os"
)

// stubVocabSize matches internal/tokenize's byte-level stub tokenizer
// (256 byte values + 1 end-of-generation id). Logits vectors this package
// returns always have this length so sampler code can index them by the
// stub tokenizer's token ids.
const stubVocabSize = 257

func init() {
	backendInit = func() error { return nil }
	backendFree = func() {}
	loadModel = stubLoadModel
}

func stubLoadModel(path string, gpuOffloadLayers int) (Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &stubModel{path: path}, nil
}

// stubModel is a deployable stand-in for a real loaded GGUF model: it lets
// the whole inference engine run end to end (prefill, decode, sampler
// chain, tool-call marker detection, cancellation) without cgo or a GPU.
// Its "logits" are a seeded pseudo-random distribution over the byte
// vocabulary rather than anything learned; it is not a language model.
type stubModel struct{ path string }

func (m *stubModel) NewContext(cfg ContextConfig) (Context, error) {
	if cfg.NCtx <= 0 {
		return nil, errors.New("context size must be positive")
	}
	return &stubContext{cfg: cfg, seed: hashPath(m.path)}, nil
}

func (m *stubModel) Close() error { return nil }

// Tokenize/TokenToPiece/IsEndOfGeneration/VocabSize mirror
// internal/tokenize's stand-alone byte-level stub tokenizer, so token ids
// from this model and from the default tokenize.New() agree.
func (m *stubModel) Tokenize(text string) ([]int32, error) {
	b := []byte(text)
	out := make([]int32, len(b))
	for i, c := range b {
		out[i] = int32(c)
	}
	return out, nil
}

func (m *stubModel) TokenToPiece(tok int32) (string, error) {
	if tok < 0 || int(tok) >= stubVocabSize-1 {
		return "", nil
	}
	return string([]byte{byte(tok)}), nil
}

func (m *stubModel) IsEndOfGeneration(tok int32) bool { return int(tok) == stubVocabSize-1 }

func (m *stubModel) VocabSize() int { return stubVocabSize }

func hashPath(s string) int64 {
	var h int64 = 1469598103934665603
	for _, c := range []byte(s) {
		h ^= int64(c)
		h *= 1099511628211
	}
	if h < 0 {
		h = -h
	}
	return h
}

type stubContext struct {
	cfg   ContextConfig
	seed  int64
	total int // tokens decoded so far, for context-overflow accounting
}

func (c *stubContext) Decode(tokens []int32, pos int, needLogits bool) ([]float32, error) {
	if pos+len(tokens) > c.cfg.NCtx {
		return nil, errors.New("decode: context window exceeded")
	}
	c.total = pos + len(tokens)
	if !needLogits {
		return nil, nil
	}
	r := rand.New(rand.NewSource(c.seed + int64(c.total)))
	logits := make([]float32, stubVocabSize)
	for i := range logits {
		logits[i] = r.Float32()
	}
	return logits, nil
}

func (c *stubContext) ClearKV() { c.total = 0 }

func (c *stubContext) NCtx() int { return c.cfg.NCtx }

func (c *stubContext) Close() error { return nil }
