//go:build llama

package llamacpp

/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama -lggml -lggml-base
#cgo CFLAGS: -I${SRCDIR}/../../third_party/llama.cpp/include
#include <stdlib.h>
#include "llama.h"
*/
import "C"

import (
	"errors"
	"unsafe"
)

func init() {
	backendInit = func() error {
		C.llama_backend_init()
		return nil
	}
	backendFree = func() {
		C.llama_backend_free()
	}
	loadModel = realLoadModel
}

// realModel wraps a loaded llama_model handle.
type realModel struct {
	cModel *C.struct_llama_model
	vocab  *C.struct_llama_vocab
}

func realLoadModel(path string, gpuOffloadLayers int) (Model, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	params := C.llama_model_default_params()
	params.n_gpu_layers = C.int32_t(gpuOffloadLayers)

	cModel := C.llama_model_load_from_file(cpath, params)
	if cModel == nil {
		return nil, errors.New("failed_to_load: llama_model_load_from_file returned null")
	}
	return &realModel{cModel: cModel, vocab: C.llama_model_get_vocab(cModel)}, nil
}

func (m *realModel) NewContext(cfg ContextConfig) (Context, error) {
	params := C.llama_context_default_params()
	params.n_ctx = C.uint32_t(cfg.NCtx)
	params.n_batch = C.uint32_t(cfg.NBatch)
	params.n_threads = C.int32_t(cfg.NThreads)
	params.n_threads_batch = C.int32_t(cfg.NThreads)
	params.flash_attn = C.bool(cfg.FlashAttention)

	cCtx := C.llama_init_from_model(m.cModel, params)
	if cCtx == nil {
		return nil, errors.New("context_creation_failed: llama_init_from_model returned null")
	}

	return &realContext{model: m, cCtx: cCtx, nCtx: cfg.NCtx, nBatch: cfg.NBatch}, nil
}

func (m *realModel) Close() error {
	if m.cModel != nil {
		C.llama_model_free(m.cModel)
		m.cModel = nil
	}
	return nil
}

func (m *realModel) Tokenize(text string) ([]int32, error) {
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))

	n := C.int32_t(len(text) + 8)
	buf := make([]C.llama_token, n)
	got := C.llama_tokenize(m.vocab, cText, C.int32_t(len(text)), &buf[0], n, true, true)
	if got < 0 {
		n = -got
		buf = make([]C.llama_token, n)
		got = C.llama_tokenize(m.vocab, cText, C.int32_t(len(text)), &buf[0], n, true, true)
		if got < 0 {
			return nil, errors.New("generation_failed: tokenization buffer too small")
		}
	}
	out := make([]int32, got)
	for i := 0; i < int(got); i++ {
		out[i] = int32(buf[i])
	}
	return out, nil
}

// TokenToPiece follows the negative-return-means-resize convention: a
// negative return value means the buffer was too small and -count+1 is the
// required size, so the call is retried once with a sized buffer.
func (m *realModel) TokenToPiece(tok int32) (string, error) {
	buf := make([]C.char, 32)
	n := C.llama_token_to_piece(m.vocab, C.llama_token(tok), &buf[0], C.int32_t(len(buf)), 0, false)
	if n < 0 {
		needed := -n + 1
		buf = make([]C.char, needed)
		n = C.llama_token_to_piece(m.vocab, C.llama_token(tok), &buf[0], C.int32_t(len(buf)), 0, false)
		if n < 0 {
			return "", errors.New("generation_failed: token-to-piece buffer too small")
		}
	}
	return C.GoStringN(&buf[0], n), nil
}

func (m *realModel) IsEndOfGeneration(tok int32) bool {
	return bool(C.llama_vocab_is_eog(m.vocab, C.llama_token(tok)))
}

func (m *realModel) VocabSize() int {
	return int(C.llama_vocab_n_tokens(m.vocab))
}

// realContext wraps a llama_context. Sampling itself is performed in
// internal/sampler against the logits this Context retrieves, per the
// spec's explicit sampler-chain ordering; this type only evaluates the
// model and hands back raw logits.
type realContext struct {
	model  *realModel
	cCtx   *C.struct_llama_context
	nCtx   int
	nBatch int
}

func (c *realContext) Decode(tokens []int32, pos int, needLogits bool) ([]float32, error) {
	n := C.int32_t(len(tokens))
	batch := C.llama_batch_init(n, 0, 1)
	defer C.llama_batch_free(batch)

	cTokens := (*[1 << 30]C.llama_token)(unsafe.Pointer(batch.token))[:len(tokens):len(tokens)]
	cPos := (*[1 << 30]C.llama_pos)(unsafe.Pointer(batch.pos))[:len(tokens):len(tokens)]
	cLogits := (*[1 << 30]C.int8_t)(unsafe.Pointer(batch.logits))[:len(tokens):len(tokens)]
	for i, t := range tokens {
		cTokens[i] = C.llama_token(t)
		cPos[i] = C.llama_pos(pos + i)
		cLogits[i] = 0
	}
	batch.n_tokens = n
	if needLogits && len(tokens) > 0 {
		cLogits[len(tokens)-1] = 1
	}

	if rc := C.llama_decode(c.cCtx, batch); rc != 0 {
		return nil, errors.New("generation_failed: llama_decode returned non-zero")
	}
	if !needLogits {
		return nil, nil
	}

	nVocab := int(C.llama_vocab_n_tokens(c.model.vocab))
	cLogitsOut := C.llama_get_logits_ith(c.cCtx, C.int32_t(len(tokens)-1))
	logits := make([]float32, nVocab)
	src := (*[1 << 30]C.float)(unsafe.Pointer(cLogitsOut))[:nVocab:nVocab]
	for i := 0; i < nVocab; i++ {
		logits[i] = float32(src[i])
	}
	return logits, nil
}

func (c *realContext) ClearKV() {
	C.llama_kv_self_clear(c.cCtx)
}

func (c *realContext) NCtx() int { return c.nCtx }

func (c *realContext) Close() error {
	if c.cCtx != nil {
		C.llama_free(c.cCtx)
		c.cCtx = nil
	}
	return nil
}
