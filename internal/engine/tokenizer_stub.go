//go:build !llama

package engine

import (
	"modeld/internal/llamacpp"
	"modeld/internal/tokenize"
)

// newEngineTokenizer ignores model in the default build: the deterministic
// stub tokenizer is model-agnostic.
func newEngineTokenizer(_ llamacpp.Model) tokenize.Tokenizer {
	return tokenize.New()
}
