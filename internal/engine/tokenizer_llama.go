//go:build llama

package engine

import (
	"modeld/internal/llamacpp"
	"modeld/internal/tokenize"
)

// newEngineTokenizer binds to the loaded model's own vocabulary.
func newEngineTokenizer(model llamacpp.Model) tokenize.Tokenizer {
	return tokenize.NewFromModel(model)
}
