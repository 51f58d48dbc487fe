// Package tokenize bridges prompt text to token ids and back. Two
// implementations satisfy the same interface: a real one (build tag
// "llama") that delegates to the loaded model's vocabulary via the native
// binding, and a deterministic stub (default build) used for tests and for
// any deployment without the native library linked.
package tokenize

// Tokenizer converts between prompt text and the model's token id space.
type Tokenizer interface {
	// Encode tokenizes text into token ids.
	Encode(text string) []int32
	// TokenToPiece converts a single token id to its decoded UTF-8 piece.
	// The piece may be a partial code point.
	TokenToPiece(tok int32) string
	// IsEndOfGeneration reports whether tok is a terminal token.
	IsEndOfGeneration(tok int32) bool
	// VocabSize returns the number of distinct token ids, i.e. the length
	// every logits vector this tokenizer's ids index into must have.
	VocabSize() int
}
