//go:build llama

package tokenize

import "modeld/internal/llamacpp"

// llamaTokenizer delegates tokenization to the loaded model's vocabulary via
// the native binding: llama_tokenize for Encode, llama_token_to_piece
// (with the negative-return resize convention, handled inside llamacpp) for
// TokenToPiece, and llama_vocab_is_eog for IsEndOfGeneration.
type llamaTokenizer struct {
	model llamacpp.Model
}

// NewFromModel returns the llama-build tokenizer bound to model's vocabulary.
func NewFromModel(model llamacpp.Model) Tokenizer {
	return llamaTokenizer{model: model}
}

func (t llamaTokenizer) Encode(text string) []int32 {
	ids, err := t.model.Tokenize(text)
	if err != nil {
		return nil
	}
	return ids
}

func (t llamaTokenizer) TokenToPiece(tok int32) string {
	piece, _ := t.model.TokenToPiece(tok)
	return piece
}

func (t llamaTokenizer) IsEndOfGeneration(tok int32) bool {
	return t.model.IsEndOfGeneration(tok)
}

func (t llamaTokenizer) VocabSize() int { return t.model.VocabSize() }
