package window

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncodingModel selects the BPE encoding used by NewTiktoken when no
// model is given.
const DefaultEncodingModel = "gpt-4o"

// Tokenizer encodes text into tokens and back. Decode(Encode(s)) must equal s
// and decoding a token prefix must yield a byte prefix of s.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Compile-time assertions
var (
	_ Tokenizer = (*Tiktoken)(nil)
	_ Tokenizer = RuneTokenizer{}
)

// Tiktoken counts tokens with the BPE encoding of an OpenAI model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the encoding for model. The first load for an encoding
// may fetch its ranks over the network; set TIKTOKEN_CACHE_DIR to reuse them.
func NewTiktoken(model string) (*Tiktoken, error) {
	if model == "" {
		model = DefaultEncodingModel
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("tiktoken encoding for %q: %w", model, err)
	}

	return &Tiktoken{enc: enc}, nil
}

// Encode returns the BPE tokens of text. Special tokens are treated as text.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode returns the text of tokens.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// RuneTokenizer treats every rune as one token. It over-counts relative to a
// BPE tokenizer and therefore never exceeds a budget chosen for one.
type RuneTokenizer struct{}

// Encode returns one token per rune.
func (RuneTokenizer) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}

	return tokens
}

// Decode joins runes back into text.
func (RuneTokenizer) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}

	return string(runes)
}
