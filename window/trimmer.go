package window

import (
	"unicode/utf8"

	"github.com/hupe1980/recallmesh/core"
)

// DefaultBudget is the token budget of the recall window.
const DefaultBudget = 2048

// Options configure a Trimmer.
type Options struct {
	// Budget is the maximum number of tokens kept. Non-positive values fall
	// back to DefaultBudget.
	Budget int
}

// Trimmer cuts text to the most recent Budget tokens.
type Trimmer struct {
	tokenizer Tokenizer
	budget    int
}

// NewTrimmer creates a trimmer counting with tokenizer (RuneTokenizer if nil).
func NewTrimmer(tokenizer Tokenizer, optFns ...func(o *Options)) *Trimmer {
	opts := Options{Budget: DefaultBudget}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}

	if tokenizer == nil {
		tokenizer = RuneTokenizer{}
	}

	return &Trimmer{tokenizer: tokenizer, budget: opts.Budget}
}

// Budget returns the configured token budget.
func (t *Trimmer) Budget() int { return t.budget }

// Count returns the number of tokens in text.
func (t *Trimmer) Count(text string) int { return len(t.tokenizer.Encode(text)) }

// Context renders messages as a buffer string and trims it to the budget.
func (t *Trimmer) Context(messages []core.Content) string {
	return t.Trim(BufferString(messages))
}

// Trim returns the longest suffix of text whose token count fits the budget.
// The cut lands on a rune boundary and the result is always a suffix of text.
func (t *Trimmer) Trim(text string) string {
	tokens := t.tokenizer.Encode(text)
	if len(tokens) <= t.budget {
		return text
	}

	// Decoded token prefixes are byte prefixes of text, so the length of the
	// dropped head is the cut offset.
	cut := len(t.tokenizer.Decode(tokens[:len(tokens)-t.budget]))

	for {
		for cut < len(text) && !utf8.RuneStart(text[cut]) {
			cut++
		}

		suffix := text[cut:]
		if t.Count(suffix) <= t.budget || cut >= len(text) {
			return suffix
		}

		// Retokenizing a suffix may merge differently; drop one more rune.
		_, size := utf8.DecodeRuneInString(suffix)
		cut += size
	}
}
