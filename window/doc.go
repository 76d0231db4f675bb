// Package window turns a conversation into the bounded text window used as
// the recall query at the top of every turn.
//
// Messages are serialized into a role-prefixed buffer string ("Human:",
// "AI:", "Tool:") and then cut to a token budget by dropping the oldest
// tokens, so the window is always a suffix of the full buffer. Token counts
// come from a Tokenizer: NewTiktoken for a model-compatible BPE count or
// RuneTokenizer when no encoding is available.
package window
