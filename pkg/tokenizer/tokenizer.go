// Package tokenizer counts and trims text by model tokens.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/entrhq/mailwright/pkg/types"
	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the BPE used for budgeting. It is an approximation for
// non-OpenAI models, which is all a budget needs.
const encodingName = "cl100k_base"

// charsPerToken is the estimate used when no encoding is available.
const charsPerToken = 4

// Tokenizer counts tokens with tiktoken, falling back to a character
// estimate when the encoding could not be loaded.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New loads the encoding. On error the returned Tokenizer is still usable
// and estimates counts from character length.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return &Tokenizer{}, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	return &Tokenizer{encoding: enc}, nil
}

// Estimating returns a tokenizer that only uses the character estimate.
func Estimating() *Tokenizer {
	return &Tokenizer{}
}

// CountTokens returns the token count of text.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.encoding == nil {
		return (len(text) + charsPerToken - 1) / charsPerToken
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// CountMessagesTokens returns the token count of a message list including
// the per-message framing overhead of chat formats.
func (t *Tokenizer) CountMessagesTokens(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		total += 4 + t.CountTokens(string(msg.Role)) + t.CountTokens(msg.Content)
	}
	return total + 2
}

// TruncationMarker is prepended when the start of a text was dropped.
const TruncationMarker = "[Earlier messages truncated]\n"

// KeepTail returns text unchanged when it fits in maxTokens, otherwise its
// trailing maxTokens tokens prefixed with TruncationMarker. The end of a
// transcript holds the most recent messages, so it is the part kept.
func (t *Tokenizer) KeepTail(text string, maxTokens int) string {
	if maxTokens <= 0 || t.CountTokens(text) <= maxTokens {
		return text
	}

	if t == nil || t.encoding == nil {
		keep := maxTokens * charsPerToken
		tail := text[len(text)-keep:]
		// Do not start in the middle of a UTF-8 sequence or a line
		if i := strings.IndexByte(tail, '\n'); i >= 0 && i < len(tail)/2 {
			tail = tail[i+1:]
		}
		return TruncationMarker + strings.ToValidUTF8(tail, "")
	}

	tokens := t.encoding.Encode(text, nil, nil)
	tail := t.encoding.Decode(tokens[len(tokens)-maxTokens:])
	if i := strings.IndexByte(tail, '\n'); i >= 0 && i < len(tail)/2 {
		tail = tail[i+1:]
	}
	return TruncationMarker + strings.ToValidUTF8(tail, "")
}
