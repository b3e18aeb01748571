package tokenizer

import (
	"strings"
	"testing"

	"github.com/entrhq/mailwright/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := New()
	if err != nil {
		// Encoding download is unavailable in some environments
		t.Logf("tokenizer falling back to estimates: %v", err)
	}
	require.NotNil(t, tok)
	return tok
}

func TestCountTokens(t *testing.T) {
	tok := newTokenizer(t)
	assert.Equal(t, 0, tok.CountTokens(""))
	assert.Greater(t, tok.CountTokens("Email 1:\nFrom: Alice\nSubject: Lunch"), 0)

	est := Estimating()
	assert.Equal(t, 3, est.CountTokens("123456789"))
}

func TestCountMessagesTokens(t *testing.T) {
	est := Estimating()
	got := est.CountMessagesTokens([]*types.Message{types.NewUserMessage("abcd")})
	// 4 framing + "user" (1) + "abcd" (1) + 2 priming
	assert.Equal(t, 8, got)
}

func TestKeepTail(t *testing.T) {
	for _, tok := range []*Tokenizer{Estimating(), newTokenizer(t)} {
		short := "Email 1:\nBody: hi"
		assert.Equal(t, short, tok.KeepTail(short, 1000))

		var b strings.Builder
		for i := 0; i < 500; i++ {
			b.WriteString("Email line with some words in it\n")
		}
		b.WriteString("LATEST MESSAGE")

		got := tok.KeepTail(b.String(), 50)
		assert.True(t, strings.HasPrefix(got, TruncationMarker))
		assert.True(t, strings.HasSuffix(got, "LATEST MESSAGE"))
		assert.Less(t, len(got), len(b.String()))
	}
}
