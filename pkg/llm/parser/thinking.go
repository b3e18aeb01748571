// Package parser separates model reasoning from the reply text.
package parser

import (
	"strings"
)

// reasoningTags are the tag names reasoning models use to wrap their
// scratchpad when served through OpenAI-compatible endpoints.
var reasoningTags = map[string]bool{
	"thinking": true,
	"think":    true,
}

// Reply is a completion split into its reasoning and message parts.
type Reply struct {
	Thinking string
	Message  string
}

// Split walks text once and moves content inside <thinking> or <think>
// blocks into Reply.Thinking. Any other tag is kept as message text. An
// unterminated reasoning block swallows the rest of the text.
func Split(text string) Reply {
	var thinking, message strings.Builder
	depth := 0

	for len(text) > 0 {
		open := strings.IndexByte(text, '<')
		if open < 0 {
			writeTo(depth, &thinking, &message, text)
			break
		}
		writeTo(depth, &thinking, &message, text[:open])
		text = text[open:]

		end := strings.IndexByte(text, '>')
		if end < 0 {
			writeTo(depth, &thinking, &message, text)
			break
		}
		tag := text[:end+1]
		text = text[end+1:]

		name, closing := tagName(tag)
		if !reasoningTags[name] {
			writeTo(depth, &thinking, &message, tag)
			continue
		}
		if closing {
			if depth > 0 {
				depth--
			}
		} else {
			depth++
		}
	}

	return Reply{
		Thinking: strings.TrimSpace(thinking.String()),
		Message:  strings.TrimSpace(message.String()),
	}
}

// StripThinking returns only the message part of text.
func StripThinking(text string) string {
	return Split(text).Message
}

func writeTo(depth int, thinking, message *strings.Builder, s string) {
	if depth > 0 {
		thinking.WriteString(s)
		return
	}
	message.WriteString(s)
}

func tagName(tag string) (string, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(tag, "<"), ">")
	closing := strings.HasPrefix(inner, "/")
	inner = strings.TrimPrefix(inner, "/")
	if i := strings.IndexAny(inner, " \t\n/"); i >= 0 {
		inner = inner[:i]
	}
	return strings.ToLower(inner), closing
}
