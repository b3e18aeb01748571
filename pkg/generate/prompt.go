package generate

import (
	"strings"

	"github.com/entrhq/mailwright/pkg/types"
)

// ConnectionTestPrompt is sent by TestConnection.
const ConnectionTestPrompt = `Hello, this is a test message. Please respond with "API connection successful".`

const promptIntro = "Please generate a professional email response based on the following email chain. Be concise, professional, and appropriate to the context:"

var instructions = []string{
	"Generate only the email response content without signatures, headers, or additional formatting",
	"Match the tone and formality level of the original emails",
	"Be concise but comprehensive",
	"If replying to a request, be specific about next steps",
	"If attachments are mentioned and attachment analysis is enabled, reference them appropriately",
}

var toneInstructions = map[types.Tone]string{
	types.ToneDefault:    "Use a professional tone",
	types.ToneFormal:     "Use a formal tone with complete sentences and courteous phrasing",
	types.ToneCasual:     "Use a casual, friendly tone",
	types.ToneBrief:      "Keep the reply brief, a few sentences at most",
	types.ToneDetailed:   "Give a detailed reply that addresses every point raised",
	types.ToneDiplomatic: "Use a diplomatic tone that stays tactful about any disagreement",
}

// PromptBuilder assembles the generation prompt.
type PromptBuilder struct {
	transcript  string
	attachments string
	tone        types.Tone
}

// NewPromptBuilder creates a builder for the default tone.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{tone: types.ToneDefault}
}

// WithTranscript sets the email chain.
func (pb *PromptBuilder) WithTranscript(transcript string) *PromptBuilder {
	pb.transcript = transcript
	return pb
}

// WithAttachments adds the attachment context. Empty means none.
func (pb *PromptBuilder) WithAttachments(attachments string) *PromptBuilder {
	pb.attachments = attachments
	return pb
}

// WithTone sets the tone instruction.
func (pb *PromptBuilder) WithTone(tone types.Tone) *PromptBuilder {
	if _, ok := toneInstructions[tone]; ok {
		pb.tone = tone
	}
	return pb
}

// Build returns the prompt.
func (pb *PromptBuilder) Build() string {
	var b strings.Builder
	b.WriteString(promptIntro)
	b.WriteString("\n\nEmail Chain:\n")
	b.WriteString(pb.transcript)

	if pb.attachments != "" {
		b.WriteString("\n\nAttachments mentioned: ")
		b.WriteString(pb.attachments)
		b.WriteString("\nPlease consider these attachments when crafting your response. If the attachments seem relevant to the conversation, acknowledge them appropriately in your reply.")
	}

	b.WriteString("\n\nInstructions:")
	for _, line := range instructions {
		b.WriteString("\n- ")
		b.WriteString(line)
	}
	b.WriteString("\n- ")
	b.WriteString(toneInstructions[pb.tone])
	return b.String()
}
