package types

import "strings"

// Tone is a named style modifier for the generated reply.
type Tone string

const (
	ToneDefault    Tone = "professional"
	ToneFormal     Tone = "formal"
	ToneCasual     Tone = "casual"
	ToneBrief      Tone = "brief"
	ToneDetailed   Tone = "detailed"
	ToneDiplomatic Tone = "diplomatic"
)

// ToneOption is an entry of the tone selection menu.
type ToneOption struct {
	Tone  Tone
	Label string
}

// ToneOptions is the fixed tone menu, in display order.
var ToneOptions = []ToneOption{
	{Tone: ToneFormal, Label: "Formal Response"},
	{Tone: ToneCasual, Label: "Casual Response"},
	{Tone: ToneBrief, Label: "Brief Response"},
	{Tone: ToneDetailed, Label: "Detailed Response"},
	{Tone: ToneDiplomatic, Label: "Diplomatic Response"},
}

// ParseTone maps a menu value to a Tone. Unknown or empty values map to the
// unspecified default.
func ParseTone(value string) Tone {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, opt := range ToneOptions {
		if string(opt.Tone) == value {
			return opt.Tone
		}
	}
	return ToneDefault
}

// GenerationRequest is the payload forwarded over the messaging bridge.
type GenerationRequest struct {
	// Transcript is the rendered conversation, or a sentinel when nothing was found.
	Transcript string `json:"transcript" binding:"required"`

	// Attachments is the comma-joined attachment list, nil when none were detected.
	Attachments *string `json:"attachments"`

	// Tone selects the phrasing instructions.
	Tone Tone `json:"tone"`

	// Host is the profile the transcript was extracted from.
	Host string `json:"host,omitempty"`
}

// GenerationResponse carries the generated reply body.
type GenerationResponse struct {
	Text string `json:"text"`
}

// ErrorResponse is the wire form of *Error.
type ErrorResponse struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
}
