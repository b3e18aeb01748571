// Package extract rebuilds the visible conversation of a host page as a
// plain-text transcript for the generation service.
package extract

import (
	"fmt"
	"strings"

	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/profile"
	"github.com/entrhq/mailwright/pkg/selector"
	"github.com/entrhq/mailwright/pkg/types"
)

const (
	// MinBodyLength is the shortest body a message record may carry.
	MinBodyLength = 10

	// Defaults for fields that could not be resolved.
	UnknownSender = "Unknown Sender"
	NoSubject     = "No Subject"

	// Whole-element text used as a body must be longer than this after cleanup.
	fallbackBodyMin = 20

	// Scraped page text shorter than this is not worth sending.
	fallbackTextMin = 20
	fallbackMinimum = 50

	// Bound on the elements the page scrape inspects.
	maxScrapeElements = 4000
)

// Record is one message of the conversation.
type Record struct {
	Ordinal   int
	Sender    string
	Timestamp string
	Subject   string
	Body      string
}

// String renders the record as a transcript block.
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Email %d:\nFrom: %s\n", r.Ordinal, r.Sender)
	if r.Timestamp != "" {
		fmt.Fprintf(&b, "Date: %s\n", r.Timestamp)
	}
	fmt.Fprintf(&b, "Subject: %s\nBody: %s\n---", r.Subject, r.Body)
	return b.String()
}

// Transcript is the result of one extraction pass.
type Transcript struct {
	Records []Record

	// Text is what gets sent: rendered records, scraped page text, or a
	// sentinel. It is never empty.
	Text string

	// Fallback is set when Text came from the whole-page scrape.
	Fallback bool

	// Empty is set when Text is a sentinel.
	Empty bool
}

// Err reports a sentinel transcript as an ExtractionEmpty error. Callers
// log it and proceed with the sentinel.
func (t Transcript) Err() error {
	if !t.Empty {
		return nil
	}
	return types.NewError(types.KindExtractionEmpty, t.Text)
}

// Extractor extracts transcripts for one host profile.
type Extractor struct {
	profile  *profile.Profile
	resolver *selector.Resolver
	log      *logging.Logger
}

// New creates an extractor.
func New(p *profile.Profile, log *logging.Logger) *Extractor {
	if log == nil {
		log = logging.Discard()
	}
	return &Extractor{profile: p, resolver: selector.NewResolver(log), log: log}
}

// Extract reads the conversation shown in doc.
func (e *Extractor) Extract(doc dom.Document) Transcript {
	root := doc.Root()
	if root == nil {
		return Transcript{Text: e.profile.EmptySentinel, Empty: true}
	}

	container, ok := e.resolver.Resolve(e.profile.Conversation, root)
	if !ok {
		container = doc.Body()
	}

	messages := e.resolver.ResolveAll(e.profile.Message, container)
	if len(messages) == 0 {
		e.log.Infof("no message elements found, scraping page text")
		if text, ok := e.scrape(doc); ok {
			return Transcript{Text: text, Fallback: true}
		}
		return Transcript{Text: e.profile.EmptySentinel, Empty: true}
	}

	subject, ok := e.resolver.Value(e.profile.Subject, root)
	if !ok {
		subject = NoSubject
	}

	var records []Record
	for i, el := range messages {
		rec, ok := e.record(el, subject)
		if !ok {
			e.log.Debugf("message %d skipped: no usable body", i+1)
			continue
		}
		rec.Ordinal = i + 1
		records = append(records, rec)
	}
	e.log.Infof("extracted %d of %d messages", len(records), len(messages))

	if len(records) == 0 {
		return Transcript{Text: e.profile.NoContentSentinel, Empty: true}
	}

	blocks := make([]string, len(records))
	for i, r := range records {
		blocks[i] = r.String()
	}
	return Transcript{Records: records, Text: strings.Join(blocks, "\n\n")}
}

func (e *Extractor) record(el dom.Element, subject string) (Record, bool) {
	rec := Record{Sender: UnknownSender, Subject: subject}
	if v, ok := e.resolver.Value(e.profile.Sender, el); ok {
		rec.Sender = v
	}
	if v, ok := e.resolver.Value(e.profile.Timestamp, el); ok {
		rec.Timestamp = v
	}

	body, ok := e.resolver.Value(e.profile.Body, el)
	if !ok {
		body = e.cleanup(selector.Text(el))
		if len([]rune(body)) <= fallbackBodyMin {
			body = ""
		}
	}
	if len([]rune(body)) < MinBodyLength {
		return rec, false
	}
	rec.Body = body
	return rec, true
}

// cleanup strips host chrome from a message's full text.
func (e *Extractor) cleanup(text string) string {
	for _, re := range e.profile.Cleanup {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// scrape collects rendered leaf-ish text blocks from the main area of the
// page. It is a heuristic of last resort: the result is tagged with the
// profile's fallback header and only used when it is substantial.
func (e *Extractor) scrape(doc dom.Document) (string, bool) {
	scope, ok := e.resolver.Resolve(e.profile.FallbackScope, doc.Root())
	if !ok {
		scope = doc.Body()
	}
	if scope == nil {
		return "", false
	}

	candidates, err := scope.QuerySelectorAll("div, span, p")
	if err != nil {
		e.log.Warnf("page scrape failed: %v", err)
		return "", false
	}
	if len(candidates) > maxScrapeElements {
		candidates = candidates[:maxScrapeElements]
	}

	var lines []string
	for _, el := range candidates {
		text := strings.TrimSpace(selector.Text(el))
		if len([]rune(text)) <= fallbackTextMin || e.denied(text) {
			continue
		}
		if el.BoundingBox().Empty() {
			continue
		}
		if inner, err := dom.QueryFirst(el, "div, p"); err == nil && inner != nil {
			continue
		}
		lines = append(lines, text)
	}

	joined := strings.Join(lines, "\n")
	if len([]rune(joined)) <= fallbackMinimum {
		return "", false
	}
	return e.profile.FallbackHeader + "\n" + joined, true
}

func (e *Extractor) denied(text string) bool {
	for _, word := range e.profile.Denylist {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

// Attachments lists the attachment names shown on the page, in document
// order.
func (e *Extractor) Attachments(doc dom.Document) []string {
	root := doc.Root()
	if root == nil {
		return nil
	}
	var names []string
	for _, el := range e.resolver.ResolveAll(e.profile.Attachment, root) {
		name, ok := selector.ReadValue(el, e.profile.Attachment.Read)
		if !ok {
			name = e.profile.AttachmentDefault
		}
		names = append(names, name)
	}
	return names
}

// JoinAttachments renders names the way the generation request carries
// them: comma separated, or nil when there are none.
func JoinAttachments(names []string) *string {
	if len(names) == 0 {
		return nil
	}
	joined := strings.Join(names, ", ")
	return &joined
}
