// Package profile holds the declarative description of each supported
// webmail host: the selector chain of every semantic target plus the
// vocabulary used by the extraction fallbacks.
package profile

import (
	"fmt"
	"regexp"

	"github.com/entrhq/mailwright/pkg/selector"
	"github.com/gobwas/glob"
)

// Placement strategy names, in their default priority order.
const (
	PlaceToolbar       = "toolbar"
	PlaceSend          = "send"
	PlaceComposeWindow = "compose_window"
	PlaceAfterEditor   = "after_editor"
	PlaceOverlay       = "overlay"
)

// DefaultPlacement is used when a profile declares no order.
var DefaultPlacement = []string{PlaceToolbar, PlaceSend, PlaceComposeWindow, PlaceAfterEditor, PlaceOverlay}

// Spec is the YAML form of a profile.
type Spec struct {
	Name              string               `yaml:"name"`
	URLs              []string             `yaml:"urls"`
	ComposeMarkers    []string             `yaml:"compose_markers"`
	MarkerLevels      int                  `yaml:"marker_levels"`
	ToolbarLevels     int                  `yaml:"toolbar_levels"`
	Placement         []string             `yaml:"placement"`
	Denylist          []string             `yaml:"denylist"`
	Cleanup           []string             `yaml:"cleanup"`
	FallbackHeader    string               `yaml:"fallback_header"`
	EmptySentinel     string               `yaml:"empty_sentinel"`
	NoContentSentinel string               `yaml:"no_content_sentinel"`
	AttachmentDefault string               `yaml:"attachment_default"`
	Chains            map[string]ChainSpec `yaml:"chains"`
}

// ChainSpec is the YAML form of a selector chain.
type ChainSpec struct {
	Queries []QuerySpec `yaml:"queries"`
	Read    []string    `yaml:"read,omitempty"`
}

// QuerySpec is one query of a chain. A bare string is shorthand for a query
// without predicates.
type QuerySpec struct {
	Selector   string   `yaml:"selector"`
	Predicates []string `yaml:"predicates,omitempty"`
	Parent     bool     `yaml:"parent,omitempty"`
}

// Target names of the chains a profile may declare.
const (
	TargetEditor        = "editor"
	TargetReplyEditor   = "reply_editor"
	TargetConversation  = "conversation"
	TargetFallbackScope = "fallback_scope"
	TargetMessage       = "message"
	TargetSender        = "sender"
	TargetTimestamp     = "timestamp"
	TargetSubject       = "subject"
	TargetBody          = "body"
	TargetAttachment    = "attachment"
	TargetToolbar       = "toolbar"
	TargetSend          = "send"
	TargetComposeWindow = "compose_window"
)

// Profile is a compiled host description.
type Profile struct {
	Name              string
	ComposeMarkers    []string
	ToolbarLevels     int
	Placement         []string
	Denylist          []string
	Cleanup           []*regexp.Regexp
	FallbackHeader    string
	EmptySentinel     string
	NoContentSentinel string
	AttachmentDefault string

	Editor        selector.Chain
	ReplyEditor   selector.Chain
	Conversation  selector.Chain
	FallbackScope selector.Chain
	Message       selector.Chain
	Sender        selector.Chain
	Timestamp     selector.Chain
	Subject       selector.Chain
	Body          selector.Chain
	Attachment    selector.Chain
	Toolbar       selector.Chain
	Send          selector.Chain
	ComposeWindow selector.Chain

	urls []glob.Glob
}

// Matches reports whether url belongs to the host.
func (p *Profile) Matches(url string) bool {
	for _, g := range p.urls {
		if g.Match(url) {
			return true
		}
	}
	return false
}

// Compile validates spec and builds the profile.
func Compile(spec Spec) (*Profile, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("profile name is required")
	}
	if len(spec.URLs) == 0 {
		return nil, fmt.Errorf("profile %s: at least one url pattern is required", spec.Name)
	}
	if _, ok := spec.Chains[TargetEditor]; !ok {
		return nil, fmt.Errorf("profile %s: editor chain is required", spec.Name)
	}

	p := &Profile{
		Name:              spec.Name,
		ComposeMarkers:    spec.ComposeMarkers,
		ToolbarLevels:     spec.ToolbarLevels,
		Placement:         spec.Placement,
		Denylist:          spec.Denylist,
		FallbackHeader:    orDefault(spec.FallbackHeader, "Fallback Content:"),
		EmptySentinel:     orDefault(spec.EmptySentinel, "No email content could be extracted from the current view"),
		NoContentSentinel: orDefault(spec.NoContentSentinel, "No readable email content found"),
		AttachmentDefault: orDefault(spec.AttachmentDefault, "Unknown file"),
	}
	if p.ToolbarLevels <= 0 {
		p.ToolbarLevels = 2
	}
	if len(p.Placement) == 0 {
		p.Placement = DefaultPlacement
	}
	for _, name := range p.Placement {
		if !validPlacement(name) {
			return nil, fmt.Errorf("profile %s: unknown placement strategy %q", spec.Name, name)
		}
	}

	for _, pattern := range spec.URLs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("profile %s: invalid url pattern '%s': %w", spec.Name, pattern, err)
		}
		p.urls = append(p.urls, g)
	}

	for _, expr := range spec.Cleanup {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("profile %s: invalid cleanup pattern '%s': %w", spec.Name, expr, err)
		}
		p.Cleanup = append(p.Cleanup, re)
	}

	levels := spec.MarkerLevels
	if levels <= 0 {
		levels = 6
	}
	targets := map[string]*selector.Chain{
		TargetEditor:        &p.Editor,
		TargetReplyEditor:   &p.ReplyEditor,
		TargetConversation:  &p.Conversation,
		TargetFallbackScope: &p.FallbackScope,
		TargetMessage:       &p.Message,
		TargetSender:        &p.Sender,
		TargetTimestamp:     &p.Timestamp,
		TargetSubject:       &p.Subject,
		TargetBody:          &p.Body,
		TargetAttachment:    &p.Attachment,
		TargetToolbar:       &p.Toolbar,
		TargetSend:          &p.Send,
		TargetComposeWindow: &p.ComposeWindow,
	}
	for name, cs := range spec.Chains {
		dst, ok := targets[name]
		if !ok {
			return nil, fmt.Errorf("profile %s: unknown chain %q", spec.Name, name)
		}
		chain, err := compileChain(name, cs, spec.ComposeMarkers, levels)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", spec.Name, err)
		}
		*dst = chain
	}
	return p, nil
}

func compileChain(name string, cs ChainSpec, markers []string, levels int) (selector.Chain, error) {
	chain := selector.Chain{Name: name, Read: cs.Read}
	for _, r := range cs.Read {
		if r != selector.ReadText && r != selector.ReadInner && (len(r) < 2 || r[0] != '@') {
			return chain, fmt.Errorf("chain %s: invalid read source %q", name, r)
		}
	}
	for _, qs := range cs.Queries {
		if qs.Selector == "" {
			return chain, fmt.Errorf("chain %s: empty selector", name)
		}
		q := selector.Query{Selector: qs.Selector, Parent: qs.Parent}
		var preds []selector.Predicate
		for _, pname := range qs.Predicates {
			pred, err := selector.ParsePredicate(pname, markers, levels)
			if err != nil {
				return chain, fmt.Errorf("chain %s: %w", name, err)
			}
			preds = append(preds, pred)
		}
		switch len(preds) {
		case 0:
		case 1:
			q.Predicate = preds[0]
		default:
			q.Predicate = selector.All(preds...)
		}
		chain.Queries = append(chain.Queries, q)
	}
	return chain, nil
}

func validPlacement(name string) bool {
	for _, known := range DefaultPlacement {
		if name == known {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
