package control

import (
	"fmt"
	"html"
	"strings"

	"github.com/entrhq/mailwright/pkg/placement"
	"github.com/entrhq/mailwright/pkg/types"
)

// Attributes read by the page runtime's click handler and by the control.
const (
	AttrAction     = "data-mailwright-action"
	AttrTone       = "data-mailwright-tone"
	AttrMenu       = "data-mailwright-menu"
	AttrNotice     = "data-mailwright-notice"
	AttrNoticeText = "data-mailwright-notice-text"
	AttrNoticeKind = "data-mailwright-notice-kind"
)

// Actions dispatched from the page.
const (
	ActionGenerate      = "generate"
	ActionMenu          = "menu"
	ActionDismiss       = "dismiss"
	ActionDismissNotice = "dismiss-notice"
)

// Markup renders the control for id. It is the placement renderer.
func Markup(id string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div %s="%s" class="mailwright-control" style="display:inline-flex;gap:8px;align-items:center;position:relative;margin:4px">`,
		placement.AttrRoot, html.EscapeString(id))
	fmt.Fprintf(&b, `<button type="button" %s="%s">%s</button>`, AttrAction, ActionGenerate, html.EscapeString(Idle.Label()))
	fmt.Fprintf(&b, `<button type="button" %s="%s" aria-haspopup="menu" aria-label="Reply tone">&#9660;</button>`, AttrAction, ActionMenu)
	fmt.Fprintf(&b, `<div role="menu" %s hidden style="position:absolute;top:100%%;left:0;z-index:1001;min-width:200px;background:#fff;border:1px solid #e0e0e0;border-radius:6px">`, AttrMenu)
	for _, opt := range types.ToneOptions {
		fmt.Fprintf(&b, `<div role="menuitem" %s="%s" %s="%s" style="padding:12px 16px;cursor:pointer">%s</div>`,
			AttrAction, ActionGenerate, AttrTone, html.EscapeString(string(opt.Tone)), html.EscapeString(opt.Label))
	}
	b.WriteString(`</div>`)
	fmt.Fprintf(&b, `<div role="alert" %s hidden><span %s></span> <button type="button" %s="%s" aria-label="Dismiss">&#215;</button></div>`,
		AttrNotice, AttrNoticeText, AttrAction, ActionDismissNotice)
	b.WriteString(`</div>`)
	return b.String()
}

// ReplyHTML renders generated text as editor content: blank-line separated
// paragraphs, single newlines as line breaks, everything escaped.
func ReplyHTML(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(line))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
