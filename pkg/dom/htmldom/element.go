package htmldom

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/entrhq/mailwright/pkg/dom"
	"golang.org/x/net/html"
)

// Element wraps a node of a Document. Wrappers are canonical per node, so
// pointer equality is node identity.
type Element struct {
	doc  *Document
	node *html.Node
}

// Node returns the underlying parse tree node.
func (e *Element) Node() *html.Node { return e.node }

// QuerySelectorAll returns matching descendants in document order.
func (e *Element) QuerySelectorAll(selector string) ([]dom.Element, error) {
	m, err := e.doc.compile(selector)
	if err != nil {
		return nil, err
	}
	nodes := cascadia.QueryAll(e.node, m)
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, e.doc.wrap(n))
	}
	return out, nil
}

// Closest returns the nearest inclusive ancestor matching selector.
func (e *Element) Closest(selector string) (dom.Element, error) {
	m, err := e.doc.compile(selector)
	if err != nil {
		return nil, err
	}
	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && m.Match(n) {
			return e.doc.wrap(n), nil
		}
	}
	return nil, nil
}

// Parent returns the parent element.
func (e *Element) Parent() dom.Element {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

// TagName returns the lower-case tag name.
func (e *Element) TagName() string {
	return strings.ToLower(e.node.Data)
}

// TextContent returns the text of all descendant text nodes.
func (e *Element) TextContent() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}

var (
	spaceRun     = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLineRun = regexp.MustCompile(`\n{3,}`)
)

// InnerText approximates the browser's rendered text.
func (e *Element) InnerText() string {
	if isHidden(e.node) {
		return ""
	}
	var b strings.Builder
	renderText(e.node, &b)

	// Whitespace-only lines between blocks are dropped; paragraph breaks
	// survive as a single blank line.
	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		switch line {
		case "":
			continue
		case paragraphBreak:
			line = ""
		}
		lines = append(lines, line)
	}
	text := strings.Join(lines, "\n")
	text = blankLineRun.ReplaceAllString(text, "\n\n")
	return strings.Trim(text, "\n")
}

const paragraphBreak = "\x01"

func renderText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.ElementNode:
		if isHiddenSelf(n) {
			return
		}
		tag := strings.ToLower(n.Data)
		if tag == "br" {
			b.WriteString("\n")
			return
		}
		block := isBlockElement(tag)
		if block {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderText(c, b)
		}
		if block {
			b.WriteString("\n")
			if tag == "p" {
				b.WriteString(paragraphBreak + "\n")
			}
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(c, b)
	}
}

// Attribute returns an attribute value.
func (e *Element) Attribute(name string) (string, bool) {
	return attr(e.node, name)
}

// SetAttribute sets or replaces an attribute.
func (e *Element) SetAttribute(name, value string) error {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return nil
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
	return nil
}

// RemoveAttribute deletes an attribute if present.
func (e *Element) RemoveAttribute(name string) error {
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
	return nil
}

// SetTextContent replaces the children with one text node.
func (e *Element) SetTextContent(text string) error {
	e.removeChildren()
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	e.doc.mutations++
	return nil
}

// SetInnerHTML replaces the children with parsed markup.
func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.node)
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}
	e.removeChildren()
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	e.doc.mutations++
	return nil
}

// AppendHTML appends parsed markup as the last children.
func (e *Element) AppendHTML(markup string) (dom.Element, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.node)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	e.doc.mutations++
	return e.firstElement(nodes), nil
}

// InsertHTMLAfter inserts parsed markup as following siblings.
func (e *Element) InsertHTMLAfter(markup string) (dom.Element, error) {
	parent := e.node.Parent
	if parent == nil {
		return nil, dom.ErrDetached
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	next := e.node.NextSibling
	for _, n := range nodes {
		parent.InsertBefore(n, next)
	}
	e.doc.mutations++
	return e.firstElement(nodes), nil
}

// Remove detaches the element.
func (e *Element) Remove() error {
	if e.node.Parent == nil {
		return nil
	}
	e.node.Parent.RemoveChild(e.node)
	e.doc.mutations++
	return nil
}

// BoundingBox returns the annotated box, an empty box when hidden, and a
// 1x1 box at the origin otherwise.
func (e *Element) BoundingBox() dom.Rect {
	if !e.IsConnected() || isHidden(e.node) {
		return dom.Rect{}
	}
	if v, ok := attr(e.node, AttrRect); ok {
		if nums := parseFloats(v); len(nums) == 4 {
			return dom.Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}
		}
	}
	return dom.Rect{Width: 1, Height: 1}
}

// IsConnected reports whether the node is reachable from the document root.
func (e *Element) IsConnected() bool {
	for n := e.node; n != nil; n = n.Parent {
		if n == e.doc.node {
			return true
		}
	}
	return false
}

// SameNode reports node identity.
func (e *Element) SameNode(other dom.Element) bool {
	o, ok := other.(*Element)
	return ok && o != nil && o.node == e.node
}

// Focus records the element as focused.
func (e *Element) Focus() error {
	if !e.IsConnected() {
		return dom.ErrDetached
	}
	e.doc.focused = e.node
	return nil
}

// OwnerDocument returns the document.
func (e *Element) OwnerDocument() dom.Document { return e.doc }

// SetRect writes a layout annotation, as the page moving the element would.
func (e *Element) SetRect(r dom.Rect) {
	_ = e.SetAttribute(AttrRect, fmt.Sprintf("%g %g %g %g", r.X, r.Y, r.Width, r.Height))
}

func (e *Element) removeChildren() {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
}

func (e *Element) firstElement(nodes []*html.Node) dom.Element {
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return e.doc.wrap(n)
		}
	}
	return nil
}

func isHidden(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && isHiddenSelf(cur) {
			return true
		}
	}
	return false
}

func isHiddenSelf(n *html.Node) bool {
	if isSkippedElement(strings.ToLower(n.Data)) {
		return true
	}
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if style, ok := attr(n, "style"); ok {
		compact := strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden") {
			return true
		}
	}
	return false
}

// isSkippedElement returns true for elements that never render text
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "head", "title", "meta", "link":
		return true
	}
	return false
}

// isBlockElement returns true for block-level elements
func isBlockElement(tagName string) bool {
	switch tagName {
	case "div", "p", "section", "article", "header", "footer", "nav", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "table", "tr",
		"form", "fieldset", "blockquote", "pre", "body", "html":
		return true
	}
	return false
}

var _ dom.Element = (*Element)(nil)
