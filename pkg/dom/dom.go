// Package dom is the narrow view of a host page that the engine works
// against. Two backends exist: htmldom over a parsed snapshot and pwdom
// over a live Playwright page.
//
// Implementations are not safe for concurrent use. All calls are made from
// the event loop goroutine.
package dom

import "errors"

// ErrDetached is returned by mutating calls on an element that is no longer
// part of its document.
var ErrDetached = errors.New("element is detached from the document")

// Rect is an element's rendered box in viewport coordinates.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Empty reports whether the box has no rendered area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Bottom returns the y coordinate of the lower edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Intersects reports whether r overlaps the viewport.
func (r Rect) Intersects(vp Viewport) bool {
	return !r.Empty() && r.Right() > 0 && r.Bottom() > 0 && r.X < vp.Width && r.Y < vp.Height
}

// Viewport is the visible area of the page.
type Viewport struct {
	Width  float64
	Height float64
}

// Element is a node of the host document.
type Element interface {
	// QuerySelectorAll returns descendants matching selector in document order.
	QuerySelectorAll(selector string) ([]Element, error)

	// Closest returns the nearest inclusive ancestor matching selector, or nil.
	Closest(selector string) (Element, error)

	// Parent returns the parent element, or nil for the root.
	Parent() Element

	// TagName returns the lower-case tag name.
	TagName() string

	// TextContent returns the concatenated text of all descendants.
	TextContent() string

	// InnerText returns the rendered text: hidden subtrees skipped and block
	// boundaries turned into newlines.
	InnerText() string

	// Attribute returns an attribute value and whether it is present.
	Attribute(name string) (string, bool)

	SetAttribute(name, value string) error
	RemoveAttribute(name string) error

	// SetTextContent replaces the children with a single text node.
	SetTextContent(text string) error

	// SetInnerHTML replaces the children with parsed markup.
	SetInnerHTML(markup string) error

	// AppendHTML parses markup and appends it as the last children. The
	// first inserted element is returned.
	AppendHTML(markup string) (Element, error)

	// InsertHTMLAfter parses markup and inserts it as following siblings.
	// The first inserted element is returned.
	InsertHTMLAfter(markup string) (Element, error)

	// Remove detaches the element from its parent.
	Remove() error

	// BoundingBox returns the rendered box. Hidden elements have an empty box.
	BoundingBox() Rect

	// IsConnected reports whether the element is still in the document.
	IsConnected() bool

	// SameNode reports whether other refers to the same node.
	SameNode(other Element) bool

	// Focus moves input focus to the element.
	Focus() error

	// OwnerDocument returns the document the element belongs to.
	OwnerDocument() Document
}

// Document is a host page.
type Document interface {
	// Root returns the document element (<html>).
	Root() Element

	// Body returns <body>, or the root when there is none.
	Body() Element

	// Viewport returns the current viewport size.
	Viewport() Viewport

	// URL returns the page address.
	URL() string
}

// Releaser is implemented by documents whose elements hold resources in
// another process. Release frees every element the document handed out
// except keep. Kept elements stay valid until a later Release omits them.
type Releaser interface {
	Release(keep ...Element)
}

// QueryFirst returns the first descendant of root matching selector, or nil.
func QueryFirst(root Element, selector string) (Element, error) {
	matches, err := root.QuerySelectorAll(selector)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0], nil
}

// Ancestors returns up to levels inclusive ancestors of el, nearest first.
func Ancestors(el Element, levels int) []Element {
	var out []Element
	for cur := el; cur != nil && len(out) < levels; cur = cur.Parent() {
		out = append(out, cur)
	}
	return out
}
