// Package htmldom implements dom.Document over a parsed HTML snapshot.
//
// Snapshots carry layout as attributes written by the browser session:
// data-mw-rect="x y width height" on elements and
// data-mw-viewport="width height" / data-mw-url on <html>. Elements without
// a rect that are not hidden are treated as a 1x1 box at the origin so that
// hand-written fixtures count as rendered.
package htmldom

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/entrhq/mailwright/pkg/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Layout annotation attributes.
const (
	AttrRect     = "data-mw-rect"
	AttrViewport = "data-mw-viewport"
	AttrURL      = "data-mw-url"
)

// DefaultViewport is used when a snapshot carries no viewport annotation.
var DefaultViewport = dom.Viewport{Width: 1280, Height: 800}

// Document is an in-memory host page.
type Document struct {
	node      *html.Node
	url       string
	viewport  dom.Viewport
	elements  map[*html.Node]*Element
	selectors map[string]cascadia.Matcher
	focused   *html.Node
	mutations int
}

// Option configures a Document.
type Option func(*Document)

// WithURL overrides the page URL.
func WithURL(url string) Option {
	return func(d *Document) { d.url = url }
}

// WithViewport overrides the viewport size.
func WithViewport(vp dom.Viewport) Option {
	return func(d *Document) { d.viewport = vp }
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	d := &Document{
		node:      root,
		viewport:  DefaultViewport,
		elements:  make(map[*html.Node]*Element),
		selectors: make(map[string]cascadia.Matcher),
	}

	if htmlEl := d.documentElement(); htmlEl != nil {
		if v, ok := attr(htmlEl, AttrViewport); ok {
			if nums := parseFloats(v); len(nums) == 2 {
				d.viewport = dom.Viewport{Width: nums[0], Height: nums[1]}
			}
		}
		if v, ok := attr(htmlEl, AttrURL); ok {
			d.url = v
		}
	}

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(markup string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(markup), opts...)
}

// Root returns the <html> element.
func (d *Document) Root() dom.Element {
	if n := d.documentElement(); n != nil {
		return d.wrap(n)
	}
	return d.wrap(d.node)
}

// Body returns <body>, or the root when there is none.
func (d *Document) Body() dom.Element {
	if htmlEl := d.documentElement(); htmlEl != nil {
		for c := htmlEl.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Body {
				return d.wrap(c)
			}
		}
	}
	return d.Root()
}

// Viewport returns the viewport size.
func (d *Document) Viewport() dom.Viewport { return d.viewport }

// SetViewport changes the viewport size, as a window resize would.
func (d *Document) SetViewport(vp dom.Viewport) { d.viewport = vp }

// URL returns the page address.
func (d *Document) URL() string { return d.url }

// Focused returns the element that last received focus, or nil.
func (d *Document) Focused() dom.Element {
	if d.focused == nil {
		return nil
	}
	return d.wrap(d.focused)
}

// Mutations returns how many structural changes were made through the DOM API.
func (d *Document) Mutations() int { return d.mutations }

// Render serializes the document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.node)
}

// String returns the serialized document.
func (d *Document) String() string {
	var b strings.Builder
	_ = d.Render(&b)
	return b.String()
}

func (d *Document) documentElement() *html.Node {
	for c := d.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

func (d *Document) wrap(n *html.Node) *Element {
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n}
	d.elements[n] = el
	return el
}

func (d *Document) compile(selector string) (cascadia.Matcher, error) {
	if m, ok := d.selectors[selector]; ok {
		return m, nil
	}
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.selectors[selector] = group
	return group, nil
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func parseFloats(s string) []float64 {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

var _ dom.Document = (*Document)(nil)
