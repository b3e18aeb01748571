// Package pwdom implements dom.Document over a live Playwright page.
//
// Every call is a round trip to the browser. Errors from the driver are
// logged and mapped to the zero value of the call (no match, empty text,
// disconnected) so that callers degrade the same way they do when the host
// markup is missing.
package pwdom

import (
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/playwright-community/playwright-go"
)

const (
	jsClosest      = `(el, sel) => el.closest(sel)`
	jsParent       = `el => el.parentElement`
	jsTagName      = `el => el.tagName.toLowerCase()`
	jsAttribute    = `(el, name) => el.getAttribute(name)`
	jsSetAttribute = `(el, [name, value]) => el.setAttribute(name, value)`
	jsRemoveAttr   = `(el, name) => el.removeAttribute(name)`
	jsSetText      = `(el, text) => { el.textContent = text }`
	jsSetHTML      = `(el, markup) => { el.innerHTML = markup }`
	jsRemove       = `el => el.remove()`
	jsConnected    = `el => el.isConnected`
	jsSameNode     = `(a, b) => a === b`
	jsAppendHTML   = `(el, markup) => {
		const t = document.createElement('template');
		t.innerHTML = markup;
		const first = t.content.firstElementChild;
		el.append(t.content);
		return first;
	}`
	jsInsertAfter = `(el, markup) => {
		const t = document.createElement('template');
		t.innerHTML = markup;
		const first = t.content.firstElementChild;
		el.after(t.content);
		return first;
	}`
)

// Document is a live host page. It records every element handle it hands
// out until Release.
type Document struct {
	page playwright.Page
	log  *logging.Logger

	mu      sync.Mutex
	handles []playwright.ElementHandle
}

// New wraps page. A nil logger discards driver errors.
func New(page playwright.Page, log *logging.Logger) *Document {
	if log == nil {
		log = logging.Discard()
	}
	return &Document{page: page, log: log}
}

// Page returns the underlying Playwright page.
func (d *Document) Page() playwright.Page { return d.page }

// Root returns the document element.
func (d *Document) Root() dom.Element {
	return d.evalElement("() => document.documentElement")
}

// Body returns <body>, or the document element when there is none.
func (d *Document) Body() dom.Element {
	return d.evalElement("() => document.body || document.documentElement")
}

// Viewport returns the page viewport size. Pages without a fixed viewport
// report the window's inner size.
func (d *Document) Viewport() dom.Viewport {
	if size := d.page.ViewportSize(); size != nil && size.Width > 0 {
		return dom.Viewport{Width: float64(size.Width), Height: float64(size.Height)}
	}
	v, err := d.page.Evaluate("() => [window.innerWidth, window.innerHeight]")
	if err != nil {
		d.log.Debugf("viewport lookup failed: %v", err)
		return dom.Viewport{}
	}
	if pair, ok := v.([]interface{}); ok && len(pair) == 2 {
		return dom.Viewport{Width: toFloat(pair[0]), Height: toFloat(pair[1])}
	}
	return dom.Viewport{}
}

// URL returns the page address.
func (d *Document) URL() string { return d.page.URL() }

// Wrap returns the dom view of an element handle obtained elsewhere. The
// handle is disposed by a Release that does not keep it.
func (d *Document) Wrap(handle playwright.ElementHandle) dom.Element {
	if handle == nil {
		return nil
	}
	d.mu.Lock()
	d.handles = append(d.handles, handle)
	d.mu.Unlock()
	return &Element{handle: handle, doc: d}
}

// Release disposes every handle handed out since the document was created
// except those of keep.
func (d *Document) Release(keep ...dom.Element) {
	pinned := make(map[playwright.ElementHandle]bool, len(keep))
	for _, k := range keep {
		if el, ok := k.(*Element); ok && el != nil {
			pinned[el.handle] = true
		}
	}

	d.mu.Lock()
	all := d.handles
	d.handles = nil
	var drop []playwright.ElementHandle
	seen := make(map[playwright.ElementHandle]bool, len(all))
	for _, h := range all {
		if seen[h] {
			continue
		}
		seen[h] = true
		if pinned[h] {
			d.handles = append(d.handles, h)
		} else {
			drop = append(drop, h)
		}
	}
	d.mu.Unlock()

	for _, h := range drop {
		if err := h.Dispose(); err != nil {
			d.log.Debugf("dispose failed: %v", err)
		}
	}
}

// Tracked returns the number of handles awaiting Release.
func (d *Document) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

func (d *Document) evalElement(expr string) dom.Element {
	h, err := d.page.EvaluateHandle(expr)
	if err != nil {
		d.log.Debugf("evaluate %q failed: %v", expr, err)
		return nil
	}
	return d.element(h)
}

// element wraps h, disposing it at once when it is not an element.
func (d *Document) element(h playwright.JSHandle) dom.Element {
	if el := h.AsElement(); el != nil {
		return d.Wrap(el)
	}
	if err := h.Dispose(); err != nil {
		d.log.Debugf("dispose failed: %v", err)
	}
	return nil
}

// Element is a handle to a node of the live page.
type Element struct {
	handle playwright.ElementHandle
	doc    *Document
}

// Handle returns the underlying Playwright element handle.
func (e *Element) Handle() playwright.ElementHandle { return e.handle }

func (e *Element) QuerySelectorAll(selector string) ([]dom.Element, error) {
	handles, err := e.handle.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	out := make([]dom.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, e.doc.Wrap(h))
	}
	return out, nil
}

func (e *Element) Closest(selector string) (dom.Element, error) {
	h, err := e.handle.EvaluateHandle(jsClosest, selector)
	if err != nil {
		return nil, fmt.Errorf("closest %q: %w", selector, err)
	}
	return e.doc.element(h), nil
}

func (e *Element) Parent() dom.Element {
	h, err := e.handle.EvaluateHandle(jsParent)
	if err != nil {
		e.doc.log.Debugf("parent lookup failed: %v", err)
		return nil
	}
	return e.doc.element(h)
}

func (e *Element) TagName() string {
	return e.evalString(jsTagName)
}

func (e *Element) TextContent() string {
	text, err := e.handle.TextContent()
	if err != nil {
		e.doc.log.Debugf("textContent failed: %v", err)
		return ""
	}
	return text
}

func (e *Element) InnerText() string {
	text, err := e.handle.InnerText()
	if err != nil {
		e.doc.log.Debugf("innerText failed: %v", err)
		return ""
	}
	return text
}

// Attribute distinguishes a missing attribute (null in the page) from an
// empty one.
func (e *Element) Attribute(name string) (string, bool) {
	v, err := e.handle.Evaluate(jsAttribute, name)
	if err != nil {
		e.doc.log.Debugf("getAttribute %q failed: %v", name, err)
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (e *Element) SetAttribute(name, value string) error {
	return e.mutate(jsSetAttribute, []string{name, value})
}

func (e *Element) RemoveAttribute(name string) error {
	return e.mutate(jsRemoveAttr, name)
}

func (e *Element) SetTextContent(text string) error {
	return e.mutate(jsSetText, text)
}

func (e *Element) SetInnerHTML(markup string) error {
	return e.mutate(jsSetHTML, markup)
}

func (e *Element) AppendHTML(markup string) (dom.Element, error) {
	return e.insert(jsAppendHTML, markup)
}

func (e *Element) InsertHTMLAfter(markup string) (dom.Element, error) {
	return e.insert(jsInsertAfter, markup)
}

func (e *Element) Remove() error {
	return e.mutate(jsRemove, nil)
}

// BoundingBox returns an empty box for elements that are not rendered.
func (e *Element) BoundingBox() dom.Rect {
	box, err := e.handle.BoundingBox()
	if err != nil || box == nil {
		return dom.Rect{}
	}
	return dom.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}
}

func (e *Element) IsConnected() bool {
	v, err := e.handle.Evaluate(jsConnected)
	if err != nil {
		return false
	}
	connected, _ := v.(bool)
	return connected
}

func (e *Element) SameNode(other dom.Element) bool {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false
	}
	if o == e || o.handle == e.handle {
		return true
	}
	v, err := e.handle.Evaluate(jsSameNode, o.handle)
	if err != nil {
		return false
	}
	same, _ := v.(bool)
	return same
}

func (e *Element) Focus() error {
	if err := e.handle.Focus(); err != nil {
		return translate(err)
	}
	return nil
}

func (e *Element) OwnerDocument() dom.Document { return e.doc }

func (e *Element) evalString(expr string) string {
	v, err := e.handle.Evaluate(expr)
	if err != nil {
		e.doc.log.Debugf("evaluate failed: %v", err)
		return ""
	}
	s, _ := v.(string)
	return s
}

func (e *Element) mutate(expr string, arg interface{}) error {
	if !e.IsConnected() {
		return dom.ErrDetached
	}
	if _, err := e.handle.Evaluate(expr, arg); err != nil {
		return translate(err)
	}
	return nil
}

func (e *Element) insert(expr, markup string) (dom.Element, error) {
	if !e.IsConnected() {
		return nil, dom.ErrDetached
	}
	h, err := e.handle.EvaluateHandle(expr, markup)
	if err != nil {
		return nil, translate(err)
	}
	return e.doc.element(h), nil
}

// translate maps driver errors caused by a closed page onto ErrDetached.
func translate(err error) error {
	if errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%w: %v", dom.ErrDetached, err)
	}
	return err
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
