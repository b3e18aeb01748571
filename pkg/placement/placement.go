// Package placement attaches the assistant control to a compose editor.
//
// Strategies are tried in the profile's order: an existing toolbar near the
// editor, the element holding the send button, a new container in the
// compose window, a new container right after the editor, and finally a
// fixed overlay that follows the editor's box.
package placement

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/loop"
	"github.com/entrhq/mailwright/pkg/profile"
	"github.com/entrhq/mailwright/pkg/selector"
	"github.com/google/uuid"
)

// Identity markers written into the host page.
const (
	AttrRoot      = "data-mailwright-root"
	AttrEditor    = "data-mailwright-editor"
	AttrContainer = "data-mailwright-container"
	AttrOverlay   = "data-mailwright-overlay"
)

// DefaultInterval is how often a fixed overlay follows its editor.
const DefaultInterval = 500 * time.Millisecond

// Renderer returns the control markup for a control id. The markup's first
// element must carry AttrRoot set to the id.
type Renderer func(id string) string

// Position is an overlay's viewport coordinates.
type Position struct {
	Left float64
	Top  float64
}

// Handle is an attached control. It replaces any ambient "current button"
// state: the observer owns the handle and passes it back to Detach.
type Handle struct {
	ID       string
	Strategy string
	Editor   dom.Element
	Root     dom.Element

	// Container is the element created to hold the control, nil when the
	// control was appended to an existing host element.
	Container dom.Element

	// Overlay state, only meaningful for the overlay strategy.
	Position Position
	Visible  bool

	ticker   *loop.Ticker
	detached bool
}

// Detached reports whether the handle was torn down.
func (h *Handle) Detached() bool { return h.detached }

// Engine places controls for one page. It must be used from the page's
// loop goroutine.
type Engine struct {
	profile  *profile.Profile
	resolver *selector.Resolver
	loop     *loop.Loop
	log      *logging.Logger
	render   Renderer
	interval time.Duration
	onLost   func(*Handle)
	handles  map[string]*Handle
}

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer sets the control markup.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.render = r }
}

// WithInterval sets the overlay reposition interval.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// New creates an engine. Overlay repositioning runs on l.
func New(p *profile.Profile, l *loop.Loop, log *logging.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	e := &Engine{
		profile:  p,
		resolver: selector.NewResolver(log),
		loop:     l,
		log:      log,
		render:   defaultRenderer,
		interval: DefaultInterval,
		handles:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetOnLost registers the callback run after an overlay's editor left the
// document and the overlay was torn down.
func (e *Engine) SetOnLost(fn func(*Handle)) {
	e.onLost = fn
}

// Attach places a control for editor. Attaching an editor that already has
// a live control returns the existing handle.
func (e *Engine) Attach(editor dom.Element) (*Handle, error) {
	if editor == nil || !editor.IsConnected() {
		return nil, dom.ErrDetached
	}
	if h, ok := e.existing(editor); ok {
		return h, nil
	}

	id := uuid.New().String()
	h := &Handle{ID: id, Editor: editor}
	markup := e.render(id)

	for _, strategy := range e.profile.Placement {
		ok, err := e.place(h, strategy, markup)
		if err != nil {
			e.log.Debugf("placement %s failed: %v", strategy, err)
			continue
		}
		if ok {
			h.Strategy = strategy
			break
		}
	}
	if h.Root == nil {
		return nil, fmt.Errorf("no placement strategy succeeded")
	}

	if err := editor.SetAttribute(AttrEditor, id); err != nil {
		e.remove(h)
		return nil, fmt.Errorf("failed to mark editor: %w", err)
	}
	e.handles[id] = h
	e.log.Infof("control %s attached via %s", id, h.Strategy)

	if h.Strategy == profile.PlaceOverlay {
		e.Reposition(h)
		if e.loop != nil && !h.detached {
			h.ticker = e.loop.Every(e.interval, func() { e.Reposition(h) })
		}
	}
	return h, nil
}

// existing returns the live handle of an already marked editor and clears
// stale markers.
func (e *Engine) existing(editor dom.Element) (*Handle, bool) {
	id, ok := editor.Attribute(AttrEditor)
	if !ok {
		return nil, false
	}
	if h, ok := e.handles[id]; ok && !h.detached && h.Root.IsConnected() {
		return h, true
	}
	root := editor.OwnerDocument().Root()
	if root != nil {
		if el, err := dom.QueryFirst(root, fmt.Sprintf(`[%s=%q]`, AttrRoot, id)); err == nil && el != nil {
			h := &Handle{ID: id, Editor: editor, Root: el, Strategy: "adopted"}
			e.handles[id] = h
			return h, true
		}
	}
	_ = editor.RemoveAttribute(AttrEditor)
	return nil, false
}

func (e *Engine) place(h *Handle, strategy, markup string) (bool, error) {
	editor := h.Editor
	doc := editor.OwnerDocument()

	switch strategy {
	case profile.PlaceToolbar:
		for _, anc := range dom.Ancestors(editor, e.profile.ToolbarLevels) {
			target, ok := e.resolver.Resolve(e.profile.Toolbar, anc)
			if !ok || e.owned(target) {
				continue
			}
			return e.appendTo(h, target, markup)
		}
		return false, nil

	case profile.PlaceSend:
		target, ok := e.resolver.Resolve(e.profile.Send, doc.Root())
		if !ok || e.owned(target) {
			return false, nil
		}
		return e.appendTo(h, target, markup)

	case profile.PlaceComposeWindow:
		win, ok := e.resolver.Closest(e.profile.ComposeWindow, editor)
		if !ok {
			return false, nil
		}
		container, err := win.AppendHTML(containerMarkup(h.ID, "", markup))
		if err != nil {
			return false, err
		}
		return e.adopt(h, container)

	case profile.PlaceAfterEditor:
		if editor.Parent() == nil {
			return false, nil
		}
		container, err := editor.InsertHTMLAfter(containerMarkup(h.ID, "", markup))
		if err != nil {
			return false, err
		}
		return e.adopt(h, container)

	case profile.PlaceOverlay:
		body := doc.Body()
		if body == nil {
			return false, nil
		}
		container, err := body.AppendHTML(containerMarkup(h.ID, overlayStyle(Position{}, false), markup))
		if err != nil {
			return false, err
		}
		if err := container.SetAttribute(AttrOverlay, ""); err != nil {
			return false, err
		}
		return e.adopt(h, container)
	}
	return false, fmt.Errorf("unknown strategy %q", strategy)
}

func (e *Engine) appendTo(h *Handle, target dom.Element, markup string) (bool, error) {
	root, err := target.AppendHTML(markup)
	if err != nil {
		return false, err
	}
	if root == nil {
		return false, fmt.Errorf("control markup produced no element")
	}
	h.Root = root
	return true, nil
}

func (e *Engine) adopt(h *Handle, container dom.Element) (bool, error) {
	if container == nil {
		return false, fmt.Errorf("container markup produced no element")
	}
	root, err := dom.QueryFirst(container, fmt.Sprintf(`[%s=%q]`, AttrRoot, h.ID))
	if err != nil || root == nil {
		_ = container.Remove()
		return false, fmt.Errorf("control root missing from container: %v", err)
	}
	h.Container = container
	h.Root = root
	return true, nil
}

// owned reports whether el is part of an injected control.
func (e *Engine) owned(el dom.Element) bool {
	found, err := el.Closest(fmt.Sprintf("[%s], [%s]", AttrRoot, AttrContainer))
	return err == nil && found != nil
}

// Detach removes the injected nodes of h and stops its repositioning.
// Detaching twice is a no-op.
func (e *Engine) Detach(h *Handle) {
	if h == nil || h.detached {
		return
	}
	e.remove(h)
	if h.Editor.IsConnected() {
		if id, ok := h.Editor.Attribute(AttrEditor); ok && id == h.ID {
			_ = h.Editor.RemoveAttribute(AttrEditor)
		}
	}
	e.log.Infof("control %s detached", h.ID)
}

func (e *Engine) remove(h *Handle) {
	h.detached = true
	h.Visible = false
	if h.ticker != nil {
		h.ticker.Stop()
		h.ticker = nil
	}
	node := h.Container
	if node == nil {
		node = h.Root
	}
	if node != nil && node.IsConnected() {
		if err := node.Remove(); err != nil {
			e.log.Debugf("failed to remove control %s: %v", h.ID, err)
		}
	}
	delete(e.handles, h.ID)
}

// DetachAll tears down every control of the page.
func (e *Engine) DetachAll() {
	for _, h := range e.handles {
		e.Detach(h)
	}
}

// Reposition moves an overlay to follow its editor. A disconnected editor
// tears the overlay down and notifies the owner; an editor without a
// rendered box hides it.
func (e *Engine) Reposition(h *Handle) {
	if h.detached || h.Container == nil {
		return
	}
	if !h.Editor.IsConnected() {
		e.log.Infof("editor of control %s left the document", h.ID)
		e.Detach(h)
		if e.onLost != nil {
			e.onLost(h)
		}
		return
	}

	box := h.Editor.BoundingBox()
	if box.Empty() {
		if h.Visible {
			e.setStyle(h, overlayStyle(h.Position, false))
			h.Visible = false
		}
		return
	}

	size := h.Container.BoundingBox()
	if size.Empty() {
		size = dom.Rect{Width: overlayWidth, Height: overlayHeight}
	}
	pos := Place(box, size, h.Editor.OwnerDocument().Viewport())
	if h.Visible && pos == h.Position {
		return
	}
	h.Position = pos
	h.Visible = true
	e.setStyle(h, overlayStyle(pos, true))
}

func (e *Engine) setStyle(h *Handle, style string) {
	if err := h.Container.SetAttribute("style", style); err != nil {
		e.log.Debugf("failed to move control %s: %v", h.ID, err)
	}
}

// Handles returns the live handles.
func (e *Engine) Handles() []*Handle {
	out := make([]*Handle, 0, len(e.handles))
	for _, h := range e.handles {
		out = append(out, h)
	}
	return out
}

// Overlay geometry.
const (
	overlayGap    = 8
	overlayWidth  = 240
	overlayHeight = 44
)

// Place computes an overlay position below the editor box, flipped above
// when it would overflow the bottom of the viewport, shifted left when it
// would overflow the right, and never negative.
func Place(editor, overlay dom.Rect, vp dom.Viewport) Position {
	left := editor.X
	top := editor.Bottom() + overlayGap
	if top+overlay.Height > vp.Height {
		top = editor.Y - overlay.Height - overlayGap
	}
	if left+overlay.Width > vp.Width {
		left = vp.Width - overlay.Width
	}
	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	return Position{Left: left, Top: top}
}

func overlayStyle(pos Position, visible bool) string {
	display := "none"
	if visible {
		display = "block"
	}
	return fmt.Sprintf("position:fixed;z-index:2147483647;left:%gpx;top:%gpx;display:%s", pos.Left, pos.Top, display)
}

func containerMarkup(id, style, inner string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div %s="%s" class="mailwright-container"`, AttrContainer, html.EscapeString(id))
	if style != "" {
		fmt.Fprintf(&b, ` style="%s"`, html.EscapeString(style))
	}
	b.WriteString(">")
	b.WriteString(inner)
	b.WriteString("</div>")
	return b.String()
}

func defaultRenderer(id string) string {
	return fmt.Sprintf(`<div %s="%s"></div>`, AttrRoot, html.EscapeString(id))
}
