// Package control implements the injected trigger and its state machine.
//
// A Control lives on its page's event loop. Triggering it extracts the
// request on the loop, sends it from a separate goroutine, and posts the
// result back to the loop before touching the page again.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/loop"
	"github.com/entrhq/mailwright/pkg/types"
)

// State is the control's position in the generation cycle.
type State int

const (
	Idle State = iota
	Generating
	Generated
)

// Label returns the trigger text for the state.
func (s State) Label() string {
	switch s {
	case Generating:
		return "Generating…"
	case Generated:
		return "Regenerate"
	default:
		return "Generate reply"
	}
}

func (s State) String() string {
	switch s {
	case Generating:
		return "generating"
	case Generated:
		return "generated"
	default:
		return "idle"
	}
}

// DefaultNoticeTimeout is how long a transient notice stays up.
const DefaultNoticeTimeout = 5 * time.Second

// Sender delivers a generation request and returns the reply text.
type Sender interface {
	Send(ctx context.Context, req types.GenerationRequest) (string, error)
}

// Builder produces the request for a tone. It runs on the loop.
type Builder func(tone types.Tone) types.GenerationRequest

// Config wires a control.
type Config struct {
	ID     string
	Host   string
	Root   dom.Element
	Editor dom.Element
	Loop   *loop.Loop
	Sender Sender
	Build  Builder
	Log    *logging.Logger

	// Emit receives lifecycle events. Optional.
	Emit func(*types.Event)

	NoticeTimeout time.Duration
}

// Control is one injected trigger bound to one compose editor.
type Control struct {
	cfg       Config
	state     State
	succeeded bool
	menuOpen  bool
	notice    *loop.Timer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
}

// New creates a control in the Idle state and renders it.
func New(cfg Config) *Control {
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}
	if cfg.NoticeTimeout <= 0 {
		cfg.NoticeTimeout = DefaultNoticeTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Control{cfg: cfg, ctx: ctx, cancel: cancel}
	c.render()
	return c
}

// ID returns the control id.
func (c *Control) ID() string { return c.cfg.ID }

// State returns the current state.
func (c *Control) State() State { return c.state }

// Editor returns the compose editor the control writes into.
func (c *Control) Editor() dom.Element { return c.cfg.Editor }

// Handle applies an action dispatched from the page.
func (c *Control) Handle(action, tone string) {
	switch action {
	case ActionGenerate:
		c.closeMenu()
		c.Trigger(types.ParseTone(tone))
	case ActionMenu:
		c.menuOpen = !c.menuOpen
		c.renderMenu()
	case ActionDismiss:
		c.closeMenu()
	case ActionDismissNotice:
		c.hideNotice()
	default:
		c.cfg.Log.Debugf("control %s: ignoring action %q", c.cfg.ID, action)
	}
}

// Trigger starts a generation. It reports false and does nothing while a
// generation is already in flight.
func (c *Control) Trigger(tone types.Tone) bool {
	if c.closed || c.state == Generating {
		return false
	}
	c.hideNotice()
	c.state = Generating
	c.render()

	req := c.cfg.Build(tone)
	req.Tone = tone
	c.emit(types.NewEvent(types.EventTypeGenerationStart, c.cfg.Host), func(e *types.Event) { e.Tone = tone })

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		text, err := c.cfg.Sender.Send(c.ctx, req)
		c.cfg.Loop.Post(func() { c.finish(text, err) })
	}()
	return true
}

func (c *Control) finish(text string, err error) {
	if c.closed {
		return
	}
	if err == nil {
		err = c.write(text)
	}
	if err != nil {
		c.fail(err)
		return
	}
	c.state = Generated
	c.succeeded = true
	c.render()
	c.emit(types.NewEvent(types.EventTypeGenerationComplete, c.cfg.Host), nil)
}

func (c *Control) write(text string) error {
	markup := ReplyHTML(text)
	if markup == "" {
		return types.NewError(types.KindServiceError, "Invalid response from generation service")
	}
	editor := c.cfg.Editor
	if err := editor.SetInnerHTML(markup); err != nil {
		return fmt.Errorf("failed to write reply: %w", err)
	}
	if err := editor.Focus(); err != nil {
		c.cfg.Log.Debugf("control %s: focus failed: %v", c.cfg.ID, err)
	}
	return nil
}

func (c *Control) fail(err error) {
	c.state = Idle
	if c.succeeded {
		c.state = Generated
	}
	c.render()

	kind := types.KindOf(err)
	c.cfg.Log.Warnf("control %s: generation failed (%s): %v", c.cfg.ID, kind, err)
	if kind == types.KindNeedsReload {
		c.showNotice(types.UserMessage(err), true)
		c.emit(types.NewEvent(types.EventTypeReloadRequired, c.cfg.Host).WithError(err), nil)
		return
	}
	c.showNotice(types.UserMessage(err), false)
	c.emit(types.NewEvent(types.EventTypeGenerationFailed, c.cfg.Host).WithError(err), nil)
}

// Close stops the control. A generation in flight is cancelled and its
// result dropped.
func (c *Control) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.notice.Stop()
}

// Wait blocks until the control's in-flight send has returned.
func (c *Control) Wait() {
	c.wg.Wait()
}

func (c *Control) render() {
	btn := c.find(fmt.Sprintf(`button[%s="%s"]`, AttrAction, ActionGenerate))
	if btn == nil {
		return
	}
	_ = btn.SetTextContent(c.state.Label())
	if c.state == Generating {
		_ = btn.SetAttribute("disabled", "")
		_ = btn.SetAttribute("aria-busy", "true")
	} else {
		_ = btn.RemoveAttribute("disabled")
		_ = btn.RemoveAttribute("aria-busy")
	}
}

func (c *Control) closeMenu() {
	if c.menuOpen {
		c.menuOpen = false
		c.renderMenu()
	}
}

func (c *Control) renderMenu() {
	menu := c.find("[" + AttrMenu + "]")
	if menu == nil {
		return
	}
	if c.menuOpen {
		_ = menu.RemoveAttribute("hidden")
	} else {
		_ = menu.SetAttribute("hidden", "")
	}
}

// MenuOpen reports whether the tone menu is shown.
func (c *Control) MenuOpen() bool { return c.menuOpen }

func (c *Control) showNotice(message string, persistent bool) {
	c.notice.Stop()
	c.notice = nil

	box := c.find("[" + AttrNotice + "]")
	if box == nil {
		return
	}
	if text := c.find("[" + AttrNoticeText + "]"); text != nil {
		_ = text.SetTextContent(message)
	}
	kind := "transient"
	if persistent {
		kind = "persistent"
	}
	_ = box.SetAttribute(AttrNoticeKind, kind)
	_ = box.RemoveAttribute("hidden")

	if !persistent {
		c.notice = c.cfg.Loop.AfterFunc(c.cfg.NoticeTimeout, c.hideNotice)
	}
}

func (c *Control) hideNotice() {
	c.notice.Stop()
	c.notice = nil
	if box := c.find("[" + AttrNotice + "]"); box != nil {
		_ = box.SetAttribute("hidden", "")
	}
}

// Notice returns the shown notice text and whether it is persistent. The
// text is empty when no notice is shown.
func (c *Control) Notice() (string, bool) {
	box := c.find("[" + AttrNotice + "]")
	if box == nil {
		return "", false
	}
	if _, hidden := box.Attribute("hidden"); hidden {
		return "", false
	}
	kind, _ := box.Attribute(AttrNoticeKind)
	text := ""
	if el := c.find("[" + AttrNoticeText + "]"); el != nil {
		text = el.TextContent()
	}
	return text, kind == "persistent"
}

func (c *Control) find(sel string) dom.Element {
	if c.cfg.Root == nil {
		return nil
	}
	el, err := dom.QueryFirst(c.cfg.Root, sel)
	if err != nil {
		return nil
	}
	return el
}

func (c *Control) emit(e *types.Event, fill func(*types.Event)) {
	if c.cfg.Emit == nil {
		return
	}
	e.WithControl(c.cfg.ID)
	if fill != nil {
		fill(e)
	}
	c.cfg.Emit(e)
}
