// Package observer tracks the compose editor of a page and keeps exactly one
// control attached to it.
//
// Detection runs on the page loop. Mutation notifications schedule one
// debounced detection, rescheduled on every burst, and a slower poll catches
// changes the mutation hook missed.
package observer

import (
	"time"

	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/loop"
	"github.com/entrhq/mailwright/pkg/placement"
	"github.com/entrhq/mailwright/pkg/profile"
	"github.com/entrhq/mailwright/pkg/selector"
)

// Default timings.
const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultPoll     = 2 * time.Second
)

// Hooks are run on the loop when the tracked control changes.
type Hooks struct {
	// Attached runs after a control was placed for a newly detected editor.
	Attached func(h *placement.Handle)

	// Detached runs after a control was torn down, either because a
	// different editor replaced it or because its editor left the page.
	Detached func(h *placement.Handle, lost bool)
}

// Config wires an Observer.
type Config struct {
	Doc      dom.Document
	Profile  *profile.Profile
	Engine   *placement.Engine
	Loop     *loop.Loop
	Log      *logging.Logger
	Hooks    Hooks
	Debounce time.Duration
	Poll     time.Duration
}

// Observer is the change observer of one page.
type Observer struct {
	cfg      Config
	resolver *selector.Resolver
	debounce *loop.Timer
	poll     *loop.Ticker
	current  *placement.Handle
	started  bool
	stopped  bool
}

// New creates an observer. Call Start on the loop to begin detection.
func New(cfg Config) *Observer {
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	o := &Observer{cfg: cfg, resolver: selector.NewResolver(cfg.Log)}
	cfg.Engine.SetOnLost(o.lost)
	return o
}

// Start runs a first detection and starts the poll. It must run on the loop.
func (o *Observer) Start() {
	if o.started || o.stopped {
		return
	}
	o.started = true
	o.Detect()
	o.poll = o.cfg.Loop.Every(o.cfg.Poll, o.Detect)
}

// Notify reports a mutation burst that added nodes. It is safe to call
// from any goroutine.
func (o *Observer) Notify(added int) {
	if added <= 0 {
		return
	}
	o.cfg.Loop.Post(o.schedule)
}

func (o *Observer) schedule() {
	if o.stopped {
		return
	}
	o.debounce.Stop()
	o.debounce = o.cfg.Loop.AfterFunc(o.cfg.Debounce, func() {
		o.debounce = nil
		o.Detect()
	})
}

// Stop cancels the pending detection and the poll. The attached control is
// left to the owner.
func (o *Observer) Stop() {
	if o.stopped {
		return
	}
	o.stopped = true
	o.debounce.Stop()
	o.debounce = nil
	if o.poll != nil {
		o.poll.Stop()
		o.poll = nil
	}
}

// Current returns the tracked control, nil when no editor is tracked.
func (o *Observer) Current() *placement.Handle {
	return o.current
}

// Detect resolves the editor and reconciles the attached control with it.
func (o *Observer) Detect() {
	if o.stopped {
		return
	}
	editor, ok := o.resolveEditor()
	if !ok {
		if o.current != nil && !o.current.Editor.IsConnected() {
			o.release(true)
		}
		return
	}

	if o.tracking(editor) {
		return
	}
	if o.current != nil {
		o.release(false)
	}

	h, err := o.cfg.Engine.Attach(editor)
	if err != nil {
		o.cfg.Log.Warnf("failed to attach control: %v", err)
		return
	}
	o.current = h
	o.cfg.Log.Infof("tracking editor with control %s", h.ID)
	if o.cfg.Hooks.Attached != nil {
		o.cfg.Hooks.Attached(h)
	}
}

func (o *Observer) resolveEditor() (dom.Element, bool) {
	root := o.cfg.Doc.Root()
	if root == nil {
		return nil, false
	}
	if el, ok := o.resolver.Resolve(o.cfg.Profile.Editor, root); ok {
		return el, true
	}
	return o.resolver.Resolve(o.cfg.Profile.ReplyEditor, root)
}

// tracking reports whether editor is the tracked one and its control is
// still on the page.
func (o *Observer) tracking(editor dom.Element) bool {
	h := o.current
	if h == nil || h.Detached() || !h.Editor.SameNode(editor) {
		return false
	}
	return h.Root != nil && h.Root.IsConnected()
}

func (o *Observer) release(lost bool) {
	h := o.current
	o.current = nil
	o.cfg.Engine.Detach(h)
	if o.cfg.Hooks.Detached != nil {
		o.cfg.Hooks.Detached(h, lost)
	}
}

// lost handles an overlay whose editor left the document.
func (o *Observer) lost(h *placement.Handle) {
	if o.current != h {
		return
	}
	o.current = nil
	if o.cfg.Hooks.Detached != nil {
		o.cfg.Hooks.Detached(h, true)
	}
}
