// Package assistant wires the engine for one host page: the event loop, the
// change observer, the placement engine, the controls and the bridge.
package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/mailwright/pkg/control"
	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/entrhq/mailwright/pkg/extract"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/loop"
	"github.com/entrhq/mailwright/pkg/observer"
	"github.com/entrhq/mailwright/pkg/placement"
	"github.com/entrhq/mailwright/pkg/profile"
	"github.com/entrhq/mailwright/pkg/types"
)

// stopTimeout bounds the page cleanup done by Stop.
const stopTimeout = 5 * time.Second

// Config wires an Assistant.
type Config struct {
	Doc     dom.Document
	Profile *profile.Profile
	Sender  control.Sender
	Log     *logging.Logger

	// Emit receives lifecycle events from the loop goroutine. Optional.
	Emit func(*types.Event)

	// Timings, zero means the package defaults.
	Debounce      time.Duration
	Poll          time.Duration
	Reposition    time.Duration
	NoticeTimeout time.Duration
}

// Assistant serves one page document.
type Assistant struct {
	cfg       Config
	loop      *loop.Loop
	engine    *placement.Engine
	observer  *observer.Observer
	extractor *extract.Extractor
	controls  map[string]*control.Control
	draining  sync.WaitGroup
	stopOnce  sync.Once
}

// New creates an assistant. Nothing touches the page before Start.
func New(cfg Config) *Assistant {
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}
	a := &Assistant{
		cfg:       cfg,
		extractor: extract.New(cfg.Profile, cfg.Log),
		controls:  make(map[string]*control.Control),
	}
	a.loop = loop.New(cfg.Log, loop.WithIdle(a.release))
	opts := []placement.Option{placement.WithRenderer(control.Markup)}
	if cfg.Reposition > 0 {
		opts = append(opts, placement.WithInterval(cfg.Reposition))
	}
	a.engine = placement.New(cfg.Profile, a.loop, cfg.Log, opts...)
	a.observer = observer.New(observer.Config{
		Doc:      cfg.Doc,
		Profile:  cfg.Profile,
		Engine:   a.engine,
		Loop:     a.loop,
		Log:      cfg.Log,
		Hooks:    observer.Hooks{Attached: a.attached, Detached: a.detached},
		Debounce: cfg.Debounce,
		Poll:     cfg.Poll,
	})
	return a
}

// Start begins detection.
func (a *Assistant) Start() {
	a.cfg.Log.Infof("assistant started for %s", a.cfg.Profile.Name)
	a.loop.Post(a.observer.Start)
}

// Mutated forwards a mutation burst to the observer.
func (a *Assistant) Mutated(added int) {
	a.observer.Notify(added)
}

// Dispatch routes a click on a control. An empty root goes to every control.
func (a *Assistant) Dispatch(root, action, tone string) {
	a.loop.Post(func() {
		if root == "" {
			for _, c := range a.controls {
				c.Handle(action, tone)
			}
			return
		}
		c, ok := a.controls[root]
		if !ok {
			a.cfg.Log.Debugf("action %q for unknown control %s", action, root)
			return
		}
		c.Handle(action, tone)
	})
}

// Serves reports whether the assistant's profile covers url.
func (a *Assistant) Serves(url string) bool {
	return a.cfg.Profile.Matches(url)
}

// Call runs fn on the assistant's loop and waits for it.
func (a *Assistant) Call(ctx context.Context, fn func()) error {
	return a.loop.Call(ctx, fn)
}

// Control returns the control of the tracked editor. It must be called on
// the loop.
func (a *Assistant) Control() *control.Control {
	if h := a.observer.Current(); h != nil {
		return a.controls[h.ID]
	}
	return nil
}

// Stop cancels scheduled work, removes the controls from the page and
// waits for in-flight sends to return.
func (a *Assistant) Stop() {
	a.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()

		err := a.loop.Call(ctx, func() {
			a.observer.Stop()
			for id := range a.controls {
				a.drop(id)
			}
			a.engine.DetachAll()
			a.release()
		})
		if err != nil {
			a.cfg.Log.Warnf("page cleanup did not finish: %v", err)
		}
		a.loop.Stop()
		a.loop.Wait()

		a.draining.Wait()
		a.emit(types.NewEvent(types.EventTypeAssistantStopped, a.cfg.Profile.Name))
		a.cfg.Log.Infof("assistant stopped for %s", a.cfg.Profile.Name)
	})
}

// Request builds the generation request from the page as it is now. It must
// be called on the loop.
func (a *Assistant) Request(tone types.Tone) types.GenerationRequest {
	t := a.extractor.Extract(a.cfg.Doc)
	switch {
	case t.Empty:
		a.cfg.Log.Infof("no conversation found: %v", t.Err())
	case t.Fallback:
		a.cfg.Log.Infof("conversation extracted with the page scrape")
		a.emit(types.NewEvent(types.EventTypeExtractionFallback, a.cfg.Profile.Name))
	default:
		a.cfg.Log.Debugf("extracted %d messages", len(t.Records))
	}
	return types.GenerationRequest{
		Transcript:  t.Text,
		Attachments: extract.JoinAttachments(a.extractor.Attachments(a.cfg.Doc)),
		Tone:        tone,
		Host:        a.cfg.Profile.Name,
	}
}

func (a *Assistant) attached(h *placement.Handle) {
	c := control.New(control.Config{
		ID:            h.ID,
		Host:          a.cfg.Profile.Name,
		Root:          h.Root,
		Editor:        h.Editor,
		Loop:          a.loop,
		Sender:        a.cfg.Sender,
		Build:         a.Request,
		Log:           a.cfg.Log,
		Emit:          a.emit,
		NoticeTimeout: a.cfg.NoticeTimeout,
	})
	a.controls[h.ID] = c

	a.emit(types.NewEvent(types.EventTypeEditorDetected, a.cfg.Profile.Name).WithControl(h.ID))
	attached := types.NewEvent(types.EventTypeControlAttached, a.cfg.Profile.Name).WithControl(h.ID)
	attached.Placement = h.Strategy
	a.emit(attached)
}

func (a *Assistant) detached(h *placement.Handle, lost bool) {
	a.drop(h.ID)
	if lost {
		a.emit(types.NewEvent(types.EventTypeEditorLost, a.cfg.Profile.Name).WithControl(h.ID))
	}
}

// drop closes the control id and forgets it. Its in-flight send is awaited
// by Stop.
func (a *Assistant) drop(id string) {
	c, ok := a.controls[id]
	if !ok {
		return
	}
	c.Close()
	a.draining.Add(1)
	go func() {
		defer a.draining.Done()
		c.Wait()
	}()
	delete(a.controls, id)
	a.emit(types.NewEvent(types.EventTypeControlDetached, a.cfg.Profile.Name).WithControl(id))
}

// release frees the page handles that no attached control holds.
func (a *Assistant) release() {
	r, ok := a.cfg.Doc.(dom.Releaser)
	if !ok {
		return
	}
	var keep []dom.Element
	for _, h := range a.engine.Handles() {
		keep = append(keep, h.Editor, h.Root, h.Container)
	}
	r.Release(keep...)
}

func (a *Assistant) emit(e *types.Event) {
	if a.cfg.Emit != nil {
		a.cfg.Emit(e)
	}
}
