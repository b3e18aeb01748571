package assistant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/mailwright/pkg/control"
	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/entrhq/mailwright/pkg/dom/htmldom"
	"github.com/entrhq/mailwright/pkg/placement"
	"github.com/entrhq/mailwright/pkg/profile"
	"github.com/entrhq/mailwright/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const page = `<html><body>
<h2>Quarterly numbers</h2>
<div role="main">
  <div data-message-id="1"><span email="ann@example.com">Ann</span><div dir="ltr">Could you send the updated figures by Friday?</div></div>
  <span data-tooltip="Download attachment">figures.xlsx</span>
</div>
<div role="dialog" class="compose"><div role="toolbar"></div><div contenteditable="true" role="textbox" aria-label="Message Body" class="ed"></div></div>
</body></html>`

type stubSender struct {
	mu       sync.Mutex
	requests []types.GenerationRequest
	reply    string
	err      error
}

func (s *stubSender) Send(_ context.Context, req types.GenerationRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.reply, s.err
}

func (s *stubSender) sent() []types.GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.GenerationRequest(nil), s.requests...)
}

type harness struct {
	a      *Assistant
	doc    *htmldom.Document
	sender *stubSender

	mu     sync.Mutex
	events []*types.Event
}

func newHarness(t *testing.T, markup string, sender *stubSender) *harness {
	t.Helper()
	set, err := profile.Builtin()
	require.NoError(t, err)
	p, ok := set.Get("gmail")
	require.True(t, ok)
	doc, err := htmldom.ParseString(markup)
	require.NoError(t, err)

	h := &harness{doc: doc, sender: sender}
	h.a = New(Config{
		Doc:      doc,
		Profile:  p,
		Sender:   sender,
		Emit:     h.record,
		Debounce: 10 * time.Millisecond,
		Poll:     time.Hour,
	})
	t.Cleanup(h.a.Stop)
	return h
}

func (h *harness) record(e *types.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *harness) eventTypes() []types.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.EventType, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

func (h *harness) control(t *testing.T) *control.Control {
	t.Helper()
	var c *control.Control
	require.Eventually(t, func() bool {
		_ = h.a.Call(context.Background(), func() { c = h.a.Control() })
		return c != nil
	}, time.Second, 5*time.Millisecond)
	return c
}

func (h *harness) state(t *testing.T, c *control.Control) control.State {
	var s control.State
	require.NoError(t, h.a.Call(context.Background(), func() { s = c.State() }))
	return s
}

func TestAssistant_GeneratesIntoEditor(t *testing.T) {
	h := newHarness(t, page, &stubSender{reply: "Hi Ann,\n\nAttached are the figures."})
	h.a.Start()
	c := h.control(t)

	h.a.Dispatch(c.ID(), control.ActionGenerate, string(types.ToneFormal))
	require.Eventually(t, func() bool {
		return h.state(t, c) == control.Generated
	}, time.Second, 5*time.Millisecond)

	reqs := h.sender.sent()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, types.ToneFormal, req.Tone)
	assert.Equal(t, "gmail", req.Host)
	assert.Contains(t, req.Transcript, "Email 1:\nFrom: ann@example.com\nSubject: Quarterly numbers")
	assert.Contains(t, req.Transcript, "Could you send the updated figures by Friday?")
	require.NotNil(t, req.Attachments)
	assert.Equal(t, "figures.xlsx", *req.Attachments)

	var inner string
	require.NoError(t, h.a.Call(context.Background(), func() { inner = c.Editor().InnerText() }))
	assert.Equal(t, "Hi Ann,\n\nAttached are the figures.", inner)

	assert.Equal(t, []types.EventType{
		types.EventTypeEditorDetected,
		types.EventTypeControlAttached,
		types.EventTypeGenerationStart,
		types.EventTypeGenerationComplete,
	}, h.eventTypes())
}

func TestAssistant_ExtractionFallback(t *testing.T) {
	markup := `<html><body>
<p>Hello team, the launch moved to next Thursday because of the venue change.</p>
<div role="dialog"><div role="toolbar"></div><div contenteditable="true" role="textbox" aria-label="Message Body"></div></div>
</body></html>`
	h := newHarness(t, markup, &stubSender{reply: "Thanks for the heads up."})
	h.a.Start()
	c := h.control(t)

	h.a.Dispatch(c.ID(), control.ActionGenerate, "")
	require.Eventually(t, func() bool {
		return len(h.sender.sent()) == 1
	}, time.Second, 5*time.Millisecond)

	req := h.sender.sent()[0]
	assert.Equal(t, types.ToneDefault, req.Tone)
	assert.Contains(t, req.Transcript, "the launch moved to next Thursday")
	assert.Nil(t, req.Attachments)
	assert.Contains(t, h.eventTypes(), types.EventTypeExtractionFallback)
}

func TestAssistant_ServiceError(t *testing.T) {
	h := newHarness(t, page, &stubSender{err: types.NewError(types.KindServiceError, "quota exceeded")})
	h.a.Start()
	c := h.control(t)

	h.a.Dispatch(c.ID(), control.ActionGenerate, "")
	require.Eventually(t, func() bool {
		var text string
		_ = h.a.Call(context.Background(), func() { text, _ = c.Notice() })
		return text == "Error generating response: quota exceeded"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, control.Idle, h.state(t, c))
	assert.Contains(t, h.eventTypes(), types.EventTypeGenerationFailed)
}

func TestAssistant_DispatchRouting(t *testing.T) {
	h := newHarness(t, page, &stubSender{reply: "ok"})
	h.a.Start()
	c := h.control(t)

	menuOpen := func() bool {
		var open bool
		require.NoError(t, h.a.Call(context.Background(), func() { open = c.MenuOpen() }))
		return open
	}

	h.a.Dispatch(c.ID(), control.ActionMenu, "")
	assert.True(t, menuOpen())

	h.a.Dispatch("unknown", control.ActionDismiss, "")
	assert.True(t, menuOpen())

	// Clicks outside any control close every open menu
	h.a.Dispatch("", control.ActionDismiss, "")
	assert.False(t, menuOpen())
	assert.Empty(t, h.sender.sent())
}

func TestAssistant_EditorAppearsLater(t *testing.T) {
	h := newHarness(t, `<html><body><div role="main"></div></body></html>`, &stubSender{reply: "ok"})
	h.a.Start()

	var c *control.Control
	require.NoError(t, h.a.Call(context.Background(), func() { c = h.a.Control() }))
	assert.Nil(t, c)

	require.NoError(t, h.a.Call(context.Background(), func() {
		_, err := h.doc.Body().AppendHTML(`<div role="dialog"><div role="toolbar"></div><div contenteditable="true" role="textbox" aria-label="Message Body"></div></div>`)
		assert.NoError(t, err)
	}))
	h.a.Mutated(3)
	assert.NotNil(t, h.control(t))
}

func TestAssistant_Stop(t *testing.T) {
	h := newHarness(t, page, &stubSender{reply: "ok"})
	h.a.Start()
	h.control(t)

	h.a.Stop()
	h.a.Stop()

	els, err := h.doc.Root().QuerySelectorAll("[" + placement.AttrRoot + "]")
	require.NoError(t, err)
	assert.Empty(t, els)

	evs := h.eventTypes()
	require.NotEmpty(t, evs)
	assert.Equal(t, types.EventTypeAssistantStopped, evs[len(evs)-1])
	assert.Contains(t, evs, types.EventTypeControlDetached)
	assert.NotContains(t, evs, types.EventTypeEditorLost)

	// A stopped assistant ignores page traffic
	h.a.Mutated(1)
	h.a.Dispatch("", control.ActionDismiss, "")
}

// heldSender blocks every send until released or cancelled.
type heldSender struct {
	started   chan struct{}
	release   chan struct{}
	cancelled chan struct{}
}

func newHeldSender() *heldSender {
	return &heldSender{
		started:   make(chan struct{}, 8),
		release:   make(chan struct{}),
		cancelled: make(chan struct{}, 8),
	}
}

func (s *heldSender) Send(ctx context.Context, _ types.GenerationRequest) (string, error) {
	s.started <- struct{}{}
	select {
	case <-s.release:
		return "ok", nil
	case <-ctx.Done():
		s.cancelled <- struct{}{}
		return "", ctx.Err()
	}
}

const composeDialog = `<div role="dialog"><div role="toolbar"></div><div contenteditable="true" role="textbox" aria-label="Message Body"></div></div>`

func (h *harness) replaceEditor(t *testing.T, add bool) {
	t.Helper()
	require.NoError(t, h.a.Call(context.Background(), func() {
		dialogs, err := h.doc.Root().QuerySelectorAll("[role=dialog]")
		assert.NoError(t, err)
		for _, d := range dialogs {
			assert.NoError(t, d.Remove())
		}
		if add {
			_, err = h.doc.Body().AppendHTML(composeDialog)
			assert.NoError(t, err)
		}
	}))
	h.a.Mutated(1)
}

func TestAssistant_EditorLostDuringSend(t *testing.T) {
	set, err := profile.Builtin()
	require.NoError(t, err)
	p, _ := set.Get("gmail")
	doc, err := htmldom.ParseString(page)
	require.NoError(t, err)

	sender := newHeldSender()
	h := &harness{doc: doc}
	h.a = New(Config{Doc: doc, Profile: p, Sender: sender, Emit: h.record, Debounce: 10 * time.Millisecond, Poll: time.Hour})
	t.Cleanup(h.a.Stop)
	h.a.Start()
	c := h.control(t)

	h.a.Dispatch(c.ID(), control.ActionGenerate, "")
	select {
	case <-sender.started:
	case <-time.After(time.Second):
		t.Fatal("send did not start")
	}

	h.replaceEditor(t, false)
	select {
	case <-sender.cancelled:
	case <-time.After(time.Second):
		t.Fatal("send was not cancelled when its editor left the page")
	}
	require.Eventually(t, func() bool {
		for _, e := range h.eventTypes() {
			if e == types.EventTypeEditorLost {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, h.eventTypes(), types.EventTypeControlDetached)

	h.a.Stop()
	evs := h.eventTypes()
	assert.Equal(t, types.EventTypeAssistantStopped, evs[len(evs)-1])
}

func TestAssistant_EditorReplacements(t *testing.T) {
	h := newHarness(t, page, &stubSender{reply: "ok"})
	h.a.Start()

	seen := map[string]bool{h.control(t).ID(): true}
	for range 5 {
		h.replaceEditor(t, true)
		require.Eventually(t, func() bool {
			var c *control.Control
			_ = h.a.Call(context.Background(), func() { c = h.a.Control() })
			return c != nil && !seen[c.ID()]
		}, time.Second, 5*time.Millisecond)
		seen[h.control(t).ID()] = true
	}

	var live int
	require.NoError(t, h.a.Call(context.Background(), func() { live = len(h.a.controls) }))
	assert.Equal(t, 1, live)

	done := make(chan struct{})
	go func() {
		h.a.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after editor replacements")
	}
}

// releasingDoc records the keep sets passed to Release.
type releasingDoc struct {
	*htmldom.Document

	mu    sync.Mutex
	calls [][]dom.Element
}

func (d *releasingDoc) Release(keep ...dom.Element) {
	var live []dom.Element
	for _, k := range keep {
		if k != nil {
			live = append(live, k)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, live)
}

func (d *releasingDoc) last() ([]dom.Element, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return nil, 0
	}
	return d.calls[len(d.calls)-1], len(d.calls)
}

func TestAssistant_ReleasesUnheldElements(t *testing.T) {
	set, err := profile.Builtin()
	require.NoError(t, err)
	p, _ := set.Get("gmail")
	parsed, err := htmldom.ParseString(page)
	require.NoError(t, err)
	doc := &releasingDoc{Document: parsed}

	h := &harness{doc: parsed}
	h.a = New(Config{Doc: doc, Profile: p, Sender: &stubSender{reply: "ok"}, Emit: h.record, Debounce: 10 * time.Millisecond, Poll: time.Hour})
	t.Cleanup(h.a.Stop)
	h.a.Start()
	c := h.control(t)

	var editor, root dom.Element
	require.NoError(t, h.a.Call(context.Background(), func() {
		editor = c.Editor()
		root, _ = dom.QueryFirst(parsed.Root(), "["+placement.AttrRoot+"]")
	}))
	require.NotNil(t, root)

	holds := func(keep []dom.Element, el dom.Element) bool {
		for _, k := range keep {
			if k.SameNode(el) {
				return true
			}
		}
		return false
	}
	require.Eventually(t, func() bool {
		keep, n := doc.last()
		return n > 0 && holds(keep, editor) && holds(keep, root)
	}, time.Second, 5*time.Millisecond)

	h.a.Stop()
	keep, _ := doc.last()
	assert.Empty(t, keep)
}

func TestAssistant_Serves(t *testing.T) {
	h := newHarness(t, page, &stubSender{})
	assert.True(t, h.a.Serves("https://mail.google.com/mail/u/0/#inbox"))
	assert.False(t, h.a.Serves("https://outlook.office.com/mail/"))
}
