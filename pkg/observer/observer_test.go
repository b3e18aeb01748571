package observer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/entrhq/mailwright/pkg/dom/htmldom"
	"github.com/entrhq/mailwright/pkg/loop"
	"github.com/entrhq/mailwright/pkg/placement"
	"github.com/entrhq/mailwright/pkg/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const compose = `<div role="dialog" class="compose"><div role="toolbar"></div><div contenteditable="true" role="textbox" aria-label="Message Body" class="ed"></div></div>`

type change struct {
	id       string
	attached bool
	lost     bool
}

type harness struct {
	loop *loop.Loop
	doc  *htmldom.Document
	obs  *Observer

	mu      sync.Mutex
	changes []change
}

func newHarness(t *testing.T, markup string, debounce, poll time.Duration) *harness {
	t.Helper()
	set, err := profile.Builtin()
	require.NoError(t, err)
	p, ok := set.Get("gmail")
	require.True(t, ok)

	doc, err := htmldom.ParseString(markup)
	require.NoError(t, err)

	h := &harness{loop: loop.New(nil), doc: doc}
	engine := placement.New(p, h.loop, nil)
	h.obs = New(Config{
		Doc:     doc,
		Profile: p,
		Engine:  engine,
		Loop:    h.loop,
		Hooks: Hooks{
			Attached: func(ph *placement.Handle) { h.record(change{id: ph.ID, attached: true}) },
			Detached: func(ph *placement.Handle, lost bool) { h.record(change{id: ph.ID, lost: lost}) },
		},
		Debounce: debounce,
		Poll:     poll,
	})
	t.Cleanup(func() {
		_ = h.loop.Call(context.Background(), func() {
			h.obs.Stop()
			engine.DetachAll()
		})
		h.loop.Stop()
		h.loop.Wait()
	})
	return h
}

func (h *harness) record(c change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changes = append(h.changes, c)
}

func (h *harness) history() []change {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]change(nil), h.changes...)
}

func (h *harness) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, h.loop.Call(context.Background(), fn))
}

func (h *harness) count(t *testing.T, sel string) int {
	n := 0
	h.do(t, func() {
		els, err := h.doc.Root().QuerySelectorAll(sel)
		if err == nil {
			n = len(els)
		}
	})
	return n
}

func (h *harness) appendCompose(t *testing.T) {
	h.do(t, func() {
		_, err := h.doc.Body().AppendHTML(compose)
		assert.NoError(t, err)
	})
}

func (h *harness) removeAll(t *testing.T, sel string) {
	h.do(t, func() {
		els, _ := h.doc.Root().QuerySelectorAll(sel)
		for _, el := range els {
			_ = el.Remove()
		}
	})
}

func TestStart_AttachesOnce(t *testing.T) {
	h := newHarness(t, `<body>`+compose+`</body>`, time.Hour, time.Hour)

	h.do(t, h.obs.Start)
	h.do(t, h.obs.Detect)
	h.do(t, h.obs.Start)

	changes := h.history()
	require.Len(t, changes, 1)
	assert.True(t, changes[0].attached)
	assert.Equal(t, 1, h.count(t, "["+placement.AttrRoot+"]"))

	var current *placement.Handle
	h.do(t, func() { current = h.obs.Current() })
	require.NotNil(t, current)
	assert.Equal(t, changes[0].id, current.ID)
}

func TestDetect_NewEditorReplacesControl(t *testing.T) {
	h := newHarness(t, `<body>`+compose+`</body>`, time.Hour, time.Hour)
	h.do(t, h.obs.Start)

	h.removeAll(t, ".compose")
	h.appendCompose(t)
	h.do(t, h.obs.Detect)

	changes := h.history()
	require.Len(t, changes, 3)
	assert.True(t, changes[0].attached)
	assert.Equal(t, change{id: changes[0].id, lost: false}, changes[1])
	assert.True(t, changes[2].attached)
	assert.NotEqual(t, changes[0].id, changes[2].id)
	assert.Equal(t, 1, h.count(t, "["+placement.AttrRoot+"]"))
}

func TestDetect_EditorLost(t *testing.T) {
	h := newHarness(t, `<body>`+compose+`</body>`, time.Hour, time.Hour)
	h.do(t, h.obs.Start)

	h.removeAll(t, ".compose")
	h.do(t, h.obs.Detect)

	changes := h.history()
	require.Len(t, changes, 2)
	assert.True(t, changes[1].lost)

	var current *placement.Handle
	h.do(t, func() { current = h.obs.Current() })
	assert.Nil(t, current)
}

func TestDetect_ControlRemovedByHost(t *testing.T) {
	h := newHarness(t, `<body>`+compose+`</body>`, time.Hour, time.Hour)
	h.do(t, h.obs.Start)

	// The host re-rendered its toolbar and dropped the control
	h.removeAll(t, "["+placement.AttrRoot+"]")
	h.do(t, h.obs.Detect)

	changes := h.history()
	require.Len(t, changes, 3)
	assert.True(t, changes[2].attached)
	assert.Equal(t, 1, h.count(t, "["+placement.AttrRoot+"]"))
}

func TestDetect_ReplyEditor(t *testing.T) {
	h := newHarness(t, `<body><div aria-label="Reply to Ann"><div contenteditable="true" id="reply"></div></div></body>`, time.Hour, time.Hour)
	h.do(t, h.obs.Start)

	var editorID string
	h.do(t, func() {
		if c := h.obs.Current(); c != nil {
			editorID, _ = c.Editor.Attribute("id")
		}
	})
	assert.Equal(t, "reply", editorID)
}

func TestNotify_Debounced(t *testing.T) {
	const debounce = 200 * time.Millisecond
	h := newHarness(t, `<body></body>`, debounce, time.Hour)
	h.do(t, h.obs.Start)
	require.Empty(t, h.history())

	h.appendCompose(t)
	h.obs.Notify(0)
	h.obs.Notify(3)
	time.Sleep(120 * time.Millisecond)
	h.obs.Notify(1)
	time.Sleep(120 * time.Millisecond)

	// The first burst's detection was rescheduled by the second
	assert.Empty(t, h.history())

	assert.Eventually(t, func() bool { return len(h.history()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestNotify_ZeroAddedIgnored(t *testing.T) {
	h := newHarness(t, `<body></body>`, 5*time.Millisecond, time.Hour)
	h.do(t, h.obs.Start)

	h.appendCompose(t)
	h.obs.Notify(0)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.history())
}

func TestPoll(t *testing.T) {
	h := newHarness(t, `<body></body>`, time.Hour, 10*time.Millisecond)
	h.do(t, h.obs.Start)

	h.appendCompose(t)
	assert.Eventually(t, func() bool { return len(h.history()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestStop(t *testing.T) {
	h := newHarness(t, `<body></body>`, 5*time.Millisecond, 5*time.Millisecond)
	h.do(t, h.obs.Start)
	h.do(t, h.obs.Stop)

	h.appendCompose(t)
	h.obs.Notify(1)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.history())

	// Detect and Start are inert after Stop
	h.do(t, h.obs.Detect)
	h.do(t, h.obs.Start)
	assert.Empty(t, h.history())
}

func TestOverlayLost(t *testing.T) {
	set, err := profile.Builtin()
	require.NoError(t, err)
	gm, _ := set.Get("gmail")
	p := *gm
	p.Placement = []string{profile.PlaceOverlay}

	doc, err := htmldom.ParseString(`<body><div contenteditable="true" role="textbox" aria-label="Message Body" id="ed"></div></body>`)
	require.NoError(t, err)
	l := loop.New(nil)
	defer func() {
		l.Stop()
		l.Wait()
	}()

	engine := placement.New(&p, l, nil, placement.WithInterval(time.Hour))
	lost := make(chan bool, 1)
	obs := New(Config{
		Doc:      doc,
		Profile:  &p,
		Engine:   engine,
		Loop:     l,
		Hooks:    Hooks{Detached: func(_ *placement.Handle, wasLost bool) { lost <- wasLost }},
		Debounce: time.Hour,
		Poll:     time.Hour,
	})

	var h *placement.Handle
	require.NoError(t, l.Call(context.Background(), func() {
		obs.Start()
		h = obs.Current()
	}))
	require.NotNil(t, h)
	require.Equal(t, profile.PlaceOverlay, h.Strategy)

	require.NoError(t, l.Call(context.Background(), func() {
		ed, _ := dom.QueryFirst(doc.Root(), "#ed")
		_ = ed.Remove()
		engine.Reposition(h)
	}))
	select {
	case wasLost := <-lost:
		assert.True(t, wasLost)
	case <-time.After(time.Second):
		t.Fatal("observer was not told about the lost editor")
	}

	var current *placement.Handle
	require.NoError(t, l.Call(context.Background(), func() {
		current = obs.Current()
		obs.Stop()
	}))
	assert.Nil(t, current)
}
