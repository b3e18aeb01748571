package browser

import (
	"fmt"
	"sync"

	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/playwright-community/playwright-go"
)

type eventKind int

const (
	trackEvent eventKind = iota
	loadEvent
	navigateEvent
	closeEvent
)

type event struct {
	kind  eventKind
	state *pageState
	url   string
}

type pageState struct {
	page    playwright.Page
	mu      sync.Mutex
	handler PageHandler
}

func (p *pageState) current() PageHandler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler
}

func (p *pageState) swap(h PageHandler) PageHandler {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.handler
	p.handler = h
	return old
}

// Session is a running browser context. Page events are processed on one
// goroutine, never inside Playwright's own callbacks.
type Session struct {
	Context playwright.BrowserContext

	log       *logging.Logger
	mu        sync.Mutex
	binder    Binder
	pages     map[playwright.Page]*pageState
	events    chan event
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSession(bctx playwright.BrowserContext, log *logging.Logger) *Session {
	s := &Session{
		Context: bctx,
		log:     log,
		pages:   make(map[playwright.Page]*pageState),
		events:  make(chan event, 64),
		done:    make(chan struct{}),
	}
	bctx.OnClose(func(playwright.BrowserContext) {
		s.log.Infof("browser closed")
		s.markDone()
	})
	s.wg.Add(1)
	go s.run()
	return s
}

// Serve binds every current and future page of the session through b.
func (s *Session) Serve(b Binder) {
	s.mu.Lock()
	s.binder = b
	s.mu.Unlock()

	s.Context.OnPage(s.track)
	for _, page := range s.Context.Pages() {
		s.track(page)
	}
}

// Done is closed when the browser went away or the session was closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Page returns the first open page, opening one when there is none.
func (s *Session) Page() (playwright.Page, error) {
	for _, page := range s.Context.Pages() {
		if !page.IsClosed() {
			return page, nil
		}
	}
	page, err := s.Context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

// Navigate opens url in the first page.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	page, err := s.Page()
	if err != nil {
		return err
	}

	playwrightOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if _, err := page.Goto(url, playwrightOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Close stops every page handler and closes the browser.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.markDone()
		s.wg.Wait()
		if err := s.Context.Close(); err != nil {
			s.log.Debugf("failed to close browser context: %v", err)
		}
	})
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) send(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) track(page playwright.Page) {
	s.mu.Lock()
	if _, ok := s.pages[page]; ok {
		s.mu.Unlock()
		return
	}
	state := &pageState{page: page}
	s.pages[page] = state
	s.mu.Unlock()

	page.OnDOMContentLoaded(func(playwright.Page) {
		s.send(event{kind: loadEvent, state: state})
	})
	page.OnFrameNavigated(func(frame playwright.Frame) {
		if frame.ParentFrame() == nil {
			s.send(event{kind: navigateEvent, state: state, url: frame.URL()})
		}
	})
	page.OnClose(func(playwright.Page) {
		s.send(event{kind: closeEvent, state: state})
	})
	s.send(event{kind: trackEvent, state: state})
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-s.done:
			s.stopAll()
			return
		}
	}
}

func (s *Session) handle(ev event) {
	state := ev.state
	switch ev.kind {
	case trackEvent:
		if err := s.expose(state); err != nil {
			s.log.Warnf("failed to expose runtime bindings: %v", err)
			return
		}
		s.bind(state, state.page.URL())

	case loadEvent:
		s.bind(state, state.page.URL())

	case navigateEvent:
		if h := state.current(); h == nil || !h.Serves(ev.url) {
			s.bind(state, ev.url)
		}

	case closeEvent:
		if old := state.swap(nil); old != nil {
			old.Stop()
		}
		s.mu.Lock()
		delete(s.pages, state.page)
		s.mu.Unlock()
	}
}

func (s *Session) expose(state *pageState) error {
	err := state.page.ExposeFunction(BindingMutated, func(args ...interface{}) interface{} {
		if h := state.current(); h != nil {
			h.Mutated(intArg(args, 0))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", BindingMutated, err)
	}
	err = state.page.ExposeFunction(BindingDispatch, func(args ...interface{}) interface{} {
		if h := state.current(); h != nil {
			h.Dispatch(stringArg(args, 0), stringArg(args, 1), stringArg(args, 2))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", BindingDispatch, err)
	}
	return nil
}

func (s *Session) bind(state *pageState, url string) {
	if old := state.swap(nil); old != nil {
		old.Stop()
	}
	if state.page.IsClosed() {
		return
	}
	s.mu.Lock()
	binder := s.binder
	s.mu.Unlock()
	if binder == nil {
		return
	}
	if h := binder.Bind(state.page, url); h != nil {
		state.swap(h)
		s.log.Infof("page bound: %s", url)
	}
}

func (s *Session) stopAll() {
	s.mu.Lock()
	states := make([]*pageState, 0, len(s.pages))
	for _, state := range s.pages {
		states = append(states, state)
	}
	s.mu.Unlock()

	for _, state := range states {
		if old := state.swap(nil); old != nil {
			old.Stop()
		}
	}
}
