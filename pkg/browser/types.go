package browser

import (
	"github.com/playwright-community/playwright-go"
)

// Defaults for new sessions.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
	DefaultTimeout        = 30000
)

// SessionOptions configures the browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// UserDataDir is the Chromium profile directory. The login to the
	// webmail host lives there.
	UserDataDir string

	// Viewport sets the initial viewport size. Nil lets the window decide.
	Viewport *Viewport

	// Timeout sets the default timeout for operations (in milliseconds)
	Timeout float64
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string

	// Timeout in milliseconds (0 means default)
	Timeout float64
}

// PageHandler receives the runtime events of one page document.
type PageHandler interface {
	// Mutated reports a mutation burst that added nodes.
	Mutated(added int)

	// Dispatch reports a click on a control action. root is empty for a
	// click outside every control.
	Dispatch(root, action, tone string)

	// Serves reports whether the handler still applies after a
	// same-document navigation to url.
	Serves(url string) bool

	// Stop releases the page and waits for its in-flight work. It is
	// called from the session goroutine, never from a Playwright callback.
	Stop()
}

// Binder creates handlers for pages.
type Binder interface {
	// Bind returns the handler for page at url, or nil when url is not
	// served.
	Bind(page playwright.Page, url string) PageHandler
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(page playwright.Page, url string) PageHandler

// Bind calls f.
func (f BinderFunc) Bind(page playwright.Page, url string) PageHandler {
	return f(page, url)
}
