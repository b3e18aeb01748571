package browser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/playwright-community/playwright-go"
)

// Manager owns the Playwright driver.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	sessions    []*Session
	log         *logging.Logger
	initialized bool
}

// NewManager creates a manager. Call Initialize before launching.
func NewManager(log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Discard()
	}
	return &Manager{log: log}
}

// Initialize installs Chromium when missing and starts the driver.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Driver output would interleave with the CLI's own output
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	m.log.Infof("playwright driver started")
	return nil
}

// Launch starts Chromium with a persistent profile and injects the page
// runtime into every page of it.
func (m *Manager) Launch(opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}

	if opts.UserDataDir == "" {
		dir, err := DefaultUserDataDir()
		if err != nil {
			return nil, err
		}
		opts.UserDataDir = dir
	}
	if err := os.MkdirAll(opts.UserDataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.Viewport != nil {
		launchOpts.Viewport = &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height}
	} else {
		launchOpts.NoViewport = playwright.Bool(true)
	}

	bctx, err := m.playwright.Chromium.LaunchPersistentContext(opts.UserDataDir, launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	bctx.SetDefaultTimeout(opts.Timeout)

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(RuntimeScript)}); err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to inject page runtime: %w", err)
	}

	session := newSession(bctx, m.log)
	m.sessions = append(m.sessions, session)
	m.log.Infof("browser launched with profile %s (headless=%t)", opts.UserDataDir, opts.Headless)
	return session, nil
}

// Shutdown closes every session and stops the driver.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		s.Close()
	}
	m.sessions = nil

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}

// DefaultUserDataDir is ~/.mailwright/chromium.
func DefaultUserDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".mailwright", "chromium"), nil
}
