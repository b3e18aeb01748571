package config

import (
	"fmt"
	"os"
	"sync"
)

// Environment variables that override the stored assistant settings.
const (
	EnvAPIKey  = "MAILWRIGHT_API_KEY"
	EnvBaseURL = "MAILWRIGHT_BASE_URL"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// NewDefaultManager creates a manager over the file at configPath with the
// assistant and browser sections registered and loaded.
func NewDefaultManager(configPath string) (*Manager, error) {
	store, err := NewFileStore(configPath)
	if err != nil {
		return nil, err
	}

	manager := NewManager(store)
	if err := manager.RegisterSection(NewAssistantSection()); err != nil {
		return nil, err
	}
	if err := manager.RegisterSection(NewBrowserSection()); err != nil {
		return nil, err
	}

	if err := manager.LoadAll(); err != nil {
		return nil, err
	}
	return manager, nil
}

// Initialize creates and initializes the global configuration manager.
// This should be called once at application startup.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	manager, err := NewDefaultManager(configPath)
	if err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}

	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetAssistant returns the assistant section from global config.
// Returns nil if config is not initialized.
func GetAssistant() *AssistantSection {
	if !IsInitialized() {
		return nil
	}
	return AssistantOf(Global())
}

// GetBrowser returns the browser section from global config.
// Returns nil if config is not initialized.
func GetBrowser() *BrowserSection {
	if !IsInitialized() {
		return nil
	}
	return BrowserOf(Global())
}

// AssistantOf returns the assistant section registered on m, or nil.
func AssistantOf(m *Manager) *AssistantSection {
	section, ok := m.GetSection(SectionIDAssistant)
	if !ok {
		return nil
	}
	assistant, _ := section.(*AssistantSection)
	return assistant
}

// BrowserOf returns the browser section registered on m, or nil.
func BrowserOf(m *Manager) *BrowserSection {
	section, ok := m.GetSection(SectionIDBrowser)
	if !ok {
		return nil
	}
	browser, _ := section.(*BrowserSection)
	return browser
}

// Live reads settings from disk on every call so that changes made by
// `mailwright settings` or PUT /v1/settings apply to the next generation
// without a restart.
type Live struct {
	manager   *Manager
	overrides Overrides
	mu        sync.Mutex
}

// NewLive wraps a manager whose sections include the assistant section.
func NewLive(manager *Manager) *Live {
	return &Live{manager: manager}
}

// SetOverrides installs command-line values that win over the file and the
// environment.
func (l *Live) SetOverrides(o Overrides) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides = o
}

// Assistant reloads the store and returns the assistant settings with
// environment and command-line overrides applied.
func (l *Live) Assistant() (AssistantSettings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.manager.LoadAll(); err != nil {
		return AssistantSettings{}, fmt.Errorf("failed to reload settings: %w", err)
	}
	section := AssistantOf(l.manager)
	if section == nil {
		return AssistantSettings{}, fmt.Errorf("assistant section not registered")
	}
	return l.overrides.Apply(applyEnv(section.Snapshot())), nil
}

// UpdateAssistant applies data to the assistant section and saves.
func (l *Live) UpdateAssistant(data map[string]any) (AssistantSettings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.manager.LoadAll(); err != nil {
		return AssistantSettings{}, fmt.Errorf("failed to reload settings: %w", err)
	}
	section := AssistantOf(l.manager)
	if section == nil {
		return AssistantSettings{}, fmt.Errorf("assistant section not registered")
	}
	if err := section.SetData(data); err != nil {
		return AssistantSettings{}, err
	}
	if err := l.manager.SaveAll(); err != nil {
		return AssistantSettings{}, err
	}
	return section.Snapshot(), nil
}

// Reset restores every section to its defaults and saves.
func (l *Live) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.manager.ResetAll()
	return l.manager.SaveAll()
}

// Path returns the settings file path.
func (l *Live) Path() string {
	return l.manager.Store().Path()
}

func applyEnv(settings AssistantSettings) AssistantSettings {
	if key := os.Getenv(EnvAPIKey); key != "" {
		settings.APIKey = key
	}
	if baseURL := os.Getenv(EnvBaseURL); baseURL != "" {
		settings.BaseURL = baseURL
	}
	return settings
}
