package config

import (
	"fmt"
	"net/url"
	"sync"
)

const (
	// SectionIDBrowser is the identifier for the browser session section
	SectionIDBrowser = "browser"

	defaultStartURL = "https://mail.google.com/"
)

// BrowserSection configures the Chromium session driven by `mailwright run`.
type BrowserSection struct {
	Headless     bool
	UserDataDir  string
	StartURL     string
	ProfilesFile string
	ServiceURL   string
	mu           sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	return &BrowserSection{StartURL: defaultStartURL}
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser Session"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Chromium profile and start page. service_url points at a running `mailwright serve`; empty uses the in-process worker."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"headless":      s.Headless,
		"user_data_dir": s.UserDataDir,
		"start_url":     s.StartURL,
		"profiles_file": s.ProfilesFile,
		"service_url":   s.ServiceURL,
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range data {
		switch key {
		case "headless":
			enabled, ok := value.(bool)
			if !ok {
				return fmt.Errorf("invalid value type for headless: expected bool, got %T", value)
			}
			s.Headless = enabled
		case "user_data_dir", "start_url", "profiles_file", "service_url":
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type for %s: expected string, got %T", key, value)
			}
			switch key {
			case "user_data_dir":
				s.UserDataDir = str
			case "start_url":
				s.StartURL = str
			case "profiles_file":
				s.ProfilesFile = str
			case "service_url":
				s.ServiceURL = str
			}
		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
	}

	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, raw := range map[string]string{"start_url": s.StartURL, "service_url": s.ServiceURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = false
	s.UserDataDir = ""
	s.StartURL = defaultStartURL
	s.ProfilesFile = ""
	s.ServiceURL = ""
}

// Snapshot returns a lock-free copy of the browser settings.
func (s *BrowserSection) Snapshot() BrowserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BrowserSettings{
		Headless:     s.Headless,
		UserDataDir:  s.UserDataDir,
		StartURL:     s.StartURL,
		ProfilesFile: s.ProfilesFile,
		ServiceURL:   s.ServiceURL,
	}
}

// BrowserSettings is an immutable view of BrowserSection.
type BrowserSettings struct {
	Headless     bool
	UserDataDir  string
	StartURL     string
	ProfilesFile string
	ServiceURL   string
}
