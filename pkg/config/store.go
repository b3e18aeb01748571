package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// fileVersion is written to every settings file.
const fileVersion = "1"

// Store persists section data.
type Store interface {
	// Load reads the backing file. A missing file is an empty store.
	Load() error

	// Save writes every section back.
	Save() error

	// GetSection returns a copy of the data stored for a section, empty
	// when the section was never saved.
	GetSection(id string) (map[string]any, error)

	// SetSection replaces the data of a section.
	SetSection(id string, data map[string]any) error

	// Path returns where the store lives.
	Path() string
}

// settingsFile is the on-disk layout of ~/.mailwright/config.json.
type settingsFile struct {
	Version  string                    `json:"version"`
	Sections map[string]map[string]any `json:"sections"`
}

// FileStore keeps the settings in one JSON file. The file holds the API
// key, so it and its directory are private to the user.
type FileStore struct {
	path     string
	mu       sync.RWMutex
	sections map[string]map[string]any
}

// DefaultPath returns ~/.mailwright/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".mailwright", "config.json"), nil
}

// NewFileStore opens the settings file at path, or at DefaultPath when
// path is empty.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	s := &FileStore{path: path, sections: map[string]map[string]any{}}
	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return s, nil
}

// Load replaces the in-memory sections with the file's. An empty file
// counts as missing.
func (s *FileStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		raw = nil
	} else if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	sections := map[string]map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		var file settingsFile
		if err := json.Unmarshal(raw, &file); err != nil {
			return fmt.Errorf("failed to decode config file: %w", err)
		}
		for id, data := range file.Sections {
			if data != nil {
				sections[id] = data
			}
		}
	}

	s.mu.Lock()
	s.sections = sections
	s.mu.Unlock()
	return nil
}

// Save writes the file through a temporary sibling and a rename.
func (s *FileStore) Save() error {
	s.mu.RLock()
	raw, err := json.MarshalIndent(settingsFile{Version: fileVersion, Sections: s.sections}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to restrict config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// GetSection returns a copy of the section's data.
func (s *FileStore) GetSection(id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.sections[id]; ok {
		return maps.Clone(data), nil
	}
	return map[string]any{}, nil
}

// SetSection stores a copy of data.
func (s *FileStore) SetSection(id string, data map[string]any) error {
	if id == "" {
		return errors.New("section id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[id] = maps.Clone(data)
	return nil
}

// Path returns the settings file path.
func (s *FileStore) Path() string {
	return s.path
}
