package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestManager_RegisterSection(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	m := NewManager(store)

	require.NoError(t, m.RegisterSection(NewBrowserSection()))
	require.NoError(t, m.RegisterSection(NewAssistantSection()))
	assert.ErrorContains(t, m.RegisterSection(NewAssistantSection()), `section "assistant" already registered`)

	sections := m.GetSections()
	require.Len(t, sections, 2)
	assert.Equal(t, SectionIDBrowser, sections[0].ID())
	assert.Equal(t, SectionIDAssistant, sections[1].ID())
	assert.NotNil(t, AssistantOf(m))
	assert.NotNil(t, BrowserOf(m))

	_, ok := m.GetSection("auto_approval")
	assert.False(t, ok)
	assert.Same(t, store, m.Store())
}

func TestManager_LoadAll(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		wantAssistant AssistantSettings
		wantBrowser   BrowserSettings
		wantErr       string
	}{
		{
			name:          "no file",
			wantAssistant: AssistantSettings{Provider: ProviderOpenAI},
			wantBrowser:   BrowserSettings{StartURL: defaultStartURL},
		},
		{
			name:    "analyze_attachments absent",
			content: `{"sections":{"assistant":{"api_key":"  AIzaSyExample1234 ","model":"gemini-2.0-flash"}}}`,
			wantAssistant: AssistantSettings{
				APIKey:   "AIzaSyExample1234",
				Provider: ProviderOpenAI,
				Model:    "gemini-2.0-flash",
			},
			wantBrowser: BrowserSettings{StartURL: defaultStartURL},
		},
		{
			name:    "bedrock with attachments",
			content: `{"sections":{
				"assistant":{"provider":"bedrock","region":"us-east-1","analyze_attachments":true},
				"browser":{"headless":true,"service_url":"http://127.0.0.1:8787","future_key":1}}}`,
			wantAssistant: AssistantSettings{
				Provider:           ProviderBedrock,
				Region:             "us-east-1",
				AnalyzeAttachments: true,
			},
			wantBrowser: BrowserSettings{Headless: true, StartURL: defaultStartURL, ServiceURL: "http://127.0.0.1:8787"},
		},
		{
			name:    "analyze_attachments as string",
			content: `{"sections":{"assistant":{"analyze_attachments":"yes"}}}`,
			wantErr: "failed to apply section assistant",
		},
		{
			name:    "headless as string",
			content: `{"sections":{"browser":{"headless":"true"}}}`,
			wantErr: "failed to apply section browser",
		},
		{
			name:    "corrupt file",
			content: `{"sections":{"assistant":`,
			wantErr: "failed to decode config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if tt.content != "" {
				writeSettings(t, path, tt.content)
			}

			m, err := NewDefaultManager(path)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAssistant, AssistantOf(m).Snapshot())
			assert.Equal(t, tt.wantBrowser, BrowserOf(m).Snapshot())
		})
	}
}

func TestManager_LoadAllForgetsRemovedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeSettings(t, path, `{"sections":{"assistant":{"api_key":"sk-1234","analyze_attachments":true},"browser":{"headless":true}}}`)

	m, err := NewDefaultManager(path)
	require.NoError(t, err)
	require.True(t, AssistantOf(m).GetAnalyzeAttachments())

	// The user edits the file by hand
	writeSettings(t, path, `{"sections":{"assistant":{"api_key":"sk-1234"}}}`)
	require.NoError(t, m.LoadAll())

	assert.False(t, AssistantOf(m).GetAnalyzeAttachments())
	assert.Equal(t, "sk-1234", AssistantOf(m).GetAPIKey())
	assert.False(t, BrowserOf(m).Snapshot().Headless)
}

func TestManager_SaveAll(t *testing.T) {
	tests := []struct {
		name    string
		update  func(m *Manager) error
		wantErr string
	}{
		{
			name: "valid",
			update: func(m *Manager) error {
				return AssistantOf(m).SetData(map[string]any{"api_key": "sk-1234", "provider": "bedrock"})
			},
		},
		{
			name: "unknown provider",
			update: func(m *Manager) error {
				return AssistantOf(m).SetData(map[string]any{"provider": "carrier-pigeon"})
			},
			wantErr: "invalid section assistant",
		},
		{
			name: "relative service url",
			update: func(m *Manager) error {
				return BrowserOf(m).SetData(map[string]any{"service_url": "localhost:8787"})
			},
			wantErr: "invalid section browser",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			m, err := NewDefaultManager(path)
			require.NoError(t, err)
			require.NoError(t, tt.update(m))

			err = m.SaveAll()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				_, statErr := os.Stat(path)
				assert.True(t, os.IsNotExist(statErr), "invalid settings must not reach the file")
				return
			}
			require.NoError(t, err)

			reopened, err := NewDefaultManager(path)
			require.NoError(t, err)
			got := AssistantOf(reopened).Snapshot()
			assert.Equal(t, "sk-1234", got.APIKey)
			assert.Equal(t, ProviderBedrock, got.Provider)
			assert.False(t, got.AnalyzeAttachments)
		})
	}
}

func TestLive_Reset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m, err := NewDefaultManager(path)
	require.NoError(t, err)
	live := NewLive(m)
	assert.Equal(t, path, live.Path())

	_, err = live.UpdateAssistant(map[string]any{"api_key": "sk-1234", "analyze_attachments": true})
	require.NoError(t, err)
	require.NoError(t, BrowserOf(m).SetData(map[string]any{"headless": true}))

	require.NoError(t, live.Reset())

	reopened, err := NewDefaultManager(path)
	require.NoError(t, err)
	assert.Equal(t, AssistantSettings{Provider: ProviderOpenAI}, AssistantOf(reopened).Snapshot())
	assert.Equal(t, BrowserSettings{StartURL: defaultStartURL}, BrowserOf(reopened).Snapshot())
}

func TestLive_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		env        string
		flag       string
		wantKey    string
		wantMasked string
	}{
		{"nothing set", "", "", "", "", ""},
		{"file only", "file-key-1111", "", "", "file-key-1111", "*********1111"},
		{"env over file", "file-key-1111", "env-key-2222", "", "env-key-2222", "********2222"},
		{"flag over env", "file-key-1111", "env-key-2222", "flag-3333", "flag-3333", "*****3333"},
		{"flag without file", "", "", "flag-3333", "flag-3333", "*****3333"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvAPIKey, tt.env)
			t.Setenv(EnvBaseURL, "")
			path := filepath.Join(t.TempDir(), "config.json")
			if tt.file != "" {
				writeSettings(t, path, `{"sections":{"assistant":{"api_key":"`+tt.file+`"}}}`)
			}

			m, err := NewDefaultManager(path)
			require.NoError(t, err)
			live := NewLive(m)
			live.SetOverrides(Overrides{APIKey: tt.flag})

			got, err := live.Assistant()
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, got.APIKey)
			assert.Equal(t, tt.wantMasked, got.MaskedKey())
			assert.Equal(t, ProviderOpenAI, got.Provider)
			assert.False(t, got.AnalyzeAttachments)

			// Overrides never reach the file
			assert.Equal(t, tt.file, AssistantOf(m).GetAPIKey())
		})
	}
}

// brokenStore fails every read or write.
type brokenStore struct{ FileStore }

var errDisk = errors.New("disk unavailable")

func (*brokenStore) Load() error { return errDisk }
func (*brokenStore) Save() error { return errDisk }

func TestManager_StoreErrors(t *testing.T) {
	m := NewManager(&brokenStore{FileStore{sections: map[string]map[string]any{}}})
	require.NoError(t, m.RegisterSection(NewAssistantSection()))

	err := m.LoadAll()
	assert.ErrorIs(t, err, errDisk)
	assert.ErrorContains(t, err, "failed to load config store")

	err = m.SaveAll()
	assert.ErrorIs(t, err, errDisk)
	assert.ErrorContains(t, err, "failed to save config store")
}
