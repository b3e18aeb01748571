package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	set, err := Builtin()
	require.NoError(t, err)
	assert.Equal(t, []string{"gmail", "outlook"}, set.Names())

	gmail, ok := set.Get("gmail")
	require.True(t, ok)
	assert.Len(t, gmail.Editor.Queries, 7)
	assert.Len(t, gmail.ReplyEditor.Queries, 2)
	assert.Len(t, gmail.Message.Queries, 5)
	assert.Equal(t, []string{"@email", "text"}, gmail.Sender.Read)
	assert.Equal(t, "Fallback Content:", gmail.FallbackHeader)
	assert.Equal(t, DefaultPlacement, gmail.Placement)
	assert.Len(t, gmail.Cleanup, 3)
	assert.True(t, gmail.Toolbar.Queries[1].Parent)
	assert.NotNil(t, gmail.Body.Queries[0].Predicate)
	assert.Nil(t, gmail.Message.Queries[0].Predicate)

	outlook, ok := set.Get("outlook")
	require.True(t, ok)
	assert.Equal(t, "Fallback Outlook Content:", outlook.FallbackHeader)
	assert.Equal(t, "No email content could be extracted from the current Outlook view", outlook.EmptySentinel)
	assert.Equal(t, []string{"Outlook", "Compose", "Inbox", "Microsoft"}, outlook.Denylist)
	assert.Len(t, outlook.Cleanup, 4)

	_, ok = set.Get("yahoo")
	assert.False(t, ok)
}

func TestMatch(t *testing.T) {
	set, err := Builtin()
	require.NoError(t, err)

	tests := []struct {
		url  string
		want string
	}{
		{"https://mail.google.com/mail/u/0/#inbox", "gmail"},
		{"https://mail.google.com/", "gmail"},
		{"https://outlook.live.com/mail/0/", "outlook"},
		{"https://outlook.office.com/mail/inbox", "outlook"},
		{"https://outlook.office365.com/mail/", "outlook"},
		{"https://example.com/mail.google.com/", ""},
		{"about:blank", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			p, ok := set.Match(tt.url)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, p.Name)
		})
	}
}

func TestCleanupPatterns(t *testing.T) {
	set, err := Builtin()
	require.NoError(t, err)
	gmail, _ := set.Get("gmail")

	text := "Reply to all\nThe actual message body\nShow trimmed content and more"
	for _, re := range gmail.Cleanup {
		text = re.ReplaceAllString(text, "")
	}
	assert.Equal(t, "\nThe actual message body\n", text)
}

func TestLoad_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	overlay := `profiles:
  - name: gmail
    placement: [overlay]
    denylist: [Gmail]
    chains:
      editor:
        queries:
          - 'div.custom-editor'
`
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0600))

	set, err := Load(path)
	require.NoError(t, err)
	gmail, ok := set.Get("gmail")
	require.True(t, ok)
	assert.Equal(t, []string{PlaceOverlay}, gmail.Placement)
	assert.Equal(t, []string{"Gmail"}, gmail.Denylist)
	require.Len(t, gmail.Editor.Queries, 1)
	assert.Equal(t, "div.custom-editor", gmail.Editor.Queries[0].Selector)

	// Untouched chains keep the builtin values
	assert.Len(t, gmail.Message.Queries, 5)
	assert.Len(t, gmail.Cleanup, 3)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0600))
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml")},
		{"bad yaml", write("bad.yaml", "profiles: [")},
		{"unknown host", write("host.yaml", "profiles:\n  - name: yahoo\n")},
		{"bad placement", write("place.yaml", "profiles:\n  - name: gmail\n    placement: [sideways]\n")},
		{"bad predicate", write("pred.yaml", "profiles:\n  - name: outlook\n    chains:\n      body:\n        queries:\n          - selector: p\n            predicates: [shiny]\n")},
		{"unknown chain", write("chain.yaml", "profiles:\n  - name: outlook\n    chains:\n      footer:\n        queries: [p]\n")},
		{"bad cleanup", write("re.yaml", "profiles:\n  - name: outlook\n    cleanup: ['(']\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			assert.Error(t, err)
		})
	}
}

func TestCompile_Validation(t *testing.T) {
	_, err := Compile(Spec{})
	assert.Error(t, err)

	_, err = Compile(Spec{Name: "x"})
	assert.Error(t, err)

	_, err = Compile(Spec{Name: "x", URLs: []string{"https://x/*"}})
	assert.Error(t, err, "editor chain is required")

	p, err := Compile(Spec{
		Name: "x",
		URLs: []string{"https://x/*"},
		Chains: map[string]ChainSpec{
			TargetEditor: {Queries: []QuerySpec{{Selector: "div[contenteditable]"}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Unknown file", p.AttachmentDefault)
	assert.Equal(t, "No readable email content found", p.NoContentSentinel)
	assert.Equal(t, 2, p.ToolbarLevels)

	_, err = Compile(Spec{
		Name: "x",
		URLs: []string{"https://x/*"},
		Chains: map[string]ChainSpec{
			TargetEditor: {Queries: []QuerySpec{{Selector: "div"}}, Read: []string{"@"}},
		},
	})
	assert.Error(t, err)
}
