package profile

import (
	"bytes"
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinFS embed.FS

var builtinFiles = []string{"profiles/gmail.yaml", "profiles/outlook.yaml"}

// UnmarshalYAML accepts either a bare selector string or a mapping.
func (q *QuerySpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		q.Selector = node.Value
		return nil
	}
	type plain QuerySpec
	return node.Decode((*plain)(q))
}

// Set is the collection of known hosts.
type Set struct {
	profiles []*Profile
}

// overlayFile is the layout of a user profiles file.
type overlayFile struct {
	Profiles []Spec `yaml:"profiles"`
}

// Builtin returns the embedded Gmail and Outlook profiles.
func Builtin() (*Set, error) {
	return Load("")
}

// Load returns the builtin profiles with the user file at path laid over
// them. Overlay entries are matched by name; scalar fields and lists replace
// the builtin value when set, chains replace the builtin chain of the same
// target. An empty path loads the builtins only.
func Load(path string) (*Set, error) {
	specs, err := builtinSpecs()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profiles file: %w", err)
		}
		var overlay overlayFile
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("failed to parse profiles file: %w", err)
		}
		for _, o := range overlay.Profiles {
			base, ok := findSpec(specs, o.Name)
			if !ok {
				return nil, fmt.Errorf("profiles file: unknown host %q", o.Name)
			}
			merge(base, o)
		}
	}

	set := &Set{}
	for _, spec := range specs {
		p, err := Compile(*spec)
		if err != nil {
			return nil, err
		}
		set.profiles = append(set.profiles, p)
	}
	return set, nil
}

// Match returns the profile whose url patterns match url.
func (s *Set) Match(url string) (*Profile, bool) {
	for _, p := range s.profiles {
		if p.Matches(url) {
			return p, true
		}
	}
	return nil, false
}

// Get returns a profile by name.
func (s *Set) Get(name string) (*Profile, bool) {
	for _, p := range s.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Names lists the profile names in load order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		names = append(names, p.Name)
	}
	return names
}

func builtinSpecs() ([]*Spec, error) {
	var specs []*Spec
	for _, name := range builtinFiles {
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin profile %s: %w", name, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		var spec Spec
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("failed to parse builtin profile %s: %w", name, err)
		}
		specs = append(specs, &spec)
	}
	return specs, nil
}

func findSpec(specs []*Spec, name string) (*Spec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func merge(base *Spec, o Spec) {
	if len(o.URLs) > 0 {
		base.URLs = o.URLs
	}
	if len(o.ComposeMarkers) > 0 {
		base.ComposeMarkers = o.ComposeMarkers
	}
	if o.MarkerLevels > 0 {
		base.MarkerLevels = o.MarkerLevels
	}
	if o.ToolbarLevels > 0 {
		base.ToolbarLevels = o.ToolbarLevels
	}
	if len(o.Placement) > 0 {
		base.Placement = o.Placement
	}
	if len(o.Denylist) > 0 {
		base.Denylist = o.Denylist
	}
	if len(o.Cleanup) > 0 {
		base.Cleanup = o.Cleanup
	}
	if o.FallbackHeader != "" {
		base.FallbackHeader = o.FallbackHeader
	}
	if o.EmptySentinel != "" {
		base.EmptySentinel = o.EmptySentinel
	}
	if o.NoContentSentinel != "" {
		base.NoContentSentinel = o.NoContentSentinel
	}
	if o.AttachmentDefault != "" {
		base.AttachmentDefault = o.AttachmentDefault
	}
	for name, chain := range o.Chains {
		if base.Chains == nil {
			base.Chains = make(map[string]ChainSpec)
		}
		base.Chains[name] = chain
	}
}
